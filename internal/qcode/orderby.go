package qcode

import (
	"github.com/relq/compiler/relqerr"
	"github.com/relq/compiler/schema"
)

// BuildOrderBy normalizes the `orderBy` argument into an
// ordered list of OrderTerm. raw is either a single field->direction object
// or a list of single-field objects.
func BuildOrderBy(model *schema.Model, raw interface{}) ([]OrderTerm, error) {
	if raw == nil {
		return nil, nil
	}
	cache := schema.CacheFor(model)

	var objs []map[string]interface{}
	switch v := raw.(type) {
	case map[string]interface{}:
		objs = []map[string]interface{}{v}
	case []interface{}:
		for _, e := range v {
			m, ok := e.(map[string]interface{})
			if !ok {
				return nil, relqerr.New(relqerr.InvalidValue, model.Name, nil, "orderBy list entries must be objects")
			}
			objs = append(objs, m)
		}
	default:
		return nil, relqerr.New(relqerr.InvalidValue, model.Name, nil, "orderBy must be an object or list of objects")
	}

	var terms []OrderTerm
	for _, obj := range objs {
		keys := sortedKeys(obj)
		for _, field := range keys {
			if field == "" {
				return nil, relqerr.New(relqerr.InvalidValue, model.Name, nil, "orderBy field name must not be empty")
			}
			if cache.IsRelation(field) {
				return nil, relqerr.New(relqerr.InvalidOperator, model.Name, []string{field}, "cannot order by relation field %q", field)
			}
			if !cache.IsScalar(field) {
				return nil, relqerr.NewFieldNotFound(model.Name, []string{field}, field, cache.ScalarNames())
			}
			term, err := parseOrderValue(model.Name, field, obj[field])
			if err != nil {
				return nil, err
			}
			terms = append(terms, term)
		}
	}
	return terms, nil
}

func parseOrderValue(modelName, field string, val interface{}) (OrderTerm, error) {
	switch v := val.(type) {
	case string:
		desc, err := parseDir(modelName, field, v)
		if err != nil {
			return OrderTerm{}, err
		}
		return OrderTerm{Field: field, Desc: desc}, nil
	case map[string]interface{}:
		sortVal, _ := v["sort"].(string)
		desc, err := parseDir(modelName, field, sortVal)
		if err != nil {
			return OrderTerm{}, err
		}
		nulls := NullsDefault
		if n, ok := v["nulls"].(string); ok {
			switch n {
			case "first":
				nulls = NullsFirst
			case "last":
				nulls = NullsLast
			default:
				return OrderTerm{}, relqerr.New(relqerr.InvalidValue, modelName, []string{field}, "unknown nulls value %q", n)
			}
		}
		return OrderTerm{Field: field, Desc: desc, Nulls: nulls}, nil
	default:
		return OrderTerm{}, relqerr.New(relqerr.InvalidValue, modelName, []string{field}, "orderBy value must be 'asc'/'desc' or an object")
	}
}

func parseDir(modelName, field, dir string) (bool, error) {
	switch dir {
	case "asc":
		return false, nil
	case "desc":
		return true, nil
	default:
		return false, relqerr.New(relqerr.InvalidValue, modelName, []string{field}, "unknown sort direction %q", dir)
	}
}

// EnsureDeterministic appends the model's primary-key fields as trailing
// tiebreakers when pagination (skip/take) is active and they are not
// already present in terms (the determinism rule: pagination always
// orders by a total key, ending with the primary key).
func EnsureDeterministic(model *schema.Model, terms []OrderTerm, paginationActive bool) []OrderTerm {
	if !paginationActive {
		return terms
	}
	present := map[string]bool{}
	for _, t := range terms {
		present[t.Field] = true
	}
	for _, pk := range model.PrimaryKeyFields() {
		if !present[pk.Name] {
			terms = append(terms, OrderTerm{Field: pk.Name})
		}
	}
	return terms
}

// ReverseOrder flips every term's direction and nulls position, used for
// the negative-take rewrite.
func ReverseOrder(terms []OrderTerm) []OrderTerm {
	out := make([]OrderTerm, len(terms))
	for i, t := range terms {
		rt := t
		rt.Desc = !t.Desc
		switch t.Nulls {
		case NullsFirst:
			rt.Nulls = NullsLast
		case NullsLast:
			rt.Nulls = NullsFirst
		}
		out[i] = rt
	}
	return out
}
