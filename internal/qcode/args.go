package qcode

import (
	"strings"

	"github.com/relq/compiler/params"
	"github.com/relq/compiler/relqerr"
	"github.com/relq/compiler/schema"
)

const maxTakeSkip = 1<<31 - 1

// ParseQueryArgs validates and normalizes the caller-supplied options tree
// into a QueryArgs. findUnique and findFirst force LIMIT 1; skip is
// ignored for findUnique only.
func ParseQueryArgs(model *schema.Model, method Method, raw map[string]interface{}) (QueryArgs, error) {
	var args QueryArgs
	cache := schema.CacheFor(model)

	if w, ok := raw["where"]; ok {
		wm, ok := w.(map[string]interface{})
		if !ok {
			return args, relqerr.New(relqerr.InvalidValue, model.Name, []string{"where"}, "where must be an object")
		}
		exp, err := BuildWhere(model, wm)
		if err != nil {
			return args, err
		}
		args.Where = exp
	}

	args.Select = parseSelect(raw["select"])

	if inc, ok := raw["include"]; ok {
		im, ok := inc.(map[string]interface{})
		if !ok {
			return args, relqerr.New(relqerr.InvalidValue, model.Name, []string{"include"}, "include must be an object")
		}
		includes, count, err := parseIncludes(model, im)
		if err != nil {
			return args, err
		}
		args.Includes = includes
		args.Count = count
	}
	if sel, ok := raw["select"].(map[string]interface{}); ok {
		relSel := map[string]interface{}{}
		for k, v := range sel {
			if cache.IsRelation(k) {
				relSel[k] = v
			}
		}
		if len(relSel) > 0 {
			includes, _, err := parseIncludes(model, relSel)
			if err != nil {
				return args, err
			}
			args.Includes = append(args.Includes, includes...)
		}
	}

	ob, err := BuildOrderBy(model, raw["orderBy"])
	if err != nil {
		return args, err
	}
	args.OrderBy = ob

	if t, ok := raw["take"]; ok {
		if v, isVar := t.(params.Var); isVar {
			// sign unknown at compile time: a dynamic take can't trigger the
			// negative-take order-flip, so it requires an explicit orderBy
			// only in the sense that determinism below still applies to it.
			args.Take = &PaginationBound{Var: v, IsVar: true}
		} else {
			n, err := asInt(t, model.Name, "take")
			if err != nil {
				return args, err
			}
			if n < 0 {
				if len(args.OrderBy) == 0 {
					return args, relqerr.New(relqerr.InvalidValue, model.Name, []string{"take"},
						"negative take requires an explicit orderBy")
				}
				abs := -n
				args.OrderBy = ReverseOrder(args.OrderBy)
				n = abs
			}
			if n > maxTakeSkip {
				return args, relqerr.New(relqerr.InvalidValue, model.Name, []string{"take"}, "take out of range")
			}
			args.Take = LitBound(n)
		}
	}

	if method == MethodFindUnique || method == MethodFindFirst {
		args.Take = LitBound(1)
	}

	if s, ok := raw["skip"]; ok {
		if v, isVar := s.(params.Var); isVar {
			if method != MethodFindUnique {
				args.Skip = &PaginationBound{Var: v, IsVar: true}
			}
		} else {
			n, err := asInt(s, model.Name, "skip")
			if err != nil {
				return args, err
			}
			if n < 0 || n > maxTakeSkip {
				return args, relqerr.New(relqerr.InvalidValue, model.Name, []string{"skip"}, "skip out of range")
			}
			if method != MethodFindUnique {
				args.Skip = LitBound(n)
			}
		}
	}

	paginationActive := args.Take != nil || args.Skip != nil
	args.OrderBy = EnsureDeterministic(model, args.OrderBy, paginationActive)

	if c, ok := raw["cursor"]; ok {
		cm, ok := c.(map[string]interface{})
		if !ok {
			return args, relqerr.New(relqerr.InvalidValue, model.Name, []string{"cursor"}, "cursor must be an object")
		}
		args.Cursor = CursorArg(cm)
	}

	if d, ok := raw["distinct"]; ok {
		cols, err := parseDistinct(cache, model.Name, d)
		if err != nil {
			return args, err
		}
		args.Distinct = cols
	}

	return args, nil
}

func parseSelect(raw interface{}) map[string]bool {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]bool, len(m))
	for k, v := range m {
		if strings.HasPrefix(k, "@") || strings.HasPrefix(k, "//") {
			continue
		}
		switch vv := v.(type) {
		case bool:
			out[k] = vv
		case map[string]interface{}:
			// a nested select/include on a relation key; presence implies inclusion
			// (ParseQueryArgs turns relation keys of select into includes)
			out[k] = true
		default:
			out[k] = true
		}
	}
	return out
}

func parseIncludes(model *schema.Model, raw map[string]interface{}) ([]IncludeArg, []string, error) {
	cache := schema.CacheFor(model)
	var includes []IncludeArg
	var count []string

	keys := sortedKeys(raw)
	for _, key := range keys {
		val := raw[key]
		if key == "_count" {
			names, err := parseCountArg(cache, model.Name, val)
			if err != nil {
				return nil, nil, err
			}
			count = names
			continue
		}
		if !cache.IsRelation(key) {
			return nil, nil, relqerr.NewFieldNotFound(model.Name, []string{key}, key, cache.ScalarNames())
		}
		relModel := relatedModelOf(model, mustField(model, key))
		if relModel == nil {
			return nil, nil, relqerr.New(relqerr.RelationError, model.Name, []string{key},
				"relation field %q has no resolvable related model", key)
		}
		var subArgs QueryArgs
		switch v := val.(type) {
		case bool:
			if !v {
				continue
			}
		case map[string]interface{}:
			var err error
			subArgs, err = ParseQueryArgs(relModel, MethodFindMany, v)
			if err != nil {
				return nil, nil, err
			}
		default:
			return nil, nil, relqerr.New(relqerr.InvalidValue, model.Name, []string{key}, "include value must be true or an object")
		}
		includes = append(includes, IncludeArg{RelField: key, Args: subArgs})
	}
	return includes, count, nil
}

func mustField(model *schema.Model, name string) schema.Field {
	f, _ := model.Field(name)
	return f
}

func parseCountArg(cache *schema.Cache, modelName string, val interface{}) ([]string, error) {
	switch v := val.(type) {
	case bool:
		if !v {
			return nil, nil
		}
		return cache.RelationNamesAll(), nil
	case map[string]interface{}:
		sel, ok := v["select"].(map[string]interface{})
		if !ok {
			return nil, relqerr.New(relqerr.InvalidValue, modelName, []string{"_count"}, "_count object must carry select")
		}
		var names []string
		for _, k := range sortedKeys(sel) {
			if b, _ := sel[k].(bool); b {
				if !cache.IsRelation(k) {
					return nil, relqerr.NewFieldNotFound(modelName, []string{"_count", k}, k, cache.ScalarNames())
				}
				names = append(names, k)
			}
		}
		return names, nil
	default:
		return nil, relqerr.New(relqerr.InvalidValue, modelName, []string{"_count"}, "_count must be a boolean or object")
	}
}

func parseDistinct(cache *schema.Cache, modelName string, raw interface{}) ([]string, error) {
	list, ok := raw.([]interface{})
	if !ok {
		return nil, relqerr.New(relqerr.InvalidValue, modelName, []string{"distinct"}, "distinct must be a list of field names")
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		name, ok := e.(string)
		if !ok {
			return nil, relqerr.New(relqerr.InvalidValue, modelName, []string{"distinct"}, "distinct entries must be strings")
		}
		if !cache.IsScalar(name) {
			return nil, relqerr.NewFieldNotFound(modelName, []string{"distinct"}, name, cache.ScalarNames())
		}
		out = append(out, name)
	}
	return out, nil
}

func asInt(v interface{}, modelName, field string) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, relqerr.New(relqerr.InvalidValue, modelName, []string{field}, "%s must be an integer", field)
		}
		return int(n), nil
	default:
		return 0, relqerr.New(relqerr.InvalidValue, modelName, []string{field}, "%s must be an integer", field)
	}
}
