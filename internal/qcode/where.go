package qcode

import (
	"sort"

	"github.com/relq/compiler/relqerr"
	"github.com/relq/compiler/schema"
)

const maxQueryDepth = 50

// wtask is one unit of work on the explicit WHERE-builder stack: compile
// the keys of raw against model, appending resulting nodes to out. Relation
// predicates and logical combinators push further wtasks instead of
// recursing, mirroring GraphJin's aexpst/compileExpNode stack traversal
// in its own domain over a Prisma-style filter map instead of a GraphQL
// argument tree.
type wtask struct {
	model *schema.Model
	path  []string
	depth int
	raw   map[string]interface{}
	out   *Exp
}

// BuildWhere compiles a `where` filter object against model
// into an Exp tree. The returned node's Op is always OpAnd, combining every
// key of the top-level filter object.
func BuildWhere(model *schema.Model, raw map[string]interface{}) (*Exp, error) {
	root := &Exp{Op: OpAnd}
	if len(raw) == 0 {
		return root, nil
	}

	stack := []*wtask{{model: model, path: nil, depth: 0, raw: raw, out: root}}
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if t.depth > maxQueryDepth {
			return nil, relqerr.New(relqerr.RelationError, t.model.Name, t.path,
				"filter nesting exceeds max depth %d", maxQueryDepth)
		}

		keys := sortedKeys(t.raw)
		for _, key := range keys {
			val := t.raw[key]
			path := append(append([]string(nil), t.path...), key)

			switch key {
			case "AND", "OR", "NOT":
				op := OpAnd
				if key == "OR" {
					op = OpOr
				} else if key == "NOT" {
					op = OpNot
				}
				combinator := &Exp{Op: op}
				t.out.Children = append(t.out.Children, combinator)

				subfilters, err := asFilterList(val)
				if err != nil {
					return nil, relqerr.New(relqerr.InvalidValue, t.model.Name, path, "%s", err.Error())
				}
				for _, sf := range subfilters {
					child := &Exp{Op: OpAnd}
					combinator.Children = append(combinator.Children, child)
					stack = append(stack, &wtask{model: t.model, path: path, depth: t.depth + 1, raw: sf, out: child})
				}
				continue
			}

			cache := schema.CacheFor(t.model)
			if cache.IsRelation(key) {
				node, sub, err := buildRelationNode(t.model, path, key, val)
				if err != nil {
					return nil, err
				}
				t.out.Children = append(t.out.Children, node)
				if sub != nil {
					relModel := node.RelModel
					nested := &Exp{Op: OpAnd}
					node.Sub = nested
					stack = append(stack, &wtask{model: relModel, path: path, depth: t.depth + 1, raw: sub, out: nested})
				}
				continue
			}

			field, ok := cache.Field(key)
			if !ok {
				return nil, relqerr.NewFieldNotFound(t.model.Name, path, key, cache.ScalarNames())
			}
			leaves, err := buildScalarLeaves(field, path, t.model.Name, val)
			if err != nil {
				return nil, err
			}
			t.out.Children = append(t.out.Children, leaves...)
		}
	}
	return root, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asFilterList(val interface{}) ([]map[string]interface{}, error) {
	switch v := val.(type) {
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(v))
		for _, e := range v {
			m, ok := e.(map[string]interface{})
			if !ok {
				return nil, errInvalidShape
			}
			out = append(out, m)
		}
		return out, nil
	case map[string]interface{}:
		return []map[string]interface{}{v}, nil
	default:
		return nil, errInvalidShape
	}
}

var errInvalidShape = errShape{}

type errShape struct{}

func (errShape) Error() string { return "expected a filter object or list of filter objects" }

// buildRelationNode dispatches a relation-typed filter key to some/every/
// none/is/isNot. It returns the constructed node and,
// if the predicate carries a nested sub-filter, that sub-filter's raw map
// for the caller to push onto the stack.
func buildRelationNode(model *schema.Model, path []string, field string, val interface{}) (*Exp, map[string]interface{}, error) {
	cache := schema.CacheFor(model)
	rf, _ := cache.Field(field)
	relModel := relatedModelOf(model, rf)
	if relModel == nil {
		return nil, nil, relqerr.New(relqerr.RelationError, model.Name, path,
			"relation field %q has no resolvable related model", field)
	}

	obj, ok := val.(map[string]interface{})
	if !ok {
		return nil, nil, relqerr.New(relqerr.InvalidValue, model.Name, path,
			"relation filter for %q must be an object", field)
	}

	isList := isListRelation(rf)
	if isList {
		for _, kind := range []string{"some", "every", "none"} {
			if sub, ok := obj[kind]; ok {
				op := map[string]ExpOp{"some": OpRelationSome, "every": OpRelationEvery, "none": OpRelationNone}[kind]
				node := &Exp{Op: op, RelField: field, RelModel: relModel}
				if kind == "none" && isEmptyFilter(sub) {
					node.NoneEmptyOptimized = true
					return node, nil, nil
				}
				subMap, _ := sub.(map[string]interface{})
				if subMap == nil {
					subMap = map[string]interface{}{}
				}
				return node, subMap, nil
			}
		}
		return nil, nil, relqerr.New(relqerr.InvalidOperator, model.Name, path,
			"list relation %q requires some/every/none", field)
	}

	for _, kind := range []string{"is", "isNot"} {
		if sub, ok := obj[kind]; ok {
			op := OpRelationIs
			if kind == "isNot" {
				op = OpRelationIsNot
			}
			node := &Exp{Op: op, RelField: field, RelModel: relModel}
			subMap, _ := sub.(map[string]interface{})
			if subMap == nil {
				subMap = map[string]interface{}{}
			}
			return node, subMap, nil
		}
	}
	// bare relation object is shorthand for `is`
	node := &Exp{Op: OpRelationIs, RelField: field, RelModel: relModel}
	return node, obj, nil
}

func isEmptyFilter(v interface{}) bool {
	m, ok := v.(map[string]interface{})
	return ok && len(m) == 0
}

func isListRelation(f schema.Field) bool {
	return f.IsList()
}

// modelResolver maps a relation field's RelatedModel name to its *Model,
// because schema.Field does not itself hold a *Model (avoiding a cycle
// between fields and their container). The root package's RegisterModels
// installs it via SetModelResolver.
var modelResolver func(name string) *schema.Model

// SetModelResolver installs the function used to resolve a relation
// field's RelatedModel name into a *schema.Model. Must be called once at
// bootstrap before any BuildWhere call that touches a relation.
func SetModelResolver(r func(name string) *schema.Model) {
	modelResolver = r
}

func relatedModelOf(_ *schema.Model, f schema.Field) *schema.Model {
	if modelResolver == nil || f.RelatedModel == "" {
		return nil
	}
	return modelResolver(f.RelatedModel)
}

// buildScalarLeaves compiles the operator object (or scalar shorthand) for
// one scalar/array/JSON field into one or more leaf Exp nodes.
func buildScalarLeaves(field schema.Field, path []string, modelName string, val interface{}) ([]*Exp, error) {
	ops, mode, jsonPath, err := normalizeOperand(field, path, modelName, val)
	if err != nil {
		return nil, err
	}
	keys := sortedKeys(ops)
	leaves := make([]*Exp, 0, len(ops))
	for _, opKey := range keys {
		leaf, err := buildOneOp(field, path, modelName, opKey, ops[opKey], mode, jsonPath)
		if err != nil {
			return nil, err
		}
		if leaf != nil {
			leaves = append(leaves, leaf)
		}
	}
	return leaves, nil
}

// normalizeOperand turns a bare scalar value into {"equals": value} and
// extracts mode:insensitive and path (for JSON operators) if present,
// returning the remaining operator map.
func normalizeOperand(field schema.Field, path []string, modelName string, val interface{}) (map[string]interface{}, StringMode, []string, error) {
	obj, ok := val.(map[string]interface{})
	if !ok {
		return map[string]interface{}{"equals": val}, ModeDefault, nil, nil
	}
	mode := ModeDefault
	if m, ok := obj["mode"]; ok {
		if s, ok := m.(string); ok && s == "insensitive" {
			mode = ModeInsensitive
		}
		delete(obj, "mode")
	}
	var jsonPath []string
	if p, ok := obj["path"]; ok {
		if list, ok := p.([]interface{}); ok {
			for _, e := range list {
				if s, ok := e.(string); ok {
					jsonPath = append(jsonPath, s)
				}
			}
		} else if s, ok := p.(string); ok {
			jsonPath = []string{s}
		}
		delete(obj, "path")
	}
	if len(obj) == 0 {
		return nil, mode, jsonPath, relqerr.New(relqerr.InvalidValue, modelName, path, "empty operator object")
	}
	return obj, mode, jsonPath, nil
}

func buildOneOp(field schema.Field, path []string, modelName, opKey string, opVal interface{}, mode StringMode, jsonPath []string) (*Exp, error) {
	switch opKey {
	case "equals":
		if opVal == nil {
			return &Exp{Op: OpIsNull, Field: field.Name}, nil
		}
		return &Exp{Op: OpEquals, Field: field.Name, Value: opVal, Mode: mode}, nil
	case "not":
		if opVal == nil {
			return &Exp{Op: OpIsNotNull, Field: field.Name}, nil
		}
		return &Exp{Op: OpNotEquals, Field: field.Name, Value: opVal, Mode: mode}, nil
	case "gt":
		return &Exp{Op: OpGt, Field: field.Name, Value: opVal}, nil
	case "gte":
		return &Exp{Op: OpGte, Field: field.Name, Value: opVal}, nil
	case "lt":
		return &Exp{Op: OpLt, Field: field.Name, Value: opVal}, nil
	case "lte":
		return &Exp{Op: OpLte, Field: field.Name, Value: opVal}, nil
	case "in":
		return &Exp{Op: OpIn, Field: field.Name, Value: opVal}, nil
	case "notIn":
		return &Exp{Op: OpNotIn, Field: field.Name, Value: opVal}, nil
	case "contains":
		return &Exp{Op: OpContains, Field: field.Name, Value: opVal, Mode: mode}, nil
	case "startsWith":
		return &Exp{Op: OpStartsWith, Field: field.Name, Value: opVal, Mode: mode}, nil
	case "endsWith":
		return &Exp{Op: OpEndsWith, Field: field.Name, Value: opVal, Mode: mode}, nil
	case "has":
		return &Exp{Op: OpArrayHas, Field: field.Name, Value: opVal}, nil
	case "hasSome":
		return &Exp{Op: OpArrayHasSome, Field: field.Name, Value: opVal}, nil
	case "hasEvery":
		return &Exp{Op: OpArrayHasEvery, Field: field.Name, Value: opVal}, nil
	case "isEmpty":
		b, _ := opVal.(bool)
		if b {
			return &Exp{Op: OpArrayIsEmpty, Field: field.Name}, nil
		}
		return &Exp{Op: OpArrayIsNotEmpty, Field: field.Name}, nil
	case "string_contains":
		return &Exp{Op: OpJSONStringContains, Field: field.Name, Value: opVal, JSONPath: jsonPath}, nil
	case "string_starts_with":
		return &Exp{Op: OpJSONStringStartsWith, Field: field.Name, Value: opVal, JSONPath: jsonPath}, nil
	case "string_ends_with":
		return &Exp{Op: OpJSONStringEndsWith, Field: field.Name, Value: opVal, JSONPath: jsonPath}, nil
	default:
		return nil, relqerr.New(relqerr.InvalidOperator, modelName, path, "unknown operator %q", opKey)
	}
}
