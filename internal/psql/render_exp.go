package psql

import (
	"strconv"
	"strings"

	"github.com/relq/compiler/internal/qcode"
	"github.com/relq/compiler/relqerr"
	"github.com/relq/compiler/sanitize"
	"github.com/relq/compiler/schema"
)

// token is one item pushed onto the explicit render stack: either a literal
// string to emit verbatim, or a *qcode.Exp node still to be expanded. This
// mirrors GraphJin's internal/psql/exp.go expContext.render loop, which
// pushes rune sentinels and qcode.Exp/ExpOp values onto a util.StackInf and
// writes as it pops, instead of recursing — adapted here to a filter-map
// derived Exp tree instead of a GraphQL argument tree.
type token struct {
	lit  string
	exp  *qcode.Exp
	isLit bool
}

func lit(s string) token      { return token{lit: s, isLit: true} }
func expTok(e *qcode.Exp) token { return token{exp: e} }

// RenderExp renders a WHERE expression tree into w, returning additional
// joins the relation predicates required (the "{ clause,
// joins }"). Logical And/Or/Not nesting is walked with an explicit stack
// rather than recursion; a relation node's sub-filter is rendered by a
// nested RenderExp call inside its EXISTS subquery.
func RenderExp(w *strings.Builder, ctx *BuildContext, root *qcode.Exp) ([]qcode.Join, error) {
	if root == nil || (root.Op == qcode.OpAnd && len(root.Children) == 0) {
		return nil, nil
	}
	var joins []qcode.Join
	stack := []token{expTok(root)}

	for len(stack) > 0 {
		tk := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if tk.isLit {
			w.WriteString(tk.lit)
			continue
		}
		ex := tk.exp

		switch ex.Op {
		case qcode.OpAnd, qcode.OpOr, qcode.OpNot:
			sep := " AND "
			if ex.Op == qcode.OpOr {
				sep = " OR "
			}
			if ex.Op == qcode.OpNot {
				if len(ex.Children) == 0 {
					w.WriteString("TRUE")
					continue
				}
				// push in reverse: ")" "," inner(AND of children) "NOT ("
				stack = append(stack, lit(")"))
				inner := &qcode.Exp{Op: qcode.OpAnd, Children: ex.Children}
				stack = append(stack, expTok(inner))
				stack = append(stack, lit("NOT ("))
				continue
			}
			if len(ex.Children) == 0 {
				w.WriteString("TRUE")
				continue
			}
			// push closing paren, then children interleaved with sep, in
			// reverse order so they pop out left to right.
			items := make([]token, 0, len(ex.Children)*2)
			items = append(items, lit(")"))
			for i := len(ex.Children) - 1; i >= 0; i-- {
				items = append(items, expTok(ex.Children[i]))
				if i != 0 {
					items = append(items, lit(sep))
				}
			}
			items = append(items, lit("("))
			// items currently in pop order (closing paren first popped last
			// since we appended it first but stack is LIFO) — reverse push.
			for i := len(items) - 1; i >= 0; i-- {
				stack = append(stack, items[i])
			}
			continue

		case qcode.OpRelationSome, qcode.OpRelationEvery, qcode.OpRelationNone, qcode.OpRelationIs, qcode.OpRelationIsNot:
			clause, js, err := renderRelationPredicate(ctx, ex)
			if err != nil {
				return nil, err
			}
			joins = append(joins, js...)
			w.WriteString(clause)
			continue

		default:
			clause, err := renderLeaf(ctx, ex)
			if err != nil {
				return nil, err
			}
			w.WriteString(clause)
		}
	}
	return joins, nil
}

func renderLeaf(ctx *BuildContext, ex *qcode.Exp) (string, error) {
	cache := schema.CacheFor(ctx.Model)
	col, ok := cache.ColumnName(ex.Field)
	if !ok {
		return "", relqerr.NewFieldNotFound(ctx.Model.Name, ctx.Path, ex.Field, cache.ScalarNames())
	}
	colQ, err := QuoteCol(col)
	if err != nil {
		return "", err
	}
	colExpr := QuoteAliasDot(ctx.Alias) + "." + colQ

	field, _ := cache.Field(ex.Field)

	switch ex.Op {
	case qcode.OpIsNull:
		return colExpr + " IS NULL", nil
	case qcode.OpIsNotNull:
		return colExpr + " IS NOT NULL", nil
	case qcode.OpEquals:
		ph := addParam(ctx, ex.Value)
		if ex.Mode == qcode.ModeInsensitive {
			return ctx.Dialect.CaseInsensitiveLike(colExpr, ph), nil
		}
		return colExpr + " = " + ph, nil
	case qcode.OpNotEquals:
		ph := addParam(ctx, ex.Value)
		base := colExpr + " <> " + ph
		if field.IsNullable() {
			return "(" + base + " OR " + colExpr + " IS NULL)", nil
		}
		return base, nil
	case qcode.OpGt:
		return colExpr + " > " + addParam(ctx, ex.Value), nil
	case qcode.OpGte:
		return colExpr + " >= " + addParam(ctx, ex.Value), nil
	case qcode.OpLt:
		return colExpr + " < " + addParam(ctx, ex.Value), nil
	case qcode.OpLte:
		return colExpr + " <= " + addParam(ctx, ex.Value), nil
	case qcode.OpIn:
		return renderInClause(ctx, colExpr, ex.Value, false), nil
	case qcode.OpNotIn:
		return renderInClause(ctx, colExpr, ex.Value, true), nil
	case qcode.OpContains:
		ph := addParam(ctx, wildcard(ex.Value, true, true))
		return likeExpr(ctx, colExpr, ph, ex.Mode), nil
	case qcode.OpStartsWith:
		ph := addParam(ctx, wildcard(ex.Value, false, true))
		return likeExpr(ctx, colExpr, ph, ex.Mode), nil
	case qcode.OpEndsWith:
		ph := addParam(ctx, wildcard(ex.Value, true, false))
		return likeExpr(ctx, colExpr, ph, ex.Mode), nil
	case qcode.OpArrayHas:
		ph := addParam(ctx, ex.Value)
		return ctx.Dialect.ArrayContainsOne(colExpr, ph, elemType(field)), nil
	case qcode.OpArrayHasEvery:
		phs := addParamList(ctx, ex.Value)
		return ctx.Dialect.ArrayContainsAll(colExpr, phs, elemType(field)), nil
	case qcode.OpArrayHasSome:
		phs := addParamList(ctx, ex.Value)
		return ctx.Dialect.ArrayOverlap(colExpr, phs, elemType(field)), nil
	case qcode.OpArrayIsEmpty:
		return "COALESCE(array_length(" + colExpr + ", 1), 0) = 0", nil
	case qcode.OpArrayIsNotEmpty:
		return "COALESCE(array_length(" + colExpr + ", 1), 0) > 0", nil
	case qcode.OpJSONStringContains:
		if err := assertSafeJSONPath(ex.JSONPath); err != nil {
			return "", err
		}
		extract := ctx.Dialect.JSONExtractText(colExpr, ex.JSONPath)
		ph := addParam(ctx, wildcard(ex.Value, true, true))
		return likeExpr(ctx, extract, ph, qcode.ModeDefault), nil
	case qcode.OpJSONStringStartsWith:
		if err := assertSafeJSONPath(ex.JSONPath); err != nil {
			return "", err
		}
		extract := ctx.Dialect.JSONExtractText(colExpr, ex.JSONPath)
		ph := addParam(ctx, wildcard(ex.Value, false, true))
		return likeExpr(ctx, extract, ph, qcode.ModeDefault), nil
	case qcode.OpJSONStringEndsWith:
		if err := assertSafeJSONPath(ex.JSONPath); err != nil {
			return "", err
		}
		extract := ctx.Dialect.JSONExtractText(colExpr, ex.JSONPath)
		ph := addParam(ctx, wildcard(ex.Value, true, false))
		return likeExpr(ctx, extract, ph, qcode.ModeDefault), nil
	default:
		return "", relqerr.New(relqerr.Critical, ctx.Model.Name, ctx.Path, "unrenderable expression op %d", ex.Op)
	}
}

func likeExpr(ctx *BuildContext, colExpr, ph string, mode qcode.StringMode) string {
	if mode == qcode.ModeInsensitive {
		return ctx.Dialect.CaseInsensitiveLike(colExpr, ph)
	}
	return colExpr + " LIKE " + ph
}

func wildcard(v interface{}, leading, trailing bool) string {
	s, _ := v.(string)
	if leading {
		s = "%" + s
	}
	if trailing {
		s = s + "%"
	}
	return s
}

// elemType maps a field's base type to the element type named in its array
// cast (e.g. `ARRAY[$1]::int[]`). Anything outside the closed scalar set is
// a model-defined enum; its Postgres array cast needs the enum's own quoted
// type name, not "text" — an enum column rejects a text[] cast outright.
func elemType(f schema.Field) string {
	t := f.BaseType()
	switch t {
	case "Int":
		return "int"
	case "BigInt":
		return "bigint"
	case "Float", "Decimal":
		return "numeric"
	case "Boolean":
		return "boolean"
	case "String", "DateTime", "Json":
		return "text"
	default:
		q, err := sanitize.Quote(t)
		if err != nil {
			return "text"
		}
		return q
	}
}

// assertSafeJSONPath gates every JSON path element through sanitize before
// it reaches a dialect's JSONExtractText, which interpolates path elements
// directly into SQL text (Postgres's `#>>'{p}'` and SQLite's `'$.p'` have no
// placeholder form for a path segment). A path element containing a quote
// or brace would otherwise break out of that literal.
func assertSafeJSONPath(path []string) error {
	for _, p := range path {
		if err := sanitize.AssertSafeAlias(p); err != nil {
			return relqerr.New(relqerr.ValidationError, "", nil, "unsafe json path element %q: %v", p, err)
		}
	}
	return nil
}

func addParam(ctx *BuildContext, v interface{}) string {
	return ctx.Store.Add(v)
}

// renderInClause renders `in`/`notIn`. A concrete list is expanded into one
// placeholder per element and a portable `col IN (p1, p2, ...)` — valid
// under both dialects without touching arrays at all. A dynamic-parameter
// marker (a single value whose element count isn't known at compile time,
// as used by the planner's WHERE-IN segments) falls back to the dialect's
// native array-membership form instead.
func renderInClause(ctx *BuildContext, colExpr string, value interface{}, negate bool) string {
	if list, ok := value.([]interface{}); ok {
		if len(list) == 0 {
			if negate {
				return "TRUE"
			}
			return "FALSE"
		}
		phs := make([]string, 0, len(list))
		for _, e := range list {
			phs = append(phs, ctx.Store.Add(e))
		}
		clause := colExpr + " IN (" + joinCommaPhs(phs) + ")"
		if negate {
			return "NOT (" + clause + ")"
		}
		return clause
	}
	ph := ctx.Store.Add(value)
	if negate {
		return ctx.Dialect.NotInArray(colExpr, ph)
	}
	return ctx.Dialect.InArray(colExpr, ph)
}

func joinCommaPhs(phs []string) string {
	var b strings.Builder
	for i, ph := range phs {
		if i != 0 {
			b.WriteString(", ")
		}
		b.WriteString(ph)
	}
	return b.String()
}

func addParamList(ctx *BuildContext, v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return []string{ctx.Store.Add(v)}
	}
	phs := make([]string, 0, len(list))
	for _, e := range list {
		phs = append(phs, ctx.Store.Add(e))
	}
	return phs
}

// QuoteAliasDot quotes an alias for use as a qualifier; aliases are always
// generated bare identifiers, but this keeps one choke point for the rule.
func QuoteAliasDot(alias string) string {
	q, err := sanitize.Quote(alias)
	if err != nil {
		return strconv.Quote(alias)
	}
	return q
}
