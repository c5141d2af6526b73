package psql

import (
	"strings"

	"github.com/relq/compiler/internal/dialect"
	"github.com/relq/compiler/internal/qcode"
	"github.com/relq/compiler/schema"
)

// RenderOrderBy renders a normalized term list into a comma-separated
// "ORDER BY" body, applying the dialect's NULLS FIRST/LAST rule per term
// and the per-dialect NULLS FIRST/LAST defaults.
func RenderOrderBy(ctx *BuildContext, terms []qcode.OrderTerm) (string, error) {
	cache := schema.CacheFor(ctx.Model)
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		col, ok := cache.ColumnName(t.Field)
		if !ok {
			col = t.Field
		}
		colQ, err := QuoteCol(col)
		if err != nil {
			return "", err
		}
		expr := QuoteAliasDot(ctx.Alias) + "." + colQ
		if t.Desc {
			expr += " DESC"
		} else {
			expr += " ASC"
		}
		expr += ctx.Dialect.NullsClause(t.Desc, toDialectNulls(t.Nulls))
		parts = append(parts, expr)
	}
	return strings.Join(parts, ", "), nil
}

// toDialectNulls converts qcode's dialect-agnostic NullsPos into
// internal/dialect's identical enum; the two packages define matching
// constants independently so qcode never needs to import internal/dialect.
func toDialectNulls(n qcode.NullsPos) dialect.NullsPos {
	switch n {
	case qcode.NullsFirst:
		return dialect.NullsFirst
	case qcode.NullsLast:
		return dialect.NullsLast
	default:
		return dialect.NullsDefault
	}
}
