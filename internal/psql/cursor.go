package psql

import (
	"strconv"
	"strings"

	"github.com/relq/compiler/internal/qcode"
	"github.com/relq/compiler/schema"
)

// RenderCursorCTE renders the auxiliary CTE: a single
// row, selected by equality on the caller's partial key, exposing the
// order-by column values under fixed "c0".."cN-1" aliases for the boundary
// predicate to reference.
func RenderCursorCTE(ctx *BuildContext, cteName string, plan *qcode.CursorPlan) (string, error) {
	cache := schema.CacheFor(ctx.Model)
	table, err := QuoteTable(ctx.Model)
	if err != nil {
		return "", err
	}
	cteNameQ, err := QuoteAlias(cteName)
	if err != nil {
		return "", err
	}

	var cols []string
	for i, t := range plan.Order {
		col, _ := cache.ColumnName(t.Field)
		colQ, err := QuoteCol(col)
		if err != nil {
			return "", err
		}
		colAlias, err := QuoteCol("c" + strconv.Itoa(i))
		if err != nil {
			return "", err
		}
		cols = append(cols, QuoteAliasDot(ctx.Alias)+"."+colQ+" AS "+colAlias)
	}

	var preds []string
	for field, val := range plan.Key {
		col, ok := cache.ColumnName(field)
		if !ok {
			col = field
		}
		colQ, err := QuoteCol(col)
		if err != nil {
			return "", err
		}
		ph := ctx.Store.Add(val)
		preds = append(preds, QuoteAliasDot(ctx.Alias)+"."+colQ+" = "+ph)
	}

	var b strings.Builder
	b.WriteString(cteNameQ)
	b.WriteString(" AS (SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" FROM ")
	b.WriteString(table)
	b.WriteString(" ")
	b.WriteString(QuoteAliasDot(ctx.Alias))
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(preds, " AND "))
	b.WriteString(" LIMIT 1)")
	return b.String(), nil
}

// RenderCursorBoundary renders the boundary predicate (the steps
// 2-3): for each ordering prefix, all earlier columns equal the cursor
// row's columns and the next is strictly past it in the declared
// direction; the disjuncts are combined with the exact-match case so the
// anchor row is always included.
func RenderCursorBoundary(ctx *BuildContext, cteName string, plan *qcode.CursorPlan) (string, error) {
	cache := schema.CacheFor(ctx.Model)
	cteNameQ, err := QuoteAlias(cteName)
	if err != nil {
		return "", err
	}

	colExprs := make([]string, len(plan.Order))
	cteExprs := make([]string, len(plan.Order))
	for i, t := range plan.Order {
		col, _ := cache.ColumnName(t.Field)
		colQ, err := QuoteCol(col)
		if err != nil {
			return "", err
		}
		cAlias, err := QuoteCol("c" + strconv.Itoa(i))
		if err != nil {
			return "", err
		}
		colExprs[i] = QuoteAliasDot(ctx.Alias) + "." + colQ
		cteExprs[i] = cteNameQ + "." + cAlias
	}

	var disjuncts []string
	var eq []string
	for i := range plan.Order {
		eq = append(eq, colExprs[i]+" = "+cteExprs[i])
	}
	for i, t := range plan.Order {
		var parts []string
		parts = append(parts, eq[:i]...)
		op := ">"
		if t.Desc {
			op = "<"
		}
		parts = append(parts, colExprs[i]+" "+op+" "+cteExprs[i])
		disjuncts = append(disjuncts, "("+strings.Join(parts, " AND ")+")")
	}
	disjuncts = append(disjuncts, "("+strings.Join(eq, " AND ")+")")

	return "(" + strings.Join(disjuncts, " OR ") + ")", nil
}
