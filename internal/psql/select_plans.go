package psql

import (
	"strings"

	"github.com/relq/compiler/internal/dialect"
	"github.com/relq/compiler/internal/qcode"
	"github.com/relq/compiler/relqerr"
	"github.com/relq/compiler/schema"
)

// buildCorrelatedFragment renders the universal plan (the include-builder
// row 3): a correlated scalar subquery returning an aggregated JSON array
// (list relations) or a single JSON object (to-one relations), wrapped
// COALESCE(..., '[]') for lists.
func buildCorrelatedFragment(ctx, child *BuildContext, field schema.Field, inc qcode.IncludeArg, isList bool) (*IncludeFragment, *qcode.IncludeTreeMeta, error) {
	childTable, err := QuoteTable(child.Model)
	if err != nil {
		return nil, nil, err
	}
	sub, err := BuildSelect(child, child.Model, inc.Args, false)
	if err != nil {
		return nil, nil, err
	}
	rowExpr, err := buildRowObject(child, sub)
	if err != nil {
		return nil, nil, err
	}

	onClause, err := joinPredicate(ctx, child, field)
	if err != nil {
		return nil, nil, err
	}

	whereClause := ""
	if inc.Args.Where != nil {
		var wb strings.Builder
		// joins produced by relation predicates nested inside an include's
		// own where are scoped to the child alias and folded into this
		// same correlated subquery's WHERE text; the assembler never needs
		// to place them outside it.
		if _, err := RenderExp(&wb, child, inc.Args.Where); err != nil {
			return nil, nil, err
		}
		whereClause = wb.String()
	}

	var body strings.Builder
	needsDerived := isList && (inc.Args.Take != nil || inc.Args.Skip != nil || len(inc.Args.OrderBy) > 0)

	if needsDerived {
		body.WriteString("SELECT * FROM (SELECT ")
		body.WriteString(rowExpr)
		body.WriteString(" AS __row FROM ")
		body.WriteString(childTable)
		body.WriteString(" ")
		body.WriteString(QuoteAliasDot(child.Alias))
		body.WriteString(" WHERE ")
		body.WriteString(onClause)
		if whereClause != "" {
			body.WriteString(" AND ")
			body.WriteString(whereClause)
		}
		if len(inc.Args.OrderBy) > 0 {
			ob, err := RenderOrderBy(child, inc.Args.OrderBy)
			if err != nil {
				return nil, nil, err
			}
			body.WriteString(" ORDER BY ")
			body.WriteString(ob)
		}
		if inc.Args.Take != nil {
			body.WriteString(" LIMIT ")
			body.WriteString(renderBound(child, inc.Args.Take))
		}
		if inc.Args.Skip != nil {
			body.WriteString(" OFFSET ")
			body.WriteString(renderBound(child, inc.Args.Skip))
		}
		body.WriteString(") __inc")
		rowExpr = "__inc.__row"
	} else {
		body.WriteString("SELECT ")
		body.WriteString(rowExpr)
		body.WriteString(" AS __row FROM ")
		body.WriteString(childTable)
		body.WriteString(" ")
		body.WriteString(QuoteAliasDot(child.Alias))
		body.WriteString(" WHERE ")
		body.WriteString(onClause)
		if whereClause != "" {
			body.WriteString(" AND ")
			body.WriteString(whereClause)
		}
		rowExpr = "__row"
	}

	var expr string
	if isList {
		expr = "COALESCE((SELECT " + ctx.Dialect.JSONAggregate(rowExpr, "") + " FROM (" + body.String() + ") __agg), '[]')"
	} else {
		expr = "(SELECT " + rowExpr + " FROM (" + body.String() + ") __agg LIMIT 1)"
	}

	meta := includeMeta(child, inc, isList, sub)
	return &IncludeFragment{Alias: inc.RelField, Expr: expr, Meta: meta}, meta, nil
}

// buildRowObject renders a dialect JSON-object builder call over a select
// plan's scalar columns plus nested include fragments.
func buildRowObject(ctx *BuildContext, sub *SelectPlan) (string, error) {
	var pairs []dialect.KV
	for _, c := range sub.ScalarCols {
		key, err := jsonKeyFromQuotedIdent(c.Key)
		if err != nil {
			return "", err
		}
		pairs = append(pairs, dialect.KV{Key: key, ValueExpr: c.ValueExpr})
	}
	for _, inc := range sub.Includes {
		key, err := sqlLiteralKey(inc.Alias)
		if err != nil {
			return "", err
		}
		pairs = append(pairs, dialect.KV{Key: key, ValueExpr: inc.Expr})
	}
	return ctx.Dialect.JSONBuildObject(pairs), nil
}

func sqlLiteralKey(name string) (string, error) {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'", nil
}

func jsonKeyFromQuotedIdent(quotedColOrAlias string) (string, error) {
	name := strings.Trim(quotedColOrAlias, `"`)
	name = strings.ReplaceAll(name, `""`, `"`)
	return sqlLiteralKey(name)
}

// buildLateralFragment renders the windowed plan (the include-builder row
// 2): an inner ROW_NUMBER() OVER (ORDER BY child-order) subquery, correlated
// to one parent row by its WHERE clause, filtered to (skip, skip+take],
// then aggregated.
func buildLateralFragment(ctx, child *BuildContext, field schema.Field, inc qcode.IncludeArg) (*IncludeFragment, *qcode.IncludeTreeMeta, error) {
	childTable, err := QuoteTable(child.Model)
	if err != nil {
		return nil, nil, err
	}
	sub, err := BuildSelect(child, child.Model, inc.Args, false)
	if err != nil {
		return nil, nil, err
	}
	rowExpr, err := buildRowObject(child, sub)
	if err != nil {
		return nil, nil, err
	}
	onClause, err := joinPredicate(ctx, child, field)
	if err != nil {
		return nil, nil, err
	}

	orderBy := "(SELECT 1)"
	terms := inc.Args.OrderBy
	terms = qcode.EnsureDeterministic(child.Model, terms, true)
	if len(terms) > 0 {
		orderBy, err = RenderOrderBy(child, terms)
		if err != nil {
			return nil, nil, err
		}
	}

	whereClause := ""
	if inc.Args.Where != nil {
		var wb strings.Builder
		if _, err := RenderExp(&wb, child, inc.Args.Where); err != nil {
			return nil, nil, err
		}
		whereClause = wb.String()
	}

	var inner strings.Builder
	inner.WriteString("SELECT ")
	inner.WriteString(rowExpr)
	inner.WriteString(" AS __row, ROW_NUMBER() OVER (ORDER BY ")
	inner.WriteString(orderBy)
	inner.WriteString(") AS __rn FROM ")
	inner.WriteString(childTable)
	inner.WriteString(" ")
	inner.WriteString(QuoteAliasDot(child.Alias))
	inner.WriteString(" WHERE ")
	inner.WriteString(onClause)
	if whereClause != "" {
		inner.WriteString(" AND ")
		inner.WriteString(whereClause)
	}

	skipExpr := "0"
	if inc.Args.Skip != nil {
		skipExpr = renderBound(child, inc.Args.Skip)
	}
	upper := "2147483647"
	if inc.Args.Take != nil {
		upper = "(" + skipExpr + " + " + renderBound(child, inc.Args.Take) + ")"
	}

	expr := "COALESCE((SELECT " + ctx.Dialect.JSONAggregate("__w.__row", "__w.__rn") +
		" FROM (" + inner.String() + ") __w WHERE __w.__rn > " + skipExpr + " AND __w.__rn <= " + upper + "), '[]')"

	meta := includeMeta(child, inc, true, sub)
	return &IncludeFragment{Alias: inc.RelField, Expr: expr, Meta: meta}, meta, nil
}

// buildFlatJoinFragment renders the flat-join+reduce plan
// table row 4): plain prefixed scalar columns plus a LEFT JOIN fragment,
// reconstructed afterward by the reducer package.
func buildFlatJoinFragment(ctx, child *BuildContext, field schema.Field, inc qcode.IncludeArg) (*IncludeFragment, *qcode.IncludeTreeMeta, error) {
	childTable, err := QuoteTable(child.Model)
	if err != nil {
		return nil, nil, err
	}
	onClause, err := joinPredicate(ctx, child, field)
	if err != nil {
		return nil, nil, err
	}

	cache := schema.CacheFor(child.Model)
	var cols []dialect.KV
	for _, name := range orderedScalarNames(child.Model) {
		col, _ := cache.ColumnName(name)
		colQ, err := QuoteCol(col)
		if err != nil {
			return nil, nil, err
		}
		prefixedAlias, err := QuoteCol(strings.Join(append(child.Path, name), "."))
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, dialect.KV{Key: prefixedAlias, ValueExpr: QuoteAliasDot(child.Alias) + "." + colQ})
	}

	join := &qcode.Join{Kind: "LEFT", Table: childTable, Alias: child.Alias, OnClause: onClause}
	meta := includeMeta(child, inc, true, nil)
	return &IncludeFragment{Alias: inc.RelField, FlatCols: cols, Join: join, Meta: meta}, meta, nil
}

// buildCountFragment renders one `_count` field: a
// LEFT JOIN to a grouped COUNT(*) subquery, folded into the row's JSON
// object under a "_count" key by the assembler.
func buildCountFragment(ctx *BuildContext, model *schema.Model, relField string) (*IncludeFragment, error) {
	field, ok := model.Field(relField)
	if !ok {
		return nil, relqerr.New(relqerr.RelationError, model.Name, ctx.Path, "unknown relation field %q for _count", relField)
	}
	if len(field.ForeignKey) != 1 || len(field.References) != 1 {
		return nil, relqerr.New(relqerr.RelationError, model.Name, ctx.Path,
			"_count on %q requires a single-column foreignKey/references pair", relField)
	}
	relModel := ResolveModel(field.RelatedModel)
	if relModel == nil {
		return nil, relqerr.New(relqerr.RelationError, model.Name, ctx.Path, "cannot resolve related model for %q", relField)
	}
	child, err := ctx.Descend(relModel, relField, true)
	if err != nil {
		return nil, err
	}
	childTable, err := QuoteTable(relModel)
	if err != nil {
		return nil, err
	}

	var fkCol, refCol string
	if field.IsForeignKeyLocal {
		refCol, fkCol = field.ForeignKey[0], field.References[0]
	} else {
		refCol, fkCol = field.References[0], field.ForeignKey[0]
	}
	fkColQ, err := QuoteCol(fkCol)
	if err != nil {
		return nil, err
	}
	refColQ, err := QuoteCol(refCol)
	if err != nil {
		return nil, err
	}

	sub := "(SELECT " + fkColQ + ", COUNT(*) AS __n FROM " + childTable + " GROUP BY " + fkColQ + ")"
	joinAlias := child.Alias
	onClause := QuoteAliasDot(ctx.Alias) + "." + refColQ + " = " + QuoteAliasDot(joinAlias) + "." + fkColQ

	expr := "COALESCE(" + QuoteAliasDot(joinAlias) + ".__n, 0)"
	key, _ := sqlLiteralKey(relField)
	return &IncludeFragment{
		Alias: "_count",
		Expr:  ctx.Dialect.JSONBuildObject([]dialect.KV{{Key: key, ValueExpr: expr}}),
		Join:  &qcode.Join{Kind: "LEFT", Table: sub, Alias: joinAlias, OnClause: onClause},
	}, nil
}

func includeMeta(child *BuildContext, inc qcode.IncludeArg, isList bool, sub *SelectPlan) *qcode.IncludeTreeMeta {
	cache := schema.CacheFor(child.Model)
	var pkCols []string
	for _, pk := range cache.PrimaryKey() {
		pkCols = append(pkCols, strings.Join(append(append([]string(nil), child.Path...), pk.Name), "."))
	}
	m := &qcode.IncludeTreeMeta{Path: append([]string(nil), child.Path...), PKColumns: pkCols, IsList: isList}
	if sub != nil {
		m.Children = sub.IncludeMeta
	}
	return m
}
