package psql

import (
	"strconv"
	"strings"

	"github.com/relq/compiler/internal/dialect"
	"github.com/relq/compiler/internal/qcode"
	"github.com/relq/compiler/params"
	"github.com/relq/compiler/relqerr"
	"github.com/relq/compiler/schema"
)

// Result is what CompileQuery hands back to the planner/root package:
// the rendered SQL, the ParamStore it was built against, whether the
// statement needs C10 reduction, and the include-tree metadata the
// reducer consumes.
type Result struct {
	SQL               string
	Store             *params.Store
	RequiresReduction bool
	IncludeMeta       []*qcode.IncludeTreeMeta
}

// CompileQuery assembles the final SELECT statement for one
// model/method/args combination. flatJoinReduce selects the flat-join+reduce
// plan for list includes that have no nested includes and no take/skip, as
// decided by the planner (C9).
func CompileQuery(model *schema.Model, args qcode.QueryArgs, d dialect.Dialect, flatJoinReduce bool) (*Result, error) {
	store := params.NewStore(toParamsDialect(d))
	ctx := NewRootContext(model, d, store)

	selPlan, err := BuildSelect(ctx, model, args, flatJoinReduce)
	if err != nil {
		return nil, err
	}

	whereClause := ""
	var whereJoins []qcode.Join
	if args.Where != nil {
		var wb strings.Builder
		js, err := RenderExp(&wb, ctx, args.Where)
		if err != nil {
			return nil, err
		}
		whereClause = wb.String()
		whereJoins = js
	}

	var cursorCTE, cursorPred string
	if len(args.Cursor) > 0 {
		cursorPlan, err := qcode.BuildCursorPlan("__tp_cursor", args.OrderBy, qcode.CursorArg(args.Cursor))
		if err != nil {
			return nil, err
		}
		if d.Name() == "sqlite" && len(args.Distinct) > 0 {
			return nil, relqerr.New(relqerr.ValidationError, model.Name, nil,
				"cursor pagination cannot combine with distinct under sqlite")
		}
		cursorCTE, err = RenderCursorCTE(ctx, "__tp_cursor", cursorPlan)
		if err != nil {
			return nil, err
		}
		cursorPred, err = RenderCursorBoundary(ctx, "__tp_cursor", cursorPlan)
		if err != nil {
			return nil, err
		}
	}

	orderBySQL := ""
	if len(args.OrderBy) > 0 {
		orderBySQL, err = RenderOrderBy(ctx, args.OrderBy)
		if err != nil {
			return nil, err
		}
	}

	table, err := QuoteTable(model)
	if err != nil {
		return nil, err
	}

	sql, requiresReduction, err := assemble(ctx, assembleInput{
		table:       table,
		selPlan:     selPlan,
		whereClause: whereClause,
		whereJoins:  whereJoins,
		cursorCTE:   cursorCTE,
		cursorPred:  cursorPred,
		orderBySQL:  orderBySQL,
		args:        args,
		flatJoinReduce: flatJoinReduce,
	})
	if err != nil {
		return nil, err
	}

	if err := ValidatePlaceholderDensity(sql, d, store); err != nil {
		return nil, err
	}

	return &Result{SQL: sql, Store: store, RequiresReduction: requiresReduction, IncludeMeta: selPlan.IncludeMeta}, nil
}

// CompileCount assembles a `SELECT COUNT(*)` statement for the `count`
// method when no fast path applies: it reuses the WHERE builder's relation-join handling but
// ignores select/include/orderBy/distinct/cursor entirely, since a row
// count has no columns or ordering to project.
func CompileCount(model *schema.Model, args qcode.QueryArgs, d dialect.Dialect) (*Result, error) {
	store := params.NewStore(toParamsDialect(d))
	ctx := NewRootContext(model, d, store)

	table, err := QuoteTable(model)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT COUNT(*) FROM ")
	b.WriteString(table)
	b.WriteString(" ")
	b.WriteString(QuoteAliasDot(ctx.Alias))

	if args.Where != nil {
		var wb strings.Builder
		joins, err := RenderExp(&wb, ctx, args.Where)
		if err != nil {
			return nil, err
		}
		for _, j := range joins {
			writeJoin(&b, j)
		}
		b.WriteString(" WHERE ")
		b.WriteString(wb.String())
	}

	sql := b.String()
	if err := ValidatePlaceholderDensity(sql, d, store); err != nil {
		return nil, err
	}
	return &Result{SQL: sql, Store: store}, nil
}

func toParamsDialect(d dialect.Dialect) params.Dialect {
	if d.Name() == "sqlite" {
		return params.SQLite
	}
	return params.Postgres
}

type assembleInput struct {
	table          string
	selPlan        *SelectPlan
	whereClause    string
	whereJoins     []qcode.Join
	cursorCTE      string
	cursorPred     string
	orderBySQL     string
	args           qcode.QueryArgs
	flatJoinReduce bool
}

// assemble renders the final statement's assembly grammar. SQLite
// distinct emulation wraps the base query in an outer ROW_NUMBER filter;
// Postgres distinct uses native DISTINCT ON.
func assemble(ctx *BuildContext, in assembleInput) (string, bool, error) {
	var b strings.Builder

	if in.cursorCTE != "" {
		b.WriteString("WITH ")
		b.WriteString(in.cursorCTE)
		b.WriteString(" ")
	}

	useDistinctOn := len(in.args.Distinct) > 0 && ctx.Dialect.SupportsDistinctOn()
	useRowNumberDistinct := len(in.args.Distinct) > 0 && !ctx.Dialect.SupportsDistinctOn()

	b.WriteString("SELECT ")
	if useDistinctOn {
		cols, err := quotedDistinctCols(ctx, in.args.Distinct)
		if err != nil {
			return "", false, err
		}
		b.WriteString(ctx.Dialect.DistinctOnPrefix(cols))
	}

	requiresReduction := false
	selectList, err := renderSelectList(in.selPlan, &requiresReduction)
	if err != nil {
		return "", false, err
	}
	b.WriteString(selectList)

	if useRowNumberDistinct {
		b.WriteString(", ROW_NUMBER() OVER (PARTITION BY ")
		cols, err := quotedDistinctCols(ctx, in.args.Distinct)
		if err != nil {
			return "", false, err
		}
		b.WriteString(strings.Join(cols, ", "))
		b.WriteString(" ORDER BY ")
		b.WriteString(in.orderBySQL)
		b.WriteString(") AS __tp_rn")
	}

	b.WriteString(" FROM ")
	b.WriteString(in.table)
	b.WriteString(" ")
	b.WriteString(QuoteAliasDot(ctx.Alias))

	if in.cursorCTE != "" {
		b.WriteString(", __tp_cursor")
	}

	for _, inc := range in.selPlan.Includes {
		if inc.Join != nil {
			writeJoin(&b, *inc.Join)
		}
	}
	for _, j := range in.whereJoins {
		writeJoin(&b, j)
	}

	conds := []string{}
	if in.whereClause != "" {
		conds = append(conds, in.whereClause)
	}
	if in.cursorPred != "" {
		conds = append(conds, in.cursorPred)
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}

	if in.flatJoinReduce {
		// flat-join rows are deduplicated and folded by the reducer; no
		// GROUP BY is emitted here.
	}

	if in.orderBySQL != "" && !useRowNumberDistinct {
		b.WriteString(" ORDER BY ")
		b.WriteString(in.orderBySQL)
	}

	if !useRowNumberDistinct {
		applyLimitOffset(&b, ctx, in.args)
	}

	sql := b.String()
	if useRowNumberDistinct {
		outerOrder, err := outerOrderByAliases(in.args.OrderBy)
		if err != nil {
			return "", false, err
		}
		sql = wrapRowNumberDistinct(ctx, sql, in.args, outerOrder)
	}
	return sql, requiresReduction, nil
}

func renderSelectList(plan *SelectPlan, requiresReduction *bool) (string, error) {
	var parts []string
	for _, c := range plan.ScalarCols {
		parts = append(parts, c.ValueExpr+" AS "+c.Key)
	}
	for _, inc := range plan.Includes {
		if len(inc.FlatCols) > 0 {
			*requiresReduction = true
			for _, c := range inc.FlatCols {
				parts = append(parts, c.ValueExpr+" AS "+c.Key)
			}
			continue
		}
		aliasQ, err := QuoteCol(inc.Alias)
		if err != nil {
			return "", err
		}
		parts = append(parts, inc.Expr+" AS "+aliasQ)
	}
	if len(parts) == 0 {
		parts = append(parts, "1")
	}
	return strings.Join(parts, ", "), nil
}

func writeJoin(b *strings.Builder, j qcode.Join) {
	b.WriteString(" ")
	b.WriteString(j.Kind)
	b.WriteString(" JOIN ")
	b.WriteString(j.Table)
	b.WriteString(" ")
	b.WriteString(QuoteAliasDot(j.Alias))
	b.WriteString(" ON ")
	b.WriteString(j.OnClause)
}

func quotedDistinctCols(ctx *BuildContext, fields []string) ([]string, error) {
	cache := schema.CacheFor(ctx.Model)
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		col, _ := cache.ColumnName(f)
		colQ, err := QuoteCol(col)
		if err != nil {
			return nil, err
		}
		cols = append(cols, QuoteAliasDot(ctx.Alias)+"."+colQ)
	}
	return cols, nil
}

func applyLimitOffset(b *strings.Builder, ctx *BuildContext, args qcode.QueryArgs) {
	if args.Take != nil {
		b.WriteString(" LIMIT ")
		b.WriteString(renderBound(ctx, args.Take))
	}
	if args.Skip != nil {
		b.WriteString(" OFFSET ")
		b.WriteString(renderBound(ctx, args.Skip))
	}
}

// renderBound renders a PaginationBound as either a literal integer or, for
// a dynamic-parameter marker, a bound placeholder resolved by the caller at
// execution time.
func renderBound(ctx *BuildContext, b *qcode.PaginationBound) string {
	if b.IsVar {
		return ctx.Store.Add(b.Var)
	}
	return strconv.Itoa(b.Lit)
}

// wrapRowNumberDistinct wraps inner (which already selects a __tp_rn
// window column) in an outer filter for __tp_rn = 1, moving ORDER BY and
// LIMIT/OFFSET to the outermost level. The outer ORDER BY
// references the inner query's own column aliases rather than the
// original table alias, which is out of scope once wrapped.
func wrapRowNumberDistinct(ctx *BuildContext, inner string, args qcode.QueryArgs, outerOrder string) string {
	var b strings.Builder
	b.WriteString("SELECT * FROM (")
	b.WriteString(inner)
	b.WriteString(") __tp_distinct WHERE __tp_rn = 1")
	if outerOrder != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(outerOrder)
	}
	if args.Take != nil {
		b.WriteString(" LIMIT ")
		b.WriteString(renderBound(ctx, args.Take))
	}
	if args.Skip != nil {
		b.WriteString(" OFFSET ")
		b.WriteString(renderBound(ctx, args.Skip))
	}
	return b.String()
}

// outerOrderByAliases renders an ORDER BY body using bare column aliases
// (as selected by the inner query) for use once the original table alias
// has gone out of scope behind a derived-table wrap.
func outerOrderByAliases(terms []qcode.OrderTerm) (string, error) {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		colQ, err := QuoteCol(t.Field)
		if err != nil {
			return "", err
		}
		dir := "ASC"
		if t.Desc {
			dir = "DESC"
		}
		parts = append(parts, colQ+" "+dir)
	}
	return strings.Join(parts, ", "), nil
}
