package psql

import (
	"strings"

	"github.com/relq/compiler/internal/dialect"
	"github.com/relq/compiler/internal/qcode"
	"github.com/relq/compiler/params"
	"github.com/relq/compiler/planner"
	"github.com/relq/compiler/relqerr"
	"github.com/relq/compiler/schema"
)

// CompileFastPath renders one of the planner's canned templates directly,
// bypassing the WHERE builder, include builder, and general assembly
// grammar entirely (§4.9's "bypass the general pipeline"). It still goes
// through the same identifier sanitizer and parameter store as the general
// pipeline — only the SQL shape is hand-written, not the safety gates.
func CompileFastPath(fp planner.FastPath, model *schema.Model, args qcode.QueryArgs, d dialect.Dialect) (*Result, error) {
	store := params.NewStore(toParamsDialect(d))
	ctx := NewRootContext(model, d, store)

	table, err := QuoteTable(model)
	if err != nil {
		return nil, err
	}

	var sql string
	switch fp {
	case planner.FastPathCountAll:
		sql = "SELECT COUNT(*) FROM " + table

	case planner.FastPathFindUniqueByID:
		leaf := singlePKLeaf(args.Where)
		if leaf == nil {
			return nil, relqerr.New(relqerr.Critical, model.Name, nil, "fast path findUniqueByID without a single pk leaf")
		}
		cols, err := fastPathColumnList(ctx, model)
		if err != nil {
			return nil, err
		}
		colQ, err := pkColumn(model, leaf.Field)
		if err != nil {
			return nil, err
		}
		ph := store.Add(leaf.Value)
		sql = "SELECT " + cols + " FROM " + table + " " + QuoteAliasDot(ctx.Alias) +
			" WHERE " + QuoteAliasDot(ctx.Alias) + "." + colQ + " = " + ph + " LIMIT 1"

	case planner.FastPathFindManyByIDs:
		leaf := singlePKLeaf(args.Where)
		if leaf == nil {
			return nil, relqerr.New(relqerr.Critical, model.Name, nil, "fast path findManyByIDs without a single pk leaf")
		}
		cols, err := fastPathColumnList(ctx, model)
		if err != nil {
			return nil, err
		}
		colQ, err := pkColumn(model, leaf.Field)
		if err != nil {
			return nil, err
		}
		clause := renderInClause(ctx, QuoteAliasDot(ctx.Alias)+"."+colQ, leaf.Value, false)
		sql = "SELECT " + cols + " FROM " + table + " " + QuoteAliasDot(ctx.Alias) + " WHERE " + clause

	case planner.FastPathFindManyLimitOnly:
		cols, err := fastPathColumnList(ctx, model)
		if err != nil {
			return nil, err
		}
		sql = "SELECT " + cols + " FROM " + table + " " + QuoteAliasDot(ctx.Alias) + " LIMIT " + renderBound(ctx, args.Take)

	default:
		return nil, relqerr.New(relqerr.Critical, model.Name, nil, "unrecognized fast path %d", fp)
	}

	if err := ValidatePlaceholderDensity(sql, d, store); err != nil {
		return nil, err
	}
	return &Result{SQL: sql, Store: store}, nil
}

func fastPathColumnList(ctx *BuildContext, model *schema.Model) (string, error) {
	cache := schema.CacheFor(model)
	var parts []string
	for _, name := range orderedScalarNames(model) {
		col, _ := cache.ColumnName(name)
		colQ, err := QuoteCol(col)
		if err != nil {
			return "", err
		}
		aliasQ, err := QuoteCol(name)
		if err != nil {
			return "", err
		}
		parts = append(parts, QuoteAliasDot(ctx.Alias)+"."+colQ+" AS "+aliasQ)
	}
	if len(parts) == 0 {
		return "1", nil
	}
	return strings.Join(parts, ", "), nil
}

func pkColumn(model *schema.Model, field string) (string, error) {
	cache := schema.CacheFor(model)
	col, _ := cache.ColumnName(field)
	return QuoteCol(col)
}

// singlePKLeaf unwraps the top-level AND that BuildWhere always produces,
// returning the sole equals/in leaf when there's exactly one child.
func singlePKLeaf(where *qcode.Exp) *qcode.Exp {
	if where == nil || where.Op != qcode.OpAnd || len(where.Children) != 1 {
		return nil
	}
	leaf := where.Children[0]
	if leaf.Op != qcode.OpEquals && leaf.Op != qcode.OpIn {
		return nil
	}
	return leaf
}
