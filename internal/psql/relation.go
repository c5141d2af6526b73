package psql

import (
	"strings"

	"github.com/relq/compiler/internal/qcode"
	"github.com/relq/compiler/relqerr"
	"github.com/relq/compiler/schema"
)

// renderRelationPredicate renders one relation-typed WHERE predicate
// some -> correlated EXISTS, every -> NOT EXISTS of the
// negated inner filter, none -> NOT EXISTS (or the caller's LEFT JOIN
// optimization when the sub-filter is empty), is/isNot -> EXISTS/NOT EXISTS
// against the related row (or a plain NULL check on local FK columns when
// the current side owns the foreign key).
func renderRelationPredicate(ctx *BuildContext, ex *qcode.Exp) (string, []qcode.Join, error) {
	field, ok := ctx.Model.Field(ex.RelField)
	if !ok {
		return "", nil, relqerr.New(relqerr.RelationError, ctx.Model.Name, ctx.Path, "unknown relation field %q", ex.RelField)
	}
	if len(field.ForeignKey) == 0 || len(field.ForeignKey) != len(field.References) {
		return "", nil, relqerr.New(relqerr.RelationError, ctx.Model.Name, ctx.Path,
			"relation %q has mismatched foreignKey/references", ex.RelField)
	}

	if ex.Op == qcode.OpRelationIs && field.IsForeignKeyLocal && ex.Sub != nil && isNullCheckOnly(ex.Sub) {
		return renderLocalFKNullCheck(ctx, field)
	}

	if ex.Op == qcode.OpRelationNone && ex.NoneEmptyOptimized {
		return renderNoneEmptyOptimized(ctx, ex, field)
	}

	child, err := ctx.Descend(ex.RelModel, ex.RelField, true)
	if err != nil {
		return "", nil, err
	}
	childTable, err := QuoteTable(ex.RelModel)
	if err != nil {
		return "", nil, err
	}

	onClause, err := joinPredicate(ctx, child, field)
	if err != nil {
		return "", nil, err
	}

	var body strings.Builder
	body.WriteString("SELECT 1 FROM ")
	body.WriteString(childTable)
	body.WriteString(" ")
	body.WriteString(QuoteAliasDot(child.Alias))
	body.WriteString(" WHERE ")
	body.WriteString(onClause)

	if ex.Op == qcode.OpRelationEvery {
		// every(sub) == NOT EXISTS(child WHERE fk-join AND NOT (sub))
		body.WriteString(" AND NOT (")
		if ex.Sub != nil {
			if _, err := RenderExp(&body, child, ex.Sub); err != nil {
				return "", nil, err
			}
		}
		body.WriteString(")")
		return "NOT EXISTS (" + body.String() + ")", nil, nil
	}

	if ex.Sub != nil {
		body.WriteString(" AND ")
		if _, err := RenderExp(&body, child, ex.Sub); err != nil {
			return "", nil, err
		}
	}

	switch ex.Op {
	case qcode.OpRelationSome, qcode.OpRelationIs:
		return "EXISTS (" + body.String() + ")", nil, nil
	case qcode.OpRelationNone, qcode.OpRelationIsNot:
		return "NOT EXISTS (" + body.String() + ")", nil, nil
	default:
		return "", nil, relqerr.New(relqerr.Critical, ctx.Model.Name, ctx.Path, "unhandled relation op %d", ex.Op)
	}
}

func isNullCheckOnly(ex *qcode.Exp) bool {
	return ex.Op == qcode.OpAnd && len(ex.Children) == 0
}

// renderNoneEmptyOptimized renders the bare `none: {}` optimization
// §4.5, end-to-end scenario 6): a LEFT JOIN against the related table plus
// an IS NULL check on the column the child uses to reference the parent,
// instead of a NOT EXISTS subquery.
func renderNoneEmptyOptimized(ctx *BuildContext, ex *qcode.Exp, field schema.Field) (string, []qcode.Join, error) {
	child, err := ctx.Descend(ex.RelModel, ex.RelField, false)
	if err != nil {
		return "", nil, err
	}
	childTable, err := QuoteTable(ex.RelModel)
	if err != nil {
		return "", nil, err
	}
	onClause, err := joinPredicate(ctx, child, field)
	if err != nil {
		return "", nil, err
	}

	childCol := field.ForeignKey[0]
	if field.IsForeignKeyLocal {
		childCol = field.References[0]
	}
	childColQ, err := QuoteCol(childCol)
	if err != nil {
		return "", nil, err
	}

	join := qcode.Join{Kind: "LEFT", Table: childTable, Alias: child.Alias, OnClause: onClause, NoneOptimized: true}
	pred := QuoteAliasDot(child.Alias) + "." + childColQ + " IS NULL"
	return pred, []qcode.Join{join}, nil
}

// renderLocalFKNullCheck renders "is: null"-shaped checks against an
// owner-side relation as a plain NULL test on the local FK columns,
// avoiding an unnecessary subquery for the to-one `is null` case.
func renderLocalFKNullCheck(ctx *BuildContext, field schema.Field) (string, []qcode.Join, error) {
	var parts []string
	for _, fk := range field.ForeignKey {
		col, err := QuoteCol(fk)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, QuoteAliasDot(ctx.Alias)+"."+col+" IS NULL")
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil, nil
}

// joinPredicate derives the pairwise equality join condition between the
// parent alias (in ctx) and the child alias (in child), honoring
// IsForeignKeyLocal to pick which side's columns are the FK vs the
// referenced key.
func joinPredicate(ctx, child *BuildContext, field schema.Field) (string, error) {
	var parts []string
	for i := range field.ForeignKey {
		var parentCol, childCol string
		if field.IsForeignKeyLocal {
			parentCol = field.ForeignKey[i]
			childCol = field.References[i]
		} else {
			parentCol = field.References[i]
			childCol = field.ForeignKey[i]
		}
		pc, err := QuoteCol(parentCol)
		if err != nil {
			return "", err
		}
		cc, err := QuoteCol(childCol)
		if err != nil {
			return "", err
		}
		parts = append(parts, QuoteAliasDot(ctx.Alias)+"."+pc+" = "+QuoteAliasDot(child.Alias)+"."+cc)
	}
	return strings.Join(parts, " AND "), nil
}
