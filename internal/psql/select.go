package psql

import (
	"strings"

	"github.com/relq/compiler/internal/dialect"
	"github.com/relq/compiler/internal/qcode"
	"github.com/relq/compiler/relqerr"
	"github.com/relq/compiler/schema"
)

// SelectPlan is what C7 hands to C8: the scalar column list, the include
// fragments (each either a joined sub-select or a correlated subquery
// expression), and the extra joins the includes and _count fields need.
type SelectPlan struct {
	ScalarCols  []dialect.KV // column alias -> qualified column expr
	Includes    []IncludeFragment
	Joins       []qcode.Join
	IncludeMeta []*qcode.IncludeTreeMeta
}

// IncludeFragment is one relation rendered into the select list, either as
// a correlated subquery expression aliased to the relation name, or — for
// the flat-join+reduce plan — as a set of prefixed scalar columns plus a
// join the assembler places before WHERE.
type IncludeFragment struct {
	Alias      string
	Expr       string // non-empty for subquery-shaped plans
	Join       *qcode.Join
	FlatCols   []dialect.KV // non-empty for the flat-join+reduce plan
	Meta       *qcode.IncludeTreeMeta
}

// BuildSelect renders the scalar select list and every requested include
// for one model under ctx. flatJoinReduce puts every list relation that
// has no nested includes and no take/skip of its own into the flat-join
// shape instead of a subquery, for the planner's flat-join plan family.
func BuildSelect(ctx *BuildContext, model *schema.Model, args qcode.QueryArgs, flatJoinReduce bool) (*SelectPlan, error) {
	cache := schema.CacheFor(model)
	plan := &SelectPlan{}

	for _, name := range orderedScalarNames(model) {
		if args.Select != nil {
			want, explicit := args.Select[name]
			if explicit && !want {
				continue
			}
			if len(explicitlyEnabled(args.Select)) > 0 && !want {
				continue
			}
		}
		col, _ := cache.ColumnName(name)
		colQ, err := QuoteCol(col)
		if err != nil {
			return nil, err
		}
		aliasQ, err := QuoteCol(name)
		if err != nil {
			return nil, err
		}
		plan.ScalarCols = append(plan.ScalarCols, dialect.KV{
			Key:       aliasQ,
			ValueExpr: QuoteAliasDot(ctx.Alias) + "." + colQ,
		})
	}

	for _, inc := range args.Includes {
		frag, meta, err := buildIncludeFragment(ctx, model, inc, flatJoinReduce)
		if err != nil {
			return nil, err
		}
		plan.Includes = append(plan.Includes, *frag)
		plan.IncludeMeta = append(plan.IncludeMeta, meta)
	}

	for _, relField := range args.Count {
		frag, err := buildCountFragment(ctx, model, relField)
		if err != nil {
			return nil, err
		}
		plan.Includes = append(plan.Includes, *frag)
	}

	return plan, nil
}

func explicitlyEnabled(sel map[string]bool) map[string]bool {
	out := map[string]bool{}
	for k, v := range sel {
		if v {
			out[k] = true
		}
	}
	return out
}

func orderedScalarNames(model *schema.Model) []string {
	var names []string
	for _, f := range model.Fields {
		if !f.IsRelation && !strings.HasPrefix(f.Name, "@") && !strings.HasPrefix(f.Name, "//") {
			names = append(names, f.Name)
		}
	}
	return names
}

// buildIncludeFragment chooses one of C7's plan shapes per relation and
// renders it: the flat-join+reduce shape when flatJoinReduce is set and the
// list relation has no nested includes and no take/skip; on Postgres, the
// windowed plan (row 2) for a list relation with take/skip; otherwise the
// universal correlated scalar subquery (row 3). No LEFT JOIN with json_agg
// and GROUP BY shape (row 1) is produced.
func buildIncludeFragment(ctx *BuildContext, model *schema.Model, inc qcode.IncludeArg, flatJoinReduce bool) (*IncludeFragment, *qcode.IncludeTreeMeta, error) {
	field, ok := model.Field(inc.RelField)
	if !ok {
		return nil, nil, relqerr.New(relqerr.RelationError, model.Name, ctx.Path, "unknown relation field %q", inc.RelField)
	}
	if len(field.ForeignKey) == 0 || len(field.ForeignKey) != len(field.References) {
		return nil, nil, relqerr.New(relqerr.RelationError, model.Name, ctx.Path,
			"relation %q has mismatched foreignKey/references", inc.RelField)
	}

	child, err := ctx.Descend(relatedModelOf(field), inc.RelField, !flatJoinReduce)
	if err != nil {
		return nil, nil, err
	}
	isList := field.IsList()

	if flatJoinReduce && isList && len(inc.Args.Includes) == 0 && inc.Args.Take == nil && inc.Args.Skip == nil {
		return buildFlatJoinFragment(ctx, child, field, inc)
	}

	if ctx.Dialect.Name() == "postgres" && isList && (inc.Args.Take != nil || inc.Args.Skip != nil) {
		return buildLateralFragment(ctx, child, field, inc)
	}

	return buildCorrelatedFragment(ctx, child, field, inc, isList)
}

func relatedModelOf(f schema.Field) *schema.Model {
	return ResolveModel(f.RelatedModel)
}

// ResolveModel is installed by the root package at bootstrap; kept as a
// package-level hook for the same reason qcode.SetModelResolver exists —
// schema.Field cannot hold a *Model without creating an import cycle
// between schema and its own consumers.
var ResolveModel func(name string) *schema.Model
