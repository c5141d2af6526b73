package planner

import "github.com/relq/compiler/internal/qcode"

// FastPath names one of the canned shapes the planner allows the compiler
// to bypass the general pipeline for entirely.
type FastPath int

const (
	// NoFastPath means the general pipeline must run.
	NoFastPath FastPath = iota
	// FastPathFindUniqueByID is findUnique filtered by a single scalar
	// equality on the primary key, no includes, no ordering.
	FastPathFindUniqueByID
	// FastPathFindManyByIDs is findMany filtered by a primary-key `in`
	// list, no other options.
	FastPathFindManyByIDs
	// FastPathCountAll is count(*) with no where clause.
	FastPathCountAll
	// FastPathFindManyLimitOnly is findMany with only a `take`, no where,
	// include, orderBy, skip, cursor, or distinct.
	FastPathFindManyLimitOnly
)

// DetectFastPath recognizes the small, enumerated set of query shapes
// that the planner recognizes for a canned template instead of the general
// qcode/psql pipeline: findUnique by a single PK equality, findMany by PK-in
// with no options, bare count(*), and findMany bounded only by take.
func DetectFastPath(method qcode.Method, args qcode.QueryArgs, pkFields []string) FastPath {
	bare := len(args.Includes) == 0 && len(args.OrderBy) == 0 && args.Skip == nil &&
		len(args.Cursor) == 0 && len(args.Distinct) == 0 && len(args.Count) == 0

	if method == qcode.MethodCount && args.Where == nil && bare {
		return FastPathCountAll
	}

	if !bare {
		return NoFastPath
	}

	switch method {
	case qcode.MethodFindUnique:
		if isSinglePKEquality(args.Where, pkFields) {
			return FastPathFindUniqueByID
		}
	case qcode.MethodFindMany:
		if args.Where == nil && args.Take != nil {
			return FastPathFindManyLimitOnly
		}
		if isSinglePKIn(args.Where, pkFields) && args.Take == nil {
			return FastPathFindManyByIDs
		}
	}
	return NoFastPath
}

// isSinglePKEquality reports whether where is exactly `AND(pk = value)` for
// one of the model's primary-key fields, the shape ParseQueryArgs produces
// for `{ where: { id: 5 } }`.
func isSinglePKEquality(where *qcode.Exp, pkFields []string) bool {
	leaf := singleChild(where)
	if leaf == nil || leaf.Op != qcode.OpEquals {
		return false
	}
	return contains(pkFields, leaf.Field)
}

// isSinglePKIn reports whether where is exactly `AND(pk IN (...))`.
func isSinglePKIn(where *qcode.Exp, pkFields []string) bool {
	leaf := singleChild(where)
	if leaf == nil || leaf.Op != qcode.OpIn {
		return false
	}
	return contains(pkFields, leaf.Field)
}

// singleChild unwraps the top-level AND that BuildWhere always produces,
// returning the sole leaf child when there's exactly one, else nil.
func singleChild(where *qcode.Exp) *qcode.Exp {
	if where == nil || where.Op != qcode.OpAnd || len(where.Children) != 1 {
		return nil
	}
	return where.Children[0]
}

func contains(xs []string, x string) bool {
	for _, s := range xs {
		if s == x {
			return true
		}
	}
	return false
}
