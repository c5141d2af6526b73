// Package planner implements the query planner: given a
// compiled set of top-level include relations it decides whether to emit one
// statement or split unpaginated one-to-many children into detached
// WhereInSegments, and it enforces the one safety check that belongs before
// compilation even starts (negative take requires an explicit orderBy).
package planner

import (
	"github.com/relq/compiler/internal/qcode"
	"github.com/relq/compiler/relqerr"
)

// HardFanoutCap is the default ceiling past which a single unpaginated
// one-to-many sibling is split into a WhereInSegment even when parentCount
// is known. Decide falls back to it whenever its hardFanoutCap argument is
// zero or negative; relq.Compile always passes 0, so Config.HardFanoutCap
// is loaded but does not change this value.
const HardFanoutCap = 5000

// DefaultFanout is the assumed average child-row count per parent when no
// fanout statistics are supplied.
const DefaultFanout = 10

// FanoutStats carries the optional, caller-supplied cardinality estimate for
// one relation: avg is the average child-row count per parent and coverage
// is the fraction of parent rows that have at least one child. Both are
// advisory; absent stats fall back to DefaultFanout.
type FanoutStats struct {
	Avg      float64
	Coverage float64
}

// EffectiveFanout applies the coverage-corrected fanout formula from
// 1 + coverage*(avg-1).
func (s FanoutStats) EffectiveFanout() float64 {
	return 1 + s.Coverage*(s.Avg-1)
}

// Relation describes one top-level include the planner must classify.
type Relation struct {
	Field             string // the include's relation field name on the parent model
	IsList            bool   // one-to-many (list) vs to-one
	Paginated         bool   // carries its own take/skip/cursor/orderBy-with-limit
	HasNestedIncludes bool   // carries its own nested include(s) one level deeper
	Stats             *FanoutStats
}

// WhereInSegment is a detached child relation the compiler renders as its
// own self-contained statement, carrying the relation field name and the
// original relation args. Decide leaves ParentKey and ChildKey empty; the
// caller derives the IN-filter key from the relation field's metadata.
type WhereInSegment struct {
	Field      string
	ParentKey  string // parent-side column the segment's IN list is built from
	ChildKey   string // child-side FK column the segment filters on
	Args       qcode.QueryArgs
}

// Plan is the planner's verdict for one (model, method, args) compile.
type Plan struct {
	// Segments, when non-empty, names the top-level relations split out of
	// the main statement; the caller must compile each one independently
	// (as a WhereInSegment) and the parent statement with those relations
	// removed from its select plan.
	Segments []WhereInSegment
	// EstimatedFlatJoinRows is the step-3 estimate that drove the verdict,
	// kept around for logging.
	EstimatedFlatJoinRows float64
	// FlatJoinReduce is C9's choice of the flat-join+reduce plan family
	// (plan table row 4) over the per-relation subquery shapes: every
	// relation is joined flat into one row stream and C10's reducer folds
	// it back into nested objects client-side. Only considered once
	// Segments is empty — it's an alternative to, not a companion of, the
	// WHERE-IN split.
	FlatJoinReduce bool
}

// Decide runs the plan-family decision end to end. parentCount is the caller's
// estimate of how many parent rows the query will return (-1 if unknown);
// it only matters when deciding the single-sibling case in step 5.
func Decide(args qcode.QueryArgs, relations []Relation, parentCount int, hardFanoutCap int) (Plan, error) {
	if err := RejectBadNegativeTake(args); err != nil {
		return Plan{}, err
	}
	if hardFanoutCap <= 0 {
		hardFanoutCap = HardFanoutCap
	}

	unpaginated := unpaginatedOneToMany(relations)
	estimate := estimateFlatJoinRows(parentCount, unpaginated)

	// step 4: two or more unpaginated one-to-many siblings always split.
	if len(unpaginated) >= 2 {
		return Plan{Segments: toSegments(unpaginated, args), EstimatedFlatJoinRows: estimate}, nil
	}
	// step 5: exactly one such sibling splits when parentCount is unknown
	// or the fanout estimate exceeds the hard cap.
	if len(unpaginated) == 1 && (parentCount < 0 || estimate > float64(hardFanoutCap)) {
		return Plan{Segments: toSegments(unpaginated, args), EstimatedFlatJoinRows: estimate}, nil
	}
	// step 6: otherwise keep the single statement, optionally in the
	// flat-join+reduce shape.
	return Plan{EstimatedFlatJoinRows: estimate, FlatJoinReduce: qualifiesForFlatJoinReduce(args, relations)}, nil
}

// qualifiesForFlatJoinReduce implements the flat-join+reduce plan family's
// predicate (plan table row 4): the outer query has a LIMIT, every
// top-level relation carries no pagination of its own and no deeper nested
// relation, and there's at least one relation to fold — a query with no
// includes has nothing for the reducer to reduce.
func qualifiesForFlatJoinReduce(args qcode.QueryArgs, relations []Relation) bool {
	if args.Take == nil || len(relations) == 0 {
		return false
	}
	for _, r := range relations {
		if r.Paginated || r.HasNestedIncludes {
			return false
		}
	}
	return true
}

// RejectBadNegativeTake enforces that a negative take is
// only meaningful relative to an explicit ordering (it reverses the order
// and takes from the tail), so it's rejected without one.
func RejectBadNegativeTake(args qcode.QueryArgs) error {
	if args.Take != nil && !args.Take.IsVar && args.Take.Lit < 0 && len(args.OrderBy) == 0 {
		return relqerr.New(relqerr.ValidationError, "", nil, "negative take requires an explicit orderBy")
	}
	return nil
}

func unpaginatedOneToMany(relations []Relation) []Relation {
	var out []Relation
	for _, r := range relations {
		if r.IsList && !r.Paginated {
			out = append(out, r)
		}
	}
	return out
}

// estimateFlatJoinRows computes:
// flatJoinRows ≈ parentCount × product(effectiveFanout).
func estimateFlatJoinRows(parentCount int, relations []Relation) float64 {
	if parentCount < 0 {
		parentCount = 1
	}
	product := 1.0
	for _, r := range relations {
		if r.Stats != nil {
			product *= r.Stats.EffectiveFanout()
		} else {
			product *= DefaultFanout
		}
	}
	return float64(parentCount) * product
}

func toSegments(relations []Relation, args qcode.QueryArgs) []WhereInSegment {
	segs := make([]WhereInSegment, 0, len(relations))
	for _, r := range relations {
		var sub qcode.QueryArgs
		for _, inc := range args.Includes {
			if inc.RelField == r.Field {
				sub = inc.Args
				break
			}
		}
		segs = append(segs, WhereInSegment{Field: r.Field, Args: sub})
	}
	return segs
}
