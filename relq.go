// Package relq is the compiler's public façade: Compile turns
// one (model, method, args) request into parameterized SQL, splitting it
// into WHERE-IN segments when the planner decides fanout warrants it.
// Grounded on GraphJin's top-level graphjinEngine/NewGraphJin(conf,
// db, options...) entrypoint shape (core/core.go, core/api.go), reduced to
// a pure compiler with no database handle.
package relq

import (
	"log"
	"sync"

	"github.com/relq/compiler/internal/dialect"
	"github.com/relq/compiler/internal/psql"
	"github.com/relq/compiler/internal/qcode"
	"github.com/relq/compiler/params"
	"github.com/relq/compiler/planner"
	"github.com/relq/compiler/relqerr"
	"github.com/relq/compiler/schema"
)

// Method is the request's top-level verb.
type Method = qcode.Method

const (
	FindUnique = qcode.MethodFindUnique
	FindFirst  = qcode.MethodFindFirst
	FindMany   = qcode.MethodFindMany
	Count      = qcode.MethodCount
)

// Dialect selects the target SQL dialect. DialectUnset defers to whatever
// SetDefaultDialect last configured (Postgres if never called), letting
// Compile's dialect parameter stay mandatory in signature while still
// supporting a process-wide default the way GraphJin's single
// conf.DBType does (DESIGN.md Open Question 3).
type Dialect int

const (
	DialectUnset Dialect = iota
	Postgres
	SQLite
)

func (d Dialect) toInternal() dialect.Dialect {
	if d == SQLite {
		return dialect.SQLite{}
	}
	return dialect.Postgres{}
}

// QueryArgs is the raw caller-supplied options tree:
// where/select/include/orderBy/take/skip/cursor/distinct.
type QueryArgs = map[string]interface{}

// Segment is one detached WHERE-IN child statement the planner split out of
// the main statement; the caller executes it
// independently, typically via planner.RunBatch.
type Segment struct {
	Field string
	SQL   string
	Store *params.Store
}

// Result is everything one Compile call produces.
type Result struct {
	SQL               string
	Store             *params.Store
	RequiresReduction bool
	IncludeMeta       []*qcode.IncludeTreeMeta
	Segments          []Segment
}

var (
	registryMu     sync.RWMutex
	modelsByName   = map[string]*schema.Model{}
	defaultDialect = Postgres
	logger         *log.Logger
	planCache      *planner.Cache
)

func init() {
	planCache, _ = planner.NewCache(planner.DefaultPlanCacheSize)
}

// RegisterModels installs the schema graph at bootstrap ("a
// sequence of Models ... provided once at bootstrap"), wiring the
// qcode/psql package-level model-resolver hooks that let relation fields
// resolve their related Model without an import cycle between schema and
// its consumers.
func RegisterModels(models []*schema.Model) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, m := range models {
		modelsByName[m.Name] = m
	}
	qcode.SetModelResolver(resolveModel)
	psql.ResolveModel = resolveModel
}

func resolveModel(name string) *schema.Model {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return modelsByName[name]
}

// SetDefaultDialect sets the dialect Compile falls back to when called with
// DialectUnset.
func SetDefaultDialect(d Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	defaultDialect = d
}

// SetLogger installs the optional debug logger (the ambient logging
// concern, grounded on GraphJin's gj.log.Printf debug idiom); nil (the
// zero value) disables logging, which is also the default.
func SetLogger(l *log.Logger) {
	registryMu.Lock()
	defer registryMu.Unlock()
	logger = l
}

func resolveDialect(d Dialect) Dialect {
	if d != DialectUnset {
		return d
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	return defaultDialect
}

// Compile translates one (model, method, args) request into parameterized
// SQL. It runs the full pipeline: qcode.ParseQueryArgs
// builds the WHERE/order/include IR, the planner decides the plan family
// (single statement, flat-join-reduce, or WHERE-IN segments), and
// internal/psql renders the final statement(s).
func Compile(m *schema.Model, method Method, args QueryArgs, d Dialect) (Result, error) {
	resolved := resolveDialect(d)
	dl := resolved.toInternal()

	qargs, err := qcode.ParseQueryArgs(m, method, args)
	if err != nil {
		return Result{}, err
	}

	shapeKey := planner.ShapeKey(m.Name, method, qargs)

	var plan planner.Plan
	var fastPath planner.FastPath
	if planCache != nil {
		if entry, ok := planCache.Get(shapeKey); ok {
			plan, fastPath = entry.Plan, entry.FastPath
		} else {
			plan, fastPath, err = decidePlan(m, method, qargs)
			if err != nil {
				return Result{}, err
			}
			planCache.Put(shapeKey, planner.Entry{Plan: plan, FastPath: fastPath})
		}
	} else {
		plan, fastPath, err = decidePlan(m, method, qargs)
		if err != nil {
			return Result{}, err
		}
	}

	if fastPath != planner.NoFastPath {
		res, err := psql.CompileFastPath(fastPath, m, qargs, dl)
		if err != nil {
			return Result{}, err
		}
		logCompile(m.Name, method, res.SQL, nil)
		return Result{SQL: res.SQL, Store: res.Store}, nil
	}

	if method == Count {
		res, err := psql.CompileCount(m, qargs, dl)
		if err != nil {
			return Result{}, err
		}
		logCompile(m.Name, method, res.SQL, nil)
		return Result{SQL: res.SQL, Store: res.Store}, nil
	}

	if len(plan.Segments) == 0 {
		res, err := psql.CompileQuery(m, qargs, dl, plan.FlatJoinReduce)
		if err != nil {
			return Result{}, err
		}
		logCompile(m.Name, method, res.SQL, plan.Segments)
		return Result{SQL: res.SQL, Store: res.Store, RequiresReduction: res.RequiresReduction, IncludeMeta: res.IncludeMeta}, nil
	}

	return compileWithSegments(m, method, qargs, plan, dl)
}

// compileWithSegments renders the parent statement without the segmented
// relations plus one self-contained statement per segment (the
// steps 4-5, §3's WhereInSegment).
func compileWithSegments(m *schema.Model, method Method, qargs qcode.QueryArgs, plan planner.Plan, dl dialect.Dialect) (Result, error) {
	segmented := make(map[string]bool, len(plan.Segments))
	for _, s := range plan.Segments {
		segmented[s.Field] = true
	}

	parentArgs := qargs
	var kept []qcode.IncludeArg
	for _, inc := range qargs.Includes {
		if !segmented[inc.RelField] {
			kept = append(kept, inc)
		}
	}
	parentArgs.Includes = kept

	parentRes, err := psql.CompileQuery(m, parentArgs, dl, plan.FlatJoinReduce)
	if err != nil {
		return Result{}, err
	}

	var segs []Segment
	for _, s := range plan.Segments {
		field, ok := m.Field(s.Field)
		if !ok {
			return Result{}, relqerr.New(relqerr.RelationError, m.Name, nil, "unknown relation field %q for segment", s.Field)
		}
		relModel := resolveModel(field.RelatedModel)
		if relModel == nil {
			return Result{}, relqerr.New(relqerr.RelationError, m.Name, nil, "cannot resolve related model for %q", s.Field)
		}
		segRes, err := compileSegment(relModel, field, s.Args, dl)
		if err != nil {
			return Result{}, err
		}
		segs = append(segs, Segment{Field: s.Field, SQL: segRes.SQL, Store: segRes.Store})
	}

	logCompile(m.Name, method, parentRes.SQL, plan.Segments)
	return Result{
		SQL:               parentRes.SQL,
		Store:             parentRes.Store,
		RequiresReduction: parentRes.RequiresReduction,
		IncludeMeta:       parentRes.IncludeMeta,
		Segments:          segs,
	}, nil
}

// compileSegment renders a detached `SELECT ... FROM child WHERE fk IN
// (...)` statement for one WhereInSegment. The actual parent-key values are
// supplied by the caller at execution time via a params.Var dynamic marker
// bound into the segment's own args, keeping the segment self-contained and
// placeholder-complete at compile time ("self-contained, no
// shared placeholders").
func compileSegment(relModel *schema.Model, field schema.Field, subArgs qcode.QueryArgs, dl dialect.Dialect) (*psql.Result, error) {
	childKey := field.ForeignKey
	if field.IsForeignKeyLocal {
		childKey = field.References
	}
	if len(childKey) == 0 {
		childKey = []string{"id"}
	}

	merged := subArgs
	inClause := &qcode.Exp{
		Op:    qcode.OpIn,
		Field: childKey[0],
		Value: params.Var{Name: "parentKeys"},
	}
	if merged.Where != nil {
		merged.Where = &qcode.Exp{Op: qcode.OpAnd, Children: []*qcode.Exp{merged.Where, inClause}}
	} else {
		merged.Where = &qcode.Exp{Op: qcode.OpAnd, Children: []*qcode.Exp{inClause}}
	}
	// always false: a segment is itself the alternative the planner took
	// instead of flat-join-reduce, shared across every parent key in the
	// IN list rather than bound to one outer LIMIT, so row 4's predicate
	// never applies here.
	return psql.CompileQuery(relModel, merged, dl, false)
}

// decidePlan runs the fast-path detector first (§4.9's "small, enumerated
// set of queries") and only falls through to the general plan-family
// decision (§4.9 steps 1-6) when no canned template applies. count never
// needs the general decomposition decision, since it has no includes to
// split into WHERE-IN segments.
func decidePlan(m *schema.Model, method Method, qargs qcode.QueryArgs) (planner.Plan, planner.FastPath, error) {
	if err := planner.RejectBadNegativeTake(qargs); err != nil {
		return planner.Plan{}, planner.NoFastPath, err
	}
	fastPath := planner.DetectFastPath(method, qargs, pkFieldNames(m))
	if fastPath != planner.NoFastPath || method == Count {
		return planner.Plan{}, fastPath, nil
	}
	plan, err := planner.Decide(qargs, topLevelRelations(m, qargs), parentCountEstimate(qargs), 0)
	return plan, planner.NoFastPath, err
}

// parentCountEstimate derives step 3's parentCount input from the query's
// own take: a literal take bounds the parent row count from above (absent
// other filters, it's the worst case), which is exactly what step 5 needs
// to avoid forcing a WHERE-IN split on a single unpaginated sibling just
// because the parent count looked unbounded. A dynamic take (resolved only
// at execution time) or no take at all leaves the parent count unknown.
func parentCountEstimate(qargs qcode.QueryArgs) int {
	if qargs.Take != nil && !qargs.Take.IsVar {
		if qargs.Take.Lit < 0 {
			return -1
		}
		return qargs.Take.Lit
	}
	return -1
}

func pkFieldNames(m *schema.Model) []string {
	cache := schema.CacheFor(m)
	pk := cache.PrimaryKey()
	names := make([]string, 0, len(pk))
	for _, f := range pk {
		names = append(names, f.Name)
	}
	return names
}

func topLevelRelations(m *schema.Model, args qcode.QueryArgs) []planner.Relation {
	rels := make([]planner.Relation, 0, len(args.Includes))
	for _, inc := range args.Includes {
		f, ok := m.Field(inc.RelField)
		if !ok {
			continue
		}
		paginated := inc.Args.Take != nil || inc.Args.Skip != nil || len(inc.Args.Cursor) > 0
		rels = append(rels, planner.Relation{
			Field:             inc.RelField,
			IsList:            f.IsList(),
			Paginated:         paginated,
			HasNestedIncludes: len(inc.Args.Includes) > 0,
		})
	}
	return rels
}

func logCompile(modelName string, method Method, sql string, segments []planner.WhereInSegment) {
	registryMu.RLock()
	l := logger
	registryMu.RUnlock()
	if l == nil {
		return
	}
	l.Printf("relq: compiled %s.%d, %d chars, %d segments", modelName, method, len(sql), len(segments))
}
