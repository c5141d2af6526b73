// Package qcode compiles a declarative QueryArgs tree into an
// intermediate representation — a WHERE expression tree, a normalized order
// list, and an include tree — that internal/psql renders into SQL. The
// iterative, stack-driven traversal in where.go is grounded on the
// teacher's internal/qcode/exp.go compileExpNode/aexpst pattern, adapted
// from a GraphQL argument AST to tagged filter maps.
package qcode

import (
	"github.com/relq/compiler/params"
	"github.com/relq/compiler/schema"
)

// ExpOp is the operator tag of one WHERE expression node.
type ExpOp int

const (
	OpAnd ExpOp = iota
	OpOr
	OpNot

	OpEquals
	OpNotEquals
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
	OpNotIn
	OpContains
	OpStartsWith
	OpEndsWith
	OpIsNull
	OpIsNotNull

	OpArrayHas
	OpArrayHasSome
	OpArrayHasEvery
	OpArrayIsEmpty
	OpArrayIsNotEmpty

	OpJSONStringContains
	OpJSONStringStartsWith
	OpJSONStringEndsWith

	OpRelationSome
	OpRelationEvery
	OpRelationNone
	OpRelationIs
	OpRelationIsNot
)

// StringMode controls case-folding for the wildcard/equality string ops.
type StringMode int

const (
	ModeDefault StringMode = iota
	ModeInsensitive
)

// Exp is one node of the WHERE expression tree. Logical nodes (And/Or/Not)
// carry Children; leaf nodes carry Field/Op/Value. Relation nodes
// additionally carry RelField/RelModel and a nested Exp for the sub-filter.
type Exp struct {
	Op    ExpOp
	Field string   // scalar field name, empty for logical nodes
	Value interface{}
	Mode  StringMode
	JSONPath []string // for JSON operators

	Children []*Exp // for And/Or/Not

	// Relation nodes
	RelField string        // the relation field name on the parent model
	RelModel *schema.Model // the related model
	Sub      *Exp          // the sub-filter compiled against RelModel

	// NoneEmptyOptimized marks an OpRelationNone node whose sub-filter was
	// the empty object, signaling the assembler to emit the cheaper
	// LEFT JOIN ... WHERE col IS NULL form instead of NOT EXISTS
	// §4.5, end-to-end scenario 6).
	NoneEmptyOptimized bool
}

// Join describes one auxiliary join the WHERE builder requires in order to
// evaluate a relation predicate (the "{ clause, joins }" output).
type Join struct {
	Kind      string // "LEFT" or "INNER"
	Table     string
	Alias     string
	OnClause  string
	NoneOptimized bool // LEFT JOIN ... WHERE col IS NULL optimization for empty `none`
}

// WhereResult is C5's output: the compiled expression tree plus the joins
// it requires.
type WhereResult struct {
	Exp   *Exp
	Joins []Join
}

// NullsPos mirrors dialect.NullsPos without importing internal/dialect,
// keeping qcode a dialect-agnostic IR package.
type NullsPos int

const (
	NullsDefault NullsPos = iota
	NullsFirst
	NullsLast
)

// OrderTerm is one normalized ORDER BY term.
type OrderTerm struct {
	Field string
	Desc  bool
	Nulls NullsPos
}

// CursorArg is a partial unique-key value used to anchor pagination.
type CursorArg map[string]interface{}

// IncludeArg describes one requested relation include, recursively.
type IncludeArg struct {
	RelField string
	Args     QueryArgs
}

// PaginationBound is a `take`/`skip` value: either a literal int, already
// range-checked and (for take) sign-resolved, or a dynamic-parameter marker
// whose value the caller binds at execution time. Lit is meaningless when
// IsVar is true.
type PaginationBound struct {
	Lit   int
	Var   params.Var
	IsVar bool
}

// LitBound returns a resolved literal PaginationBound.
func LitBound(n int) *PaginationBound {
	return &PaginationBound{Lit: n}
}

// QueryArgs is the parsed, validated form of the caller-supplied options
// tree.
type QueryArgs struct {
	Where    *Exp
	Select   map[string]bool // explicit field -> include/exclude
	Includes []IncludeArg
	OrderBy  []OrderTerm
	Take     *PaginationBound
	Skip     *PaginationBound
	Cursor   CursorArg
	Distinct []string
	Count    []string // relation fields requested via `_count`
}

// Method is the request's top-level verb.
type Method int

const (
	MethodFindUnique Method = iota
	MethodFindFirst
	MethodFindMany
	MethodCount
)

// IncludeTreeMeta describes one node of the include tree for the reducer
// the dotted path, the primary-key column
// names (already relation-prefixed), and whether the relation is list-typed.
type IncludeTreeMeta struct {
	Path       []string
	PKColumns  []string
	IsList     bool
	Children   []*IncludeTreeMeta
}
