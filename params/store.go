// Package params implements the compiler's append-only parameter vector:
// every literal value the compiler would otherwise have inlined into SQL
// text is appended here instead, and a dialect-rendered placeholder is
// emitted in its place.
package params

import "strconv"

// Dialect selects placeholder rendering. It's kept dependency-free so both
// the internal SQL renderer and the public API can refer to it without an
// import cycle.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// Var is the dynamic-parameter marker: a placeholder whose value is
// resolved by the caller at execution time rather than known at compile
// time. A QueryArgs leaf wrapping a Var becomes a named placeholder instead
// of an immediately-bound value.
type Var struct {
	Name string
}

// Mapping records where a stored value's placeholder sits in the final SQL
// and which part of the query it came from, for error messages and for
// driver-side rebinding of named variables.
type Mapping struct {
	Index     int    // 1-based position, matching the emitted placeholder
	ScopePath string // e.g. "posts.where.title", or a Var's scope:name
}

// Store is the append-only parameter vector threaded through one compile
// call via BuildContext. It is not safe for concurrent use — each compile
// owns exactly one Store.
type Store struct {
	dialect  Dialect
	values   []interface{}
	mappings []Mapping
}

// NewStore creates an empty parameter store rendering placeholders for d.
func NewStore(d Dialect) *Store {
	return &Store{dialect: d}
}

// Len returns the number of parameters appended so far.
func (s *Store) Len() int {
	return len(s.values)
}

// Add appends value and returns the placeholder for it.
func (s *Store) Add(value interface{}) string {
	return s.AddAutoScoped(value, "")
}

// AddAutoScoped appends value (resolving a Var marker into a named
// placeholder scoped by scope) and returns the rendered placeholder.
func (s *Store) AddAutoScoped(value interface{}, scope string) string {
	scopePath := scope
	if v, ok := value.(Var); ok {
		if scope != "" {
			scopePath = scope + ":" + v.Name
		} else {
			scopePath = v.Name
		}
	}
	s.values = append(s.values, value)
	idx := len(s.values)
	s.mappings = append(s.mappings, Mapping{Index: idx, ScopePath: scopePath})
	return s.placeholder(idx)
}

func (s *Store) placeholder(idx int) string {
	switch s.dialect {
	case SQLite:
		return "?"
	default:
		return "$" + strconv.Itoa(idx)
	}
}

// Snapshot returns an immutable copy of the values and provenance mappings
// accumulated so far.
func (s *Store) Snapshot() ([]interface{}, []Mapping) {
	values := make([]interface{}, len(s.values))
	copy(values, s.values)
	mappings := make([]Mapping, len(s.mappings))
	copy(mappings, s.mappings)
	return values, mappings
}
