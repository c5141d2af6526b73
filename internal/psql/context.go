// Package psql renders the qcode intermediate representation into
// PostgreSQL/SQLite SQL text. Its general
// shape — a per-compile BuildContext carrying the active Dialect, the
// ParamStore and the alias generator, threaded through the build/render
// functions, which write into strings.Builder values — is
// grounded on GraphJin's internal/psql/query.go Compiler/compilerContext
// pair and internal/psql/util.go's quoted/colWithTable helpers.
package psql

import (
	"strconv"
	"strings"

	"github.com/relq/compiler/internal/dialect"
	"github.com/relq/compiler/params"
	"github.com/relq/compiler/relqerr"
	"github.com/relq/compiler/sanitize"
	"github.com/relq/compiler/schema"
)

const (
	maxIncludeDepth    = 10
	maxTotalIncludes   = 50
	maxTotalSubqueries = 100
)

// AliasGen is the monotonically counted, collision-free alias source
// alias generator. Aliases are short ("t0", "t1", ...) so
// they never collide with a forbidden keyword and never exceed 63 chars.
type AliasGen struct {
	n int
}

func NewAliasGen() *AliasGen { return &AliasGen{} }

func (a *AliasGen) Next() string {
	alias := "t" + strconv.Itoa(a.n)
	a.n++
	return alias
}

// BuildContext is the immutable-per-frame descent context.
// Builders create a derived BuildContext on descent into a relation or
// subfilter and discard it on ascent; Store/Aliases/counters are the only
// shared mutable state, exactly as GraphJin threads its bytes.Buffer
// and Metadata through compilerContext.
type BuildContext struct {
	Alias    string
	Model    *schema.Model
	Path     []string
	Depth    int
	Subquery bool
	Dialect  dialect.Dialect
	Store    *params.Store
	Aliases  *AliasGen

	includeCount   *int
	subqueryCount  *int
}

// NewRootContext starts a fresh compile: a root alias, depth 0, and shared
// counters for the include/subquery budgets enforced in C7.
func NewRootContext(model *schema.Model, d dialect.Dialect, store *params.Store) *BuildContext {
	ag := NewAliasGen()
	ic, sc := 0, 0
	return &BuildContext{
		Alias:   ag.Next(),
		Model:   model,
		Dialect: d,
		Store:   store,
		Aliases: ag,

		includeCount:  &ic,
		subqueryCount: &sc,
	}
}

// Descend returns a child BuildContext for a nested relation or subquery,
// with its own alias but the parent's shared counters and ParamStore.
func (c *BuildContext) Descend(model *schema.Model, field string, subquery bool) (*BuildContext, error) {
	if c.Depth+1 > maxIncludeDepth {
		return nil, relqerr.New(relqerr.RelationError, model.Name, c.Path, "include depth exceeds %d", maxIncludeDepth)
	}
	visits := 0
	for _, p := range c.Path {
		if p == model.Name {
			visits++
		}
	}
	if visits >= 2 {
		return nil, relqerr.New(relqerr.RelationError, model.Name, c.Path, "model %q visited more than twice in one include tree", model.Name)
	}

	*c.includeCount++
	if *c.includeCount > maxTotalIncludes {
		return nil, relqerr.New(relqerr.RelationError, model.Name, c.Path, "total includes exceed %d", maxTotalIncludes)
	}
	if subquery {
		*c.subqueryCount++
		if *c.subqueryCount > maxTotalSubqueries {
			return nil, relqerr.New(relqerr.RelationError, model.Name, c.Path, "total subqueries exceed %d", maxTotalSubqueries)
		}
	}

	child := &BuildContext{
		Alias:    c.Aliases.Next(),
		Model:    model,
		Path:     append(append([]string(nil), c.Path...), field),
		Depth:    c.Depth + 1,
		Subquery: subquery || c.Subquery,
		Dialect:  c.Dialect,
		Store:    c.Store,
		Aliases:  c.Aliases,

		includeCount:  c.includeCount,
		subqueryCount: c.subqueryCount,
	}
	return child, nil
}

// QuoteTable renders the model's table name, validated through sanitize.
func QuoteTable(m *schema.Model) (string, error) {
	return sanitize.Quote(m.TableName)
}

// QuoteCol renders a column name (or column alias) as a double-quoted
// identifier with embedded quotes doubled. It applies sanitize.Quote's
// empty/control-character checks but, unlike QuoteTable, always quotes.
func QuoteCol(col string) (string, error) {
	if _, err := sanitize.Quote(col); err != nil {
		return "", err
	}
	return `"` + strings.ReplaceAll(col, `"`, `""`) + `"`, nil
}

// QuoteAlias validates and returns an alias unchanged (aliases generated by
// AliasGen are always bare identifiers, but user-influenced aliases such as
// CTE names still pass through this gate).
func QuoteAlias(a string) (string, error) {
	if err := sanitize.AssertSafeAlias(a); err != nil {
		return "", err
	}
	return a, nil
}
