package psql

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/relq/compiler/internal/dialect"
	"github.com/relq/compiler/params"
	"github.com/relq/compiler/relqerr"
)

var pgPlaceholderRe = regexp.MustCompile(`\$(\d+)`)

// ValidatePlaceholderDensity enforces the post-assembly
// invariant: in PostgreSQL mode the set of $k tokens in sql is exactly
// {1..N}; in SQLite mode the count of ? tokens equals N, where N is the
// ParamStore's length. It also checks that SELECT precedes FROM and that
// sql is non-empty.
func ValidatePlaceholderDensity(sql string, d dialect.Dialect, store *params.Store) error {
	if sql == "" {
		return relqerr.New(relqerr.Critical, "", nil, "planner produced empty SQL")
	}
	selectIdx := strings.Index(strings.ToUpper(sql), "SELECT")
	fromIdx := strings.Index(strings.ToUpper(sql), "FROM")
	if selectIdx < 0 || fromIdx < 0 || selectIdx > fromIdx {
		return relqerr.New(relqerr.Critical, "", nil, "assembled statement missing SELECT before FROM")
	}

	n := store.Len()
	if d.Name() == "sqlite" {
		count := strings.Count(sql, "?")
		if count != n {
			return relqerr.New(relqerr.ParamError, "", nil, "placeholder count %d does not match param count %d", count, n)
		}
		return nil
	}

	matches := pgPlaceholderRe.FindAllStringSubmatch(sql, -1)
	seen := make(map[int]bool, len(matches))
	for _, m := range matches {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		seen[idx] = true
	}
	if len(seen) != n {
		return relqerr.New(relqerr.ParamError, "", nil, "placeholder set size %d does not match param count %d", len(seen), n)
	}
	for i := 1; i <= n; i++ {
		if !seen[i] {
			return relqerr.New(relqerr.ParamError, "", nil, "placeholder set is not contiguous: missing $%d", i)
		}
	}
	return nil
}
