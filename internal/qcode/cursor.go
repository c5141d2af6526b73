package qcode

import (
	"encoding/base64"
	"encoding/json"

	"github.com/relq/compiler/relqerr"
)

// EncodeCursor serializes a composite key into the opaque cursor token
// handed back to callers.
func EncodeCursor(key map[string]interface{}) (string, error) {
	b, err := json.Marshal(key)
	if err != nil {
		return "", relqerr.New(relqerr.InvalidValue, "", nil, "cursor encode failed: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeCursor parses a cursor token produced by EncodeCursor.
func DecodeCursor(token string) (CursorArg, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, relqerr.New(relqerr.InvalidValue, "", nil, "malformed cursor token")
	}
	var key map[string]interface{}
	if err := json.Unmarshal(b, &key); err != nil {
		return nil, relqerr.New(relqerr.InvalidValue, "", nil, "malformed cursor payload")
	}
	return CursorArg(key), nil
}

// CursorPlan is C6's description of the boundary predicate the psql
// renderer must emit: a CTE name, the full ordering, the cursor key, and
// the number of per-prefix predicate disjuncts.
type CursorPlan struct {
	CTEName    string
	Order      []OrderTerm
	Key        CursorArg
	Prefixes   int // len(Order); one disjunct per prefix i in [0, n)
}

// BuildCursorPlan validates the cursor argument against the resolved order
// list and produces the plan internal/psql renders into a CTE plus boundary
// predicate. The key is a partial key: it only has to identify the anchor
// row (RenderCursorCTE resolves it via WHERE <key>=$, then reads every
// ordered column's value off that matched row), not cover every ordered
// field. It does not itself render SQL — that is C8's concern, kept
// dialect-agnostic here.
func BuildCursorPlan(cteName string, order []OrderTerm, key CursorArg) (*CursorPlan, error) {
	if len(order) == 0 {
		return nil, relqerr.New(relqerr.ValidationError, "", nil, "cursor requires a non-empty orderBy")
	}
	if len(key) == 0 {
		return nil, relqerr.New(relqerr.ValidationError, "", nil, "cursor key must identify the anchor row")
	}
	return &CursorPlan{CTEName: cteName, Order: order, Key: key, Prefixes: len(order)}, nil
}
