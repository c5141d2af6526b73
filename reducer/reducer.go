// Package reducer implements the post-execution flat-row -> nested-object
// fold. It has no GraphJin analogue —
// GraphJin always lets Postgres/SQLite build the final JSON tree
// server-side — so this package is original to the module, built in the
// same imperative, explicit-error-return style as the rest of it, using
// only the standard library (no ecosystem library in the retrieval pack
// targets client-side row-to-tree folding; see DESIGN.md).
package reducer

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/relq/compiler/internal/qcode"
)

// FlatRow is one row as scanned from the driver: dotted column names
// ("posts.comments.id") to Go values.
type FlatRow map[string]interface{}

// LazyJSON wraps a raw JSON-typed column value (as returned by the
// Postgres/SQLite driver for Json-typed columns: []byte or
// json.RawMessage) without eagerly unmarshaling it. Value() parses once, on
// first access, and memoizes the result — most rows in a large result set
// never have every JSON column inspected by the caller.
type LazyJSON struct {
	raw  []byte
	once sync.Once
	val  interface{}
	err  error
}

// Value lazily unmarshals the wrapped JSON payload, memoizing the result.
func (j *LazyJSON) Value() (interface{}, error) {
	j.once.Do(func() {
		if len(j.raw) == 0 {
			return
		}
		j.err = json.Unmarshal(j.raw, &j.val)
	})
	return j.val, j.err
}

func wrapLazy(v interface{}) interface{} {
	switch raw := v.(type) {
	case json.RawMessage:
		return &LazyJSON{raw: raw}
	case []byte:
		return &LazyJSON{raw: raw}
	default:
		return v
	}
}

// Reducer folds an ordered sequence of FlatRows into nested objects per
// algorithm: a parent map keyed by composite primary key,
// descending the include tree on every row to attach children by their own
// composite key. It is a cooperative stream consumer: it holds
// no internal synchronization and expects the caller to serialize calls to
// ProcessRow, which may arrive from whichever task delivered the row.
type Reducer struct {
	root     *qcode.IncludeTreeMeta
	objects  map[string]map[string]interface{}
	attached map[string]bool
	order    []string
}

// New creates a Reducer for one compiled statement's include tree. root
// describes the top-level row itself — its own (unprefixed) primary-key
// columns and whether the statement is list-shaped (findMany) or
// single-row (findUnique/findFirst) — with Children set to the compiled
// Result's IncludeMeta.
func New(root *qcode.IncludeTreeMeta) *Reducer {
	return &Reducer{
		root:     root,
		objects:  make(map[string]map[string]interface{}),
		attached: make(map[string]bool),
	}
}

// ProcessRow folds one flat row into the accumulated tree. Calling it again
// with a row that repeats an already-attached parent/child pair (the
// fanout a sibling one-to-many join produces) is a no-op for that pair —
// the reducer is idempotent under row repetition.
func (r *Reducer) ProcessRow(row FlatRow) error {
	rootKey, ok := compositeKey(row, r.root.PKColumns)
	if !ok {
		return nil
	}
	rootObjKey := objKey("", rootKey)
	if _, exists := r.objects[rootObjKey]; !exists {
		r.objects[rootObjKey] = newObject(row, "", r.root)
		r.order = append(r.order, rootKey)
	}
	r.descend(r.root, "", rootKey, row)
	return nil
}

func (r *Reducer) descend(meta *qcode.IncludeTreeMeta, prefix, parentKey string, row FlatRow) {
	parentObjKey := objKey(prefix, parentKey)
	for _, child := range meta.Children {
		childPrefix := pathKey(child.Path)
		childKey, ok := compositeKey(row, child.PKColumns)
		if !ok {
			// null key: this row carries no child at this node
			// §4.10: "if the key is null, skip").
			continue
		}
		childObjKey := objKey(childPrefix, childKey)
		if _, exists := r.objects[childObjKey]; !exists {
			r.objects[childObjKey] = newObject(row, childPrefix, child)
		}

		attachKeyStr := childObjKey + "\x1d" + parentObjKey
		if !r.attached[attachKeyStr] {
			r.attached[attachKeyStr] = true
			attach(r.objects[parentObjKey], fieldName(child.Path), child.IsList, r.objects[childObjKey])
		}

		r.descend(child, childPrefix, childKey, row)
	}
}

// Rows returns the accumulated top-level objects in first-seen order.
func (r *Reducer) Rows() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.objects[objKey("", k)])
	}
	return out
}

// One returns the single accumulated row, for findUnique/findFirst
// statements whose root is not list-shaped. ok is false if no row was ever
// processed.
func (r *Reducer) One() (map[string]interface{}, bool) {
	if len(r.order) == 0 {
		return nil, false
	}
	return r.objects[objKey("", r.order[0])], true
}

func newObject(row FlatRow, prefix string, meta *qcode.IncludeTreeMeta) map[string]interface{} {
	obj := extractScalars(row, prefix)
	for _, child := range meta.Children {
		name := fieldName(child.Path)
		if child.IsList {
			obj[name] = []interface{}{}
		} else {
			obj[name] = nil
		}
	}
	return obj
}

// extractScalars pulls every column directly owned by the node at prefix
// (as opposed to a deeper child's columns): after stripping the prefix, a
// column belongs here iff no further "." remains.
func extractScalars(row FlatRow, prefix string) map[string]interface{} {
	obj := make(map[string]interface{})
	p := prefix
	if p != "" {
		p += "."
	}
	for k, v := range row {
		if !strings.HasPrefix(k, p) {
			continue
		}
		rest := k[len(p):]
		if rest == "" || strings.Contains(rest, ".") {
			continue
		}
		obj[rest] = wrapLazy(v)
	}
	return obj
}

func attach(parentObj map[string]interface{}, field string, isList bool, childObj map[string]interface{}) {
	if isList {
		parentObj[field] = append(parentObj[field].([]interface{}), childObj)
		return
	}
	parentObj[field] = childObj
}

func compositeKey(row FlatRow, pkCols []string) (string, bool) {
	if len(pkCols) == 0 {
		return "", false
	}
	parts := make([]string, len(pkCols))
	for i, col := range pkCols {
		v, ok := row[col]
		if !ok || v == nil {
			return "", false
		}
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "\x1f"), true
}

func pathKey(path []string) string {
	return strings.Join(path, ".")
}

func objKey(prefix, key string) string {
	return prefix + "\x1e" + key
}

func fieldName(path []string) string {
	if len(path) == 0 {
		return ""
	}
	return path[len(path)-1]
}
