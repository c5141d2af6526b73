package planner

import (
	"sort"
	"strconv"
	"strings"

	"github.com/relq/compiler/internal/qcode"
)

// ShapeKey derives the cache key for one (model, method, args) planning
// decision. Two requests that differ only in parameter *values* — not in
// which fields/relations/ordering/pagination options are present — collapse
// to the same key, since the plan-family verdict depends only on shape.
func ShapeKey(modelName string, method qcode.Method, args qcode.QueryArgs) string {
	var b strings.Builder
	b.WriteString(modelName)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(int(method)))
	b.WriteByte('|')
	if args.Where != nil {
		b.WriteString("w")
	}
	b.WriteByte('|')
	writeSortedKeys(&b, args.Select)
	b.WriteByte('|')
	fields := make([]string, len(args.Includes))
	for i, inc := range args.Includes {
		paginated := inc.Args.Take != nil || inc.Args.Skip != nil || len(inc.Args.Cursor) > 0
		nested := len(inc.Args.Includes) > 0
		fields[i] = inc.RelField + ":" + strconv.FormatBool(paginated) + ":" + strconv.FormatBool(nested)
	}
	sort.Strings(fields)
	b.WriteString(strings.Join(fields, ","))
	b.WriteByte('|')
	for _, t := range args.OrderBy {
		b.WriteString(t.Field)
		b.WriteByte(',')
	}
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(args.Take != nil))
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(args.Skip != nil))
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(len(args.Cursor) > 0))
	b.WriteByte('|')
	writeSortedStrings(&b, args.Distinct)
	return b.String()
}

func writeSortedKeys(b *strings.Builder, m map[string]bool) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString(strings.Join(keys, ","))
}

func writeSortedStrings(b *strings.Builder, xs []string) {
	cp := append([]string(nil), xs...)
	sort.Strings(cp)
	b.WriteString(strings.Join(cp, ","))
}
