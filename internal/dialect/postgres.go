package dialect

import "strconv"

// Postgres implements Dialect using native array, jsonb, and DISTINCT ON
// support. Grounded on GraphJin's
// internal/dialect/postgres.go (RenderDistinctOn, RenderOrderBy's NULLS
// handling, the jsonb_agg/jsonb_build_object calls in RenderJSONPlural and
// RenderJSONRoot).
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (Postgres) ArrayContainsOne(colExpr, ph, elemType string) string {
	return colExpr + " @> ARRAY[" + ph + "]::" + elemType + "[]"
}

func (Postgres) ArrayContainsAll(colExpr string, phs []string, elemType string) string {
	return colExpr + " @> ARRAY[" + joinCommas(phs) + "]::" + elemType + "[]"
}

func (Postgres) ArrayOverlap(colExpr string, phs []string, elemType string) string {
	return colExpr + " && ARRAY[" + joinCommas(phs) + "]::" + elemType + "[]"
}

func (Postgres) InArray(colExpr, ph string) string {
	return colExpr + " = ANY(" + ph + ")"
}

func (Postgres) NotInArray(colExpr, ph string) string {
	return "NOT (" + colExpr + " = ANY(" + ph + "))"
}

func (Postgres) CaseInsensitiveLike(colExpr, ph string) string {
	return colExpr + " ILIKE " + ph
}

func (Postgres) JSONExtractText(colExpr string, path []string) string {
	out := colExpr
	for _, p := range path {
		out += `#>>'{` + p + `}'`
	}
	return out
}

func (Postgres) JSONAggregate(rowExpr, orderBy string) string {
	if orderBy == "" {
		return "json_agg(" + rowExpr + ")"
	}
	return "json_agg(" + rowExpr + " ORDER BY " + orderBy + ")"
}

func (Postgres) JSONBuildObject(pairs []KV) string {
	out := "json_build_object("
	for i, p := range pairs {
		if i != 0 {
			out += ", "
		}
		out += p.Key + ", " + p.ValueExpr
	}
	return out + ")"
}

func (Postgres) SupportsDistinctOn() bool { return true }

func (Postgres) DistinctOnPrefix(cols []string) string {
	return "DISTINCT ON (" + joinCommas(cols) + ") "
}

// NullsClause renders an explicit NULLS FIRST/LAST only when it differs from
// Postgres's own default (ascending -> nulls last, descending -> nulls
// first), so the emitted SQL stays minimal when the user's request matches
// what Postgres would already do.
func (Postgres) NullsClause(desc bool, nulls NullsPos) string {
	if nulls == NullsDefault {
		return ""
	}
	wantFirst := nulls == NullsFirst
	if wantFirst == (Postgres{}).DefaultNullsFirst(desc) {
		return ""
	}
	if wantFirst {
		return " NULLS FIRST"
	}
	return " NULLS LAST"
}

func (Postgres) DefaultNullsFirst(desc bool) bool {
	// ascending -> nulls last, descending -> nulls first
	return desc
}

func joinCommas(items []string) string {
	out := ""
	for i, it := range items {
		if i != 0 {
			out += ", "
		}
		out += it
	}
	return out
}
