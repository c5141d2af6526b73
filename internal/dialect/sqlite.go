package dialect

// SQLite implements Dialect using json1 functions and a json_each-based
// array membership test, since SQLite has no native array or
// DISTINCT ON support. Grounded on GraphJin's internal/dialect/sqlite.go
// (RenderJSONRoot/RenderJSONSelect's json_object calls and its json1-based
// RenderJSONPath handling).
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Placeholder(n int) string {
	return "?"
}

func (SQLite) ArrayContainsOne(colExpr, ph, elemType string) string {
	return "EXISTS (SELECT 1 FROM json_each(" + colExpr + ") WHERE json_each.value = " + ph + ")"
}

func (SQLite) ArrayContainsAll(colExpr string, phs []string, elemType string) string {
	out := ""
	for i, ph := range phs {
		if i != 0 {
			out += " AND "
		}
		out += "EXISTS (SELECT 1 FROM json_each(" + colExpr + ") WHERE json_each.value = " + ph + ")"
	}
	return out
}

func (SQLite) ArrayOverlap(colExpr string, phs []string, elemType string) string {
	out := ""
	for i, ph := range phs {
		if i != 0 {
			out += " OR "
		}
		out += "EXISTS (SELECT 1 FROM json_each(" + colExpr + ") WHERE json_each.value = " + ph + ")"
	}
	return out
}

// InArray tests membership against a JSON array bound as a single text
// parameter, since SQLite has no native array type to bind against.
func (SQLite) InArray(colExpr, ph string) string {
	return colExpr + " IN (SELECT value FROM json_each(" + ph + "))"
}

func (SQLite) NotInArray(colExpr, ph string) string {
	return "NOT (" + colExpr + " IN (SELECT value FROM json_each(" + ph + ")))"
}

func (SQLite) CaseInsensitiveLike(colExpr, ph string) string {
	return "LOWER(" + colExpr + ") LIKE LOWER(" + ph + ")"
}

func (SQLite) JSONExtractText(colExpr string, path []string) string {
	out := "json_extract(" + colExpr + ", '$"
	for _, p := range path {
		out += "." + p
	}
	return out + "')"
}

func (SQLite) JSONAggregate(rowExpr, orderBy string) string {
	// json_group_array has no ORDER BY clause of its own; the caller is
	// expected to wrap the source rowset in an ordered subquery instead.
	return "json_group_array(" + rowExpr + ")"
}

func (SQLite) JSONBuildObject(pairs []KV) string {
	out := "json_object("
	for i, p := range pairs {
		if i != 0 {
			out += ", "
		}
		out += p.Key + ", " + p.ValueExpr
	}
	return out + ")"
}

func (SQLite) SupportsDistinctOn() bool { return false }

func (SQLite) DistinctOnPrefix(cols []string) string {
	// never called: SupportsDistinctOn is false, so the psql renderer falls
	// back to a ROW_NUMBER() OVER (PARTITION BY ...) emulation instead.
	return ""
}

func (SQLite) NullsClause(desc bool, nulls NullsPos) string {
	if nulls == NullsDefault {
		return ""
	}
	wantFirst := nulls == NullsFirst
	if wantFirst == (SQLite{}).DefaultNullsFirst(desc) {
		return ""
	}
	if wantFirst {
		return " NULLS FIRST"
	}
	return " NULLS LAST"
}

func (SQLite) DefaultNullsFirst(desc bool) bool {
	// ascending -> nulls first, descending -> nulls last
	return !desc
}
