package dialect

import (
	"strings"
	"testing"
)

func TestPlaceholders(t *testing.T) {
	if got := (Postgres{}).Placeholder(3); got != "$3" {
		t.Fatalf("got %q", got)
	}
	if got := (SQLite{}).Placeholder(3); got != "?" {
		t.Fatalf("got %q", got)
	}
}

func TestPostgresArrayContainsOne(t *testing.T) {
	got := (Postgres{}).ArrayContainsOne(`"t"."tags"`, "$1", "text")
	want := `"t"."tags" @> ARRAY[$1]::text[]`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestSQLiteArrayContainsOne(t *testing.T) {
	got := (SQLite{}).ArrayContainsOne(`"t"."tags"`, "?", "text")
	if !strings.Contains(got, "json_each") {
		t.Fatalf("expected json_each based membership test, got %q", got)
	}
}

func TestCaseInsensitiveLike(t *testing.T) {
	if got := (Postgres{}).CaseInsensitiveLike("col", "$1"); got != "col ILIKE $1" {
		t.Fatalf("got %q", got)
	}
	got := (SQLite{}).CaseInsensitiveLike("col", "?")
	want := "LOWER(col) LIKE LOWER(?)"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestDistinctOnSupport(t *testing.T) {
	if !(Postgres{}).SupportsDistinctOn() {
		t.Fatal("postgres should support DISTINCT ON")
	}
	if (SQLite{}).SupportsDistinctOn() {
		t.Fatal("sqlite should not support DISTINCT ON")
	}
}

func TestNullsDefaults(t *testing.T) {
	pg := Postgres{}
	if pg.DefaultNullsFirst(false) {
		t.Fatal("postgres ascending should default nulls last")
	}
	if !pg.DefaultNullsFirst(true) {
		t.Fatal("postgres descending should default nulls first")
	}

	sl := SQLite{}
	if !sl.DefaultNullsFirst(false) {
		t.Fatal("sqlite ascending should default nulls first")
	}
	if sl.DefaultNullsFirst(true) {
		t.Fatal("sqlite descending should default nulls last")
	}
}

func TestNullsClauseOmittedWhenMatchesDefault(t *testing.T) {
	pg := Postgres{}
	if got := pg.NullsClause(false, NullsLast); got != "" {
		t.Fatalf("expected empty clause for matching default, got %q", got)
	}
	if got := pg.NullsClause(false, NullsFirst); got != " NULLS FIRST" {
		t.Fatalf("got %q", got)
	}
}

func TestPostgresInArray(t *testing.T) {
	got := (Postgres{}).InArray(`"t"."id"`, "$1")
	want := `"t"."id" = ANY($1)`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	notGot := (Postgres{}).NotInArray(`"t"."id"`, "$1")
	wantNot := `NOT ("t"."id" = ANY($1))`
	if notGot != wantNot {
		t.Fatalf("got %q want %q", notGot, wantNot)
	}
}

func TestSQLiteInArray(t *testing.T) {
	got := (SQLite{}).InArray(`"t"."id"`, "?")
	if !strings.Contains(got, "json_each") {
		t.Fatalf("expected json_each based membership test, got %q", got)
	}
	notGot := (SQLite{}).NotInArray(`"t"."id"`, "?")
	if !strings.HasPrefix(notGot, "NOT (") || !strings.Contains(notGot, "json_each") {
		t.Fatalf("expected negated json_each membership test, got %q", notGot)
	}
}

func TestJSONBuildObject(t *testing.T) {
	pairs := []KV{{Key: "'id'", ValueExpr: `"t"."id"`}, {Key: "'name'", ValueExpr: `"t"."name"`}}
	got := (Postgres{}).JSONBuildObject(pairs)
	want := `json_build_object('id', "t"."id", 'name', "t"."name")`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	got2 := (SQLite{}).JSONBuildObject(pairs)
	want2 := `json_object('id', "t"."id", 'name', "t"."name")`
	if got2 != want2 {
		t.Fatalf("got %q want %q", got2, want2)
	}
}
