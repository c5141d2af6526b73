package psql

import (
	"strings"
	"testing"

	"github.com/relq/compiler/internal/dialect"
	"github.com/relq/compiler/internal/qcode"
	"github.com/relq/compiler/params"
	"github.com/relq/compiler/planner"
)

func TestCompileFastPathFindUniqueByID(t *testing.T) {
	user, _ := testSchema()
	args, err := qcode.ParseQueryArgs(user, qcode.MethodFindUnique, map[string]interface{}{
		"where": map[string]interface{}{"id": 5},
	})
	if err != nil {
		t.Fatal(err)
	}
	fp := planner.DetectFastPath(qcode.MethodFindUnique, args, []string{"id"})
	if fp != planner.FastPathFindUniqueByID {
		t.Fatalf("expected FastPathFindUniqueByID, got %v", fp)
	}
	res, err := CompileFastPath(fp, user, args, dialect.Postgres{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.SQL, "WHERE") || !strings.Contains(res.SQL, "= $1") || !strings.Contains(res.SQL, "LIMIT 1") {
		t.Fatalf("unexpected fast path sql: %s", res.SQL)
	}
	values, _ := res.Store.Snapshot()
	if len(values) != 1 || values[0] != 5 {
		t.Fatalf("expected bound id=5, got %v", values)
	}
}

func TestCompileFastPathFindManyByIDs(t *testing.T) {
	user, _ := testSchema()
	args, err := qcode.ParseQueryArgs(user, qcode.MethodFindMany, map[string]interface{}{
		"where": map[string]interface{}{"id": map[string]interface{}{"in": []interface{}{1, 2, 3}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	fp := planner.DetectFastPath(qcode.MethodFindMany, args, []string{"id"})
	if fp != planner.FastPathFindManyByIDs {
		t.Fatalf("expected FastPathFindManyByIDs, got %v", fp)
	}
	res, err := CompileFastPath(fp, user, args, dialect.Postgres{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.SQL, "IN ($1, $2, $3)") {
		t.Fatalf("expected portable IN clause, got %s", res.SQL)
	}
}

func TestCompileFastPathCountAll(t *testing.T) {
	user, _ := testSchema()
	args, err := qcode.ParseQueryArgs(user, qcode.MethodCount, map[string]interface{}{})
	if err != nil {
		t.Fatal(err)
	}
	fp := planner.DetectFastPath(qcode.MethodCount, args, []string{"id"})
	if fp != planner.FastPathCountAll {
		t.Fatalf("expected FastPathCountAll, got %v", fp)
	}
	res, err := CompileFastPath(fp, user, args, dialect.Postgres{})
	if err != nil {
		t.Fatal(err)
	}
	if res.SQL != `SELECT COUNT(*) FROM users` {
		t.Fatalf("unexpected count sql: %s", res.SQL)
	}
	if res.Store.Len() != 0 {
		t.Fatalf("expected no bound params, got %d", res.Store.Len())
	}
}

func TestCompileFastPathFindManyLimitOnly(t *testing.T) {
	user, _ := testSchema()
	args, err := qcode.ParseQueryArgs(user, qcode.MethodFindMany, map[string]interface{}{
		"take": 20,
	})
	if err != nil {
		t.Fatal(err)
	}
	fp := planner.DetectFastPath(qcode.MethodFindMany, args, []string{"id"})
	if fp != planner.FastPathFindManyLimitOnly {
		t.Fatalf("expected FastPathFindManyLimitOnly, got %v", fp)
	}
	res, err := CompileFastPath(fp, user, args, dialect.Postgres{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.SQL, "LIMIT 20") {
		t.Fatalf("expected LIMIT 20, got %s", res.SQL)
	}
}

func TestCompileFastPathDynamicLimitOnlyBindsPlaceholder(t *testing.T) {
	user, _ := testSchema()
	args, err := qcode.ParseQueryArgs(user, qcode.MethodFindMany, map[string]interface{}{
		"take": params.Var{Name: "pageSize"},
	})
	if err != nil {
		t.Fatal(err)
	}
	fp := planner.DetectFastPath(qcode.MethodFindMany, args, []string{"id"})
	if fp != planner.FastPathFindManyLimitOnly {
		t.Fatalf("expected FastPathFindManyLimitOnly, got %v", fp)
	}
	res, err := CompileFastPath(fp, user, args, dialect.Postgres{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.SQL, "LIMIT $1") {
		t.Fatalf("expected dynamic LIMIT placeholder, got %s", res.SQL)
	}
}
