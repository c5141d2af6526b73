package psql

import (
	"strings"
	"testing"

	"github.com/relq/compiler/internal/dialect"
	"github.com/relq/compiler/internal/qcode"
	"github.com/relq/compiler/params"
	"github.com/relq/compiler/schema"
)

func validateStoreStub(_ *schema.Model) *params.Store {
	s := params.NewStore(params.Postgres)
	s.Add("a")
	s.Add("b")
	return s
}

func testSchema() (*schema.Model, *schema.Model) {
	country := &schema.Model{
		Name: "Country", TableName: "countries",
		Fields: []schema.Field{
			{Name: "id", Type: "Int", IsID: true},
			{Name: "countryCode", Type: "String"},
			{Name: "countryNameEn", Type: "String"},
		},
	}
	user := &schema.Model{
		Name: "User", TableName: "users",
		Fields: []schema.Field{
			{Name: "id", Type: "Int", IsID: true},
			{Name: "email", Type: "String"},
			{Name: "isDeleted", Type: "Boolean"},
			{Name: "kickId", DBName: "kick_id", Type: "String?"},
			{Name: "permissions", Type: "UserPermission[]"},
			{Name: "countryId", Type: "Int?"},
			{Name: "country", IsRelation: true, RelatedModel: "Country", Type: "Country?",
				ForeignKey: []string{"countryId"}, References: []string{"id"}, IsForeignKeyLocal: true},
			{Name: "posts", IsRelation: true, RelatedModel: "Post", Type: "Post[]",
				ForeignKey: []string{"id"}, References: []string{"authorId"}},
		},
	}
	post := &schema.Model{
		Name: "Post", TableName: "posts",
		Fields: []schema.Field{
			{Name: "id", Type: "Int", IsID: true},
			{Name: "authorId", Type: "Int"},
			{Name: "title", Type: "String"},
		},
	}
	ResolveModel = func(name string) *schema.Model {
		switch name {
		case "Country":
			return country
		case "User":
			return user
		case "Post":
			return post
		}
		return nil
	}
	qcode.SetModelResolver(ResolveModel)
	return user, country
}

func TestCompileScenario1PostgresFindFirst(t *testing.T) {
	user, _ := testSchema()
	raw := map[string]interface{}{
		"where": map[string]interface{}{
			"kickId":      nil,
			"country":     map[string]interface{}{"countryCode": "US"},
			"permissions": map[string]interface{}{"has": "USERS"},
			"email":       map[string]interface{}{"contains": "system", "mode": "insensitive"},
		},
		"select": map[string]interface{}{
			"id": true, "isDeleted": true, "permissions": true,
			"country": map[string]interface{}{"select": map[string]interface{}{"countryNameEn": true}},
		},
	}
	args, err := qcode.ParseQueryArgs(user, qcode.MethodFindFirst, raw)
	if err != nil {
		t.Fatal(err)
	}
	res, err := CompileQuery(user, args, dialect.Postgres{}, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Store.Len() != 3 {
		t.Fatalf("expected 3 params, got %d: %s", res.Store.Len(), res.SQL)
	}
	if !strings.Contains(res.SQL, "ILIKE") {
		t.Fatalf("expected ILIKE, got %s", res.SQL)
	}
	if !strings.Contains(res.SQL, `"kick_id" IS NULL`) {
		t.Fatalf("expected kick_id IS NULL, got %s", res.SQL)
	}
	if !strings.Contains(res.SQL, "LIMIT 1") {
		t.Fatalf("expected LIMIT 1, got %s", res.SQL)
	}
	if !strings.Contains(res.SQL, `@> ARRAY[$2]`) {
		t.Fatalf("expected array containment on $2, got %s", res.SQL)
	}
}

func TestCompileScenario2SQLite(t *testing.T) {
	user, _ := testSchema()
	raw := map[string]interface{}{
		"where": map[string]interface{}{
			"kickId":      nil,
			"country":     map[string]interface{}{"countryCode": "US"},
			"permissions": map[string]interface{}{"has": "USERS"},
			"email":       map[string]interface{}{"contains": "system", "mode": "insensitive"},
		},
	}
	args, err := qcode.ParseQueryArgs(user, qcode.MethodFindFirst, raw)
	if err != nil {
		t.Fatal(err)
	}
	res, err := CompileQuery(user, args, dialect.SQLite{}, false)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(res.SQL, "?") != 3 {
		t.Fatalf("expected 3 placeholders, got sql=%s", res.SQL)
	}
	if !strings.Contains(res.SQL, "LOWER(") {
		t.Fatalf("expected LOWER() case-fold, got %s", res.SQL)
	}
	if !strings.Contains(res.SQL, "json_each") {
		t.Fatalf("expected json_each array membership, got %s", res.SQL)
	}
	if !strings.Contains(res.SQL, "LIMIT 1") {
		t.Fatalf("expected LIMIT 1, got %s", res.SQL)
	}
}

func TestCompileScenario6NoneOptimization(t *testing.T) {
	user, _ := testSchema()
	args, err := qcode.ParseQueryArgs(user, qcode.MethodFindMany, map[string]interface{}{
		"where": map[string]interface{}{"posts": map[string]interface{}{"none": map[string]interface{}{}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !args.Where.Children[0].NoneEmptyOptimized {
		t.Fatal("expected the qcode layer to mark the optimized none")
	}
	res, err := CompileQuery(user, args, dialect.Postgres{}, false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.SQL, "LEFT JOIN") || !strings.Contains(res.SQL, "IS NULL") {
		t.Fatalf("expected LEFT JOIN ... IS NULL optimization, got %s", res.SQL)
	}
	if strings.Contains(res.SQL, "NOT EXISTS") {
		t.Fatalf("expected optimized none to avoid NOT EXISTS, got %s", res.SQL)
	}
}

func TestCompileDynamicTakeSkipBindPlaceholders(t *testing.T) {
	user, _ := testSchema()
	args, err := qcode.ParseQueryArgs(user, qcode.MethodFindMany, map[string]interface{}{
		"orderBy": map[string]interface{}{"id": "asc"},
		"take":    params.Var{Name: "pageSize"},
		"skip":    params.Var{Name: "pageOffset"},
	})
	if err != nil {
		t.Fatal(err)
	}
	res, err := CompileQuery(user, args, dialect.Postgres{}, false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.SQL, "LIMIT $1") || !strings.Contains(res.SQL, "OFFSET $2") {
		t.Fatalf("expected LIMIT/OFFSET to bind dynamic placeholders, got %s", res.SQL)
	}
	values, _ := res.Store.Snapshot()
	if len(values) != 2 {
		t.Fatalf("expected 2 bound values for dynamic take/skip, got %d", len(values))
	}
}

func TestValidatePlaceholderDensityCatchesGap(t *testing.T) {
	user, _ := testSchema()
	store := validateStoreStub(user)
	if err := ValidatePlaceholderDensity(`SELECT * FROM "t" WHERE "a" = $1 AND "b" = $3`, dialect.Postgres{}, store); err == nil {
		t.Fatal("expected contiguity error")
	}
}
