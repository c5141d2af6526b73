package qcode

import (
	"testing"

	"github.com/relq/compiler/schema"
)

func testModels() (*schema.Model, *schema.Model) {
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
			{Name: "kickId", DBName: "kick_id", Type: "String?"},
			{Name: "permissions", Type: "UserPermission[]"},
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
	SetModelResolver(func(name string) *schema.Model {
		switch name {
		case "Country":
			return country
		case "User":
			return user
		case "Post":
			return post
		}
		return nil
	})
	return user, country
}

func TestBuildWhereScalarEquals(t *testing.T) {
	user, _ := testModels()
	exp, err := BuildWhere(user, map[string]interface{}{"email": "a@b.com"})
	if err != nil {
		t.Fatal(err)
	}
	if len(exp.Children) != 1 || exp.Children[0].Op != OpEquals {
		t.Fatalf("got %+v", exp.Children)
	}
}

func TestBuildWhereEqualsNullBecomesIsNull(t *testing.T) {
	user, _ := testModels()
	exp, err := BuildWhere(user, map[string]interface{}{"kickId": nil})
	if err != nil {
		t.Fatal(err)
	}
	if exp.Children[0].Op != OpIsNull {
		t.Fatalf("got %+v", exp.Children[0])
	}
}

func TestBuildWhereUnknownField(t *testing.T) {
	user, _ := testModels()
	_, err := BuildWhere(user, map[string]interface{}{"nope": 1})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestBuildWhereRelationIsShorthand(t *testing.T) {
	user, _ := testModels()
	exp, err := BuildWhere(user, map[string]interface{}{
		"country": map[string]interface{}{"countryCode": "US"},
	})
	if err != nil {
		t.Fatal(err)
	}
	rel := exp.Children[0]
	if rel.Op != OpRelationIs || rel.RelModel.Name != "Country" {
		t.Fatalf("got %+v", rel)
	}
	if len(rel.Sub.Children) != 1 {
		t.Fatalf("expected nested sub filter, got %+v", rel.Sub)
	}
}

func TestBuildWhereRelationNoneEmptyOptimized(t *testing.T) {
	user, _ := testModels()
	exp, err := BuildWhere(user, map[string]interface{}{
		"posts": map[string]interface{}{"none": map[string]interface{}{}},
	})
	if err != nil {
		t.Fatal(err)
	}
	rel := exp.Children[0]
	if rel.Op != OpRelationNone || !rel.NoneEmptyOptimized {
		t.Fatalf("got %+v", rel)
	}
}

func TestBuildWhereAndOr(t *testing.T) {
	user, _ := testModels()
	exp, err := BuildWhere(user, map[string]interface{}{
		"OR": []interface{}{
			map[string]interface{}{"email": map[string]interface{}{"contains": "sys", "mode": "insensitive"}},
			map[string]interface{}{"kickId": nil},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	or := exp.Children[0]
	if or.Op != OpOr || len(or.Children) != 2 {
		t.Fatalf("got %+v", or)
	}
	containsLeaf := or.Children[0].Children[0]
	if containsLeaf.Op != OpContains || containsLeaf.Mode != ModeInsensitive {
		t.Fatalf("got %+v", containsLeaf)
	}
}

func TestBuildWhereArrayHas(t *testing.T) {
	user, _ := testModels()
	exp, err := BuildWhere(user, map[string]interface{}{
		"permissions": map[string]interface{}{"has": "USERS"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if exp.Children[0].Op != OpArrayHas {
		t.Fatalf("got %+v", exp.Children[0])
	}
}

func TestBuildWhereDepthLimit(t *testing.T) {
	user, _ := testModels()
	raw := map[string]interface{}{"email": "x"}
	for i := 0; i < maxQueryDepth+2; i++ {
		raw = map[string]interface{}{"AND": []interface{}{raw}}
	}
	_, err := BuildWhere(user, raw)
	if err == nil {
		t.Fatal("expected depth error")
	}
}
