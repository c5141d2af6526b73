package schema

import "testing"

func userModel() *Model {
	return &Model{
		Name:      "User",
		TableName: "users",
		Fields: []Field{
			{Name: "id", Type: "Int", IsID: true, IsRequired: true},
			{Name: "email", Type: "String"},
			{Name: "metadata", Type: "Json?"},
			{Name: "kickId", DBName: "kick_id", Type: "String?"},
			{Name: "posts", IsRelation: true, RelatedModel: "Post",
				ForeignKey: []string{"id"}, References: []string{"authorId"}},
		},
	}
}

func TestFieldLookup(t *testing.T) {
	m := userModel()
	f, ok := m.Field("email")
	if !ok || f.Type != "String" {
		t.Fatalf("got %+v ok=%v", f, ok)
	}
	if _, ok := m.Field("nope"); ok {
		t.Fatal("expected missing field")
	}
}

func TestFieldTypeSuffixes(t *testing.T) {
	f := Field{Type: "Json?"}
	if !f.IsNullable() || f.IsList() || f.BaseType() != "Json" {
		t.Fatalf("got nullable=%v list=%v base=%v", f.IsNullable(), f.IsList(), f.BaseType())
	}
	f2 := Field{Type: "Int[]"}
	if !f2.IsList() || f2.IsNullable() || f2.BaseType() != "Int" {
		t.Fatalf("got list=%v nullable=%v base=%v", f2.IsList(), f2.IsNullable(), f2.BaseType())
	}
}

func TestColumnNameOverride(t *testing.T) {
	f := Field{Name: "kickId", DBName: "kick_id"}
	if f.ColumnName() != "kick_id" {
		t.Fatalf("got %q", f.ColumnName())
	}
	f2 := Field{Name: "email"}
	if f2.ColumnName() != "email" {
		t.Fatalf("got %q", f2.ColumnName())
	}
}

func TestPrimaryKeyFields(t *testing.T) {
	m := userModel()
	pk := m.PrimaryKeyFields()
	if len(pk) != 1 || pk[0].Name != "id" {
		t.Fatalf("got %+v", pk)
	}
}

func TestCacheForIsMemoizedAndConsistent(t *testing.T) {
	m := userModel()
	c1 := CacheFor(m)
	c2 := CacheFor(m)
	if c1 != c2 {
		t.Fatal("expected same cache instance")
	}
	if !c1.IsScalar("email") || !c1.IsRelation("posts") {
		t.Fatal("expected email scalar and posts relation")
	}
	if !c1.IsJSON("metadata") {
		t.Fatal("expected metadata to be JSON")
	}
	col, ok := c1.ColumnName("kickId")
	if !ok || col != "kick_id" {
		t.Fatalf("got %q %v", col, ok)
	}
	pk := c1.PrimaryKey()
	if len(pk) != 1 || pk[0].Name != "id" {
		t.Fatalf("got %+v", pk)
	}
}
