package reducer

import (
	"testing"

	"github.com/relq/compiler/internal/qcode"
)

func testMeta() *qcode.IncludeTreeMeta {
	comments := &qcode.IncludeTreeMeta{
		Path:      []string{"posts", "comments"},
		PKColumns: []string{"posts.comments.id"},
		IsList:    true,
	}
	posts := &qcode.IncludeTreeMeta{
		Path:      []string{"posts"},
		PKColumns: []string{"posts.id"},
		IsList:    true,
		Children:  []*qcode.IncludeTreeMeta{comments},
	}
	country := &qcode.IncludeTreeMeta{
		Path:      []string{"country"},
		PKColumns: []string{"country.id"},
		IsList:    false,
	}
	return &qcode.IncludeTreeMeta{
		PKColumns: []string{"id"},
		IsList:    true,
		Children:  []*qcode.IncludeTreeMeta{posts, country},
	}
}

func TestProcessRowBuildsNestedTree(t *testing.T) {
	r := New(testMeta())

	rows := []FlatRow{
		{"id": 1, "email": "a@x.com", "posts.id": 10, "posts.title": "hi", "posts.comments.id": 100, "posts.comments.body": "first", "country.id": 9, "country.name": "US"},
		{"id": 1, "email": "a@x.com", "posts.id": 10, "posts.title": "hi", "posts.comments.id": 101, "posts.comments.body": "second", "country.id": 9, "country.name": "US"},
		{"id": 1, "email": "a@x.com", "posts.id": 11, "posts.title": "bye", "posts.comments.id": nil, "posts.comments.body": nil, "country.id": 9, "country.name": "US"},
	}
	for _, row := range rows {
		if err := r.ProcessRow(row); err != nil {
			t.Fatal(err)
		}
	}

	out := r.Rows()
	if len(out) != 1 {
		t.Fatalf("expected 1 root row, got %d", len(out))
	}
	user := out[0]
	if user["email"] != "a@x.com" {
		t.Fatalf("unexpected email: %v", user["email"])
	}

	country, _ := user["country"].(map[string]interface{})
	if country == nil || country["name"] != "US" {
		t.Fatalf("expected to-one country object, got %v", user["country"])
	}

	posts, ok := user["posts"].([]interface{})
	if !ok || len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %v", user["posts"])
	}
	post0 := posts[0].(map[string]interface{})
	comments, ok := post0["comments"].([]interface{})
	if !ok || len(comments) != 2 {
		t.Fatalf("expected 2 comments on first post, got %v", post0["comments"])
	}
	post1 := posts[1].(map[string]interface{})
	comments1, ok := post1["comments"].([]interface{})
	if !ok || len(comments1) != 0 {
		t.Fatalf("expected no comments on second post, got %v", post1["comments"])
	}
}

func TestProcessRowIsIdempotentUnderRepeatedPair(t *testing.T) {
	r := New(testMeta())
	row := FlatRow{"id": 1, "email": "a@x.com", "posts.id": 10, "posts.title": "hi", "posts.comments.id": nil, "country.id": nil}
	for i := 0; i < 3; i++ {
		if err := r.ProcessRow(row); err != nil {
			t.Fatal(err)
		}
	}
	out := r.Rows()
	posts := out[0]["posts"].([]interface{})
	if len(posts) != 1 {
		t.Fatalf("expected exactly 1 post despite 3 identical rows, got %d", len(posts))
	}
}

func TestOneReturnsFalseWhenNoRowsProcessed(t *testing.T) {
	r := New(testMeta())
	_, ok := r.One()
	if ok {
		t.Fatal("expected ok=false with no rows processed")
	}
}

func TestLazyJSONParsesOnFirstAccess(t *testing.T) {
	lz := &LazyJSON{raw: []byte(`{"a":1}`)}
	v, err := lz.Value()
	if err != nil {
		t.Fatal(err)
	}
	m, ok := v.(map[string]interface{})
	if !ok || m["a"].(float64) != 1 {
		t.Fatalf("unexpected parsed value: %v", v)
	}
}

func TestWrapLazyPassesThroughNonJSONValues(t *testing.T) {
	if got := wrapLazy(42); got != 42 {
		t.Fatalf("expected scalar passthrough, got %v", got)
	}
}

func TestNullRootKeySkipsRow(t *testing.T) {
	r := New(testMeta())
	if err := r.ProcessRow(FlatRow{"id": nil}); err != nil {
		t.Fatal(err)
	}
	if len(r.Rows()) != 0 {
		t.Fatal("expected no rows accumulated for a null root key")
	}
}
