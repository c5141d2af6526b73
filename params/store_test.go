package params

import "testing"

func TestAddPostgresPlaceholders(t *testing.T) {
	s := NewStore(Postgres)
	p1 := s.Add("a")
	p2 := s.Add("b")
	if p1 != "$1" || p2 != "$2" {
		t.Fatalf("got %q %q", p1, p2)
	}
	values, _ := s.Snapshot()
	if len(values) != 2 {
		t.Fatalf("expected 2 values, got %d", len(values))
	}
}

func TestAddSQLitePlaceholders(t *testing.T) {
	s := NewStore(SQLite)
	if s.Add("a") != "?" || s.Add("b") != "?" {
		t.Fatal("expected ? placeholders")
	}
}

func TestAddAutoScopedVarNaming(t *testing.T) {
	s := NewStore(Postgres)
	s.AddAutoScoped(Var{Name: "minAge"}, "where.age")
	_, mappings := s.Snapshot()
	if mappings[0].ScopePath != "where.age:minAge" {
		t.Fatalf("got %q", mappings[0].ScopePath)
	}
}

func TestSnapshotIsImmutableCopy(t *testing.T) {
	s := NewStore(Postgres)
	s.Add(1)
	values, _ := s.Snapshot()
	values[0] = 999
	values2, _ := s.Snapshot()
	if values2[0] != 1 {
		t.Fatal("snapshot should not alias internal storage")
	}
}

func TestContiguousNumbering(t *testing.T) {
	s := NewStore(Postgres)
	for i := 0; i < 5; i++ {
		s.Add(i)
	}
	values, mappings := s.Snapshot()
	for i, m := range mappings {
		if m.Index != i+1 {
			t.Fatalf("expected contiguous index %d, got %d", i+1, m.Index)
		}
	}
	if len(values) != 5 {
		t.Fatalf("expected 5 values got %d", len(values))
	}
}
