package qcode

import "testing"

func TestCursorRoundTrip(t *testing.T) {
	tok, err := EncodeCursor(map[string]interface{}{"id": float64(42)})
	if err != nil {
		t.Fatal(err)
	}
	key, err := DecodeCursor(tok)
	if err != nil {
		t.Fatal(err)
	}
	if key["id"] != float64(42) {
		t.Fatalf("got %+v", key)
	}
}

func TestBuildCursorPlanRequiresOrder(t *testing.T) {
	_, err := BuildCursorPlan("__tp_cursor", nil, CursorArg{"id": 1})
	if err == nil {
		t.Fatal("expected error for empty order")
	}
}

func TestBuildCursorPlanRequiresNonEmptyKey(t *testing.T) {
	order := []OrderTerm{{Field: "createdAt", Desc: true}, {Field: "id"}}
	_, err := BuildCursorPlan("__tp_cursor", order, CursorArg{})
	if err == nil {
		t.Fatal("expected error for empty cursor key")
	}
}

func TestBuildCursorPlanAllowsPartialKey(t *testing.T) {
	order := []OrderTerm{{Field: "createdAt", Desc: true}, {Field: "id"}}
	plan, err := BuildCursorPlan("__tp_cursor", order, CursorArg{"id": 42})
	if err != nil {
		t.Fatal(err)
	}
	if plan.Prefixes != 2 {
		t.Fatalf("got %+v", plan)
	}
}

func TestBuildCursorPlanOK(t *testing.T) {
	order := []OrderTerm{{Field: "createdAt", Desc: true}, {Field: "id"}}
	plan, err := BuildCursorPlan("__tp_cursor", order, CursorArg{"createdAt": "2020-01-01", "id": 42})
	if err != nil {
		t.Fatal(err)
	}
	if plan.Prefixes != 2 {
		t.Fatalf("got %+v", plan)
	}
}
