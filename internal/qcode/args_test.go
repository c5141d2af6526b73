package qcode

import "testing"

func TestParseQueryArgsFindFirstForcesLimitOne(t *testing.T) {
	user, _ := testModels()
	args, err := ParseQueryArgs(user, MethodFindFirst, map[string]interface{}{
		"where": map[string]interface{}{"email": "a@b.com"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if args.Take == nil || args.Take.Lit != 1 {
		t.Fatalf("got take=%v", args.Take)
	}
}

func TestParseQueryArgsNegativeTakeRequiresOrderBy(t *testing.T) {
	user, _ := testModels()
	_, err := ParseQueryArgs(user, MethodFindMany, map[string]interface{}{"take": float64(-5)})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestParseQueryArgsNegativeTakeReversesOrder(t *testing.T) {
	user, _ := testModels()
	args, err := ParseQueryArgs(user, MethodFindMany, map[string]interface{}{
		"take":    float64(-5),
		"orderBy": map[string]interface{}{"email": "asc"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if args.Take.Lit != 5 {
		t.Fatalf("got take=%d", args.Take.Lit)
	}
	if !args.OrderBy[0].Desc {
		t.Fatal("expected reversed order to be desc")
	}
}

func TestParseQueryArgsDistinctValidatesFields(t *testing.T) {
	user, _ := testModels()
	_, err := ParseQueryArgs(user, MethodFindMany, map[string]interface{}{
		"distinct": []interface{}{"nope"},
	})
	if err == nil {
		t.Fatal("expected error for unknown distinct field")
	}
}

func TestParseQueryArgsIncludeRelation(t *testing.T) {
	user, _ := testModels()
	args, err := ParseQueryArgs(user, MethodFindMany, map[string]interface{}{
		"include": map[string]interface{}{"posts": true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(args.Includes) != 1 || args.Includes[0].RelField != "posts" {
		t.Fatalf("got %+v", args.Includes)
	}
}

func TestParseQueryArgsSkipIgnoredForFindUnique(t *testing.T) {
	user, _ := testModels()
	args, err := ParseQueryArgs(user, MethodFindUnique, map[string]interface{}{"skip": float64(5)})
	if err != nil {
		t.Fatal(err)
	}
	if args.Skip != nil {
		t.Fatalf("expected skip ignored, got %v", args.Skip)
	}
}
