package model

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestGroupings_Unmarshal_PreservesDocumentOrder(t *testing.T) {
	t.Parallel()

	raw := `{
		"weekday": {
			"tuesday": {"id": "tuesday", "name": "Tuesday", "recipeIds": ["chicken-korma"]},
			"monday": {"id": "monday", "name": "Monday", "recipeIds": ["overnight-oats", "greek-yogurt"]}
		},
		"mealType": {
			"lunch": {"name": "Lunch"}
		}
	}`
	var gs Groupings
	if err := json.Unmarshal([]byte(raw), &gs); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(gs.Keys, []string{"weekday", "mealType"}) {
		t.Fatalf("keys order: %v", gs.Keys)
	}
	wd, _ := gs.Get("weekday")
	if !reflect.DeepEqual(wd.Order, []string{"tuesday", "monday"}) {
		t.Fatalf("group order: %v", wd.Order)
	}
	lunch, ok := gs.ByKey["mealType"].Group("lunch")
	if !ok || lunch.ID != "lunch" || lunch.RecipeIDs == nil {
		t.Fatalf("expected id to default from key and empty list; got %#v", lunch)
	}
}

func TestGroupings_Unmarshal_Rejects(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"id mismatch":      `{"weekday": {"monday": {"id": "tuesday"}}}`,
		"duplicate group":  `{"weekday": {"monday": {}, "monday": {}}}`,
		"not an object":    `["weekday"]`,
		"group not object": `{"weekday": []}`,
	}
	for name, raw := range cases {
		var gs Groupings
		if err := json.Unmarshal([]byte(raw), &gs); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestGroupings_MarshalRoundTrip(t *testing.T) {
	t.Parallel()

	gs := NewGroupings()
	gr := NewGrouping("weekday")
	gr.Add(&Group{ID: "wednesday", Name: "Wednesday", RecipeIDs: []string{"fish-curry"}})
	gr.Add(&Group{ID: "monday", Name: "Monday", RecipeIDs: []string{}})
	gs.Add(gr)

	b, err := json.Marshal(gs)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Index(string(b), "wednesday") > strings.Index(string(b), "monday") {
		t.Fatalf("expected document order to follow Order; got %s", b)
	}

	var back Groupings
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(gs, &back) {
		t.Fatalf("roundtrip mismatch:\nwant: %#v\ngot:  %#v", gs, &back)
	}
}

func TestGroupings_CloneIsDeep(t *testing.T) {
	t.Parallel()

	gs := NewGroupings()
	gr := NewGrouping("weekday")
	gr.Add(&Group{ID: "monday", RecipeIDs: []string{"a", "b"}})
	gs.Add(gr)

	cp := gs.Clone()
	g, _ := cp.ByKey["weekday"].Group("monday")
	g.RecipeIDs[0] = "z"
	g.Name = "changed"

	orig, _ := gs.ByKey["weekday"].Group("monday")
	if orig.RecipeIDs[0] != "a" || orig.Name != "" {
		t.Fatalf("clone shares state with original: %#v", orig)
	}
}
