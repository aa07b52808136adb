package payload

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const pageHTML = `<!doctype html>
<html><body>
<div id="planner"></div>
<script id="groupings" type="application/json">{"weekday": {"monday": {"id": "monday", "name": "Monday", "recipeIds": ["overnight-oats"]}}}</script>
<script id="recipes" type="application/json">{"overnight-oats": {"id": "overnight-oats", "name": "Overnight Oats (for 2)"}}</script>
</body></html>`

func TestFromHTML_ReadsEmbeddedScripts(t *testing.T) {
	t.Parallel()

	p, err := FromHTML(strings.NewReader(pageHTML))
	if err != nil {
		t.Fatalf("FromHTML: %v", err)
	}
	g, ok := p.Groupings.ByKey["weekday"].Group("monday")
	if !ok || len(g.RecipeIDs) != 1 || g.RecipeIDs[0] != "overnight-oats" {
		t.Fatalf("unexpected monday group: %#v", g)
	}
	if p.Recipes.Name("overnight-oats") != "Overnight Oats (for 2)" {
		t.Fatalf("unexpected catalog: %#v", p.Recipes)
	}
}

func TestFromHTML_MissingPartIsInitError(t *testing.T) {
	t.Parallel()

	html := strings.Replace(pageHTML, `id="recipes"`, `id="other"`, 1)
	_, err := FromHTML(strings.NewReader(html))
	var ie *InitError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InitError, got %v", err)
	}
	if ie.Part != PartRecipes || !errors.Is(err, ErrMissing) {
		t.Fatalf("expected missing recipes, got %#v", ie)
	}
}

func TestDecode_RejectsStructuralProblems(t *testing.T) {
	t.Parallel()

	recipes := []byte(`{}`)
	cases := map[string]string{
		"malformed":          `{"weekday": `,
		"no groupings":       `{}`,
		"duplicate in group": `{"weekday": {"monday": {"recipeIds": ["a", "a"]}}}`,
		"empty recipe id":    `{"weekday": {"monday": {"recipeIds": [" "]}}}`,
		"group key mismatch": `{"weekday": {"monday": {"id": "tuesday"}}}`,
	}
	for name, raw := range cases {
		_, err := Decode([]byte(raw), recipes)
		var ie *InitError
		if !errors.As(err, &ie) || ie.Part != PartGroupings {
			t.Fatalf("%s: expected groupings InitError, got %v", name, err)
		}
	}
}

func TestDecode_DuplicateAcrossGroupsAllowed(t *testing.T) {
	t.Parallel()

	p, err := Decode([]byte(`{
		"weekday": {"monday": {"recipeIds": ["a"]}},
		"mealType": {"breakfast": {"recipeIds": ["a"]}, "lunch": {"recipeIds": ["a", "b"]}}
	}`), []byte(`{"a": {"name": "A"}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := p.UnknownRecipes(); len(got) != 1 || got[0] != "b" {
		t.Fatalf("UnknownRecipes: %v", got)
	}
}

func TestFromJSON_NullPartIsMissing(t *testing.T) {
	t.Parallel()

	_, err := FromJSON([]byte(`{"groupings": null, "recipes": {}}`))
	var ie *InitError
	if !errors.As(err, &ie) || ie.Part != PartGroupings || !errors.Is(err, ErrMissing) {
		t.Fatalf("expected missing groupings, got %v", err)
	}
}

func TestDemo_ContainsScenarioGroups(t *testing.T) {
	t.Parallel()

	p := Demo()
	if strings.Join(p.Groupings.Keys, ",") != "weekday,mealType" {
		t.Fatalf("keys: %v", p.Groupings.Keys)
	}
	b, ok := p.Groupings.ByKey["mealType"].Group("breakfast")
	if !ok || strings.Join(b.RecipeIDs, ",") != "overnight-oats,greek-yogurt,pancakes,french-toast" {
		t.Fatalf("breakfast: %#v", b)
	}
	if len(p.UnknownRecipes()) != 0 {
		t.Fatalf("demo references unknown recipes: %v", p.UnknownRecipes())
	}
}

func TestFetch_ParsesPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(pageHTML))
	}))
	defer srv.Close()

	p, err := Fetch(context.Background(), srv.Client(), srv.URL+"/plan/")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if _, ok := p.Groupings.Get("weekday"); !ok {
		t.Fatalf("expected weekday grouping")
	}
}

func TestFetch_Non2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := Fetch(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Fatalf("expected error for 500")
	}
}

func TestLoadFile_HTMLAndJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "plan.html")
	if err := os.WriteFile(htmlPath, []byte(pageHTML), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(htmlPath); err != nil {
		t.Fatalf("LoadFile html: %v", err)
	}

	jsonPath := filepath.Join(dir, "plan.json")
	if err := os.WriteFile(jsonPath, []byte(demoJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(jsonPath); err != nil {
		t.Fatalf("LoadFile json: %v", err)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")
	if err := os.WriteFile(path, []byte(demoJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	got := make(chan *Payload, 4)
	w := &Watcher{
		Path:     path,
		Debounce: 20 * time.Millisecond,
		OnChange: func(p *Payload, err error) {
			if err == nil {
				got <- p
			}
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = w.Stop() }()

	updated := strings.Replace(demoJSON, `"name": "Monday"`, `"name": "Mon"`, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-got:
		g, _ := p.Groupings.ByKey["weekday"].Group("monday")
		if g.Name != "Mon" {
			t.Fatalf("expected reloaded name, got %q", g.Name)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for reload")
	}
}

func TestSaveFile_RoundTripKeepsOrder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plan.json")
	want := Demo()
	g, _ := want.Groupings.ByKey["weekday"].Group("tuesday")
	g.RecipeIDs = []string{"beef-stir-fry", "chicken-korma"}
	if err := SaveFile(path, want); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if strings.Join(got.Groupings.Keys, ",") != "weekday,mealType" {
		t.Fatalf("grouping order lost: %v", got.Groupings.Keys)
	}
	if order := got.Groupings.ByKey["weekday"].Order; strings.Join(order, ",") != "monday,tuesday,wednesday" {
		t.Fatalf("group order lost: %v", order)
	}
	tue, _ := got.Groupings.ByKey["weekday"].Group("tuesday")
	if strings.Join(tue.RecipeIDs, ",") != "beef-stir-fry,chicken-korma" {
		t.Fatalf("unexpected tuesday: %v", tue.RecipeIDs)
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected temp file to be gone, stat err=%v", err)
	}
}
