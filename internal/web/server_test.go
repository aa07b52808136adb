package web

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"mealplan-cli/internal/payload"
	"mealplan-cli/internal/persist"

	"github.com/google/go-cmp/cmp"
)

func newTestServer(t *testing.T, cfg ServerConfig) (*Server, *httptest.Server) {
	t.Helper()
	s, err := NewServer(cfg, payload.Demo())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func groupOrder(t *testing.T, s *Server, key, groupID string) []string {
	t.Helper()
	gr, ok := s.Payload().Groupings.Get(key)
	if !ok {
		t.Fatalf("no grouping %q", key)
	}
	g, ok := gr.Group(groupID)
	if !ok {
		t.Fatalf("no group %q", groupID)
	}
	return g.RecipeIDs
}

func TestPlanPage_RoundTripsThroughFetch(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, ServerConfig{})
	p, err := payload.Fetch(context.Background(), ts.Client(), ts.URL+"/")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := payload.Demo()
	if d := cmp.Diff(want.Groupings.Keys, p.Groupings.Keys); d != "" {
		t.Fatalf("keys (-want +got):\n%s", d)
	}
	gr, _ := p.Groupings.Get("weekday")
	if d := cmp.Diff([]string{"monday", "tuesday", "wednesday"}, gr.Order); d != "" {
		t.Fatalf("group order (-want +got):\n%s", d)
	}
	if p.Recipes.Name("fish-curry") != "Fish Curry (for 4)" {
		t.Fatalf("recipes not embedded")
	}

	resp, err := ts.Client().Get(ts.URL + "/?grouping=season")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown grouping status = %d", resp.StatusCode)
	}
}

func TestMove_ClientAgainstServer(t *testing.T) {
	t.Parallel()

	s, ts := newTestServer(t, ServerConfig{CSRFToken: "tok"})
	c, err := persist.NewClient(ts.URL, persist.WithHTTPClient(ts.Client()), persist.WithCSRFToken("tok"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	err = c.MoveItems(context.Background(), persist.MoveRequest{
		ToGroup:   "monday",
		FromGroup: "tuesday",
		ToOrder:   []string{"overnight-oats", "quinoa-salad", "greek-yogurt", "pasta-carbonara"},
		FromOrder: []string{"chicken-korma", "beef-stir-fry"},
	})
	if err != nil {
		t.Fatalf("MoveItems: %v", err)
	}
	if d := cmp.Diff([]string{"overnight-oats", "quinoa-salad", "greek-yogurt", "pasta-carbonara"}, groupOrder(t, s, "weekday", "monday")); d != "" {
		t.Fatalf("monday (-want +got):\n%s", d)
	}
	if d := cmp.Diff([]string{"chicken-korma", "beef-stir-fry"}, groupOrder(t, s, "weekday", "tuesday")); d != "" {
		t.Fatalf("tuesday (-want +got):\n%s", d)
	}
}

func TestMove_WithoutFromOrderDropsMovedIDs(t *testing.T) {
	t.Parallel()

	s, ts := newTestServer(t, ServerConfig{})
	form := url.Values{
		"to_group":   {"wednesday"},
		"from_group": {"monday"},
		"to_order":   {"greek-yogurt,smoothie-bowl,chicken-sandwich,fish-curry"},
	}
	resp, err := ts.Client().PostForm(ts.URL+persist.MovePath, form)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if d := cmp.Diff([]string{"overnight-oats", "pasta-carbonara"}, groupOrder(t, s, "weekday", "monday")); d != "" {
		t.Fatalf("monday (-want +got):\n%s", d)
	}
}

func TestMove_Rejects(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, ServerConfig{CSRFToken: "tok"})
	cases := []struct {
		name   string
		form   url.Values
		csrf   string
		status int
	}{
		{"no csrf", url.Values{"to_group": {"monday"}, "to_order": {"pancakes"}}, "", http.StatusForbidden},
		{"missing to_group", url.Values{"to_order": {"pancakes"}}, "tok", http.StatusBadRequest},
		{"unknown group", url.Values{"to_group": {"sunday"}, "to_order": {"pancakes"}}, "tok", http.StatusNotFound},
		{"cross grouping", url.Values{"to_group": {"monday"}, "from_group": {"lunch"}, "to_order": {"pancakes"}}, "tok", http.StatusNotFound},
		{"unknown recipe", url.Values{"to_group": {"monday"}, "to_order": {"haggis"}}, "tok", http.StatusBadRequest},
		{"duplicate", url.Values{"to_group": {"monday"}, "to_order": {"pancakes,pancakes"}}, "tok", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, ts.URL+persist.MovePath, strings.NewReader(tc.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tc.csrf != "" {
				req.Header.Set(persist.CSRFHeader, tc.csrf)
			}
			resp, err := ts.Client().Do(req)
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.status)
			}
		})
	}
}

func TestAssign_MovesWithinGrouping(t *testing.T) {
	t.Parallel()

	s, ts := newTestServer(t, ServerConfig{})
	c, _ := persist.NewClient(ts.URL, persist.WithHTTPClient(ts.Client()))
	if err := c.AssignItem(context.Background(), "pancakes", "dinner"); err != nil {
		t.Fatalf("AssignItem: %v", err)
	}
	if d := cmp.Diff([]string{"overnight-oats", "greek-yogurt", "french-toast"}, groupOrder(t, s, "mealType", "breakfast")); d != "" {
		t.Fatalf("breakfast (-want +got):\n%s", d)
	}
	if d := cmp.Diff([]string{"pasta-carbonara", "chicken-korma", "beef-stir-fry", "fish-curry", "pancakes"}, groupOrder(t, s, "mealType", "dinner")); d != "" {
		t.Fatalf("dinner (-want +got):\n%s", d)
	}
	// The weekday grouping is independent.
	if d := cmp.Diff([]string{"overnight-oats", "greek-yogurt", "pasta-carbonara"}, groupOrder(t, s, "weekday", "monday")); d != "" {
		t.Fatalf("monday (-want +got):\n%s", d)
	}

	var se *persist.StatusError
	err := c.AssignItem(context.Background(), "haggis", "dinner")
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestRename(t *testing.T) {
	t.Parallel()

	s, ts := newTestServer(t, ServerConfig{})
	c, _ := persist.NewClient(ts.URL, persist.WithHTTPClient(ts.Client()))
	if err := c.RenameGroup(context.Background(), "lunch", "Packed lunch"); err != nil {
		t.Fatalf("RenameGroup: %v", err)
	}
	gr, _ := s.Payload().Groupings.Get("mealType")
	if g, _ := gr.Group("lunch"); g.Name != "Packed lunch" {
		t.Fatalf("Name = %q", g.Name)
	}
}

func TestToggle_AddsThenRemoves(t *testing.T) {
	t.Parallel()

	s, ts := newTestServer(t, ServerConfig{CSRFToken: "tok"})
	c, _ := persist.NewClient(ts.URL, persist.WithHTTPClient(ts.Client()), persist.WithCSRFToken("tok"))
	ctx := context.Background()

	if err := c.ToggleRecipe(ctx, "monday", "lentil-soup"); err != nil {
		t.Fatalf("ToggleRecipe: %v", err)
	}
	if d := cmp.Diff([]string{"overnight-oats", "greek-yogurt", "pasta-carbonara", "lentil-soup"}, groupOrder(t, s, "weekday", "monday")); d != "" {
		t.Fatalf("monday after add (-want +got):\n%s", d)
	}
	if err := c.ToggleRecipe(ctx, "monday", "lentil-soup"); err != nil {
		t.Fatalf("ToggleRecipe: %v", err)
	}
	if d := cmp.Diff([]string{"overnight-oats", "greek-yogurt", "pasta-carbonara"}, groupOrder(t, s, "weekday", "monday")); d != "" {
		t.Fatalf("monday after remove (-want +got):\n%s", d)
	}

	for _, ids := range [][2]string{{"sunday", "lentil-soup"}, {"monday", "haggis"}} {
		err := c.ToggleRecipe(ctx, ids[0], ids[1])
		var se *persist.StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
			t.Fatalf("ToggleRecipe(%q, %q) = %v, want 404", ids[0], ids[1], err)
		}
	}
	noToken, _ := persist.NewClient(ts.URL, persist.WithHTTPClient(ts.Client()))
	var se *persist.StatusError
	if err := noToken.ToggleRecipe(ctx, "monday", "lentil-soup"); !errors.As(err, &se) || se.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without a token, got %v", err)
	}
}

func TestEvents_PatchesGroupsAfterMove(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, ServerConfig{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events?grouping=weekday", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	lines := bufio.NewScanner(resp.Body)
	readUntil := func(substr string) bool {
		for lines.Scan() {
			if strings.Contains(lines.Text(), substr) {
				return true
			}
		}
		return false
	}
	if !readUntil("datastar-patch-signals") {
		t.Fatalf("no initial signals event")
	}

	form := url.Values{"to_group": {"wednesday"}, "to_order": {"fish-curry,smoothie-bowl,chicken-sandwich"}}
	post, err := ts.Client().PostForm(ts.URL+persist.MovePath, form)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	post.Body.Close()

	if !readUntil("datastar-patch-elements") {
		t.Fatalf("no element patch after move")
	}
	if !readUntil(`data-id="fish-curry"`) {
		t.Fatalf("patched fragment does not list the moved recipe")
	}
}

func TestServe_ShutdownEndsOpenStreams(t *testing.T) {
	t.Parallel()

	s, err := NewServer(ServerConfig{}, payload.Demo())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/events")
	if err != nil {
		cancel()
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()
	lines := bufio.NewScanner(resp.Body)
	if !lines.Scan() {
		cancel()
		t.Fatalf("no first event line")
	}

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(4 * time.Second):
		t.Fatalf("Serve did not return after cancel")
	}
}

func TestDocs_RendersMarkdown(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, ServerConfig{})
	resp, err := ts.Client().Get(ts.URL + "/docs/sync")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "<h1") || !strings.Contains(string(body), `aria-current="page">sync</a>`) {
		t.Fatalf("expected rendered topic, got:\n%s", body)
	}

	resp, err = ts.Client().Get(ts.URL + "/docs/nope")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown topic status = %d", resp.StatusCode)
	}
}
