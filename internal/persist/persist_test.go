package persist

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestMoveRequestForm_OmitsEmptyFromOrder(t *testing.T) {
	t.Parallel()

	req := MoveRequest{
		ToGroup:   "tuesday",
		FromGroup: "monday",
		ToOrder:   []string{"chicken-korma", "overnight-oats", "beef-stir-fry"},
	}
	form := req.Form()
	if _, ok := form["from_order"]; ok {
		t.Fatalf("from_order must be absent, got %v", form)
	}
	want := url.Values{
		"to_group":   {"tuesday"},
		"from_group": {"monday"},
		"to_order":   {"chicken-korma,overnight-oats,beef-stir-fry"},
	}
	if d := cmp.Diff(want, form); d != "" {
		t.Fatalf("form (-want +got):\n%s", d)
	}
}

func TestMoveRequestForm_SameGroupOmitsFromGroup(t *testing.T) {
	t.Parallel()

	form := MoveRequest{ToGroup: "monday", FromGroup: "monday", ToOrder: []string{"b", "a"}}.Form()
	if _, ok := form["from_group"]; ok {
		t.Fatalf("from_group must be absent for in-place reorder: %v", form)
	}
	if form.Get("to_order") != "b,a" {
		t.Fatalf("to_order = %q", form.Get("to_order"))
	}
}

func TestParseMoveForm_RoundTrip(t *testing.T) {
	t.Parallel()

	in := MoveRequest{ToGroup: "lunch", FromGroup: "breakfast", ToOrder: []string{"a", "b"}, FromOrder: []string{"c"}}
	out, err := ParseMoveForm(in.Form())
	if err != nil {
		t.Fatalf("ParseMoveForm: %v", err)
	}
	if d := cmp.Diff(in, out); d != "" {
		t.Fatalf("(-want +got):\n%s", d)
	}
	if _, err := ParseMoveForm(url.Values{"to_order": {"a"}}); err == nil {
		t.Fatalf("expected error without to_group")
	}
}

func TestClient_MoveItems_PostsForm(t *testing.T) {
	t.Parallel()

	var got *http.Request
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		got = r
		gotForm = r.PostForm
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithHTTPClient(srv.Client()), WithCSRFToken("tok"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	err = c.MoveItems(context.Background(), MoveRequest{
		ToGroup:   "tuesday",
		FromGroup: "monday",
		ToOrder:   []string{"chicken-korma", "overnight-oats", "beef-stir-fry"},
	})
	if err != nil {
		t.Fatalf("MoveItems: %v", err)
	}
	if got.Method != http.MethodPost || got.URL.Path != MovePath {
		t.Fatalf("got %s %s", got.Method, got.URL.Path)
	}
	if _, ok := gotForm["from_order"]; ok {
		t.Fatalf("from_order sent: %v", gotForm)
	}
	if gotForm.Get("to_order") != "chicken-korma,overnight-oats,beef-stir-fry" {
		t.Fatalf("to_order = %q", gotForm.Get("to_order"))
	}
	if got.Header.Get(CSRFHeader) != "tok" {
		t.Fatalf("missing csrf header")
	}
	if ck, err := got.Cookie(CSRFCookie); err != nil || ck.Value != "tok" {
		t.Fatalf("missing csrf cookie: %v", err)
	}
	if got.Header.Get(RequestIDHeader) == "" {
		t.Fatalf("missing request id")
	}
}

func TestClient_AssignItem_Path(t *testing.T) {
	t.Parallel()

	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/planner/", WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.AssignItem(context.Background(), "quinoa-salad", "monday"); err != nil {
		t.Fatalf("AssignItem: %v", err)
	}
	if path != "/planner/action_update_mpr/quinoa-salad/monday/" {
		t.Fatalf("path = %q", path)
	}
	if err := c.AssignItem(context.Background(), "a/b", "monday"); err == nil {
		t.Fatalf("expected error for id with slash")
	}
}

func TestClient_StatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such group", http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	err := c.MoveItems(context.Background(), MoveRequest{ToGroup: "sunday", ToOrder: []string{"a"}})
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
	if se.Body == "" {
		t.Fatalf("expected body excerpt in error")
	}
}

func TestClient_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, _ := NewClient(srv.URL, WithHTTPClient(srv.Client()), WithTimeout(30*time.Millisecond))
	err := c.MoveItems(context.Background(), MoveRequest{ToGroup: "monday", ToOrder: []string{"a"}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	t.Parallel()

	for _, u := range []string{"", "  ", "ftp://example.com", "://bad"} {
		if _, err := NewClient(u); err == nil {
			t.Fatalf("NewClient(%q) should fail", u)
		}
	}
}

func TestClient_RenameGroup(t *testing.T) {
	t.Parallel()

	var path, name string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		name = r.PostFormValue("meal_group_name")
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	if err := c.RenameGroup(context.Background(), "monday", "  Meatless Monday "); err != nil {
		t.Fatalf("RenameGroup: %v", err)
	}
	if path != RenamePath+"monday/" || name != "Meatless Monday" {
		t.Fatalf("got %q %q", path, name)
	}
	if err := c.RenameGroup(context.Background(), "monday", " "); err == nil {
		t.Fatalf("blank name should fail before any request")
	}
}

func TestClient_ToggleRecipe(t *testing.T) {
	t.Parallel()

	var path, token string
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		path = r.URL.Path
		token = r.Header.Get(CSRFHeader)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, WithHTTPClient(srv.Client()), WithCSRFToken("tok"))
	if err := c.ToggleRecipe(context.Background(), "monday", "lentil-soup"); err != nil {
		t.Fatalf("ToggleRecipe: %v", err)
	}
	if path != "/action_toggle_mpr/monday/lentil-soup/" || token != "tok" {
		t.Fatalf("got path=%q token=%q", path, token)
	}
	for _, ids := range [][2]string{{"", "lentil-soup"}, {"monday", " "}, {"mon/day", "lentil-soup"}} {
		if err := c.ToggleRecipe(context.Background(), ids[0], ids[1]); err == nil {
			t.Fatalf("ToggleRecipe(%q, %q) should fail", ids[0], ids[1])
		}
	}
	if calls != 1 {
		t.Fatalf("bad ids reached the server: %d calls", calls)
	}
}
