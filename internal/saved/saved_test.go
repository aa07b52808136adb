package saved

import (
	"context"
	"path/filepath"
	"testing"
)

func TestToggle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	on, err := s.Toggle(ctx, "fish-curry")
	if err != nil || !on {
		t.Fatalf("first toggle: on=%v err=%v", on, err)
	}
	if has, _ := s.Has(ctx, "fish-curry"); !has {
		t.Fatalf("Has = false after save")
	}
	on, err = s.Toggle(ctx, "fish-curry")
	if err != nil || on {
		t.Fatalf("second toggle: on=%v err=%v", on, err)
	}
	if has, _ := s.Has(ctx, "fish-curry"); has {
		t.Fatalf("Has = true after unsave")
	}
	if _, err := s.Toggle(ctx, "  "); err == nil {
		t.Fatalf("expected error for blank id")
	}
}

func TestListPersistsAcrossOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), FileName)
	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, id := range []string{"pancakes", "lentil-soup"} {
		if _, err := s.Toggle(ctx, id); err != nil {
			t.Fatalf("Toggle: %v", err)
		}
	}
	_ = s.Close()

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	set, err := s.Set(ctx)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(set) != 2 || !set["pancakes"] || !set["lentil-soup"] {
		t.Fatalf("Set = %v", set)
	}
}
