package payload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"mealplan-cli/internal/model"

	"github.com/PuerkitoBio/goquery"
)

const (
	// Element ids the planner page uses for its json_script payloads.
	GroupingsElementID = "groupings"
	RecipesElementID   = "recipes"

	PartGroupings = "groupings"
	PartRecipes   = "recipes"
)

// Payload is the data a planner page embeds at load: every grouping plus the recipe catalog.
type Payload struct {
	Groupings *model.Groupings `json:"groupings"`
	Recipes   model.Catalog    `json:"recipes"`
}

// InitError reports a required part of the embedded payload that is missing or malformed.
type InitError struct {
	Part string
	Err  error
}

func (e *InitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("payload: %s missing", e.Part)
	}
	return fmt.Sprintf("payload: %s: %v", e.Part, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

var ErrMissing = errors.New("missing")

// Decode parses the two serialized parts and validates them.
func Decode(groupingsJSON, recipesJSON []byte) (*Payload, error) {
	if len(bytes.TrimSpace(groupingsJSON)) == 0 {
		return nil, &InitError{Part: PartGroupings, Err: ErrMissing}
	}
	if len(bytes.TrimSpace(recipesJSON)) == 0 {
		return nil, &InitError{Part: PartRecipes, Err: ErrMissing}
	}
	var gs model.Groupings
	if err := json.Unmarshal(groupingsJSON, &gs); err != nil {
		return nil, &InitError{Part: PartGroupings, Err: err}
	}
	var cat model.Catalog
	if err := json.Unmarshal(recipesJSON, &cat); err != nil {
		return nil, &InitError{Part: PartRecipes, Err: err}
	}
	p := &Payload{Groupings: &gs, Recipes: cat}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the structural invariants a page payload must satisfy. Recipe ids that are
// referenced but absent from the catalog are not an error; they render by id.
func (p *Payload) Validate() error {
	if p == nil || p.Groupings == nil || len(p.Groupings.Keys) == 0 {
		return &InitError{Part: PartGroupings, Err: errors.New("no groupings")}
	}
	if p.Recipes == nil {
		return &InitError{Part: PartRecipes, Err: ErrMissing}
	}
	for id, r := range p.Recipes {
		if strings.TrimSpace(id) == "" {
			return &InitError{Part: PartRecipes, Err: errors.New("empty recipe id")}
		}
		if r.ID != "" && r.ID != id {
			return &InitError{Part: PartRecipes, Err: fmt.Errorf("recipe key %q does not match id %q", id, r.ID)}
		}
	}
	for _, k := range p.Groupings.Keys {
		gr := p.Groupings.ByKey[k]
		for _, g := range gr.Ordered() {
			if strings.TrimSpace(g.ID) == "" {
				return &InitError{Part: PartGroupings, Err: fmt.Errorf("grouping %q: empty group id", k)}
			}
			seen := map[string]bool{}
			for _, rid := range g.RecipeIDs {
				if strings.TrimSpace(rid) == "" {
					return &InitError{Part: PartGroupings, Err: fmt.Errorf("group %q: empty recipe id", g.ID)}
				}
				if seen[rid] {
					return &InitError{Part: PartGroupings, Err: fmt.Errorf("group %q: recipe %q listed twice", g.ID, rid)}
				}
				seen[rid] = true
			}
		}
	}
	return nil
}

// UnknownRecipes returns recipe ids referenced by any group but absent from the catalog.
func (p *Payload) UnknownRecipes() []string {
	if p == nil || p.Groupings == nil {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, k := range p.Groupings.Keys {
		for _, g := range p.Groupings.ByKey[k].Ordered() {
			for _, rid := range g.RecipeIDs {
				if _, ok := p.Recipes[rid]; ok || seen[rid] {
					continue
				}
				seen[rid] = true
				out = append(out, rid)
			}
		}
	}
	return out
}

// FromHTML extracts the payload from a server-rendered planner page.
func FromHTML(r io.Reader) (*Payload, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("payload: parse html: %w", err)
	}
	return Decode(scriptText(doc, GroupingsElementID), scriptText(doc, RecipesElementID))
}

func scriptText(doc *goquery.Document, id string) []byte {
	sel := doc.Find("script#" + id).First()
	if sel.Length() == 0 {
		return nil
	}
	return []byte(sel.Text())
}

// LoadFile reads a payload from disk. HTML pages (.html/.htm) are parsed for their embedded
// scripts; anything else is treated as a JSON document {"groupings": ..., "recipes": ...}.
func LoadFile(path string) (*Payload, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return FromHTML(bytes.NewReader(b))
	default:
		return FromJSON(b)
	}
}

func FromJSON(b []byte) (*Payload, error) {
	var doc struct {
		Groupings json.RawMessage `json:"groupings"`
		Recipes   json.RawMessage `json:"recipes"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, &InitError{Part: PartGroupings, Err: err}
	}
	return Decode(nullAsEmpty(doc.Groupings), nullAsEmpty(doc.Recipes))
}

func nullAsEmpty(b json.RawMessage) []byte {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	return b
}

// Fetch GETs a planner page and extracts its payload.
func Fetch(ctx context.Context, client *http.Client, pageURL string) (*Payload, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payload: fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("payload: fetch %s: status %d", pageURL, resp.StatusCode)
	}
	return FromHTML(resp.Body)
}

// SaveFile writes p as a JSON document. The file is replaced atomically so a watching board
// never reads half of it.
func SaveFile(path string, p *Payload) error {
	if p == nil || p.Groupings == nil {
		return &InitError{Part: PartGroupings, Err: ErrMissing}
	}
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("payload: encode: %w", err)
	}
	b = append(b, '\n')
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("payload: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("payload: %w", err)
	}
	return nil
}
