package model

import (
	"slices"
	"strings"
)

type Recipe struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Catalog maps recipe id -> Recipe.
type Catalog map[string]Recipe

func (c Catalog) Name(id string) string {
	if r, ok := c[id]; ok && strings.TrimSpace(r.Name) != "" {
		return r.Name
	}
	return id
}

// Search returns the recipes whose name or id contains query, case-insensitively, sorted
// by name. A blank query matches every recipe.
func (c Catalog) Search(query string) []Recipe {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]Recipe, 0, len(c))
	for id, r := range c {
		if r.ID == "" {
			r.ID = id
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(r.Name), query) &&
			!strings.Contains(strings.ToLower(r.ID), query) {
			continue
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Recipe) int {
		if n := strings.Compare(strings.ToLower(c.Name(a.ID)), strings.ToLower(c.Name(b.ID))); n != 0 {
			return n
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

type Group struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	RecipeIDs []string `json:"recipeIds"`
}

func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	return &Group{ID: g.ID, Name: g.Name, RecipeIDs: slices.Clone(g.RecipeIDs)}
}

// IndexOf returns the position of the first occurrence of recipeID, or -1.
func (g *Group) IndexOf(recipeID string) int {
	if g == nil {
		return -1
	}
	return slices.Index(g.RecipeIDs, recipeID)
}

// Grouping is one partition scheme (e.g. "weekday"). Order keeps the document order of
// group ids so groups render in a stable sequence.
type Grouping struct {
	Key    string
	Groups map[string]*Group
	Order  []string
}

func NewGrouping(key string) *Grouping {
	return &Grouping{Key: key, Groups: map[string]*Group{}}
}

// Add appends g to the grouping. It reports false when the id is already present.
func (gr *Grouping) Add(g *Group) bool {
	if gr == nil || g == nil {
		return false
	}
	if _, exists := gr.Groups[g.ID]; exists {
		return false
	}
	gr.Groups[g.ID] = g
	gr.Order = append(gr.Order, g.ID)
	return true
}

func (gr *Grouping) Group(id string) (*Group, bool) {
	if gr == nil {
		return nil, false
	}
	g, ok := gr.Groups[id]
	return g, ok && g != nil
}

// Ordered returns groups in render order.
func (gr *Grouping) Ordered() []*Group {
	if gr == nil {
		return nil
	}
	out := make([]*Group, 0, len(gr.Order))
	for _, id := range gr.Order {
		if g, ok := gr.Groups[id]; ok && g != nil {
			out = append(out, g)
		}
	}
	return out
}

func (gr *Grouping) Clone() *Grouping {
	if gr == nil {
		return nil
	}
	out := &Grouping{Key: gr.Key, Groups: make(map[string]*Group, len(gr.Groups)), Order: slices.Clone(gr.Order)}
	for id, g := range gr.Groups {
		out.Groups[id] = g.Clone()
	}
	return out
}

// Groupings holds every partition scheme loaded for a page, keyed by grouping key.
type Groupings struct {
	Keys  []string
	ByKey map[string]*Grouping
}

func NewGroupings() *Groupings {
	return &Groupings{ByKey: map[string]*Grouping{}}
}

func (gs *Groupings) Add(gr *Grouping) bool {
	if gs == nil || gr == nil {
		return false
	}
	if _, exists := gs.ByKey[gr.Key]; exists {
		return false
	}
	gs.ByKey[gr.Key] = gr
	gs.Keys = append(gs.Keys, gr.Key)
	return true
}

func (gs *Groupings) Get(key string) (*Grouping, bool) {
	if gs == nil {
		return nil, false
	}
	gr, ok := gs.ByKey[key]
	return gr, ok && gr != nil
}

// FindGroup searches all groupings for a group id. Group ids are only unique within one
// grouping; the first grouping (in key order) that has it wins.
func (gs *Groupings) FindGroup(groupID string) (*Grouping, *Group, bool) {
	if gs == nil {
		return nil, nil, false
	}
	for _, k := range gs.Keys {
		gr := gs.ByKey[k]
		if g, ok := gr.Group(groupID); ok {
			return gr, g, true
		}
	}
	return nil, nil, false
}

func (gs *Groupings) Clone() *Groupings {
	if gs == nil {
		return nil
	}
	out := &Groupings{Keys: slices.Clone(gs.Keys), ByKey: make(map[string]*Grouping, len(gs.ByKey))}
	for k, gr := range gs.ByKey {
		out.ByKey[k] = gr.Clone()
	}
	return out
}

// OccurrenceCount counts how many times recipeID appears across the given groups.
func OccurrenceCount(recipeID string, groups ...*Group) int {
	n := 0
	for _, g := range groups {
		if g == nil {
			continue
		}
		for _, id := range g.RecipeIDs {
			if id == recipeID {
				n++
			}
		}
	}
	return n
}
