package viewmodel

import (
	"fmt"
	"slices"
	"strings"

	"mealplan-cli/internal/model"
	"mealplan-cli/internal/payload"

	"go.uber.org/zap"
)

type ChangeKind int

const (
	// ChangeContainers means the set of rendered group containers changed (grouping switch or
	// payload replace). Any drag bindings against the old containers are stale.
	ChangeContainers ChangeKind = iota + 1
	ChangeOrder
	ChangeNames
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeContainers:
		return "containers"
	case ChangeOrder:
		return "order"
	case ChangeNames:
		return "names"
	default:
		return fmt.Sprintf("change(%d)", int(k))
	}
}

type Change struct {
	Kind     ChangeKind
	Grouping string
	GroupIDs []string
}

type UnknownGroupingError struct {
	Key   string
	Known []string
}

func (e *UnknownGroupingError) Error() string {
	return fmt.Sprintf("unknown grouping %q (known: %s)", e.Key, strings.Join(e.Known, ", "))
}

// Confirmer answers a yes/no prompt synchronously.
type Confirmer interface {
	Confirm(prompt string) bool
}

type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

type Option func(*ViewModel)

func WithLogger(l *zap.Logger) Option {
	return func(vm *ViewModel) {
		if l != nil {
			vm.log = l
		}
	}
}

// WithActive selects the initial grouping. Without it the first grouping in document order
// is active.
func WithActive(key string) Option {
	return func(vm *ViewModel) { vm.active = strings.TrimSpace(key) }
}

type subscriber struct {
	id int
	fn func(Change)
}

// ViewModel owns the grouping state for one page session. All methods are meant to be
// called from the host's event loop; nothing here locks.
type ViewModel struct {
	log       *zap.Logger
	recipes   model.Catalog
	groupings *model.Groupings
	active    string

	subs    []subscriber
	nextSub int
}

func New(p *payload.Payload, opts ...Option) (*ViewModel, error) {
	if p == nil {
		return nil, &payload.InitError{Part: payload.PartGroupings, Err: payload.ErrMissing}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	vm := &ViewModel{
		log:       zap.NewNop(),
		recipes:   p.Recipes,
		groupings: p.Groupings.Clone(),
	}
	for _, opt := range opts {
		opt(vm)
	}
	if vm.active == "" {
		vm.active = vm.groupings.Keys[0]
	}
	if _, ok := vm.groupings.Get(vm.active); !ok {
		return nil, &UnknownGroupingError{Key: vm.active, Known: slices.Clone(vm.groupings.Keys)}
	}
	for _, rid := range p.UnknownRecipes() {
		vm.log.Warn("recipe referenced by a group is missing from the catalog", zap.String("recipe", rid))
	}
	return vm, nil
}

// OnChange registers fn to run after every mutation. The returned func unsubscribes.
func (vm *ViewModel) OnChange(fn func(Change)) func() {
	vm.nextSub++
	id := vm.nextSub
	vm.subs = append(vm.subs, subscriber{id: id, fn: fn})
	return func() {
		vm.subs = slices.DeleteFunc(vm.subs, func(s subscriber) bool { return s.id == id })
	}
}

func (vm *ViewModel) emit(c Change) {
	c.Grouping = vm.active
	for _, s := range slices.Clone(vm.subs) {
		s.fn(c)
	}
}

func (vm *ViewModel) current() *model.Grouping {
	gr, _ := vm.groupings.Get(vm.active)
	return gr
}

func (vm *ViewModel) Active() string { return vm.active }

func (vm *ViewModel) Keys() []string { return slices.Clone(vm.groupings.Keys) }

// NextKey returns the grouping key after the active one, wrapping around.
func (vm *ViewModel) NextKey() string {
	keys := vm.groupings.Keys
	i := slices.Index(keys, vm.active)
	return keys[(i+1)%len(keys)]
}

func (vm *ViewModel) Recipes() model.Catalog { return vm.recipes }

func (vm *ViewModel) RecipeName(id string) string { return vm.recipes.Name(id) }

// Groups returns copies of the active grouping's groups in render order.
func (vm *ViewModel) Groups() []model.Group {
	ordered := vm.current().Ordered()
	out := make([]model.Group, 0, len(ordered))
	for _, g := range ordered {
		out = append(out, *g.Clone())
	}
	return out
}

func (vm *ViewModel) Group(id string) (model.Group, bool) {
	g, ok := vm.current().Group(id)
	if !ok {
		return model.Group{}, false
	}
	return *g.Clone(), true
}

// Snapshot returns a deep copy of every grouping.
func (vm *ViewModel) Snapshot() *model.Groupings { return vm.groupings.Clone() }

// GroupBy switches the active grouping. Inactive groupings are never modified.
func (vm *ViewModel) GroupBy(key string) error {
	key = strings.TrimSpace(key)
	if _, ok := vm.groupings.Get(key); !ok {
		return &UnknownGroupingError{Key: key, Known: slices.Clone(vm.groupings.Keys)}
	}
	if key == vm.active {
		return nil
	}
	vm.active = key
	vm.log.Debug("grouping switched", zap.String("grouping", key))
	vm.emit(Change{Kind: ChangeContainers})
	return nil
}

// UpdateGroupName renames a group in the active grouping. Blank names and unknown ids are
// rejected without changing anything.
func (vm *ViewModel) UpdateGroupName(groupID, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	g, ok := vm.current().Group(groupID)
	if !ok {
		vm.log.Warn("rename of unknown group ignored", zap.String("grouping", vm.active), zap.String("group", groupID))
		return false
	}
	if g.Name == name {
		return true
	}
	g.Name = name
	vm.emit(Change{Kind: ChangeNames, GroupIDs: []string{g.ID}})
	return true
}

// MoveRecipe removes the first occurrence of recipeID from the source group and inserts it
// into the destination at index, clamped to [0, len]. fromGroupID == toGroupID reorders in
// place.
func (vm *ViewModel) MoveRecipe(recipeID, fromGroupID, toGroupID string, index int) bool {
	gr := vm.current()
	from, okFrom := gr.Group(fromGroupID)
	to, okTo := gr.Group(toGroupID)
	if !okFrom || !okTo {
		vm.log.Warn("move references unknown group",
			zap.String("grouping", vm.active),
			zap.String("recipe", recipeID),
			zap.String("from", fromGroupID),
			zap.String("to", toGroupID))
		return false
	}
	at := from.IndexOf(recipeID)
	if at < 0 {
		vm.log.Warn("move of recipe not in source group",
			zap.String("grouping", vm.active),
			zap.String("recipe", recipeID),
			zap.String("from", fromGroupID))
		return false
	}
	if from != to && to.IndexOf(recipeID) >= 0 {
		vm.log.Warn("move would duplicate recipe in destination group",
			zap.String("grouping", vm.active),
			zap.String("recipe", recipeID),
			zap.String("to", toGroupID))
		return false
	}

	from.RecipeIDs = slices.Delete(from.RecipeIDs, at, at+1)
	index = max(0, min(index, len(to.RecipeIDs)))
	to.RecipeIDs = slices.Insert(to.RecipeIDs, index, recipeID)

	ids := []string{to.ID}
	if from != to {
		ids = append(ids, from.ID)
	}
	vm.emit(Change{Kind: ChangeOrder, GroupIDs: ids})
	return true
}

// ApplyOrder replaces a group's order list with the given ids, e.g. the order read back from
// rendered containers. Repeated ids keep their first position.
func (vm *ViewModel) ApplyOrder(groupID string, order []string) bool {
	g, ok := vm.current().Group(groupID)
	if !ok {
		vm.log.Warn("order for unknown group ignored", zap.String("grouping", vm.active), zap.String("group", groupID))
		return false
	}
	next := make([]string, 0, len(order))
	seen := map[string]bool{}
	for _, id := range order {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		next = append(next, id)
	}
	if slices.Equal(g.RecipeIDs, next) {
		return true
	}
	g.RecipeIDs = next
	vm.emit(Change{Kind: ChangeOrder, GroupIDs: []string{g.ID}})
	return true
}

// AddRecipe appends a catalog recipe to a group. Unknown recipes or groups, and recipes the
// group already holds, are no-ops.
func (vm *ViewModel) AddRecipe(groupID, recipeID string) bool {
	g, ok := vm.current().Group(groupID)
	if !ok {
		vm.log.Warn("add to unknown group ignored", zap.String("grouping", vm.active), zap.String("group", groupID))
		return false
	}
	if _, ok := vm.recipes[recipeID]; !ok {
		vm.log.Warn("add of unknown recipe ignored", zap.String("group", groupID), zap.String("recipe", recipeID))
		return false
	}
	if g.IndexOf(recipeID) >= 0 {
		vm.log.Warn("add would duplicate recipe in group", zap.String("group", groupID), zap.String("recipe", recipeID))
		return false
	}
	g.RecipeIDs = append(g.RecipeIDs, recipeID)
	vm.emit(Change{Kind: ChangeOrder, GroupIDs: []string{g.ID}})
	return true
}

// RemoveRecipe removes the first occurrence of recipeID from the group. The Recipe itself
// stays in the catalog.
func (vm *ViewModel) RemoveRecipe(groupID, recipeID string) bool {
	g, ok := vm.current().Group(groupID)
	if !ok {
		vm.log.Warn("remove from unknown group ignored", zap.String("grouping", vm.active), zap.String("group", groupID))
		return false
	}
	at := g.IndexOf(recipeID)
	if at < 0 {
		vm.log.Warn("remove of recipe not in group ignored", zap.String("group", groupID), zap.String("recipe", recipeID))
		return false
	}
	g.RecipeIDs = slices.Delete(g.RecipeIDs, at, at+1)
	vm.emit(Change{Kind: ChangeOrder, GroupIDs: []string{g.ID}})
	return true
}

// ConfirmRemoveRecipe asks c before removing recipeID from the group. Unknown ids never
// prompt.
func (vm *ViewModel) ConfirmRemoveRecipe(groupID, recipeID string, c Confirmer) bool {
	g, ok := vm.current().Group(groupID)
	if !ok || g.IndexOf(recipeID) < 0 {
		return vm.RemoveRecipe(groupID, recipeID)
	}
	if c == nil || !c.Confirm(RemovePrompt(vm.RecipeName(recipeID), g.Name)) {
		return false
	}
	return vm.RemoveRecipe(groupID, recipeID)
}

func RemovePrompt(recipeName, groupName string) string {
	if strings.TrimSpace(groupName) == "" {
		return fmt.Sprintf("Remove %s?", recipeName)
	}
	return fmt.Sprintf("Remove %s from %s?", recipeName, groupName)
}

// Replace swaps in freshly loaded data, e.g. after a fragment refresh. The active grouping
// is kept when it still exists.
func (vm *ViewModel) Replace(p *payload.Payload) error {
	if p == nil {
		return &payload.InitError{Part: payload.PartGroupings, Err: payload.ErrMissing}
	}
	if err := p.Validate(); err != nil {
		return err
	}
	vm.groupings = p.Groupings.Clone()
	vm.recipes = p.Recipes
	if _, ok := vm.groupings.Get(vm.active); !ok {
		vm.active = vm.groupings.Keys[0]
	}
	vm.emit(Change{Kind: ChangeContainers})
	return nil
}
