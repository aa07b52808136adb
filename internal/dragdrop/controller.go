package dragdrop

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"mealplan-cli/internal/persist"
	"mealplan-cli/internal/viewmodel"

	"go.uber.org/zap"
)

// DefaultFamily is the drag family for recipe lists. Zones only accept drops from zones of
// the same family.
const DefaultFamily = "recipes"

type Mode int

const (
	// ModeLocal applies drops to the view model directly.
	ModeLocal Mode = iota
	// ModeSynced sends drops to the server and adopts the new order once it succeeds.
	ModeSynced
)

func (m Mode) String() string {
	if m == ModeSynced {
		return "synced"
	}
	return "local"
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "local":
		return ModeLocal, nil
	case "synced", "server":
		return ModeSynced, nil
	default:
		return ModeLocal, fmt.Errorf("unknown sync mode %q (expected local|synced)", s)
	}
}

type Endpoint int

const (
	// EndpointMove posts the full destination/source orders.
	EndpointMove Endpoint = iota
	// EndpointAssign posts only the moved item and its new group.
	EndpointAssign
)

func ParseEndpoint(s string) (Endpoint, error) {
	switch s {
	case "", "move":
		return EndpointMove, nil
	case "assign":
		return EndpointAssign, nil
	default:
		return EndpointMove, fmt.Errorf("unknown endpoint %q (expected move|assign)", s)
	}
}

// Persister is the server side of ModeSynced.
type Persister interface {
	MoveItems(ctx context.Context, req persist.MoveRequest) error
	AssignItem(ctx context.Context, itemID, groupID string) error
}

type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarn
	NoticeError
)

// Notice is a user-facing outcome the host should surface (status line, toast).
type Notice struct {
	Level   NoticeLevel
	Message string
	Err     error
	Result  *DropResult
}

// DropResult is the order computed from the rendered containers after a drop.
type DropResult struct {
	ItemID      string
	FromGroupID string
	ToGroupID   string
	// ToOrder is every item id in the destination container, in rendered order.
	ToOrder []string
	// FromOrder is what remains in the source container. Nil when the drop stayed in one
	// container or the source is now empty.
	FromOrder []string
	// Index is the item's final position in ToOrder; OriginIndex its position before the drag.
	Index       int
	OriginIndex int
}

func (r DropResult) SameGroup() bool { return r.FromGroupID == r.ToGroupID }

// Unchanged reports a drop back onto the exact starting position.
func (r DropResult) Unchanged() bool { return r.SameGroup() && r.Index == r.OriginIndex }

func (r DropResult) MoveRequest() persist.MoveRequest {
	req := persist.MoveRequest{ToGroup: r.ToGroupID, ToOrder: slices.Clone(r.ToOrder)}
	if !r.SameGroup() {
		req.FromGroup = r.FromGroupID
		req.FromOrder = slices.Clone(r.FromOrder)
	}
	return req
}

type Options struct {
	Family    string
	Mode      Mode
	Endpoint  Endpoint
	Persister Persister
	Timeout   time.Duration
	Logger    *zap.Logger

	// OnNotice receives outcomes worth showing to the user. Called on the host loop.
	OnNotice func(Notice)
	// OnSynced runs after the server accepted a drop, e.g. to request a fragment refresh.
	OnSynced func(DropResult)
}

var (
	ErrDragInProgress = errors.New("dragdrop: a drag is already in progress")
	ErrNoDrag         = errors.New("dragdrop: no drag in progress")
	ErrUnboundZone    = errors.New("dragdrop: container has no active drag zone")
	ErrControlNode    = errors.New("dragdrop: control nodes cannot be dragged")
)

type gesture struct {
	itemID      string
	origin      *Zone
	originIndex int
	current     *Zone
}

// Controller binds one Zone per rendered container of its family and turns gestures into
// view-model mutations or persistence calls. Methods other than the Persister goroutines
// must be called from the host loop.
type Controller struct {
	surface Surface
	vm      *viewmodel.ViewModel
	sched   Scheduler
	opts    Options
	log     *zap.Logger

	zones map[string]*Zone
	drag  *gesture

	rebindPending bool
	unsubscribe   func()
	inflight      sync.WaitGroup
}

func New(surface Surface, vm *viewmodel.ViewModel, sched Scheduler, opts Options) (*Controller, error) {
	if surface == nil || vm == nil || sched == nil {
		return nil, errors.New("dragdrop: surface, view model and scheduler are required")
	}
	if opts.Family == "" {
		opts.Family = DefaultFamily
	}
	if opts.Mode == ModeSynced && opts.Persister == nil {
		return nil, errors.New("dragdrop: synced mode needs a persister")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Controller{
		surface: surface,
		vm:      vm,
		sched:   sched,
		opts:    opts,
		log:     opts.Logger.With(zap.String("family", opts.Family)),
		zones:   map[string]*Zone{},
	}
	c.unsubscribe = vm.OnChange(func(ch viewmodel.Change) {
		if ch.Kind == viewmodel.ChangeContainers {
			c.ScheduleRebind()
		}
	})
	// First bind happens once the initial render is committed.
	c.ScheduleRebind()
	return c, nil
}

// Close detaches from the view model and waits for in-flight persistence calls.
func (c *Controller) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.inflight.Wait()
}

// Wait blocks until every persistence call started so far has returned. Their completions
// are still delivered through the Scheduler.
func (c *Controller) Wait() { c.inflight.Wait() }

func (c *Controller) Mode() Mode { return c.opts.Mode }

// ScheduleRebind defers a Rebind to the next frame. Repeated calls within one frame
// coalesce.
func (c *Controller) ScheduleRebind() {
	if c.rebindPending {
		return
	}
	c.rebindPending = true
	c.sched.Defer(func() {
		c.rebindPending = false
		c.Rebind()
	})
}

// FragmentReplaced handles the host's signal that part of the view was swapped.
func (c *Controller) FragmentReplaced() { c.ScheduleRebind() }

// Rebind tears down zones whose containers are gone and binds every current container of
// the controller's family. It is idempotent and returns the number of bound zones.
func (c *Controller) Rebind() int {
	live := map[string]bool{}
	for _, ct := range c.surface.Containers() {
		if ct.Family() != c.opts.Family {
			continue
		}
		live[ct.ID()] = true
		if z, ok := c.zones[ct.ID()]; ok {
			z.container = ct
			continue
		}
		c.zones[ct.ID()] = &Zone{container: ct, bound: true}
	}
	torn := 0
	for id, z := range c.zones {
		if live[id] {
			continue
		}
		z.teardown()
		delete(c.zones, id)
		torn++
	}
	if c.drag != nil && (!c.drag.origin.bound || !c.drag.current.bound) {
		c.log.Debug("drag abandoned by rebind", zap.String("item", c.drag.itemID))
		c.drag = nil
	}
	c.log.Debug("zones rebound", zap.Int("bound", len(c.zones)), zap.Int("torn_down", torn))
	return len(c.zones)
}

// Zones returns the bound zones in surface order.
func (c *Controller) Zones() []*Zone {
	out := make([]*Zone, 0, len(c.zones))
	for _, ct := range c.surface.Containers() {
		if z, ok := c.zones[ct.ID()]; ok {
			out = append(out, z)
		}
	}
	return out
}

func (c *Controller) Zone(containerID string) (*Zone, bool) {
	z, ok := c.zones[containerID]
	return z, ok
}

// Dragging reports the item currently being dragged.
func (c *Controller) Dragging() (string, bool) {
	if c.drag == nil {
		return "", false
	}
	return c.drag.itemID, true
}

// Dispatch is the single entry point for gesture events. A panic inside one zone's handling
// is recovered, reported as a notice and leaves the other zones usable.
func (c *Controller) Dispatch(ev Event) (res *DropResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dragdrop: %T handler failed: %v", ev, r)
			c.log.Error("zone handler panic", zap.Any("event", ev), zap.Any("panic", r))
			c.resetGesture(StateCancelled)
			c.notify(Notice{Level: NoticeError, Message: "Drag failed", Err: err})
			res = nil
		}
	}()

	switch e := ev.(type) {
	case DragStart:
		return nil, c.start(e)
	case DragOver:
		return nil, c.over(e)
	case DragEnd:
		return c.end(e)
	case DragCancel:
		return nil, c.cancel()
	default:
		return nil, fmt.Errorf("dragdrop: unknown event %T", ev)
	}
}

func (c *Controller) start(e DragStart) error {
	if c.drag != nil {
		return ErrDragInProgress
	}
	z, ok := c.zones[e.ContainerID]
	if !ok || !z.bound {
		return fmt.Errorf("%w: %s", ErrUnboundZone, e.ContainerID)
	}
	nodes := z.container.Nodes()
	at := slices.IndexFunc(nodes, func(n Node) bool { return n.ID == e.ItemID })
	if at < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, e.ItemID)
	}
	if nodes[at].Control {
		return ErrControlNode
	}
	idx := slices.Index(nodeIDs(nodes), e.ItemID)
	z.state = StateDragging
	c.drag = &gesture{itemID: e.ItemID, origin: z, originIndex: idx, current: z}
	return nil
}

// over moves the dragged node as a live preview. Containers outside the family are ignored.
func (c *Controller) over(e DragOver) error {
	if c.drag == nil {
		return ErrNoDrag
	}
	z, ok := c.zones[e.ContainerID]
	if !ok || !z.bound {
		return nil
	}
	if err := c.surface.Place(c.drag.itemID, c.drag.current.container, z.container, e.Index); err != nil {
		return err
	}
	c.drag.current = z
	return nil
}

func (c *Controller) cancel() error {
	if c.drag == nil {
		return nil
	}
	c.restoreOrigin()
	c.resetGesture(StateCancelled)
	return nil
}

func (c *Controller) restoreOrigin() {
	g := c.drag
	if !g.origin.bound || !g.current.bound {
		return
	}
	if err := c.surface.Place(g.itemID, g.current.container, g.origin.container, g.originIndex); err != nil {
		c.log.Warn("could not restore dragged node", zap.String("item", g.itemID), zap.Error(err))
	}
}

func (c *Controller) resetGesture(outcome ZoneState) {
	if c.drag == nil {
		return
	}
	c.drag.origin.finish(outcome)
	c.drag = nil
}

func (c *Controller) end(e DragEnd) (*DropResult, error) {
	if c.drag == nil {
		return nil, ErrNoDrag
	}
	dst, ok := c.zones[e.ContainerID]
	if e.ContainerID == "" || !ok || !dst.bound {
		// Released outside any zone of this family.
		return nil, c.cancel()
	}
	g := c.drag
	if err := c.surface.Place(g.itemID, g.current.container, dst.container, e.Index); err != nil {
		c.restoreOrigin()
		c.resetGesture(StateCancelled)
		return nil, err
	}
	g.current = dst

	res, err := c.readResult(g, dst, e.Index)
	if err != nil {
		c.restoreOrigin()
		c.resetGesture(StateCancelled)
		return nil, err
	}
	c.resetGesture(StateDropped)

	if res.Unchanged() {
		return res, nil
	}
	if name, dup := c.duplicateIn(*res); dup {
		c.log.Warn("drop would duplicate recipe in group",
			zap.String("recipe", res.ItemID),
			zap.String("group", res.ToGroupID))
		c.revertDrop(*res)
		c.notify(Notice{Level: NoticeWarn, Message: fmt.Sprintf("Move rejected: already in %s", name), Result: res})
		return res, nil
	}
	switch c.opts.Mode {
	case ModeSynced:
		c.persist(*res)
	default:
		c.applyLocal(*res)
	}
	return res, nil
}

// readResult reads the rendered order back from both containers rather than trusting any
// bookkeeping of its own.
func (c *Controller) readResult(g *gesture, dst *Zone, index int) (*DropResult, error) {
	toOrder := nodeIDs(dst.container.Nodes())
	// The dropped node sits at the clamped drop index; only fall back to searching when the
	// surface put it elsewhere.
	idx := min(max(index, 0), len(toOrder)-1)
	if idx < 0 || toOrder[idx] != g.itemID {
		idx = slices.Index(toOrder, g.itemID)
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s missing from %s after drop", ErrNodeNotFound, g.itemID, dst.container.ID())
	}
	res := &DropResult{
		ItemID:      g.itemID,
		FromGroupID: g.origin.container.GroupID(),
		ToGroupID:   dst.container.GroupID(),
		ToOrder:     toOrder,
		Index:       idx,
		OriginIndex: g.originIndex,
	}
	if g.origin != dst {
		if from := nodeIDs(g.origin.container.Nodes()); len(from) > 0 {
			res.FromOrder = from
		}
	}
	return res, nil
}

// duplicateIn reports a cross-group drop whose recipe the destination already holds, either
// in the view model or a second time in the rendered list. It returns the group's name.
func (c *Controller) duplicateIn(res DropResult) (string, bool) {
	if res.SameGroup() {
		return "", false
	}
	name := res.ToGroupID
	dup := false
	if g, ok := c.vm.Group(res.ToGroupID); ok {
		if g.Name != "" {
			name = g.Name
		}
		dup = g.IndexOf(res.ItemID) >= 0
	}
	n := 0
	for _, id := range res.ToOrder {
		if id == res.ItemID {
			n++
		}
	}
	return name, dup || n > 1
}

func (c *Controller) applyLocal(res DropResult) {
	if !c.vm.MoveRecipe(res.ItemID, res.FromGroupID, res.ToGroupID, res.Index) {
		c.revertDrop(res)
		c.notify(Notice{Level: NoticeWarn, Message: "Move rejected: plan changed underneath", Result: &res})
		return
	}
	// The rendered order is authoritative; reconcile if the view model disagrees.
	if g, ok := c.vm.Group(res.ToGroupID); ok && !slices.Equal(g.RecipeIDs, res.ToOrder) {
		c.log.Warn("view model order differs from rendered order; adopting rendered order",
			zap.String("group", res.ToGroupID))
		c.vm.ApplyOrder(res.ToGroupID, res.ToOrder)
	}
	if !res.SameGroup() {
		if g, ok := c.vm.Group(res.FromGroupID); ok && !slices.Equal(g.RecipeIDs, res.FromOrder) {
			c.log.Warn("view model order differs from rendered order; adopting rendered order",
				zap.String("group", res.FromGroupID))
			c.vm.ApplyOrder(res.FromGroupID, res.FromOrder)
		}
	}
}

func (c *Controller) persist(res DropResult) {
	p := c.opts.Persister
	timeout := c.opts.Timeout
	endpoint := c.opts.Endpoint

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		err := callPersister(ctx, p, endpoint, res)
		c.sched.Defer(func() { c.completeSync(res, err) })
	}()
}

// callPersister turns a panicking Persister into an ordinary failed save.
func callPersister(ctx context.Context, p Persister, endpoint Endpoint, res DropResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dragdrop: persister failed: %v", r)
		}
	}()
	if endpoint == EndpointAssign {
		return p.AssignItem(ctx, res.ItemID, res.ToGroupID)
	}
	return p.MoveItems(ctx, res.MoveRequest())
}

func (c *Controller) completeSync(res DropResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("sync completion panic", zap.String("item", res.ItemID), zap.Any("panic", r))
			c.notify(Notice{Level: NoticeError, Message: "Save handling failed", Err: fmt.Errorf("dragdrop: sync completion failed: %v", r), Result: &res})
		}
	}()
	if err != nil {
		c.log.Warn("drop not persisted; reverting",
			zap.String("item", res.ItemID),
			zap.String("from", res.FromGroupID),
			zap.String("to", res.ToGroupID),
			zap.Error(err))
		c.revertDrop(res)
		c.notify(Notice{Level: NoticeError, Message: "Could not save move", Err: err, Result: &res})
		return
	}
	c.vm.ApplyOrder(res.ToGroupID, res.ToOrder)
	if !res.SameGroup() {
		c.vm.ApplyOrder(res.FromGroupID, res.FromOrder)
	}
	c.notify(Notice{Level: NoticeInfo, Message: "Saved", Result: &res})
	if c.opts.OnSynced != nil {
		c.opts.OnSynced(res)
	}
}

// revertDrop moves the dropped node back to where the drag started, if both containers are
// still rendered. When they are not, the re-render already reflects the unchanged state.
func (c *Controller) revertDrop(res DropResult) {
	to, okTo := c.zoneForGroup(res.ToGroupID)
	from, okFrom := c.zoneForGroup(res.FromGroupID)
	if !okTo || !okFrom {
		return
	}
	if err := c.surface.Place(res.ItemID, to.container, from.container, res.OriginIndex); err != nil {
		c.log.Warn("could not revert dropped node", zap.String("item", res.ItemID), zap.Error(err))
	}
}

func (c *Controller) zoneForGroup(groupID string) (*Zone, bool) {
	for _, z := range c.Zones() {
		if z.container.GroupID() == groupID {
			return z, true
		}
	}
	return nil, false
}

// notify delivers n to the host. A panicking OnNotice is logged and swallowed.
func (c *Controller) notify(n Notice) {
	if c.opts.OnNotice == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("notice handler panic", zap.String("message", n.Message), zap.Any("panic", r))
		}
	}()
	c.opts.OnNotice(n)
}
