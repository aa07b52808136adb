package dragdrop

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"mealplan-cli/internal/model"
)

// Node is one rendered child of a container. Control nodes (e.g. an "add recipe" button)
// sit in the container but never take part in ordering or drag gestures.
type Node struct {
	ID      string
	Control bool
}

// Container is one rendered group list. ID identifies this rendered instance: a re-render
// produces containers with new ids even for the same group.
type Container interface {
	ID() string
	GroupID() string
	Family() string
	Nodes() []Node
}

// Surface is the rendered view the controller binds to.
type Surface interface {
	Containers() []Container
	// Place moves itemID out of from and into to at index, counted among non-control nodes.
	Place(itemID string, from, to Container, index int) error
}

// Scheduler runs fn on the host loop after the current render has been committed.
type Scheduler interface {
	Defer(fn func())
}

// FrameQueue is a Scheduler the host drains once per frame. Defer is safe from any
// goroutine; functions run on whichever goroutine calls Flush.
type FrameQueue struct {
	mu      sync.Mutex
	pending []func()
}

func (q *FrameQueue) Defer(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

// Flush runs everything deferred before the call. Work deferred while flushing waits for
// the next frame.
func (q *FrameQueue) Flush() int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()
	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func nodeIDs(nodes []Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.Control {
			continue
		}
		out = append(out, n.ID)
	}
	return out
}

var (
	ErrStaleContainer = errors.New("dragdrop: container is no longer rendered")
	ErrNodeNotFound   = errors.New("dragdrop: node not found")
)

// Column is a Board container.
type Column struct {
	id     string
	group  string
	family string
	Title  string
	nodes  []Node
}

func (c *Column) ID() string      { return c.id }
func (c *Column) GroupID() string { return c.group }
func (c *Column) Family() string  { return c.family }
func (c *Column) Nodes() []Node   { return slices.Clone(c.nodes) }

// ItemIDs returns the non-control node ids in rendered order.
func (c *Column) ItemIDs() []string { return nodeIDs(c.nodes) }

// Board is an in-memory Surface: one Column per group, rendered from view-model groups.
// Hosts draw it; the controller reads and moves its nodes.
type Board struct {
	family     string
	addControl bool
	gen        int
	cols       []*Column
}

// AddControlID is the id of the trailing control node when a board renders add affordances.
const AddControlID = "+add"

func NewBoard(family string, withAddControl bool) *Board {
	return &Board{family: family, addControl: withAddControl}
}

func (b *Board) Family() string { return b.family }

// Render replaces every column with a fresh instance, as a full re-render would.
func (b *Board) Render(groups []model.Group) {
	b.gen++
	cols := make([]*Column, 0, len(groups))
	for _, g := range groups {
		c := &Column{
			id:     fmt.Sprintf("%s/%s#%d", b.family, g.ID, b.gen),
			group:  g.ID,
			family: b.family,
			Title:  g.Name,
		}
		c.nodes = b.nodesFor(g.RecipeIDs)
		cols = append(cols, c)
	}
	b.cols = cols
}

// Patch updates titles and node lists of already rendered columns in place, keeping their
// identity. Groups without a rendered column are ignored.
func (b *Board) Patch(groups []model.Group) {
	for _, g := range groups {
		c, ok := b.Column(g.ID)
		if !ok {
			continue
		}
		c.Title = g.Name
		c.nodes = b.nodesFor(g.RecipeIDs)
	}
}

func (b *Board) nodesFor(ids []string) []Node {
	nodes := make([]Node, 0, len(ids)+1)
	for _, id := range ids {
		nodes = append(nodes, Node{ID: id})
	}
	if b.addControl {
		nodes = append(nodes, Node{ID: AddControlID, Control: true})
	}
	return nodes
}

func (b *Board) Columns() []*Column { return slices.Clone(b.cols) }

func (b *Board) Column(groupID string) (*Column, bool) {
	for _, c := range b.cols {
		if c.group == groupID {
			return c, true
		}
	}
	return nil, false
}

func (b *Board) Containers() []Container {
	out := make([]Container, 0, len(b.cols))
	for _, c := range b.cols {
		out = append(out, c)
	}
	return out
}

func (b *Board) owns(c Container) (*Column, bool) {
	col, ok := c.(*Column)
	if !ok {
		return nil, false
	}
	return col, slices.Contains(b.cols, col)
}

func (b *Board) Place(itemID string, from, to Container, index int) error {
	src, ok := b.owns(from)
	if !ok {
		return ErrStaleContainer
	}
	dst, ok := b.owns(to)
	if !ok {
		return ErrStaleContainer
	}
	at := slices.IndexFunc(src.nodes, func(n Node) bool { return !n.Control && n.ID == itemID })
	if at < 0 {
		return fmt.Errorf("%w: %s in %s", ErrNodeNotFound, itemID, src.id)
	}
	node := src.nodes[at]
	src.nodes = slices.Delete(src.nodes, at, at+1)
	dst.nodes = slices.Insert(dst.nodes, insertPos(dst.nodes, index), node)
	return nil
}

// insertPos maps an index among non-control nodes to a slice position.
func insertPos(nodes []Node, index int) int {
	if index < 0 {
		index = 0
	}
	seen := 0
	last := 0
	for i, n := range nodes {
		if n.Control {
			continue
		}
		if seen == index {
			return i
		}
		seen++
		last = i + 1
	}
	return last
}
