package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"mealplan-cli/internal/dragdrop"
	"mealplan-cli/internal/model"
	"mealplan-cli/internal/payload"
	"mealplan-cli/internal/viewmodel"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// SavedStore is the saved-recipes toggle behind the "s" key.
type SavedStore interface {
	Toggle(ctx context.Context, recipeID string) (bool, error)
	Set(ctx context.Context) (map[string]bool, error)
}

// Renamer persists group renames. Nil keeps renames local to the session.
type Renamer interface {
	RenameGroup(ctx context.Context, groupID, name string) error
}

// Adder persists recipes added from the picker. Nil keeps additions local to the session.
type Adder interface {
	ToggleRecipe(ctx context.Context, groupID, recipeID string) error
}

type Options struct {
	VM   *viewmodel.ViewModel
	Drag dragdrop.Options

	Saved   SavedStore
	Renamer Renamer
	Adder   Adder
	// Reload fetches fresh data for "R" and, with RefreshAfterSync, after every saved drop.
	Reload           func(ctx context.Context) (*payload.Payload, error)
	RefreshAfterSync bool

	// WatchPath, when set, reloads the board whenever that payload file changes.
	WatchPath string

	Title  string
	Theme  string
	Logger *zap.Logger
}

type frameMsg struct{}

type reloadedMsg struct {
	p   *payload.Payload
	err error
}

type savedToggledMsg struct {
	recipeID string
	on       bool
	err      error
}

type renamedMsg struct {
	groupID string
	prev    string
	err     error
}

type addedMsg struct {
	groupID  string
	recipeID string
	err      error
}

// frameScheduler is the controller's Scheduler inside a Bubble Tea program: deferred work
// runs on the next Update after the current View, and Defer wakes the program up.
type frameScheduler struct {
	q dragdrop.FrameQueue

	mu   sync.Mutex
	send func(tea.Msg)
}

func (s *frameScheduler) Defer(fn func()) {
	s.q.Defer(fn)
	s.mu.Lock()
	send := s.send
	s.mu.Unlock()
	if send != nil {
		go send(frameMsg{})
	}
}

func (s *frameScheduler) attach(send func(tea.Msg)) {
	s.mu.Lock()
	s.send = send
	s.mu.Unlock()
}

type modalKind int

const (
	modalNone modalKind = iota
	modalRename
	modalConfirmRemove
	modalAddRecipe
)

// pickerRows is how many matches the add picker shows at once.
const pickerRows = 8

type statusLevel int

const (
	statusInfo statusLevel = iota
	statusWarn
	statusError
)

type boardModel struct {
	ctx   context.Context
	opts  Options
	log   *zap.Logger
	vm    *viewmodel.ViewModel
	board *dragdrop.Board
	ctrl  *dragdrop.Controller
	sched *frameScheduler

	keys  keyMap
	help  help.Model
	input textinput.Model

	width  int
	height int

	// Selection: column index and row among the column's nodes. row == len(items) is the
	// trailing add row.
	col int
	row int

	modal        modalKind
	confirmFocus confirmModalFocus
	removeGroup  string
	removeRecipe string
	addGroup     string
	pick         int

	saved map[string]bool

	status      string
	statusLevel statusLevel
	notices     int

	refreshPending bool
	unsubscribe    func()
}

func newBoardModel(ctx context.Context, opts Options) (*boardModel, error) {
	if opts.VM == nil {
		return nil, errors.New("tui: a view model is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	m := &boardModel{
		ctx:   ctx,
		opts:  opts,
		log:   log,
		vm:    opts.VM,
		board: dragdrop.NewBoard(dragdrop.DefaultFamily, true),
		sched: &frameScheduler{},
		keys:  defaultKeyMap(),
		help:  help.New(),
		saved: map[string]bool{},
	}
	m.input = textinput.New()
	m.input.Prompt = ""
	m.input.CharLimit = 80

	m.board.Render(m.vm.Groups())
	m.unsubscribe = m.vm.OnChange(m.onChange)

	dragOpts := opts.Drag
	dragOpts.Family = dragdrop.DefaultFamily
	if dragOpts.Logger == nil {
		dragOpts.Logger = log
	}
	dragOpts.OnNotice = m.onNotice
	dragOpts.OnSynced = func(dragdrop.DropResult) {
		if m.opts.RefreshAfterSync && m.opts.Reload != nil {
			m.refreshPending = true
		}
	}
	ctrl, err := dragdrop.New(m.board, m.vm, m.sched, dragOpts)
	if err != nil {
		m.unsubscribe()
		return nil, err
	}
	m.ctrl = ctrl

	if opts.Saved != nil {
		set, err := opts.Saved.Set(ctx)
		if err != nil {
			log.Warn("could not load saved recipes", zap.Error(err))
		} else {
			m.saved = set
		}
	}
	return m, nil
}

func (m *boardModel) close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.ctrl.Close()
}

func (m *boardModel) onChange(ch viewmodel.Change) {
	if ch.Kind == viewmodel.ChangeContainers {
		m.board.Render(m.vm.Groups())
	} else {
		m.board.Patch(m.vm.Groups())
	}
	m.clampSelection()
}

func (m *boardModel) onNotice(n dragdrop.Notice) {
	m.notices++
	msg := n.Message
	if n.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, n.Err)
	}
	switch n.Level {
	case dragdrop.NoticeError:
		m.setStatus(statusError, "%s", msg)
	case dragdrop.NoticeWarn:
		m.setStatus(statusWarn, "%s", msg)
	default:
		m.setStatus(statusInfo, "%s", msg)
	}
}

func (m *boardModel) setStatus(level statusLevel, format string, args ...any) {
	m.statusLevel = level
	if len(args) == 0 {
		m.status = format
		return
	}
	m.status = fmt.Sprintf(format, args...)
}

func (m *boardModel) Init() tea.Cmd {
	// The controller binds on the first frame.
	return func() tea.Msg { return frameMsg{} }
}

func (m *boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.input.Width = max(10, modalBodyWidth(msg.Width)-4)
		return m, nil

	case frameMsg:
		m.sched.q.Flush()
		m.clampSelection()
		if m.refreshPending {
			m.refreshPending = false
			return m, m.reloadCmd()
		}
		return m, nil

	case reloadedMsg:
		if msg.err != nil {
			m.setStatus(statusError, "Reload failed: %v", msg.err)
			return m, nil
		}
		if err := m.vm.Replace(msg.p); err != nil {
			m.setStatus(statusError, "Reload failed: %v", err)
			return m, nil
		}
		m.ctrl.FragmentReplaced()
		m.setStatus(statusInfo, "Reloaded")
		return m, nil

	case savedToggledMsg:
		if msg.err != nil {
			m.setStatus(statusError, "Could not save recipe: %v", msg.err)
			return m, nil
		}
		name := m.vm.RecipeName(msg.recipeID)
		if msg.on {
			m.saved[msg.recipeID] = true
			m.setStatus(statusInfo, "Saved %s", name)
		} else {
			delete(m.saved, msg.recipeID)
			m.setStatus(statusInfo, "Removed %s from saved recipes", name)
		}
		return m, nil

	case renamedMsg:
		if msg.err != nil {
			m.vm.UpdateGroupName(msg.groupID, msg.prev)
			m.setStatus(statusError, "Could not rename group: %v", msg.err)
			return m, nil
		}
		m.setStatus(statusInfo, "Renamed")
		return m, nil

	case addedMsg:
		if msg.err != nil {
			m.vm.RemoveRecipe(msg.groupID, msg.recipeID)
			m.setStatus(statusError, "Could not add recipe: %v", msg.err)
			return m, nil
		}
		m.setStatus(statusInfo, "Added %s", m.vm.RecipeName(msg.recipeID))
		return m, nil

	case tea.KeyMsg:
		switch m.modal {
		case modalRename:
			return m.updateRename(msg)
		case modalConfirmRemove:
			return m.updateConfirmRemove(msg)
		case modalAddRecipe:
			return m.updateAddRecipe(msg)
		}
		return m.updateBoard(msg)
	}
	return m, nil
}

func (m *boardModel) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	dragID, dragging := m.ctrl.Dragging()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Cancel):
		if !dragging {
			return m, nil
		}
		m.dispatch(dragdrop.DragCancel{})
		m.selectItem(dragID)
		m.setStatus(statusInfo, "Move cancelled")

	case key.Matches(msg, m.keys.Left), key.Matches(msg, m.keys.Right):
		step := 1
		if key.Matches(msg, m.keys.Left) {
			step = -1
		}
		cols := m.board.Columns()
		next := m.col + step
		if next < 0 || next >= len(cols) {
			return m, nil
		}
		if !dragging {
			m.col = next
			m.clampSelection()
			return m, nil
		}
		idx := min(m.row, len(cols[next].ItemIDs()))
		if m.dispatch(dragdrop.DragOver{ContainerID: cols[next].ID(), Index: idx}) {
			m.selectItem(dragID)
		}

	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Down):
		step := 1
		if key.Matches(msg, m.keys.Up) {
			step = -1
		}
		col, ok := m.currentColumn()
		if !ok {
			return m, nil
		}
		if !dragging {
			m.row += step
			m.clampSelection()
			return m, nil
		}
		next := m.row + step
		if next < 0 || next >= len(col.ItemIDs()) {
			return m, nil
		}
		if m.dispatch(dragdrop.DragOver{ContainerID: col.ID(), Index: next}) {
			m.selectItem(dragID)
		}

	case key.Matches(msg, m.keys.Grab):
		if dragging {
			m.drop(dragID)
			return m, nil
		}
		if m.onAddRow() {
			return m, m.openAddRecipe()
		}
		m.pickUp()

	case key.Matches(msg, m.keys.Add):
		if dragging {
			return m, nil
		}
		return m, m.openAddRecipe()

	case key.Matches(msg, m.keys.Grouping):
		next := m.vm.NextKey()
		if next == m.vm.Active() {
			m.setStatus(statusInfo, "Only one grouping")
			return m, nil
		}
		if err := m.vm.GroupBy(next); err != nil {
			m.setStatus(statusError, "%v", err)
			return m, nil
		}
		m.col, m.row = 0, 0
		m.clampSelection()
		m.setStatus(statusInfo, "Grouped by %s", next)

	case key.Matches(msg, m.keys.Rename):
		if dragging {
			return m, nil
		}
		col, ok := m.currentColumn()
		if !ok {
			return m, nil
		}
		m.modal = modalRename
		m.input.Placeholder = "Group name"
		m.input.SetValue(col.Title)
		m.input.CursorEnd()
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Remove):
		if dragging {
			return m, nil
		}
		col, ok := m.currentColumn()
		id, okItem := m.selectedItem()
		if !ok || !okItem {
			return m, nil
		}
		m.modal = modalConfirmRemove
		m.confirmFocus = confirmFocusConfirm
		m.removeGroup = col.GroupID()
		m.removeRecipe = id

	case key.Matches(msg, m.keys.Save):
		id, ok := m.selectedItem()
		if !ok {
			return m, nil
		}
		if m.opts.Saved == nil {
			m.setStatus(statusWarn, "Saved recipes are not available")
			return m, nil
		}
		return m, m.toggleSavedCmd(id)

	case key.Matches(msg, m.keys.Reload):
		if m.opts.Reload == nil {
			m.setStatus(statusWarn, "Nothing to reload from")
			return m, nil
		}
		m.setStatus(statusInfo, "Reloading…")
		return m, m.reloadCmd()
	}
	return m, nil
}

// dispatch sends ev to the controller and reports errors on the status line.
func (m *boardModel) dispatch(ev dragdrop.Event) bool {
	if _, err := m.ctrl.Dispatch(ev); err != nil {
		m.reportDragError(err)
		return false
	}
	return true
}

func (m *boardModel) reportDragError(err error) {
	switch {
	case errors.Is(err, dragdrop.ErrControlNode):
		m.setStatus(statusWarn, "The add row can't be moved")
	case errors.Is(err, dragdrop.ErrUnboundZone):
		m.setStatus(statusWarn, "Board is still updating, try again")
	default:
		m.setStatus(statusError, "%v", err)
	}
}

func (m *boardModel) pickUp() {
	col, ok := m.currentColumn()
	if !ok {
		return
	}
	nodes := col.Nodes()
	if m.row < 0 || m.row >= len(nodes) {
		return
	}
	id := nodes[m.row].ID
	if !m.dispatch(dragdrop.DragStart{ContainerID: col.ID(), ItemID: id}) {
		return
	}
	m.setStatus(statusInfo, "Moving %s: arrows to place, space to drop, esc to cancel", m.vm.RecipeName(id))
}

func (m *boardModel) drop(dragID string) {
	col, ok := m.currentColumn()
	if !ok {
		m.dispatch(dragdrop.DragEnd{})
		return
	}
	before := m.notices
	res, err := m.ctrl.Dispatch(dragdrop.DragEnd{ContainerID: col.ID(), Index: m.row})
	m.selectItem(dragID)
	if err != nil {
		m.reportDragError(err)
		return
	}
	if res == nil || m.notices != before {
		return
	}
	name := m.vm.RecipeName(res.ItemID)
	switch {
	case res.Unchanged():
		m.setStatus(statusInfo, "%s left in place", name)
	case m.ctrl.Mode() == dragdrop.ModeSynced:
		m.setStatus(statusInfo, "Saving %s…", name)
	default:
		m.setStatus(statusInfo, "Moved %s to %s", name, col.Title)
	}
}

func (m *boardModel) updateRename(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeModal()
		return m, nil
	case "enter":
		col, ok := m.currentColumn()
		if !ok {
			m.closeModal()
			return m, nil
		}
		name := strings.TrimSpace(m.input.Value())
		if name == "" {
			m.setStatus(statusWarn, "Name required")
			return m, nil
		}
		groupID, prev := col.GroupID(), col.Title
		m.closeModal()
		if !m.vm.UpdateGroupName(groupID, name) {
			m.setStatus(statusError, "Could not rename group")
			return m, nil
		}
		if m.opts.Renamer == nil || name == prev {
			m.setStatus(statusInfo, "Renamed")
			return m, nil
		}
		m.setStatus(statusInfo, "Saving name…")
		return m, m.renameCmd(groupID, name, prev)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *boardModel) updateConfirmRemove(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab", "left", "right", "h", "l":
		m.confirmFocus = m.confirmFocus.toggle()
	case "y":
		m.removeConfirmed(true)
	case "n", "esc", "q":
		m.removeConfirmed(false)
	case "enter":
		m.removeConfirmed(m.confirmFocus == confirmFocusConfirm)
	}
	return m, nil
}

func (m *boardModel) removeConfirmed(yes bool) {
	groupID, recipeID := m.removeGroup, m.removeRecipe
	m.closeModal()
	confirm := viewmodel.ConfirmFunc(func(string) bool { return yes })
	if m.vm.ConfirmRemoveRecipe(groupID, recipeID, confirm) {
		m.setStatus(statusInfo, "Removed %s", m.vm.RecipeName(recipeID))
	}
}

// onAddRow reports whether the selection is on the current column's add row.
func (m *boardModel) onAddRow() bool {
	col, ok := m.currentColumn()
	if !ok {
		return false
	}
	nodes := col.Nodes()
	return m.row >= 0 && m.row < len(nodes) && nodes[m.row].Control
}

func (m *boardModel) openAddRecipe() tea.Cmd {
	col, ok := m.currentColumn()
	if !ok {
		return nil
	}
	m.modal = modalAddRecipe
	m.addGroup = col.GroupID()
	m.pick = 0
	m.input.Placeholder = "Search recipes"
	m.input.SetValue("")
	return m.input.Focus()
}

// candidates are the catalog matches for the picker query the target group does not hold.
func (m *boardModel) candidates() []model.Recipe {
	g, _ := m.vm.Group(m.addGroup)
	all := m.vm.Recipes().Search(m.input.Value())
	out := all[:0]
	for _, r := range all {
		if g.IndexOf(r.ID) < 0 {
			out = append(out, r)
		}
	}
	return out
}

func (m *boardModel) updateAddRecipe(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeModal()
		return m, nil
	case "up", "ctrl+p":
		m.pick = max(0, m.pick-1)
		return m, nil
	case "down", "ctrl+n":
		m.pick = min(m.pick+1, max(0, len(m.candidates())-1))
		return m, nil
	case "enter":
		cands := m.candidates()
		if len(cands) == 0 {
			m.setStatus(statusWarn, "No matching recipe")
			return m, nil
		}
		recipeID, groupID := cands[min(m.pick, len(cands)-1)].ID, m.addGroup
		m.closeModal()
		return m, m.addRecipe(groupID, recipeID)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.pick = 0
	return m, cmd
}

// addRecipe appends the recipe and, when additions are persisted, sends it to the server.
// The board shows it right away and takes it out again if the server refuses.
func (m *boardModel) addRecipe(groupID, recipeID string) tea.Cmd {
	if !m.vm.AddRecipe(groupID, recipeID) {
		m.setStatus(statusError, "Could not add %s", m.vm.RecipeName(recipeID))
		return nil
	}
	if col, ok := m.board.Column(groupID); ok {
		m.row = max(0, len(col.ItemIDs())-1)
	}
	if m.opts.Adder == nil {
		m.setStatus(statusInfo, "Added %s", m.vm.RecipeName(recipeID))
		return nil
	}
	m.setStatus(statusInfo, "Saving %s…", m.vm.RecipeName(recipeID))
	a, ctx := m.opts.Adder, m.ctx
	return func() tea.Msg {
		return addedMsg{groupID: groupID, recipeID: recipeID, err: a.ToggleRecipe(ctx, groupID, recipeID)}
	}
}

func (m *boardModel) closeModal() {
	m.modal = modalNone
	m.removeGroup, m.removeRecipe = "", ""
	m.addGroup, m.pick = "", 0
	m.input.Blur()
	m.input.SetValue("")
}

func (m *boardModel) reloadCmd() tea.Cmd {
	reload, ctx := m.opts.Reload, m.ctx
	return func() tea.Msg {
		p, err := reload(ctx)
		return reloadedMsg{p: p, err: err}
	}
}

func (m *boardModel) toggleSavedCmd(recipeID string) tea.Cmd {
	store, ctx := m.opts.Saved, m.ctx
	return func() tea.Msg {
		on, err := store.Toggle(ctx, recipeID)
		return savedToggledMsg{recipeID: recipeID, on: on, err: err}
	}
}

func (m *boardModel) renameCmd(groupID, name, prev string) tea.Cmd {
	r, ctx := m.opts.Renamer, m.ctx
	return func() tea.Msg {
		return renamedMsg{groupID: groupID, prev: prev, err: r.RenameGroup(ctx, groupID, name)}
	}
}

func (m *boardModel) currentColumn() (*dragdrop.Column, bool) {
	cols := m.board.Columns()
	if m.col < 0 || m.col >= len(cols) {
		return nil, false
	}
	return cols[m.col], true
}

func (m *boardModel) selectedItem() (string, bool) {
	col, ok := m.currentColumn()
	if !ok {
		return "", false
	}
	ids := col.ItemIDs()
	if m.row < 0 || m.row >= len(ids) {
		return "", false
	}
	return ids[m.row], true
}

// selectItem moves the selection onto itemID wherever it is rendered now.
func (m *boardModel) selectItem(itemID string) {
	for ci, col := range m.board.Columns() {
		if ri := slices.Index(col.ItemIDs(), itemID); ri >= 0 {
			m.col, m.row = ci, ri
			return
		}
	}
	m.clampSelection()
}

func (m *boardModel) clampSelection() {
	cols := m.board.Columns()
	if len(cols) == 0 {
		m.col, m.row = 0, 0
		return
	}
	m.col = max(0, min(m.col, len(cols)-1))
	m.row = max(0, min(m.row, len(cols[m.col].Nodes())-1))
}
