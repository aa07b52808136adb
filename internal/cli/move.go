package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"mealplan-cli/internal/dragdrop"
	"mealplan-cli/internal/model"
	"mealplan-cli/internal/viewmodel"

	"github.com/spf13/cobra"
)

type dropOut struct {
	Item      string   `json:"item"`
	Grouping  string   `json:"grouping"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Index     int      `json:"index"`
	ToOrder   []string `json:"toOrder"`
	FromOrder []string `json:"fromOrder,omitempty"`
	Mode      string   `json:"mode"`
	Unchanged bool     `json:"unchanged,omitempty"`
	SavedTo   string   `json:"savedTo,omitempty"`
}

type dropRequest struct {
	itemID string
	fromID string
	toID   string
	index  int
	atEnd  bool
	assign bool
}

func newMoveCmd(app *App) *cobra.Command {
	var to, from string
	var index int

	cmd := &cobra.Command{
		Use:   "move <recipe-id>",
		Short: "Move a recipe to a position in a group, as a drag and drop would",
		Long: strings.TrimSpace(`
Move a recipe within its group or into another group of the same grouping.

The move runs through the same drag controller as the board. In local mode the plan file
(--file *.json) is rewritten; in synced mode the full orders are posted to the planner
(/action_move_mpr/) and nothing local changes unless the server accepts.
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(to) == "" {
				return writeErr(cmd, fmt.Errorf("move: missing --to"))
			}
			req := dropRequest{itemID: args[0], fromID: from, toID: to, index: index, atEnd: index < 0}
			out, err := runDrop(cmd.Context(), app, req)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Destination group id")
	cmd.Flags().StringVar(&from, "from", "", "Source group id (default: the group in the destination's grouping that holds the recipe)")
	cmd.Flags().IntVar(&index, "index", -1, "Position in the destination, 0-based (default: end)")
	return cmd
}

func newAssignCmd(app *App) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "assign <recipe-id> <group-id>",
		Short: "Put a recipe at the end of another group (single-item update)",
		Long: strings.TrimSpace(`
Reassign a recipe to a group without sending orders. In synced mode this posts
/action_update_mpr/{recipe-id}/{group-id}/ regardless of the configured endpoint.
`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dropRequest{itemID: args[0], fromID: from, toID: args[1], atEnd: true, assign: true}
			out, err := runDrop(cmd.Context(), app, req)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Source group id (default: the group that holds the recipe)")
	return cmd
}

// runDrop replays a move as a gesture on an in-memory board, so the CLI goes through the
// controller exactly like the board does.
func runDrop(ctx context.Context, app *App, req dropRequest) (*dropOut, error) {
	req.itemID = strings.TrimSpace(req.itemID)
	req.toID = strings.TrimSpace(req.toID)
	req.fromID = strings.TrimSpace(req.fromID)

	p, err := app.loadPayload(ctx)
	if err != nil {
		return nil, err
	}
	gr, to, ok := p.Groupings.FindGroup(req.toID)
	if !ok {
		return nil, errNotFound("group", req.toID)
	}
	from, err := sourceGroup(gr, req.fromID, req.itemID)
	if err != nil {
		return nil, err
	}
	if from != to && to.IndexOf(req.itemID) >= 0 {
		return nil, rejectedError{reason: fmt.Sprintf("%s is already in %s", req.itemID, to.ID)}
	}

	vm, err := app.newViewModel(p, gr.Key)
	if err != nil {
		return nil, err
	}
	opts, err := app.dragOptions()
	if err != nil {
		return nil, err
	}
	if req.assign {
		opts.Endpoint = dragdrop.EndpointAssign
	}
	var notices []dragdrop.Notice
	opts.OnNotice = func(n dragdrop.Notice) { notices = append(notices, n) }

	board := dragdrop.NewBoard(dragdrop.DefaultFamily, false)
	board.Render(vm.Groups())
	unsubscribe := vm.OnChange(func(ch viewmodel.Change) {
		if ch.Kind == viewmodel.ChangeContainers {
			board.Render(vm.Groups())
			return
		}
		board.Patch(vm.Groups())
	})
	defer unsubscribe()

	q := &dragdrop.FrameQueue{}
	ctrl, err := dragdrop.New(board, vm, q, opts)
	if err != nil {
		return nil, err
	}
	defer ctrl.Close()
	q.Flush()

	fromCol, _ := board.Column(from.ID)
	toCol, _ := board.Column(to.ID)
	index := req.index
	if req.atEnd {
		index = len(toCol.ItemIDs())
	}
	if _, err := ctrl.Dispatch(dragdrop.DragStart{ContainerID: fromCol.ID(), ItemID: req.itemID}); err != nil {
		return nil, err
	}
	res, err := ctrl.Dispatch(dragdrop.DragEnd{ContainerID: toCol.ID(), Index: index})
	if err != nil {
		return nil, err
	}
	ctrl.Wait()
	q.Flush()

	for _, n := range notices {
		switch n.Level {
		case dragdrop.NoticeError:
			return nil, fmt.Errorf("%s: %w", n.Message, n.Err)
		case dragdrop.NoticeWarn:
			return nil, rejectedError{reason: n.Message}
		}
	}

	out := &dropOut{
		Item:      res.ItemID,
		Grouping:  gr.Key,
		From:      res.FromGroupID,
		To:        res.ToGroupID,
		Index:     res.Index,
		ToOrder:   res.ToOrder,
		FromOrder: res.FromOrder,
		Mode:      ctrl.Mode().String(),
		Unchanged: res.Unchanged(),
	}
	if ctrl.Mode() == dragdrop.ModeLocal && !res.Unchanged() {
		if out.SavedTo, err = app.saveLocal(vm); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func sourceGroup(gr *model.Grouping, fromID, itemID string) (*model.Group, error) {
	if fromID != "" {
		g, ok := gr.Group(fromID)
		if !ok {
			return nil, errNotFound("group", fromID)
		}
		if g.IndexOf(itemID) < 0 {
			return nil, errNotFound("recipe", fmt.Sprintf("%s in %s", itemID, fromID))
		}
		return g, nil
	}
	i := slices.IndexFunc(gr.Ordered(), func(g *model.Group) bool { return g.IndexOf(itemID) >= 0 })
	if i < 0 {
		return nil, errNotFound("recipe", fmt.Sprintf("%s in grouping %s", itemID, gr.Key))
	}
	return gr.Ordered()[i], nil
}
