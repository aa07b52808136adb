package cli

import (
	"errors"
	"strings"

	"mealplan-cli/internal/dragdrop"

	"github.com/spf13/cobra"
)

func newRenameCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename <group-id> <name>",
		Short: "Rename a group",
		Long: strings.TrimSpace(`
Rename a group. Names are trimmed and must not be blank. In synced mode the name is posted
to /action_update_meal_group_name/{group-id}/ first and the local plan only changes when
the planner accepts it.
`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupID := strings.TrimSpace(args[0])
			name := strings.TrimSpace(args[1])
			if name == "" {
				return writeErr(cmd, errors.New("rename: name required"))
			}
			p, err := app.loadPayload(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			gr, _, ok := p.Groupings.FindGroup(groupID)
			if !ok {
				return writeErr(cmd, errNotFound("group", groupID))
			}
			vm, err := app.newViewModel(p, gr.Key)
			if err != nil {
				return writeErr(cmd, err)
			}

			mode, err := dragdrop.ParseMode(app.cfg.Sync.Mode)
			if err != nil {
				return writeErr(cmd, err)
			}
			if mode == dragdrop.ModeSynced {
				c, err := app.client()
				if err != nil {
					return writeErr(cmd, err)
				}
				if err := c.RenameGroup(cmd.Context(), groupID, name); err != nil {
					return writeErr(cmd, err)
				}
			}
			if !vm.UpdateGroupName(groupID, name) {
				return writeErr(cmd, errNotFound("group", groupID))
			}
			out := map[string]any{"group": groupID, "name": name, "grouping": gr.Key, "mode": mode.String()}
			if mode == dragdrop.ModeLocal {
				path, err := app.saveLocal(vm)
				if err != nil {
					return writeErr(cmd, err)
				}
				if path != "" {
					out["savedTo"] = path
				}
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
	return cmd
}
