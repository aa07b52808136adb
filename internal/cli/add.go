package cli

import (
	"fmt"
	"strings"

	"mealplan-cli/internal/dragdrop"

	"github.com/spf13/cobra"
)

func newAddCmd(app *App) *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "add <recipe-id>",
		Short: "Add a catalog recipe to the end of a group",
		Long: strings.TrimSpace(`
Add a recipe from the catalog to the end of a group. A group never holds the same recipe
twice. In synced mode the addition is posted to /action_toggle_mpr/{group-id}/{recipe-id}/
first and the local plan only changes when the planner accepts it.
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipeID := strings.TrimSpace(args[0])
			group = strings.TrimSpace(group)
			if group == "" {
				return writeErr(cmd, fmt.Errorf("add: missing --group"))
			}
			p, err := app.loadPayload(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if _, ok := p.Recipes[recipeID]; !ok {
				return writeErr(cmd, errNotFound("recipe", recipeID))
			}
			gr, g, ok := p.Groupings.FindGroup(group)
			if !ok {
				return writeErr(cmd, errNotFound("group", group))
			}
			// The planner endpoint toggles, so a recipe already present must never be posted.
			if g.IndexOf(recipeID) >= 0 {
				return writeErr(cmd, rejectedError{op: "add", reason: fmt.Sprintf("%s is already in %s", recipeID, group)})
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
				if err := c.ToggleRecipe(cmd.Context(), group, recipeID); err != nil {
					return writeErr(cmd, err)
				}
			}
			if !vm.AddRecipe(group, recipeID) {
				return writeErr(cmd, rejectedError{op: "add", reason: fmt.Sprintf("%s could not be added to %s", recipeID, group)})
			}
			out := map[string]any{"recipe": recipeID, "group": group, "grouping": gr.Key, "mode": mode.String()}
			if g, ok := vm.Group(group); ok {
				out["order"] = g.RecipeIDs
			}
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
	cmd.Flags().StringVar(&group, "group", "", "Group id to add the recipe to")
	return cmd
}
