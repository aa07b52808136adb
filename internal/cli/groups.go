package cli

import (
	"github.com/spf13/cobra"
)

type recipeOut struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type groupOut struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Recipes []recipeOut `json:"recipes"`
}

func newGroupsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List the groups of a grouping with their recipes in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.loadPayload(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			vm, err := app.newViewModel(p, app.cfg.Board.DefaultGrouping)
			if err != nil {
				return writeErr(cmd, err)
			}
			groups := make([]groupOut, 0)
			for _, g := range vm.Groups() {
				out := groupOut{ID: g.ID, Name: g.Name, Recipes: make([]recipeOut, 0, len(g.RecipeIDs))}
				for _, id := range g.RecipeIDs {
					out.Recipes = append(out.Recipes, recipeOut{ID: id, Name: vm.RecipeName(id)})
				}
				groups = append(groups, out)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"grouping":  vm.Active(),
				"groupings": vm.Keys(),
				"groups":    groups,
			}})
		},
	}
	return cmd
}
