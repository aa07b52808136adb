package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newRecipesCmd(app *App) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "recipes",
		Short: "List the recipe catalog, optionally filtered by name or id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.loadPayload(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			matches := p.Recipes.Search(search)
			recipes := make([]recipeOut, 0, len(matches))
			for _, r := range matches {
				recipes = append(recipes, recipeOut{ID: r.ID, Name: p.Recipes.Name(r.ID)})
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"search":  strings.TrimSpace(search),
				"recipes": recipes,
			}})
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only list recipes whose name or id contains this text")
	return cmd
}
