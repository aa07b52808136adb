package cli

import (
	"path/filepath"
	"strings"

	"mealplan-cli/internal/saved"

	"github.com/spf13/cobra"
)

func newSavedCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Saved recipes (the ones starred on the board)",
	}
	cmd.AddCommand(newSavedListCmd(app))
	cmd.AddCommand(newSavedToggleCmd(app))
	return cmd
}

func openSaved(cmd *cobra.Command, app *App) (*saved.Store, error) {
	home, err := app.homeDir()
	if err != nil {
		return nil, err
	}
	return saved.Open(cmd.Context(), filepath.Join(home, saved.FileName))
}

func newSavedListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved recipes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSaved(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer store.Close()
			ids, err := store.List(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			// Names are best effort: only when plan data was given.
			name := func(id string) string { return id }
			if app.Demo || strings.TrimSpace(app.File) != "" {
				if p, err := app.loadPayload(cmd.Context()); err == nil {
					name = p.Recipes.Name
				}
			}
			out := make([]recipeOut, 0, len(ids))
			for _, id := range ids {
				out = append(out, recipeOut{ID: id, Name: name(id)})
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"recipes": out}})
		},
	}
}

func newSavedToggleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <recipe-id>",
		Short: "Save a recipe, or unsave it if it is already saved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSaved(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer store.Close()
			id := strings.TrimSpace(args[0])
			on, err := store.Toggle(cmd.Context(), id)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"recipe": id, "saved": on}})
		},
	}
}
