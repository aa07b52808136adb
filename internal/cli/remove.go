package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"mealplan-cli/internal/viewmodel"

	"github.com/spf13/cobra"
)

func newRemoveCmd(app *App) *cobra.Command {
	var group string
	var yes bool

	cmd := &cobra.Command{
		Use:   "remove <recipe-id>",
		Short: "Remove a recipe from a group (the recipe stays in the catalog)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipeID := strings.TrimSpace(args[0])
			p, err := app.loadPayload(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			group = strings.TrimSpace(group)
			if group == "" {
				return writeErr(cmd, fmt.Errorf("remove: missing --group"))
			}
			gr, g, ok := p.Groupings.FindGroup(group)
			if !ok {
				return writeErr(cmd, errNotFound("group", group))
			}
			if g.IndexOf(recipeID) < 0 {
				return writeErr(cmd, errNotFound("recipe", fmt.Sprintf("%s in %s", recipeID, group)))
			}
			vm, err := app.newViewModel(p, gr.Key)
			if err != nil {
				return writeErr(cmd, err)
			}

			confirm := viewmodel.ConfirmFunc(func(prompt string) bool {
				if yes {
					return true
				}
				return askYesNo(cmd.InOrStdin(), cmd.ErrOrStderr(), prompt)
			})
			removed := vm.ConfirmRemoveRecipe(group, recipeID, confirm)
			out := map[string]any{"recipe": recipeID, "group": group, "removed": removed}
			if removed {
				path, err := app.saveLocal(vm)
				if err != nil {
					return writeErr(cmd, err)
				}
				if path != "" {
					out["savedTo"] = path
				}
				if g, ok := vm.Group(group); ok {
					out["order"] = g.RecipeIDs
				}
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "Group id to remove the recipe from")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// askYesNo prints prompt and reads one answer line. Anything but y/yes is a no.
func askYesNo(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
