package cli

import (
	"errors"
	"path/filepath"
	"strings"

	"mealplan-cli/internal/export"

	"github.com/spf13/cobra"
)

func newExportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <out.xlsx>",
		Short: "Write the plan to a spreadsheet, one sheet per grouping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := strings.TrimSpace(args[0])
			if !strings.EqualFold(filepath.Ext(out), ".xlsx") {
				return writeErr(cmd, errors.New("export: output must be an .xlsx file"))
			}
			p, err := app.loadPayload(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := export.WriteXLSX(out, p.Groupings, p.Recipes); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"path": out, "groupings": p.Groupings.Keys}})
		},
	}
	return cmd
}
