package cli

import (
	"path/filepath"
	"strings"

	"mealplan-cli/internal/saved"
	"mealplan-cli/internal/tui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newBoardCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Open the interactive board (same as running mealplan with no command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoard(cmd, app)
		},
	}
}

func runBoard(cmd *cobra.Command, app *App) error {
	ctx := cmd.Context()
	log := app.logger()

	p, err := app.loadPayload(ctx)
	if err != nil {
		return writeErr(cmd, err)
	}
	vm, err := app.newViewModel(p, app.cfg.Board.DefaultGrouping)
	if err != nil {
		return writeErr(cmd, err)
	}
	dragOpts, err := app.dragOptions()
	if err != nil {
		return writeErr(cmd, err)
	}

	opts := tui.Options{
		VM:               vm,
		Drag:             dragOpts,
		Reload:           app.reloader(),
		RefreshAfterSync: app.cfg.Sync.RefreshAfterSync,
		Theme:            app.cfg.Board.Theme,
		Logger:           log,
	}
	if f := strings.TrimSpace(app.File); f != "" && !app.Demo {
		opts.WatchPath = f
		opts.Title = "Meal plan · " + filepath.Base(f)
	}
	if dragOpts.Persister != nil {
		if c, err := app.client(); err == nil {
			opts.Renamer = c
			opts.Adder = c
		}
	}

	if home, err := app.homeDir(); err == nil {
		store, err := saved.Open(ctx, filepath.Join(home, saved.FileName))
		if err != nil {
			log.Warn("saved recipes unavailable", zap.Error(err))
		} else {
			defer store.Close()
			opts.Saved = store
		}
	}

	log.Info("board start",
		zap.String("grouping", vm.Active()),
		zap.String("mode", app.cfg.Sync.Mode),
		zap.String("endpoint", app.cfg.Sync.Endpoint))
	if err := tui.Run(ctx, opts); err != nil {
		return writeErr(cmd, err)
	}
	return nil
}
