package tui

import (
	"context"

	"mealplan-cli/internal/payload"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// Run shows the board until the user quits. In-flight saves finish before it returns.
func Run(ctx context.Context, opts Options) error {
	applyColorProfile(opts.Theme)
	applyTheme(opts.Theme)

	m, err := newBoardModel(ctx, opts)
	if err != nil {
		return err
	}
	defer m.close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.sched.attach(p.Send)

	if opts.WatchPath != "" {
		w := &payload.Watcher{
			Path:   opts.WatchPath,
			Logger: m.log,
			OnChange: func(pl *payload.Payload, err error) {
				p.Send(reloadedMsg{p: pl, err: err})
			},
		}
		if err := w.Start(ctx); err != nil {
			m.log.Warn("payload watch disabled", zap.String("path", opts.WatchPath), zap.Error(err))
		} else {
			defer func() { _ = w.Stop() }()
		}
	}

	_, err = p.Run()
	return err
}
