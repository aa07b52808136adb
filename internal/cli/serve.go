package cli

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"mealplan-cli/internal/logging"
	"mealplan-cli/internal/web"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local planner server (page, drag/drop actions, live fragment updates)",
		Long: strings.TrimSpace(`
Serve a plan over HTTP the way the planner does: the page embeds the groupings and recipes
documents, POST /action_move_mpr/ and /action_update_mpr/{item}/{group}/ change it, and
open pages receive the changed groups fragment over server-sent events.

Point the board at it with --server and --sync synced.
`),
		Example: strings.TrimSpace(`
# Serve the demo week
mealplan --demo serve --addr 127.0.0.1:8000

# Open a synced board against it
mealplan --server http://127.0.0.1:8000 --sync synced
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr := strings.TrimSpace(addr)
			if listenAddr == "" {
				return writeErr(cmd, errors.New("serve: missing --addr"))
			}
			p, err := app.loadPayload(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			log, err := logging.Console(app.Debug)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer func() { _ = log.Sync() }()

			srv, err := web.NewServer(web.ServerConfig{
				Addr:      listenAddr,
				CSRFToken: app.cfg.CSRFToken,
				Logger:    log,
			}, p)
			if err != nil {
				return writeErr(cmd, err)
			}
			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return writeErr(cmd, err)
			}
			url := "http://" + ln.Addr().String() + "/"

			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"addr":      ln.Addr().String(),
					"url":       url,
					"groupings": p.Groupings.Keys,
					"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				},
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "Planner running at %s\n", url)
			log.Info("serving", zap.String("addr", ln.Addr().String()))

			return srv.Serve(cmd.Context(), ln)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "Bind address (host:port or :port)")
	return cmd
}
