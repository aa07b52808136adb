package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mealplan-cli/internal/config"
	"mealplan-cli/internal/dragdrop"
	"mealplan-cli/internal/format"
	"mealplan-cli/internal/logging"
	"mealplan-cli/internal/payload"
	"mealplan-cli/internal/persist"
	"mealplan-cli/internal/viewmodel"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type App struct {
	Home       string
	ConfigPath string

	File   string
	Page   string
	Demo   bool
	Server string

	Grouping string
	Sync     string
	Endpoint string

	PrettyJSON bool
	Format     string
	Debug      bool

	cfg *config.Config
	log *zap.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "mealplan",
		Short:        "Meal plan board: reorder and regroup recipes, locally or against the planner",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Open the board on the demo week
  mealplan --demo

  # Open the board on a saved plan and save drops back to the planner
  mealplan --file plan.json --sync synced --server http://127.0.0.1:8000

  # Scriptable commands
  mealplan --file plan.json groups --grouping mealType
  mealplan --file plan.json move quinoa-salad --to monday --index 1
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive board.
			if len(args) == 0 {
				return runBoard(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.loadConfig()
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if app.log != nil {
			_ = app.log.Sync()
		}
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.Home, "home", envOr("MEALPLAN_HOME", ""), "State directory (default ~/.mealplan)")
	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("MEALPLAN_CONFIG", ""), "Config file (default <home>/config.yaml)")
	cmd.PersistentFlags().StringVar(&app.File, "file", envOr("MEALPLAN_FILE", ""), "Plan data file (.json or a saved planner .html page)")
	cmd.PersistentFlags().StringVar(&app.Page, "page", "", "Planner page to load data from (URL, or a path on --server)")
	cmd.PersistentFlags().BoolVar(&app.Demo, "demo", false, "Use the built-in demo week")
	cmd.PersistentFlags().StringVar(&app.Server, "server", envOr("MEALPLAN_SERVER", ""), "Planner server base URL (overrides config)")
	cmd.PersistentFlags().StringVar(&app.Grouping, "grouping", "", "Grouping to show first (overrides config board.default_grouping)")
	cmd.PersistentFlags().StringVar(&app.Sync, "sync", envOr("MEALPLAN_SYNC", ""), "Sync mode (local|synced; overrides config)")
	cmd.PersistentFlags().StringVar(&app.Endpoint, "endpoint", "", "Sync endpoint (move|assign; overrides config)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("MEALPLAN_FORMAT", "json"), "Output format (json|edn)")
	cmd.PersistentFlags().BoolVar(&app.Debug, "debug", false, "Debug logging")

	cmd.AddCommand(newBoardCmd(app))
	cmd.AddCommand(newGroupsCmd(app))
	cmd.AddCommand(newRecipesCmd(app))
	cmd.AddCommand(newMoveCmd(app))
	cmd.AddCommand(newAssignCmd(app))
	cmd.AddCommand(newAddCmd(app))
	cmd.AddCommand(newRemoveCmd(app))
	cmd.AddCommand(newRenameCmd(app))
	cmd.AddCommand(newSavedCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

func (app *App) homeDir() (string, error) {
	if h := strings.TrimSpace(app.Home); h != "" {
		return h, nil
	}
	return config.Dir()
}

func (app *App) configPath() (string, error) {
	if p := strings.TrimSpace(app.ConfigPath); p != "" {
		return p, nil
	}
	home, err := app.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, config.FileName), nil
}

// loadConfig reads the config file and layers flags and environment on top of it.
func (app *App) loadConfig() error {
	path, err := app.configPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if s := strings.TrimSpace(app.Server); s != "" {
		cfg.Server = s
	}
	if s := strings.TrimSpace(app.Sync); s != "" {
		cfg.Sync.Mode = strings.ToLower(s)
	}
	if s := strings.TrimSpace(app.Endpoint); s != "" {
		cfg.Sync.Endpoint = strings.ToLower(s)
	}
	if s := strings.TrimSpace(app.Grouping); s != "" {
		cfg.Board.DefaultGrouping = s
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	app.cfg = cfg
	return nil
}

// logger is file-backed: stdout carries command output and the board owns the terminal.
func (app *App) logger() *zap.Logger {
	if app.log != nil {
		return app.log
	}
	app.log = zap.NewNop()
	home, err := app.homeDir()
	if err != nil {
		return app.log
	}
	if l, err := logging.New(home, app.Debug); err == nil {
		app.log = l
	}
	return app.log
}

func (app *App) httpClient() *http.Client {
	return &http.Client{Timeout: app.cfg.Sync.Timeout}
}

// client is the persistence client for the configured server.
func (app *App) client() (*persist.Client, error) {
	if strings.TrimSpace(app.cfg.Server) == "" {
		return nil, errors.New("no server configured (set --server or `mealplan config set server <url>`)")
	}
	return persist.NewClient(app.cfg.Server,
		persist.WithCSRFToken(app.cfg.CSRFToken),
		persist.WithTimeout(app.cfg.Sync.Timeout),
		persist.WithLogger(app.logger()),
	)
}

func (app *App) dragOptions() (dragdrop.Options, error) {
	mode, err := dragdrop.ParseMode(app.cfg.Sync.Mode)
	if err != nil {
		return dragdrop.Options{}, err
	}
	endpoint, err := dragdrop.ParseEndpoint(app.cfg.Sync.Endpoint)
	if err != nil {
		return dragdrop.Options{}, err
	}
	opts := dragdrop.Options{
		Family:   dragdrop.DefaultFamily,
		Mode:     mode,
		Endpoint: endpoint,
		Timeout:  app.cfg.Sync.Timeout,
		Logger:   app.logger(),
	}
	if mode == dragdrop.ModeSynced {
		c, err := app.client()
		if err != nil {
			return dragdrop.Options{}, err
		}
		opts.Persister = c
	}
	return opts, nil
}

func (app *App) pageURL() (string, error) {
	page := strings.TrimSpace(app.Page)
	if page == "" {
		page = "/"
	}
	u, err := url.Parse(page)
	if err != nil {
		return "", fmt.Errorf("bad --page: %w", err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if strings.TrimSpace(app.cfg.Server) == "" {
		return "", errors.New("--page is relative but no server is configured")
	}
	base, err := url.Parse(app.cfg.Server)
	if err != nil {
		return "", fmt.Errorf("bad server url: %w", err)
	}
	return base.ResolveReference(u).String(), nil
}

// loadPayload picks the data source: --demo, then --file, then --page or the server root.
// There is no silent fallback to demo data.
func (app *App) loadPayload(ctx context.Context) (*payload.Payload, error) {
	switch {
	case app.Demo:
		return payload.Demo(), nil
	case strings.TrimSpace(app.File) != "":
		return payload.LoadFile(app.File)
	case strings.TrimSpace(app.Page) != "" || strings.TrimSpace(app.cfg.Server) != "":
		u, err := app.pageURL()
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(ctx, max(app.cfg.Sync.Timeout, time.Second))
		defer cancel()
		return payload.Fetch(ctx, app.httpClient(), u)
	default:
		return nil, errors.New("no plan data: pass --file, --page (or configure a server) or --demo")
	}
}

// reloader re-reads the same source loadPayload used. Demo data has nothing to reload.
func (app *App) reloader() func(context.Context) (*payload.Payload, error) {
	if app.Demo {
		return nil
	}
	return app.loadPayload
}

// writable reports whether local changes can be written back to --file.
func (app *App) writable() bool {
	return !app.Demo && strings.EqualFold(filepath.Ext(strings.TrimSpace(app.File)), ".json")
}

func (app *App) newViewModel(p *payload.Payload, grouping string) (*viewmodel.ViewModel, error) {
	opts := []viewmodel.Option{viewmodel.WithLogger(app.logger())}
	if grouping = strings.TrimSpace(grouping); grouping != "" {
		opts = append(opts, viewmodel.WithActive(grouping))
	}
	return viewmodel.New(p, opts...)
}

// saveLocal writes the view model's state back to --file. It reports the path written, or ""
// when the source cannot be written.
func (app *App) saveLocal(vm *viewmodel.ViewModel) (string, error) {
	if !app.writable() {
		return "", nil
	}
	p := &payload.Payload{Groupings: vm.Snapshot(), Recipes: vm.Recipes()}
	if err := payload.SaveFile(app.File, p); err != nil {
		return "", err
	}
	return app.File, nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
