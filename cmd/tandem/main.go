package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dori/tandem/internal/app"
	"github.com/dori/tandem/internal/config"
	"github.com/dori/tandem/internal/logger"
	"github.com/dori/tandem/internal/provider"
	"github.com/dori/tandem/internal/ui"
	"github.com/dori/tandem/internal/ui/theme"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// errNotLoggedIn is returned by one-shot commands when no session can be restored
var errNotLoggedIn = errors.New("not logged in: run `tandem login <username>` or pass --user")

// options are the persistent flags shared by every command
type options struct {
	configPath string
	username   string
	password   string
	verbose    bool
}

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "tandem",
		Short: "tandem - a shared project and task tracker that keeps working offline",
		Long: `tandem tracks projects and tasks shared between collaborators.

Every change goes to the remote store when it is reachable and to the local
mirror when it is not, so the tracker keeps working offline.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			themeName, _ := cmd.Flags().GetString("theme")
			return runTUI(cmd.Context(), opts, themeName)
		},
	}
	rootCmd.Flags().String("theme", "", "Theme name (nord, dracula)")

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "Config file (default: ./tandem.yaml or <data dir>/tandem.yaml)")
	pf.StringVarP(&opts.username, "user", "u", "", "Log in as this user instead of restoring the saved session")
	pf.StringVarP(&opts.password, "password", "p", "", "Password for --user")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Log to stderr instead of the log file")

	rootCmd.AddCommand(
		loginCmd(opts),
		logoutCmd(opts),
		whoamiCmd(opts),
		migrateCmd(opts),
		listCmd(opts),
		statsCmd(opts),
		addProjectCmd(opts),
		setProjectStatusCmd(opts),
		rmProjectCmd(opts),
		addTaskCmd(opts),
		startCmd(opts),
		completeCmd(opts),
		assignCmd(opts),
		rmTaskCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Show version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(out, "tandem v%s\n", version)
			},
		},
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration, points the logger at the log file (or stderr
// with --verbose) and opens the application
func setup(ctx context.Context, opts *options) (*app.App, func(), error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}

	logCfg := logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.LogFile()}
	if opts.verbose {
		logCfg.File = ""
	}
	logCloser, err := logger.Init(logCfg)
	if err != nil {
		return nil, nil, err
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		logCloser.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := application.Close(); err != nil {
			logger.Get().Warn("shutdown failed", "err", err)
		}
		logCloser.Close()
	}
	return application, cleanup, nil
}

// session logs in with --user when given, otherwise restores the saved user.
// A nil session with a nil error means nobody is logged in.
func session(ctx context.Context, a *app.App, opts *options) (*provider.Session, error) {
	if opts.username != "" {
		return a.Login(ctx, opts.username, opts.password)
	}
	return a.Restore(ctx)
}

// withSession runs fn against a live session and closes everything afterwards
func withSession(cmd *cobra.Command, opts *options, fn func(ctx context.Context, a *app.App, s *provider.Session) error) error {
	ctx := cmd.Context()
	application, cleanup, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	s, err := session(ctx, application, opts)
	if err != nil {
		return err
	}
	if s == nil {
		return errNotLoggedIn
	}
	return fn(ctx, application, s)
}

func runTUI(ctx context.Context, opts *options, themeName string) error {
	if themeName != "" {
		t, ok := theme.ByName(themeName)
		if !ok {
			return fmt.Errorf("unknown theme %q", themeName)
		}
		theme.SetTheme(t)
	}

	// The terminal belongs to the UI
	opts.verbose = false
	application, cleanup, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	// A missing saved session just shows the login form
	if _, err := session(ctx, application, opts); err != nil {
		logger.Get().Warn("could not resume session", "err", err)
	}

	p := tea.NewProgram(
		ui.NewRootModel(application),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// out is where command results are printed
var out io.Writer = os.Stdout
