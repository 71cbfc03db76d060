package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/artpar/dockbuild/internal/shell/composecli"
	"github.com/artpar/dockbuild/internal/shell/docker"
	"github.com/artpar/dockbuild/internal/shell/swarm"
	"github.com/artpar/dockbuild/internal/shell/terminal"
)

const (
	cmdName = "dockbuild"
	cmdDesc = `Build, test, tag and deploy Docker images and compose projects.`
)

// =============================================================================
// Root Command
// =============================================================================

// RootArgs holds the persistent flags.
type RootArgs struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	Project    string
	EnvFiles   []string
	DryRun     bool
}

func (ra *RootArgs) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&ra.ConfigPath, "config", "", "Path to the dockbuild configuration file")
	cmd.PersistentFlags().StringVar(&ra.LogLevel, "log-level", "info", "Log level, one of: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&ra.LogFormat, "log-format", "text", "Log format, one of: text, json")
	cmd.PersistentFlags().StringVarP(&ra.Project, "project", "p", "", "Compose project name")
	cmd.PersistentFlags().StringSliceVar(&ra.EnvFiles, "env-file", nil, "Load variables from .env files before running")
	cmd.PersistentFlags().BoolVar(&ra.DryRun, "dry-run", false, "Log engine commands instead of running them")

	if err := cmd.MarkPersistentFlagFilename("config", "yaml", "yml"); err != nil {
		panic(fmt.Errorf("mark config flag: %w", err))
	}
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	args := &RootArgs{}
	app := &App{}

	cmd := &cobra.Command{
		Use:           cmdName,
		Short:         cmdDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.setup(cmd, args)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return app.Close()
		},
	}

	args.AddFlags(cmd)
	cmd.AddCommand(
		newVersionCmd(),
		newImageCmd(app),
		newContainerCmd(app),
		newComposeCmd(app),
		newSwarmCmd(app),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		// version needs no config or engine
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (built %s)\n", cmdName, Version, BuildTime)
		},
	}
}

// =============================================================================
// Application Wiring
// =============================================================================

// App holds what every command needs, built once per invocation.
type App struct {
	Config *Config
	Logger *slog.Logger
	Exec   terminal.Executor
	Docker *docker.Client

	inspector docker.Inspector
	api       *docker.APIClient
}

func (a *App) setup(cmd *cobra.Command, args *RootArgs) error {
	cfg, err := LoadConfig(args.ConfigPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("%w: %v", errConfig, err)
	}

	logger := SetupLogger(cfg, cmd.ErrOrStderr()).With(
		"invocation", uuid.NewString(),
		"command", cmd.CommandPath(),
	)

	set, err := terminal.LoadEnvFiles(cfg.EnvFiles...)
	if err != nil {
		return fmt.Errorf("%w: %v", errConfig, err)
	}
	if len(set) > 0 {
		logger.Debug("loaded env files", "files", cfg.EnvFiles, "variables", set)
	}

	if cfg.DryRun {
		a.Exec = terminal.NewRecorder(logger)
	} else {
		e := terminal.NewExecExecutor(logger)
		e.Stdout = cmd.OutOrStdout()
		e.Stderr = cmd.ErrOrStderr()
		a.Exec = e
	}

	a.Config = cfg
	a.Logger = logger
	a.Docker = docker.NewClient(a.Exec, cfg.Docker.Binary, logger)
	return nil
}

// Inspector returns the configured image and container inspector. A dry run
// only reports the lookups it would make. The Engine API is dialed and
// pinged on first use when configured.
func (a *App) Inspector(ctx context.Context) (docker.Inspector, error) {
	if a.inspector != nil {
		return a.inspector, nil
	}
	switch {
	case a.Config.DryRun:
		a.inspector = docker.NewDryRunInspector(a.Docker)
	case a.Config.Docker.Inspector == InspectorAPI:
		api, err := a.apiClient(ctx)
		if err != nil {
			return nil, err
		}
		a.inspector = api
	default:
		a.inspector = a.Docker
	}
	return a.inspector, nil
}

// Images returns the image store: the Engine API when configured, the
// engine CLI otherwise.
func (a *App) Images(ctx context.Context) (docker.ImageStore, error) {
	if a.Config.Docker.Inspector != InspectorAPI || a.Config.DryRun {
		return a.Docker, nil
	}
	return a.apiClient(ctx)
}

func (a *App) apiClient(ctx context.Context) (*docker.APIClient, error) {
	if a.api != nil {
		return a.api, nil
	}
	api, err := docker.NewAPIClient(ctx, a.Config.Docker.Host, a.Logger)
	if err != nil {
		return nil, err
	}
	if err := api.Ping(ctx); err != nil {
		api.Close()
		return nil, err
	}
	a.api = api
	return api, nil
}

// Compose returns a compose runner for the configured project.
func (a *App) Compose(ctx context.Context) (*composecli.Runner, error) {
	inspector, err := a.Inspector(ctx)
	if err != nil {
		return nil, err
	}
	return composecli.New(a.Docker, inspector, a.Config.Compose.Project, a.Logger), nil
}

// Swarm returns a swarm manager.
func (a *App) Swarm() *swarm.Manager {
	return swarm.New(a.Docker, a.Logger)
}

// Close releases the Engine API connection, if one was opened.
func (a *App) Close() error {
	if a.api != nil {
		return a.api.Close()
	}
	return nil
}

// =============================================================================
// Output Helpers
// =============================================================================

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printLines(w io.Writer, lines []string) {
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}
