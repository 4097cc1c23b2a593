// Package commands implements the portlang CLI command tree.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/victortavares4/dsl-investments/internal/engine"
	"github.com/victortavares4/dsl-investments/internal/store"
	"github.com/victortavares4/dsl-investments/pkg/config"
	"github.com/victortavares4/dsl-investments/pkg/observability"
	"github.com/victortavares4/dsl-investments/pkg/version"
)

// ExitCodeValidationFailure is the exit code when a document or export fails validation.
const ExitCodeValidationFailure = 2

// Sentinel errors shared by commands.
var (
	// ErrValidationFailed indicates at least one input did not pass validation.
	ErrValidationFailed = errors.New("validation failed")
	// ErrHistoryDisabled indicates a history command ran without a store path.
	ErrHistoryDisabled = errors.New("run history is disabled: set store.path or --db")
)

// Globals are the persistent flags shared by every command.
type Globals struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
	DBPath     string
}

// NewRootCommand builds the portlang command tree.
func NewRootCommand() *cobra.Command {
	g := &Globals{}

	rootCmd := &cobra.Command{
		Use:   "portlang",
		Short: "Portfolio DSL compiler, validator and report generator",
		Long: `portlang compiles "carteira { ... }" portfolio documents, validates
allocation and risk rules, and generates exports, reports and Go code.

Commands:
  check     Validate documents and print diagnostics
  export    Export a valid document as json, yaml, toml or binary
  report    Render a text, markdown or html report
  codegen   Emit a Go source file for a document
  fmt       Rewrite documents in canonical form`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&g.ConfigFile, "config", "", "config file (default is ./.portlang.yaml or $HOME/.portlang.yaml)")
	flags.BoolVarP(&g.Verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&g.Quiet, "quiet", "q", false, "suppress output")
	flags.StringVar(&g.DBPath, "db", "", "run history database (overrides store.path)")

	rootCmd.AddCommand(newCheckCommand(g))
	rootCmd.AddCommand(newTokensCommand(g))
	rootCmd.AddCommand(newExportCommand(g))
	rootCmd.AddCommand(newReportCommand(g))
	rootCmd.AddCommand(newCodegenCommand(g))
	rootCmd.AddCommand(newFmtCommand(g))
	rootCmd.AddCommand(newSchemaCommand(g))
	rootCmd.AddCommand(newHistoryCommand(g))
	rootCmd.AddCommand(newLSPCommand(g))
	rootCmd.AddCommand(newMCPCommand(g))
	rootCmd.AddCommand(newServerCommand(g))
	rootCmd.AddCommand(newCompletionCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "portlang %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

// session holds everything a command needs after configuration is loaded.
type session struct {
	cfg       *config.Config
	providers observability.Providers
	runner    *engine.Runner
	store     store.Store
	logger    *slog.Logger
}

type sessionOptions struct {
	mode       observability.AppMode
	withStore  bool
	logJSON    bool
	debug      bool
	prometheus bool
}

// openSession loads configuration, initializes observability and builds the
// shared compilation runner. The caller must Close the session.
func openSession(g *Globals, opts sessionOptions) (*session, error) {
	cfg, err := config.LoadConfig(g.ConfigFile)
	if err != nil {
		return nil, err
	}

	providers, err := observability.Init(observabilityConfig(cfg, g, opts))
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	sess := &session{cfg: cfg, providers: providers, logger: providers.Logger}

	dbPath := g.DBPath
	if dbPath == "" {
		dbPath = cfg.Store.Path
	}

	if opts.withStore && dbPath != "" {
		st, openErr := store.Open(dbPath)
		if openErr != nil {
			return nil, errors.Join(openErr, sess.Close(context.Background()))
		}

		sess.store = st
	}

	compileMetrics, err := observability.NewCompileMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("compile metrics: %w", err), sess.Close(context.Background()))
	}

	engineOpts := engine.Options{
		Thresholds: cfg.Validation,
		CacheSize:  cfg.Cache.Size,
		Tracer:     providers.Tracer,
		Metrics:    compileMetrics,
		Logger:     providers.Logger,
	}

	if sess.store != nil {
		engineOpts.Store = sess.store
	}

	runner, err := engine.New(engineOpts)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create runner: %w", err), sess.Close(context.Background()))
	}

	sess.runner = runner

	return sess, nil
}

// Close releases the store and flushes telemetry.
func (s *session) Close(ctx context.Context) error {
	var errs []error

	if s.store != nil {
		errs = append(errs, s.store.Close())
	}

	if s.providers.Shutdown != nil {
		errs = append(errs, s.providers.Shutdown(ctx))
	}

	return errors.Join(errs...)
}

// closeSession is deferred by commands; shutdown failures are logged only.
func closeSession(sess *session) {
	err := sess.Close(context.Background())
	if err != nil {
		sess.logger.Warn("session shutdown failed", "error", err)
	}
}

func observabilityConfig(cfg *config.Config, g *Globals, opts sessionOptions) observability.Config {
	obs := observability.DefaultConfig()
	obs.ServiceVersion = version.Version
	obs.Mode = opts.mode
	obs.Environment = cfg.Observability.Environment
	obs.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obs.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Observability.OTLPHeaders)
	obs.OTLPInsecure = cfg.Observability.OTLPInsecure
	obs.Prometheus = cfg.Observability.Prometheus || opts.prometheus
	obs.SampleRatio = cfg.Observability.SampleRatio
	obs.LogLevel = observability.ParseLevel(cfg.Logging.Level)
	obs.LogJSON = opts.logJSON || strings.EqualFold(cfg.Logging.Format, config.LogFormatJSON)

	if obs.OTLPEndpoint == "" {
		obs.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}

	switch {
	case g.Verbose || opts.debug:
		obs.LogLevel = slog.LevelDebug
	case g.Quiet:
		obs.LogLevel = slog.LevelError
	}

	return obs
}
