package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/haystack-sidecar/internal/adapters/fs"
	httpAdapter "github.com/bft-labs/haystack-sidecar/internal/adapters/http"
	"github.com/bft-labs/haystack-sidecar/internal/app"
	"github.com/bft-labs/haystack-sidecar/internal/cliconfig"
	"github.com/bft-labs/haystack-sidecar/internal/platform"
	"github.com/bft-labs/haystack-sidecar/pkg/haystack"
	"github.com/bft-labs/haystack-sidecar/pkg/log"
	"github.com/bft-labs/haystack-sidecar/plugins/installwatcher"
)

const longHelp = `haystackd installs, upgrades and supervises the haystack search sidecar.

It checks the installed sidecar against the required version, fetches the
release archive from the download cache, the bundled resources or the
release servers when needed, then starts the sidecar and waits for it to
report healthy.

Configuration is read from $HOME/.haystack/manager.toml, then HAYSTACK_*
environment variables, then flags.`

var exampleUsage = strings.TrimSpace(`
  haystackd run --version 1.4.0 --bundle-dir /opt/myapp/resources
  haystackd status
  haystackd post /api/v1/search '{"q":"needle"}'
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string
	logger := cliconfig.Logger()

	root := &cobra.Command{
		Use:           "haystackd",
		Short:         "Install and supervise the haystack search sidecar",
		Long:          longHelp,
		Example:       exampleUsage,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger = cliconfig.LoggerAt(cfg.LogLevel)
			logger.Debug().Interface("config", cfg).Msg("configuration")
			return nil
		},
	}

	var stopOnExit bool
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Install if needed, start the sidecar and keep it supervised",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManager(cfg, logger, stopOnExit)
		},
	}
	runCmd.Flags().BoolVar(&stopOnExit, "stop-on-exit", false, "stop the sidecar when haystackd exits")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the installed version and whether the sidecar is healthy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStatus(cmd.OutOrStdout(), cfg, logger)
		},
	}

	postCmd := &cobra.Command{
		Use:   "post <path> [json]",
		Short: "Send a JSON request to a running sidecar",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := "{}"
			if len(args) == 2 {
				payload = args[1]
			}
			return postRequest(cmd.OutOrStdout(), cfg, logger, args[0], payload)
		},
	}

	// --version selects the required sidecar version, so the build version is a subcommand.
	versionCmd := &cobra.Command{
		Use:               "build-info",
		Short:             "Print the haystackd build version",
		Args:              cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "haystackd %s %s/%s\n", getVersion(), runtime.GOOS, runtime.GOARCH)
		},
	}

	root.AddCommand(runCmd, statusCmd, postCmd, versionCmd)

	flags := root.PersistentFlags()
	flags.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.haystack/manager.toml)")
	flags.StringVar(&cfg.InstallDir, "install-dir", cfg.InstallDir, "sidecar install directory")
	flags.StringVar(&cfg.BundleDir, "bundle-dir", cfg.BundleDir, "directory that may ship the release archive")
	flags.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "sidecar data directory")
	flags.StringVar(&cfg.Host, "host", cfg.Host, "sidecar listen host")
	flags.IntVar(&cfg.Port, "port", cfg.Port, "sidecar listen port")
	flags.StringVar(&cfg.Version, "version", cfg.Version, "required sidecar version")
	flags.StringVar(&cfg.PrimaryURL, "primary-url", cfg.PrimaryURL, "primary release base URL")
	flags.StringVar(&cfg.FallbackURL, "fallback-url", cfg.FallbackURL, "fallback release base URL")
	flags.BoolVar(&cfg.Local, "local", cfg.Local, "install and start the sidecar locally")
	flags.StringVar(&cfg.ServerURL, "server-url", cfg.ServerURL, "sidecar URL when --local=false")
	flags.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout for sidecar requests")
	flags.DurationVar(&cfg.DownloadTimeout, "download-timeout", cfg.DownloadTimeout, "timeout for a single archive download")
	flags.DurationVar(&cfg.SettleDelay, "settle-delay", cfg.SettleDelay, "wait after spawning before the health probe")
	flags.DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "wait between failed start attempts")
	flags.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "maximum wait for the sidecar to stop")
	flags.IntVar(&cfg.StartRetries, "start-retries", cfg.StartRetries, "failed start attempts before giving up")
	flags.IntVar(&cfg.MaxRedirects, "max-redirects", cfg.MaxRedirects, "redirect hop limit for downloads")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	if err := root.Execute(); err != nil {
		logger.Error().Err(err).Msg("haystackd")
		os.Exit(1)
	}
}

// logObserver writes status transitions to the CLI log.
type logObserver struct {
	haystack.BaseObserver
	logger   zerolog.Logger
	lastStep float64
}

func (o *logObserver) OnStatusChange(ev haystack.StatusChange) {
	o.logger.Info().Str("from", ev.Old.String()).Str("to", ev.New.String()).Str("reason", ev.Reason).Msg("status")
}

func (o *logObserver) OnInstallStatusChange(ev haystack.InstallStatusChange) {
	o.logger.Info().Str("from", ev.Old.String()).Str("to", ev.New.String()).Str("reason", ev.Reason).Msg("install status")
}

func (o *logObserver) OnDownloadProgress(p haystack.DownloadProgress) {
	if p.Percent != 100 && p.Percent-o.lastStep < 25 && p.Percent != 0 {
		return
	}
	o.lastStep = p.Percent
	o.logger.Info().Str("url", p.SourceURL).Float64("percent", p.Percent).Int64("bytes", p.DownloadedSize).Msg("download")
}

func (o *logObserver) OnError(ev haystack.ErrorEvent) {
	o.logger.Error().Str("message", ev.Message).Msg("sidecar error")
}

func runManager(cfg cliconfig.Config, logger zerolog.Logger, stopOnExit bool) error {
	m, err := haystack.New(cfg.ManagerConfig(), cfg.Local,
		haystack.WithLogger(log.NewZerologAdapterWithLogger(logger)),
		haystack.WithObserver(&logObserver{logger: logger}),
		installwatcher.WithDefaultInstallWatcher(),
	)
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.Initialize(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn().Err(err).Msg("initialization failed; waiting for repair or signal")
	}

	<-ctx.Done()
	logger.Info().Msg("received signal, stopping...")

	if stopOnExit && m.Status() == haystack.StatusRunning {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout+5*time.Second)
		defer cancel()
		if err := m.StopForUpgrade(stopCtx); err != nil {
			logger.Warn().Err(err).Msg("sidecar stop failed")
		}
	}
	return m.Close()
}

func serverURL(cfg cliconfig.Config) string {
	if !cfg.Local && cfg.ServerURL != "" {
		return cfg.ServerURL
	}
	return cfg.ManagerConfig().LocalURL()
}

func printStatus(w io.Writer, cfg cliconfig.Config, logger zerolog.Logger) error {
	zl := log.NewZerologAdapterWithLogger(logger)
	client := httpAdapter.NewServerClient(serverURL(cfg), &http.Client{Timeout: cfg.HTTPTimeout}, zl)

	plat := platform.Current()
	fmt.Fprintf(w, "platform:  %s (supported: %v)\n", plat.Key, plat.Supported)

	if cfg.Local {
		markers := fs.NewMarkerStore(cfg.InstallDir)
		installed, err := markers.ReadVersion()
		switch {
		case err != nil:
			fmt.Fprintf(w, "installed: none (%s)\n", filepath.Join(cfg.InstallDir, plat.Executable))
		default:
			ok, cerr := app.Compatible(installed, cfg.Version)
			fmt.Fprintf(w, "installed: %s (required %s, compatible: %v)\n", installed, cfg.Version, ok && cerr == nil)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	defer cancel()
	state := "unreachable"
	if client.Healthy(ctx) {
		state = "healthy"
	}
	fmt.Fprintf(w, "server:    %s %s\n", client.BaseURL(), state)
	return nil
}

func postRequest(w io.Writer, cfg cliconfig.Config, logger zerolog.Logger, path, payload string) error {
	if !json.Valid([]byte(payload)) {
		return fmt.Errorf("payload is not valid JSON")
	}
	zl := log.NewZerologAdapterWithLogger(logger)
	client := httpAdapter.NewServerClient(serverURL(cfg), &http.Client{Timeout: cfg.HTTPTimeout}, zl)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	defer cancel()
	if !client.Healthy(ctx) {
		return haystack.ErrNotRunning
	}

	body, err := client.Post(ctx, path, json.RawMessage(payload))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(body))
	return err
}
