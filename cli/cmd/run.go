package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/rpbridge/bridge"
	"github.com/pithecene-io/rpbridge/config"
	"github.com/pithecene-io/rpbridge/gotest"
	"github.com/pithecene-io/rpbridge/ipc"
	"github.com/pithecene-io/rpbridge/log"
	"github.com/pithecene-io/rpbridge/metrics"
	"github.com/pithecene-io/rpbridge/notify"
	"github.com/pithecene-io/rpbridge/reporting"
	"github.com/pithecene-io/rpbridge/runtime"
	"github.com/pithecene-io/rpbridge/types"
)

// Exit codes of `rpbridge run`.
const (
	exitPassed      = runtime.ExitCodePassed
	exitTestsFailed = runtime.ExitCodeTestsFailed
	exitRunError    = runtime.ExitCodeRunError
	exitConfigError = runtime.ExitCodeConfigError
)

// Host source kinds.
const (
	sourceIPC    = "ipc"
	sourceGoTest = "gotest"
)

// RunCommand returns the run command.
// This is the only command that reports to a remote service.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Report a host test run to ReportPortal",
		ArgsUsage: "[-- command [args...]]",
		Description: "Reads host events from --input (or from the stdout of the command given\n" +
			"after --) and reports them as one launch. Exit codes: 0 all tests passed,\n" +
			"1 a test failed, 2 reporting or stream failure, 3 configuration error.",
		Flags: []cli.Flag{
			// Input flags
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Host event stream: a file path or - for stdin (ignored with a command)",
				Value:   "-",
			},
			&cli.StringFlag{
				Name:  "source",
				Usage: "Host stream format: ipc (framed msgpack) or gotest (go test -json)",
				Value: sourceIPC,
			},
			ConfigFlag,
			// Launch flags
			&cli.StringFlag{
				Name:  "launch",
				Usage: "Launch name (overrides RP_LAUNCH and launch.name)",
			},
			&cli.StringFlag{
				Name:  "description",
				Usage: "Launch description",
			},
			&cli.StringSliceFlag{
				Name:  "attribute",
				Usage: "Launch attribute as key:value or value (repeatable)",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Launch mode: DEFAULT or DEBUG",
			},
			// Transport flags
			&cli.StringFlag{
				Name:  "transport",
				Usage: "Reporting transport: portal, redis, archive or stub",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-call transport timeout",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Validate and translate the stream without reporting (stub transport)",
			},
			// Output flags
			&cli.StringFlag{
				Name:  "format",
				Usage: "Log message format: metadata or inline",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a JSON run report to FILE (- for stderr)",
			},
			&cli.StringFlag{
				Name:  "notify-webhook",
				Usage: "POST a run-finished event to this URL when the run ends",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address during the run (e.g. :9464)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress the result summary",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := config.Resolve(c.String("config"), os.LookupEnv)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	if err := applyRunFlags(c, cfg); err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	sourceKind := c.String("source")
	if sourceKind != sourceIPC && sourceKind != sourceGoTest {
		return cli.Exit(fmt.Sprintf("invalid --source: %s (must be ipc or gotest)", sourceKind), exitConfigError)
	}
	format, _ := bridge.ParseFormat(cfg.Format) // checked by Validate

	logger := log.NewLogger(log.Fields{
		Launch:    cfg.Launch.Name,
		Project:   cfg.Project(),
		Transport: cfg.Transport.Type,
	})
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	defer func() { _ = logger.Sync() }()

	collector := metrics.NewCollector(cfg.Transport.Type, cfg.Project(), cfg.Launch.Name)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if addr := cfg.MetricsAddr; addr != "" {
		shutdown, err := serveMetrics(addr, collector, logger)
		if err != nil {
			return cli.Exit(fmt.Sprintf("metrics server: %v", err), exitConfigError)
		}
		defer shutdown()
	}

	inner, err := newClient(ctx, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("%s transport: %v", cfg.Transport.Type, err), exitConfigError)
	}
	client := reporting.NewInstrumentedClient(inner, collector)
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("transport close failed", map[string]any{"error": err.Error()})
		}
	}()

	notifiers, err := newNotifiers(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("notify: %v", err), exitConfigError)
	}
	defer func() { _ = notify.CloseAll(notifiers) }()

	var proc *runtime.Process
	var input io.Reader
	if c.Args().Len() > 0 {
		proc, err = runtime.NewProcess(&runtime.ProcessConfig{
			Command: c.Args().Slice(),
			Launch:  cfg.Launch.Name,
			Stderr:  c.App.ErrWriter,
		})
		if err != nil {
			return cli.Exit(err.Error(), exitConfigError)
		}
		if err := proc.Start(ctx); err != nil {
			return cli.Exit(err.Error(), exitRunError)
		}
		input = proc.Stdout()
	} else {
		f, err := openInput(c.String("input"))
		if err != nil {
			return cli.Exit(err.Error(), exitConfigError)
		}
		defer func() { _ = f.Close() }()
		input = f
	}

	session, err := runtime.NewSession(&runtime.SessionConfig{
		Client:        client,
		Source:        newSource(sourceKind, input, logger),
		Launch:        cfg.BridgeLaunch(),
		Format:        format,
		Logger:        logger,
		Collector:     collector,
		FinishTimeout: cfg.Transport.Timeout.Duration,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	result, runErr := session.Run(ctx)

	if proc != nil {
		// The session may stop before the host closes stdout (run_end);
		// drain so the host is not blocked on a full pipe.
		_, _ = io.Copy(io.Discard, input)
		pr, err := proc.Wait()
		if err != nil {
			logger.Error("host process wait failed", map[string]any{"error": err.Error()})
		} else {
			if pr.ExitCode != 0 {
				logger.Warn("host process exited non-zero", map[string]any{
					"exit_code":   pr.ExitCode,
					"stderr_tail": lastLine(pr.StderrTail),
				})
			}
			result.ApplyHostExit(pr.ExitCode)
		}
	}

	report := runtime.BuildRunReport(result, collector.Snapshot(), cfg.Transport.Type)
	if path := c.String("report"); path != "" {
		if err := runtime.WriteRunReport(report, path); err != nil {
			logger.Error("run report not written", map[string]any{"error": err.Error()})
		}
	}
	publishRunFinished(notifiers, report, cfg.Project(), logger)

	if !c.Bool("quiet") {
		printRunResult(c.App.Writer, cfg, result)
	}

	code := result.Outcome.ExitCode()
	if runErr != nil {
		logger.Error("run failed", map[string]any{"error": runErr.Error()})
		return cli.Exit(fmt.Sprintf("run failed: %v", runErr), code)
	}
	return cli.Exit("", code)
}

// applyRunFlags overlays command-line flags onto cfg. Flags win over the
// environment and the config file.
func applyRunFlags(c *cli.Context, cfg *config.Config) error {
	cfg.Launch.Name = resolveString(c, "launch", cfg.Launch.Name)
	cfg.Launch.Description = resolveString(c, "description", cfg.Launch.Description)
	cfg.Launch.Mode = resolveString(c, "mode", cfg.Launch.Mode)
	cfg.Transport.Type = resolveString(c, "transport", cfg.Transport.Type)
	cfg.Transport.Timeout.Duration = resolveDuration(c, "timeout", cfg.Transport.Timeout.Duration)
	cfg.Format = resolveString(c, "format", cfg.Format)
	cfg.MetricsAddr = resolveString(c, "metrics-addr", cfg.MetricsAddr)
	cfg.Notify.Webhook.URL = resolveString(c, "notify-webhook", cfg.Notify.Webhook.URL)

	level := resolveString(c, "log-level", cfg.LogLevel)
	if !c.IsSet("log-level") && level == config.DefaultLogLevel && isStderrTTY() {
		// JSON logs drown the summary on a terminal.
		level = "warn"
	}
	cfg.LogLevel = level

	for _, raw := range c.StringSlice("attribute") {
		attr, err := parseAttribute(raw)
		if err != nil {
			return err
		}
		cfg.Launch.Attributes = append(cfg.Launch.Attributes, attr)
	}

	if c.Bool("dry-run") {
		cfg.Transport.Type = config.TransportStub
	}
	return nil
}

// parseAttribute parses "key:value" or a bare "value".
func parseAttribute(raw string) (types.Attribute, error) {
	key, value, found := strings.Cut(raw, ":")
	if !found {
		key, value = "", raw
	}
	if value == "" {
		return types.Attribute{}, fmt.Errorf("invalid --attribute %q: value must not be empty", raw)
	}
	return types.Attribute{Key: key, Value: value}, nil
}

// openInput opens the host stream. "-" is stdin.
func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open --input: %w", err)
	}
	return f, nil
}

func newSource(kind string, r io.Reader, logger *log.Logger) runtime.Source {
	if kind == sourceGoTest {
		return gotest.NewSource(r, gotest.WithLogger(logger))
	}
	return ipc.NewSource(r)
}

// serveMetrics starts the Prometheus endpoint. The listener is bound before
// returning so that address errors surface immediately.
func serveMetrics(addr string, collector *metrics.Collector, logger *log.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(collector))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", map[string]any{"error": err.Error()})
		}
	}()
	logger.Info("metrics server listening", map[string]any{"addr": ln.Addr().String()})

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func printRunResult(w io.Writer, cfg *config.Config, result *runtime.Result) {
	s := result.Summary

	fmt.Fprintf(w, "\nlaunch=%s, transport=%s, outcome=%s, duration=%s\n",
		s.Launch,
		cfg.Transport.Type,
		result.Outcome.Status,
		result.Duration.Round(time.Millisecond),
	)

	fmt.Fprintf(w, "\n=== Run Result ===\n")
	fmt.Fprintf(w, "Launch:       %s\n", s.Launch)
	if s.LaunchID != "" {
		fmt.Fprintf(w, "Launch ID:    %s\n", s.LaunchID)
	}
	fmt.Fprintf(w, "Outcome:      %s\n", result.Outcome.Status)
	fmt.Fprintf(w, "Message:      %s\n", result.Outcome.Message)
	fmt.Fprintf(w, "Suites:       %d\n", s.Suites)
	fmt.Fprintf(w, "Tests:        %d (passed %d, failed %d)\n", s.Tests, s.Passed, s.Failed)
	fmt.Fprintf(w, "Log entries:  %d\n", s.Logs)
	fmt.Fprintf(w, "Events:       %d\n", result.Events)
	if result.Dropped > 0 {
		fmt.Fprintf(w, "Dropped:      %d\n", result.Dropped)
	}
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
