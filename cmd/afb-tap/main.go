// afb-tap runs a tap suite against the demo APIs.
//
// Without --config the built-in demo suite runs. A config file may declare
// its own tests; AFB_TAP_* environment variables, optionally loaded from
// --env-file, override the file settings and flags override both.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/afb-runtime/binder"
	"github.com/wippyai/afb-runtime/config"
	"github.com/wippyai/afb-runtime/metrics"
	"github.com/wippyai/afb-runtime/samples"
	"github.com/wippyai/afb-runtime/tap"
	"github.com/wippyai/afb-runtime/transcoder"
)

type options struct {
	configFile    string
	envFile       string
	output        string
	metricsAddr   string
	timeout       time.Duration
	jobDelay      time.Duration
	interactive   bool
	verbose       bool
	exitOnFailure bool
}

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func run(args []string) (int, error) {
	var opts options
	flagSet := pflag.NewFlagSet("afb-tap", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configFile, "config", "c", "", "suite configuration file (yaml)")
	flagSet.StringVar(&opts.envFile, "env-file", "", "load AFB_TAP_* variables from this .env file")
	flagSet.StringVarP(&opts.output, "output", "o", "", "report format: tap, json or none")
	flagSet.DurationVar(&opts.timeout, "timeout", 0, "default test timeout")
	flagSet.DurationVar(&opts.jobDelay, "job-delay", 3*time.Second, "reply delay of the demo job-post verb")
	flagSet.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	flagSet.BoolVarP(&opts.interactive, "interactive", "i", false, "show live progress in the terminal")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	flagSet.BoolVar(&opts.exitOnFailure, "exit-on-failure", false, "exit with 1 when a test fails")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return 0, nil
		}
		return 1, err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return 0, nil
	}

	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil {
			return 1, fmt.Errorf("load env file: %w", err)
		}
	}

	cfg, err := loadConfig(opts.configFile)
	if err != nil {
		return 1, err
	}
	if flagSet.Changed("output") {
		cfg.Output = opts.output
	}
	if flagSet.Changed("timeout") {
		cfg.Timeout = config.Duration(opts.timeout)
	}
	if flagSet.Changed("exit-on-failure") {
		cfg.ExitOnFailure = opts.exitOnFailure
	}
	if err := cfg.Validate(); err != nil {
		return 1, err
	}

	interactive := opts.interactive && term.IsTerminal(int(os.Stdout.Fd()))
	logger, err := newLogger(opts.verbose, interactive)
	if err != nil {
		return 1, err
	}
	defer logger.Sync()
	transcoder.SetLogger(logger.Named("transcoder"))

	collector := metrics.NewCollector("afb")
	tc := transcoder.New(transcoder.WithLogger(logger.Named("transcoder")), transcoder.WithRecorder(collector))
	collector.Observe(tc.Table())

	b := binder.New(
		binder.WithLogger(logger),
		binder.WithTranscoder(tc),
		binder.WithRecorder(collector),
	)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := b.Close(ctx); err != nil {
			logger.Warn("binder close", zap.Error(err))
		}
	}()

	if opts.metricsAddr != "" {
		srv := serveMetrics(opts.metricsAddr, collector, logger)
		defer srv.Close()
	}

	demoOpts := []samples.Option{samples.WithJobDelay(opts.jobDelay)}
	if _, err := samples.Register(b, demoOpts...); err != nil {
		return 1, err
	}

	host, err := b.NewAPI("afb-tap", "tap test runner")
	if err != nil {
		return 1, err
	}
	suite, err := tap.NewSuite(host, cfg.UID)
	if err != nil {
		return 1, err
	}
	if err := cfg.Apply(suite); err != nil {
		return 1, err
	}
	if len(cfg.Tests) == 0 && len(cfg.Groups) == 0 {
		samples.AddTests(suite, demoOpts...)
	}

	exit := make(chan int, 1)
	suite.SetRecorder(collector).SetExitFunc(func(code int) { exit <- code })

	var ui *progressUI
	if interactive {
		ui = newProgressUI(b, suite)
		suite.SetWriter(io.Discard)
	}

	if err := suite.Finalize(); err != nil {
		return 1, err
	}
	logger.Info("suite ready",
		zap.String("suite", cfg.UID),
		zap.Bool("autorun", cfg.Autorun),
		zap.Bool("autoexit", cfg.Autoexit),
		zap.String("output", cfg.Output))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if ui != nil {
		if err := ui.Run(ctx); err != nil {
			return 1, err
		}
		if !cfg.Autoexit {
			return 0, nil
		}
		return suite.ExitCode(), nil
	}

	if !cfg.Autorun || !cfg.Autoexit {
		<-ctx.Done()
		return 0, nil
	}
	select {
	case code := <-exit:
		return code, nil
	case <-ctx.Done():
		return 1, ctx.Err()
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg := config.Default()
	if err := cfg.FromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serveMetrics(addr string, c *metrics.Collector, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	logger.Info("metrics listening", zap.String("addr", addr))
	return srv
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `afb-tap runs a tap suite against the demo apis.

Usage:
  afb-tap [flags]

Examples:
  # Run the demo suite and print a TAP report
  afb-tap

  # Run a suite file with JSON output and live progress
  afb-tap --config suite.yaml --output json -i

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
