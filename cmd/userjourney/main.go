// cmd/userjourney/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/FairForge/userjourney/internal/client"
	"github.com/FairForge/userjourney/internal/config"
	"github.com/FairForge/userjourney/internal/fakeapi"
	"github.com/FairForge/userjourney/internal/identity"
	"github.com/FairForge/userjourney/internal/journey"
	"github.com/FairForge/userjourney/internal/logger"
	"github.com/FairForge/userjourney/internal/metrics"
	"github.com/FairForge/userjourney/internal/reporting"
)

type params struct {
	ConfigPath      string
	BaseURI         string
	APIKey          string
	Local           bool
	ReportPath      string
	ReportFormat    string
	MetricsFile     string
	LogLevel        string
	Seed            uint64
	CrossCheckLogin bool
	Cleanup         bool
}

func main() {
	p, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "userjourney: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, p, os.Stdout)
	stop()
	os.Exit(code)
}

// Parses the command-line arguments and returns them in a params struct.
func parseArgs(args []string) (*params, error) {
	app := kingpin.New("userjourney", "Runs the register/login/update/get/delete user journey against a users API.")
	p := &params{}

	app.Flag("config", "Path to a YAML config file.").Short('c').
		Default(config.GetEnvOrDefault("USERJOURNEY_CONFIG", "")).StringVar(&p.ConfigPath)
	app.Flag("base-uri", "Base URI of the target API.").StringVar(&p.BaseURI)
	app.Flag("api-key", "Value of the x-api-key header.").StringVar(&p.APIKey)
	app.Flag("local", "Run against an in-process fake users API.").BoolVar(&p.Local)
	app.Flag("report", "Write a run report to this path.").StringVar(&p.ReportPath)
	app.Flag("report-format", "Report format (json or yaml).").EnumVar(&p.ReportFormat, reporting.FormatJSON, reporting.FormatYAML)
	app.Flag("metrics-file", "Write Prometheus metrics in textfile format to this path.").StringVar(&p.MetricsFile)
	app.Flag("log-level", "Log level (debug, info, warn, error).").StringVar(&p.LogLevel)
	app.Flag("seed", "Seed for identity generation; 0 is random.").Uint64Var(&p.Seed)
	app.Flag("cross-check-login", "Fail the login step if its id differs from the registered id.").BoolVar(&p.CrossCheckLogin)
	app.Flag("cleanup", "Delete the user on teardown if the journey stopped before deleting it.").BoolVar(&p.Cleanup)

	if _, err := app.Parse(args); err != nil {
		return nil, err
	}
	return p, nil
}

// loadConfig merges the config file, environment and command-line flags.
func loadConfig(p *params) (*config.Config, error) {
	cfg, err := config.Load(p.ConfigPath)
	if err != nil {
		return nil, err
	}

	if p.BaseURI != "" {
		cfg.Target.BaseURI = p.BaseURI
	}
	if p.APIKey != "" {
		cfg.Target.APIKey = p.APIKey
	}
	if p.ReportPath != "" {
		cfg.Report.Path = p.ReportPath
	}
	if p.ReportFormat != "" {
		cfg.Report.Format = p.ReportFormat
	}
	if p.MetricsFile != "" {
		cfg.Metrics.TextfilePath = p.MetricsFile
	}
	if p.LogLevel != "" {
		cfg.Log.Level = p.LogLevel
	}
	if p.Seed != 0 {
		cfg.Run.Seed = p.Seed
	}
	if p.CrossCheckLogin {
		cfg.Run.CrossCheckLogin = true
	}
	if p.Cleanup {
		cfg.Run.Cleanup = true
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run executes one journey and returns the process exit code.
func run(ctx context.Context, p *params, out io.Writer) int {
	cfg, err := loadConfig(p)
	if err != nil {
		fmt.Fprintf(os.Stderr, "userjourney: %v\n", err)
		return 2
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "userjourney: %v\n", err)
		return 2
	}
	defer func() { _ = log.Sync() }()

	if p.Local {
		baseURI, shutdown, err := startLocal(cfg.Target.APIKey, log)
		if err != nil {
			log.Error("failed to start local api", zap.Error(err))
			return 1
		}
		defer shutdown()
		cfg.Target.BaseURI = baseURI
		log.Info("using local fake api", zap.String("base_uri", baseURI))
	}

	collector := metrics.NewCollector()
	c := client.New(client.NewRequestSpec(cfg.Target.BaseURI, cfg.Target.APIKey), client.Options{
		Timeout:           cfg.Target.Timeout,
		RequestsPerSecond: cfg.Run.RequestsPerSecond,
		Logger:            log,
		Metrics:           collector,
	})

	j := journey.NewUserJourney(cfg.Run, identity.NewFakeProvider(cfg.Run.Seed), c, log)
	res := journey.NewRunner(log, collector).Run(ctx, j.Scenario())

	printSummary(out, res)

	code := 0
	if !res.Passed() {
		code = 1
	}

	if cfg.Report.Path != "" {
		report, err := reporting.FromResult(res, c.Spec().BaseURI)
		if err == nil {
			err = report.Write(cfg.Report.Path, cfg.Report.Format)
		}
		if err != nil {
			log.Error("failed to write report", zap.Error(err))
			code = 1
		} else {
			log.Info("report written", zap.String("path", cfg.Report.Path))
		}
	}

	if cfg.Metrics.TextfilePath != "" {
		if err := collector.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
			log.Error("failed to write metrics", zap.Error(err))
			code = 1
		}
	}

	return code
}

// startLocal serves a fake users API on a loopback port.
func startLocal(apiKey string, log *zap.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("listen: %w", err)
	}

	srv := &http.Server{
		Handler:           fakeapi.New(apiKey, fakeapi.WithLogger(log)).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("local api stopped", zap.Error(err))
		}
	}()

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("shutdown error", zap.Error(err))
		}
	}
	return "http://" + ln.Addr().String() + "/api", shutdown, nil
}

func printSummary(out io.Writer, res *journey.Result) {
	fmt.Fprintf(out, "\n%s\n", res.Scenario)
	if res.SetupErr != nil {
		fmt.Fprintf(out, "  SETUP FAILED: %v\n", res.SetupErr)
	}
	for i, s := range res.Steps {
		switch s.Outcome {
		case journey.OutcomeFailed:
			fmt.Fprintf(out, "  [%d/%d] FAIL %s: %v\n", i+1, len(res.Steps), s.Name, s.Err)
		case journey.OutcomeSkipped:
			fmt.Fprintf(out, "  [%d/%d] SKIP %s (%s)\n", i+1, len(res.Steps), s.Name, s.SkipReason)
		default:
			fmt.Fprintf(out, "  [%d/%d] PASS %s (%s)\n", i+1, len(res.Steps), s.Name, s.Duration.Round(time.Millisecond))
		}
	}
	fmt.Fprintf(out, "\n%d passed, %d failed, %d skipped\n",
		res.Count(journey.OutcomePassed), res.Count(journey.OutcomeFailed), res.Count(journey.OutcomeSkipped))
}
