package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/kayfabe/internal/smoketest"
)

// Default configuration constants.
const (
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL = flag.String("url", smoketest.DefaultBaseURL, "Base URL of the service")
		topN    = flag.Int("top", smoketest.DefaultTopN, "Leaderboard entries to cross-check")
		workers = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Concurrent rank lookups")
		to      = flag.String("to", "", "Window end date YYYY-MM-DD (default today)")
		months  = flag.Int("months", 0, "Window length in months (default: server setting)")
		rebuild = flag.Bool("rebuild", false, "Request a full rebuild")
		timeout = flag.Duration("timeout", smoketest.DefaultTimeout, "HTTP request timeout")
		wait    = flag.Duration("wait", smoketest.DefaultMaxWait, "Maximum wait for the replay")
		report  = flag.String("report", "", "Write the JSON report to this file")
		logFile = flag.String("log", "", "Log file (default: smoke_TIMESTAMP.log)")
		verbose = flag.Bool("verbose", false, "Enable verbose logging")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		smoketest.ShowHelp()
		return
	}

	cfg := &smoketest.Config{
		BaseURL:    *baseURL,
		TopN:       *topN,
		Workers:    *workers,
		Timeout:    *timeout,
		MaxWait:    *wait,
		To:         *to,
		Months:     *months,
		Rebuild:    *rebuild,
		ReportFile: *report,
		Verbose:    *verbose,
	}
	if err := run(cfg, *logFile); err != nil {
		os.Stderr.WriteString("Smoke test failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(cfg *smoketest.Config, logFile string) error {
	closer, err := smoketest.SetupLogging(logFile, cfg.Verbose)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	_, err = smoketest.Run(ctx, cfg)
	return err
}
