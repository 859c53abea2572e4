package smoketest

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/kayfabe/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging logs to stdout and to logFile. If logFile is empty, a
// timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	if logFile == "" {
		logFile = "smoke_" + time.Now().Format("20060102_150405") + ".log"
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return file, nil
}

// ShowHelp prints usage information for the smoke tool.
func ShowHelp() {
	os.Stdout.WriteString(`Kayfabe Smoke Test
==================

Triggers a replay on a running service, waits for it to finish and
cross-checks /leaderboard, /rank and /cheater for one window.

Usage:
  go run ./cmd/smoke [options]

Options:
  -url string        Base URL of the service (default "http://localhost:9080")
  -top int           Leaderboard entries to cross-check (default 50)
  -workers int       Concurrent rank lookups (default CPU cores * 2)
  -to string         Window end date YYYY-MM-DD (default today)
  -months int        Window length in months (default: server setting)
  -rebuild           Request a full rebuild instead of an incremental replay
  -timeout duration  HTTP request timeout (default 30s)
  -wait duration     Maximum wait for the replay (default 2m)
  -report string     Write the JSON report to this file
  -log string        Log file (default: smoke_TIMESTAMP.log)
  -verbose           Enable verbose logging
  -help              Show this help message

Examples:
  go run ./cmd/smoke -to 2024-03-31 -months 3
  go run ./cmd/smoke -rebuild -top 200 -report out/smoke.json
`)
}
