// Command replay runs the rating engine once against the configured store
// and prints the run report as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/kayfabe/internal/adapters/repository"
	service "github.com/okian/kayfabe/internal/app"
	"github.com/okian/kayfabe/internal/config"
	"github.com/okian/kayfabe/internal/domain/rating"
	"github.com/okian/kayfabe/pkg/logger"
)

func main() {
	rebuild := flag.Bool("rebuild", false, "Delete every score and replay the whole match log")
	flag.Parse()

	if err := run(*rebuild); err != nil {
		os.Stderr.WriteString("replay: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(rebuild bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	// Logs go to stderr so stdout carries only the report.
	if err := logger.Init(logger.WithOutput(os.Stderr), logger.WithFormat(cfg.LogFormat)); err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}
	log := logger.Get().Named("replay")

	store, err := repository.Open(ctx, cfg.DBDriver, cfg.DBDSN, repository.WithLogger(log))
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	engine := rating.NewEngine(store,
		rating.WithParams(service.Params(cfg)),
		rating.WithCommitEvery(cfg.CommitEvery),
		rating.WithLogger(log),
	)
	var report rating.Report
	if rebuild {
		report, err = engine.Rebuild(ctx)
	} else {
		report, err = engine.Run(ctx)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
