// Command seed fills the configured store with a deterministic synthetic
// roster and match log for local runs.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/kayfabe/internal/adapters/repository"
	"github.com/okian/kayfabe/internal/config"
	"github.com/okian/kayfabe/internal/domain/model"
	"github.com/okian/kayfabe/internal/matchgen"
	"github.com/okian/kayfabe/pkg/logger"
)

const progressEvery = 1000

func main() {
	var (
		matches   = flag.Int("matches", 5000, "Number of matches to generate")
		wrestlers = flag.Int("wrestlers", 120, "Roster size")
		perDay    = flag.Int("per-day", 6, "Matches per calendar day")
		seed      = flag.Int64("seed", 42, "Random seed")
		start     = flag.String("start", "2024-01-01", "Date of the first match, YYYY-MM-DD")
	)
	flag.Parse()

	if err := run(*matches, *wrestlers, *perDay, *seed, *start); err != nil {
		os.Stderr.WriteString("seed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(n, wrestlers, perDay int, seed int64, start string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return err
	}
	log := logger.Get().Named("seed")

	day, err := model.ParseDay(start)
	if err != nil {
		return err
	}

	store, err := repository.Open(ctx, cfg.DBDriver, cfg.DBDSN, repository.WithLogger(log))
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	gen := matchgen.New(
		matchgen.WithSeed(seed),
		matchgen.WithWrestlers(wrestlers),
		matchgen.WithMatchesPerDay(perDay),
		matchgen.WithStart(day),
	)
	began := time.Now()
	for _, w := range gen.Wrestlers() {
		if err := store.SaveWrestler(ctx, w); err != nil {
			return err
		}
	}
	all := gen.Matches(n)
	for i := range all {
		if err := store.SaveMatch(ctx, &all[i]); err != nil {
			return err
		}
		if (i+1)%progressEvery == 0 {
			log.Info(ctx, "seeding", logger.Int("saved", i+1), logger.Int("total", n))
		}
	}

	undecided, mass := matchgen.Shapes(all, cfg.MassEliminationLosers)
	log.Info(ctx, "seed complete",
		logger.String("driver", cfg.DBDriver),
		logger.Int("wrestlers", len(gen.Wrestlers())),
		logger.Int("matches", len(all)),
		logger.Int("undecided", undecided),
		logger.Int("mass_eliminations", mass),
		logger.Duration("took", time.Since(began)))
	return nil
}
