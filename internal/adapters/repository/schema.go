package repository

import (
	"context"
	"fmt"
)

// Migrate creates the tables and indexes when they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS wrestlers (
			nr BIGINT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			promotion_id BIGINT
		)`,

		`CREATE TABLE IF NOT EXISTS matches (
			id BIGINT PRIMARY KEY,
			date TEXT NOT NULL,
			event_id BIGINT NOT NULL DEFAULT 0,
			event_name TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT '',
			type_desc TEXT NOT NULL DEFAULT '',
			resolution TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_date_id ON matches(date, id)`,

		`CREATE TABLE IF NOT EXISTS match_wrestlers (
			match_id BIGINT NOT NULL,
			wrestler_id BIGINT NOT NULL,
			resolution INTEGER NOT NULL,
			gimmick_id BIGINT,
			PRIMARY KEY (match_id, wrestler_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_match_wrestlers_wrestler ON match_wrestlers(wrestler_id)`,

		`CREATE TABLE IF NOT EXISTS match_titles (
			match_id BIGINT NOT NULL,
			title_id BIGINT NOT NULL,
			changed BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (match_id, title_id)
		)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS scores (
			id %s,
			match_id BIGINT NOT NULL,
			wrestler_nr BIGINT NOT NULL,
			score BIGINT NOT NULL
		)`, serial),
		`CREATE INDEX IF NOT EXISTS idx_scores_wrestler_id ON scores(wrestler_nr, id)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_match ON scores(match_id)`,
	}

	for i, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	s.logger.Info(ctx, "schema ready", s.driverField())
	return nil
}
