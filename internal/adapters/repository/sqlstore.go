package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/okian/kayfabe/internal/domain/model"
	"github.com/okian/kayfabe/pkg/logger"
	"github.com/okian/kayfabe/pkg/metrics"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const defaultMaxOpenConns = 10

func init() { //nolint:gochecknoinits // sqlx has no built-in bind type for the modernc driver name
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// SQLStore implements the rating store and the ranking source on a SQL
// database. Queries are written with ? placeholders and rebound for the
// active driver.
type SQLStore struct {
	db           *sqlx.DB
	driver       string
	maxOpenConns int
	logger       logger.Logger
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	s := &SQLStore{
		driver:       driver,
		maxOpenConns: defaultMaxOpenConns,
		logger:       logger.Get().Named("repository"),
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(s.maxOpenConns)
		db.SetMaxIdleConns(max(s.maxOpenConns/2, 1))
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}
	s.db = db
	return s, nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Ping checks the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Driver returns the active driver name.
func (s *SQLStore) Driver() string { return s.driver }

func (s *SQLStore) driverField() logger.Field {
	return logger.String("driver", s.driver)
}

type matchRow struct {
	ID         int64  `db:"id"`
	Date       sqlDay `db:"date"`
	EventID    int64  `db:"event_id"`
	EventName  string `db:"event_name"`
	Type       string `db:"type"`
	TypeDesc   string `db:"type_desc"`
	Resolution string `db:"resolution"`
}

type participantRow struct {
	MatchID    int64  `db:"match_id"`
	WrestlerID int64  `db:"wrestler_id"`
	Resolution int    `db:"resolution"`
	GimmickID  *int64 `db:"gimmick_id"`
}

type titleRow struct {
	MatchID int64 `db:"match_id"`
	TitleID int64 `db:"title_id"`
	Changed bool  `db:"changed"`
}

type standingRow struct {
	WrestlerID  int64  `db:"wrestler_nr"`
	Name        string `db:"name"`
	PromotionID *int64 `db:"promotion_id"`
	Score       int64  `db:"score"`
}

type endingRow struct {
	MatchID    int64  `db:"match_id"`
	WrestlerID int64  `db:"wrestler_id"`
	Name       string `db:"name"`
	Outcome    int    `db:"outcome"`
	Resolution string `db:"resolution"`
}

type wrestlerRow struct {
	ID          int64  `db:"nr"`
	Name        string `db:"name"`
	PromotionID *int64 `db:"promotion_id"`
}

// SaveWrestler inserts or updates a directory entry.
func (s *SQLStore) SaveWrestler(ctx context.Context, w model.Wrestler) error {
	q := s.db.Rebind(`INSERT INTO wrestlers (nr, name, promotion_id) VALUES (?, ?, ?)
		ON CONFLICT (nr) DO UPDATE SET name = excluded.name, promotion_id = excluded.promotion_id`)
	if _, err := s.db.ExecContext(ctx, q, w.ID, w.Name, w.PromotionID); err != nil {
		return fmt.Errorf("save wrestler %d: %w", w.ID, err)
	}
	return nil
}

// Wrestler returns a directory entry.
func (s *SQLStore) Wrestler(ctx context.Context, id int64) (model.Wrestler, error) {
	var row wrestlerRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT nr, name, promotion_id FROM wrestlers WHERE nr = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Wrestler{}, fmt.Errorf("wrestler %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Wrestler{}, fmt.Errorf("get wrestler %d: %w", id, err)
	}
	return model.Wrestler{ID: row.ID, Name: row.Name, PromotionID: row.PromotionID}, nil
}

type stmt struct {
	query string
	args  []any
}

// SaveMatch writes a match with its participants and titles, replacing
// any previous version of it.
func (s *SQLStore) SaveMatch(ctx context.Context, m *model.Match) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save match %d: %w", m.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []stmt{
		{`INSERT INTO matches (id, date, event_id, event_name, type, type_desc, resolution)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET date = excluded.date, event_id = excluded.event_id,
			event_name = excluded.event_name, type = excluded.type, type_desc = excluded.type_desc,
			resolution = excluded.resolution`,
			[]any{m.ID, sqlDay(model.Day(m.Date)), m.EventID, m.EventName, m.Type, m.TypeDesc, m.Resolution}},
		{`DELETE FROM match_wrestlers WHERE match_id = ?`, []any{m.ID}},
		{`DELETE FROM match_titles WHERE match_id = ?`, []any{m.ID}},
	}
	for _, p := range m.Participants {
		stmts = append(stmts, stmt{`INSERT INTO match_wrestlers (match_id, wrestler_id, resolution, gimmick_id) VALUES (?, ?, ?, ?)`,
			[]any{m.ID, p.WrestlerID, int(p.Outcome), p.GimmickID}})
	}
	for _, t := range m.Titles {
		stmts = append(stmts, stmt{`INSERT INTO match_titles (match_id, title_id, changed) VALUES (?, ?, ?)`,
			[]any{m.ID, t.TitleID, t.Change}})
	}

	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, tx.Rebind(st.query), st.args...); err != nil {
			return fmt.Errorf("save match %d: %w", m.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit match %d: %w", m.ID, err)
	}
	return nil
}

// pendingMatch selects matches with no score observations that have at
// least one winner and one loser. Undecided matches never gain scores.
const pendingMatch = `NOT EXISTS (SELECT 1 FROM scores s WHERE s.match_id = m.id)
		AND EXISTS (SELECT 1 FROM match_wrestlers mw WHERE mw.match_id = m.id AND mw.resolution = 1)
		AND EXISTS (SELECT 1 FROM match_wrestlers mw WHERE mw.match_id = m.id AND mw.resolution = -1)`

// UnscoredMatches returns up to limit decided matches after cursor, in
// (date, id) order, that have no score observations. Participants and
// titles are batch-loaded; winners come first within a match.
func (s *SQLStore) UnscoredMatches(ctx context.Context, after model.Cursor, limit int) ([]model.Match, error) {
	var rows []matchRow
	q := s.db.Rebind(`SELECT m.id, m.date, m.event_id, m.event_name, m.type, m.type_desc, m.resolution
		FROM matches m
		WHERE (m.date > ? OR (m.date = ? AND m.id > ?))
		AND ` + pendingMatch + `
		ORDER BY m.date, m.id
		LIMIT ?`)
	day := sqlDay(after.Date)
	if err := s.db.SelectContext(ctx, &rows, q, day, day, after.ID, limit); err != nil {
		return nil, fmt.Errorf("select unscored matches: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	parts, err := s.participants(ctx, ids)
	if err != nil {
		return nil, err
	}
	titles, err := s.titles(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]model.Match, len(rows))
	for i, r := range rows {
		out[i] = model.Match{
			ID:           r.ID,
			Date:         time.Time(r.Date),
			EventID:      r.EventID,
			EventName:    r.EventName,
			Type:         r.Type,
			TypeDesc:     r.TypeDesc,
			Resolution:   r.Resolution,
			Participants: parts[r.ID],
			Titles:       titles[r.ID],
		}
		out[i].Classify()
	}
	return out, nil
}

func (s *SQLStore) participants(ctx context.Context, matchIDs []int64) (map[int64][]model.Participant, error) {
	q, args, err := sqlx.In(`SELECT match_id, wrestler_id, resolution, gimmick_id FROM match_wrestlers
		WHERE match_id IN (?) ORDER BY match_id, resolution DESC, wrestler_id`, matchIDs)
	if err != nil {
		return nil, fmt.Errorf("build participants query: %w", err)
	}
	var rows []participantRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("select participants: %w", err)
	}
	out := make(map[int64][]model.Participant, len(matchIDs))
	for _, r := range rows {
		out[r.MatchID] = append(out[r.MatchID], model.Participant{
			WrestlerID: r.WrestlerID,
			Outcome:    model.Outcome(r.Resolution),
			GimmickID:  r.GimmickID,
		})
	}
	return out, nil
}

func (s *SQLStore) titles(ctx context.Context, matchIDs []int64) (map[int64][]model.Title, error) {
	q, args, err := sqlx.In(`SELECT match_id, title_id, changed FROM match_titles
		WHERE match_id IN (?) ORDER BY match_id, title_id`, matchIDs)
	if err != nil {
		return nil, fmt.Errorf("build titles query: %w", err)
	}
	var rows []titleRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("select titles: %w", err)
	}
	out := make(map[int64][]model.Title, len(matchIDs))
	for _, r := range rows {
		out[r.MatchID] = append(out[r.MatchID], model.Title{TitleID: r.TitleID, Change: r.Changed})
	}
	return out, nil
}

// LatestScore returns the most recently appended score of a wrestler.
func (s *SQLStore) LatestScore(ctx context.Context, wrestlerID int64) (int64, bool, error) {
	var score int64
	err := s.db.GetContext(ctx, &score,
		s.db.Rebind(`SELECT score FROM scores WHERE wrestler_nr = ? ORDER BY id DESC LIMIT 1`), wrestlerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("latest score of %d: %w", wrestlerID, err)
	}
	return score, true, nil
}

// AppendScores inserts observations in order within one transaction.
func (s *SQLStore) AppendScores(ctx context.Context, obs []model.ScoreObservation) error {
	if len(obs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append scores: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO scores (match_id, wrestler_nr, score) VALUES (?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare append scores: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, o := range obs {
		if _, err := stmt.ExecContext(ctx, o.MatchID, o.WrestlerID, o.Score); err != nil {
			return fmt.Errorf("insert score of %d for match %d: %w", o.WrestlerID, o.MatchID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scores: %w", err)
	}
	return nil
}

// DeleteScores truncates the score log.
func (s *SQLStore) DeleteScores(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scores`); err != nil {
		return fmt.Errorf("delete scores: %w", err)
	}
	s.logger.Warn(ctx, "score log truncated", s.driverField())
	return nil
}

// Scores returns the score log in append order.
func (s *SQLStore) Scores(ctx context.Context) ([]model.ScoreObservation, error) {
	var rows []struct {
		ID         int64 `db:"id"`
		MatchID    int64 `db:"match_id"`
		WrestlerID int64 `db:"wrestler_nr"`
		Score      int64 `db:"score"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, match_id, wrestler_nr, score FROM scores ORDER BY id`); err != nil {
		return nil, fmt.Errorf("select scores: %w", err)
	}
	out := make([]model.ScoreObservation, len(rows))
	for i, r := range rows {
		out[i] = model.ScoreObservation{ID: r.ID, MatchID: r.MatchID, WrestlerID: r.WrestlerID, Score: r.Score}
	}
	return out, nil
}

// LatestScores returns every wrestler's latest observation among matches
// in w, ordered by score descending. Rows with equal scores come back by
// wrestler id; callers must not rely on that order.
func (s *SQLStore) LatestScores(ctx context.Context, w model.Window, limit int) ([]model.Standing, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankingQueryLatency("sql_latest_scores", float64(time.Since(start).Milliseconds()))
	}()

	q := s.db.Rebind(`SELECT s.wrestler_nr, COALESCE(w.name, '') AS name, w.promotion_id, s.score
		FROM scores s
		JOIN (
			SELECT s2.wrestler_nr, MAX(s2.id) AS id
			FROM scores s2
			JOIN matches m ON m.id = s2.match_id
			WHERE m.date >= ? AND m.date <= ?
			GROUP BY s2.wrestler_nr
		) latest ON latest.id = s.id
		LEFT JOIN wrestlers w ON w.nr = s.wrestler_nr
		ORDER BY s.score DESC, s.wrestler_nr ASC
		LIMIT ?`)

	var rows []standingRow
	if err := s.db.SelectContext(ctx, &rows, q, sqlDay(w.From), sqlDay(w.To), limit); err != nil {
		return nil, fmt.Errorf("select latest scores %s: %w", w, err)
	}
	out := make([]model.Standing, len(rows))
	for i, r := range rows {
		out[i] = model.Standing{WrestlerID: r.WrestlerID, Name: r.Name, PromotionID: r.PromotionID, Score: r.Score}
	}
	return out, nil
}

// MatchEndings returns every appearance of a known wrestler in a match
// inside w.
func (s *SQLStore) MatchEndings(ctx context.Context, w model.Window) ([]model.EndingRow, error) {
	q := s.db.Rebind(`SELECT mw.match_id, mw.wrestler_id, w.name, mw.resolution AS outcome, m.resolution
		FROM match_wrestlers mw
		JOIN matches m ON m.id = mw.match_id
		JOIN wrestlers w ON w.nr = mw.wrestler_id
		WHERE m.date >= ? AND m.date <= ?
		ORDER BY m.date, m.id, mw.wrestler_id`)

	var rows []endingRow
	if err := s.db.SelectContext(ctx, &rows, q, sqlDay(w.From), sqlDay(w.To)); err != nil {
		return nil, fmt.Errorf("select match endings %s: %w", w, err)
	}
	out := make([]model.EndingRow, len(rows))
	for i, r := range rows {
		out[i] = model.EndingRow{
			MatchID:    r.MatchID,
			WrestlerID: r.WrestlerID,
			Name:       r.Name,
			Outcome:    model.Outcome(r.Outcome),
			Resolution: r.Resolution,
		}
	}
	return out, nil
}

// Stats summarizes table sizes.
type Stats struct {
	Wrestlers       int64     `db:"wrestlers" json:"wrestlers"`
	Matches         int64     `db:"matches" json:"matches"`
	UnscoredMatches int64     `db:"unscored" json:"unscored_matches"`
	Scores          int64     `db:"scores" json:"scores"`
	LastMatch       time.Time `db:"-" json:"last_match"`
}

// Stats counts rows of the main tables.
func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.GetContext(ctx, &st, `SELECT
		(SELECT COUNT(*) FROM wrestlers) AS wrestlers,
		(SELECT COUNT(*) FROM matches) AS matches,
		(SELECT COUNT(*) FROM matches m WHERE ` + pendingMatch + `) AS unscored,
		(SELECT COUNT(*) FROM scores) AS scores`)
	if err != nil {
		return Stats{}, fmt.Errorf("select stats: %w", err)
	}

	var last sqlDay
	if err := s.db.GetContext(ctx, &last, `SELECT COALESCE(MAX(date), '') FROM matches`); err != nil {
		return Stats{}, fmt.Errorf("select last match date: %w", err)
	}
	st.LastMatch = time.Time(last)
	return st, nil
}
