package history

import (
	"context"
	"database/sql"
	stderrors "errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"

	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/history/migrations"
	"github.com/arthur-debert/appsweep/pkg/logging"
	"github.com/arthur-debert/appsweep/pkg/types"
)

// Outcome is how an apply ended.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	// OutcomeHandedOff marks Sparkle updates passed to the app's own updater
	OutcomeHandedOff Outcome = "handed_off"
)

// Entry is one applied update.
type Entry struct {
	ID          string
	AppID       string
	Name        string
	Source      types.Source
	FromVersion string
	ToVersion   string
	Outcome     Outcome
	Message     string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Duration is how long the apply ran.
func (e Entry) Duration() time.Duration { return e.FinishedAt.Sub(e.StartedAt) }

// Scan summarizes one completed scan.
type Scan struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Apps      int
	Counts    map[types.Source]int
}

// Store is the SQLite-backed history.
type Store struct {
	db     *sql.DB
	path   string
	now    func() time.Time
	logger zerolog.Logger
}

// Open opens (creating if needed) the database at path and migrates it.
// path may be ":memory:".
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", filepath.Dir(path))
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrStoreOpen, "cannot open history at %s", path)
	}
	// one connection keeps ":memory:" databases alive across queries
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, errors.ErrStoreOpen, "cannot configure history at %s", path)
	}

	s, err := FromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.path = path
	return s, nil
}

// FromDB migrates and wraps an open connection. The store owns db after
// a successful call.
func FromDB(db *sql.DB) (*Store, error) {
	if err := migrations.MigrateUp(db); err != nil {
		return nil, errors.Wrap(err, errors.ErrStoreMigrate, "cannot migrate history")
	}
	return &Store{db: db, now: time.Now, logger: logging.GetLogger("history")}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path is the database file, empty for wrapped connections.
func (s *Store) Path() string { return s.path }

// Record appends an applied update. Missing ids and times are filled in.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.AppID == "" {
		return e, errors.New(errors.ErrInvalidInput, "history entry needs an app id")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.FinishedAt.IsZero() {
		e.FinishedAt = s.now()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = e.FinishedAt
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeSucceeded
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO updates (id, app_id, name, source, from_version, to_version, outcome, message, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AppID, e.Name, string(e.Source), e.FromVersion, e.ToVersion,
		string(e.Outcome), e.Message, e.StartedAt.UnixMilli(), e.FinishedAt.UnixMilli())
	if err != nil {
		return e, errors.Wrapf(err, errors.ErrStoreQuery, "cannot record update of %s", e.AppID)
	}

	s.logger.Debug().
		Str("app", e.AppID).
		Str("source", string(e.Source)).
		Str("outcome", string(e.Outcome)).
		Msg("Recorded update")
	return e, nil
}

// Recent returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.queryEntries(ctx, `
		SELECT id, app_id, name, source, from_version, to_version, outcome, message, started_at, finished_at
		FROM updates ORDER BY finished_at DESC, rowid DESC LIMIT ?`, sqlLimit(limit))
}

// ForApp returns the entries of one app, newest first.
func (s *Store) ForApp(ctx context.Context, appID string, limit int) ([]Entry, error) {
	return s.queryEntries(ctx, `
		SELECT id, app_id, name, source, from_version, to_version, outcome, message, started_at, finished_at
		FROM updates WHERE app_id = ? ORDER BY finished_at DESC, rowid DESC LIMIT ?`, appID, sqlLimit(limit))
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrStoreQuery, "cannot read history")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                 Entry
			source, outcome   string
			started, finished int64
		)
		if err := rows.Scan(&e.ID, &e.AppID, &e.Name, &source, &e.FromVersion, &e.ToVersion,
			&outcome, &e.Message, &started, &finished); err != nil {
			return nil, errors.Wrap(err, errors.ErrStoreQuery, "cannot decode history row")
		}
		e.Source = types.Source(source)
		e.Outcome = Outcome(outcome)
		e.StartedAt = time.UnixMilli(started)
		e.FinishedAt = time.UnixMilli(finished)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrStoreQuery, "cannot read history")
	}
	return out, nil
}

// RecordScan appends a scan summary built from the deduplicated result.
func (s *Store) RecordScan(ctx context.Context, started time.Time, apps int, result map[types.Source][]types.UpdateableApp) (Scan, error) {
	sc := Scan{
		ID:        uuid.NewString(),
		StartedAt: started,
		Duration:  s.now().Sub(started),
		Apps:      apps,
		Counts:    make(map[types.Source]int, len(types.Sources)),
	}
	for _, src := range types.Sources {
		sc.Counts[src] = len(result[src])
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scans (id, started_at, duration_ms, apps, homebrew, appstore, sparkle)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.StartedAt.UnixMilli(), sc.Duration.Milliseconds(), sc.Apps,
		sc.Counts[types.SourceHomebrew], sc.Counts[types.SourceAppStore], sc.Counts[types.SourceSparkle])
	if err != nil {
		return sc, errors.Wrap(err, errors.ErrStoreQuery, "cannot record scan")
	}
	return sc, nil
}

// LastScan returns the most recent scan, or ErrNotFound before the first.
func (s *Store) LastScan(ctx context.Context) (Scan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, duration_ms, apps, homebrew, appstore, sparkle
		FROM scans ORDER BY started_at DESC, rowid DESC LIMIT 1`)

	var (
		sc                          Scan
		started, ms                 int64
		homebrew, appstore, sparkle int
	)
	if err := row.Scan(&sc.ID, &started, &ms, &sc.Apps, &homebrew, &appstore, &sparkle); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return Scan{}, errors.New(errors.ErrNotFound, "no scan recorded yet")
		}
		return Scan{}, errors.Wrap(err, errors.ErrStoreQuery, "cannot read last scan")
	}
	sc.StartedAt = time.UnixMilli(started)
	sc.Duration = time.Duration(ms) * time.Millisecond
	sc.Counts = map[types.Source]int{
		types.SourceHomebrew: homebrew,
		types.SourceAppStore: appstore,
		types.SourceSparkle:  sparkle,
	}
	return sc, nil
}

// SchemaStatus reports the database schema against the embedded one.
func (s *Store) SchemaStatus() (current, latest uint, dirty bool, err error) {
	return migrations.Status(s.db)
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
