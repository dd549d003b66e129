package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/shennong/internal/draft"
	"github.com/me/shennong/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// One connection: the workspace has a single writer, and an in-memory
	// database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Draft ---

// GetDraft returns the saved draft, or nil if none has been saved.
func (s *SQLiteStore) GetDraft(ctx context.Context) (*draft.Draft, error) {
	s.logger.Debug("sql", "op", "select", "table", "drafts")

	var d draft.Draft
	var analysesJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT email, channel, res, analyses FROM drafts WHERE id = 1`,
	).Scan(&d.Email, &d.Channel, &d.Res, &analysesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(analysesJSON), &d.Analyses); err != nil {
		return nil, fmt.Errorf("unmarshal analyses: %w", err)
	}
	if d.Analyses == nil {
		d.Analyses = map[string]model.AnalysisSelection{}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT remote_key, name, size FROM draft_files ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	d.Files = []model.UploadRef{}
	for rows.Next() {
		var f model.UploadRef
		if err := rows.Scan(&f.RemoteKey, &f.Name, &f.Size); err != nil {
			return nil, err
		}
		d.Files = append(d.Files, f)
	}
	return &d, rows.Err()
}

// SaveDraft replaces the saved draft.
func (s *SQLiteStore) SaveDraft(ctx context.Context, d draft.Draft) error {
	s.logger.Debug("sql", "op", "upsert", "table", "drafts", "files", len(d.Files))

	analyses := d.Analyses
	if analyses == nil {
		analyses = map[string]model.AnalysisSelection{}
	}
	analysesJSON, err := json.Marshal(analyses)
	if err != nil {
		return fmt.Errorf("marshal analyses: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO drafts (id, email, channel, res, analyses, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   email = excluded.email, channel = excluded.channel, res = excluded.res,
		   analyses = excluded.analyses, updated_at = excluded.updated_at`,
		d.Email, d.Channel, d.Res, string(analysesJSON), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM draft_files`); err != nil {
		return err
	}
	for i, f := range d.Files {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO draft_files (remote_key, name, size, position) VALUES (?, ?, ?, ?)`,
			f.RemoteKey, f.Name, f.Size, i,
		)
		if err != nil {
			return fmt.Errorf("insert file %s: %w", f.RemoteKey, err)
		}
	}

	return tx.Commit()
}

// --- Failed uploads ---

// ListFailures returns failed uploads in the order they were recorded.
func (s *SQLiteStore) ListFailures(ctx context.Context) ([]model.FailedUpload, error) {
	s.logger.Debug("sql", "op", "select", "table", "upload_failures")

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, path, size, reason, error, created_at FROM upload_failures ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FailedUpload
	for rows.Next() {
		var f model.FailedUpload
		var reason, createdAt string
		if err := rows.Scan(&f.Name, &f.Path, &f.Size, &reason, &f.Error, &createdAt); err != nil {
			return nil, err
		}
		f.Reason = model.FailureReason(reason)
		f.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

// ReplaceFailures stores failures as the complete list of failed uploads.
func (s *SQLiteStore) ReplaceFailures(ctx context.Context, failures []model.FailedUpload) error {
	s.logger.Debug("sql", "op", "replace", "table", "upload_failures", "count", len(failures))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM upload_failures`); err != nil {
		return err
	}
	now := time.Now().UTC()
	for i, f := range failures {
		created := f.CreatedAt
		if created.IsZero() {
			created = now
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO upload_failures (name, path, size, reason, error, position, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			f.Name, f.Path, f.Size, string(f.Reason), f.Error, i, created.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert failure %s: %w", f.Name, err)
		}
	}
	return tx.Commit()
}

// DeleteFailure removes one failed upload. It reports whether it existed.
func (s *SQLiteStore) DeleteFailure(ctx context.Context, name string) (bool, error) {
	s.logger.Debug("sql", "op", "delete", "table", "upload_failures", "name", name)

	res, err := s.db.ExecContext(ctx, `DELETE FROM upload_failures WHERE name = ?`, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// --- Schema cache ---

// GetSchema returns the cached processor schema and when it was fetched.
// body is nil when nothing is cached.
func (s *SQLiteStore) GetSchema(ctx context.Context) ([]byte, time.Time, error) {
	s.logger.Debug("sql", "op", "select", "table", "schema_cache")

	var body, fetchedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT body, fetched_at FROM schema_cache WHERE id = 1`,
	).Scan(&body, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parse fetched_at: %w", err)
	}
	return []byte(body), t, nil
}

// SaveSchema caches body as the current processor schema.
func (s *SQLiteStore) SaveSchema(ctx context.Context, body []byte) error {
	s.logger.Debug("sql", "op", "upsert", "table", "schema_cache", "bytes", len(body))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schema_cache (id, body, fetched_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at`,
		string(body), time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}
