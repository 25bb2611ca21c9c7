package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/AnTengye/contractlens/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Each record is kept
// as a JSON document next to the columns used for lookups.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens a SQLite database at dsn and configures WAL mode.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id         TEXT PRIMARY KEY,
	tenant     TEXT NOT NULL,
	status     TEXT NOT NULL,
	record     TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_tenant ON analyses(tenant, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, rec *model.AnalysisRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal record")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, tenant, status, record, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, record = excluded.record, updated_at = excluded.updated_at`,
		rec.ID, rec.Tenant, string(rec.Status), string(data), rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save analysis %s", rec.ID)
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT record FROM analyses WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get analysis %s", id)
	}
	return rec, nil
}

// GetByTenant returns the tenant's records, newest first.
func (s *SQLiteStore) GetByTenant(ctx context.Context, tenant string) ([]*model.AnalysisRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM analyses WHERE tenant = ? ORDER BY created_at DESC, id ASC`, tenant)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close()

	var out []*model.AnalysisRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan analysis")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate analyses")
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = ?`, id)
	return eris.Wrapf(err, "sqlite: delete analysis %s", id)
}

// FailInterrupted moves every pending or processing record to the error
// state. Nothing survives a restart to finish them, so it runs when the store
// is opened. It returns how many records were changed.
func (s *SQLiteStore) FailInterrupted(ctx context.Context, now time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `SELECT record FROM analyses WHERE status IN (?, ?)`,
		string(model.StatusPending), string(model.StatusProcessing))
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: list interrupted analyses")
	}
	var stranded []*model.AnalysisRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return 0, eris.Wrap(err, "sqlite: scan analysis")
		}
		stranded = append(stranded, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, eris.Wrap(err, "sqlite: iterate analyses")
	}

	reason := model.InterruptedError()
	for _, rec := range stranded {
		rec.Status = model.StatusError
		rec.ErrorKind = reason.Kind
		rec.ErrorMsg = reason.Message
		rec.Result = nil
		rec.UpdatedAt = now.UTC()
		data, err := json.Marshal(rec)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal record")
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE analyses SET status = ?, record = ?, updated_at = ? WHERE id = ?`,
			string(rec.Status), string(data), rec.UpdatedAt, rec.ID,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: fail analysis %s", rec.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}
	return len(stranded), nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count analyses")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*model.AnalysisRecord, error) {
	var data string
	if err := row.Scan(&data); err != nil {
		return nil, err
	}
	var rec model.AnalysisRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, eris.Wrap(err, "unmarshal record")
	}
	return &rec, nil
}
