package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iconidentify/clipbatch/internal/domain"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS outcomes (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL,
		batch_id TEXT NOT NULL,
		url TEXT NOT NULL,
		idx INTEGER NOT NULL,
		platform TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		files TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_session ON outcomes(session_id);

	CREATE TABLE IF NOT EXISTS links (
		session_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		PRIMARY KEY (session_id, position)
	);
`

// SQLiteStore implements Store on a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer at a time; concurrent inserts queue on the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// InsertOutcome appends one outcome to its session's history.
func (s *SQLiteStore) InsertOutcome(ctx context.Context, o domain.Outcome) error {
	files, err := json.Marshal(o.Files)
	if err != nil {
		return fmt.Errorf("encode files: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO outcomes (id, session_id, batch_id, url, idx, platform, status, error, files, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID.String(), o.SessionID.String(), o.BatchID.String(), o.URL, o.Index,
		string(o.Platform), string(o.Status), o.Error, string(files), o.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// ListOutcomes returns a session's history in insertion order.
func (s *SQLiteStore) ListOutcomes(ctx context.Context, session domain.SessionID) ([]domain.Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, url, idx, platform, status, error, files, created_at
		FROM outcomes WHERE session_id = ? ORDER BY seq`, session.String())
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	result := []domain.Outcome{}
	for rows.Next() {
		var (
			o         domain.Outcome
			id, batch string
			platform  string
			status    string
			errMsg    sql.NullString
			files     sql.NullString
			created   int64
		)
		if err := rows.Scan(&id, &batch, &o.URL, &o.Index, &platform, &status, &errMsg, &files, &created); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.ID = domain.OutcomeID(id)
		o.SessionID = session
		o.BatchID = domain.BatchID(batch)
		o.Platform = domain.Platform(platform)
		o.Status = domain.OutcomeStatus(status)
		o.Error = errMsg.String
		o.CreatedAt = time.Unix(0, created)
		if files.Valid && files.String != "" {
			if err := json.Unmarshal([]byte(files.String), &o.Files); err != nil {
				return nil, fmt.Errorf("decode files: %w", err)
			}
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}

	return result, nil
}

// ClearOutcomes deletes a session's history.
func (s *SQLiteStore) ClearOutcomes(ctx context.Context, session domain.SessionID) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM outcomes WHERE session_id = ?", session.String()); err != nil {
		return fmt.Errorf("clear outcomes: %w", err)
	}
	return nil
}

// ReplaceLinks swaps a session's link set in one transaction.
func (s *SQLiteStore) ReplaceLinks(ctx context.Context, session domain.SessionID, links []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM links WHERE session_id = ?", session.String()); err != nil {
		return fmt.Errorf("delete links: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO links (session_id, position, url) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, link := range links {
		if _, err := stmt.ExecContext(ctx, session.String(), i, link); err != nil {
			return fmt.Errorf("insert link: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit links: %w", err)
	}
	return nil
}

// ListLinks returns a session's link set in upload order.
func (s *SQLiteStore) ListLinks(ctx context.Context, session domain.SessionID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT url FROM links WHERE session_id = ? ORDER BY position", session.String())
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	links := []string{}
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, url)
	}
	return links, rows.Err()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
