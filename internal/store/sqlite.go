package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/olegrjumin/cookieguard/internal/consent"
)

// SQLite stores evaluations as JSON documents in a single file
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and migrates it
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db, goose.DialectSQLite3, "sqlite"); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Create(ctx context.Context, ev *consent.Evaluation) error {
	doc, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode evaluation: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO evaluations (id, domain, scan_timestamp, overall_rating, document)
		VALUES (?, ?, ?, ?, ?)
	`, ev.ID, ev.Domain, ev.ScanTimestamp.UnixNano(), string(ev.OverallRating), string(doc))
	return err
}

func (s *SQLite) Latest(ctx context.Context, domain string) (*consent.Evaluation, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `
		SELECT document FROM evaluations
		WHERE domain = ?
		ORDER BY scan_timestamp DESC
		LIMIT 1
	`, domain).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var ev consent.Evaluation
	if err := json.Unmarshal([]byte(doc), &ev); err != nil {
		return nil, fmt.Errorf("decode evaluation: %w", err)
	}
	return &ev, nil
}

func (s *SQLite) History(ctx context.Context, domain string, limit int) ([]consent.Evaluation, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT document FROM evaluations
		WHERE domain = ?
		ORDER BY scan_timestamp DESC
		LIMIT ?
	`, domain, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]consent.Evaluation, 0)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var ev consent.Evaluation
		if err := json.Unmarshal([]byte(doc), &ev); err != nil {
			return nil, fmt.Errorf("decode evaluation: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLite) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM evaluations WHERE scan_timestamp < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
