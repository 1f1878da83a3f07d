package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/olegrjumin/cookieguard/internal/consent"
)

// Postgres stores evaluations as JSONB documents
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, pings and migrates
func OpenPostgres(ctx context.Context, url string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	db := stdlib.OpenDBFromPool(pool)
	err = migrate(ctx, db, goose.DialectPostgres, "postgres")
	db.Close()
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Create(ctx context.Context, ev *consent.Evaluation) error {
	doc, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode evaluation: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO evaluations (id, domain, scan_timestamp, overall_rating, document)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.ID, ev.Domain, ev.ScanTimestamp, string(ev.OverallRating), doc)
	return err
}

func (p *Postgres) Latest(ctx context.Context, domain string) (*consent.Evaluation, error) {
	var doc []byte
	err := p.pool.QueryRow(ctx, `
		SELECT document FROM evaluations
		WHERE domain = $1
		ORDER BY scan_timestamp DESC
		LIMIT 1
	`, domain).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var ev consent.Evaluation
	if err := json.Unmarshal(doc, &ev); err != nil {
		return nil, fmt.Errorf("decode evaluation: %w", err)
	}
	return &ev, nil
}

func (p *Postgres) History(ctx context.Context, domain string, limit int) ([]consent.Evaluation, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := p.pool.Query(ctx, `
		SELECT document FROM evaluations
		WHERE domain = $1
		ORDER BY scan_timestamp DESC
		LIMIT $2
	`, domain, lim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]consent.Evaluation, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var ev consent.Evaluation
		if err := json.Unmarshal(doc, &ev); err != nil {
			return nil, fmt.Errorf("decode evaluation: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (p *Postgres) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM evaluations WHERE scan_timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
