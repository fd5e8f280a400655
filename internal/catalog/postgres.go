package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/VenkatGGG/tiercoord/internal/tier"
)

type Postgres struct {
	pool *pgxpool.Pool
}

const tierColumns = `name, pool_name, reserved_bytes, consistency, created_at, updated_at`

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	cat := &Postgres{pool: pool}
	if err := cat.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return cat, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) initSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tiers (
	name TEXT PRIMARY KEY,
	pool_name TEXT NOT NULL,
	reserved_bytes BIGINT NOT NULL,
	consistency TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("init tiers schema: %w", err)
	}
	return nil
}

func (p *Postgres) SaveTier(ctx context.Context, record tier.Record) error {
	name := strings.TrimSpace(record.Name)
	if name == "" {
		return errors.New("tier name is required")
	}

	now := record.UpdatedAt.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	_, err := p.pool.Exec(ctx, `
INSERT INTO tiers (name, pool_name, reserved_bytes, consistency, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (name) DO UPDATE SET
	pool_name = EXCLUDED.pool_name,
	reserved_bytes = EXCLUDED.reserved_bytes,
	consistency = EXCLUDED.consistency,
	updated_at = EXCLUDED.updated_at`,
		name, record.PoolName, record.ReservedBytes, string(record.Consistency), record.CreatedAt.UTC(), now)
	if err != nil {
		return fmt.Errorf("save tier: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteTier(ctx context.Context, name string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM tiers WHERE name = $1`, strings.TrimSpace(name))
	if err != nil {
		return fmt.Errorf("delete tier: %w", err)
	}
	return nil
}

func (p *Postgres) ListTiers(ctx context.Context) ([]tier.Record, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+tierColumns+` FROM tiers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	defer rows.Close()

	records := make([]tier.Record, 0)
	for rows.Next() {
		record, err := scanTier(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tiers rows: %w", err)
	}
	return records, nil
}

func scanTier(row pgx.Row) (tier.Record, error) {
	var record tier.Record
	var consistency string
	if err := row.Scan(
		&record.Name,
		&record.PoolName,
		&record.ReservedBytes,
		&consistency,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return tier.Record{}, fmt.Errorf("scan tier: %w", err)
	}

	level, err := tier.ParseConsistency(consistency)
	if err != nil {
		return tier.Record{}, fmt.Errorf("scan tier consistency: %w", err)
	}
	record.Consistency = level
	record.State = tier.StateCreated
	return record, nil
}
