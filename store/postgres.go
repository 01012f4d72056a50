package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/engine"
)

// PostgresStore implements engine.RecordStore on PostgreSQL. The record body is stored as
// JSONB next to the key, status and version columns.
type PostgresStore struct {
	db *pgxpool.Pool
}

var _ engine.RecordStore = (*PostgresStore)(nil)

// Connect opens a pool for dsn and runs migrations.
func Connect(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return NewPostgresStore(ctx, pool)
}

// NewPostgresStore wraps an existing pool and runs migrations.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	s := &PostgresStore{db: pool}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS auctions (
		seller     TEXT        NOT NULL,
		nonce      BIGINT      NOT NULL,
		status     TEXT        NOT NULL,
		version    BIGINT      NOT NULL,
		record     JSONB       NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (seller, nonce)
	);

	CREATE INDEX IF NOT EXISTS idx_auctions_status ON auctions(status);

	CREATE TABLE IF NOT EXISTS auction_nonces (
		seller     TEXT   PRIMARY KEY,
		next_nonce BIGINT NOT NULL
	);
	`

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.db.Exec(ctx, schema)
	return err
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.db.Close()
}

func (s *PostgresStore) NextNonce(ctx context.Context, seller core.Address) (uint64, error) {
	var next int64
	err := s.db.QueryRow(ctx, `
	INSERT INTO auction_nonces (seller, next_nonce) VALUES ($1, 1)
	ON CONFLICT (seller) DO UPDATE SET next_nonce = auction_nonces.next_nonce + 1
	RETURNING next_nonce`, string(seller)).Scan(&next)
	if err != nil {
		return 0, err
	}
	return uint64(next - 1), nil
}

func (s *PostgresStore) Insert(ctx context.Context, r *core.AuctionRecord) error {
	stored := r.Clone()
	stored.Version = 1
	body, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode auction %s: %w", r.Key, err)
	}

	tag, err := s.db.Exec(ctx, `
	INSERT INTO auctions (seller, nonce, status, version, record)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (seller, nonce) DO NOTHING`,
		string(r.Key.Seller), int64(r.Key.Nonce), string(stored.Status), int64(stored.Version), body)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", core.ErrAuctionExists, r.Key)
	}
	r.Version = stored.Version
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key core.AuctionKey) (*core.AuctionRecord, error) {
	row := s.db.QueryRow(ctx, `SELECT version, record FROM auctions WHERE seller=$1 AND nonce=$2`,
		string(key.Seller), int64(key.Nonce))
	r, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrAuctionNotFound, key)
	}
	return r, err
}

func (s *PostgresStore) Save(ctx context.Context, r *core.AuctionRecord) error {
	stored := r.Clone()
	stored.Version++
	body, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode auction %s: %w", r.Key, err)
	}

	tag, err := s.db.Exec(ctx, `
	UPDATE auctions SET status=$3, version=$4, record=$5, updated_at=NOW()
	WHERE seller=$1 AND nonce=$2 AND version=$6`,
		string(r.Key.Seller), int64(r.Key.Nonce), string(stored.Status), int64(stored.Version), body, int64(r.Version))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, r.Key); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s, saving version %d", core.ErrConcurrentUpdate, r.Key, r.Version)
	}
	r.Version = stored.Version
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key core.AuctionKey) error {
	_, err := s.db.Exec(ctx, `DELETE FROM auctions WHERE seller=$1 AND nonce=$2`, string(key.Seller), int64(key.Nonce))
	return err
}

func (s *PostgresStore) List(ctx context.Context, seller core.Address) ([]*core.AuctionRecord, error) {
	rows, err := s.db.Query(ctx, `SELECT version, record FROM auctions WHERE seller=$1 ORDER BY nonce ASC`, string(seller))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*core.AuctionRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*core.AuctionRecord, error) {
	var version int64
	var body []byte
	if err := row.Scan(&version, &body); err != nil {
		return nil, err
	}
	var r core.AuctionRecord
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCorruptRecord, err)
	}
	r.Version = uint64(version)
	return &r, nil
}
