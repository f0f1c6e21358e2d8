// Package progress persists synced query results to PostgreSQL over a pgx
// connection pool. Every saved response writes its rows and the new block
// height in one transaction, so a restart resumes exactly after the last
// committed block.
package progress

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"indexsupply/cli/pkg/indexsupply"
)

const schema = `
CREATE TABLE IF NOT EXISTS indexsupply_progress (
	query_id   text PRIMARY KEY,
	chain      int8 NOT NULL,
	query      text NOT NULL,
	block_num  int8 NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS indexsupply_rows (
	query_id  text NOT NULL,
	chain     int8 NOT NULL,
	block_num int8 NOT NULL,
	data      jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS indexsupply_rows_query_block ON indexsupply_rows (query_id, block_num);
`

// Key identifies one synced query.
type Key struct {
	Chain           uint64
	Query           string
	EventSignatures []string
}

// ID returns a stable identifier for k: the hex SHA-256 of its fields,
// truncated to 32 characters.
func (k Key) ID() string {
	h := sha256.New()
	h.Write([]byte(strconv.FormatUint(k.Chain, 10)))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(k.Query)))
	for _, s := range k.EventSignatures {
		h.Write([]byte{0})
		h.Write([]byte(strings.TrimSpace(s)))
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Open creates a pool for dsn and checks that the server answers.
func Open(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Store saves one query's progress.
type Store struct {
	// Pool is the PostgreSQL connection pool
	Pool  *pgxpool.Pool
	key   Key
	id    string
	start uint64
}

// New returns a Store for key. start is the block to begin from when nothing
// has been saved yet.
func New(pool *pgxpool.Pool, key Key, start uint64) *Store {
	return &Store{Pool: pool, key: key, id: key.ID(), start: start}
}

// ID returns the query identifier rows are stored under.
func (s *Store) ID() string { return s.id }

// Migrate creates the tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.Pool)
}

// Migrate creates the progress tables in pool's database.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}

// Next returns the block height to resume from: one past the last saved
// block, or the configured start.
func (s *Store) Next(ctx context.Context) (uint64, error) {
	var block int64
	err := s.Pool.QueryRow(ctx,
		`SELECT block_num FROM indexsupply_progress WHERE query_id = $1`, s.id,
	).Scan(&block)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.start, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load progress: %w", err)
	}
	return max(uint64(block)+1, s.start), nil
}

// Save writes rows and advances the saved block height in one transaction.
func (s *Store) Save(ctx context.Context, block uint64, rows []indexsupply.Row) error {
	conn, err := s.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // Rollback if commit doesn't happen

	if len(rows) > 0 {
		src, err := copyRows(s.id, s.key.Chain, block, rows)
		if err != nil {
			return err
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"indexsupply_rows"},
			[]string{"query_id", "chain", "block_num", "data"},
			pgx.CopyFromRows(src),
		); err != nil {
			return fmt.Errorf("copy rows: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO indexsupply_progress (query_id, chain, query, block_num, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (query_id) DO UPDATE
		SET block_num = GREATEST(indexsupply_progress.block_num, EXCLUDED.block_num), updated_at = now()`,
		s.id, int64(s.key.Chain), s.key.Query, int64(block),
	); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}

	return tx.Commit(ctx)
}

func copyRows(id string, chain, block uint64, rows []indexsupply.Row) ([][]any, error) {
	out := make([][]any, len(rows))
	for i, r := range rows {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}
		out[i] = []any{id, int64(chain), int64(block), data}
	}
	return out, nil
}

// Entry is one row of indexsupply_progress.
type Entry struct {
	QueryID   string
	Chain     uint64
	Query     string
	BlockNum  uint64
	Rows      int64
	UpdatedAt time.Time
}

// List returns every synced query with its row count, newest first.
func List(ctx context.Context, pool *pgxpool.Pool) ([]Entry, error) {
	rows, err := pool.Query(ctx, `
		SELECT p.query_id, p.chain, p.query, p.block_num, p.updated_at,
		       (SELECT count(*) FROM indexsupply_rows r WHERE r.query_id = p.query_id)
		FROM indexsupply_progress p
		ORDER BY p.updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e            Entry
			chain, block int64
		)
		if err := rows.Scan(&e.QueryID, &chain, &e.Query, &block, &e.UpdatedAt, &e.Rows); err != nil {
			return nil, err
		}
		e.Chain, e.BlockNum = uint64(chain), uint64(block)
		out = append(out, e)
	}
	return out, rows.Err()
}
