// Package postgres reads facility rows from PostgreSQL with a server-side
// cursor, so memory stays bounded by one chunk regardless of table size.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ajitpratap0/facilityfeed/internal/facility"
	"github.com/ajitpratap0/facilityfeed/internal/source"
	"github.com/ajitpratap0/facilityfeed/pkg/errors"
)

const cursorName = "facility_feed_cursor"

// Config configures the PostgreSQL reader
type Config struct {
	URL      string
	Table    string // defaults to "facility"
	Query    string // replaces the generated SELECT when set
	MaxConns int32
	MinConns int32
}

// Reader streams facility rows through a cursor inside a read-only
// transaction.
type Reader struct {
	pool   *pgxpool.Pool
	query  string
	logger *zap.Logger
	owned  bool
}

// New connects a pool and verifies it with a ping.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Reader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse connection string")
	}

	poolConfig.MaxConns = cfg.MaxConns
	if poolConfig.MaxConns <= 0 {
		poolConfig.MaxConns = 5
	}
	poolConfig.MinConns = cfg.MinConns
	if poolConfig.MinConns < 0 || poolConfig.MinConns > poolConfig.MaxConns {
		poolConfig.MinConns = 1
	}
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to reach database")
	}

	query, err := BuildQuery(cfg.Table, cfg.Query)
	if err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("postgres source connected",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database),
		zap.Int32("max_connections", poolConfig.MaxConns),
		zap.Int32("min_connections", poolConfig.MinConns))

	r := NewFromPool(pool, query, logger)
	r.owned = true
	return r, nil
}

// NewFromPool wraps an existing pool. The pool is not closed by Close.
func NewFromPool(pool *pgxpool.Pool, query string, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{pool: pool, query: query, logger: logger}
}

// BuildQuery returns query when set, otherwise a SELECT of the facility
// columns from table ordered by id. Table may be schema qualified.
func BuildQuery(table, query string) (string, error) {
	if q := strings.TrimSpace(query); q != "" {
		return strings.TrimSuffix(q, ";"), nil
	}
	if table == "" {
		table = "facility"
	}

	parts := strings.Split(table, ".")
	if len(parts) > 2 {
		return "", errors.Newf(errors.ErrorTypeConfig, "invalid table name %q", table)
	}
	for _, p := range parts {
		if p == "" {
			return "", errors.Newf(errors.ErrorTypeConfig, "invalid table name %q", table)
		}
	}

	return fmt.Sprintf("SELECT %s FROM %s ORDER BY id",
		strings.Join(facility.Columns, ", "),
		pgx.Identifier(parts).Sanitize()), nil
}

// StreamChunks opens a read-only transaction and declares the cursor. Each
// Next fetches the following chunkSize rows.
func (r *Reader) StreamChunks(ctx context.Context, chunkSize int) (source.ChunkStream, error) {
	if chunkSize <= 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "chunk size must be positive, got %d", chunkSize)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to begin transaction")
	}

	declare := fmt.Sprintf("DECLARE %s NO SCROLL CURSOR FOR %s", cursorName, r.query)
	if _, err := tx.Exec(ctx, declare); err != nil {
		_ = tx.Rollback(context.Background())
		return nil, errors.Wrap(err, errors.ErrorTypeExtraction, "failed to declare cursor")
	}

	r.logger.Debug("cursor opened", zap.Int("chunk_size", chunkSize))

	return &cursorStream{
		tx:     tx,
		fetch:  fmt.Sprintf("FETCH FORWARD %d FROM %s", chunkSize, cursorName),
		logger: r.logger,
	}, nil
}

// Close closes the pool when the reader created it.
func (r *Reader) Close() error {
	if r.owned {
		r.pool.Close()
	}
	return nil
}

type cursorStream struct {
	tx     pgx.Tx
	fetch  string
	logger *zap.Logger

	chunk  facility.Chunk
	err    error
	done   bool
	closed bool
}

func (s *cursorStream) Next(ctx context.Context) bool {
	if s.done || s.closed {
		return false
	}

	rows, err := s.tx.Query(ctx, s.fetch)
	if err != nil {
		s.fail(errors.Wrap(err, errors.ErrorTypeExtraction, "failed to fetch from cursor"))
		return false
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		s.fail(errors.Wrap(err, errors.ErrorTypeExtraction, "failed to read rows"))
		return false
	}

	if len(maps) == 0 {
		s.done = true
		s.chunk = nil
		return false
	}

	chunk := make(facility.Chunk, len(maps))
	for i, m := range maps {
		chunk[i] = facility.RawRecord(m)
	}
	s.chunk = chunk
	return true
}

func (s *cursorStream) fail(err error) {
	s.err = err
	s.done = true
	s.chunk = nil
}

func (s *cursorStream) Chunk() facility.Chunk { return s.chunk }
func (s *cursorStream) Err() error            { return s.err }

// Close ends the transaction, which also closes the cursor.
func (s *cursorStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		s.logger.Warn("failed to close cursor transaction", zap.Error(err))
		return err
	}
	return nil
}
