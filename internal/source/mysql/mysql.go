// Package mysql reads facility rows from MySQL with a single streaming query.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/ajitpratap0/facilityfeed/internal/facility"
	"github.com/ajitpratap0/facilityfeed/internal/source"
	"github.com/ajitpratap0/facilityfeed/pkg/errors"
)

// Config configures the MySQL reader
type Config struct {
	// DSN is either a driver DSN (user:pass@tcp(host:3306)/db) or a
	// mysql:// URL.
	DSN      string
	Table    string
	Query    string
	MaxConns int
}

// Reader streams facility rows from MySQL
type Reader struct {
	db     *sql.DB
	query  string
	logger *zap.Logger
}

// New opens the connection pool and pings the server.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Reader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	driverCfg, err := ParseDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	query, err := BuildQuery(cfg.Table, cfg.Query)
	if err != nil {
		return nil, err
	}

	connector, err := mysql.NewConnector(driverCfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create mysql connector")
	}
	db := sql.OpenDB(connector)

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 5
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to reach database")
	}

	logger.Info("mysql source connected",
		zap.String("addr", driverCfg.Addr),
		zap.String("database", driverCfg.DBName),
		zap.Int("max_connections", maxConns))

	return &Reader{db: db, query: query, logger: logger}, nil
}

// ParseDSN accepts a driver DSN or a mysql:// URL.
func ParseDSN(raw string) (*mysql.Config, error) {
	if raw == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "mysql dsn is required")
	}

	if !strings.HasPrefix(raw, "mysql://") {
		cfg, err := mysql.ParseDSN(raw)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse mysql dsn")
		}
		return cfg, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse mysql url")
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = u.Host + ":3306"
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	if len(u.RawQuery) > 0 {
		params := make(map[string]string)
		for k, v := range u.Query() {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
		cfg.Params = params
	}
	return cfg, nil
}

// BuildQuery returns query when set, otherwise a SELECT of the facility
// columns ordered by id.
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
	quoted := make([]string, len(parts))
	for i, p := range parts {
		if p == "" {
			return "", errors.Newf(errors.ErrorTypeConfig, "invalid table name %q", table)
		}
		quoted[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
	}

	return fmt.Sprintf("SELECT %s FROM %s ORDER BY id",
		strings.Join(facility.Columns, ", "), strings.Join(quoted, ".")), nil
}

// StreamChunks runs the query and groups rows into chunks as they arrive.
func (r *Reader) StreamChunks(ctx context.Context, chunkSize int) (source.ChunkStream, error) {
	if chunkSize <= 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "chunk size must be positive, got %d", chunkSize)
	}

	rows, err := r.db.QueryContext(ctx, r.query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeExtraction, "failed to run query")
	}
	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeExtraction, "failed to read columns")
	}

	next := func(context.Context) (facility.RawRecord, error) {
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeExtraction, "failed to read rows")
			}
			return nil, io.EOF
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeExtraction, "failed to scan row")
		}
		return toRecord(columns, values), nil
	}

	return source.NewRowStream(chunkSize, next, rows.Close), nil
}

// Close closes the connection pool
func (r *Reader) Close() error {
	return r.db.Close()
}

// toRecord converts a scanned row into a RawRecord. The text protocol returns
// most columns as []byte, which are copied into strings because the driver
// reuses the buffers.
func toRecord(columns []string, values []any) facility.RawRecord {
	rec := make(facility.RawRecord, len(columns))
	for i, col := range columns {
		if b, ok := values[i].([]byte); ok {
			rec[col] = string(b)
			continue
		}
		rec[col] = values[i]
	}
	return rec
}
