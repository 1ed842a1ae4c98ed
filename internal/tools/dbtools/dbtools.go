// Package dbtools implements the read-only database tools: query_table,
// table_schema and database_stats.
//
// Each call opens the configured sqlite file, pins one connection with
// query_only enabled and closes it before returning. Identifiers are
// checked against the identifier allow-list and then quoted; every value
// travels as a bound parameter.
package dbtools

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"unicode/utf8"

	"toolgate/internal/config"
	"toolgate/internal/dispatch"
	"toolgate/internal/logging"
	"toolgate/internal/toolerr"
	"toolgate/pkg/fileops"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Tool names.
const (
	QueryTableName    = "query_table"
	TableSchemaName   = "table_schema"
	DatabaseStatsName = "database_stats"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

var connPragmas = []string{
	"PRAGMA query_only = ON",
	"PRAGMA busy_timeout = 5000",
}

// Register adds the database tools to reg.
func Register(reg *dispatch.Registry, cfg config.DatabaseConfig, logger logging.Logger) error {
	if err := reg.Register(QueryTableName, NewQueryTable(cfg, logger)); err != nil {
		return err
	}
	if err := reg.Register(TableSchemaName, NewTableSchema(cfg, logger)); err != nil {
		return err
	}
	return reg.Register(DatabaseStatsName, NewDatabaseStats(cfg, logger))
}

type base struct {
	cfg    config.DatabaseConfig
	logger logging.Logger
}

func newBase(cfg config.DatabaseConfig, logger logging.Logger, tool string) base {
	if logger == nil {
		logger = logging.Nop()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = config.DefaultMaxRows
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = min(config.DefaultQueryLimit, cfg.MaxRows)
	}
	return base{cfg: cfg, logger: logger.With("component", tool)}
}

// withConn opens the database, runs fn on a single read-only connection
// and closes everything. A missing database file is NotFound; sqlite would
// otherwise create an empty one.
func (b base) withConn(ctx context.Context, fn func(*sql.Conn) error) error {
	path := fileops.ExpandPath(b.cfg.Path)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return toolerr.NotFound("database").WithCause(err)
		}
		return toolerr.FromFS(err, "database")
	}
	if !info.Mode().IsRegular() {
		return toolerr.Internal(fmt.Errorf("database path %s is not a regular file", path))
	}

	db, err := sql.Open(DriverName, path)
	if err != nil {
		return toolerr.Internal(fmt.Errorf("failed to open database: %w", err))
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		return b.dbError(ctx, "connect", err)
	}
	defer conn.Close()

	for _, pragma := range connPragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			return b.dbError(ctx, "set pragma", err)
		}
	}

	return fn(conn)
}

// dbError passes context errors through for the dispatcher to classify and
// hides everything else behind InternalError.
func (b base) dbError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var classified *toolerr.Error
	if errors.As(err, &classified) {
		return classified
	}
	return toolerr.Internal(fmt.Errorf("%s: %w", op, err))
}

// lookupTable finds a table or view by name. SQLite matches identifiers
// without regard to ASCII case, so the lookup does too; the name is returned
// as stored.
func lookupTable(ctx context.Context, conn *sql.Conn, name string) (string, bool, error) {
	var stored string
	err := conn.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name = ? COLLATE NOCASE", name,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return stored, true, nil
}

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	NotNull      bool   `json:"not_null"`
	DefaultValue any    `json:"default_value"`
	PrimaryKey   bool   `json:"primary_key"`
}

// tableColumns returns the columns of table in declaration order, using
// pragma_table_info with the table name bound.
func tableColumns(ctx context.Context, conn *sql.Conn, table string) ([]ColumnInfo, error) {
	rows, err := conn.QueryContext(ctx,
		`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var (
			col     ColumnInfo
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&col.Name, &col.Type, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		col.NotNull = notNull != 0
		col.DefaultValue = jsonValue(dflt)
		col.PrimaryKey = pk != 0
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// jsonValue makes a scanned sqlite value JSON friendly. Text stored as
// bytes becomes a string; other blobs stay []byte and encode as base64.
func jsonValue(v any) any {
	if b, ok := v.([]byte); ok {
		if utf8.Valid(b) {
			return string(b)
		}
		return append([]byte(nil), b...)
	}
	return v
}
