package dbtools

import (
	"context"
	"database/sql"

	"toolgate/internal/config"
	"toolgate/internal/logging"
	"toolgate/internal/validation"
)

// TableStats is the row count of one table.
type TableStats struct {
	Table    string `json:"table"`
	RowCount int64  `json:"row_count"`
}

// StatsResult is the payload of database_stats.
type StatsResult struct {
	TotalTables int          `json:"total_tables"`
	Tables      []TableStats `json:"tables"`
	Skipped     []string     `json:"skipped,omitempty"`
}

// DatabaseStats counts the rows of every user table.
type DatabaseStats struct {
	base
}

// NewDatabaseStats creates the database_stats handler.
func NewDatabaseStats(cfg config.DatabaseConfig, logger logging.Logger) *DatabaseStats {
	return &DatabaseStats{base: newBase(cfg, logger, DatabaseStatsName)}
}

func (t *DatabaseStats) Description() string {
	return "List the tables of the database with their row counts."
}

func (t *DatabaseStats) Args() []validation.ArgSpec {
	return nil
}

func (t *DatabaseStats) Handle(ctx context.Context, _ validation.Args) (any, error) {
	result := StatsResult{Tables: make([]TableStats, 0)}

	err := t.withConn(ctx, func(conn *sql.Conn) error {
		names, err := listTables(ctx, conn)
		if err != nil {
			return t.dbError(ctx, "list tables", err)
		}

		for _, name := range names {
			// Names come from the database file, which is not trusted either.
			if _, err := validation.ValidateIdentifier(name); err != nil {
				t.logger.Warn("Skipping table with unsafe name", "table", name)
				result.Skipped = append(result.Skipped, name)
				continue
			}

			var count int64
			query := "SELECT COUNT(*) FROM " + validation.QuoteIdentifier(name)
			if err := conn.QueryRowContext(ctx, query).Scan(&count); err != nil {
				return t.dbError(ctx, "count "+name, err)
			}
			result.Tables = append(result.Tables, TableStats{Table: name, RowCount: count})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.TotalTables = len(result.Tables)
	t.logger.Debug("Database statistics retrieved", "tables", result.TotalTables)
	return result, nil
}

func listTables(ctx context.Context, conn *sql.Conn) ([]string, error) {
	rows, err := conn.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
