package dbtools

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"slices"
	"strings"

	"toolgate/internal/config"
	"toolgate/internal/logging"
	"toolgate/internal/toolerr"
	"toolgate/internal/validation"
)

// QueryResult is the payload of query_table.
type QueryResult struct {
	Table     string           `json:"table"`
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Count     int              `json:"count"`
	Limit     int              `json:"limit"`
	Truncated bool             `json:"truncated,omitempty"`
}

// QueryTable selects rows from one table.
type QueryTable struct {
	base
}

// NewQueryTable creates the query_table handler.
func NewQueryTable(cfg config.DatabaseConfig, logger logging.Logger) *QueryTable {
	return &QueryTable{base: newBase(cfg, logger, QueryTableName)}
}

func (t *QueryTable) Description() string {
	return fmt.Sprintf("Select rows from a table of the database. Filters compare columns for equality; at most %d rows are returned.", t.cfg.MaxRows)
}

func (t *QueryTable) Args() []validation.ArgSpec {
	return []validation.ArgSpec{
		{
			Name:        "table",
			Description: "Table name",
			Type:        validation.TypeString,
			Required:    true,
			Validator:   validation.IdentifierValidator("table"),
		},
		{
			Name:        "columns",
			Description: `Comma-separated column names, or "*" for all columns`,
			Type:        validation.TypeString,
			Validator:   validation.ColumnsValidator,
		},
		{
			Name:        "where",
			Description: "Object mapping column names to the values they must equal",
			Type:        validation.TypeObject,
			Validator:   validation.ObjectKeysValidator("where"),
		},
		{
			Name:        "limit",
			Description: fmt.Sprintf("Maximum number of rows (default %d, capped at %d)", t.cfg.DefaultLimit, t.cfg.MaxRows),
			Type:        validation.TypeInteger,
		},
	}
}

func (t *QueryTable) Handle(ctx context.Context, args validation.Args) (any, error) {
	table := args.String("table")
	requested := args.Strings("columns")
	where := args.Object("where")

	params, err := bindValues(where)
	if err != nil {
		return nil, err
	}

	limit := t.effectiveLimit(args)

	var result QueryResult
	err = t.withConn(ctx, func(conn *sql.Conn) error {
		stored, exists, err := lookupTable(ctx, conn, table)
		if err != nil {
			return t.dbError(ctx, "lookup table", err)
		}
		if !exists {
			return toolerr.NotFound("table").WithDetail(table)
		}
		table = stored

		known, err := tableColumns(ctx, conn, table)
		if err != nil {
			return t.dbError(ctx, "read columns", err)
		}
		if err := checkColumns("columns", requested, known); err != nil {
			return err
		}
		if err := checkColumns("where", sortedKeys(where), known); err != nil {
			return err
		}

		query, queryArgs := buildSelect(table, requested, where, params, limit)
		t.logger.Debug("Running query", "table", table, "sql", query)

		rows, err := conn.QueryContext(ctx, query, queryArgs...)
		if err != nil {
			return t.dbError(ctx, "query "+table, err)
		}
		defer rows.Close()

		result, err = collectRows(rows, limit)
		if err != nil {
			return t.dbError(ctx, "scan "+table, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Table = table
	result.Limit = limit
	t.logger.Info("Query executed", "table", table, "rows", result.Count)
	return result, nil
}

// effectiveLimit applies the default to absent or non-positive limits and
// caps the rest at MaxRows.
func (t *QueryTable) effectiveLimit(args validation.Args) int {
	if !args.Has("limit") {
		return t.cfg.DefaultLimit
	}
	limit := args.Int("limit")
	switch {
	case limit <= 0:
		return t.cfg.DefaultLimit
	case limit > t.cfg.MaxRows:
		t.logger.Warn("Query limit reduced to maximum", "requested", limit, "max_rows", t.cfg.MaxRows)
		return t.cfg.MaxRows
	default:
		return limit
	}
}

// buildSelect assembles the statement from validated, quoted identifiers.
// The filter values and the limit are bound; a nil filter value matches NULL.
func buildSelect(table string, columns []string, where map[string]any, params map[string]any, limit int) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(columns) == 0 {
		b.WriteString("*")
	} else {
		for i, col := range columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(validation.QuoteIdentifier(col))
		}
	}
	b.WriteString(" FROM ")
	b.WriteString(validation.QuoteIdentifier(table))

	var args []any
	for i, col := range sortedKeys(where) {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString(validation.QuoteIdentifier(col))
		if params[col] == nil {
			b.WriteString(" IS NULL")
			continue
		}
		b.WriteString(" = ?")
		args = append(args, params[col])
	}

	// One extra row tells collectRows whether the limit cut the result.
	b.WriteString(" LIMIT ?")
	args = append(args, limit+1)

	return b.String(), args
}

// bindValues converts filter values into driver parameters. JSON numbers
// that are whole become int64 so they compare equal to INTEGER columns.
// Nested objects and arrays cannot be bound.
func bindValues(where map[string]any) (map[string]any, error) {
	params := make(map[string]any, len(where))
	for col, v := range where {
		switch val := v.(type) {
		case nil, string, bool, int, int64:
			params[col] = val
		case float64:
			if val == math.Trunc(val) && val < 1<<63 && val >= -(1<<63) {
				params[col] = int64(val)
			} else {
				params[col] = val
			}
		default:
			return nil, toolerr.BadArgument("where", fmt.Sprintf("value for %s must be a string, number, boolean or null", col))
		}
	}
	return params, nil
}

func checkColumns(argName string, names []string, known []ColumnInfo) error {
	for _, name := range names {
		if !slices.ContainsFunc(known, func(c ColumnInfo) bool { return strings.EqualFold(c.Name, name) }) {
			return toolerr.UnknownColumn(argName, name)
		}
	}
	return nil
}

func collectRows(rows *sql.Rows, limit int) (QueryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return QueryResult{}, err
	}

	result := QueryResult{Columns: columns, Rows: make([]map[string]any, 0)}
	for rows.Next() {
		if len(result.Rows) == limit {
			result.Truncated = true
			break
		}

		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return QueryResult{}, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = jsonValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, err
	}

	result.Count = len(result.Rows)
	return result, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
