package dbtools

import (
	"context"
	"database/sql"

	"toolgate/internal/config"
	"toolgate/internal/logging"
	"toolgate/internal/toolerr"
	"toolgate/internal/validation"
)

// SchemaResult is the payload of table_schema.
type SchemaResult struct {
	Table       string       `json:"table"`
	Columns     []ColumnInfo `json:"columns"`
	ColumnCount int          `json:"column_count"`
}

// TableSchema describes the columns of one table.
type TableSchema struct {
	base
}

// NewTableSchema creates the table_schema handler.
func NewTableSchema(cfg config.DatabaseConfig, logger logging.Logger) *TableSchema {
	return &TableSchema{base: newBase(cfg, logger, TableSchemaName)}
}

func (t *TableSchema) Description() string {
	return "Describe the columns of a table: name, declared type, nullability, default value and primary key membership."
}

func (t *TableSchema) Args() []validation.ArgSpec {
	return []validation.ArgSpec{
		{
			Name:        "table",
			Description: "Table name",
			Type:        validation.TypeString,
			Required:    true,
			Validator:   validation.IdentifierValidator("table"),
		},
	}
}

func (t *TableSchema) Handle(ctx context.Context, args validation.Args) (any, error) {
	table := args.String("table")

	var columns []ColumnInfo
	err := t.withConn(ctx, func(conn *sql.Conn) error {
		stored, exists, err := lookupTable(ctx, conn, table)
		if err != nil {
			return t.dbError(ctx, "lookup table", err)
		}
		if !exists {
			return toolerr.NotFound("table").WithDetail(table)
		}
		table = stored

		columns, err = tableColumns(ctx, conn, table)
		if err != nil {
			return t.dbError(ctx, "read schema", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// pragma_table_info yields nothing for a table that does not exist.
	if len(columns) == 0 {
		return nil, toolerr.NotFound("table").WithDetail(table)
	}

	t.logger.Debug("Schema retrieved", "table", table, "columns", len(columns))
	return SchemaResult{
		Table:       table,
		Columns:     columns,
		ColumnCount: len(columns),
	}, nil
}
