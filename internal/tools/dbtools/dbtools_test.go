package dbtools

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"toolgate/internal/config"
	"toolgate/internal/dispatch"
	"toolgate/internal/logging"
	"toolgate/internal/toolerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	path       string
	cfg        config.DatabaseConfig
	dispatcher *dispatch.Dispatcher
	logs       *logging.TestBuffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "example.db")
	require.NoError(t, SeedDatabase(context.Background(), path))
	return newFixtureAt(t, path)
}

func newFixtureAt(t *testing.T, path string) *fixture {
	t.Helper()
	cfg := config.DatabaseConfig{Path: path, MaxRows: 5, DefaultLimit: 2}

	logger, buf := logging.NewTestLogger()
	reg := dispatch.NewRegistry()
	require.NoError(t, Register(reg, cfg, logger))

	return &fixture{
		path:       path,
		cfg:        cfg,
		dispatcher: dispatch.NewDispatcher(reg, logger, dispatch.WithTimeout(5*time.Second)),
		logs:       buf,
	}
}

func (f *fixture) exec(t *testing.T, stmts ...string) {
	t.Helper()
	db, err := sql.Open(DriverName, f.path)
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
}

func (f *fixture) call(tool string, args map[string]any) dispatch.Envelope {
	return f.dispatcher.Dispatch(context.Background(), dispatch.Request{Tool: tool, Arguments: args})
}

func TestSeedDatabase_Idempotent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, SeedDatabase(context.Background(), f.path))

	env := f.call(DatabaseStatsName, nil)
	require.True(t, env.OK(), "envelope: %+v", env.Error)
	assert.Equal(t, []TableStats{{Table: "users", RowCount: 3}}, env.Data.(StatsResult).Tables)
}

func TestQueryTable(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name      string
		args      map[string]any
		columns   []string
		names     []string
		limit     int
		truncated bool
	}{
		{
			name:    "default limit",
			args:    map[string]any{"table": "users", "columns": "id, name"},
			columns: []string{"id", "name"},
			names:   []string{"Alice Johnson", "Bob Smith"},
			limit:   2,
			// three rows exist, two are returned
			truncated: true,
		},
		{
			name:    "explicit limit",
			args:    map[string]any{"table": "users", "columns": "name", "limit": float64(3)},
			columns: []string{"name"},
			names:   []string{"Alice Johnson", "Bob Smith", "Charlie Brown"},
			limit:   3,
		},
		{
			name:    "limit capped at max rows",
			args:    map[string]any{"table": "users", "columns": "name", "limit": 500},
			columns: []string{"name"},
			names:   []string{"Alice Johnson", "Bob Smith", "Charlie Brown"},
			limit:   5,
		},
		{
			name:      "non-positive limit uses default",
			args:      map[string]any{"table": "users", "columns": "name", "limit": 0},
			columns:   []string{"name"},
			names:     []string{"Alice Johnson", "Bob Smith"},
			limit:     2,
			truncated: true,
		},
		{
			name:    "where binds values",
			args:    map[string]any{"table": "users", "columns": "id,name", "where": map[string]any{"id": float64(2)}},
			columns: []string{"id", "name"},
			names:   []string{"Bob Smith"},
			limit:   2,
		},
		{
			name:    "table name is case-insensitive",
			args:    map[string]any{"table": "USERS", "columns": "name", "limit": 3},
			columns: []string{"name"},
			names:   []string{"Alice Johnson", "Bob Smith", "Charlie Brown"},
			limit:   3,
		},
		{
			name:    "where with injection attempt matches nothing",
			args:    map[string]any{"table": "users", "columns": "name", "where": map[string]any{"name": "x' OR '1'='1"}},
			columns: []string{"name"},
			names:   []string{},
			limit:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := f.call(QueryTableName, tt.args)
			require.True(t, env.OK(), "envelope: %+v", env.Error)

			res := env.Data.(QueryResult)
			assert.Equal(t, "users", res.Table)
			assert.Equal(t, tt.columns, res.Columns)
			assert.Equal(t, tt.limit, res.Limit)
			assert.Equal(t, tt.truncated, res.Truncated)
			assert.Equal(t, len(tt.names), res.Count)

			names := make([]string, 0, len(res.Rows))
			for _, row := range res.Rows {
				names = append(names, row["name"].(string))
			}
			assert.Equal(t, tt.names, names)
		})
	}
}

func TestQueryTable_AllColumnsAndJSON(t *testing.T) {
	f := newFixture(t)

	env := f.call(QueryTableName, map[string]any{"table": "users", "columns": "*", "where": map[string]any{"email": "alice@example.com"}})
	require.True(t, env.OK(), "envelope: %+v", env.Error)
	res := env.Data.(QueryResult)
	assert.Equal(t, []string{"id", "name", "email", "created_at"}, res.Columns)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(1), res.Rows[0]["id"])

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "SELECT", "statement text is never returned")
	assert.Contains(t, string(raw), `"name":"Alice Johnson"`)
}

func TestQueryTable_NullFilter(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "INSERT INTO users (id, name) VALUES (4, 'No Mail')")

	env := f.call(QueryTableName, map[string]any{"table": "users", "columns": "name", "where": map[string]any{"email": nil}})
	require.True(t, env.OK(), "envelope: %+v", env.Error)
	res := env.Data.(QueryResult)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "No Mail", res.Rows[0]["name"])
}

func TestQueryTable_KeywordTableName(t *testing.T) {
	f := newFixture(t)
	f.exec(t, `CREATE TABLE "order" ("select" TEXT)`, `INSERT INTO "order" VALUES ('ok')`)

	env := f.call(QueryTableName, map[string]any{"table": "order", "columns": "select"})
	require.True(t, env.OK(), "envelope: %+v", env.Error)
	assert.Equal(t, "ok", env.Data.(QueryResult).Rows[0]["select"])
}

func TestQueryTable_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		args map[string]any
		kind toolerr.Kind
	}{
		{name: "missing table", args: map[string]any{}, kind: toolerr.KindMissingArgument},
		{name: "injection in table", args: map[string]any{"table": "users; DROP TABLE users"}, kind: toolerr.KindInvalidIdentifier},
		{name: "quote in table", args: map[string]any{"table": `users"`}, kind: toolerr.KindInvalidIdentifier},
		{name: "leading digit", args: map[string]any{"table": "1users"}, kind: toolerr.KindInvalidIdentifier},
		{name: "too long", args: map[string]any{"table": strings.Repeat("a", 129)}, kind: toolerr.KindInvalidIdentifier},
		{name: "bad column", args: map[string]any{"table": "users", "columns": "name, email--"}, kind: toolerr.KindInvalidIdentifier},
		{name: "bad where key", args: map[string]any{"table": "users", "where": map[string]any{"1=1 OR id": 1}}, kind: toolerr.KindInvalidIdentifier},
		{name: "where not object", args: map[string]any{"table": "users", "where": "id = 1"}, kind: toolerr.KindMissingArgument},
		{name: "nested where value", args: map[string]any{"table": "users", "where": map[string]any{"id": []any{1}}}, kind: toolerr.KindMissingArgument},
		{name: "fractional limit", args: map[string]any{"table": "users", "limit": 1.5}, kind: toolerr.KindMissingArgument},
		{name: "unknown column", args: map[string]any{"table": "users", "columns": "password"}, kind: toolerr.KindInvalidIdentifier},
		{name: "unknown where column", args: map[string]any{"table": "users", "where": map[string]any{"password": "x"}}, kind: toolerr.KindInvalidIdentifier},
		{name: "unknown table", args: map[string]any{"table": "nonexistent_table"}, kind: toolerr.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := f.call(QueryTableName, tt.args)
			assert.Equal(t, tt.kind, env.ErrorKind(), "error: %+v", env.Error)
		})
	}

	// The table survives every attempt above.
	env := f.call(DatabaseStatsName, nil)
	require.True(t, env.OK())
	assert.Equal(t, int64(3), env.Data.(StatsResult).Tables[0].RowCount)
}

func TestQueryTable_ReadOnly(t *testing.T) {
	f := newFixture(t)
	h := NewQueryTable(f.cfg, nil)

	err := h.withConn(context.Background(), func(conn *sql.Conn) error {
		_, err := conn.ExecContext(context.Background(), "DELETE FROM users")
		return err
	})
	require.Error(t, err, "connections are query-only")
}

func TestMissingDatabase(t *testing.T) {
	dir := t.TempDir()
	f := newFixtureAt(t, filepath.Join(dir, "missing.db"))

	for _, tool := range []string{QueryTableName, TableSchemaName, DatabaseStatsName} {
		args := map[string]any{"table": "users"}
		if tool == DatabaseStatsName {
			args = nil
		}
		env := f.call(tool, args)
		assert.Equal(t, toolerr.KindNotFound, env.ErrorKind(), tool)
	}

	_, err := os.Stat(filepath.Join(dir, "missing.db"))
	assert.True(t, os.IsNotExist(err), "tools never create the database file")
}

func TestCorruptDatabaseIsInternal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not a sqlite database, just text padding it out"), 0o644))
	f := newFixtureAt(t, path)

	env := f.call(DatabaseStatsName, nil)
	require.Equal(t, toolerr.KindInternalError, env.ErrorKind())
	assert.Equal(t, "internal error", env.Error.Message)
	assert.Empty(t, env.Error.Detail)
	assert.Contains(t, f.logs.String(), "not a database", "cause is logged server-side")
}

func TestTableSchema(t *testing.T) {
	f := newFixture(t)

	env := f.call(TableSchemaName, map[string]any{"table": "users"})
	require.True(t, env.OK(), "envelope: %+v", env.Error)

	res := env.Data.(SchemaResult)
	assert.Equal(t, "users", res.Table)
	assert.Equal(t, 4, res.ColumnCount)
	assert.Equal(t, ColumnInfo{Name: "id", Type: "INTEGER", PrimaryKey: true}, res.Columns[0])
	assert.Equal(t, ColumnInfo{Name: "name", Type: "TEXT", NotNull: true}, res.Columns[1])
	assert.Equal(t, "email", res.Columns[2].Name)
	assert.Equal(t, "CURRENT_TIMESTAMP", res.Columns[3].DefaultValue)
}

func TestQueryTableAndSchemaAgreeOnTableCase(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{"users", "USERS", "Users"} {
		t.Run(name, func(t *testing.T) {
			query := f.call(QueryTableName, map[string]any{"table": name, "columns": "id"})
			require.True(t, query.OK(), "query_table: %+v", query.Error)
			assert.Equal(t, "users", query.Data.(QueryResult).Table)

			schema := f.call(TableSchemaName, map[string]any{"table": name})
			require.True(t, schema.OK(), "table_schema: %+v", schema.Error)
			assert.Equal(t, "users", schema.Data.(SchemaResult).Table)
		})
	}
}

func TestTableSchema_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		args map[string]any
		kind toolerr.Kind
	}{
		{name: "missing", args: map[string]any{}, kind: toolerr.KindMissingArgument},
		{name: "blank", args: map[string]any{"table": "  "}, kind: toolerr.KindMissingArgument},
		{name: "injection", args: map[string]any{"table": "users); DROP TABLE users; --"}, kind: toolerr.KindInvalidIdentifier},
		{name: "unknown", args: map[string]any{"table": "ghosts"}, kind: toolerr.KindNotFound},
		{name: "extra argument", args: map[string]any{"table": "users", "schema": "main"}, kind: toolerr.KindMissingArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := f.call(TableSchemaName, tt.args)
			assert.Equal(t, tt.kind, env.ErrorKind())
		})
	}
}

func TestDatabaseStats(t *testing.T) {
	f := newFixture(t)
	f.exec(t,
		"CREATE TABLE audit (id INTEGER)",
		`CREATE TABLE "bad name" (id INTEGER)`,
		"CREATE VIEW user_names AS SELECT name FROM users",
	)

	env := f.call(DatabaseStatsName, map[string]any{})
	require.True(t, env.OK(), "envelope: %+v", env.Error)

	res := env.Data.(StatsResult)
	assert.Equal(t, 2, res.TotalTables)
	assert.Equal(t, []TableStats{
		{Table: "audit", RowCount: 0},
		{Table: "users", RowCount: 3},
	}, res.Tables)
	assert.Equal(t, []string{"bad name"}, res.Skipped)
	assert.Contains(t, f.logs.String(), "Skipping table with unsafe name")
}

func TestDatabaseStats_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	db, err := sql.Open(DriverName, path)
	require.NoError(t, err)
	_, err = db.Exec("PRAGMA user_version = 1")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	f := newFixtureAt(t, path)
	raw, err := json.Marshal(f.call(DatabaseStatsName, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","data":{"total_tables":0,"tables":[]}}`, string(raw))
}

func TestCancelledQuery(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	env := f.dispatcher.Dispatch(ctx, dispatch.Request{Tool: QueryTableName, Arguments: map[string]any{"table": "users"}})
	assert.Equal(t, toolerr.KindTimeout, env.ErrorKind())
}

func TestBuildSelect(t *testing.T) {
	query, args := buildSelect("users", []string{"id", "name"}, map[string]any{"name": "a", "email": nil}, map[string]any{"name": "a", "email": nil}, 10)
	assert.Equal(t, `SELECT "id", "name" FROM "users" WHERE "email" IS NULL AND "name" = ? LIMIT ?`, query)
	assert.Equal(t, []any{"a", 11}, args)

	query, args = buildSelect("t", nil, nil, nil, 1)
	assert.Equal(t, `SELECT * FROM "t" LIMIT ?`, query)
	assert.Equal(t, []any{2}, args)
}

func TestLimitDefaults(t *testing.T) {
	h := NewQueryTable(config.DatabaseConfig{}, nil)
	assert.Equal(t, config.DefaultMaxRows, h.cfg.MaxRows)
	assert.Equal(t, config.DefaultQueryLimit, h.cfg.DefaultLimit)
	assert.Contains(t, h.Description(), "1000")
}
