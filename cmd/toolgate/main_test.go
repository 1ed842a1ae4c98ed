package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"toolgate/internal/config"
	"toolgate/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	dir    string
	root   string
	dbPath string
	config string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return testEnv{
		dir:    dir,
		root:   filepath.Join(dir, "files"),
		dbPath: filepath.Join(dir, "data", "example.db"),
		config: filepath.Join(dir, "config.yaml"),
	}
}

func (e testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(logging.Nop(), strings.NewReader(stdin), &stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func (e testEnv) initDemo(t *testing.T) {
	t.Helper()
	out, err := e.run(t, "", "init-demo", "--write-config",
		"--config", e.config, "--root", e.root, "--db", e.dbPath)
	require.NoError(t, err)
	require.Contains(t, out, "demo data ready")
}

func decodeEnvelope(t *testing.T, out string) map[string]any {
	t.Helper()
	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &env), out)
	return env
}

func TestInitDemo(t *testing.T) {
	e := newTestEnv(t)
	e.initDemo(t)

	content, err := os.ReadFile(filepath.Join(e.root, "example.txt"))
	require.NoError(t, err)
	assert.NotEmpty(t, content)

	cfg, err := config.LoadFrom(e.config)
	require.NoError(t, err)
	assert.Equal(t, e.root, cfg.Files.Root)
	assert.Equal(t, e.dbPath, cfg.Database.Path)
	assert.NotZero(t, cfg.InitTime)

	// Running again is harmless
	e.initDemo(t)
}

func TestCall(t *testing.T) {
	e := newTestEnv(t)
	e.initDemo(t)

	t.Run("read_file", func(t *testing.T) {
		out, err := e.run(t, "", "--config", e.config, "call", "read_file", `{"file_path":"example.txt"}`, "--json")
		require.NoError(t, err)
		env := decodeEnvelope(t, out)
		assert.Equal(t, "success", env["status"])
		data := env["data"].(map[string]any)
		assert.Equal(t, filepath.Join(e.root, "example.txt"), data["path"])
	})

	t.Run("arguments from stdin", func(t *testing.T) {
		out, err := e.run(t, `{"table":"users","columns":"name","limit":1}`, "--config", e.config, "call", "query_table", "-", "--json")
		require.NoError(t, err)
		data := decodeEnvelope(t, out)["data"].(map[string]any)
		assert.Equal(t, float64(1), data["count"])
		assert.Equal(t, "Alice Johnson", data["rows"].([]any)[0].(map[string]any)["name"])
	})

	t.Run("whole request from stdin", func(t *testing.T) {
		out, err := e.run(t, `{"tool":"list_files","arguments":{}}`, "--config", e.config, "call", "-", "--json")
		require.NoError(t, err)
		data := decodeEnvelope(t, out)["data"].(map[string]any)
		assert.Equal(t, float64(1), data["count"])
	})

	t.Run("no arguments", func(t *testing.T) {
		out, err := e.run(t, "", "--config", e.config, "call", "database_stats", "--json")
		require.NoError(t, err)
		data := decodeEnvelope(t, out)["data"].(map[string]any)
		assert.Equal(t, float64(1), data["total_tables"])
	})

	t.Run("error envelope exits non-zero", func(t *testing.T) {
		out, err := e.run(t, "", "--config", e.config, "call", "read_file", `{"file_path":"../../etc/passwd"}`, "--json")
		assert.ErrorIs(t, err, errToolFailed)
		env := decodeEnvelope(t, out)
		assert.Equal(t, "error", env["status"])
		assert.Equal(t, "PathTraversal", env["error"].(map[string]any)["kind"])
	})

	t.Run("unknown tool", func(t *testing.T) {
		out, err := e.run(t, "", "--config", e.config, "call", "delete_everything", "--json")
		assert.ErrorIs(t, err, errToolFailed)
		assert.Equal(t, "UnknownTool", decodeEnvelope(t, out)["error"].(map[string]any)["kind"])
	})

	t.Run("styled output", func(t *testing.T) {
		out, err := e.run(t, "", "--config", e.config, "call", "table_schema", `{"table":"users"}`)
		require.NoError(t, err)
		assert.Contains(t, out, "table_schema")
		assert.Contains(t, out, `"column_count": 4`)
	})

	t.Run("malformed arguments", func(t *testing.T) {
		_, err := e.run(t, "", "--config", e.config, "call", "read_file", `[1,2]`)
		require.Error(t, err)
		assert.NotErrorIs(t, err, errToolFailed)
		assert.Contains(t, err.Error(), "JSON object")
	})
}

func TestCall_TimeoutFlag(t *testing.T) {
	e := newTestEnv(t)
	e.initDemo(t)

	_, err := e.run(t, "", "--config", e.config, "--timeout=-1s", "call", "database_stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatch.timeout")
}

func TestCall_MissingConfigFile(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.run(t, "", "--config", e.config, "call", "database_stats")
	require.Error(t, err)
}

func TestCall_ReservedRoot(t *testing.T) {
	e := newTestEnv(t)
	e.initDemo(t)

	_, err := e.run(t, "", "--config", e.config, "--root", "/etc", "call", "list_files")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

func TestTools(t *testing.T) {
	e := newTestEnv(t)

	out, err := e.run(t, "", "--config", e.config, "tools", "--markdown")
	require.NoError(t, err)
	for _, name := range []string{"read_file", "write_file", "list_files", "query_table", "table_schema", "database_stats"} {
		assert.Contains(t, out, "## "+name)
	}

	out, err = e.run(t, "", "--config", e.config, "tools", "--style", "notty")
	require.NoError(t, err)
	assert.Contains(t, out, "query_table")
}

func TestVersion(t *testing.T) {
	e := newTestEnv(t)
	out, err := e.run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "toolgate "+Version+"\n", out)
}

func TestServe(t *testing.T) {
	e := newTestEnv(t)
	e.initDemo(t)

	// Closed stdin ends the session cleanly.
	_, err := e.run(t, "", "--config", e.config, "serve")
	assert.NoError(t, err)
}

func TestParseRequest(t *testing.T) {
	req, err := parseRequest([]string{" read_file ", `{"file_path":"a.txt"}`}, nil)
	require.NoError(t, err)
	assert.Equal(t, "read_file", req.Tool)
	assert.Equal(t, map[string]any{"file_path": "a.txt"}, req.Arguments)

	req, err = parseRequest([]string{"-"}, strings.NewReader(`{"tool":"database_stats"}`))
	require.NoError(t, err)
	assert.Equal(t, "database_stats", req.Tool)

	_, err = parseRequest([]string{"-", "{}"}, strings.NewReader(`{"tool":"database_stats"}`))
	assert.Error(t, err)
}

func TestParseArguments(t *testing.T) {
	args, err := parseArguments(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, args)

	args, err = parseArguments([]string{"  "}, nil)
	require.NoError(t, err)
	assert.Nil(t, args)

	args, err = parseArguments([]string{"-"}, strings.NewReader(`{"a": 1}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, args)

	_, err = parseArguments([]string{"{"}, nil)
	assert.Error(t, err)
}
