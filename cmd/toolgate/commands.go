package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"toolgate/internal/cli"
	"toolgate/internal/dispatch"
	"toolgate/internal/filemanager"
	"toolgate/internal/logging"
	"toolgate/internal/mcp"
	"toolgate/internal/tools/dbtools"

	"github.com/spf13/cobra"
)

// errToolFailed makes `toolgate call` exit non-zero after the error
// envelope has already been printed.
var errToolFailed = errors.New("tool returned an error envelope")

func newRootCmd(logger logging.Logger, stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{logger: logger}

	root := &cobra.Command{
		Use:           "toolgate",
		Short:         "Serve validated file and database tools over MCP",
		Long:          "toolgate exposes a fixed set of file and database tools. Every call is validated, confined to the configured files root and database, and answered with a JSON envelope.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/toolgate/config.yaml)")
	flags.StringVar(&a.overrides.Root, "root", "", "files root directory")
	flags.StringVar(&a.overrides.DBPath, "db", "", "sqlite database path")
	flags.DurationVar(&a.overrides.Timeout, "timeout", 0, "per-call time budget, e.g. 10s")

	root.AddCommand(
		newServeCmd(a),
		newCallCmd(a),
		newToolsCmd(a),
		newInitDemoCmd(a),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(false)
			if err != nil {
				return err
			}
			d, err := a.newDispatcher(cfg)
			if err != nil {
				return err
			}
			return mcp.NewServer(d, a.logger, Version).Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newCallCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "call TOOL [ARGUMENTS_JSON]",
		Short: "Invoke one tool and print its envelope",
		Long:  "Invoke one tool. ARGUMENTS_JSON is a JSON object; pass - to read it from stdin. With TOOL set to - the whole request {\"tool\", \"arguments\"} is read from stdin.",
		Example: `  toolgate call read_file '{"file_path":"example.txt"}'
  toolgate call query_table '{"table":"users","columns":"id,name","limit":5}'
  echo '{}' | toolgate call database_stats -
  echo '{"tool":"list_files","arguments":{}}' | toolgate call -`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseRequest(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			cfg, err := a.loadConfig(false)
			if err != nil {
				return err
			}
			d, err := a.newDispatcher(cfg)
			if err != nil {
				return err
			}

			env := d.Dispatch(cmd.Context(), req)

			var out []byte
			if asJSON {
				out, err = cli.JSON(env)
			} else {
				var s string
				s, err = cli.RenderEnvelope(req.Tool, env)
				out = []byte(s)
			}
			if err != nil {
				return err
			}
			if _, err := cmd.OutOrStdout().Write(out); err != nil {
				return err
			}

			if !env.OK() {
				return errToolFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON envelope")
	return cmd
}

// parseRequest builds the request from the positional arguments.
func parseRequest(args []string, stdin io.Reader) (dispatch.Request, error) {
	if args[0] == "-" {
		if len(args) > 1 {
			return dispatch.Request{}, errors.New("ARGUMENTS_JSON cannot be combined with a request read from stdin")
		}
		req, err := dispatch.DecodeRequest(stdin)
		if err != nil {
			return dispatch.Request{}, fmt.Errorf("failed to read request from stdin: %w", err)
		}
		return req, nil
	}

	arguments, err := parseArguments(args[1:], stdin)
	if err != nil {
		return dispatch.Request{}, err
	}
	return dispatch.Request{Tool: strings.TrimSpace(args[0]), Arguments: arguments}, nil
}

// parseArguments decodes the optional JSON object argument.
func parseArguments(rest []string, stdin io.Reader) (map[string]any, error) {
	if len(rest) == 0 {
		return nil, nil
	}

	raw := []byte(rest[0])
	if rest[0] == "-" {
		var err error
		if raw, err = io.ReadAll(stdin); err != nil {
			return nil, fmt.Errorf("failed to read arguments from stdin: %w", err)
		}
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}

	var arguments map[string]any
	if err := json.Unmarshal(raw, &arguments); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	return arguments, nil
}

func newToolsCmd(a *app) *cobra.Command {
	var (
		markdown bool
		style    string
		width    int
	)

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Describe the available tools and their arguments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(true)
			if err != nil {
				return err
			}
			reg, err := listRegistry(cfg)
			if err != nil {
				return err
			}

			md := cli.ToolsMarkdown(reg.Tools())
			if markdown {
				_, err := io.WriteString(cmd.OutOrStdout(), md)
				return err
			}

			rendered, err := cli.RenderMarkdown(md, style, width)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), rendered)
			return err
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "print raw markdown")
	cmd.Flags().StringVar(&style, "style", cli.StyleDark, "glamour style: dark, light or notty")
	cmd.Flags().IntVar(&width, "width", 100, "word wrap width")
	return cmd
}

func newInitDemoCmd(a *app) *cobra.Command {
	var writeConfig bool

	cmd := &cobra.Command{
		Use:   "init-demo",
		Short: "Create the sample database and files root",
		Long:  "Create the files root with a sample example.txt and a sqlite database with a users table holding three rows. Safe to run repeatedly.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.logger.LogPerformance("init-demo", time.Now())
			cfg, err := a.loadConfig(true)
			if err != nil {
				return err
			}

			root, err := filemanager.PrepareRoot(cfg.Files.Root, a.logger)
			if err != nil {
				return err
			}
			file, err := filemanager.SeedSampleFile(cmd.Context(), root)
			if err != nil {
				return err
			}
			if err := dbtools.SeedDatabase(cmd.Context(), cfg.Database.Path); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.SuccessStyle.Render("✓ demo data ready"))
			fmt.Fprintf(out, "  files root:  %s\n  sample file: %s\n  database:    %s\n", root, file, cfg.Database.Path)

			if writeConfig {
				path, err := a.saveConfig(cfg)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  config:      %s\n", path)
			}

			a.logger.Info("Demo data initialized", "root", root, "database", cfg.Database.Path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&writeConfig, "write-config", false, "save the effective configuration")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "toolgate", Version)
		},
	}
}
