// Package cli renders envelopes and tool listings for the terminal.
package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"toolgate/internal/dispatch"
	"toolgate/internal/validation"

	"github.com/charmbracelet/glamour"
)

// Glamour styles accepted by RenderMarkdown.
const (
	StyleDark  = "dark"
	StyleLight = "light"
	StyleNoTTY = "notty"
)

// JSON encodes env as indented JSON followed by a newline. This is the
// machine-readable form printed by `toolgate call --json`.
func JSON(env dispatch.Envelope) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(env); err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderEnvelope formats env for a human: a status line, then the data
// payload in a frame for successes.
func RenderEnvelope(tool string, env dispatch.Envelope) (string, error) {
	var b strings.Builder

	if !env.OK() {
		b.WriteString(ErrorStyle.Render("✗ " + tool + " failed"))
		if env.Error != nil {
			b.WriteString(" ")
			b.WriteString(KindStyle.Render(string(env.Error.Kind)))
			b.WriteString("\n  ")
			b.WriteString(env.Error.Message)
			if env.Error.Detail != "" {
				b.WriteString(SubtitleStyle.Render(" (" + env.Error.Detail + ")"))
			}
		}
		b.WriteString("\n")
		return b.String(), nil
	}

	b.WriteString(SuccessStyle.Render("✓ " + tool))
	b.WriteString("\n")

	data, err := json.MarshalIndent(env.Data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode data: %w", err)
	}
	b.WriteString(PaneStyle.Render(string(data)))
	b.WriteString("\n")
	return b.String(), nil
}

// ToolsMarkdown documents every tool and its arguments as markdown.
func ToolsMarkdown(tools []dispatch.ToolInfo) string {
	var b strings.Builder
	b.WriteString("# Tools\n\n")

	for _, tool := range tools {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", tool.Name, tool.Description)
		if len(tool.Args) == 0 {
			b.WriteString("_No arguments._\n\n")
			continue
		}

		b.WriteString("| Argument | Type | Required | Description |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, arg := range tool.Args {
			fmt.Fprintf(&b, "| `%s` | %s | %s | %s |\n",
				arg.Name, argType(arg), yesNo(arg.Required), escapeCell(arg.Description))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderMarkdown renders md with glamour using the given standard style
// and word wrap width.
func RenderMarkdown(md, style string, width int) (string, error) {
	if style == "" {
		style = StyleDark
	}
	if width <= 0 {
		width = 80
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create glamour renderer: %w", err)
	}

	out, err := renderer.Render(md)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}

func argType(arg validation.ArgSpec) string {
	if arg.Type == "" {
		return string(validation.TypeString)
	}
	return string(arg.Type)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
