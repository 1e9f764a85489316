package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/ordmap/pkg/config"
)

// ErrUnknownFormat is returned for an output format with no writer.
var ErrUnknownFormat = errors.New("unknown output format")

func renderTable(out io.Writer, header []any, rows [][]any, footer string) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(out)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	tbl.AppendHeader(header)

	for _, row := range rows {
		tbl.AppendRow(row)
	}

	if footer != "" {
		tbl.AppendFooter(table.Row{footer})
	}

	tbl.Render()
}

func writeStructured(out io.Writer, value any, format string) error {
	switch format {
	case config.FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		err := enc.Encode(value)
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
	case config.FormatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)

		err := enc.Encode(value)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		err = enc.Close()
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	return nil
}

// printVerdict reports the invariant check result on a single colored line.
func printVerdict(out io.Writer, verifyErr error) {
	if verifyErr != nil {
		color.New(color.FgRed, color.Bold).Fprintf(out, "invariants: FAIL (%v)\n", verifyErr)

		return
	}

	color.New(color.FgGreen, color.Bold).Fprintln(out, "invariants: PASS")
}
