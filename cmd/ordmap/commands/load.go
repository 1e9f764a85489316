package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ordmap/pkg/config"
	"github.com/Sumatoshi-tech/ordmap/pkg/observability"
	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
)

const (
	loadCmdUse   = "load <file|->"
	loadCmdShort = "Load key/value entries into a tree and print them in order"
	loadCmdLong  = `Load reads entries from a file, or from stdin when the argument is "-".

Two input formats are accepted:
  key<TAB>value lines of up to 16 MiB (blank lines and # comments are skipped)
  a JSON array of {"key": "...", "value": "..."} objects

Duplicate keys keep their first value and are reported; with --strict the
first duplicate aborts the load. The tree is verified before printing.`
	stdinArg = "-"
)

// ErrDuplicateInput is returned by load --strict on the first repeated key.
var ErrDuplicateInput = errors.New("duplicate key in input")

type loadOptions struct {
	strict bool
	format string
}

// loadReport is the result of a load, as printed in json and yaml formats.
type loadReport struct {
	Count      int         `json:"count"      yaml:"count"`
	Height     int         `json:"height"     yaml:"height"`
	Duplicates []string    `json:"duplicates" yaml:"duplicates"`
	Entries    []loadEntry `json:"entries"    yaml:"entries"`
}

// NewLoadCommand creates the load subcommand.
func NewLoadCommand(global *GlobalFlags) *cobra.Command {
	var opts loadOptions

	cmd := &cobra.Command{
		Use:   loadCmdUse,
		Short: loadCmdShort,
		Long:  loadCmdLong,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.load()
			if err != nil {
				return err
			}

			opts.format = cfg.Output.Format

			data, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			logger := newLogger(cfg, observability.ModeCLI, cmd.ErrOrStderr())

			report, err := runLoad(cmd.Context(), logger, data, opts)
			if err != nil {
				return err
			}

			return writeLoadReport(cmd.OutOrStdout(), cmd.ErrOrStderr(), report, opts.format)
		},
	}

	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail on the first duplicate key")

	return cmd
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == stdinArg {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}

		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	return data, nil
}

func runLoad(ctx context.Context, logger *slog.Logger, data []byte, opts loadOptions) (*loadReport, error) {
	entries, err := parseEntries(data)
	if err != nil {
		return nil, err
	}

	tree := rbtree.New(rbtree.WithLogger[string, string](logger))
	report := &loadReport{Duplicates: []string{}}

	for _, entry := range entries {
		err = tree.Insert(entry.Key, entry.Value)

		switch {
		case err == nil:
		case errors.Is(err, rbtree.ErrDuplicateKey):
			if opts.strict {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateInput, entry.Key)
			}

			logger.WarnContext(ctx, "duplicate key skipped", "key", entry.Key)
			report.Duplicates = append(report.Duplicates, entry.Key)
		default:
			return nil, fmt.Errorf("insert %q: %w", entry.Key, err)
		}
	}

	err = tree.Verify()
	if err != nil {
		return nil, err
	}

	report.Count = tree.Len()
	report.Height = tree.Height()
	report.Entries = make([]loadEntry, 0, tree.Len())

	for key, value := range tree.All() {
		report.Entries = append(report.Entries, loadEntry{Key: key, Value: value})
	}

	logger.DebugContext(ctx, "load complete",
		"entries", report.Count, "duplicates", len(report.Duplicates), "height", report.Height)

	return report, nil
}

func writeLoadReport(out, errOut io.Writer, report *loadReport, format string) error {
	if format != config.FormatTable {
		return writeStructured(out, report, format)
	}

	rows := make([][]any, 0, len(report.Entries))
	for idx, entry := range report.Entries {
		rows = append(rows, []any{idx + 1, entry.Key, entry.Value})
	}

	footer := fmt.Sprintf("Total: %d entries, height %d", report.Count, report.Height)
	if len(report.Duplicates) > 0 {
		footer += fmt.Sprintf(", %d duplicates skipped", len(report.Duplicates))
	}

	renderTable(out, []any{"#", "KEY", "VALUE"}, rows, footer)
	printVerdict(errOut, nil)

	return nil
}
