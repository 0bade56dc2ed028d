// Package format renders CLI output as tables, JSON or YAML.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// OutputMode defines the output format for CLI commands
type OutputMode string

const (
	ModeTable OutputMode = "table"
	ModeJSON  OutputMode = "json"
	ModeYAML  OutputMode = "yaml"
)

// Formatter provides consistent output formatting across CLI commands
type Formatter interface {
	// PrintData writes data as JSON or YAML, or the given table in table mode.
	PrintData(data any, headers []string, rows [][]string) error

	PrintJSON(data any) error
	PrintYAML(data any) error
	PrintTable(headers []string, rows [][]string) error

	// PrintSummary outputs a summary message (suppressed in quiet mode).
	PrintSummary(message string) error

	// PrintProgress writes a transient progress line to stderr.
	PrintProgress(message string) error

	// PrintError outputs an error to stderr (or a document to stdout in
	// machine-readable modes).
	PrintError(err error) error

	Mode() OutputMode
}

type formatter struct {
	stdout io.Writer
	stderr io.Writer
	mode   OutputMode
	quiet  bool
	color  bool
}

// New creates a new Formatter
func New(stdout, stderr io.Writer, mode OutputMode, quiet, color bool) Formatter {
	return &formatter{
		stdout: stdout,
		stderr: stderr,
		mode:   mode,
		quiet:  quiet,
		color:  color,
	}
}

func (f *formatter) Mode() OutputMode { return f.mode }

func (f *formatter) machine() bool {
	return f.mode == ModeJSON || f.mode == ModeYAML
}

func (f *formatter) PrintData(data any, headers []string, rows [][]string) error {
	switch f.mode {
	case ModeJSON:
		return f.PrintJSON(data)
	case ModeYAML:
		return f.PrintYAML(data)
	default:
		return f.PrintTable(headers, rows)
	}
}

func (f *formatter) PrintJSON(data any) error {
	enc := json.NewEncoder(f.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (f *formatter) PrintYAML(data any) error {
	enc := yaml.NewEncoder(f.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

func (f *formatter) PrintTable(headers []string, rows [][]string) error {
	if f.machine() {
		items := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			item := make(map[string]string, len(headers))
			for i, header := range headers {
				if i < len(row) {
					item[header] = row[i]
				}
			}
			items = append(items, item)
		}
		if f.mode == ModeYAML {
			return f.PrintYAML(items)
		}
		return f.PrintJSON(items)
	}

	w := tabwriter.NewWriter(f.stdout, 0, 0, 2, ' ', 0)

	headerLine := make([]string, len(headers))
	for i, h := range headers {
		headerLine[i] = strings.ToUpper(h)
		if f.color {
			headerLine[i] = color.New(color.Bold).Sprint(headerLine[i])
		}
	}
	if _, err := fmt.Fprintln(w, strings.Join(headerLine, "\t")); err != nil {
		return err
	}

	for _, row := range rows {
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}

	return w.Flush()
}

func (f *formatter) PrintSummary(message string) error {
	if f.quiet {
		return nil
	}

	// Summaries must not corrupt machine-readable stdout.
	if f.machine() {
		_, err := fmt.Fprintln(f.stderr, message)
		return err
	}

	if f.color {
		_, err := color.New(color.FgGreen).Fprintln(f.stdout, message)
		return err
	}

	_, err := fmt.Fprintln(f.stdout, message)
	return err
}

func (f *formatter) PrintProgress(message string) error {
	if f.quiet {
		return nil
	}
	if f.color {
		_, err := color.New(color.FgCyan).Fprintln(f.stderr, message)
		return err
	}
	_, err := fmt.Fprintln(f.stderr, message)
	return err
}

func (f *formatter) PrintError(err error) error {
	if err == nil {
		return nil
	}

	doc := map[string]any{
		"success": false,
		"error":   err.Error(),
	}
	switch f.mode {
	case ModeJSON:
		return f.PrintJSON(doc)
	case ModeYAML:
		return f.PrintYAML(doc)
	}

	var writeErr error
	if f.color {
		_, writeErr = color.New(color.FgRed).Fprintf(f.stderr, "Error: %v\n", err)
	} else {
		_, writeErr = fmt.Fprintf(f.stderr, "Error: %v\n", err)
	}

	return writeErr
}

// ValidateMode checks if the output mode is valid
func ValidateMode(mode string) error {
	switch OutputMode(strings.ToLower(mode)) {
	case ModeJSON, ModeYAML, ModeTable, "text":
		return nil
	default:
		return fmt.Errorf("invalid output mode: %s (must be 'table', 'json' or 'yaml')", mode)
	}
}

// ParseMode converts a string to OutputMode. Unknown values fall back to
// table.
func ParseMode(mode string) OutputMode {
	switch strings.ToLower(mode) {
	case "json":
		return ModeJSON
	case "yaml", "yml":
		return ModeYAML
	default:
		return ModeTable
	}
}
