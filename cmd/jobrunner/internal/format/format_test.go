package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type record struct {
	Name  string `json:"name" yaml:"name"`
	State string `json:"state" yaml:"state"`
}

func TestPrintJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	f := New(&stdout, &stderr, ModeJSON, false, false)

	require.NoError(t, f.PrintJSON(record{Name: "counter", State: "RUNNING"}))
	assert.Equal(t, "{\n  \"name\": \"counter\",\n  \"state\": \"RUNNING\"\n}\n", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestPrintYAML(t *testing.T) {
	var stdout, stderr bytes.Buffer
	f := New(&stdout, &stderr, ModeYAML, false, false)

	require.NoError(t, f.PrintYAML(record{Name: "counter", State: "COMPLETE"}))
	assert.Equal(t, "name: counter\nstate: COMPLETE\n", stdout.String())
}

func TestPrintData(t *testing.T) {
	headers := []string{"name", "state"}
	rows := [][]string{{"counter", "RUNNING"}}
	data := record{Name: "counter", State: "RUNNING"}

	tests := []struct {
		name  string
		mode  OutputMode
		check func(t *testing.T, out string)
	}{
		{
			name: "table",
			mode: ModeTable,
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "NAME")
				assert.Contains(t, out, "STATE")
				assert.Contains(t, out, "counter")
			},
		},
		{
			name: "json",
			mode: ModeJSON,
			check: func(t *testing.T, out string) {
				var got record
				require.NoError(t, json.Unmarshal([]byte(out), &got))
				assert.Equal(t, data, got)
			},
		},
		{
			name: "yaml",
			mode: ModeYAML,
			check: func(t *testing.T, out string) {
				var got record
				require.NoError(t, yaml.Unmarshal([]byte(out), &got))
				assert.Equal(t, data, got)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			f := New(&stdout, &stderr, tt.mode, false, false)
			require.NoError(t, f.PrintData(data, headers, rows))
			tt.check(t, stdout.String())
		})
	}
}

func TestPrintTable(t *testing.T) {
	headers := []string{"id", "state"}
	rows := [][]string{{"a", "RUNNING"}, {"b", "ERROR"}}

	t.Run("table", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.NoError(t, New(&stdout, &stderr, ModeTable, false, false).PrintTable(headers, rows))
		out := stdout.String()
		assert.Contains(t, out, "ID")
		assert.Contains(t, out, "ERROR")
	})

	t.Run("json converts rows to objects", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.NoError(t, New(&stdout, &stderr, ModeJSON, false, false).PrintTable(headers, rows))
		var items []map[string]string
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &items))
		require.Len(t, items, 2)
		assert.Equal(t, "b", items[1]["id"])
	})

	t.Run("yaml converts rows to objects", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.NoError(t, New(&stdout, &stderr, ModeYAML, false, false).PrintTable(headers, rows))
		var items []map[string]string
		require.NoError(t, yaml.Unmarshal(stdout.Bytes(), &items))
		require.Len(t, items, 2)
		assert.Equal(t, "RUNNING", items[0]["state"])
	})

	t.Run("color", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.NoError(t, New(&stdout, &stderr, ModeTable, false, true).PrintTable(headers, rows))
		assert.NotEmpty(t, stdout.String())
	})
}

func TestPrintSummary(t *testing.T) {
	tests := []struct {
		name         string
		mode         OutputMode
		quiet        bool
		expectStdout bool
		expectStderr bool
	}{
		{name: "table", mode: ModeTable, expectStdout: true},
		{name: "table quiet", mode: ModeTable, quiet: true},
		{name: "json goes to stderr", mode: ModeJSON, expectStderr: true},
		{name: "yaml goes to stderr", mode: ModeYAML, expectStderr: true},
		{name: "json quiet", mode: ModeJSON, quiet: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			f := New(&stdout, &stderr, tt.mode, tt.quiet, false)
			require.NoError(t, f.PrintSummary("Job finished"))

			if tt.expectStdout {
				assert.Contains(t, stdout.String(), "Job finished")
			} else {
				assert.Empty(t, stdout.String())
			}
			if tt.expectStderr {
				assert.Contains(t, stderr.String(), "Job finished")
			} else {
				assert.Empty(t, stderr.String())
			}
		})
	}
}

func TestPrintProgress(t *testing.T) {
	var stdout, stderr bytes.Buffer
	f := New(&stdout, &stderr, ModeTable, false, false)
	require.NoError(t, f.PrintProgress("3 of 10"))
	assert.Empty(t, stdout.String())
	assert.Equal(t, "3 of 10\n", stderr.String())

	stderr.Reset()
	require.NoError(t, New(&stdout, &stderr, ModeTable, true, false).PrintProgress("3 of 10"))
	assert.Empty(t, stderr.String())
}

func TestPrintError(t *testing.T) {
	boom := errors.New("operation failed")

	t.Run("table", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.NoError(t, New(&stdout, &stderr, ModeTable, false, false).PrintError(boom))
		assert.Empty(t, stdout.String())
		assert.Equal(t, "Error: operation failed\n", stderr.String())
	})

	t.Run("json", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.NoError(t, New(&stdout, &stderr, ModeJSON, false, false).PrintError(boom))
		var doc map[string]any
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &doc))
		assert.Equal(t, false, doc["success"])
		assert.Equal(t, "operation failed", doc["error"])
		assert.Empty(t, stderr.String())
	})

	t.Run("yaml", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.NoError(t, New(&stdout, &stderr, ModeYAML, false, false).PrintError(boom))
		assert.Contains(t, stdout.String(), "error: operation failed")
	})

	t.Run("nil", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.NoError(t, New(&stdout, &stderr, ModeJSON, false, false).PrintError(nil))
		assert.Empty(t, stdout.String())
		assert.Empty(t, stderr.String())
	})
}

func TestValidateMode(t *testing.T) {
	for _, mode := range []string{"json", "yaml", "table", "text", "JSON"} {
		assert.NoError(t, ValidateMode(mode), mode)
	}
	for _, mode := range []string{"xml", ""} {
		err := ValidateMode(mode)
		require.Error(t, err, mode)
		assert.Contains(t, err.Error(), "invalid output mode")
	}
}

func TestParseMode(t *testing.T) {
	tests := map[string]OutputMode{
		"json":    ModeJSON,
		"JSON":    ModeJSON,
		"yaml":    ModeYAML,
		"yml":     ModeYAML,
		"table":   ModeTable,
		"text":    ModeTable,
		"invalid": ModeTable,
		"":        ModeTable,
	}
	for input, want := range tests {
		assert.Equal(t, want, ParseMode(input), input)
	}
}

func TestFromCommand(t *testing.T) {
	cmd := &cobra.Command{Use: "status"}
	cmd.Flags().StringP("output", "o", "table", "")
	cmd.Flags().Bool("quiet", false, "")
	cmd.Flags().Bool("no-color", false, "")
	require.NoError(t, cmd.Flags().Set("output", "yaml"))
	require.NoError(t, cmd.Flags().Set("no-color", "true"))

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	f := FromCommand(cmd)
	assert.Equal(t, ModeYAML, f.Mode())
	require.NoError(t, f.PrintSummary("hidden from stdout"))
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "hidden from stdout")
}
