// Package output provides formatters for displaying vmchat results
// in various formats (table, YAML, JSON).
package output

import (
	"fmt"

	"github.com/jbweber/vmchat/internal/health"
	"github.com/jbweber/vmchat/internal/pipeline"
	"github.com/jbweber/vmchat/internal/status"
	"github.com/jbweber/vmchat/internal/vm"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// Formatter formats vmchat results for output.
type Formatter interface {
	// FormatInstance formats a single multipass instance.
	FormatInstance(inst vm.Instance) (string, error)

	// FormatInstances formats a list of multipass instances.
	FormatInstances(instances []vm.Instance) (string, error)

	// FormatRecords formats lifecycle records.
	FormatRecords(records []status.Record) (string, error)

	// FormatTasks formats creation task snapshots.
	FormatTasks(tasks []pipeline.TaskStatus) (string, error)

	// FormatSubmission formats the result of running text through the pipeline.
	FormatSubmission(sub pipeline.Submission) (string, error)

	// FormatHealth formats a health report.
	FormatHealth(report health.Report) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table format.
	NoHeaders bool
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	f := Format(format)
	switch f {
	case FormatTable, FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: table, yaml, json)", format)
	}
}
