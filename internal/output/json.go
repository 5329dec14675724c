package output

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jbweber/vmchat/internal/health"
	"github.com/jbweber/vmchat/internal/pipeline"
	"github.com/jbweber/vmchat/internal/status"
	"github.com/jbweber/vmchat/internal/vm"
)

// JSONFormatter formats results as indented JSON.
type JSONFormatter struct{}

// FormatInstance formats a single instance as its multipass JSON object.
func (f *JSONFormatter) FormatInstance(inst vm.Instance) (string, error) {
	return marshalJSON("instance", inst)
}

// FormatInstances formats instances as a JSON array.
func (f *JSONFormatter) FormatInstances(instances []vm.Instance) (string, error) {
	if len(instances) == 0 {
		return "[]\n", nil
	}
	return marshalJSON("instances", instances)
}

// FormatRecords formats records as a JSON array.
func (f *JSONFormatter) FormatRecords(records []status.Record) (string, error) {
	if len(records) == 0 {
		return "[]\n", nil
	}
	return marshalJSON("records", records)
}

// FormatTasks formats task snapshots as a JSON array.
func (f *JSONFormatter) FormatTasks(tasks []pipeline.TaskStatus) (string, error) {
	if len(tasks) == 0 {
		return "[]\n", nil
	}
	return marshalJSON("tasks", tasks)
}

// FormatSubmission formats a submission as a JSON object.
func (f *JSONFormatter) FormatSubmission(sub pipeline.Submission) (string, error) {
	return marshalJSON("submission", sub)
}

// FormatHealth formats a health report as a JSON object.
func (f *JSONFormatter) FormatHealth(report health.Report) (string, error) {
	return marshalJSON("health report", report)
}

// marshalJSON encodes v without escaping HTML, so command text such as
// "a && b" stays readable.
func marshalJSON(what string, v any) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(v); err != nil {
		return "", fmt.Errorf("failed to marshal %s to JSON: %w", what, err)
	}

	return buf.String(), nil
}
