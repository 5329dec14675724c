package output

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/vmchat/internal/health"
	"github.com/jbweber/vmchat/internal/pipeline"
	"github.com/jbweber/vmchat/internal/status"
	"github.com/jbweber/vmchat/internal/vm"
)

// YAMLFormatter formats results as YAML.
type YAMLFormatter struct{}

// FormatInstance formats a single instance as YAML.
func (f *YAMLFormatter) FormatInstance(inst vm.Instance) (string, error) {
	data, err := yaml.Marshal(inst)
	if err != nil {
		return "", fmt.Errorf("failed to marshal instance %s to YAML: %w", inst.Name(), err)
	}

	return string(data), nil
}

// FormatInstances formats instances as YAML.
// Outputs as a YAML stream (multiple documents separated by ---).
func (f *YAMLFormatter) FormatInstances(instances []vm.Instance) (string, error) {
	if len(instances) == 0 {
		return "", nil
	}

	var buf bytes.Buffer

	for i, inst := range instances {
		data, err := yaml.Marshal(inst)
		if err != nil {
			return "", fmt.Errorf("failed to marshal instance %s to YAML: %w", inst.Name(), err)
		}

		// Add document separator between instances (but not before the first one)
		if i > 0 {
			buf.WriteString("---\n")
		}

		buf.Write(data)
	}

	return buf.String(), nil
}

// FormatRecords formats records as a YAML sequence.
func (f *YAMLFormatter) FormatRecords(records []status.Record) (string, error) {
	if len(records) == 0 {
		return "[]\n", nil
	}
	return marshalYAML("records", records)
}

// FormatTasks formats task snapshots as a YAML sequence.
func (f *YAMLFormatter) FormatTasks(tasks []pipeline.TaskStatus) (string, error) {
	if len(tasks) == 0 {
		return "[]\n", nil
	}
	return marshalYAML("tasks", tasks)
}

// FormatSubmission formats a submission as YAML.
func (f *YAMLFormatter) FormatSubmission(sub pipeline.Submission) (string, error) {
	return marshalYAML("submission", sub)
}

// FormatHealth formats a health report as YAML.
func (f *YAMLFormatter) FormatHealth(report health.Report) (string, error) {
	return marshalYAML("health report", report)
}

func marshalYAML(what string, v any) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(v); err != nil {
		return "", fmt.Errorf("failed to marshal %s to YAML: %w", what, err)
	}
	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("failed to marshal %s to YAML: %w", what, err)
	}

	return buf.String(), nil
}
