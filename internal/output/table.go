package output

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jbweber/vmchat/internal/health"
	"github.com/jbweber/vmchat/internal/pipeline"
	"github.com/jbweber/vmchat/internal/status"
	"github.com/jbweber/vmchat/internal/vm"
)

// TableFormatter formats results as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// table collects tab-separated rows and renders them aligned.
type table struct {
	buf bytes.Buffer
	w   *tabwriter.Writer
}

func (f *TableFormatter) newTable(headers ...string) *table {
	t := &table{}
	t.w = tabwriter.NewWriter(&t.buf, 0, 0, 2, ' ', 0)
	if !f.NoHeaders {
		t.row(headers...)
	}
	return t
}

func (t *table) row(cells ...string) {
	_, _ = fmt.Fprintln(t.w, strings.Join(cells, "\t"))
}

func (t *table) String() string {
	_ = t.w.Flush()
	return t.buf.String()
}

// FormatInstance formats a single instance as a table row.
func (f *TableFormatter) FormatInstance(inst vm.Instance) (string, error) {
	return f.FormatInstances([]vm.Instance{inst})
}

// FormatInstances formats instances as a table.
func (f *TableFormatter) FormatInstances(instances []vm.Instance) (string, error) {
	if len(instances) == 0 {
		return "No VMs found\n", nil
	}

	t := f.newTable("NAME", "STATE", "IPV4", "RELEASE", "CPUS", "MEMORY", "DISK")
	for _, inst := range instances {
		s := inst.Summary()
		ip := "-"
		if len(s.IPv4) > 0 {
			ip = strings.Join(s.IPv4, ",")
		}
		t.row(s.Name, s.State, ip, s.Release, s.CPUs, s.Memory, s.Disk)
	}
	return t.String(), nil
}

// FormatRecords formats lifecycle records as a table.
func (f *TableFormatter) FormatRecords(records []status.Record) (string, error) {
	if len(records) == 0 {
		return "No creations tracked\n", nil
	}

	t := f.newTable("NAME", "STATUS", "MESSAGE", "UPDATED")
	for _, r := range records {
		t.row(r.Name, string(r.State), r.Message, ago(r.UpdatedAt))
	}
	return t.String(), nil
}

// FormatTasks formats task snapshots as a table.
func (f *TableFormatter) FormatTasks(tasks []pipeline.TaskStatus) (string, error) {
	if len(tasks) == 0 {
		return "No tasks found\n", nil
	}

	t := f.newTable("ID", "NAME", "STATUS", "DONE", "AGE")
	for _, ts := range tasks {
		t.row(ts.ID, ts.Name, string(ts.Record.State), fmt.Sprintf("%t", ts.Done), ago(ts.CreatedAt))
	}
	return t.String(), nil
}

// FormatSubmission formats one row per extracted command.
func (f *TableFormatter) FormatSubmission(sub pipeline.Submission) (string, error) {
	if !sub.Accepted {
		return "No multipass command found\n", nil
	}

	t := f.newTable("COMMAND", "OPERATION", "NAME", "RESULT")
	for _, r := range sub.Results {
		cmd := r.Canonical
		if cmd == "" {
			cmd = r.Input
		}
		t.row(cmd, dash(string(r.Operation)), dash(r.Name), describeResult(r))
	}
	return t.String(), nil
}

// FormatHealth formats one row per check.
func (f *TableFormatter) FormatHealth(report health.Report) (string, error) {
	t := f.newTable("CHECK", "OK", "DETAIL")

	mp := report.Multipass
	detail := mp.Error
	if mp.Available {
		detail = strings.TrimSpace(mp.Path + " " + mp.Version)
		if mp.Error != "" {
			detail += " (" + mp.Error + ")"
		}
	}
	t.row("multipass", fmt.Sprintf("%t", mp.Available), detail)

	if m := report.Model; m != nil {
		detail := m.Name
		if m.Error != "" {
			detail = m.Error
		}
		t.row("model", fmt.Sprintf("%t", m.OK), detail)
	}

	if l := report.Libvirt; l != nil {
		detail := l.Error
		if l.Host != nil {
			detail = fmt.Sprintf("%s libvirt %s", l.Host.Hostname, l.Host.LibVersion)
		}
		t.row("libvirt", fmt.Sprintf("%t", l.OK), detail)
	}

	return t.String(), nil
}

func describeResult(r pipeline.Result) string {
	switch {
	case r.Rejection != nil:
		return "rejected: " + r.Rejection.Error()
	case r.Error != "":
		return "error: " + r.Error
	case r.Status == pipeline.StatusStarted:
		return "started (task " + r.TaskID + ")"
	case r.Outcome != nil:
		if r.Outcome.OK() {
			return "ok"
		}
		msg := strings.TrimSpace(r.Outcome.Message())
		if i := strings.IndexByte(msg, '\n'); i >= 0 {
			msg = msg[:i]
		}
		return fmt.Sprintf("%s (exit %d): %s", r.Outcome.Kind, r.Outcome.ExitCode, msg)
	default:
		return "-"
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return formatAge(time.Since(t))
}

// formatAge formats a duration as a human-readable age string.
// Examples: "5s", "2m", "3h", "4d", "2w", "1y"
func formatAge(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}

	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}

	weeks := days / 7
	// Less than ~2 months (8 weeks)
	if weeks < 8 {
		return fmt.Sprintf("%dw", weeks)
	}

	years := days / 365
	if years > 0 {
		return fmt.Sprintf("%dy", years)
	}

	return fmt.Sprintf("%dd", days)
}
