package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/jbweber/vmchat/internal/chat"
	"github.com/jbweber/vmchat/internal/config"
	"github.com/jbweber/vmchat/internal/status"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.LogConfig
		wantJSON bool
		wantErr  bool
	}{
		{name: "text", cfg: config.LogConfig{Level: "info", Format: "text"}},
		{name: "json", cfg: config.LogConfig{Level: "debug", Format: "json"}, wantJSON: true},
		{name: "uppercase json", cfg: config.LogConfig{Level: "info", Format: "JSON"}, wantJSON: true},
		{name: "default format", cfg: config.LogConfig{Level: "info"}},
		{name: "bad level", cfg: config.LogConfig{Level: "loud"}, wantErr: true},
		{name: "bad format", cfg: config.LogConfig{Level: "info", Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := newLogger(tt.cfg, &buf)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			logger.Info("hello", "name", "web1")
			got := buf.String()
			if isJSON := strings.HasPrefix(got, "{"); isJSON != tt.wantJSON {
				t.Errorf("output = %q, want JSON %v", got, tt.wantJSON)
			}
			if !strings.Contains(got, "web1") {
				t.Errorf("output = %q, want attribute logged", got)
			}
		})
	}
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LogConfig{Level: "warn"}, &buf)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}
	if !logger.Enabled(t.Context(), slog.LevelWarn) {
		t.Error("warn not enabled at warn level")
	}
}

func TestSubmitText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reply.md")
	if err := os.WriteFile(path, []byte("multipass list"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		file  string
		args  []string
		stdin string
		want  string
	}{
		{name: "args", args: []string{"multipass", "start", "web1"}, want: "multipass start web1"},
		{name: "file", file: path, args: []string{"ignored"}, want: "multipass list"},
		{name: "stdin", stdin: "multipass info web1\n", want: "multipass info web1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			submitFile = tt.file
			t.Cleanup(func() { submitFile = "" })

			cmd := &cobra.Command{}
			cmd.SetIn(strings.NewReader(tt.stdin))

			got, err := submitText(cmd, tt.args)
			if err != nil {
				t.Fatalf("submitText() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("submitText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintExecuted(t *testing.T) {
	tests := []struct {
		name string
		e    chat.Executed
		want []string
	}{
		{
			name: "success",
			e:    chat.Executed{Command: "multipass start web1", Stdout: "Starting web1"},
			want: []string{"✓ multipass start web1", "  Starting web1"},
		},
		{
			name: "failure",
			e:    chat.Executed{Command: "rm -rf /", Stderr: "not a valid multipass command", ReturnCode: chat.RejectedExitCode},
			want: []string{"✗ rm -rf / (exit -1)", "  not a valid multipass command"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printExecuted(&buf, tt.e)

			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("printExecuted() = %q, want it to contain %q", buf.String(), w)
				}
			}
		})
	}
}

func TestIndent(t *testing.T) {
	if got := indent("a\nb", "  "); got != "  a\n  b" {
		t.Errorf("indent() = %q, want %q", got, "  a\n  b")
	}
}

func TestPrintRecords(t *testing.T) {
	var buf bytes.Buffer
	printRecords(&buf, []status.Record{
		{Name: "web1", State: status.StateCreating, Message: `Creating VM "web1"`},
		{Name: "db1", State: status.StateError, Message: "failed to create VM: no space"},
	})

	got := buf.String()
	for _, w := range []string{"web1", "creating", "db1", "error", "no space"} {
		if !strings.Contains(got, w) {
			t.Errorf("printRecords() = %q, want it to contain %q", got, w)
		}
	}

	buf.Reset()
	printRecords(&buf, nil)
	if !strings.Contains(buf.String(), "No creations tracked") {
		t.Errorf("printRecords(nil) = %q", buf.String())
	}
}

func TestStateStyle(t *testing.T) {
	tests := []struct {
		state status.State
		want  string
	}{
		{status.StateCompleted, styleOK.Render("x")},
		{status.StateCreating, styleWarn.Render("x")},
		{status.StateError, styleErr.Render("x")},
		{status.StateUnknown, styleMuted.Render("x")},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := stateStyle(tt.state).Render("x"); got != tt.want {
				t.Errorf("stateStyle(%s).Render() = %q, want %q", tt.state, got, tt.want)
			}
		})
	}
}
