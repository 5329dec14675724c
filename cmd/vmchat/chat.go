package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jbweber/vmchat/internal/chat"
	"github.com/jbweber/vmchat/internal/output"
	"github.com/jbweber/vmchat/internal/session"
	"github.com/jbweber/vmchat/internal/status"
)

var (
	colorSuccess = lipgloss.Color("#50C878")
	colorWarning = lipgloss.Color("#FFB347")
	colorError   = lipgloss.Color("#FF6961")
	colorMuted   = lipgloss.Color("#808080")
	colorAccent  = lipgloss.Color("#7B68EE")

	styleOK     = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleWarn   = lipgloss.NewStyle().Foreground(colorWarning)
	styleErr    = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleMuted  = lipgloss.NewStyle().Foreground(colorMuted)
	styleAccent = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
)

const chatPrompt = "vmchat> "

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the model and run the commands it suggests",
	Long: `Chat with the model and run the commands it suggests.

Every reply is searched for multipass commands, which are run as they
would be by submit. Launches continue in the background.

Besides plain messages the prompt accepts:
  /status [name]   show creation status
  /tasks           list launches started in this session
  /reset           forget the conversation
  exit, quit       leave, waiting for running launches`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

// repl is one interactive chat session.
type repl struct {
	cmd     *cobra.Command
	a       *app
	svc     *chat.Service
	store   *session.Store
	session string
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	provider, err := a.provider()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	if err := provider.Check(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), styleErr.Render("✗ "+err.Error()))
	}

	store := session.NewStore(a.cfg.LLM.SystemPrompt, a.cfg.Chat.HistoryLimit)
	r := &repl{
		cmd:     cmd,
		a:       a,
		svc:     chat.NewService(provider, store, a.pipeline, a.logger),
		store:   store,
		session: uuid.NewString(),
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", styleAccent.Render("vmchat"), styleMuted.Render("model "+provider.Model()+", type exit to quit"))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          styleAccent.Render(chatPrompt),
		HistoryFile:     filepath.Join(os.TempDir(), ".vmchat_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		a.logger.Debug("readline unavailable, using plain input", "error", err)
		r.simpleLoop(ctx)
	} else {
		defer rl.Close()
		r.readlineLoop(ctx, rl)
	}

	return r.finish(ctx)
}

func (r *repl) readlineLoop(ctx context.Context, rl *readline.Instance) {
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return
			}
			fmt.Fprintf(r.cmd.ErrOrStderr(), "Error reading input: %v\n", err)
			continue
		}
		if !r.handle(ctx, line) {
			return
		}
	}
}

func (r *repl) simpleLoop(ctx context.Context) {
	scanner := bufio.NewScanner(r.cmd.InOrStdin())
	for {
		fmt.Fprint(r.cmd.OutOrStdout(), chatPrompt)
		if !scanner.Scan() {
			return
		}
		if !r.handle(ctx, scanner.Text()) {
			return
		}
	}
}

// handle processes one input line and reports whether to keep reading.
func (r *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	if ctx.Err() != nil {
		return false
	}

	out := r.cmd.OutOrStdout()
	fields := strings.Fields(line)
	switch fields[0] {
	case "exit", "quit":
		return false
	case "/status":
		if outputFormat != string(output.FormatTable) {
			if err := printStatus(r.cmd, r.a.pipeline, fields[1:]); err != nil {
				fmt.Fprintln(out, styleErr.Render("✗ "+err.Error()))
			}
			return true
		}
		records := r.a.pipeline.Records()
		if len(fields) > 1 {
			records = []status.Record{r.a.pipeline.Status(fields[1])}
		}
		printRecords(out, records)
		return true
	case "/tasks":
		tasks := r.a.pipeline.Tasks()
		if err := printWith(r.cmd, func(f output.Formatter) (string, error) { return f.FormatTasks(tasks) }); err != nil {
			fmt.Fprintln(out, styleErr.Render("✗ "+err.Error()))
		}
		return true
	case "/reset":
		r.store.Reset(r.session)
		fmt.Fprintln(out, styleMuted.Render("Conversation cleared"))
		return true
	}

	reply, err := r.svc.Send(ctx, r.session, line)
	if err != nil {
		fmt.Fprintln(out, styleErr.Render("✗ "+err.Error()))
		return true
	}

	fmt.Fprintf(out, "\n%s\n\n", reply.Response)
	for _, e := range reply.Executed {
		printExecuted(out, e)
	}
	return true
}

func printExecuted(w io.Writer, e chat.Executed) {
	if e.ReturnCode == 0 {
		fmt.Fprintln(w, styleOK.Render("✓ "+e.Command))
	} else {
		fmt.Fprintln(w, styleErr.Render(fmt.Sprintf("✗ %s (exit %d)", e.Command, e.ReturnCode)))
	}
	for _, s := range []string{e.Stdout, e.Stderr} {
		if s = strings.TrimSpace(s); s != "" {
			fmt.Fprintln(w, styleMuted.Render(indent(s, "  ")))
		}
	}
}

// printRecords writes one line per record with its state coloured.
func printRecords(w io.Writer, records []status.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, styleMuted.Render("No creations tracked"))
		return
	}
	for _, rec := range records {
		fmt.Fprintf(w, "%s %s %s\n", rec.Name, stateStyle(rec.State).Render(string(rec.State)), styleMuted.Render(rec.Message))
	}
}

func stateStyle(s status.State) lipgloss.Style {
	switch s {
	case status.StateCompleted:
		return styleOK
	case status.StateCreating:
		return styleWarn
	case status.StateError:
		return styleErr
	default:
		return styleMuted
	}
}

// finish waits for launches still running when the session ends.
func (r *repl) finish(ctx context.Context) error {
	running := 0
	for _, t := range r.a.pipeline.Tasks() {
		if !t.Done {
			running++
		}
	}
	if running == 0 {
		return nil
	}

	fmt.Fprintln(r.cmd.OutOrStdout(), styleMuted.Render(fmt.Sprintf("Waiting for %d launch(es) to finish, press Ctrl+C to abandon", running)))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	if err := r.a.pipeline.Wait(ctx); err != nil {
		return fmt.Errorf("abandoned running launches: %w", err)
	}
	return printStatus(r.cmd, r.a.pipeline, nil)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
