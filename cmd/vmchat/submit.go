package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jbweber/vmchat/internal/output"
	"github.com/jbweber/vmchat/internal/status"
)

var (
	submitFile   string
	submitNoWait bool
)

var submitCmd = &cobra.Command{
	Use:   "submit [text...]",
	Short: "Run the multipass commands found in text",
	Long: `Run the multipass commands found in text.

Text is taken from the arguments, from --file, or from stdin when neither
is given. Fenced code blocks are searched first; without them every line
starting with "multipass" is a candidate.

Launches run in the background. By default submit waits for them and
prints their final lifecycle records.`,
	Example: `  # Run a single command
  vmchat submit multipass start web1

  # Run the commands in a saved reply
  vmchat submit -f reply.md

  # Start launches without waiting for them
  echo 'multipass launch --name web1' | vmchat submit --no-wait`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitFile, "file", "f", "", "read text from a file")
	submitCmd.Flags().BoolVar(&submitNoWait, "no-wait", false, "do not wait for launches to finish")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	text, err := submitText(cmd, args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no text to submit")
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Executor.CreateTimeout.Std()+a.cfg.Executor.SettleDelay.Std()+a.cfg.Executor.InfoTimeout.Std())
	defer cancel()

	sub := a.pipeline.Submit(ctx, text)
	if err := printWith(cmd, func(f output.Formatter) (string, error) { return f.FormatSubmission(sub) }); err != nil {
		return err
	}

	var launched []string
	for _, r := range sub.Results {
		if r.TaskID != "" {
			launched = append(launched, r.Name)
		}
	}
	if submitNoWait || len(launched) == 0 {
		return nil
	}

	if err := a.pipeline.Wait(ctx); err != nil {
		return fmt.Errorf("failed waiting for launches: %w", err)
	}

	records := make([]status.Record, 0, len(launched))
	for _, name := range launched {
		records = append(records, a.pipeline.Status(name))
	}
	if outputFormat == string(output.FormatTable) {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	if err := printWith(cmd, func(f output.Formatter) (string, error) { return f.FormatRecords(records) }); err != nil {
		return err
	}

	for _, rec := range records {
		if rec.State == status.StateError {
			return fmt.Errorf("creation of %s failed: %s", rec.Name, rec.Message)
		}
	}
	return nil
}

func submitText(cmd *cobra.Command, args []string) (string, error) {
	switch {
	case submitFile != "":
		data, err := os.ReadFile(submitFile)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", submitFile, err)
		}
		return string(data), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
}
