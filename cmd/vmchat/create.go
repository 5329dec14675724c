package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/vmchat/internal/loader"
	"github.com/jbweber/vmchat/internal/output"
	"github.com/jbweber/vmchat/internal/pipeline"
	"github.com/jbweber/vmchat/internal/status"
)

var (
	createFile string
	createSpec loader.Spec
)

var createCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Launch instances from flags or a YAML file",
	Long: `Launch instances from flags or a YAML file.

A file may hold several specs separated by "---". Each spec has a name
and optional image, cpus, memory and disk. Launches run concurrently;
create waits for all of them and prints their lifecycle records.`,
	Example: `  # Launch one instance
  vmchat create web1 --cpus 2 --memory 4G

  # Launch every instance in a file
  vmchat create -f vms.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVarP(&createFile, "file", "f", "", "YAML file of launch specs")
	createCmd.Flags().StringVar(&createSpec.Image, "image", "", "release or image to launch")
	createCmd.Flags().StringVar(&createSpec.CPUs, "cpus", "", "number of CPUs")
	createCmd.Flags().StringVar(&createSpec.Memory, "memory", "", "memory size, e.g. 4G")
	createCmd.Flags().StringVar(&createSpec.Disk, "disk", "", "disk size, e.g. 20G")
}

func runCreate(cmd *cobra.Command, args []string) error {
	var specs []loader.Spec
	switch {
	case createFile != "" && len(args) > 0:
		return fmt.Errorf("give either a name or --file, not both")
	case createFile != "":
		loaded, err := loader.LoadFromFile(createFile)
		if err != nil {
			return err
		}
		specs = loaded
	case len(args) == 1:
		spec := createSpec
		spec.Name = args[0]
		specs = []loader.Spec{spec}
	default:
		return fmt.Errorf("a name or --file is required")
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Executor.CreateTimeout.Std()+a.cfg.Executor.SettleDelay.Std()+a.cfg.Executor.InfoTimeout.Std())
	defer cancel()

	var started []string
	for _, spec := range specs {
		text, err := spec.CommandLine()
		if err != nil {
			return err
		}
		c, rej := a.pipeline.Prepare(text)
		if rej != nil {
			return fmt.Errorf("%s: %w", spec.Name, rej)
		}
		res, err := a.pipeline.Dispatch(ctx, c)
		if err != nil {
			return err
		}
		if res.Status == pipeline.StatusStarted {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Launching %s (task %s)\n", res.Name, res.TaskID)
			started = append(started, res.Name)
		}
	}

	if err := a.pipeline.Wait(ctx); err != nil {
		return fmt.Errorf("failed waiting for launches: %w", err)
	}

	records := make([]status.Record, 0, len(started))
	failed := 0
	for _, name := range started {
		rec := a.pipeline.Status(name)
		if rec.State == status.StateError {
			failed++
		}
		records = append(records, rec)
	}
	if err := printWith(cmd, func(f output.Formatter) (string, error) { return f.FormatRecords(records) }); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d launches failed", failed, len(records))
	}
	return nil
}
