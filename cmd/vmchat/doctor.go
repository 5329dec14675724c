package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/vmchat/internal/health"
	"github.com/jbweber/vmchat/internal/output"
)

var doctorSkipModel bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that multipass and the model are available",
	Long: `Check that multipass and the model are available.

When multipass.libvirt_socket is configured the libvirt daemon behind
multipass is probed as well. Exits non-zero when any check fails.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorSkipModel, "skip-model", false, "do not check the model")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	var model health.ModelChecker
	if !doctorSkipModel {
		provider, err := a.provider()
		if err != nil {
			return err
		}
		model = provider
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Executor.InfoTimeout.Std())
	defer cancel()

	report := a.healthChecker(model).Check(ctx)
	if err := printWith(cmd, func(f output.Formatter) (string, error) { return f.FormatHealth(report) }); err != nil {
		return err
	}
	if !report.OK {
		return fmt.Errorf("vmchat is %s", report.Status)
	}
	return nil
}
