package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/vmchat/internal/naming"
	"github.com/jbweber/vmchat/internal/output"
	"github.com/jbweber/vmchat/internal/status"
	"github.com/jbweber/vmchat/internal/vm"
)

var listDetailed bool

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List multipass instances",
	Long: `List multipass instances.

With --detailed, each instance is merged with its info entry so that
resource usage is shown.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var infoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Show details of a multipass instance",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

var statusCmd = &cobra.Command{
	Use:   "status [name]",
	Short: "Show the creation status of an instance",
	Long: `Show the creation status of an instance.

Creation status is kept in memory by the process that launched the
instance, so this is mostly useful inside chat. Without a name every
tracked creation is listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	listCmd.Flags().BoolVar(&listDetailed, "detailed", false, "include resource usage")
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*a.cfg.Executor.InfoTimeout.Std())
	defer cancel()

	list := a.manager.List
	if listDetailed {
		list = a.manager.ListDetailed
	}
	instances, err := list(ctx)
	if errors.Is(err, vm.ErrToolNotFound) {
		a.logger.Debug("multipass not installed", "error", err)
		instances = []vm.Instance{}
	} else if err != nil {
		return fmt.Errorf("failed to list instances: %w", err)
	}

	return printWith(cmd, func(f output.Formatter) (string, error) { return f.FormatInstances(instances) })
}

func runInfo(cmd *cobra.Command, args []string) error {
	name := args[0]
	if !naming.ValidResourceName(name) {
		return fmt.Errorf("invalid instance name %q", name)
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Executor.InfoTimeout.Std())
	defer cancel()

	inst, err := a.manager.Info(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to get info for %s: %w", name, err)
	}

	return printWith(cmd, func(f output.Formatter) (string, error) { return f.FormatInstance(inst) })
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	return printStatus(cmd, a.pipeline, args)
}

// recordSource is satisfied by *pipeline.Pipeline.
type recordSource interface {
	Status(name string) status.Record
	Records() []status.Record
}

func printStatus(cmd *cobra.Command, src recordSource, args []string) error {
	var records []status.Record
	if len(args) == 0 {
		records = src.Records()
	} else {
		records = []status.Record{src.Status(args[0])}
	}
	return printWith(cmd, func(f output.Formatter) (string, error) { return f.FormatRecords(records) })
}
