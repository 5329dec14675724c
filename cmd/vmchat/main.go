package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jbweber/vmchat/internal/output"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Global flags.
var (
	configPath   string
	logLevel     string
	logFormat    string
	outputFormat string
	noHeaders    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vmchat",
	Short: "vmchat - chat-driven Multipass VM management",
	Long: `vmchat turns chat replies and free-form text into Multipass operations.

Commands found in text are extracted, normalized and validated before they
are run. Launches run in the background and their progress is tracked per
instance; every other operation runs to completion.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return output.ValidateFormat(outputFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (default $VMCHAT_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", string(output.FormatTable), "output format: table, yaml or json")
	rootCmd.PersistentFlags().BoolVar(&noHeaders, "no-headers", false, "omit table headers")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the vmchat version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "vmchat %s\n", rootCmd.Version)
		return err
	},
}
