package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jbweber/vmchat/internal/chat"
	"github.com/jbweber/vmchat/internal/server"
	"github.com/jbweber/vmchat/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API.

The server exposes chat, command submission, instance queries and
creation tracking. On SIGINT or SIGTERM it stops accepting requests and
waits for running creations before exiting.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	provider, err := a.provider()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := provider.Check(ctx); err != nil {
		a.logger.Warn("Model not available, chat requests will fail until it is", "model", provider.Model(), "error", err)
	}

	store := session.NewStore(a.cfg.LLM.SystemPrompt, a.cfg.Chat.HistoryLimit)
	srv := server.New(server.Deps{
		Pipeline:  a.pipeline,
		Instances: a.manager,
		Chat:      chat.NewService(provider, store, a.pipeline, a.logger),
		Health:    a.healthChecker(provider),
	}, a.cfg.Server, version, a.logger)

	return srv.Run(ctx)
}
