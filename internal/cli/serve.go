package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pranav/chatterbox/internal/config"
	"github.com/pranav/chatterbox/internal/logger"
	"github.com/pranav/chatterbox/internal/server"
	"github.com/pranav/chatterbox/pkg/completion"
	"github.com/pranav/chatterbox/pkg/orchestrator"
	"github.com/pranav/chatterbox/pkg/session"
	"github.com/pranav/chatterbox/pkg/toolexecutor"
	"github.com/pranav/chatterbox/pkg/websearch"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
	})

	store := session.New(session.Config{
		SystemPrompt: systemPrompt,
		TTL:          cfg.Session.TTL,
	})

	executor := toolexecutor.New()
	searchClient := websearch.NewClient(cfg.Tavily.APIKey)
	if err := executor.Register(websearch.Tool(searchClient)); err != nil {
		return fmt.Errorf("failed to register search tool: %w", err)
	}

	completionClient := completion.New(completion.Config{
		APIKey:      cfg.Groq.APIKey,
		BaseURL:     cfg.Groq.BaseURL,
		Model:       cfg.Groq.Model,
		Temperature: cfg.Groq.Temperature,
		MaxTokens:   cfg.Groq.MaxTokens,
		Tools:       executor.Definitions(),
	})

	orch, err := orchestrator.New(orchestrator.Config{
		Store:      store,
		Completion: completionClient,
		Tools:      executor,
		MaxTurns:   cfg.Orchestrator.MaxTurns,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("failed to build orchestrator: %w", err)
	}

	srv, err := server.New(server.Config{
		Port:      cfg.Server.Port,
		Generator: orch,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	// Expired threads are dropped lazily on load; the scheduled sweep
	// just keeps memory from accumulating for abandoned threads.
	if cfg.Session.SweepInterval > 0 {
		scheduler := cron.New()
		spec := fmt.Sprintf("@every %s", cfg.Session.SweepInterval)
		if _, err := scheduler.AddFunc(spec, func() { store.Sweep() }); err != nil {
			return fmt.Errorf("failed to schedule session sweep: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
