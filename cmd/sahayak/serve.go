package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sahayak-app/sahayak/pkg/assist"
	"github.com/sahayak-app/sahayak/pkg/config"
	"github.com/sahayak-app/sahayak/pkg/intake"
	"github.com/sahayak-app/sahayak/pkg/janitor"
	"github.com/sahayak-app/sahayak/pkg/logger"
	"github.com/sahayak-app/sahayak/pkg/providers"
	"github.com/sahayak-app/sahayak/pkg/server"
	"github.com/sahayak-app/sahayak/pkg/store"
)

// app wires the shared runtime: config, store, provider, and the two turn
// services.
type app struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	provider providers.LLMProvider
	intake   *intake.Service
	chat     *assist.Service
}

func newApp(debug bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	logger.Init(level, cfg.Log.JSON)

	st, err := store.NewSQLiteStore(cfg.StorePath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	provider, err := providers.CreateProvider(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	lexicon, err := intake.LoadLexicon(cfg.Safety.LexiconPath, cfg.Safety.ExtraKeywords)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	timeout := time.Duration(cfg.ModelTimeoutSeconds()) * time.Second
	locks := intake.NewTurnLocks()

	intakeSvc := intake.NewService(st, st, provider, lexicon, intake.Params{
		HistoryWindow:   cfg.Intake.HistoryWindow,
		MemoryHintLimit: cfg.Intake.MemoryHintLimit,
		Temperature:     cfg.Intake.Temperature,
		MaxTokens:       cfg.Intake.MaxTokens,
		ModelTimeout:    timeout,
	}, locks)

	chatSvc := assist.NewService(st, st, provider, assist.Params{
		HistoryWindow: cfg.Chat.HistoryWindow,
		Temperature:   cfg.Chat.Temperature,
		MaxTokens:     cfg.Chat.MaxTokens,
		ModelTimeout:  timeout,
	}, locks)

	return &app{
		cfg:      cfg,
		store:    st,
		provider: provider,
		intake:   intakeSvc,
		chat:     chatSvc,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logger.WarnCF("main", "close store failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func newServeCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API and background janitor",
		Example: "  sahayak serve\n  sahayak serve --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(debug)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if a.cfg.Janitor.Enabled {
				j, err := janitor.New(a.store, a.cfg.Janitor.Schedule)
				if err != nil {
					return err
				}
				j.Start()
				defer j.Stop()
			}

			srv := server.New(a.cfg, a.store, a.store, a.intake, a.chat)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}
