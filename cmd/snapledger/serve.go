package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/focal-labs/snapledger/internal/engine"
	"github.com/focal-labs/snapledger/internal/provider"
	"github.com/focal-labs/snapledger/internal/quota"
	"github.com/focal-labs/snapledger/internal/server"
	"github.com/focal-labs/snapledger/internal/storage"
)

// usageAction tags extraction rows in the usage log.
const usageAction = "extract_expense"

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the extraction HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func runServe(ctx context.Context) error {
	dbPath, err := databasePath()
	if err != nil {
		return err
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	logger := slog.Default()

	factory := provider.NewFactory(provider.Config{
		Secrets:         viper.GetStringMapString("providers.secrets"),
		Models:          viper.GetStringMapString("providers.models"),
		DefaultProvider: viper.GetString("providers.default"),
		OCREndpoint:     viper.GetString("providers.ocr_endpoint"),
		OCRAPIKey:       viper.GetString("providers.ocr_api_key"),
	}, logger)

	guard := quota.NewGuard(store, usageAction,
		viper.GetInt("quota.limit"),
		time.Duration(viper.GetInt("quota.window_seconds"))*time.Second)

	orchestrator := engine.NewOrchestrator(factory, guard, store, logger)

	tokens := viper.GetStringMapString("server.tokens")
	if len(tokens) == 0 {
		return errors.New("no API tokens configured, set server.tokens")
	}

	handler := server.NewServer(orchestrator, server.NewTokenAuthenticator(tokens), logger)

	addr := viper.GetString("server.addr")
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if serveErr := httpServer.ListenAndServe(); !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case serveErr := <-errChan:
		return fmt.Errorf("server failed: %w", serveErr)
	}
}
