package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/focal-labs/snapledger/internal/model"
	"github.com/focal-labs/snapledger/internal/storage"
)

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage per-user settings",
	}
	cmd.AddCommand(settingsGetCmd())
	cmd.AddCommand(settingsSetCmd())
	return cmd
}

func openStore(cmd *cobra.Command) (*storage.SQLiteStorage, error) {
	dbPath, err := databasePath()
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	if err := store.Migrate(cmd.Context()); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func settingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <user-id>",
		Short: "Show a user's provider and currency settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			provider, err := store.GetProviderPreference(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			currency, err := store.GetDefaultCurrency(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
			if provider == "" {
				provider = dimStyle.Render("(deployment default)")
			}
			if currency == "" {
				currency = dimStyle.Render("(USD)")
			}
			fmt.Printf("Provider: %s\nCurrency: %s\n", provider, currency)
			return nil
		},
	}
}

func settingsSetCmd() *cobra.Command {
	var (
		providerName string
		currency     string
	)

	cmd := &cobra.Command{
		Use:   "set <user-id>",
		Short: "Set a user's provider and currency settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if currency != "" && model.NormalizeCurrency(currency) != currency {
				return fmt.Errorf("unsupported currency %q, expected one of %v", currency, model.Currencies)
			}

			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.SaveUserSettings(cmd.Context(), args[0], providerName, currency); err != nil {
				return err
			}
			fmt.Printf("Updated settings for %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&providerName, "provider", "", "preferred provider (gemini, openai, nvidia, hybrid)")
	cmd.Flags().StringVar(&currency, "currency", "", "default currency code")
	return cmd
}
