package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/focal-labs/snapledger/internal/quota"
	"github.com/focal-labs/snapledger/internal/storage"
)

func quotaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quota <user-id>",
		Short: "Show a user's extraction quota window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, err := databasePath()
			if err != nil {
				return err
			}

			store, err := storage.NewSQLiteStorage(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			if err := store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}

			guard := quota.NewGuard(store, usageAction,
				viper.GetInt("quota.limit"),
				time.Duration(viper.GetInt("quota.window_seconds"))*time.Second)

			status, err := guard.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
			dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

			fmt.Println(headerStyle.Render(fmt.Sprintf("Quota for %s", args[0])))
			fmt.Printf("  Used:      %d / %d\n", status.Used, status.Limit)
			fmt.Printf("  Remaining: %d\n", status.Remaining)
			if status.ResetAt.IsZero() {
				fmt.Println(dimStyle.Render("  No usage in the current window"))
			} else {
				fmt.Printf("  Resets:    %s (%s)\n",
					status.ResetAt.Local().Format(time.RFC1123),
					status.ResetIn.Round(time.Minute))
			}
			return nil
		},
	}
}
