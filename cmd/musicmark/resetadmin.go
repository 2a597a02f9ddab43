package main

import (
	"errors"
	"fmt"

	"github.com/maruel/musicmark/internal/storage"
	"github.com/spf13/cobra"
)

var (
	resetAdminUsername string
	resetAdminPassword string
)

var resetAdminCmd = &cobra.Command{
	Use:   "reset-admin",
	Short: "Reset the admin password, creating the account if needed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if err := setupLogging(cfg.LogLevel); err != nil {
			return err
		}
		username := resetAdminUsername
		if username == "" {
			username = cfg.AdminUsername
		}
		password := resetAdminPassword
		if password == "" {
			password = cfg.AdminPassword
		}
		if len(password) < 3 {
			return errors.New("password must be at least 3 characters; use --password to set one")
		}

		store, err := storage.Open(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		users := storage.NewUserService(store)
		user := users.GetByUsername(username)
		if user == nil {
			if _, err := users.Create(username, password, storage.RoleAdmin); err != nil {
				return fmt.Errorf("failed to create admin: %w", err)
			}
			fmt.Printf("Created admin %s with the given password. Log in and change it soon.\n", username)
			return nil
		}
		if err := users.UpdatePassword(user.ID, password); err != nil {
			return fmt.Errorf("failed to reset password: %w", err)
		}
		fmt.Printf("Reset password for %s.\n", username)
		return nil
	},
}

func init() {
	resetAdminCmd.Flags().StringVar(&resetAdminUsername, "username", "", "Admin username (default from ADMIN_USERNAME)")
	resetAdminCmd.Flags().StringVar(&resetAdminPassword, "password", "", "New password (default from ADMIN_PASSWORD)")
	rootCmd.AddCommand(resetAdminCmd)
}
