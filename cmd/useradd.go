/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/cidco-records/apiserver/config"
	"github.com/cidco-records/apiserver/internal/db"
	"github.com/cidco-records/apiserver/internal/services"
	"github.com/cidco-records/apiserver/internal/store"
	"github.com/cidco-records/apiserver/types"
	"github.com/spf13/cobra"
)

var (
	useraddUsername string
	useraddEmail    string
	useraddName     string
	useraddRole     string
	useraddPassword string
)

// useraddCmd bootstraps a credential row directly, so the first admin can
// be created without an existing admin session.
var useraddCmd = &cobra.Command{
	Use:   "useradd",
	Short: "Create a user account",
	Long: `Create a user account directly in the database. Usage:

	cidco-api useradd --username jdoe --email jdoe@example.com --role admin
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := useraddPassword
		if password == "" {
			password = os.Getenv("USERADD_PASSWORD")
		}
		if useraddUsername == "" || password == "" {
			return errors.New("--username and a password (--password or USERADD_PASSWORD) are required")
		}

		cfg := config.LoadConfig()
		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = dbConn.Close()
		}()

		userService := services.NewUserService(store.NewUserRepository(dbConn), nil, nil, cfg.FrontendURL)
		repaired, err := userService.AddUser(cmd.Context(), types.User{
			Username: useraddUsername,
			Email:    useraddEmail,
			Name:     useraddName,
			Role:     useraddRole,
		}, password)
		if err != nil {
			return err
		}
		if repaired {
			fmt.Fprintln(os.Stdout, "user created after sequence repair")
			return nil
		}
		fmt.Fprintln(os.Stdout, "user created")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(useraddCmd)
	useraddCmd.Flags().StringVar(&useraddUsername, "username", "", "login name (required)")
	useraddCmd.Flags().StringVar(&useraddEmail, "email", "", "email address")
	useraddCmd.Flags().StringVar(&useraddName, "name", "", "display name")
	useraddCmd.Flags().StringVar(&useraddRole, "role", "", "role (defaults to user)")
	useraddCmd.Flags().StringVar(&useraddPassword, "password", "", "password (or set USERADD_PASSWORD)")
}
