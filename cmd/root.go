/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cidco-api",
	Short: "Backend API for the CIDCO plot records management system",
	Long: `Backend API for the CIDCO plot records management system.

Serves search, summary reporting, and record editing over the land-plot
allotment registry, with document evidence resolved from object storage.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
