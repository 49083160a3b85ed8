// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the tokend command-line application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/apexid/tokend/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "tokend",
	DisableAutoGenTag: true,
	Short:             "tokend issues and validates signed opaque bearer tokens",
	Long: `tokend is a token service that mints opaque bearer tokens, validates them,
and exchanges them for fresh access tokens.

Tokens are self-describing: each one carries a time-ordered identifier, an
optional absolute expiration, and a keyed signature, so tampering and expiry
are detected before the backing store is ever consulted. The store keeps a
record per token holding its principal, opaque state, and activity history
under a configurable retention window.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize()
	},
}

// NewRootCmd creates a new root command for the tokend CLI.
func NewRootCmd() *cobra.Command {
	// Add persistent flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	if err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newVersionCmd())

	// Silence printing the usage on error
	rootCmd.SilenceUsage = true

	return rootCmd
}
