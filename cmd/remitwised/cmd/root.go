package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/remitwise/remitwise/app"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

// NewRootCmd creates the root command for remitwised.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "remitwised",
		Short: "RemitWise - programmable family remittance wallets",
		Long: `RemitWise manages family remittance wallets: multisig household
governance, automatic four-way remittance splits, savings goals,
recurring bills, micro-insurance, and cross-module financial health
reporting.`,
	}

	rootCmd.AddCommand(
		versionCommand(),
		simulateCommand(),
	)

	return rootCmd
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", app.Name, Version)
			return err
		},
	}
}
