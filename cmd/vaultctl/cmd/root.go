// Package cmd implements the vaultctl CLI commands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time
var Version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "vaultctl",
	Short: "Inspect vaultdb .vault files without revealing data",
	Long: `vaultctl is a command-line inspector for vaultdb vault files.

It reads only the plaintext metadata block and the set of document ids.
It never derives keys and never decrypts document payloads.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command, exiting non-zero on any error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
