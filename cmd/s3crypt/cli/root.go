// Package cli implements the s3crypt command-line demo: put/get against
// a configured object store and key provider, wired from the same
// internal/config loader the library itself exposes.
package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var rootCmd = &cobra.Command{
	Use:   "s3crypt",
	Short: "Client-side envelope encryption for object storage",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			return godotenv.Load(envFile)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load configuration overrides from this .env file")
	rootCmd.AddCommand(putCmd, getCmd)
}
