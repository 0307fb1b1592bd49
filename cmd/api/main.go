package main

import (
	"os"

	"github.com/spf13/cobra"
)

var loadDotEnv bool

var rootCmd = &cobra.Command{
	Use:   "auth-core",
	Short: "Token authentication service",
	Long: `auth-core registers identities, verifies credentials and issues,
validates and revokes signed bearer tokens.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&loadDotEnv, "dotenv", true, "Load a .env file from the working directory")
	rootCmd.AddCommand(serveCmd, registerCmd, hashCmd)
}
