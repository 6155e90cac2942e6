package main

import (
	"github.com/spf13/cobra"
)

// --- Global flag variables, following cmd/aleutian's package-level cobra.Command pattern ---
var (
	configPath    string
	apiKeyEnvVar  string
	secretFile    string
	serverAddr    string // base URL of a running cascadectl serve instance, for client subcommands

	rootCmd = &cobra.Command{
		Use:   "cascadectl",
		Short: "Drive the cascade text-generation orchestrator",
		Long: `cascadectl runs GENERATE/MODIFY/QA/QFILE/C requests against a stateful
text-generation provider, either one-shot in-process or against a running
cascadectl serve instance over HTTP.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config.yaml")
	rootCmd.PersistentFlags().StringVar(&apiKeyEnvVar, "api-key-env", "CASCADE_API_KEY", "environment variable holding the provider API key")
	rootCmd.PersistentFlags().StringVar(&secretFile, "api-key-file", "", "fallback file containing the provider API key")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://127.0.0.1:8723", "base URL of a running cascadectl serve instance")

	rootCmd.AddCommand(runCmd, serveCmd, cancelCmd, eventsCmd, resumeCmd, listCmd, receiptsCmd, capabilityCmd)
}
