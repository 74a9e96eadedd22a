// Package main provides the bibsync CLI entry point.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

// configPath points at the YAML configuration file
var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bibsync",
	Short: "Bibliographic metadata synchronization for journal articles",
	Long: `bibsync keeps published journal articles in sync with external
bibliographic registries: it registers DOIs and metadata at DataCite,
exports MARC21 records to the Alma union catalog, and serves article
metadata over OAI-PMH.

Mutating registry operations are previewed by default; pass --confirm
to actually call the registry. All commands output JSON by default.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "Path to the configuration file")
	rootCmd.Version = Version
}

func defaultConfigPath() string {
	if p := os.Getenv("BIBSYNC_CONFIG"); p != "" {
		return p
	}
	return "bibsync.yaml"
}
