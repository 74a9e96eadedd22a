package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Import article snapshots from a JSONL export",
	Long: `Import article snapshots from the publishing platform's JSONL
export, one article per line. Existing articles are replaced.

Example:
  bibsync import articles.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	f, err := os.Open(args[0])
	if err != nil {
		exitWithError(ExitError, "opening %s: %v", args[0], err)
	}
	defer f.Close()

	n, err := s.ImportArticles(f)
	if err != nil {
		exitWithError(ExitDataError, "import failed after %d articles: %v", n, err)
	}

	if humanOutput {
		fmt.Printf("imported %d articles\n", n)
	} else {
		outputJSON(StatusResponse{Status: "ok", Count: n})
	}
	return nil
}
