package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tuwlib/bibsync/internal/pdfdoi"
)

var doiGalleyRoot string

func init() {
	doiScanCmd.Flags().StringVar(&doiGalleyRoot, "galley-root", "", "Directory holding the PDF galleys (default from config)")
	doiCmd.AddCommand(doiScanCmd)
	rootCmd.AddCommand(doiCmd)
}

var doiCmd = &cobra.Command{
	Use:   "doi",
	Short: "Inspect DOIs in article galleys",
}

var doiScanCmd = &cobra.Command{
	Use:   "scan <article-id>",
	Short: "Compare the DOI printed in the galley with the registered one",
	Long: `Scan the article's PDF galley for a printed DOI and compare it with
the registered identifier. A mismatch usually means the galley predates
the DOI assignment and needs to be reissued.`,
	Args: cobra.ExactArgs(1),
	RunE: runDOIScan,
}

type scanResponse struct {
	ArticleID  int64  `json:"article_id"`
	Registered string `json:"registered"`
	Printed    string `json:"printed"`
	Match      bool   `json:"match"`
}

func runDOIScan(cmd *cobra.Command, args []string) error {
	id := parseArticleID(args[0])
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	a, err := s.Article(id)
	if err != nil {
		exitWithError(ExitError, "loading article %d: %v", id, err)
	}
	if a == nil {
		exitWithError(ExitError, "article %d not found", id)
	}

	root := doiGalleyRoot
	if root == "" {
		root = cfg.GalleyRoot
	}

	finding, err := pdfdoi.NewScanner(root).Verify(a)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	if humanOutput {
		fmt.Printf("registered: %s\n", finding.Registered)
		fmt.Printf("printed:    %s\n", finding.Printed)
		if finding.Match() {
			fmt.Println("match")
		} else {
			fmt.Println("MISMATCH")
			os.Exit(ExitDataError)
		}
		return nil
	}

	outputJSON(scanResponse{
		ArticleID:  finding.ArticleID,
		Registered: finding.Registered,
		Printed:    finding.Printed,
		Match:      finding.Match(),
	})
	if !finding.Match() {
		os.Exit(ExitDataError)
	}
	return nil
}
