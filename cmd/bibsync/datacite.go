package main

import (
	"context"

	"github.com/spf13/cobra"
)

var dataciteConfirm bool

func init() {
	dataciteCmd.PersistentFlags().BoolVar(&dataciteConfirm, "confirm", false, "Call the registry instead of previewing")
	dataciteCmd.AddCommand(dataciteMetadataCmd)
	dataciteCmd.AddCommand(dataciteURLCmd)
	dataciteCmd.AddCommand(dataciteCheckMetadataCmd)
	dataciteCmd.AddCommand(dataciteCheckURLCmd)
	dataciteCmd.AddCommand(dataciteDeleteDOICmd)
	rootCmd.AddCommand(dataciteCmd)
}

var dataciteCmd = &cobra.Command{
	Use:   "datacite",
	Short: "Register and inspect DOIs at the DataCite registry",
}

var dataciteMetadataCmd = &cobra.Command{
	Use:   "metadata <article-id>",
	Short: "Register or update the DataCite metadata document",
	Long: `Build the DataCite metadata document for an article. Without
--confirm the document is printed and nothing is sent to the registry.
With --confirm the document is registered; a new DOI starts in draft
state.`,
	Args: cobra.ExactArgs(1),
	RunE: runDataCiteMetadata,
}

func runDataCiteMetadata(cmd *cobra.Command, args []string) error {
	id := parseArticleID(args[0])
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()
	sy := newSyncer(cfg, s)

	if !dataciteConfirm {
		printResult(sy.PreviewDataCiteMetadata(id))
		return nil
	}
	printResult(sy.RegisterOrUpdateMetadata(context.Background(), id))
	return nil
}

var dataciteURLCmd = &cobra.Command{
	Use:   "url <article-id>",
	Short: "Register the article URL, making the DOI findable",
	Long: `Register the canonical article URL for the article's DOI.
Without --confirm the URL that would be registered is printed. With
--confirm the DOI becomes findable; findable DOIs cannot be deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: runDataCiteURL,
}

func runDataCiteURL(cmd *cobra.Command, args []string) error {
	id := parseArticleID(args[0])
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	if !dataciteConfirm {
		a, err := s.Article(id)
		if err != nil || a == nil {
			exitWithError(ExitError, "article %d not found", id)
		}
		j, err := cfg.JournalFor(a.JournalCode)
		if err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}
		if humanOutput {
			cmd.Printf("would register: %s\n", j.ArticleURL(id))
		} else {
			outputJSON(map[string]string{"url": j.ArticleURL(id)})
		}
		return nil
	}

	printResult(newSyncer(cfg, s).RegisterURL(context.Background(), id))
	return nil
}

var dataciteCheckMetadataCmd = &cobra.Command{
	Use:   "check-metadata <article-id>",
	Short: "Fetch the metadata the registry currently holds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := parseArticleID(args[0])
		cfg := loadConfig()
		s := openStore(cfg)
		defer s.Close()
		printResult(newSyncer(cfg, s).CheckMetadata(context.Background(), id))
		return nil
	},
}

var dataciteCheckURLCmd = &cobra.Command{
	Use:   "check-url <article-id>",
	Short: "Fetch the URL the DOI currently resolves to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := parseArticleID(args[0])
		cfg := loadConfig()
		s := openStore(cfg)
		defer s.Close()
		printResult(newSyncer(cfg, s).CheckURL(context.Background(), id))
		return nil
	},
}

var dataciteDeleteDOICmd = &cobra.Command{
	Use:   "delete-doi <article-id>",
	Short: "Delete the article's draft DOI",
	Long: `Delete the article's DOI from the registry. Only draft DOIs can
be deleted; a findable DOI is public and resolvable and stays. Requires
--confirm.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !dataciteConfirm {
			exitWithError(ExitError, "delete-doi requires --confirm")
		}
		id := parseArticleID(args[0])
		cfg := loadConfig()
		s := openStore(cfg)
		defer s.Close()
		printResult(newSyncer(cfg, s).DeleteDOI(context.Background(), id))
		return nil
	},
}
