package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tuwlib/bibsync/internal/alma"
)

var (
	almaConfirm    bool
	almaMaxMembers int
)

func init() {
	almaCmd.PersistentFlags().BoolVar(&almaConfirm, "confirm", false, "Call the registry instead of previewing")
	almaSetMembersCmd.Flags().IntVar(&almaMaxMembers, "max", 1000, "Maximum number of members to fetch")
	almaCmd.AddCommand(almaCreateUpdateCmd)
	almaCmd.AddCommand(almaPushNZCmd)
	almaCmd.AddCommand(almaFetchACCmd)
	almaCmd.AddCommand(almaViewCurrentCmd)
	almaCmd.AddCommand(almaSetMembersCmd)
	rootCmd.AddCommand(almaCmd)
}

var almaCmd = &cobra.Command{
	Use:   "alma",
	Short: "Export MARC records to the Alma union catalog",
}

var almaCreateUpdateCmd = &cobra.Command{
	Use:   "create-update <article-id>",
	Short: "Create or update the article's catalog record",
	Long: `Build the MARC21 export record for an article. Without --confirm
the record is printed and nothing is sent. With --confirm the record is
created in the catalog, or replaced when the article already carries an
MMS id.`,
	Args: cobra.ExactArgs(1),
	RunE: runAlmaCreateUpdate,
}

func runAlmaCreateUpdate(cmd *cobra.Command, args []string) error {
	id := parseArticleID(args[0])
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()
	sy := newSyncer(cfg, s)

	if !almaConfirm {
		printResult(sy.PreviewAlmaRecord(id))
		return nil
	}
	printResult(sy.AlmaCreateOrUpdate(context.Background(), id))
	return nil
}

var almaPushNZCmd = &cobra.Command{
	Use:   "push-nz <article-id>",
	Short: "Link the catalog record to the network zone",
	Long: `Link the article's catalog record to the union catalog network
zone. Refuses records that are already linked. Requires --confirm;
without it the current link state is reported.`,
	Args: cobra.ExactArgs(1),
	RunE: runAlmaPushNZ,
}

func runAlmaPushNZ(cmd *cobra.Command, args []string) error {
	id := parseArticleID(args[0])
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()
	sy := newSyncer(cfg, s)

	if !almaConfirm {
		printResult(sy.AlmaViewCurrent(context.Background(), id))
		return nil
	}
	printResult(sy.AlmaPushNetworkZone(context.Background(), id))
	return nil
}

var almaFetchACCmd = &cobra.Command{
	Use:   "fetch-ac <article-id>",
	Short: "Fetch and store the authority control number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := parseArticleID(args[0])
		cfg := loadConfig()
		s := openStore(cfg)
		defer s.Close()
		printResult(newSyncer(cfg, s).AlmaFetchAC(context.Background(), id))
		return nil
	},
}

var almaViewCurrentCmd = &cobra.Command{
	Use:   "view-current <article-id>",
	Short: "Fetch the article's current catalog record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := parseArticleID(args[0])
		cfg := loadConfig()
		s := openStore(cfg)
		defer s.Close()
		printResult(newSyncer(cfg, s).AlmaViewCurrent(context.Background(), id))
		return nil
	},
}

var almaSetMembersCmd = &cobra.Command{
	Use:   "set-members <set-id>",
	Short: "List the members of an Alma set",
	Long: `List the members of an Alma set, e.g. the publication set driving a
bulk export. Read-only; useful for reconciling the catalog against the
local article store.`,
	Args: cobra.ExactArgs(1),
	RunE: runAlmaSetMembers,
}

type setMemberResponse struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Link        string `json:"link,omitempty"`
}

func runAlmaSetMembers(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if cfg.Alma.BaseURL == "" {
		exitWithError(ExitConfigError, "alma is not configured")
	}
	client, err := alma.NewClient(cfg.Alma)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	members, err := client.FetchSetMembers(context.Background(), args[0], 0, 100, almaMaxMembers)
	if err != nil {
		exitWithError(ExitDataError, "fetching set members: %v", err)
	}

	if humanOutput {
		for _, m := range members {
			fmt.Printf("%s\t%s\n", m.ID, m.Description)
		}
		fmt.Printf("%d members\n", len(members))
		return nil
	}

	out := make([]setMemberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, setMemberResponse{ID: m.ID, Description: m.Description, Link: m.Link})
	}
	outputJSON(out)
	return nil
}
