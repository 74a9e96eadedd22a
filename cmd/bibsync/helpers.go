package main

import (
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/tuwlib/bibsync/internal/alma"
	"github.com/tuwlib/bibsync/internal/config"
	"github.com/tuwlib/bibsync/internal/datacite"
	"github.com/tuwlib/bibsync/internal/store"
	"github.com/tuwlib/bibsync/internal/syncer"
)

// loadConfig reads the configuration file or exits with a config error.
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return cfg
}

// openStore opens the article store named by the configuration.
func openStore(cfg *config.Config) *store.Store {
	path := cfg.StorePath
	if path == "" {
		path = "bibsync.db"
	}
	s, err := store.Open(path)
	if err != nil {
		exitWithError(ExitError, "opening store: %v", err)
	}
	return s
}

// newSyncer wires a Syncer from configuration. Alma stays nil when no
// endpoint is configured; Alma subcommands then fail with a clear error.
func newSyncer(cfg *config.Config, s *store.Store) *syncer.Syncer {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	dc := datacite.NewClient(cfg.DataCite)

	var almaReg syncer.AlmaRegistry
	if cfg.Alma.BaseURL != "" {
		client, err := alma.NewClient(cfg.Alma)
		if err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}
		almaReg = client
	}

	return syncer.New(cfg, s, s, dc, almaReg, log)
}

// parseArticleID parses a positional article id argument.
func parseArticleID(arg string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		exitWithError(ExitError, "invalid article id %q", arg)
	}
	return id
}
