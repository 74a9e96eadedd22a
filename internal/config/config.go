// Package config loads the bibsync configuration: per-journal DOI and
// catalog settings plus DataCite/Alma endpoints and credentials.
//
// Journal-specific values (publisher name, ISSN, host item, series
// description) live here as a lookup table keyed by journal code, so adding
// a journal is a configuration change, not a code change.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration, stored as YAML.
type Config struct {
	StorePath  string `yaml:"store_path"`
	GalleyRoot string `yaml:"galley_root"` // directory holding PDF galleys

	DataCite DataCite           `yaml:"datacite"`
	Alma     Alma               `yaml:"alma"`
	OAI      OAI                `yaml:"oai"`
	Journals map[string]Journal `yaml:"journals"`
}

// DataCite holds the MDS API settings.
type DataCite struct {
	Endpoint string `yaml:"endpoint"` // e.g. https://mds.datacite.org/
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	ConnTimeout int `yaml:"conn_timeout"` // seconds
	ReadTimeout int `yaml:"read_timeout"` // seconds

	// The MDS API sends no response on successful deletes, so a read
	// timeout on DELETE is treated as success. Registry-version-dependent;
	// override with false if the registry starts answering.
	DeleteTimeoutIsSuccess *bool `yaml:"delete_timeout_is_success"`
}

// DeleteTimeoutOK reports whether a read timeout on DOI deletion counts as
// success (defaults to true).
func (d DataCite) DeleteTimeoutOK() bool {
	if d.DeleteTimeoutIsSuccess == nil {
		return true
	}
	return *d.DeleteTimeoutIsSuccess
}

// Alma holds the Alma REST API settings.
type Alma struct {
	BaseURL        string            `yaml:"base_url"` // e.g. https://api-eu.hosted.exlibrisgroup.com
	Target         string            `yaml:"target"`   // key into Keys, e.g. "sandbox"
	Keys           map[string]string `yaml:"keys"`
	Timeout        int               `yaml:"timeout"`         // seconds
	ErrorThreshold int               `yaml:"error_threshold"` // additional attempts after a failure
}

// APIKey returns the key for the configured target.
func (a Alma) APIKey() (string, error) {
	key, ok := a.Keys[a.Target]
	if !ok {
		return "", fmt.Errorf("alma: no api key for target %q", a.Target)
	}
	return key, nil
}

// OAI holds settings for the OAI-PMH endpoint.
type OAI struct {
	AdminEmail string `yaml:"admin_email"`
}

// Journal holds per-journal settings consumed by the metadata builders and
// the OAI handler.
type Journal struct {
	Domain      string `yaml:"domain"`      // public hostname, also the OAI identifier domain
	Description string `yaml:"description"` // OAI repositoryName

	Prefix             string `yaml:"prefix"`              // DOI prefix, e.g. 10.34749
	NamespaceSeparator string `yaml:"namespace_separator"` // e.g. JFM
	IDOffset           int    `yaml:"id_offset"`           // added to article id in synthesized DOIs

	Publisher      string `yaml:"publisher"`
	PlacePublished string `yaml:"place_published"`
	ISSN           string `yaml:"issn,omitempty"`
	SeriesTitle    string `yaml:"series_title,omitempty"` // DataCite SeriesInformation prefix
	HostItemTitle  string `yaml:"host_item_title"`        // MARC 773 $t
	ACNumber       string `yaml:"ac_number,omitempty"`    // MARC 773 $w catalog link
	PeerReviewed   bool   `yaml:"peer_reviewed"`
}

// ArticleURL returns the canonical public URL of an article, used for DOI
// URL registration.
func (j Journal) ArticleURL(articleID int64) string {
	return fmt.Sprintf("https://%s/article/id/%d/", j.Domain, articleID)
}

// Load reads and validates a configuration file. Credentials may be
// supplied via environment instead of the file: DATACITE_USER,
// DATACITE_PASSWORD and ALMA_API_KEY (the latter bound to the configured
// target) override file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if user := os.Getenv("DATACITE_USER"); user != "" {
		cfg.DataCite.User = user
	}
	if pw := os.Getenv("DATACITE_PASSWORD"); pw != "" {
		cfg.DataCite.Password = pw
	}
	if key := os.Getenv("ALMA_API_KEY"); key != "" {
		if cfg.Alma.Keys == nil {
			cfg.Alma.Keys = make(map[string]string)
		}
		cfg.Alma.Keys[cfg.Alma.Target] = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks for required keys. Missing required configuration stops
// startup; it is not reported through the errors-as-data channel the sync
// operations use.
func (c *Config) Validate() error {
	if len(c.Journals) == 0 {
		return fmt.Errorf("config: no journals configured")
	}
	for code, j := range c.Journals {
		if j.Domain == "" {
			return fmt.Errorf("config: journal %s: domain is required", code)
		}
		if j.Prefix == "" {
			return fmt.Errorf("config: journal %s: prefix is required", code)
		}
		if j.NamespaceSeparator == "" {
			return fmt.Errorf("config: journal %s: namespace_separator is required", code)
		}
		if j.Publisher == "" {
			return fmt.Errorf("config: journal %s: publisher is required", code)
		}
	}
	if c.DataCite.Endpoint == "" {
		return fmt.Errorf("config: datacite.endpoint is required")
	}
	if c.Alma.BaseURL != "" && c.Alma.Target == "" {
		return fmt.Errorf("config: alma.target is required when alma.base_url is set")
	}
	return nil
}

// JournalFor returns the configuration for a journal code.
func (c *Config) JournalFor(code string) (Journal, error) {
	j, ok := c.Journals[code]
	if !ok {
		return Journal{}, fmt.Errorf("config: unknown journal code %q", code)
	}
	return j, nil
}
