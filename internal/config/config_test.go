package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testConfigYAML = `
store_path: /var/lib/bibsync/articles.db
datacite:
  endpoint: https://mds.datacite.org/
  user: TIB.TUW
  password: secret
  conn_timeout: 5
  read_timeout: 30
alma:
  base_url: https://api-eu.hosted.exlibrisgroup.com
  target: sandbox
  keys:
    sandbox: apikey-sandbox
    production: apikey-production
  timeout: 30
  error_threshold: 2
oai:
  admin_email: repositum@tuwien.ac.at
journals:
  JFM:
    domain: jfm.example.org
    description: Journal für Facility Management
    prefix: "10.34749"
    namespace_separator: JFM
    id_offset: 1500
    publisher: Journal für Facility Management
    place_published: Wien
    host_item_title: IFM Journal
    ac_number: AC13348910
    peer_reviewed: true
  OES:
    domain: oes.example.org
    description: Der Öffentliche Sektor
    prefix: "10.34749"
    namespace_separator: OES
    id_offset: 0
    publisher: Der Öffentliche Sektor - The Public Sector
    place_published: Wien
    issn: 2412-3862
    series_title: Der Öffentliche Sektor - The Public Sector
    host_item_title: Der Öffentliche Sektor
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, testConfigYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	jfm, err := cfg.JournalFor("JFM")
	if err != nil {
		t.Fatal(err)
	}
	if jfm.Prefix != "10.34749" || jfm.NamespaceSeparator != "JFM" || jfm.IDOffset != 1500 {
		t.Errorf("JFM journal config = %+v", jfm)
	}
	if !jfm.PeerReviewed {
		t.Error("JFM should be peer reviewed")
	}

	oes, _ := cfg.JournalFor("OES")
	if oes.ISSN != "2412-3862" {
		t.Errorf("OES ISSN = %q", oes.ISSN)
	}

	if !cfg.DataCite.DeleteTimeoutOK() {
		t.Error("delete_timeout_is_success should default to true")
	}

	key, err := cfg.Alma.APIKey()
	if err != nil || key != "apikey-sandbox" {
		t.Errorf("APIKey() = %q, %v", key, err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DATACITE_USER", "ENV.USER")
	t.Setenv("DATACITE_PASSWORD", "env-secret")
	t.Setenv("ALMA_API_KEY", "apikey-env")

	cfg, err := Load(writeConfig(t, testConfigYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataCite.User != "ENV.USER" || cfg.DataCite.Password != "env-secret" {
		t.Errorf("datacite credentials not overridden: %+v", cfg.DataCite)
	}
	if key, _ := cfg.Alma.APIKey(); key != "apikey-env" {
		t.Errorf("alma key not overridden: %q", key)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s string) string
		wantErr string
	}{
		{
			name:    "missing prefix",
			mutate:  func(s string) string { return strings.Replace(s, `prefix: "10.34749"`, `prefix: ""`, 1) },
			wantErr: "prefix is required",
		},
		{
			name:    "missing endpoint",
			mutate:  func(s string) string { return strings.Replace(s, "endpoint: https://mds.datacite.org/", `endpoint: ""`, 1) },
			wantErr: "datacite.endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.mutate(testConfigYAML)))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestJournalForUnknown(t *testing.T) {
	cfg, err := Load(writeConfig(t, testConfigYAML))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.JournalFor("XXX"); err == nil {
		t.Error("JournalFor(XXX) should fail")
	}
}

func TestArticleURL(t *testing.T) {
	j := Journal{Domain: "jfm.example.org"}
	if got := j.ArticleURL(16); got != "https://jfm.example.org/article/id/16/" {
		t.Errorf("ArticleURL() = %q", got)
	}
}
