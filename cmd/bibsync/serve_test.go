package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tuwlib/bibsync/internal/article"
	"github.com/tuwlib/bibsync/internal/config"
	"github.com/tuwlib/bibsync/internal/oaipmh"
)

type emptySource struct{}

func (emptySource) Article(id int64) (*article.Article, error) { return nil, nil }
func (emptySource) ArticleByDOI(journalCode, doi string) (*article.Article, error) {
	return nil, nil
}
func (emptySource) PublishedWithDOI(journalCode string, from, until time.Time) ([]*article.Article, error) {
	return nil, nil
}

func serveTestConfig() *config.Config {
	return &config.Config{
		Journals: map[string]config.Journal{
			"jfm": {
				Domain:             "jfm.example.org",
				Description:        "Journal für Facility Management",
				Prefix:             "10.34749",
				NamespaceSeparator: "JFM",
				Publisher:          "Journal für Facility Management",
			},
		},
	}
}

func newServeMux(cfg *config.Config) http.Handler {
	log := logrus.New()
	log.SetOutput(io.Discard)
	handler := oaipmh.NewHandler(cfg, emptySource{})

	mux := http.NewServeMux()
	mux.HandleFunc("/api/oai/{journal}", func(w http.ResponseWriter, r *http.Request) {
		serveOAI(w, r, cfg, handler, log)
	})
	return mux
}

func TestServeOAI(t *testing.T) {
	mux := newServeMux(serveTestConfig())

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "identify",
			method:     http.MethodGet,
			target:     "/api/oai/jfm?verb=Identify",
			wantStatus: http.StatusOK,
			wantBody:   "<repositoryName>Journal für Facility Management</repositoryName>",
		},
		{
			name:       "protocol errors still answer 200",
			method:     http.MethodGet,
			target:     "/api/oai/jfm?verb=Bogus",
			wantStatus: http.StatusOK,
			wantBody:   `code="badVerb"`,
		},
		{
			name:       "unknown journal",
			method:     http.MethodGet,
			target:     "/api/oai/nope?verb=Identify",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "method not allowed",
			method:     http.MethodDelete,
			target:     "/api/oai/jfm?verb=Identify",
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body missing %q:\n%s", tt.wantBody, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
					t.Errorf("Content-Type = %q, want text/xml", ct)
				}
			}
		})
	}
}

func TestServeOAIPostForm(t *testing.T) {
	mux := newServeMux(serveTestConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/oai/jfm",
		strings.NewReader("verb=Identify"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<Identify>") {
		t.Errorf("POST form verb not handled:\n%s", rec.Body.String())
	}
}

func TestRequestBaseURL(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://jfm.example.org/api/oai/jfm?verb=Identify", nil)
	if got, want := requestBaseURL(req), "http://jfm.example.org/api/oai/jfm"; got != want {
		t.Errorf("requestBaseURL = %q, want %q", got, want)
	}
}
