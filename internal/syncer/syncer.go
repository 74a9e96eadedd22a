// Package syncer implements the DOI and catalog synchronization state
// machine. Every operation makes at most one attempt against the external
// registry; retrying is an operator decision, triggered by re-invoking the
// operation.
package syncer

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tuwlib/bibsync/internal/alma"
	"github.com/tuwlib/bibsync/internal/article"
	"github.com/tuwlib/bibsync/internal/config"
	"github.com/tuwlib/bibsync/internal/datacite"
)

// Status is the outcome of a sync operation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the structured outcome of one sync operation. Registry failures
// are surfaced verbatim in Errors, never swallowed.
type Result struct {
	Status   Status
	Errors   []string
	Warnings []string
	// Output carries the document produced or fetched by preview and
	// check operations.
	Output string
}

func success(output string, warnings []string) Result {
	return Result{Status: StatusSuccess, Output: output, Warnings: warnings}
}

func failure(errs ...string) Result {
	return Result{Status: StatusError, Errors: errs}
}

// DataCiteRegistry is the outbound DataCite MDS contract.
type DataCiteRegistry interface {
	GetMetadata(ctx context.Context, doi string) (string, error)
	UpdateMetadata(ctx context.Context, doi, xmlDoc string) (string, error)
	RegisterURL(ctx context.Context, doi, articleURL string) error
	GetURL(ctx context.Context, doi string) (string, error)
	DeleteDOI(ctx context.Context, doi string) error
}

// AlmaRegistry is the outbound Alma bibs contract.
type AlmaRegistry interface {
	GetBib(ctx context.Context, mmsID string) (string, error)
	CreateBib(ctx context.Context, bibXML string) (string, error)
	UpdateBib(ctx context.Context, mmsID, bibXML string) (string, error)
	PushNetworkZone(ctx context.Context, mmsID string) (string, error)
}

// Syncer drives article metadata through the DataCite and Alma registries.
type Syncer struct {
	cfg    *config.Config
	source article.Source
	ids    article.IdentifierStore

	dcBuilder   *datacite.Builder
	almaBuilder *alma.Builder
	dc          DataCiteRegistry
	alma        AlmaRegistry

	log *logrus.Logger

	// Per-article locks serialize mutating operations so two concurrent
	// requests cannot both observe the same state and race the registry.
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New creates a Syncer. The alma registry may be nil when no Alma endpoint
// is configured; Alma operations then fail with a configuration error.
func New(cfg *config.Config, source article.Source, ids article.IdentifierStore, dc DataCiteRegistry, almaReg AlmaRegistry, log *logrus.Logger) *Syncer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Syncer{
		cfg:         cfg,
		source:      source,
		ids:         ids,
		dcBuilder:   datacite.NewBuilder(cfg),
		almaBuilder: alma.NewBuilder(cfg),
		dc:          dc,
		alma:        almaReg,
		log:         log,
		locks:       make(map[int64]*sync.Mutex),
	}
}

func (s *Syncer) lock(articleID int64) func() {
	s.mu.Lock()
	l, ok := s.locks[articleID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[articleID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *Syncer) loadArticle(articleID int64) (*article.Article, Result) {
	a, err := s.source.Article(articleID)
	if err != nil {
		return nil, failure("loading article: " + err.Error())
	}
	if a == nil {
		return nil, failure(fmt.Sprintf("article %d not found", articleID))
	}
	return a, Result{Status: StatusSuccess}
}

// PreviewDataCiteMetadata builds the DataCite document without touching the
// registry or persisted state.
func (s *Syncer) PreviewDataCiteMetadata(articleID int64) Result {
	a, res := s.loadArticle(articleID)
	if res.Status == StatusError {
		return res
	}
	xmlDoc, errs, warnings := s.dcBuilder.Build(a)
	if len(errs) > 0 {
		return Result{Status: StatusError, Errors: errs, Warnings: warnings}
	}
	return success(xmlDoc, warnings)
}

// RegisterOrUpdateMetadata builds the DataCite document, registers it, and
// on registry success transitions None to Draft (a Findable DOI keeps its
// state) and replaces the stored doi identifier.
func (s *Syncer) RegisterOrUpdateMetadata(ctx context.Context, articleID int64) Result {
	unlock := s.lock(articleID)
	defer unlock()

	a, res := s.loadArticle(articleID)
	if res.Status == StatusError {
		return res
	}

	xmlDoc, errs, warnings := s.dcBuilder.Build(a)
	if len(errs) > 0 {
		return Result{Status: StatusError, Errors: errs, Warnings: warnings}
	}

	doi, ok := a.DOI()
	if !ok {
		var err error
		doi, err = s.dcBuilder.SynthesizeDOI(a)
		if err != nil {
			return failure(err.Error())
		}
	}

	registered, err := s.dc.UpdateMetadata(ctx, doi, xmlDoc)
	if err != nil {
		s.log.WithFields(logrus.Fields{"article": articleID, "doi": doi}).
			WithError(err).Error("datacite metadata registration failed")
		return failure(err.Error())
	}

	if a.DataCiteState != article.StateFindable {
		if err := s.ids.SetDataCiteState(articleID, article.StateDraft); err != nil {
			return failure("updating state: " + err.Error())
		}
	}
	if err := s.ids.ReplaceIdentifier(articleID, article.TypeDOI, registered); err != nil {
		return failure("storing doi: " + err.Error())
	}

	s.log.WithFields(logrus.Fields{"article": articleID, "doi": registered}).
		Info("datacite metadata registered")
	return success("", warnings)
}

// RegisterURL registers the canonical article URL for the DOI, making it
// findable. Re-registration of an already findable DOI is rejected.
func (s *Syncer) RegisterURL(ctx context.Context, articleID int64) Result {
	unlock := s.lock(articleID)
	defer unlock()

	a, res := s.loadArticle(articleID)
	if res.Status == StatusError {
		return res
	}

	doi, ok := a.DOI()
	if !ok {
		return failure("doi not set")
	}
	if !s.dcBuilder.DOIConforms(a.JournalCode, doi) {
		return failure("existing DOI doesn't conform to current configuration")
	}
	if a.DataCiteState == article.StateFindable {
		return failure("doi is already findable")
	}

	j, err := s.cfg.JournalFor(a.JournalCode)
	if err != nil {
		return failure(err.Error())
	}
	articleURL := j.ArticleURL(articleID)

	if err := s.dc.RegisterURL(ctx, doi, articleURL); err != nil {
		s.log.WithFields(logrus.Fields{"article": articleID, "doi": doi}).
			WithError(err).Error("datacite url registration failed")
		return failure(err.Error())
	}
	if err := s.ids.SetDataCiteState(articleID, article.StateFindable); err != nil {
		return failure("updating state: " + err.Error())
	}

	s.log.WithFields(logrus.Fields{"article": articleID, "doi": doi, "url": articleURL}).
		Info("datacite url registered")
	return success("", nil)
}

// DeleteDOI deletes the article's draft DOI. A findable DOI is public and
// resolvable and must never be removed; the invariant is checked before any
// registry call.
func (s *Syncer) DeleteDOI(ctx context.Context, articleID int64) Result {
	unlock := s.lock(articleID)
	defer unlock()

	a, res := s.loadArticle(articleID)
	if res.Status == StatusError {
		return res
	}

	if a.DataCiteState != article.StateDraft {
		return failure(fmt.Sprintf("can only delete draft DOIs, current state is %q", string(a.DataCiteState)))
	}
	doi, ok := a.DOI()
	if !ok {
		return failure("doi not set")
	}

	if err := s.dc.DeleteDOI(ctx, doi); err != nil {
		s.log.WithFields(logrus.Fields{"article": articleID, "doi": doi}).
			WithError(err).Error("datacite doi deletion failed")
		return failure(err.Error())
	}
	if err := s.ids.SetDataCiteState(articleID, article.StateNone); err != nil {
		return failure("updating state: " + err.Error())
	}
	if err := s.ids.DeleteIdentifier(articleID, article.TypeDOI); err != nil {
		return failure("removing doi: " + err.Error())
	}

	s.log.WithFields(logrus.Fields{"article": articleID, "doi": doi}).
		Info("datacite doi deleted")
	return success("", nil)
}

// CheckMetadata fetches the metadata document the registry currently holds
// for the article's DOI. Read-only.
func (s *Syncer) CheckMetadata(ctx context.Context, articleID int64) Result {
	a, res := s.loadArticle(articleID)
	if res.Status == StatusError {
		return res
	}
	doi, ok := a.DOI()
	if !ok {
		return failure("doi not set")
	}
	body, err := s.dc.GetMetadata(ctx, doi)
	if err != nil {
		return failure(err.Error())
	}
	return success(body, nil)
}

// CheckURL fetches the URL the registry currently resolves the article's
// DOI to. Read-only.
func (s *Syncer) CheckURL(ctx context.Context, articleID int64) Result {
	a, res := s.loadArticle(articleID)
	if res.Status == StatusError {
		return res
	}
	doi, ok := a.DOI()
	if !ok {
		return failure("doi not set")
	}
	body, err := s.dc.GetURL(ctx, doi)
	if err != nil {
		return failure(err.Error())
	}
	return success(body, nil)
}
