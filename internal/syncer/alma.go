package syncer

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/tuwlib/bibsync/internal/alma"
	"github.com/tuwlib/bibsync/internal/article"
)

// PreviewAlmaRecord builds the MARC export document without touching the
// registry or persisted state.
func (s *Syncer) PreviewAlmaRecord(articleID int64) Result {
	a, res := s.loadArticle(articleID)
	if res.Status == StatusError {
		return res
	}
	xmlDoc, errs, warnings := s.almaBuilder.Build(a)
	if len(errs) > 0 {
		return Result{Status: StatusError, Errors: errs, Warnings: warnings}
	}
	return success(xmlDoc, warnings)
}

func (s *Syncer) almaRegistry() (AlmaRegistry, Result) {
	if s.alma == nil {
		return nil, failure("alma is not configured")
	}
	return s.alma, Result{Status: StatusSuccess}
}

// AlmaCreateOrUpdate builds the MARC export record and creates a new bib
// record, or replaces the existing one when the article already carries an
// mmsid. On creation the returned MMS id is persisted.
func (s *Syncer) AlmaCreateOrUpdate(ctx context.Context, articleID int64) Result {
	unlock := s.lock(articleID)
	defer unlock()

	reg, res := s.almaRegistry()
	if res.Status == StatusError {
		return res
	}
	a, res := s.loadArticle(articleID)
	if res.Status == StatusError {
		return res
	}

	xmlDoc, errs, warnings := s.almaBuilder.Build(a)
	if len(errs) > 0 {
		return Result{Status: StatusError, Errors: errs, Warnings: warnings}
	}

	var (
		body string
		err  error
	)
	mmsID, update := a.MMSID()
	if update {
		body, err = reg.UpdateBib(ctx, mmsID, alma.WrapBib(xmlDoc))
	} else {
		body, err = reg.CreateBib(ctx, alma.WrapBib(xmlDoc))
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"article": articleID, "mmsid": mmsID}).
			WithError(err).Error("alma bib write failed")
		return failure(err.Error())
	}

	bib, err := alma.ParseBib(body)
	if err != nil {
		return failure(err.Error())
	}
	if bib.MMSID != "" {
		if err := s.ids.ReplaceIdentifier(articleID, article.TypeMMSID, bib.MMSID); err != nil {
			return failure("storing mmsid: " + err.Error())
		}
	}

	s.log.WithFields(logrus.Fields{"article": articleID, "mmsid": bib.MMSID, "update": update}).
		Info("alma bib record written")
	return success(body, warnings)
}

// AlmaPushNetworkZone links the article's bib record to the network zone.
// It fails closed when the record is already NZ-linked; double-linking is a
// cataloging integrity violation.
func (s *Syncer) AlmaPushNetworkZone(ctx context.Context, articleID int64) Result {
	unlock := s.lock(articleID)
	defer unlock()

	reg, res := s.almaRegistry()
	if res.Status == StatusError {
		return res
	}
	a, res := s.loadArticle(articleID)
	if res.Status == StatusError {
		return res
	}
	mmsID, ok := a.MMSID()
	if !ok {
		return failure("mmsid not set")
	}

	body, err := reg.GetBib(ctx, mmsID)
	if err != nil {
		return failure(err.Error())
	}
	bib, err := alma.ParseBib(body)
	if err != nil {
		return failure(err.Error())
	}
	if bib.NetworkZoneLinked {
		return failure("record is already linked to the network zone")
	}

	if _, err := reg.PushNetworkZone(ctx, mmsID); err != nil {
		s.log.WithFields(logrus.Fields{"article": articleID, "mmsid": mmsID}).
			WithError(err).Error("alma network zone push failed")
		return failure(err.Error())
	}

	s.log.WithFields(logrus.Fields{"article": articleID, "mmsid": mmsID}).
		Info("alma bib record pushed to network zone")
	return success("", nil)
}

// AlmaFetchAC reads the authority control number from the article's catalog
// record and persists it as the ac identifier.
func (s *Syncer) AlmaFetchAC(ctx context.Context, articleID int64) Result {
	unlock := s.lock(articleID)
	defer unlock()

	reg, res := s.almaRegistry()
	if res.Status == StatusError {
		return res
	}
	a, res := s.loadArticle(articleID)
	if res.Status == StatusError {
		return res
	}
	mmsID, ok := a.MMSID()
	if !ok {
		return failure("mmsid not set")
	}

	body, err := reg.GetBib(ctx, mmsID)
	if err != nil {
		return failure(err.Error())
	}
	bib, err := alma.ParseBib(body)
	if err != nil {
		return failure(err.Error())
	}
	if bib.Record == nil {
		return failure("bib response carries no record")
	}
	ac, ok := bib.Record.AC()
	if !ok || ac == "" {
		return failure("catalog record carries no ac number")
	}

	if err := s.ids.ReplaceIdentifier(articleID, article.TypeAC, ac); err != nil {
		return failure("storing ac: " + err.Error())
	}

	s.log.WithFields(logrus.Fields{"article": articleID, "mmsid": mmsID, "ac": ac}).
		Info("alma ac number stored")
	return success(ac, nil)
}

// AlmaViewCurrent fetches the current catalog record for the article.
// Read-only.
func (s *Syncer) AlmaViewCurrent(ctx context.Context, articleID int64) Result {
	reg, res := s.almaRegistry()
	if res.Status == StatusError {
		return res
	}
	a, res := s.loadArticle(articleID)
	if res.Status == StatusError {
		return res
	}
	mmsID, ok := a.MMSID()
	if !ok {
		return failure("mmsid not set")
	}
	body, err := reg.GetBib(ctx, mmsID)
	if err != nil {
		return failure(err.Error())
	}
	return success(body, nil)
}
