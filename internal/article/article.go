// Package article defines the domain types for journal articles as seen by
// the metadata sync core. The publishing platform owns this data; everything
// here is a read-only snapshot exposed through the Source interface.
package article

import "time"

// DataCiteState tracks the DOI lifecycle of an article at DataCite.
type DataCiteState string

const (
	// StateNone means no DOI has been registered for the article.
	StateNone DataCiteState = ""
	// StateDraft means metadata is registered but the DOI does not resolve yet.
	StateDraft DataCiteState = "draft"
	// StateFindable means the DOI resolves publicly. Findable DOIs must never
	// be deleted.
	StateFindable DataCiteState = "findable"
)

// Identifier types persisted per article.
const (
	TypeDOI   = "doi"
	TypeURN   = "urn"
	TypeMMSID = "mmsid"
	TypeAC    = "ac"
)

// Article is a published-article snapshot.
type Article struct {
	ID          int64  `json:"id"`
	JournalCode string `json:"journal_code"`

	Title       string `json:"title"`
	Subtitle    string `json:"subtitle,omitempty"`
	TitleAlt    string `json:"title_alt,omitempty"`    // German parallel title
	SubtitleAlt string `json:"subtitle_alt,omitempty"` // German parallel subtitle

	Language    string `json:"language,omitempty"` // ISO 639 code, e.g. "eng", "deu"
	Abstract    string `json:"abstract,omitempty"`
	AbstractAlt string `json:"abstract_alt,omitempty"` // German abstract

	Authors []FrozenAuthor `json:"authors"`
	License *License       `json:"license,omitempty"`

	PrimaryIssue *Issue `json:"primary_issue,omitempty"`
	PageNumbers  string `json:"page_numbers,omitempty"` // "first-last"

	KeywordsEN []string `json:"keywords_en,omitempty"`
	KeywordsDE []string `json:"keywords_de,omitempty"`

	DatePublished time.Time     `json:"date_published"`
	DataCiteState DataCiteState `json:"datacite_state,omitempty"`

	// Registered external identifiers keyed by type (doi, urn, mmsid, ac).
	// At most one live identifier per type.
	Identifiers map[string]string `json:"identifiers,omitempty"`

	GalleyPath string `json:"galley_path,omitempty"` // PDF galley on disk, if any
}

// FrozenAuthor is an author snapshot taken at publication time, independent
// of the live account record.
type FrozenAuthor struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	ORCID            string `json:"orcid,omitempty"`
	IsCorrespondence bool   `json:"is_correspondence,omitempty"`
}

// FullName returns the cataloging form "Last, First".
func (a FrozenAuthor) FullName() string {
	if a.FirstName == "" {
		return a.LastName
	}
	return a.LastName + ", " + a.FirstName
}

// Issue identifies the issue an article was published in.
type Issue struct {
	Year   int    `json:"year"`
	Volume int    `json:"volume"`
	Label  string `json:"label"` // issue label, e.g. "19" or "1/2019"
}

// License describes the article's usage license.
type License struct {
	ShortName string `json:"short_name"` // "CC BY 4.0", or literal "Copyright"
	Name      string `json:"name"`
	URL       string `json:"url,omitempty"`
}

// DOI returns the registered DOI, if any.
func (a *Article) DOI() (string, bool) {
	v, ok := a.Identifiers[TypeDOI]
	return v, ok && v != ""
}

// URN returns the registered URN, if any.
func (a *Article) URN() (string, bool) {
	v, ok := a.Identifiers[TypeURN]
	return v, ok && v != ""
}

// MMSID returns the Alma bib record id, if any.
func (a *Article) MMSID() (string, bool) {
	v, ok := a.Identifiers[TypeMMSID]
	return v, ok && v != ""
}

// AC returns the Austrian union catalog number, if any.
func (a *Article) AC() (string, bool) {
	v, ok := a.Identifiers[TypeAC]
	return v, ok && v != ""
}

// Keywords returns the keyword set for a two-letter language code.
func (a *Article) Keywords(lang string) []string {
	switch lang {
	case "de", "ger", "deu":
		return a.KeywordsDE
	default:
		return a.KeywordsEN
	}
}

// Source is the read-only article contract the sync core consumes.
type Source interface {
	// Article returns the article with the given id, or (nil, nil) if it
	// does not exist.
	Article(id int64) (*Article, error)

	// ArticleByDOI returns the published article of a journal carrying the
	// given DOI, or (nil, nil) if none matches.
	ArticleByDOI(journalCode, doi string) (*Article, error)

	// PublishedWithDOI lists published articles of a journal that carry a
	// DOI, optionally bounded by publication date (inclusive; zero time
	// means unbounded on that side).
	PublishedWithDOI(journalCode string, from, until time.Time) ([]*Article, error)
}

// IdentifierStore persists external identifiers and DataCite state.
type IdentifierStore interface {
	// ReplaceIdentifier deletes any existing identifier of the given type
	// for the article and inserts the new value.
	ReplaceIdentifier(articleID int64, idType, value string) error

	// DeleteIdentifier removes all identifiers of the given type.
	DeleteIdentifier(articleID int64, idType string) error

	// SetDataCiteState updates the article's DOI lifecycle state.
	SetDataCiteState(articleID int64, state DataCiteState) error
}
