// Package datacite builds DataCite metadata documents and talks to the MDS
// registration API.
package datacite

import (
	"encoding/xml"
	"fmt"
	"regexp"

	"github.com/tuwlib/bibsync/internal/article"
	"github.com/tuwlib/bibsync/internal/config"
)

const (
	xmlHeader      = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
	kernelNS       = "http://datacite.org/schema/kernel-4"
	schemaLocation = "http://datacite.org/schema/kernel-4 http://schema.datacite.org/meta/kernel-4/metadata.xsd"
	xsiNS          = "http://www.w3.org/2001/XMLSchema-instance"
)

// Builder maps article snapshots to DataCite XML using per-journal
// configuration.
type Builder struct {
	journals map[string]config.Journal
}

// NewBuilder creates a Builder over the configured journals.
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{journals: cfg.Journals}
}

// SynthesizeDOI derives the deterministic DOI for an article that has none:
// {prefix}/{namespace}.{issue year}.{article id + offset}. The same inputs
// always yield the same DOI.
func (b *Builder) SynthesizeDOI(a *article.Article) (string, error) {
	j, ok := b.journals[a.JournalCode]
	if !ok {
		return "", fmt.Errorf("unknown journal code %q", a.JournalCode)
	}
	if a.PrimaryIssue == nil {
		return "", fmt.Errorf("primary issue not set")
	}
	return fmt.Sprintf("%s/%s.%d.%d", j.Prefix, j.NamespaceSeparator,
		a.PrimaryIssue.Year, a.ID+int64(j.IDOffset)), nil
}

// DOIConforms reports whether a DOI matches the journal's currently
// configured prefix/namespace pattern. Registered DOIs that predate a
// configuration change fail this check, which blocks any further build.
func (b *Builder) DOIConforms(journalCode, doi string) bool {
	j, ok := b.journals[journalCode]
	if !ok {
		return false
	}
	pattern := "^" + regexp.QuoteMeta(j.Prefix) + "/" + regexp.QuoteMeta(j.NamespaceSeparator) + `\.\d{4}\.\d+$`
	return regexp.MustCompile(pattern).MatchString(doi)
}

// XML-marshalable DataCite kernel-4 resource. Struct field order fixes the
// element order of the output.
type resource struct {
	XMLName        xml.Name `xml:"resource"`
	XSINamespace   string   `xml:"xmlns:xsi,attr"`
	Namespace      string   `xml:"xmlns,attr"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr"`

	Identifier           identifier            `xml:"identifier"`
	Creators             creators              `xml:"creators"`
	Titles               titles                `xml:"titles"`
	Subjects             *subjects             `xml:"subjects,omitempty"`
	Publisher            string                `xml:"publisher"`
	PublicationYear      int                   `xml:"publicationYear"`
	Dates                dates                 `xml:"dates"`
	AlternateIdentifiers *alternateIdentifiers `xml:"alternateIdentifiers,omitempty"`
	RightsList           *rightsList           `xml:"rightsList,omitempty"`
	ResourceType         resourceType          `xml:"resourceType"`
	RelatedIdentifiers   *relatedIdentifiers   `xml:"relatedIdentifiers,omitempty"`
	Descriptions         descriptions          `xml:"descriptions"`
}

type identifier struct {
	Type  string `xml:"identifierType,attr"`
	Value string `xml:",chardata"`
}

type creators struct {
	Creator []creator `xml:"creator"`
}

type creator struct {
	CreatorName    creatorName     `xml:"creatorName"`
	GivenName      string          `xml:"givenName"`
	FamilyName     string          `xml:"familyName"`
	NameIdentifier *nameIdentifier `xml:"nameIdentifier,omitempty"`
}

type creatorName struct {
	NameType string `xml:"nameType,attr"`
	Value    string `xml:",chardata"`
}

type nameIdentifier struct {
	Scheme    string `xml:"nameIdentifierScheme,attr"`
	SchemeURI string `xml:"schemeURI,attr"`
	Value     string `xml:",chardata"`
}

type titles struct {
	Title []title `xml:"title"`
}

type title struct {
	Lang  string `xml:"xml:lang,attr,omitempty"`
	Type  string `xml:"titleType,attr,omitempty"`
	Value string `xml:",chardata"`
}

type subjects struct {
	Subject []subject `xml:"subject"`
}

type subject struct {
	Lang  string `xml:"xml:lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

type dates struct {
	Date []date `xml:"date"`
}

type date struct {
	Type  string `xml:"dateType,attr"`
	Value string `xml:",chardata"`
}

type alternateIdentifiers struct {
	AlternateIdentifier []alternateIdentifier `xml:"alternateIdentifier"`
}

type alternateIdentifier struct {
	Type  string `xml:"alternateIdentifierType,attr"`
	Value string `xml:",chardata"`
}

type rightsList struct {
	Rights []rights `xml:"rights"`
}

type rights struct {
	URI   string `xml:"rightsURI,attr,omitempty"`
	Lang  string `xml:"xml:lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

type resourceType struct {
	General string `xml:"resourceTypeGeneral,attr"`
	Value   string `xml:",chardata"`
}

type relatedIdentifiers struct {
	RelatedIdentifier []relatedIdentifier `xml:"relatedIdentifier"`
}

type relatedIdentifier struct {
	Type         string `xml:"relatedIdentifierType,attr"`
	RelationType string `xml:"relationType,attr"`
	Value        string `xml:",chardata"`
}

type descriptions struct {
	Description []description `xml:"description"`
}

type description struct {
	Lang  string `xml:"xml:lang,attr,omitempty"`
	Type  string `xml:"descriptionType,attr"`
	Value string `xml:",chardata"`
}

// Build maps an article to a DataCite XML document. Mandatory-field errors
// short-circuit: on any error the XML result is empty, never a partial
// document. Warnings flag omissions that do not block registration.
func (b *Builder) Build(a *article.Article) (string, []string, []string) {
	var errs, warnings []string

	if a.PrimaryIssue == nil {
		errs = append(errs, "primary issue not set")
	}
	if len(a.Authors) == 0 {
		errs = append(errs, "no authors for article")
	}
	if len(errs) > 0 {
		return "", errs, nil
	}

	j, ok := b.journals[a.JournalCode]
	if !ok {
		return "", []string{fmt.Sprintf("unknown journal code %q", a.JournalCode)}, nil
	}

	doi, hasDOI := a.DOI()
	if hasDOI {
		if !b.DOIConforms(a.JournalCode, doi) {
			return "", []string{"existing DOI doesn't conform to current configuration"}, nil
		}
	} else {
		var err error
		doi, err = b.SynthesizeDOI(a)
		if err != nil {
			return "", []string{err.Error()}, nil
		}
	}

	res := resource{
		XSINamespace:   xsiNS,
		Namespace:      kernelNS,
		SchemaLocation: schemaLocation,
		Identifier:     identifier{Type: "DOI", Value: doi},
	}

	for _, au := range a.Authors {
		c := creator{
			CreatorName: creatorName{NameType: "Personal", Value: au.FullName()},
			GivenName:   au.FirstName,
			FamilyName:  au.LastName,
		}
		if au.ORCID != "" {
			c.NameIdentifier = &nameIdentifier{
				Scheme:    "ORCID",
				SchemeURI: "https://orcid.org",
				Value:     au.ORCID,
			}
		}
		res.Creators.Creator = append(res.Creators.Creator, c)
	}

	lang := ""
	switch {
	case a.Language == "":
		warnings = append(warnings, "article language not set")
	case len(a.Language) < 2:
		warnings = append(warnings, "article language not recognized: "+a.Language)
	default:
		lang = a.Language[:2]
	}
	res.Titles.Title = append(res.Titles.Title, title{Lang: lang, Value: a.Title})
	if a.Subtitle != "" {
		res.Titles.Title = append(res.Titles.Title, title{Type: "Subtitle", Lang: lang, Value: a.Subtitle})
	}
	if a.TitleAlt != "" {
		res.Titles.Title = append(res.Titles.Title, title{Type: "AlternativeTitle", Value: a.TitleAlt})
	}
	if a.SubtitleAlt != "" {
		res.Titles.Title = append(res.Titles.Title, title{Type: "Other", Value: a.SubtitleAlt})
	}

	if len(a.KeywordsEN) > 0 || len(a.KeywordsDE) > 0 {
		subs := &subjects{}
		for _, kw := range a.KeywordsEN {
			subs.Subject = append(subs.Subject, subject{Lang: "en", Value: kw})
		}
		for _, kw := range a.KeywordsDE {
			subs.Subject = append(subs.Subject, subject{Lang: "de", Value: kw})
		}
		res.Subjects = subs
	}

	res.Publisher = j.Publisher
	res.PublicationYear = a.PrimaryIssue.Year
	res.Dates.Date = append(res.Dates.Date, date{Type: "Issued", Value: fmt.Sprintf("%d", a.PrimaryIssue.Year)})

	if urn, ok := a.URN(); ok {
		res.AlternateIdentifiers = &alternateIdentifiers{
			AlternateIdentifier: []alternateIdentifier{{Type: "URN", Value: urn}},
		}
	}

	if a.License != nil && a.License.ShortName != "Copyright" {
		res.RightsList = &rightsList{
			Rights: []rights{{URI: a.License.URL, Lang: "en-US", Value: a.License.Name}},
		}
	}

	res.ResourceType = resourceType{General: "Text", Value: "Journal Article"}

	if j.ISSN != "" {
		res.RelatedIdentifiers = &relatedIdentifiers{
			RelatedIdentifier: []relatedIdentifier{{Type: "ISSN", RelationType: "IsPartOf", Value: j.ISSN}},
		}
	}

	if a.Abstract == "" && a.AbstractAlt == "" {
		warnings = append(warnings, "neither english nor german abstract")
	}
	if a.Abstract != "" {
		res.Descriptions.Description = append(res.Descriptions.Description,
			description{Lang: "en", Type: "Abstract", Value: a.Abstract})
	}
	if a.AbstractAlt != "" {
		res.Descriptions.Description = append(res.Descriptions.Description,
			description{Lang: "de", Type: "Abstract", Value: a.AbstractAlt})
	}
	if j.SeriesTitle != "" {
		res.Descriptions.Description = append(res.Descriptions.Description, description{
			Type: "SeriesInformation",
			Value: fmt.Sprintf("%s %d(%s): %s", j.SeriesTitle,
				a.PrimaryIssue.Volume, a.PrimaryIssue.Label, a.PageNumbers),
		})
	}

	out, err := xml.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", append(errs, "error creating xml: "+err.Error()), warnings
	}

	// Re-parse as a well-formedness self-check before handing the document
	// to the registry.
	var check resource
	if err := xml.Unmarshal(out, &check); err != nil {
		return "", append(errs, "error creating xml: "+err.Error()), warnings
	}

	return xmlHeader + string(out) + "\n", nil, warnings
}
