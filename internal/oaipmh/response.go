package oaipmh

import (
	"encoding/xml"
	"time"

	"github.com/tuwlib/bibsync/internal/article"
	"github.com/tuwlib/bibsync/internal/config"
)

// response is the OAI-PMH envelope. Exactly one of the verb payloads or the
// error element is populated.
type response struct {
	XMLName        xml.Name `xml:"OAI-PMH"`
	XMLNS          string   `xml:"xmlns,attr"`
	XMLNSXSI       string   `xml:"xmlns:xsi,attr"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr"`

	ResponseDate string   `xml:"responseDate"`
	Request      *request `xml:"request"`

	Error               *protocolError       `xml:"error,omitempty"`
	Identify            *identify            `xml:"Identify,omitempty"`
	ListMetadataFormats *listMetadataFormats `xml:"ListMetadataFormats,omitempty"`
	GetRecord           *getRecord           `xml:"GetRecord,omitempty"`
	ListRecords         *listRecords         `xml:"ListRecords,omitempty"`
	ListIdentifiers     *listIdentifiers     `xml:"ListIdentifiers,omitempty"`
}

type request struct {
	Verb            string `xml:"verb,attr,omitempty"`
	Identifier      string `xml:"identifier,attr,omitempty"`
	MetadataPrefix  string `xml:"metadataPrefix,attr,omitempty"`
	From            string `xml:"from,attr,omitempty"`
	Until           string `xml:"until,attr,omitempty"`
	Set             string `xml:"set,attr,omitempty"`
	ResumptionToken string `xml:"resumptionToken,attr,omitempty"`
	Value           string `xml:",chardata"`
}

type protocolError struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

type identify struct {
	RepositoryName    string `xml:"repositoryName"`
	BaseURL           string `xml:"baseURL"`
	ProtocolVersion   string `xml:"protocolVersion"`
	AdminEmail        string `xml:"adminEmail"`
	EarliestDatestamp string `xml:"earliestDatestamp"`
	DeletedRecord     string `xml:"deletedRecord"`
	Granularity       string `xml:"granularity"`
}

type listMetadataFormats struct {
	Formats []metadataFormat `xml:"metadataFormat"`
}

type metadataFormat struct {
	Prefix    string `xml:"metadataPrefix"`
	Schema    string `xml:"schema"`
	Namespace string `xml:"metadataNamespace"`
}

type getRecord struct {
	Record record `xml:"record"`
}

type listRecords struct {
	Records []record `xml:"record"`
}

type listIdentifiers struct {
	Headers []header `xml:"header"`
}

type record struct {
	Header   header   `xml:"header"`
	Metadata metadata `xml:"metadata"`
}

type header struct {
	Identifier string `xml:"identifier"`
	Datestamp  string `xml:"datestamp"`
}

type metadata struct {
	DC dc `xml:"oai_dc:dc"`
}

// dc is the Dublin Core metadata block.
type dc struct {
	XMLNSOAIDC     string `xml:"xmlns:oai_dc,attr"`
	XMLNSDC        string `xml:"xmlns:dc,attr"`
	XMLNSXSI       string `xml:"xmlns:xsi,attr"`
	SchemaLocation string `xml:"xsi:schemaLocation,attr"`

	Titles       []string `xml:"dc:title"`
	Creators     []string `xml:"dc:creator"`
	Subjects     []string `xml:"dc:subject,omitempty"`
	Descriptions []string `xml:"dc:description,omitempty"`
	Publisher    string   `xml:"dc:publisher"`
	Date         string   `xml:"dc:date"`
	Type         string   `xml:"dc:type"`
	Identifiers  []string `xml:"dc:identifier"`
	Language     string   `xml:"dc:language,omitempty"`
	Rights       string   `xml:"dc:rights,omitempty"`
	Source       string   `xml:"dc:source,omitempty"`
}

// dublinCore maps an article to its oai_dc metadata block.
func dublinCore(j config.Journal, a *article.Article) metadata {
	d := dc{
		XMLNSOAIDC:     oaiDCNS,
		XMLNSDC:        dcNS,
		XMLNSXSI:       xsiNS,
		SchemaLocation: oaiDCSchema,
		Publisher:      j.Publisher,
		Date:           a.DatePublished.UTC().Format("2006-01-02"),
		Type:           "info:eu-repo/semantics/article",
		Language:       a.Language,
		Source:         j.HostItemTitle,
	}

	d.Titles = append(d.Titles, a.Title)
	if a.TitleAlt != "" {
		d.Titles = append(d.Titles, a.TitleAlt)
	}
	for _, au := range a.Authors {
		d.Creators = append(d.Creators, au.FullName())
	}
	d.Subjects = append(d.Subjects, a.KeywordsEN...)
	d.Subjects = append(d.Subjects, a.KeywordsDE...)
	if a.Abstract != "" {
		d.Descriptions = append(d.Descriptions, a.Abstract)
	}
	if a.AbstractAlt != "" {
		d.Descriptions = append(d.Descriptions, a.AbstractAlt)
	}
	if doi, ok := a.DOI(); ok {
		d.Identifiers = append(d.Identifiers, "https://doi.org/"+doi)
	}
	d.Identifiers = append(d.Identifiers, j.ArticleURL(a.ID))
	if a.License != nil {
		d.Rights = a.License.Name
	}

	return metadata{DC: d}
}

// oaiDatestamp formats a timestamp in the repository's second-granularity
// UTC form.
func oaiDatestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}
