// Package oaipmh implements the OAI-PMH 2.0 endpoint over published
// articles. Errors are payload-level per the protocol convention: every
// response is HTTP 200 text/xml, and protocol failures are reported through
// an <error> element.
package oaipmh

import (
	"encoding/xml"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tuwlib/bibsync/internal/article"
	"github.com/tuwlib/bibsync/internal/config"
)

const (
	// MetadataPrefix is the single supported metadata format.
	MetadataPrefix = "oai_dc"

	oaiNS          = "http://www.openarchives.org/OAI/2.0/"
	oaiSchema      = "http://www.openarchives.org/OAI/2.0/ http://www.openarchives.org/OAI/2.0/OAI-PMH.xsd"
	oaiDCNS        = "http://www.openarchives.org/OAI/2.0/oai_dc/"
	oaiDCSchema    = "http://www.openarchives.org/OAI/2.0/oai_dc/ http://www.openarchives.org/OAI/2.0/oai_dc.xsd"
	dcNS           = "http://purl.org/dc/elements/1.1/"
	xsiNS          = "http://www.w3.org/2001/XMLSchema-instance"
	dcSchemaURL    = "http://www.openarchives.org/OAI/2.0/oai_dc.xsd"
	xmlDeclaration = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
)

// OAI-PMH error codes.
const (
	codeBadVerb            = "badVerb"
	codeBadArgument        = "badArgument"
	codeBadResumptionToken = "badResumptionToken"
	codeCannotDisseminate  = "cannotDisseminateFormat"
	codeIDDoesNotExist     = "idDoesNotExist"
	codeNoRecordsMatch     = "noRecordsMatch"
	codeNoSetHierarchy     = "noSetHierarchy"
)

var datestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)

var legalVerbs = map[string]bool{
	"Identify":            true,
	"ListMetadataFormats": true,
	"ListSets":            true,
	"ListIdentifiers":     true,
	"ListRecords":         true,
	"GetRecord":           true,
}

// Handler serves OAI-PMH requests for one or more configured journals.
type Handler struct {
	cfg    *config.Config
	source article.Source
	now    func() time.Time
}

// NewHandler creates a Handler over a configuration and article source.
func NewHandler(cfg *config.Config, source article.Source) *Handler {
	return &Handler{cfg: cfg, source: source, now: time.Now}
}

// Handle processes one OAI-PMH request and returns the XML response body.
// The caller serves it with HTTP 200 and Content-Type text/xml regardless
// of protocol-level success.
func (h *Handler) Handle(journalCode, baseURL string, params url.Values) (string, error) {
	j, err := h.cfg.JournalFor(journalCode)
	if err != nil {
		return "", err
	}

	resp := &response{
		XMLNS:          oaiNS,
		XMLNSXSI:       xsiNS,
		SchemaLocation: oaiSchema,
		ResponseDate:   oaiDatestamp(h.now()),
		Request:        requestEcho(baseURL, params),
	}

	h.dispatch(resp, j, journalCode, baseURL, params)

	out, err := xml.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", err
	}
	return xmlDeclaration + string(out) + "\n", nil
}

func (h *Handler) dispatch(resp *response, j config.Journal, journalCode, baseURL string, params url.Values) {
	verb := params.Get("verb")
	if !legalVerbs[verb] {
		// Illegal requests must not echo their arguments.
		resp.Request = &request{Value: baseURL}
		resp.Error = &protocolError{Code: codeBadVerb, Message: "illegal or missing verb"}
		return
	}

	switch verb {
	case "ListSets":
		resp.Error = &protocolError{Code: codeNoSetHierarchy, Message: "this repository does not support sets"}
	case "Identify":
		resp.Identify = &identify{
			RepositoryName:    j.Description,
			BaseURL:           baseURL,
			ProtocolVersion:   "2.0",
			AdminEmail:        h.cfg.OAI.AdminEmail,
			EarliestDatestamp: "1970-01-01T00:00:00Z",
			DeletedRecord:     "no",
			Granularity:       "YYYY-MM-DDThh:mm:ssZ",
		}
	case "ListMetadataFormats":
		h.listMetadataFormats(resp, j, journalCode, params)
	case "GetRecord":
		h.getRecord(resp, j, journalCode, params)
	case "ListRecords", "ListIdentifiers":
		h.list(resp, j, journalCode, verb, params)
	}
}

// list handles ListRecords and ListIdentifiers, which share their parameter
// validation. Validation order is canonical: an invalid metadataPrefix is
// reported before an invalid set or resumptionToken.
func (h *Handler) list(resp *response, j config.Journal, journalCode, verb string, params url.Values) {
	for key := range params {
		switch key {
		case "verb", "from", "until", "metadataPrefix", "set", "resumptionToken":
		default:
			resp.Error = &protocolError{Code: codeBadArgument, Message: "illegal argument " + key}
			return
		}
	}
	if params.Get("metadataPrefix") == "" {
		resp.Error = &protocolError{Code: codeBadArgument, Message: "metadataPrefix is required"}
		return
	}
	if params.Get("metadataPrefix") != MetadataPrefix {
		resp.Error = &protocolError{Code: codeCannotDisseminate, Message: "only oai_dc is supported"}
		return
	}
	// Presence, not truthiness: an empty set parameter is still a set request.
	if _, ok := params["set"]; ok {
		resp.Error = &protocolError{Code: codeNoSetHierarchy, Message: "this repository does not support sets"}
		return
	}
	if _, ok := params["resumptionToken"]; ok {
		resp.Error = &protocolError{Code: codeBadResumptionToken, Message: "this repository does not issue resumption tokens"}
		return
	}

	var from, until time.Time
	if v := params.Get("from"); v != "" {
		if !datestampPattern.MatchString(v) {
			resp.Error = &protocolError{Code: codeBadArgument, Message: "from must have the form YYYY-MM-DDThh:mm:ssZ"}
			return
		}
		from, _ = time.Parse(time.RFC3339, v)
	}
	if v := params.Get("until"); v != "" {
		if !datestampPattern.MatchString(v) {
			resp.Error = &protocolError{Code: codeBadArgument, Message: "until must have the form YYYY-MM-DDThh:mm:ssZ"}
			return
		}
		until, _ = time.Parse(time.RFC3339, v)
	}

	articles, err := h.source.PublishedWithDOI(journalCode, from, until)
	if err != nil {
		resp.Error = &protocolError{Code: codeNoRecordsMatch, Message: "error querying records: " + err.Error()}
		return
	}
	if len(articles) == 0 {
		resp.Error = &protocolError{Code: codeNoRecordsMatch, Message: "no records match the given criteria"}
		return
	}

	if verb == "ListIdentifiers" {
		li := &listIdentifiers{}
		for _, a := range articles {
			li.Headers = append(li.Headers, recordHeader(j, a))
		}
		resp.ListIdentifiers = li
		return
	}
	lr := &listRecords{}
	for _, a := range articles {
		lr.Records = append(lr.Records, record{
			Header:   recordHeader(j, a),
			Metadata: dublinCore(j, a),
		})
	}
	resp.ListRecords = lr
}

func (h *Handler) listMetadataFormats(resp *response, j config.Journal, journalCode string, params url.Values) {
	for key := range params {
		switch key {
		case "verb", "identifier":
		default:
			resp.Error = &protocolError{Code: codeBadArgument, Message: "illegal argument " + key}
			return
		}
	}

	// Presence, not truthiness: an empty identifier is still a lookup and
	// fails like any other malformed one.
	if _, present := params["identifier"]; present {
		id := params.Get("identifier")
		doi, ok := parseIdentifier(j, id)
		if !ok {
			resp.Error = &protocolError{Code: codeIDDoesNotExist, Message: "unknown identifier " + id}
			return
		}
		a, err := h.source.ArticleByDOI(journalCode, doi)
		if err != nil || a == nil {
			resp.Error = &protocolError{Code: codeIDDoesNotExist, Message: "unknown identifier " + id}
			return
		}
	}

	resp.ListMetadataFormats = &listMetadataFormats{
		Formats: []metadataFormat{{
			Prefix:    MetadataPrefix,
			Schema:    dcSchemaURL,
			Namespace: oaiDCNS,
		}},
	}
}

func (h *Handler) getRecord(resp *response, j config.Journal, journalCode string, params url.Values) {
	for key := range params {
		switch key {
		case "verb", "identifier", "metadataPrefix":
		default:
			resp.Error = &protocolError{Code: codeBadArgument, Message: "illegal argument " + key}
			return
		}
	}
	if params.Get("metadataPrefix") == "" {
		resp.Error = &protocolError{Code: codeBadArgument, Message: "metadataPrefix is required"}
		return
	}
	if params.Get("metadataPrefix") != MetadataPrefix {
		resp.Error = &protocolError{Code: codeCannotDisseminate, Message: "only oai_dc is supported"}
		return
	}
	id := params.Get("identifier")
	if id == "" {
		resp.Error = &protocolError{Code: codeBadArgument, Message: "identifier is required"}
		return
	}

	doi, ok := parseIdentifier(j, id)
	if !ok {
		resp.Error = &protocolError{Code: codeIDDoesNotExist, Message: "unknown identifier " + id}
		return
	}
	a, err := h.source.ArticleByDOI(journalCode, doi)
	if err != nil || a == nil {
		resp.Error = &protocolError{Code: codeIDDoesNotExist, Message: "unknown identifier " + id}
		return
	}

	resp.GetRecord = &getRecord{
		Record: record{
			Header:   recordHeader(j, a),
			Metadata: dublinCore(j, a),
		},
	}
}

// parseIdentifier splits an OAI identifier of the form oai:<domain>:<doi>
// and returns the DOI part.
func parseIdentifier(j config.Journal, id string) (string, bool) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 || parts[0] != "oai" || parts[1] != j.Domain || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

func oaiIdentifier(j config.Journal, a *article.Article) string {
	doi, _ := a.DOI()
	return "oai:" + j.Domain + ":" + doi
}

func recordHeader(j config.Journal, a *article.Article) header {
	return header{
		Identifier: oaiIdentifier(j, a),
		Datestamp:  oaiDatestamp(a.DatePublished),
	}
}

// requestEcho builds the <request> element with the recognized request
// parameters echoed as attributes.
func requestEcho(baseURL string, params url.Values) *request {
	return &request{
		Verb:            params.Get("verb"),
		Identifier:      params.Get("identifier"),
		MetadataPrefix:  params.Get("metadataPrefix"),
		From:            params.Get("from"),
		Until:           params.Get("until"),
		Set:             params.Get("set"),
		ResumptionToken: params.Get("resumptionToken"),
		Value:           baseURL,
	}
}
