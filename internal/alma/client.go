package alma

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethgrid/pester"

	"github.com/tuwlib/bibsync/internal/config"
	"github.com/tuwlib/bibsync/internal/marc"
)

const (
	bibsPath = "/almaws/v1/bibs/"
	confPath = "/almaws/v1/conf/"
)

// Client talks to the Alma REST API. Failed requests are retried up to the
// configured error threshold with exponential backoff.
type Client struct {
	http    *pester.Client
	baseURL string
	apiKey  string
}

// NewClient creates an Alma client from configuration.
func NewClient(cfg config.Alma) (*Client, error) {
	key, err := cfg.APIKey()
	if err != nil {
		return nil, err
	}

	hc := pester.New()
	hc.Backoff = pester.ExponentialBackoff
	hc.MaxRetries = cfg.ErrorThreshold + 1
	hc.RetryOnHTTP429 = true
	if cfg.Timeout > 0 {
		hc.Timeout = time.Duration(cfg.Timeout) * time.Second
	}

	return &Client{
		http:    hc,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  key,
	}, nil
}

// GetBib fetches the bib record envelope for an MMS id.
func (c *Client) GetBib(ctx context.Context, mmsID string) (string, error) {
	return c.do(ctx, http.MethodGet, c.baseURL+bibsPath+mmsID, "")
}

// CreateBib creates a new bib record from a <bib>-wrapped MARCXML document
// and returns the response envelope.
func (c *Client) CreateBib(ctx context.Context, bibXML string) (string, error) {
	return c.do(ctx, http.MethodPost, c.baseURL+bibsPath, bibXML)
}

// UpdateBib replaces an existing bib record.
func (c *Client) UpdateBib(ctx context.Context, mmsID, bibXML string) (string, error) {
	return c.do(ctx, http.MethodPut, c.baseURL+bibsPath+mmsID, bibXML)
}

// PushNetworkZone links an institution-zone bib record to the network zone.
// The caller must check for an existing NZ link first; double-linking is a
// cataloging integrity violation.
func (c *Client) PushNetworkZone(ctx context.Context, mmsID string) (string, error) {
	return c.do(ctx, http.MethodPost, c.baseURL+bibsPath+mmsID+"?op=link_to_nz", "")
}

// do performs one logical request (transport retries happen underneath).
// An "errorsExist" marker in the body is an application-level error even on
// HTTP 200.
func (c *Client) do(ctx context.Context, method, url, body string) (string, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "apikey "+c.apiKey)
	req.Header.Set("Accept", "application/xml")
	if body != "" {
		req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("alma request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%d-%s", resp.StatusCode, string(respBody))
	}
	if strings.Contains(string(respBody), "errorsExist") {
		return "", fmt.Errorf("alma error response: %s", string(respBody))
	}
	return string(respBody), nil
}

// Bib is the parsed bib record envelope returned by the bibs API.
type Bib struct {
	MMSID string
	// NetworkZoneLinked is true when the record carries a linked_record_id
	// of type NZ.
	NetworkZoneLinked bool
	Record            *marc.Record
}

type bibEnvelope struct {
	XMLName         xml.Name         `xml:"bib"`
	MMSID           string           `xml:"mms_id"`
	LinkedRecordIDs []linkedRecordID `xml:"linked_record_id"`
	Record          innerRecord      `xml:"record"`
}

type linkedRecordID struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type innerRecord struct {
	Inner string `xml:",innerxml"`
}

// ParseBib parses a bib envelope into its MMS id, NZ-link state and MARC
// record.
func ParseBib(bibXML string) (*Bib, error) {
	var env bibEnvelope
	if err := xml.Unmarshal([]byte(bibXML), &env); err != nil {
		return nil, fmt.Errorf("parsing bib envelope: %w", err)
	}

	b := &Bib{MMSID: env.MMSID}
	for _, lr := range env.LinkedRecordIDs {
		if lr.Type == "NZ" && strings.TrimSpace(lr.Value) != "" {
			b.NetworkZoneLinked = true
		}
	}

	if env.Record.Inner != "" {
		rec, err := marc.Parse("<record>" + env.Record.Inner + "</record>")
		if err != nil {
			return nil, fmt.Errorf("parsing bib record: %w", err)
		}
		b.Record = rec
	}
	return b, nil
}

// WrapBib wraps a MARCXML record in the <bib> envelope the bibs API expects.
func WrapBib(recordXML string) string {
	return "<bib>" + recordXML + "</bib>"
}

// SetMember is one member of an Alma set.
type SetMember struct {
	ID          string
	Description string
	Link        string
}

type membersPage struct {
	XMLName          xml.Name `xml:"members"`
	TotalRecordCount int      `xml:"total_record_count,attr"`
	Members          []struct {
		Link        string `xml:"link,attr"`
		ID          string `xml:"id"`
		Description string `xml:"description"`
	} `xml:"member"`
}

// FetchSetMembers pages through the members of a set, starting at offset,
// fetching limit members per request, up to maxRecords in total.
func (c *Client) FetchSetMembers(ctx context.Context, setID string, offset, limit, maxRecords int) ([]SetMember, error) {
	if limit <= 0 {
		limit = 100
	}

	probe, err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("%s%ssets/%s/members?limit=0&offset=0", c.baseURL, confPath, setID), "")
	if err != nil {
		return nil, err
	}
	var page membersPage
	if err := xml.Unmarshal([]byte(probe), &page); err != nil {
		return nil, fmt.Errorf("parsing set members: %w", err)
	}
	total := page.TotalRecordCount

	var members []SetMember
	for offset < total && len(members) < maxRecords {
		body, err := c.do(ctx, http.MethodGet,
			fmt.Sprintf("%s%ssets/%s/members?limit=%d&offset=%d", c.baseURL, confPath, setID, limit, offset), "")
		if err != nil {
			return nil, err
		}
		page = membersPage{}
		if err := xml.Unmarshal([]byte(body), &page); err != nil {
			return nil, fmt.Errorf("parsing set members: %w", err)
		}
		for _, m := range page.Members {
			members = append(members, SetMember{ID: m.ID, Description: m.Description, Link: m.Link})
		}
		offset += limit
	}
	if len(members) > maxRecords {
		members = members[:maxRecords]
	}
	return members, nil
}
