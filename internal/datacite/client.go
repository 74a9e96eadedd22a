package datacite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tuwlib/bibsync/internal/config"
)

// mdsRateLimit bounds outbound requests; the MDS API throttles bursts.
const mdsRateLimit = 5.0

// okDOIPattern extracts the registered DOI from the MDS "OK (doi)" reply.
var okDOIPattern = regexp.MustCompile(`OK \((.+)\)`)

// Client talks to the DataCite MDS REST API. Every method performs exactly
// one attempt; retrying is the operator's decision.
type Client struct {
	httpClient      *http.Client
	limiter         *rate.Limiter
	endpoint        string
	user            string
	password        string
	deleteTimeoutOK bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithEndpoint overrides the endpoint URL (for testing).
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// NewClient creates an MDS client from configuration. Connect and read
// timeouts are enforced per call; a timeout surfaces as an error, not a
// panic.
func NewClient(cfg config.DataCite, opts ...ClientOption) *Client {
	connTimeout := time.Duration(cfg.ConnTimeout) * time.Second
	if connTimeout <= 0 {
		connTimeout = 5 * time.Second
	}
	readTimeout := time.Duration(cfg.ReadTimeout) * time.Second
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: connTimeout}).DialContext,
				ResponseHeaderTimeout: readTimeout,
			},
		},
		limiter:         rate.NewLimiter(rate.Limit(mdsRateLimit), 1),
		endpoint:        cfg.Endpoint,
		user:            cfg.User,
		password:        cfg.Password,
		deleteTimeoutOK: cfg.DeleteTimeoutOK(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetMetadata fetches the registered metadata document for a DOI.
func (c *Client) GetMetadata(ctx context.Context, doi string) (string, error) {
	return c.do(ctx, http.MethodGet, "metadata/"+doi, "", "", http.StatusOK)
}

// UpdateMetadata registers or updates the metadata document for a DOI and
// returns the DOI the registry acknowledged (from its "OK (doi)" reply).
func (c *Client) UpdateMetadata(ctx context.Context, doi, xmlDoc string) (string, error) {
	body, err := c.do(ctx, http.MethodPut, "metadata/"+doi,
		"application/xml;charset=UTF-8", xmlDoc, http.StatusCreated)
	if err != nil {
		return "", err
	}
	m := okDOIPattern.FindStringSubmatch(body)
	if m == nil {
		return "", errors.New("can't decode doi from response")
	}
	return m[1], nil
}

// RegisterURL registers the resolvable URL for a DOI, making it findable.
func (c *Client) RegisterURL(ctx context.Context, doi, articleURL string) error {
	body := "doi=" + doi + "\n" + "url=" + articleURL
	_, err := c.do(ctx, http.MethodPut, "doi/"+doi,
		"text/plain;charset=UTF-8", body, http.StatusCreated)
	return err
}

// GetURL fetches the URL currently registered for a DOI.
func (c *Client) GetURL(ctx context.Context, doi string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "doi/"+doi, "", "", http.StatusOK)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(body), nil
}

// DeleteDOI deletes a (draft) DOI. The MDS API sends no response on
// successful deletes, so a read timeout counts as success when so
// configured.
func (c *Client) DeleteDOI(ctx context.Context, doi string) error {
	_, err := c.do(ctx, http.MethodDelete, "doi/"+doi,
		"text/plain;charset=UTF-8", "", http.StatusNoContent)
	if err != nil && c.deleteTimeoutOK && isReadTimeout(err) {
		return nil
	}
	return err
}

// do performs one request and returns the body. Any status other than
// wantStatus is an error carrying the response body verbatim.
func (c *Client) do(ctx context.Context, method, path, contentType, body string, wantStatus int) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.SetBasicAuth(c.user, c.password)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != wantStatus {
		return "", fmt.Errorf("%d-%s", resp.StatusCode, string(respBody))
	}
	return string(respBody), nil
}

// readTimeoutError marks a timeout that occurred after the connection was
// established, so DeleteDOI can apply its timeout-as-success rule.
type readTimeoutError struct {
	err error
}

func (e *readTimeoutError) Error() string {
	return "read timeout: " + e.err.Error()
}

func (e *readTimeoutError) Unwrap() error { return e.err }

func isReadTimeout(err error) bool {
	var rte *readTimeoutError
	return errors.As(err, &rte)
}

// classifyTransportError distinguishes connect timeouts from read timeouts
// and wraps everything else with a descriptive message.
func classifyTransportError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		var operr *net.OpError
		if errors.As(err, &operr) && operr.Op == "dial" {
			return fmt.Errorf("connect timeout: %w", err)
		}
		return &readTimeoutError{err: err}
	}
	return fmt.Errorf("request failed: %w", err)
}
