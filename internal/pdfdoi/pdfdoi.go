// Package pdfdoi cross-checks the DOI printed in an article's PDF galley
// against the registered identifier. A mismatch usually means the galley
// was produced before the DOI was (re)assigned.
package pdfdoi

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/tuwlib/bibsync/internal/article"
)

// doiPattern matches 10.XXXX/... handles embedded in page text.
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// Finding is the outcome of one galley check.
type Finding struct {
	ArticleID  int64
	Registered string
	Printed    string
}

// Match reports whether the printed DOI equals the registered one. A galley
// with no detectable DOI does not match.
func (f Finding) Match() bool {
	return f.Printed != "" && f.Printed == f.Registered
}

// Scanner resolves galley paths under a root directory and scans them for
// printed DOIs.
type Scanner struct {
	galleyRoot string
}

// NewScanner creates a Scanner rooted at galleyRoot.
func NewScanner(galleyRoot string) *Scanner {
	return &Scanner{galleyRoot: galleyRoot}
}

// Verify scans the article's galley and compares the printed DOI with the
// registered one.
func (s *Scanner) Verify(a *article.Article) (Finding, error) {
	f := Finding{ArticleID: a.ID}
	f.Registered, _ = a.DOI()

	if a.GalleyPath == "" {
		return f, fmt.Errorf("article %d has no galley", a.ID)
	}
	path, err := s.resolve(a.GalleyPath)
	if err != nil {
		return f, err
	}

	printed, err := ExtractDOI(path)
	if err != nil {
		return f, fmt.Errorf("scanning galley: %w", err)
	}
	f.Printed = printed
	return f, nil
}

func (s *Scanner) resolve(galleyPath string) (string, error) {
	if s.galleyRoot == "" {
		return "", fmt.Errorf("galley root not configured")
	}
	full := filepath.Join(s.galleyRoot, galleyPath)
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("galley not found: %s", full)
		}
		return "", fmt.Errorf("checking galley: %w", err)
	}
	return full, nil
}

// ExtractDOI scans the first pages of a PDF for a DOI handle. Absence is
// reported as an empty string, not an error.
func ExtractDOI(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	// The DOI is printed in the header or footer of the first pages.
	maxPages := 3
	if r.NumPage() < maxPages {
		maxPages = r.NumPage()
	}
	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if doi := findDOI(text); doi != "" {
			return doi, nil
		}
	}
	return "", nil
}

// findDOI returns the first plausible DOI in text.
func findDOI(text string) string {
	for _, match := range doiPattern.FindAllString(text, -1) {
		match = strings.TrimRight(match, ".,;:)")
		if isValidDOI(match) {
			return match
		}
	}
	return ""
}

func isValidDOI(doi string) bool {
	if len(doi) < 10 || !strings.HasPrefix(doi, "10.") {
		return false
	}
	slash := strings.Index(doi, "/")
	return slash != -1 && slash < len(doi)-1
}
