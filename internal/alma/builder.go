// Package alma builds MARC21 export records for the Austrian union catalog
// and talks to the Alma REST API.
package alma

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tuwlib/bibsync/internal/article"
	"github.com/tuwlib/bibsync/internal/config"
	"github.com/tuwlib/bibsync/internal/marc"
)

// Record lengths and directory offsets are recalculated by Alma on import,
// so the leader carries placeholder zeros.
const exportLeader = "00000naa a2200000 c 4500"

// control008Template is the fixed-format 008 skeleton for online journal
// articles. Positions 0-5 (entry date), 7-10 (publication year) and 35-37
// (language) are filled in per record.
const control008Template = "000000|0000    |||     o     ||| 0     c"

var pageRangePattern = regexp.MustCompile(`^(\d+)-(\d+)$`)

// Builder maps article snapshots to MARC21 export records using per-journal
// configuration.
type Builder struct {
	journals map[string]config.Journal
	now      func() time.Time
}

// NewBuilder creates a Builder over the configured journals.
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{journals: cfg.Journals, now: time.Now}
}

// normalizeLang maps ISO 639-2/T codes to the 639-2/B codes MARC expects.
func normalizeLang(lang string) string {
	if lang == "deu" {
		return "ger"
	}
	return lang
}

func control008(entryDate time.Time, year int, lang string) string {
	b := []byte(control008Template)
	copy(b[0:6], entryDate.Format("060102"))
	copy(b[7:11], strconv.Itoa(year))
	if lang != "" {
		copy(b[35:38], normalizeLang(lang))
	}
	return string(b)
}

// Build maps an article to a MARCXML export document. Unlike the DataCite
// builder this never synthesizes a DOI: the export is a downstream,
// DOI-dependent step. Field order is fixed; it matters when diffing exports
// against the authoritative catalog.
func (b *Builder) Build(a *article.Article) (string, []string, []string) {
	var warnings []string

	doi, ok := a.DOI()
	if !ok {
		return "", []string{"doi not set"}, nil
	}

	j, ok := b.journals[a.JournalCode]
	if !ok {
		return "", []string{fmt.Sprintf("unknown journal code %q", a.JournalCode)}, nil
	}
	if a.PrimaryIssue == nil {
		return "", []string{"primary issue not set"}, nil
	}

	if a.Language == "" {
		warnings = append(warnings, "article language not set")
	}

	rec := &marc.Record{Leader: exportLeader}
	rec.AddControlField("007", "cr#|||||||||||")
	rec.AddControlField("008", control008(b.now(), a.PrimaryIssue.Year, a.Language))

	df := marc.NewDataField("024", "7", " ")
	df.AddSubfield("a", doi)
	df.AddSubfield("2", "doi")
	rec.AddDataField(df)
	if urn, ok := a.URN(); ok {
		df = marc.NewDataField("024", "7", " ")
		df.AddSubfield("a", urn)
		df.AddSubfield("2", "urn")
		rec.AddDataField(df)
	}

	df = marc.NewDataField("040", " ", " ")
	df.AddSubfield("a", "TUW")
	df.AddSubfield("b", "ger")
	df.AddSubfield("c", "VL-NEW")
	df.AddSubfield("d", "AT-UBTUW")
	df.AddSubfield("e", "rda")
	rec.AddDataField(df)

	if a.Language != "" {
		df = marc.NewDataField("041", " ", " ")
		df.AddSubfield("a", normalizeLang(a.Language))
		rec.AddDataField(df)
	}

	df = marc.NewDataField("044", " ", " ")
	df.AddSubfield("c", "XA-AT")
	rec.AddDataField(df)

	for i, au := range a.Authors {
		tag := "700"
		if i == 0 {
			tag = "100"
		}
		df = marc.NewDataField(tag, "1", " ")
		df.AddSubfield("a", au.FullName())
		df.AddSubfield("4", "aut")
		if au.IsCorrespondence {
			df.AddSubfield("4", "oth")
			df.AddSubfield("e", "corresponding author")
		}
		rec.AddDataField(df)
	}

	ind1 := "0"
	if len(a.Authors) > 0 {
		ind1 = "1"
	}
	df = marc.NewDataField("245", ind1, "0")
	df.AddSubfield("a", a.Title)
	if a.Subtitle != "" {
		df.AddSubfield("b", a.Subtitle)
	}
	rec.AddDataField(df)

	if a.TitleAlt != "" {
		df = marc.NewDataField("246", "1", " ")
		df.AddSubfield("a", a.TitleAlt)
		if a.SubtitleAlt != "" {
			df.AddSubfield("b", a.SubtitleAlt)
		}
		rec.AddDataField(df)
	}

	df = marc.NewDataField("251", " ", " ")
	df.AddSubfield("a", "Version of Record")
	rec.AddDataField(df)

	df = marc.NewDataField("264", " ", "1")
	df.AddSubfield("a", j.PlacePublished)
	df.AddSubfield("b", j.Publisher)
	df.AddSubfield("c", strconv.Itoa(a.PrimaryIssue.Year))
	rec.AddDataField(df)

	df = marc.NewDataField("300", " ", " ")
	df.AddSubfield("a", physicalDescription(a.PageNumbers))
	rec.AddDataField(df)

	for _, f := range []struct{ tag, code string }{
		{"336", "txt"}, {"337", "c"}, {"338", "cr"},
	} {
		df = marc.NewDataField(f.tag, " ", " ")
		df.AddSubfield("b", f.code)
		rec.AddDataField(df)
	}

	df = marc.NewDataField("347", " ", " ")
	df.AddSubfield("a", "Textdatei")
	df.AddSubfield("b", "PDF")
	rec.AddDataField(df)

	if j.PeerReviewed {
		df = marc.NewDataField("500", " ", " ")
		df.AddSubfield("a", "Peer reviewed")
		rec.AddDataField(df)
	}

	df = marc.NewDataField("506", "0", " ")
	df.AddSubfield("a", "Open Access")
	rec.AddDataField(df)

	if a.Abstract != "" {
		df = marc.NewDataField("520", " ", " ")
		df.AddSubfield("a", "eng: "+a.Abstract)
		rec.AddDataField(df)
	}
	if a.AbstractAlt != "" {
		df = marc.NewDataField("520", " ", " ")
		df.AddSubfield("a", "ger: "+a.AbstractAlt)
		rec.AddDataField(df)
	}

	if a.License != nil && a.License.ShortName != "Copyright" {
		df = marc.NewDataField("542", " ", " ")
		df.AddSubfield("a", "Unter einer CC-Lizenz, Details siehe Link")
		df.AddSubfield("f", a.License.ShortName)
		df.AddSubfield("2", "cc")
		if a.License.URL != "" {
			df.AddSubfield("u", a.License.URL)
		}
		rec.AddDataField(df)
	}

	df = marc.NewDataField("773", "0", "8")
	df.AddSubfield("i", "Enthalten in")
	df.AddSubfield("t", j.HostItemTitle)
	df.AddSubfield("d", strconv.Itoa(a.PrimaryIssue.Year))
	df.AddSubfield("g", fmt.Sprintf("Jahrgang (%d), Heft %s, Seiten %s",
		a.PrimaryIssue.Year, a.PrimaryIssue.Label, a.PageNumbers))
	if j.ACNumber != "" {
		df.AddSubfield("w", "(AT-OBV)"+j.ACNumber)
	}
	rec.AddDataField(df)

	df = marc.NewDataField("856", "4", "0")
	df.AddSubfield("u", "https://doi.org/"+doi)
	df.AddSubfield("q", "text/html")
	df.AddSubfield("x", "TUW")
	df.AddSubfield("3", "Volltext")
	rec.AddDataField(df)

	df = marc.NewDataField("970", "2", " ")
	df.AddSubfield("a", "TUW")
	df.AddSubfield("d", "OA-ARTICLE")
	rec.AddDataField(df)

	if len(a.KeywordsEN) > 0 {
		df = marc.NewDataField("971", " ", " ")
		df.AddSubfield("a", "eng: "+strings.Join(a.KeywordsEN, ", "))
		rec.AddDataField(df)
	}
	if len(a.KeywordsDE) > 0 {
		df = marc.NewDataField("971", " ", " ")
		df.AddSubfield("a", "ger: "+strings.Join(a.KeywordsDE, ", "))
		rec.AddDataField(df)
	}

	df = marc.NewDataField("996", " ", " ")
	df.AddSubfield("a", "reposiTUm")
	rec.AddDataField(df)

	xmlDoc, err := rec.XML()
	if err != nil {
		return "", []string{"error creating xml: " + err.Error()}, warnings
	}
	return xmlDoc, nil, warnings
}

// physicalDescription derives the page count from a "first-last" page range.
// Unparsable ranges yield the bare online-resource statement.
func physicalDescription(pageNumbers string) string {
	m := pageRangePattern.FindStringSubmatch(strings.TrimSpace(pageNumbers))
	if m == nil {
		return "1 Online-Ressource"
	}
	first, _ := strconv.Atoi(m[1])
	last, _ := strconv.Atoi(m[2])
	if last < first {
		return "1 Online-Ressource"
	}
	return fmt.Sprintf("1 Online-Ressource (%d Seiten)", last-first+1)
}
