package marc

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

const sampleMARCXML = `
<record>
    <leader>01876nas#a2200529#c#4500</leader>
    <controlfield tag="001">990006498190203336</controlfield>
    <controlfield tag="005">20170724210100.0</controlfield>
    <controlfield tag="007">cr#|||||||||||</controlfield>
    <datafield ind1="7" tag="016" ind2=" ">
        <subfield code="a">020567944</subfield>
        <subfield code="2">DE-101b</subfield>
    </datafield>
    <datafield ind2=" " tag="016" ind1="7">
        <subfield code="a">2018371-9</subfield>
        <subfield code="2">DE-600</subfield>
    </datafield>
</record>`

func TestParse(t *testing.T) {
	rec, err := Parse(sampleMARCXML)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if rec.Leader != "01876nas#a2200529#c#4500" {
		t.Errorf("Leader = %q", rec.Leader)
	}
	if len(rec.ControlFields) != 3 {
		t.Errorf("got %d control fields, want 3", len(rec.ControlFields))
	}
	if len(rec.DataFields) != 2 {
		t.Fatalf("got %d data fields, want 2", len(rec.DataFields))
	}

	df := rec.DataFields[0]
	if df.Tag != "016" || df.Ind1 != "7" || df.Ind2 != " " {
		t.Errorf("first data field = %+v", df)
	}
	if v, ok := df.Subfield("2"); !ok || v != "DE-101b" {
		t.Errorf("subfield $2 = %q, %v", v, ok)
	}
}

func TestParseMissingLeader(t *testing.T) {
	_, err := Parse(`<record><controlfield tag="001">x</controlfield></record>`)
	if !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("Parse() error = %v, want ErrMalformedRecord", err)
	}
}

func TestParseMissingFieldsTolerated(t *testing.T) {
	rec, err := Parse(`<record><leader>00000naa a2200000 c 4500</leader></record>`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(rec.ControlFields) != 0 || len(rec.DataFields) != 0 {
		t.Errorf("expected empty field lists, got %d/%d",
			len(rec.ControlFields), len(rec.DataFields))
	}
}

func TestParseInvalidXML(t *testing.T) {
	if _, err := Parse(`<record><leader>`); err == nil {
		t.Error("Parse() of truncated document should fail")
	}
}

// Round-trip: Parse(XML()) must reproduce tags, indicators, subfield codes
// and values in insertion order.
func TestRoundTrip(t *testing.T) {
	rec := buildTestRecord()

	doc, err := rec.XML()
	if err != nil {
		t.Fatalf("XML() error = %v", err)
	}

	parsed, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse(XML()) error = %v", err)
	}

	if parsed.Leader != rec.Leader {
		t.Errorf("leader = %q, want %q", parsed.Leader, rec.Leader)
	}
	if !reflect.DeepEqual(parsed.ControlFields, rec.ControlFields) {
		t.Errorf("control fields differ:\n got %+v\nwant %+v",
			parsed.ControlFields, rec.ControlFields)
	}
	if !reflect.DeepEqual(parsed.DataFields, rec.DataFields) {
		t.Errorf("data fields differ:\n got %+v\nwant %+v",
			parsed.DataFields, rec.DataFields)
	}
}

func TestXMLEscaping(t *testing.T) {
	rec := &Record{Leader: "00000naa a2200000 c 4500"}
	df := NewDataField("245", "1", "0")
	df.AddSubfield("a", `Q <&> "research"`)
	rec.AddDataField(df)

	doc, err := rec.XML()
	if err != nil {
		t.Fatalf("XML() error = %v", err)
	}
	if strings.Contains(doc, "<&>") {
		t.Errorf("unescaped special characters in output:\n%s", doc)
	}

	parsed, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if v, _ := parsed.DataFields[0].Subfield("a"); v != `Q <&> "research"` {
		t.Errorf("escaped value did not round-trip: %q", v)
	}
}
