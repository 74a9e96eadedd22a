package alma

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tuwlib/bibsync/internal/config"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(config.Alma{
		BaseURL: srv.URL,
		Target:  "sandbox",
		Keys:    map[string]string{"sandbox": "l8xx-test-key"},
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestGetBibHeaders(t *testing.T) {
	var gotAuth, gotAccept, gotPath string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotPath = r.URL.Path
		io.WriteString(w, "<bib><mms_id>9912345</mms_id></bib>")
	}))

	body, err := c.GetBib(context.Background(), "9912345")
	if err != nil {
		t.Fatalf("GetBib() error = %v", err)
	}
	if gotAuth != "apikey l8xx-test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotAccept != "application/xml" {
		t.Errorf("Accept = %q", gotAccept)
	}
	if gotPath != "/almaws/v1/bibs/9912345" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.Contains(body, "9912345") {
		t.Errorf("body = %q", body)
	}
}

func TestErrorsExistIsApplicationError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Alma reports some failures with HTTP 200 and an error body.
		io.WriteString(w, `<web_service_result><errorsExist>true</errorsExist></web_service_result>`)
	}))

	_, err := c.GetBib(context.Background(), "9912345")
	if err == nil || !strings.Contains(err.Error(), "alma error response") {
		t.Errorf("error = %v", err)
	}
}

func TestNonOKStatusCarriesBody(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, "bad mms id")
	}))

	_, err := c.GetBib(context.Background(), "nope")
	if err == nil || err.Error() != "400-bad mms id" {
		t.Errorf("error = %v", err)
	}
}

func TestCreateBibSendsXML(t *testing.T) {
	var gotMethod, gotBody, gotContentType string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotContentType = r.Header.Get("Content-Type")
		io.WriteString(w, "<bib><mms_id>991</mms_id></bib>")
	}))

	_, err := c.CreateBib(context.Background(), WrapBib("<record><leader>x</leader></record>"))
	if err != nil {
		t.Fatalf("CreateBib() error = %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q", gotMethod)
	}
	if !strings.HasPrefix(gotBody, "<bib>") || !strings.HasSuffix(gotBody, "</bib>") {
		t.Errorf("body = %q, want bib envelope", gotBody)
	}
	if gotContentType != "application/xml; charset=utf-8" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
}

func TestPushNetworkZonePath(t *testing.T) {
	var gotURL string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.String()
		io.WriteString(w, "<bib><mms_id>991</mms_id></bib>")
	}))

	if _, err := c.PushNetworkZone(context.Background(), "991"); err != nil {
		t.Fatalf("PushNetworkZone() error = %v", err)
	}
	if gotURL != "/almaws/v1/bibs/991?op=link_to_nz" {
		t.Errorf("url = %q", gotURL)
	}
}

func TestParseBib(t *testing.T) {
	bibXML := `<bib>
  <mms_id>997661148503336</mms_id>
  <linked_record_id type="NZ">998877</linked_record_id>
  <record>
    <leader>00000naa a2200000 c 4500</leader>
    <controlfield tag="001">997661148503336</controlfield>
    <controlfield tag="009">AC15504337</controlfield>
  </record>
</bib>`

	bib, err := ParseBib(bibXML)
	if err != nil {
		t.Fatalf("ParseBib() error = %v", err)
	}
	if bib.MMSID != "997661148503336" {
		t.Errorf("MMSID = %q", bib.MMSID)
	}
	if !bib.NetworkZoneLinked {
		t.Error("NetworkZoneLinked = false, want true")
	}
	if bib.Record == nil {
		t.Fatal("Record = nil")
	}
	if ac, ok := bib.Record.AC(); !ok || ac != "AC15504337" {
		t.Errorf("AC = %q, %v", ac, ok)
	}
}

func TestParseBibNoNZLink(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"absent", `<bib><mms_id>991</mms_id></bib>`},
		{"other type", `<bib><mms_id>991</mms_id><linked_record_id type="CZ">5</linked_record_id></bib>`},
		{"empty value", `<bib><mms_id>991</mms_id><linked_record_id type="NZ"></linked_record_id></bib>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bib, err := ParseBib(tt.xml)
			if err != nil {
				t.Fatalf("ParseBib() error = %v", err)
			}
			if bib.NetworkZoneLinked {
				t.Error("NetworkZoneLinked = true, want false")
			}
		})
	}
}

func TestFetchSetMembers(t *testing.T) {
	pages := map[string]string{
		"limit=0&offset=0": `<members total_record_count="3"/>`,
		"limit=2&offset=0": `<members total_record_count="3">
  <member link="l1"><id>991</id><description>first</description></member>
  <member link="l2"><id>992</id><description>second</description></member>
</members>`,
		"limit=2&offset=2": `<members total_record_count="3">
  <member link="l3"><id>993</id><description>third</description></member>
</members>`,
	}
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.RawQuery]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "unexpected query %s", r.URL.RawQuery)
			return
		}
		io.WriteString(w, body)
	}))

	members, err := c.FetchSetMembers(context.Background(), "88", 0, 2, 10)
	if err != nil {
		t.Fatalf("FetchSetMembers() error = %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("members = %+v", members)
	}
	if members[0].ID != "991" || members[2].Description != "third" {
		t.Errorf("members = %+v", members)
	}
}

func TestFetchSetMembersMaxRecords(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery == "limit=0&offset=0" {
			io.WriteString(w, `<members total_record_count="5"/>`)
			return
		}
		io.WriteString(w, `<members total_record_count="5">
  <member link="l"><id>991</id><description>d</description></member>
  <member link="l"><id>992</id><description>d</description></member>
</members>`)
	}))

	members, err := c.FetchSetMembers(context.Background(), "88", 0, 2, 2)
	if err != nil {
		t.Fatalf("FetchSetMembers() error = %v", err)
	}
	if len(members) != 2 {
		t.Errorf("members = %d, want capped at 2", len(members))
	}
}
