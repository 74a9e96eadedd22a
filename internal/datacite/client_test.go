package datacite

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tuwlib/bibsync/internal/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.DataCite{
		Endpoint: "https://mds.example.org/",
		User:     "TUW.JOURNALS",
		Password: "secret",
	}, WithEndpoint(srv.URL+"/"))
}

func TestUpdateMetadata(t *testing.T) {
	var gotPath, gotBody, gotAuth string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, "OK (10.34749/JFM.2019.1516)")
	})

	doi, err := c.UpdateMetadata(context.Background(), "10.34749/JFM.2019.1516", "<resource/>")
	if err != nil {
		t.Fatalf("UpdateMetadata() error = %v", err)
	}
	if doi != "10.34749/JFM.2019.1516" {
		t.Errorf("doi = %q", doi)
	}
	if gotPath != "/metadata/10.34749/JFM.2019.1516" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody != "<resource/>" {
		t.Errorf("body = %q", gotBody)
	}
	if !strings.HasPrefix(gotAuth, "Basic ") {
		t.Errorf("auth = %q, want basic auth", gotAuth)
	}
}

func TestUpdateMetadataUnparseableReply(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, "created")
	})

	_, err := c.UpdateMetadata(context.Background(), "10.34749/JFM.2019.1516", "<resource/>")
	if err == nil || !strings.Contains(err.Error(), "can't decode doi") {
		t.Errorf("error = %v", err)
	}
}

func TestUpdateMetadataErrorCarriesBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, "invalid XML")
	})

	_, err := c.UpdateMetadata(context.Background(), "10.34749/JFM.2019.1516", "<broken>")
	if err == nil {
		t.Fatal("want error for 422")
	}
	if got := err.Error(); got != "422-invalid XML" {
		t.Errorf("error = %q", got)
	}
}

func TestRegisterURL(t *testing.T) {
	var gotMethod, gotPath, gotBody string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusCreated)
	})

	err := c.RegisterURL(context.Background(), "10.34749/JFM.2019.1516",
		"https://jfm.example.org/article/id/16/")
	if err != nil {
		t.Fatalf("RegisterURL() error = %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/doi/10.34749/JFM.2019.1516" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	want := "doi=10.34749/JFM.2019.1516\nurl=https://jfm.example.org/article/id/16/"
	if gotBody != want {
		t.Errorf("body = %q, want %q", gotBody, want)
	}
}

func TestGetURL(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "https://jfm.example.org/article/id/16/\n")
	})

	got, err := c.GetURL(context.Background(), "10.34749/JFM.2019.1516")
	if err != nil {
		t.Fatalf("GetURL() error = %v", err)
	}
	if got != "https://jfm.example.org/article/id/16/" {
		t.Errorf("url = %q", got)
	}
}

func TestDeleteDOI(t *testing.T) {
	var gotMethod string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.DeleteDOI(context.Background(), "10.34749/JFM.2019.1516"); err != nil {
		t.Fatalf("DeleteDOI() error = %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %q", gotMethod)
	}
}

func TestDeleteDOIReadTimeoutIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	slow := &http.Client{
		Transport: &http.Transport{
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
			ResponseHeaderTimeout: 50 * time.Millisecond,
		},
	}

	c := NewClient(config.DataCite{Endpoint: srv.URL + "/"},
		WithHTTPClient(slow))
	if err := c.DeleteDOI(context.Background(), "10.34749/JFM.2019.1516"); err != nil {
		t.Errorf("DeleteDOI() error = %v, want timeout treated as success", err)
	}

	// With the quirk disabled the same timeout must surface.
	off := false
	c = NewClient(config.DataCite{Endpoint: srv.URL + "/", DeleteTimeoutIsSuccess: &off},
		WithHTTPClient(slow))
	if err := c.DeleteDOI(context.Background(), "10.34749/JFM.2019.1516"); err == nil {
		t.Error("DeleteDOI() = nil, want read timeout error")
	}
}

func TestGetMetadataNotFound(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, "DOI not found")
	})

	_, err := c.GetMetadata(context.Background(), "10.34749/JFM.2019.9999")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %v", err)
	}
}
