package pubmed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConvertIDIdentity(t *testing.T) {
	f := testFetcher("http://unbenutzt.invalid")
	got, err := f.ConvertID(context.Background(), "10.2196/19818", "doi", "doi")
	if err != nil {
		t.Fatalf("ConvertID: %v", err)
	}
	if got != "10.2196/19818" {
		t.Errorf("Identität = %q", got)
	}
}

func TestConvertIDUnknownType(t *testing.T) {
	f := testFetcher("http://unbenutzt.invalid")
	if _, err := f.ConvertID(context.Background(), "123", "pmid", "isbn"); err == nil {
		t.Fatal("erwartet Fehler für unbekannten ID-Typ")
	}
}

func TestValidatePMIDFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("ungültiges Format darf keine Netzrunde auslösen")
	}))
	defer srv.Close()

	got := testFetcher(srv.URL).ValidatePMID(context.Background(), "PMC12345")
	if got.ValidFormat || got.Exists {
		t.Errorf("ungültiges Format: %+v", got)
	}
}

func TestValidatePMIDExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/esummary.fcgi" || q.Get("db") != "pubmed" || q.Get("retmode") != "json" {
			t.Errorf("esummary-Parameter: %s %v", r.URL.Path, q)
		}
		fmt.Fprint(w, `{"result":{"uids":["32634507"],"32634507":{"uid":"32634507","title":"x"}}}`)
	}))
	defer srv.Close()

	got := testFetcher(srv.URL).ValidatePMID(context.Background(), "32634507")
	if !got.ValidFormat || !got.Exists {
		t.Errorf("existierende PMID: %+v", got)
	}
}

func TestValidatePMIDMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"uids":[],"99999999":{"uid":"99999999","error":"cannot get document summary"}}}`)
	}))
	defer srv.Close()

	got := testFetcher(srv.URL).ValidatePMID(context.Background(), "99999999")
	if !got.ValidFormat || got.Exists {
		t.Errorf("Fehler-Eintrag soll als nicht existent gelten: %+v", got)
	}
}

func TestValidatePMIDDegradesOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "kaputt", http.StatusInternalServerError)
	}))
	defer srv.Close()

	got := testFetcher(srv.URL).ValidatePMID(context.Background(), "32634507")
	if !got.ValidFormat || got.Exists {
		t.Errorf("Netzfehler soll als nicht existent gewertet werden: %+v", got)
	}
}
