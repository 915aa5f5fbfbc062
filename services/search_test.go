package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"refdesk/models"
	"refdesk/providers"
	"refdesk/zotero"
)

// fakeProvider liefert vorbereitete Treffer für eine Quelle.
type fakeProvider struct {
	name    string
	papers  []*models.Paper
	err     error
	queries []string
	opts    models.SearchOptions
}

func (f *fakeProvider) Search(_ context.Context, query string, opts models.SearchOptions) ([]*models.Paper, error) {
	f.queries = append(f.queries, query)
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.papers, nil
}

func (f *fakeProvider) Get(_ context.Context, id string) (*models.Paper, error) {
	return nil, fmt.Errorf("get %s: nicht vorbereitet", id)
}

func (f *fakeProvider) Name() string { return f.name }

var _ providers.Provider = (*fakeProvider)(nil)

func testPaper(source, id, title, doi string) *models.Paper {
	return &models.Paper{ID: id, Title: title, DOI: doi, Source: source}
}

func TestSearchAllDeduplicates(t *testing.T) {
	pubmed := &fakeProvider{name: "pubmed", papers: []*models.Paper{
		testPaper("pubmed", "101", "FHIR Validation", "10.1234/abc"),
		testPaper("pubmed", "102", "Nur in PubMed", ""),
	}}
	arxiv := &fakeProvider{name: "arxiv", papers: []*models.Paper{
		// gleiche DOI in anderer Schreibweise, anderer Titel
		testPaper("arxiv", "2103.15348", "FHIR Validation (Preprint)", "https://doi.org/10.1234/ABC"),
	}}
	s := NewSearchService([]providers.Provider{pubmed, arxiv}, zap.NewNop())

	res, err := s.SearchAll(context.Background(), "fhir", nil, models.SearchOptions{})
	if err != nil {
		t.Fatalf("SearchAll: %v", err)
	}
	if res.SourceCounts["pubmed"] != 2 || res.SourceCounts["arxiv"] != 1 {
		t.Errorf("SourceCounts = %v, Rohzahlen vor der Deduplizierung erwartet", res.SourceCounts)
	}
	if res.Count != 2 || len(res.Results) != 2 {
		t.Fatalf("Count = %d, erwartet 2 nach DOI-Deduplizierung", res.Count)
	}
	if res.Results[0].Source != "pubmed" {
		t.Errorf("erster Treffer aus %q, der zuerst gesehene gewinnt", res.Results[0].Source)
	}
	if res.Query != "fhir" {
		t.Errorf("Query = %q", res.Query)
	}
}

func TestSearchAllDegradesPerSource(t *testing.T) {
	pubmed := &fakeProvider{name: "pubmed", err: errors.New("eutils nicht erreichbar")}
	arxiv := &fakeProvider{name: "arxiv", papers: []*models.Paper{
		testPaper("arxiv", "2103.1", "Bleibt", ""),
	}}
	s := NewSearchService([]providers.Provider{pubmed, arxiv}, zap.NewNop())

	res, err := s.SearchAll(context.Background(), "x", []string{"pubmed", "arxiv"}, models.SearchOptions{})
	if err != nil {
		t.Fatalf("eine kaputte Quelle darf die Suche nicht abbrechen: %v", err)
	}
	if res.SourceCounts["pubmed"] != 0 {
		t.Errorf("SourceCounts[pubmed] = %d, erwartet 0", res.SourceCounts["pubmed"])
	}
	if res.Count != 1 || res.Results[0].Title != "Bleibt" {
		t.Errorf("Ergebnisse = %+v", res.Results)
	}
}

func TestSearchAllUnknownSource(t *testing.T) {
	pubmed := &fakeProvider{name: "pubmed"}
	s := NewSearchService([]providers.Provider{pubmed}, zap.NewNop())

	_, err := s.SearchAll(context.Background(), "x", []string{"pubmed", "scopus"}, models.SearchOptions{})
	if !zotero.IsInvalidInput(err) {
		t.Fatalf("erwartet Validierungsfehler, bekam %v", err)
	}
	if len(pubmed.queries) != 0 {
		t.Errorf("Quellen werden vor der ersten Anfrage geprüft, pubmed wurde trotzdem befragt")
	}
}

func TestSourcesOrderAndDedup(t *testing.T) {
	a := &fakeProvider{name: "pubmed", papers: []*models.Paper{testPaper("pubmed", "1", "A", "")}}
	b := &fakeProvider{name: "arxiv"}
	c := &fakeProvider{name: "pubmed"} // doppelt registriert, der erste gewinnt
	s := NewSearchService([]providers.Provider{a, b, c}, zap.NewNop())

	got := s.Sources()
	if len(got) != 2 || got[0] != "pubmed" || got[1] != "arxiv" {
		t.Fatalf("Sources = %v", got)
	}

	p, err := s.Provider("pubmed")
	if err != nil {
		t.Fatalf("Provider: %v", err)
	}
	if p != providers.Provider(a) {
		t.Errorf("Provider(pubmed) ist nicht der zuerst registrierte")
	}

	got[0] = "manipuliert"
	if s.Sources()[0] != "pubmed" {
		t.Errorf("Sources gibt keine Kopie zurück")
	}

	if _, err := s.Provider("unbekannt"); !zotero.IsInvalidInput(err) {
		t.Errorf("Provider(unbekannt): %v", err)
	}
}
