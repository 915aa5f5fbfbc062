package services

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"refdesk/models"
	"refdesk/providers"
	"refdesk/zotero"
)

func newTestImporter(lib *fakeLibrary, provs ...providers.Provider) *Importer {
	return NewImporter(NewSearchService(provs, zap.NewNop()), lib, zap.NewNop())
}

func TestImportToCollectionCreatesAndFiles(t *testing.T) {
	pubmed := &fakeProvider{name: "pubmed", papers: []*models.Paper{
		{
			ID: "101", Title: "FHIR Validation", Abstract: "Zusammenfassung",
			Authors: []string{"Vorisek, Carina", "CORD-MI Consortium"},
			PublicationDate: "2022-01-15", URL: "https://pubmed.ncbi.nlm.nih.gov/101/",
			DOI: "10.2196/12345", Journal: "JMIR", Volume: "24", Issue: "2", Pages: "e12345",
			Source: "pubmed",
		},
		{ID: "102", Title: "Zweites Paper", Source: "pubmed"},
	}}
	lib := newFakeLibrary()
	im := newTestImporter(lib, pubmed)

	res, err := im.ImportToCollection(context.Background(), "pubmed", "fhir", "Importe", true, models.SearchOptions{MaxResults: 10})
	if err != nil {
		t.Fatalf("ImportToCollection: %v", err)
	}
	if pubmed.opts.MaxResults != 10 {
		t.Errorf("MaxResults = %d, erwartet 10", pubmed.opts.MaxResults)
	}
	if res.Status != "success" || res.PapersFound != 2 || res.PapersAdded != 2 {
		t.Errorf("Status/Found/Added = %q/%d/%d", res.Status, res.PapersFound, res.PapersAdded)
	}
	if len(lib.createdNames) != 1 || lib.createdNames[0] != "Importe" {
		t.Fatalf("angelegte Sammlungen = %v", lib.createdNames)
	}
	if res.CollectionName != "Importe" || res.CollectionKey != "COL001" {
		t.Errorf("Collection = %q/%q", res.CollectionName, res.CollectionKey)
	}
	if len(res.ItemsAdded) != 2 {
		t.Fatalf("ItemsAdded = %v", res.ItemsAdded)
	}
	if got := lib.attached["COL001"]; len(got) != 2 || got[0] != res.ItemsAdded[0] {
		t.Errorf("der Sammlung zugeordnet: %v", got)
	}

	item := lib.created[0]
	if item["itemType"] != "journalArticle" || item["title"] != "FHIR Validation" {
		t.Errorf("Item = %v", item)
	}
	if item["publicationTitle"] != "JMIR" || item["volume"] != "24" || item["issue"] != "2" || item["pages"] != "e12345" {
		t.Errorf("Journalfelder = %v", item)
	}
	if item["DOI"] != "10.2196/12345" {
		t.Errorf("DOI = %v", item["DOI"])
	}
	wantExtra := "Source: pubmed\nID: 101\nPMID: 101"
	if item["extra"] != wantExtra {
		t.Errorf("extra = %q\nerwartet %q", item["extra"], wantExtra)
	}
	creators, ok := item["creators"].([]models.Creator)
	if !ok || len(creators) != 2 {
		t.Fatalf("creators = %v", item["creators"])
	}
	if creators[0].LastName != "Vorisek" || creators[0].FirstName != "Carina" {
		t.Errorf("creators[0] = %+v", creators[0])
	}
	if creators[1].Name != "CORD-MI Consortium" {
		t.Errorf("creators[1] = %+v", creators[1])
	}
}

func TestImportToCollectionMissingCollectionNoCreate(t *testing.T) {
	pubmed := &fakeProvider{name: "pubmed", papers: []*models.Paper{
		{ID: "1", Title: "T", Source: "pubmed"},
	}}
	lib := newFakeLibrary()
	im := newTestImporter(lib, pubmed)

	_, err := im.ImportToCollection(context.Background(), "pubmed", "q", "Fehlt", false, models.SearchOptions{})
	if !zotero.IsNotFound(err) {
		t.Fatalf("erwartet NotFound, bekam %v", err)
	}
	if len(lib.created) != 0 || len(lib.createdNames) != 0 {
		t.Errorf("trotz Fehler wurden Einträge angelegt: %v / %v", lib.created, lib.createdNames)
	}
}

func TestImportToCollectionSkipsFailedItems(t *testing.T) {
	pubmed := &fakeProvider{name: "pubmed", papers: []*models.Paper{
		{ID: "1", Title: "Gut Eins", Source: "pubmed"},
		{ID: "2", Title: "Kaputt", Source: "pubmed"},
		{ID: "3", Title: "Gut Zwei", Source: "pubmed"},
	}}
	lib := newFakeLibrary()
	lib.createItemErr["Kaputt"] = errors.New("api überlastet")
	im := newTestImporter(lib, pubmed)

	res, err := im.ImportToCollection(context.Background(), "pubmed", "q", "Importe", true, models.SearchOptions{})
	if err != nil {
		t.Fatalf("ein fehlgeschlagener Eintrag darf den Import nicht abbrechen: %v", err)
	}
	if res.PapersFound != 3 || res.PapersAdded != 2 {
		t.Errorf("Found/Added = %d/%d, erwartet 3/2", res.PapersFound, res.PapersAdded)
	}
	if res.Status != "success" {
		t.Errorf("Status = %q", res.Status)
	}
	if len(lib.attached["COL001"]) != 2 {
		t.Errorf("zugeordnet = %v", lib.attached["COL001"])
	}
}

func TestImportToCollectionUnknownSource(t *testing.T) {
	im := newTestImporter(newFakeLibrary(), &fakeProvider{name: "pubmed"})

	_, err := im.ImportToCollection(context.Background(), "scopus", "q", "C", true, models.SearchOptions{})
	if !zotero.IsInvalidInput(err) {
		t.Errorf("erwartet Validierungsfehler, bekam %v", err)
	}
}

func TestImportToCollectionSearchErrorPropagates(t *testing.T) {
	pubmed := &fakeProvider{name: "pubmed", err: errors.New("eutils down")}
	lib := newFakeLibrary()
	im := newTestImporter(lib, pubmed)

	_, err := im.ImportToCollection(context.Background(), "pubmed", "q", "C", true, models.SearchOptions{})
	if err == nil {
		t.Fatal("Suchfehler der einzigen Quelle muss durchgereicht werden")
	}
	if len(lib.createdNames) != 0 {
		t.Errorf("Sammlung trotz Suchfehler angelegt: %v", lib.createdNames)
	}
}

func TestImportZeroResultsStillResolvesCollection(t *testing.T) {
	pubmed := &fakeProvider{name: "pubmed"}
	lib := newFakeLibrary()
	im := newTestImporter(lib, pubmed)

	res, err := im.ImportToCollection(context.Background(), "pubmed", "nischenthema", "Leer", true, models.SearchOptions{})
	if err != nil {
		t.Fatalf("ImportToCollection: %v", err)
	}
	if res.Status != "success" || res.PapersFound != 0 || res.PapersAdded != 0 {
		t.Errorf("Status/Found/Added = %q/%d/%d", res.Status, res.PapersFound, res.PapersAdded)
	}
	// Die Sammlung wird auch ohne Treffer angelegt, zugeordnet wird nichts.
	if len(lib.createdNames) != 1 {
		t.Errorf("angelegte Sammlungen = %v", lib.createdNames)
	}
	if len(lib.attached) != 0 {
		t.Errorf("Zuordnung ohne Einträge: %v", lib.attached)
	}
	if res.ItemsAdded == nil || len(res.ItemsAdded) != 0 {
		t.Errorf("ItemsAdded = %#v, erwartet leere Liste", res.ItemsAdded)
	}
}

func TestImportMultiSourceAggregates(t *testing.T) {
	pubmed := &fakeProvider{name: "pubmed", papers: []*models.Paper{
		{ID: "1", Title: "P1", Source: "pubmed"},
		{ID: "2", Title: "P2", Source: "pubmed"},
	}}
	arxiv := &fakeProvider{name: "arxiv", err: errors.New("export.arxiv.org down")}
	charite := &fakeProvider{name: "charite", papers: []*models.Paper{
		{ID: "10.1000/xyz", Title: "C1", Source: "charite"},
	}}
	lib := newFakeLibrary()
	lib.collections = []models.Collection{{Key: "LIT1", Name: "Literatur"}}
	im := newTestImporter(lib, pubmed, arxiv, charite)

	res, err := im.ImportMultiSource(context.Background(), nil, "q", "Literatur", 7, false)
	if err != nil {
		t.Fatalf("ImportMultiSource: %v", err)
	}
	if pubmed.opts.MaxResults != 7 || charite.opts.MaxResults != 7 {
		t.Errorf("MaxResults = %d/%d, erwartet 7", pubmed.opts.MaxResults, charite.opts.MaxResults)
	}
	if res.PapersFound != 3 || res.PapersAdded != 3 {
		t.Errorf("Found/Added = %d/%d, erwartet 3/3", res.PapersFound, res.PapersAdded)
	}
	if res.SourceCounts["pubmed"] != 2 || res.SourceCounts["arxiv"] != 0 || res.SourceCounts["charite"] != 1 {
		t.Errorf("SourceCounts = %v", res.SourceCounts)
	}
	if got := res.AddedBySource["pubmed"]; len(got) != 2 {
		t.Errorf("AddedBySource[pubmed] = %v", got)
	}
	// Auch die ausgefallene Quelle taucht mit leerer Liste auf.
	if got, ok := res.AddedBySource["arxiv"]; !ok || got == nil || len(got) != 0 {
		t.Errorf("AddedBySource[arxiv] = %#v", got)
	}
	if res.CollectionKey != "LIT1" || len(lib.createdNames) != 0 {
		t.Errorf("bestehende Sammlung nicht wiederverwendet: %q / %v", res.CollectionKey, lib.createdNames)
	}
}

func TestImportMultiSourceUnknownSource(t *testing.T) {
	pubmed := &fakeProvider{name: "pubmed"}
	im := newTestImporter(newFakeLibrary(), pubmed)

	_, err := im.ImportMultiSource(context.Background(), []string{"pubmed", "scopus"}, "q", "C", 5, true)
	if !zotero.IsInvalidInput(err) {
		t.Fatalf("erwartet Validierungsfehler, bekam %v", err)
	}
	if len(pubmed.queries) != 0 {
		t.Errorf("Quellen werden vor der ersten Anfrage geprüft")
	}
}

func TestItemFromPaperArxiv(t *testing.T) {
	p := &models.Paper{
		ID: "2103.15348", Title: "Heterogeneous Data Integration",
		Authors: []string{"Carina N. Vorisek"},
		PublicationDate: "2021-03-29",
		URL:             "https://arxiv.org/abs/2103.15348v2",
		PDFURL:          "https://arxiv.org/pdf/2103.15348v2",
		PrimaryCategory: "cs.CL",
		Source:          "arxiv",
	}

	item := ItemFromPaper(p)
	if item["publicationTitle"] != "arXiv preprint" {
		t.Errorf("publicationTitle = %v", item["publicationTitle"])
	}
	wantExtra := "Source: arxiv\nID: 2103.15348\narXiv: 2103.15348\nCategory: cs.CL\nPDF: https://arxiv.org/pdf/2103.15348v2"
	if item["extra"] != wantExtra {
		t.Errorf("extra = %q\nerwartet %q", item["extra"], wantExtra)
	}
	if _, ok := item["DOI"]; ok {
		t.Errorf("DOI-Feld ohne DOI gesetzt: %v", item["DOI"])
	}
	creators, _ := item["creators"].([]models.Creator)
	if len(creators) != 1 || creators[0].Name != "Carina N. Vorisek" {
		t.Errorf("creators = %+v", creators)
	}
}

func TestItemFromPaperCharite(t *testing.T) {
	p := &models.Paper{
		ID: "10.1000/xyz", Title: "Team Output", DOI: "10.1000/xyz",
		Journal: "Methods Inf Med", Source: "charite",
	}

	item := ItemFromPaper(p)
	if item["extra"] != "Source: charite\nID: 10.1000/xyz" {
		t.Errorf("extra = %q", item["extra"])
	}
	if item["publicationTitle"] != "Methods Inf Med" {
		t.Errorf("publicationTitle = %v", item["publicationTitle"])
	}
	if _, ok := item["volume"]; ok {
		t.Errorf("leere Journalfelder dürfen nicht gesetzt werden")
	}
}
