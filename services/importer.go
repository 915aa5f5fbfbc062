package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"refdesk/models"
	"refdesk/zotero"
)

// Importer überführt Treffer aus den Publikationsquellen in Sammlungen
// des Referenzmanagers.
type Importer struct {
	search *SearchService
	lib    Library
	log    *zap.Logger
}

// NewImporter erstellt den Importer über Quellen und Bibliothek.
func NewImporter(search *SearchService, lib Library, log *zap.Logger) *Importer {
	return &Importer{search: search, lib: lib, log: log}
}

// ImportResult fasst einen Importlauf zusammen. Teilerfolge sind der
// Normalfall und stehen in den Zählern, nicht in einem Fehler.
type ImportResult struct {
	Status         string              `json:"status"`
	PapersFound    int                 `json:"papers_found"`
	PapersAdded    int                 `json:"papers_added"`
	CollectionName string              `json:"collection_name"`
	CollectionKey  string              `json:"collection_key"`
	ItemsAdded     []string            `json:"items_added"`
	SourceCounts   map[string]int      `json:"source_counts,omitempty"`
	AddedBySource  map[string][]string `json:"items_added_by_source,omitempty"`
}

// ImportToCollection durchsucht eine Quelle und legt die Treffer als
// Einträge in der benannten Sammlung ab. Fehlt die Sammlung, wird sie bei
// createCollection angelegt, andernfalls bricht der Import ohne
// Seiteneffekte ab. Einzelne fehlgeschlagene Einträge werden geloggt und
// übersprungen, nie bricht einer den Lauf ab.
func (im *Importer) ImportToCollection(ctx context.Context, source, query, collectionName string, createCollection bool, opts models.SearchOptions) (*ImportResult, error) {
	prov, err := im.search.Provider(source)
	if err != nil {
		return nil, err
	}
	im.log.Info("Importiere aus Quelle",
		zap.String("quelle", source),
		zap.String("query", query),
		zap.String("collection", collectionName))

	papers, err := prov.Search(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("suche in %s: %w", source, err)
	}
	res, _, err := im.filePapers(ctx, papers, collectionName, createCollection)
	return res, err
}

// ImportMultiSource durchsucht mehrere Quellen nacheinander und legt alle
// Treffer in einer gemeinsamen Sammlung ab. Eine fehlgeschlagene Quelle
// stoppt den Lauf nicht und zählt null Treffer. Eine leere Quellenliste
// heißt alle registrierten Quellen.
func (im *Importer) ImportMultiSource(ctx context.Context, sources []string, query, collectionName string, maxPerSource int, createCollection bool) (*ImportResult, error) {
	if len(sources) == 0 {
		sources = im.search.Sources()
	}
	for _, name := range sources {
		if _, err := im.search.Provider(name); err != nil {
			return nil, err
		}
	}
	im.log.Info("Importiere aus mehreren Quellen",
		zap.Strings("quellen", sources),
		zap.String("query", query),
		zap.String("collection", collectionName))

	opts := models.SearchOptions{MaxResults: maxPerSource}
	var all []*models.Paper
	counts := make(map[string]int, len(sources))
	for _, name := range sources {
		prov, _ := im.search.Provider(name)
		papers, err := prov.Search(ctx, query, opts)
		if err != nil {
			im.log.Warn("Quelle nicht durchsuchbar", zap.String("quelle", name), zap.Error(err))
			counts[name] = 0
			continue
		}
		counts[name] = len(papers)
		all = append(all, papers...)
	}

	res, bySource, err := im.filePapers(ctx, all, collectionName, createCollection)
	if err != nil {
		return nil, err
	}
	for _, name := range sources {
		if _, ok := bySource[name]; !ok {
			bySource[name] = []string{}
		}
	}
	res.SourceCounts = counts
	res.AddedBySource = bySource
	return res, nil
}

// filePapers legt die Treffer als Einträge an und ordnet sie der Sammlung
// zu; beide Importpfade laufen hier zusammen.
func (im *Importer) filePapers(ctx context.Context, papers []*models.Paper, collectionName string, createCollection bool) (*ImportResult, map[string][]string, error) {
	colKey, err := im.resolveCollection(ctx, collectionName, createCollection)
	if err != nil {
		return nil, nil, err
	}

	res := &ImportResult{
		Status:         "success",
		PapersFound:    len(papers),
		CollectionName: collectionName,
		CollectionKey:  colKey,
		ItemsAdded:     []string{},
	}
	bySource := make(map[string][]string)
	for _, p := range papers {
		key, err := im.lib.CreateItem(ctx, ItemFromPaper(p))
		if err != nil {
			im.log.Warn("Eintrag nicht angelegt",
				zap.String("quelle", p.Source),
				zap.String("titel", p.Title),
				zap.Error(err))
			continue
		}
		res.ItemsAdded = append(res.ItemsAdded, key)
		bySource[p.Source] = append(bySource[p.Source], key)
	}
	res.PapersAdded = len(res.ItemsAdded)

	if len(res.ItemsAdded) > 0 {
		im.lib.AddItemsToCollection(ctx, colKey, res.ItemsAdded)
	}
	im.log.Info("Import abgeschlossen",
		zap.Int("gefunden", res.PapersFound),
		zap.Int("angelegt", res.PapersAdded),
		zap.String("collection_key", colKey))
	return res, bySource, nil
}

// resolveCollection findet die Sammlung über exakten Namensvergleich und
// legt sie bei Bedarf an.
func (im *Importer) resolveCollection(ctx context.Context, name string, create bool) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: sammlungsname fehlt", zotero.ErrInvalidInput)
	}
	for _, col := range im.lib.ListCollections(ctx) {
		if col.Name == name {
			im.log.Debug("Verwende bestehende Sammlung", zap.String("name", name), zap.String("key", col.Key))
			return col.Key, nil
		}
	}
	if !create {
		return "", fmt.Errorf("%w: collection %q existiert nicht, create_collection ist deaktiviert", zotero.ErrNotFound, name)
	}
	return im.lib.CreateCollection(ctx, name, "")
}

// ItemFromPaper bildet ein normalisiertes Paper auf das Schreibschema des
// Referenzmanagers ab. Die Herkunft landet als freie Textzeilen im
// Extra-Feld, nie in strukturierten Feldern.
func ItemFromPaper(p *models.Paper) map[string]any {
	item := map[string]any{
		"itemType":     "journalArticle",
		"title":        p.Title,
		"abstractNote": p.Abstract,
		"date":         p.PublicationDate,
		"url":          p.URL,
		"creators":     models.SplitCreators(p.Authors),
	}
	if p.DOI != "" {
		item["DOI"] = p.DOI
	}

	extra := []string{"Source: " + p.Source, "ID: " + p.ID}
	switch p.Source {
	case "pubmed":
		extra = append(extra, "PMID: "+p.ID)
	case "arxiv":
		extra = append(extra, "arXiv: "+p.ID)
		item["publicationTitle"] = "arXiv preprint"
		if p.PrimaryCategory != "" {
			extra = append(extra, "Category: "+p.PrimaryCategory)
		}
		if p.PDFURL != "" {
			extra = append(extra, "PDF: "+p.PDFURL)
		}
	}
	if p.Journal != "" {
		item["publicationTitle"] = p.Journal
	}
	if p.Volume != "" {
		item["volume"] = p.Volume
	}
	if p.Issue != "" {
		item["issue"] = p.Issue
	}
	if p.Pages != "" {
		item["pages"] = p.Pages
	}
	item["extra"] = strings.Join(extra, "\n")
	return item
}
