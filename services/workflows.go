package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"refdesk/models"
	"refdesk/zotero"
)

const (
	defaultReadingListSize = 20
	defaultRelatedLimit    = 10
)

// collectionKeywords ordnet Titel-Schlagwörter Sammlungsnamen zu.
// Die Reihenfolge ist die Priorität, der erste Treffer gewinnt.
var collectionKeywords = []struct {
	keyword    string
	collection string
}{
	{"fhir", "FHIR"},
	{"hl7", "FHIR"},
	{"healthcare interoperability", "FHIR"},
	{"snomed", "Terminology"},
	{"loinc", "Terminology"},
	{"icd", "Terminology"},
	{"ontology", "Terminology"},
	{"machine learning", "ML"},
	{"deep learning", "ML"},
	{"neural network", "ML"},
	{"nlp", "NLP"},
	{"natural language", "NLP"},
	{"clinical", "Clinical"},
	{"patient", "Clinical"},
	{"ehr", "Clinical"},
	{"electronic health", "Clinical"},
}

// Workflows fasst die mehrschrittigen Rechercheabläufe über einer
// Bibliothek zusammen. Der Resolver ist optional; ohne ihn arbeitet
// SmartAddPaper allein mit der DOI-Zeichenkette.
type Workflows struct {
	lib      Library
	resolver *zotero.Resolver
	log      *zap.Logger
}

// NewWorkflows erstellt die Workflow-Schicht über einer Bibliothek.
func NewWorkflows(lib Library, resolver *zotero.Resolver, log *zap.Logger) *Workflows {
	return &Workflows{lib: lib, resolver: resolver, log: log}
}

// ReadingList ist das Ergebnis von BuildReadingList.
type ReadingList struct {
	Topic               string             `json:"topic"`
	PapersFound         int                `json:"papers_found"`
	PapersIncluded      int                `json:"papers_included"`
	Papers              []ReadingListEntry `json:"papers"`
	SuggestedCollection string             `json:"suggested_collection"`
}

// ReadingListEntry ist eine Zeile der Leseliste.
type ReadingListEntry struct {
	Key      string `json:"key"`
	Title    string `json:"title"`
	Year     string `json:"year"`
	Creators string `json:"creators"`
}

// BuildReadingList sucht bis zu 100 Einträge zum Thema, filtert optional
// nach Mindestjahr und kürzt auf maxPapers. PapersFound zählt die Treffer
// vor dem Jahresfilter; Einträge ohne erkennbares Jahr fallen unter einem
// gesetzten Filter heraus.
func (w *Workflows) BuildReadingList(ctx context.Context, topic string, maxPapers, minYear int) *ReadingList {
	if maxPapers <= 0 {
		maxPapers = defaultReadingListSize
	}
	w.log.Info("Baue Leseliste",
		zap.String("topic", topic),
		zap.Int("max", maxPapers),
		zap.Int("min_jahr", minYear))

	all := w.lib.SearchItems(ctx, topic, 100)

	filtered := all
	if minYear > 0 {
		filtered = make([]models.Item, 0, len(all))
		for _, it := range all {
			if models.ExtractYear(it.Date) >= minYear {
				filtered = append(filtered, it)
			}
		}
	}
	if len(filtered) > maxPapers {
		filtered = filtered[:maxPapers]
	}

	entries := make([]ReadingListEntry, 0, len(filtered))
	for _, it := range filtered {
		title := it.Title
		if title == "" {
			title = "Untitled"
		}
		entries = append(entries, ReadingListEntry{
			Key:      it.Key,
			Title:    title,
			Year:     yearString(it.Date),
			Creators: formatCreators(it.Creators),
		})
	}

	return &ReadingList{
		Topic:               topic,
		PapersFound:         len(all),
		PapersIncluded:      len(entries),
		Papers:              entries,
		SuggestedCollection: suggestCollection(topic),
	}
}

// SmartAddResult ist die Einschätzung einer DOI vor dem Import.
type SmartAddResult struct {
	Status              string `json:"status"` // ready oder duplicate
	DOI                 string `json:"doi"`
	Title               string `json:"title,omitempty"`
	DuplicateKey        string `json:"duplicate_key,omitempty"`
	SuggestedCollection string `json:"suggested_collection,omitempty"`
	Message             string `json:"message"`
}

// SmartAddPaper prüft eine DOI vor dem Import: normalisieren, Dubletten in
// der Bibliothek suchen, danach den Titel über Crossref auflösen für den
// Sammlungsvorschlag. Der Workflow ist rein beratend und schreibt nie.
func (w *Workflows) SmartAddPaper(ctx context.Context, doi string, checkDuplicates bool) (*SmartAddResult, error) {
	normalized := models.NormalizeDOI(doi)
	if normalized == "" {
		return nil, fmt.Errorf("%w: keine gültige DOI: %q", zotero.ErrInvalidInput, doi)
	}
	w.log.Info("Prüfe DOI vor Import", zap.String("doi", normalized))

	if checkDuplicates {
		for _, it := range w.lib.SearchItems(ctx, normalized, 5) {
			if existing := it.NormalizedDOI(); existing != "" && existing == normalized {
				return &SmartAddResult{
					Status:       "duplicate",
					DOI:          normalized,
					Title:        it.Title,
					DuplicateKey: it.Key,
					Message:      "Paper already exists in library",
				}, nil
			}
		}
	}

	res := &SmartAddResult{
		Status:              "ready",
		DOI:                 normalized,
		SuggestedCollection: suggestCollection(normalized),
		Message:             "DOI validated, no duplicates found. Manual add recommended.",
	}
	if w.resolver != nil {
		rec, err := w.resolver.ResolveDOI(ctx, normalized)
		switch {
		case err != nil:
			w.log.Warn("DOI-Auflösung fehlgeschlagen", zap.String("doi", normalized), zap.Error(err))
		case rec.Title != "":
			res.Title = rec.Title
			res.SuggestedCollection = suggestCollection(rec.Title)
		}
	}
	return res, nil
}

// BibliographyExport ist das Ergebnis von ExportBibliography.
type BibliographyExport struct {
	Status       string `json:"status"`
	Format       string `json:"format"`
	Count        int    `json:"count"`
	Bibliography string `json:"bibliography"`
}

// ExportBibliography rendert die Einträge einer Sammlung (exakter
// Namensvergleich) oder eines Tags als BibTeX. Einer der beiden Selektoren
// muss gesetzt sein; sind beide gesetzt, gewinnt die Sammlung.
func (w *Workflows) ExportBibliography(ctx context.Context, collectionName, tag, format string) (*BibliographyExport, error) {
	if collectionName == "" && tag == "" {
		return nil, fmt.Errorf("%w: collection_name oder tag angeben", zotero.ErrInvalidInput)
	}
	if format == "" {
		format = "bibtex"
	}
	if format != "bibtex" {
		return nil, fmt.Errorf("%w: format %q nicht unterstützt", zotero.ErrInvalidInput, format)
	}
	w.log.Info("Exportiere Bibliographie",
		zap.String("collection", collectionName),
		zap.String("tag", tag))

	var items []models.Item
	if collectionName != "" {
		key := ""
		for _, col := range w.lib.ListCollections(ctx) {
			if col.Name == collectionName {
				key = col.Key
				break
			}
		}
		if key == "" {
			return nil, fmt.Errorf("%w: collection %q", zotero.ErrNotFound, collectionName)
		}
		items = w.lib.CollectionItems(ctx, key)
	} else {
		items = w.lib.SearchByTag(ctx, tag)
	}

	if len(items) == 0 {
		return &BibliographyExport{
			Status:       "success",
			Format:       format,
			Count:        0,
			Bibliography: "% No papers found\n",
		}, nil
	}
	bib, count := RenderBibTeX(items)
	return &BibliographyExport{Status: "success", Format: format, Count: count, Bibliography: bib}, nil
}

// RelatedPapers ist das Ergebnis von FindRelatedPapers.
type RelatedPapers struct {
	Status  string         `json:"status"`
	Source  RelatedSource  `json:"source"`
	Related []RelatedEntry `json:"related"`
}

// RelatedSource benennt den Ausgangseintrag.
type RelatedSource struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

// RelatedEntry ist ein verwandter Eintrag.
type RelatedEntry struct {
	Key      string `json:"key"`
	Title    string `json:"title"`
	Creators string `json:"creators"`
}

// FindRelatedPapers sucht semantisch nach Einträgen, die dem Ausgangseintrag
// ähneln. Die Anfrage kombiniert den Titel mit dem ersten Satz des Abstracts
// (ohne Satzende: die ersten 200 Zeichen); der Ausgangseintrag selbst wird
// aus den Treffern entfernt.
func (w *Workflows) FindRelatedPapers(ctx context.Context, itemKey string, limit int) (*RelatedPapers, error) {
	if limit <= 0 {
		limit = defaultRelatedLimit
	}
	source, err := w.lib.GetItem(ctx, itemKey)
	if err != nil {
		return nil, fmt.Errorf("paper %s: %w", itemKey, err)
	}
	w.log.Info("Suche verwandte Einträge", zap.String("key", itemKey), zap.Int("limit", limit))

	query := source.Title
	if abstract := source.AbstractNote; abstract != "" {
		first := abstract
		if i := strings.IndexByte(abstract, '.'); i >= 0 {
			first = abstract[:i]
		} else if runes := []rune(first); len(runes) > 200 {
			first = string(runes[:200])
		}
		query += ". " + first
	}

	hits := w.lib.SemanticSearch(ctx, query, limit+1)
	related := make([]RelatedEntry, 0, limit)
	for _, it := range hits {
		if it.Key == itemKey {
			continue
		}
		if len(related) == limit {
			break
		}
		related = append(related, RelatedEntry{
			Key:      it.Key,
			Title:    it.Title,
			Creators: formatCreators(it.Creators),
		})
	}

	return &RelatedPapers{
		Status:  "success",
		Source:  RelatedSource{Key: itemKey, Title: source.Title},
		Related: related,
	}, nil
}

// suggestCollection schlägt anhand der Schlagwort-Tabelle eine Sammlung
// für einen Titel vor.
func suggestCollection(title string) string {
	lower := strings.ToLower(title)
	for _, kw := range collectionKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.collection
		}
	}
	return "Uncategorized"
}

// yearString gibt das erste vierstellige Jahr eines lose formatierten
// Datums zurück, leer wenn keines erkennbar ist.
func yearString(date string) string {
	if year := models.ExtractYear(date); year > 0 {
		return strconv.Itoa(year)
	}
	return ""
}

// formatCreators verdichtet die Autorenliste auf die ersten drei Namen,
// längere Listen enden mit "et al.".
func formatCreators(creators []models.Creator) string {
	if len(creators) == 0 {
		return ""
	}
	names := make([]string, 0, 3)
	for _, c := range creators[:min(len(creators), 3)] {
		if name := c.DisplayName(); name != "" {
			names = append(names, name)
		}
	}
	out := strings.Join(names, ", ")
	if len(creators) > 3 {
		out += " et al."
	}
	return out
}
