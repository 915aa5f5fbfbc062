package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"refdesk/models"
	"refdesk/providers"
	"refdesk/zotero"
)

// SearchService hält die angebundenen Publikationsquellen in fester
// Reihenfolge und führt quellenübergreifende Suchen aus.
type SearchService struct {
	order []string
	provs map[string]providers.Provider
	log   *zap.Logger
}

// NewSearchService registriert die Quellen in Übergabereihenfolge.
// Bei doppelten Namen gewinnt die zuerst übergebene Quelle.
func NewSearchService(provs []providers.Provider, log *zap.Logger) *SearchService {
	s := &SearchService{provs: make(map[string]providers.Provider, len(provs)), log: log}
	for _, p := range provs {
		name := p.Name()
		if _, ok := s.provs[name]; ok {
			continue
		}
		s.order = append(s.order, name)
		s.provs[name] = p
	}
	return s
}

// Sources nennt die registrierten Quellen in Registrierreihenfolge.
func (s *SearchService) Sources() []string {
	return append([]string(nil), s.order...)
}

// Provider gibt die Quelle mit dem angegebenen Namen zurück.
func (s *SearchService) Provider(name string) (providers.Provider, error) {
	p, ok := s.provs[name]
	if !ok {
		return nil, fmt.Errorf("%w: unbekannte quelle %q", zotero.ErrInvalidInput, name)
	}
	return p, nil
}

// MultiSearchResult ist das kombinierte Ergebnis einer Suche über
// mehrere Quellen.
type MultiSearchResult struct {
	Query        string          `json:"query"`
	Results      []*models.Paper `json:"results"`
	Count        int             `json:"count"`
	SourceCounts map[string]int  `json:"source_counts"`
}

// SearchAll fragt die angegebenen Quellen nacheinander ab, nie parallel.
// Eine fehlgeschlagene Quelle wird geloggt und zählt null Treffer. Das
// Gesamtergebnis ist quellenübergreifend dedupliziert, SourceCounts zählt
// vor der Deduplizierung. Eine leere Quellenliste heißt alle Quellen.
func (s *SearchService) SearchAll(ctx context.Context, query string, sources []string, opts models.SearchOptions) (*MultiSearchResult, error) {
	if len(sources) == 0 {
		sources = s.order
	}
	for _, name := range sources {
		if _, err := s.Provider(name); err != nil {
			return nil, err
		}
	}

	var all []*models.Paper
	counts := make(map[string]int, len(sources))
	for _, name := range sources {
		papers, err := s.provs[name].Search(ctx, query, opts)
		if err != nil {
			s.log.Warn("Quelle nicht durchsuchbar", zap.String("quelle", name), zap.Error(err))
			counts[name] = 0
			continue
		}
		counts[name] = len(papers)
		all = append(all, papers...)
	}

	unique := models.Deduplicate(all)
	s.log.Info("Quellenübergreifende Suche",
		zap.String("query", query),
		zap.Int("roh", len(all)),
		zap.Int("dedupliziert", len(unique)))

	return &MultiSearchResult{
		Query:        query,
		Results:      unique,
		Count:        len(unique),
		SourceCounts: counts,
	}, nil
}
