package providers

import (
	"context"

	"refdesk/models"
)

// Provider ist das Interface, das jede Publikationsquelle (PubMed, arXiv,
// Forschungsdatenbank) implementieren muss.
type Provider interface {
	// Search führt eine Suche aus und gibt standardisierte Paper-Modelle zurück.
	Search(ctx context.Context, query string, opts models.SearchOptions) ([]*models.Paper, error)

	// Get holt eine einzelne Publikation über ihre quellenspezifische ID
	// (PMID, arXiv-ID oder DOI).
	Get(ctx context.Context, id string) (*models.Paper, error)

	// Name gibt den eindeutigen Namen der Quelle zurück (z.B. "pubmed").
	Name() string
}
