package zotero

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"refdesk/models"
)

// DOIRecord sind die über Crossref aufgelösten Metadaten einer DOI.
type DOIRecord struct {
	DOI       string           `json:"doi"`
	Title     string           `json:"title"`
	Authors   []models.Creator `json:"authors"`
	Date      string           `json:"date"`
	Journal   string           `json:"journal"`
	Publisher string           `json:"publisher"`
	Type      string           `json:"type"`
	URL       string           `json:"url"`
	Abstract  string           `json:"abstract,omitempty"`
}

// Resolver löst DOIs über die Crossref-API auf. Die Mailto-Adresse
// wandert als Höflichkeitsparameter mit, Crossref priorisiert solche
// Anfragen.
type Resolver struct {
	baseURL string
	mailto  string
	httpc   *http.Client
	log     *zap.Logger
}

// NewResolver erstellt einen Crossref-Resolver.
func NewResolver(baseURL, mailto string, log *zap.Logger) *Resolver {
	if baseURL == "" {
		baseURL = "https://api.crossref.org"
	}
	return &Resolver{
		baseURL: baseURL,
		mailto:  mailto,
		httpc:   &http.Client{Timeout: apiTimeout},
		log:     log,
	}
}

type crossrefWork struct {
	Title          []string `json:"title"`
	ContainerTitle []string `json:"container-title"`
	Publisher      string   `json:"publisher"`
	Type           string   `json:"type"`
	URL            string   `json:"URL"`
	Abstract       string   `json:"abstract"`
	Author         []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
	} `json:"author"`
	Issued struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"issued"`
}

// ResolveDOI holt die Metadaten zu einer DOI. Ungültige DOIs werden vor
// jeder Netzrunde abgewiesen, unbekannte melden ErrNotFound.
func (r *Resolver) ResolveDOI(ctx context.Context, doi string) (*DOIRecord, error) {
	normalized := models.NormalizeDOI(doi)
	if normalized == "" {
		return nil, fmt.Errorf("%w: keine gültige DOI: %q", ErrInvalidInput, doi)
	}

	r.log.Info("Löse DOI auf", zap.String("doi", normalized))

	target := r.baseURL + "/works/" + normalized
	if r.mailto != "" {
		target += "?mailto=" + url.QueryEscape(r.mailto)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolve doi %s: %w", normalized, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("resolve doi %s: %w", normalized, ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("resolve doi %s: %w", normalized,
			&APIError{StatusCode: resp.StatusCode, Message: "crossref request failed"})
	}

	var payload struct {
		Message crossrefWork `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("resolve doi %s: antwort nicht lesbar: %w", normalized, err)
	}
	return mapWork(normalized, payload.Message), nil
}

func mapWork(doi string, work crossrefWork) *DOIRecord {
	rec := &DOIRecord{
		DOI:       doi,
		Publisher: work.Publisher,
		Type:      work.Type,
		URL:       work.URL,
		Abstract:  work.Abstract,
		Date:      formatDateParts(work.Issued.DateParts),
	}
	if len(work.Title) > 0 {
		rec.Title = work.Title[0]
	}
	if len(work.ContainerTitle) > 0 {
		rec.Journal = work.ContainerTitle[0]
	}
	for _, author := range work.Author {
		rec.Authors = append(rec.Authors, models.Creator{
			CreatorType: "author",
			FirstName:   author.Given,
			LastName:    author.Family,
		})
	}
	return rec
}

// formatDateParts formt Crossrefs date-parts in YYYY, YYYY-MM oder
// YYYY-MM-DD um. Monat und Tag werden zweistellig gepolstert.
func formatDateParts(parts [][]int) string {
	if len(parts) == 0 || len(parts[0]) == 0 {
		return ""
	}
	p := parts[0]
	out := strconv.Itoa(p[0])
	if len(p) > 1 {
		out += fmt.Sprintf("-%02d", p[1])
	}
	if len(p) > 2 {
		out += fmt.Sprintf("-%02d", p[2])
	}
	return out
}
