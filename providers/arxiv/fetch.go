package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"refdesk/config"
	"refdesk/models"
)

var (
	// Versionsanhang wie in 2103.15348v2; die kanonische ID ist ohne.
	versionRe = regexp.MustCompile(`v\d+$`)
	// Atom-Titel und -Abstracts kommen mit Zeilenumbrüchen und Einrückung.
	spaceRe = regexp.MustCompile(`\s+`)
	// Feldpräfixe der arXiv-Abfragesprache.
	fieldPrefixRe = regexp.MustCompile(`(?:^|[\s(])(?:all|ti|au|abs|co|jr|cat|rn|id|doi):`)
	operatorRe    = regexp.MustCompile(`\b(AND|OR|ANDNOT)\b`)
)

// customTransport fügt jeder Anfrage einen User-Agent-Header hinzu.
// Manche Spiegel lehnen den Go-Default ab.
type customTransport struct {
	transport http.RoundTripper
}

func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	return t.transport.RoundTrip(req)
}

// Fetcher kapselt die Interaktion mit der arXiv-API.
type Fetcher struct {
	cfg     *config.Config
	log     *zap.Logger
	httpc   *http.Client
	limiter *rate.Limiter
}

// NewFetcher erstellt eine neue Instanz des arXiv-Fetchers. arXiv bittet
// um mindestens drei Sekunden Abstand zwischen API-Anfragen.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		cfg: cfg,
		log: logger,
		httpc: &http.Client{
			Timeout:   60 * time.Second,
			Transport: &customTransport{transport: http.DefaultTransport},
		},
		limiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
	}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "arxiv"
}

// Search durchsucht arXiv. Freitext wird auf alle Felder abgebildet,
// Feldpräfixe wie au: oder cat: bleiben unangetastet. Kategorien aus den
// Optionen werden als OR-Gruppe an die Abfrage angehängt.
func (f *Fetcher) Search(ctx context.Context, query string, opts models.SearchOptions) ([]*models.Paper, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("leerer Suchbegriff")
	}

	sortBy, sortOrder := sortParams(opts.Sort)
	params := url.Values{}
	params.Set("search_query", buildQuery(query, opts.Categories))
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(opts.Limit(100)))
	params.Set("sortBy", sortBy)
	params.Set("sortOrder", sortOrder)

	return f.query(ctx, params)
}

// Get holt die Details eines einzelnen Artikels über seine arXiv-ID.
func (f *Fetcher) Get(ctx context.Context, id string) (*models.Paper, error) {
	params := url.Values{}
	params.Set("id_list", id)
	params.Set("max_results", "1")

	papers, err := f.query(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(papers) == 0 {
		return nil, fmt.Errorf("arXiv-Artikel nicht gefunden: %s", id)
	}
	return papers[0], nil
}

// SearchByAuthor sucht Artikel eines Autors.
func (f *Fetcher) SearchByAuthor(ctx context.Context, author string, maxResults int) ([]*models.Paper, error) {
	if strings.TrimSpace(author) == "" {
		return nil, fmt.Errorf("autor fehlt")
	}
	return f.Search(ctx, "au:"+author, models.SearchOptions{MaxResults: maxResults})
}

// SearchByCategory sucht innerhalb einer Kategorie, optional mit
// zusätzlichen Suchbegriffen, sortiert nach Einreichungsdatum.
func (f *Fetcher) SearchByCategory(ctx context.Context, category, query string, maxResults int) ([]*models.Paper, error) {
	if strings.TrimSpace(category) == "" {
		return nil, fmt.Errorf("kategorie fehlt")
	}
	q := "cat:" + category
	if strings.TrimSpace(query) != "" {
		q += " AND " + query
	}
	return f.Search(ctx, q, models.SearchOptions{
		MaxResults: maxResults,
		Sort:       "submittedDate",
	})
}

// Recent liefert die zuletzt eingereichten Artikel, optional auf eine
// Kategorie eingeschränkt.
func (f *Fetcher) Recent(ctx context.Context, category string, maxResults int) ([]*models.Paper, error) {
	q := "all:*"
	if strings.TrimSpace(category) != "" {
		q = "cat:" + category
	}
	return f.Search(ctx, q, models.SearchOptions{
		MaxResults: maxResults,
		Sort:       "submittedDate",
	})
}

// DownloadPDF lädt das PDF eines Artikels in das angegebene Verzeichnis
// und gibt den Pfad der geschriebenen Datei zurück. Ohne Dateinamen wird
// die arXiv-ID verwendet.
func (f *Fetcher) DownloadPDF(ctx context.Context, id, dir, filename string) (string, error) {
	paper, err := f.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if paper.PDFURL == "" {
		return "", fmt.Errorf("kein PDF-Link für arXiv:%s", id)
	}
	if filename == "" {
		// alte IDs wie cs/0703039 enthalten einen Schrägstrich
		filename = strings.ReplaceAll(id, "/", "_") + ".pdf"
	}

	log := f.log.With(zap.String("arxiv_id", id), zap.String("url", paper.PDFURL))
	log.Info("Starte PDF-Download")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, paper.PDFURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("PDF-Download fehlgeschlagen: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("PDF-Download failed: status %d", resp.StatusCode)
	}
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "pdf") {
		return "", fmt.Errorf("keine PDF-Datei erhalten (Content-Type %q)", contentType)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("PDF-Verzeichnis nicht anlegbar: %w", err)
	}
	path := filepath.Join(dir, filename)
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", fmt.Errorf("PDF nicht speicherbar: %w", err)
	}

	log.Info("PDF gespeichert", zap.String("path", path))
	return path, nil
}

// ExportBibTeX baut einen BibTeX-Eintrag für einen Artikel.
func (f *Fetcher) ExportBibTeX(ctx context.Context, id string) (string, error) {
	paper, err := f.Get(ctx, id)
	if err != nil {
		return "", err
	}

	year := ""
	if y := paper.Year(); y > 0 {
		year = strconv.Itoa(y)
	}
	citeKey := "arxiv_" + strings.NewReplacer(".", "_", "/", "_").Replace(paper.ID)

	fields := []string{
		fmt.Sprintf("    title = {%s}", paper.Title),
		fmt.Sprintf("    author = {%s}", strings.Join(paper.Authors, " and ")),
		fmt.Sprintf("    year = {%s}", year),
		fmt.Sprintf("    eprint = {%s}", paper.ID),
		"    archivePrefix = {arXiv}",
		fmt.Sprintf("    primaryClass = {%s}", paper.PrimaryCategory),
		fmt.Sprintf("    url = {%s}", paper.URL),
		fmt.Sprintf("    abstract = {%s}", paper.Abstract),
	}
	if paper.DOI != "" {
		fields = append(fields, fmt.Sprintf("    doi = {%s}", paper.DOI))
	}
	if paper.JournalRef != "" {
		fields = append(fields, fmt.Sprintf("    journal = {%s}", paper.JournalRef))
	}

	return fmt.Sprintf("@misc{%s,\n%s\n}", citeKey, strings.Join(fields, ",\n")), nil
}

// query führt eine API-Anfrage aus und mappt den Feed.
func (f *Fetcher) query(ctx context.Context, params url.Values) ([]*models.Paper, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	fullURL := f.cfg.ArxivBaseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arXiv-Anfrage fehlgeschlagen: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		f.log.Error("arXiv-API hat nicht-200-Status zurückgegeben",
			zap.Int("status", resp.StatusCode), zap.String("body", string(body)))
		return nil, fmt.Errorf("arXiv query failed: status %d", resp.StatusCode)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("atom-Feed nicht lesbar: %w", err)
	}

	papers := make([]*models.Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		papers = append(papers, mapEntry(entry))
	}
	f.log.Info("arXiv-Suche abgeschlossen", zap.Int("count", len(papers)))
	return papers, nil
}

// buildQuery setzt die Abfrage zusammen. Freitext ohne Feldpräfix und
// ohne Boolesche Operatoren bekommt ein all:-Präfix, mehrteilige
// Begriffe werden als Phrase gesucht.
func buildQuery(query string, categories []string) string {
	q := strings.TrimSpace(query)
	switch {
	case fieldPrefixRe.MatchString(q) || operatorRe.MatchString(q) || strings.ContainsAny(q, `()"`):
		// bereits arXiv-Syntax
	case strings.Contains(q, " "):
		q = `all:"` + q + `"`
	default:
		q = "all:" + q
	}

	if len(categories) > 0 {
		cats := make([]string, len(categories))
		for i, c := range categories {
			cats[i] = "cat:" + c
		}
		q = fmt.Sprintf("(%s) AND (%s)", q, strings.Join(cats, " OR "))
	}
	return q
}

// sortParams mappt die Sortieroption auf die API-Parameter. Absteigend
// ist immer gesetzt, arXiv liefert sonst die ältesten zuerst.
func sortParams(sort string) (string, string) {
	switch sort {
	case "submittedDate", "submitted", "recent", "pub_date":
		return "submittedDate", "descending"
	case "lastUpdatedDate", "updated":
		return "lastUpdatedDate", "descending"
	default:
		return "relevance", "descending"
	}
}

// mapEntry überführt einen Atom-Eintrag in das Paper-Modell.
func mapEntry(e atomEntry) *models.Paper {
	fullID := e.ID
	if i := strings.Index(fullID, "/abs/"); i >= 0 {
		fullID = fullID[i+len("/abs/"):]
	}

	p := &models.Paper{
		ID:              versionRe.ReplaceAllString(fullID, ""),
		Title:           collapse(e.Title),
		Abstract:        collapse(e.Summary),
		PublicationDate: atomDate(e.Published),
		UpdatedDate:     atomDate(e.Updated),
		DOI:             strings.TrimSpace(e.DOI),
		URL:             e.ID,
		Source:          "arxiv",
		Comment:         collapse(e.Comment),
		JournalRef:      collapse(e.JournalRef),
		PrimaryCategory: e.PrimaryCategory.Term,
	}

	for _, a := range e.Authors {
		if name := collapse(a.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	for _, c := range e.Categories {
		if c.Term != "" {
			p.Categories = append(p.Categories, c.Term)
		}
	}
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			p.PDFURL = l.Href
		}
	}
	return p
}

// atomDate kürzt einen RFC-3339-Zeitstempel auf das Datum.
func atomDate(s string) string {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		if len(s) >= 10 {
			return s[:10]
		}
		return s
	}
	return t.Format("2006-01-02")
}

// collapse zieht Zeilenumbrüche und Einrückungen des Feeds zusammen.
func collapse(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
