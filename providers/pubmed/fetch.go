package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"refdesk/config"
	"refdesk/models"
)

const (
	// NCBI erlaubt höchstens 200 IDs pro EFetch-Anfrage.
	maxBatchIDs = 200

	// Anfragen pro Sekunde laut NCBI-Richtlinie, ohne und mit API-Key.
	rateWithoutKey = 3
	rateWithKey    = 10
)

var (
	pmidRe   = regexp.MustCompile(`^\d+$`)
	xmlTagRe = regexp.MustCompile(`<[^>]+>`)
)

// Fetcher kapselt die Interaktion mit den NCBI E-Utilities.
type Fetcher struct {
	cfg     *config.Config
	log     *zap.Logger
	httpc   *http.Client
	limiter *rate.Limiter
}

// NewFetcher erstellt eine neue Instanz des PubMed-Fetchers. Mit API-Key
// erlaubt NCBI 10 Anfragen pro Sekunde, ohne nur 3.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	rps := rateWithoutKey
	if cfg.PubMedAPIKey != "" {
		rps = rateWithKey
	}
	return &Fetcher{
		cfg:     cfg,
		log:     logger,
		httpc:   &http.Client{Timeout: 60 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "pubmed"
}

// Search führt eine vollständige Suche durch: ESearch für die IDs, dann
// ein EFetch-Batch für die Details.
func (f *Fetcher) Search(ctx context.Context, query string, opts models.SearchOptions) ([]*models.Paper, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("leerer Suchbegriff")
	}
	term := query + dateFilter(opts.MinDate, opts.MaxDate)

	ids, err := f.searchIDs(ctx, term, opts.Limit(100), opts.Sort)
	if err != nil {
		return nil, fmt.Errorf("fehler bei der PubMed ID-Suche: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return f.Batch(ctx, ids)
}

// Get holt die Details eines einzelnen Artikels über seine PMID.
func (f *Fetcher) Get(ctx context.Context, pmid string) (*models.Paper, error) {
	if !pmidRe.MatchString(pmid) {
		return nil, fmt.Errorf("ungültige PMID: %q", pmid)
	}
	papers, err := f.Batch(ctx, []string{pmid})
	if err != nil {
		return nil, err
	}
	if len(papers) == 0 {
		return nil, fmt.Errorf("PMID %s nicht gefunden", pmid)
	}
	return papers[0], nil
}

// Abstract liefert nur den Abstract eines Artikels.
func (f *Fetcher) Abstract(ctx context.Context, pmid string) (string, error) {
	paper, err := f.Get(ctx, pmid)
	if err != nil {
		return "", err
	}
	return paper.Abstract, nil
}

// AdvancedSearch baut aus den gesetzten Feldern eine Boolesche Abfrage.
func (f *Fetcher) AdvancedSearch(ctx context.Context, q AdvancedQuery) ([]*models.Paper, error) {
	var parts []string
	if q.Title != "" {
		parts = append(parts, q.Title+"[Title]")
	}
	if q.Author != "" {
		parts = append(parts, q.Author+"[Author]")
	}
	if q.Journal != "" {
		parts = append(parts, q.Journal+"[Journal]")
	}
	if len(q.MeshTerms) > 0 {
		terms := make([]string, len(q.MeshTerms))
		for i, term := range q.MeshTerms {
			terms[i] = term + "[MeSH Terms]"
		}
		parts = append(parts, "("+strings.Join(terms, " OR ")+")")
	}
	if q.ArticleType != "" {
		parts = append(parts, q.ArticleType+"[Publication Type]")
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("mindestens ein Suchfeld angeben")
	}

	return f.Search(ctx, strings.Join(parts, " AND "), models.SearchOptions{
		MaxResults: q.MaxResults,
		MinDate:    q.MinDate,
		MaxDate:    q.MaxDate,
	})
}

// SearchByAuthor sucht Artikel eines Autors, optional auf eine
// Einrichtung eingeschränkt.
func (f *Fetcher) SearchByAuthor(ctx context.Context, author, affiliation string, maxResults int) ([]*models.Paper, error) {
	if strings.TrimSpace(author) == "" {
		return nil, fmt.Errorf("autor fehlt")
	}
	query := author + "[Author]"
	if affiliation != "" {
		query += " AND " + affiliation + "[Affiliation]"
	}
	return f.Search(ctx, query, models.SearchOptions{MaxResults: maxResults})
}

// SearchByJournal sucht innerhalb eines Journals.
func (f *Fetcher) SearchByJournal(ctx context.Context, journal, minDate, maxDate string, maxResults int) ([]*models.Paper, error) {
	if strings.TrimSpace(journal) == "" {
		return nil, fmt.Errorf("journal fehlt")
	}
	return f.Search(ctx, journal+"[Journal]", models.SearchOptions{
		MaxResults: maxResults,
		MinDate:    minDate,
		MaxDate:    maxDate,
	})
}

// SearchByMeSH sucht über Medical Subject Headings. Bei majorTopicOnly
// zählen nur Hauptthemen.
func (f *Fetcher) SearchByMeSH(ctx context.Context, meshTerms []string, majorTopicOnly bool, maxResults int) ([]*models.Paper, error) {
	if len(meshTerms) == 0 {
		return nil, fmt.Errorf("mindestens ein MeSH-Begriff angeben")
	}
	tag := "[MeSH Terms]"
	if majorTopicOnly {
		tag = "[MeSH Major Topic]"
	}
	terms := make([]string, len(meshTerms))
	for i, term := range meshTerms {
		terms[i] = term + tag
	}
	return f.Search(ctx, strings.Join(terms, " OR "), models.SearchOptions{MaxResults: maxResults})
}

// Trending liefert die jüngsten Veröffentlichungen eines Themas,
// sortiert nach Publikationsdatum.
func (f *Fetcher) Trending(ctx context.Context, field string, daysBack, maxResults int) ([]*models.Paper, error) {
	if daysBack <= 0 {
		daysBack = 7
	}
	end := time.Now()
	start := end.AddDate(0, 0, -daysBack)

	f.log.Info("Suche aktuelle Artikel",
		zap.String("field", field), zap.Int("days_back", daysBack))

	return f.Search(ctx, field, models.SearchOptions{
		MaxResults: maxResults,
		MinDate:    start.Format("2006/01/02"),
		MaxDate:    end.Format("2006/01/02"),
		Sort:       "pub_date",
	})
}

// Batch holt die Details mehrerer Artikel in einer EFetch-Anfrage. Mehr
// als 200 IDs schneidet NCBI-konform ab.
func (f *Fetcher) Batch(ctx context.Context, pmids []string) ([]*models.Paper, error) {
	if len(pmids) == 0 {
		return nil, nil
	}
	if len(pmids) > maxBatchIDs {
		f.log.Warn("Batch auf NCBI-Limit gekürzt",
			zap.Int("angefragt", len(pmids)), zap.Int("limit", maxBatchIDs))
		pmids = pmids[:maxBatchIDs]
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("rettype", "xml")
	params.Set("retmode", "xml")

	body, err := f.doGet(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("efetch fehlgeschlagen: %w", err)
	}

	var set pubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("efetch-XML nicht lesbar: %w", err)
	}
	papers := make([]*models.Paper, 0, len(set.Articles))
	for _, article := range set.Articles {
		papers = append(papers, mapArticle(article))
	}
	return papers, nil
}

// searchIDs führt eine ESearch-Abfrage durch und gibt die PMIDs zurück.
func (f *Fetcher) searchIDs(ctx context.Context, term string, retMax int, sort string) ([]string, error) {
	log := f.log.With(zap.String("term", term))
	log.Info("Starte PubMed ESearch für IDs")

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", term)
	params.Set("retmode", "json")
	params.Set("retmax", strconv.Itoa(retMax))
	if sort != "" {
		params.Set("sort", sort)
	}

	body, err := f.doGet(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, err
	}
	var esearchResp ESearchResponse
	if err := json.Unmarshal(body, &esearchResp); err != nil {
		return nil, fmt.Errorf("esearch-Antwort nicht lesbar: %w", err)
	}
	if c := esearchResp.ESearchResult.Count; c != "" {
		if _, err := strconv.Atoi(c); err != nil {
			return nil, fmt.Errorf("esearch count nicht numerisch: %q", c)
		}
	}

	ids := esearchResp.ESearchResult.IdList
	log.Info("ESearch abgeschlossen", zap.Int("ids", len(ids)))
	return ids, nil
}

// doGet führt eine ratenlimitierte GET-Anfrage gegen die E-Utilities
// aus. API-Key, Tool- und E-Mail-Parameter wandern automatisch mit.
func (f *Fetcher) doGet(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if f.cfg.PubMedAPIKey != "" {
		params.Set("api_key", f.cfg.PubMedAPIKey)
	}
	if f.cfg.PubMedTool != "" {
		params.Set("tool", f.cfg.PubMedTool)
	}
	if f.cfg.PubMedEmail != "" {
		params.Set("email", f.cfg.PubMedEmail)
	}

	fullURL := fmt.Sprintf("%s/%s?%s", f.cfg.PubMedBaseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s-Anfrage fehlgeschlagen: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("NCBI-Rate-Limit erreicht (HTTP 429), API-Key über PUBMED_API_KEY setzen")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		f.log.Error("E-Utilities-API hat nicht-200-Status zurückgegeben",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, fmt.Errorf("%s failed: status %d", endpoint, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// dateFilter baut den Datumsfilter in PubMed-Syntax. Sobald eine Grenze
// gesetzt ist, wird die andere mit einem weiten Default aufgefüllt.
func dateFilter(minDate, maxDate string) string {
	if minDate == "" && maxDate == "" {
		return ""
	}
	if minDate == "" {
		minDate = "1900/01/01"
	}
	if maxDate == "" {
		maxDate = time.Now().Format("2006/01/02")
	}
	return fmt.Sprintf(" AND %s:%s[pdat]", minDate, maxDate)
}

// mapArticle überführt einen EFetch-Artikel in das Paper-Modell.
func mapArticle(pa pubmedArticle) *models.Paper {
	art := pa.Citation.Article
	pmid := strings.TrimSpace(pa.Citation.PMID.Value)

	p := &models.Paper{
		ID:            pmid,
		Title:         cleanInnerXML(art.ArticleTitle.Inner),
		Journal:       art.Journal.Title,
		JournalAbbrev: art.Journal.ISOAbbreviation,
		Volume:        art.Journal.JournalIssue.Volume,
		Issue:         art.Journal.JournalIssue.Issue,
		Pages:         art.Pagination.MedlinePgn,
		ISSN:          art.Journal.ISSN,
		Source:        "pubmed",
		URL:           "https://pubmed.ncbi.nlm.nih.gov/" + pmid + "/",
	}

	// Abstract-Abschnitte mit Label zusammensetzen
	var sections []string
	for _, ab := range art.Abstract.Texts {
		text := cleanInnerXML(ab.Inner)
		if text == "" {
			continue
		}
		if ab.Label != "" {
			text = ab.Label + ": " + text
		}
		sections = append(sections, text)
	}
	p.Abstract = strings.Join(sections, "\n\n")

	// Publikationsdatum: Year/Month/Day, sonst MedlineDate
	pd := art.Journal.JournalIssue.PubDate
	switch {
	case pd.Year != "":
		p.PublicationDate = joinNonEmpty(" ", pd.Year, pd.Month, pd.Day)
	case pd.MedlineDate != "":
		p.PublicationDate = pd.MedlineDate
	}

	for _, au := range art.AuthorList.Authors {
		if au.ValidYN == "N" {
			continue
		}
		if name := authorName(au); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}

	for _, id := range pa.PubmedData.ArticleIDs.IDs {
		switch id.IDType {
		case "doi":
			p.DOI = strings.TrimSpace(id.Value)
		case "pmc":
			p.PMCID = strings.TrimPrefix(strings.TrimSpace(id.Value), "PMC")
		}
	}

	for _, mh := range pa.Citation.MeshHeadings.Headings {
		if mh.Descriptor.Name != "" {
			p.MeshTerms = append(p.MeshTerms, mh.Descriptor.Name)
		}
	}
	for _, kl := range pa.Citation.KeywordLists {
		for _, kw := range kl.Keywords {
			if k := cleanInnerXML(kw.Inner); k != "" {
				p.Keywords = append(p.Keywords, k)
			}
		}
	}
	for _, pt := range art.PublicationTypes.Types {
		if pt.Name != "" {
			p.PublicationTypes = append(p.PublicationTypes, pt.Name)
		}
	}
	if len(art.Language) > 0 {
		p.Language = art.Language[0]
	}
	return p
}

// authorName formt einen Autor im Medline-Stil: Nachname plus Initialen.
func authorName(au xmlAuthor) string {
	if au.CollectiveName != "" {
		return au.CollectiveName
	}
	switch {
	case au.LastName != "" && au.Initials != "":
		return au.LastName + " " + au.Initials
	case au.LastName != "" && au.ForeName != "":
		return au.LastName + " " + au.ForeName
	default:
		return au.LastName
	}
}

// cleanInnerXML entfernt eingebettete Tags und dekodiert HTML-Entities.
func cleanInnerXML(s string) string {
	stripped := xmlTagRe.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(stripped))
}

func joinNonEmpty(sep string, vals ...string) string {
	var parts []string
	for _, v := range vals {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}
