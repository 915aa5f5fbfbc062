package charite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"refdesk/config"
	"refdesk/models"
)

// doiPrefixRe entfernt den doi.org-Vorspann aus verlinkten DOIs.
var doiPrefixRe = regexp.MustCompile(`^https?://(dx\.)?doi\.org/`)

// Client kapselt die Interaktion mit der Forschungsdatenbank.
type Client struct {
	cfg   *config.Config
	log   *zap.Logger
	httpc *http.Client
	team  []models.TeamMember
}

// NewClient erstellt einen neuen Forschungsdatenbank-Client. Ohne
// Roster wird das eingebaute Team verwendet.
func NewClient(cfg *config.Config, team []models.TeamMember, logger *zap.Logger) *Client {
	if len(team) == 0 {
		team = DefaultTeam()
	}
	return &Client{
		cfg:   cfg,
		log:   logger,
		httpc: &http.Client{Timeout: 30 * time.Second},
		team:  team,
	}
}

// Name gibt den Namen des Providers zurück.
func (c *Client) Name() string {
	return "charite"
}

// FetchPublications holt alle Publikationen einer Person über ihr
// API-Token. Abruf- und Parse-Fehler werden geloggt und als leere Liste
// gewertet.
func (c *Client) FetchPublications(ctx context.Context, token string) []*models.Paper {
	url := fmt.Sprintf("%s/publications/pub_per_exp/%s/FPS", c.cfg.ChariteBaseURL, token)

	var resp publicationsResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		c.log.Error("Publikationen nicht abrufbar",
			zap.String("token", token), zap.Error(err))
		return nil
	}

	papers := make([]*models.Paper, 0, len(resp.Publikationen))
	for _, entry := range resp.Publikationen {
		if p := normalizePublication(entry); p != nil {
			papers = append(papers, p)
		}
	}
	return papers
}

// FetchCoauthors holt die Co-Autoren-Liste einer Person. Nützlich, um
// Tokens weiterer Teammitglieder zu entdecken.
func (c *Client) FetchCoauthors(ctx context.Context, token string) []models.Coauthor {
	url := fmt.Sprintf("%s/exp/co_per_exp/%s/FPS", c.cfg.ChariteBaseURL, token)

	var resp coauthorsResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		c.log.Error("Co-Autoren nicht abrufbar",
			zap.String("token", token), zap.Error(err))
		return nil
	}

	coauthors := make([]models.Coauthor, 0, len(resp.Autoren))
	for _, entry := range resp.Autoren {
		ap := entry.AutorenPerson
		if ap == nil {
			continue
		}
		coauthors = append(coauthors, models.Coauthor{
			Name:             ap.Name,
			FirstName:        ap.Vorname,
			Token:            ap.Person.Token,
			Type:             ap.Person.Type,
			PublicationCount: ap.AnzahlPublikationen,
		})
	}
	return coauthors
}

// FetchProfile holt die Stammdaten eines Profils. nil bei Fehlern.
func (c *Client) FetchProfile(ctx context.Context, token string) *models.ProfileInfo {
	url := fmt.Sprintf("%s/exp/info_per_exp/%s", c.cfg.ChariteBaseURL, token)

	var resp profileResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		c.log.Error("Profil nicht abrufbar",
			zap.String("token", token), zap.Error(err))
		return nil
	}

	return &models.ProfileInfo{
		FirstName:         resp.MainInfo.Vorname,
		LastName:          resp.MainInfo.Nachname,
		Group:             resp.MainInfo.Gruppe,
		GroupEN:           resp.MainInfo.GruppeEN,
		ORCID:             resp.MainInfo.ORCID,
		TotalPublications: resp.Publikationen,
		InternalCoauthors: resp.InterneCoAutoren.Level1,
		TotalCoauthors:    resp.Gesamt.Level1,
	}
}

// getJSON führt eine GET-Anfrage aus und dekodiert die JSON-Antwort.
func (c *Client) getJSON(ctx context.Context, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("anfrage fehlgeschlagen: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("antwort nicht lesbar: %w", err)
	}
	return nil
}

// normalizePublication überführt einen API-Eintrag in das Paper-Modell.
// Einträge ohne Titel werden verworfen.
func normalizePublication(entry publicationEntry) *models.Paper {
	pub := entry.Publikation
	title := strings.TrimSpace(pub.Titel)
	if title == "" {
		return nil
	}

	journal := pub.Quelle.Langname
	if journal == "" {
		journal = pub.Quelle.Name
	}

	p := &models.Paper{
		Title:           strings.TrimRight(title, "."),
		Authors:         models.ParseAuthorString(pub.AutorenString),
		PublicationDate: string(pub.PublikationJahr),
		Abstract:        pub.Abriss,
		Journal:         journal,
		JournalAbbrev:   pub.Quelle.Name,
		Volume:          string(pub.QuelleIdentifier),
		Issue:           string(pub.QuelleIdentifier2),
		Pages:           string(pub.QuelleLocation),
		Affiliation:     pub.Einrichtung,
		PublicationType: pub.ExternPnTyp,
		BookTitle:       pub.Buchtitel,
		OpenAccess:      string(entry.OAStatus),
		Source:          "charite",
	}

	for _, link := range entry.Links {
		label := strings.ToLower(link.EN)
		switch {
		case strings.Contains(label, "doi"):
			p.DOI = doiPrefixRe.ReplaceAllString(link.URL, "")
		case strings.Contains(label, "pubmed"):
			p.PubMedURL = link.URL
		case strings.Contains(label, "pmc"):
			p.PMCURL = link.URL
		case strings.Contains(label, "full text"), strings.Contains(label, "volltext"):
			p.FulltextURL = link.URL
		}
	}

	for _, ia := range entry.InterneAutoren {
		p.InternalAuthors = append(p.InternalAuthors, models.InternalAuthor{
			Surname:   ia.Name,
			FirstName: ia.Vorname,
			Token:     ia.Person.Token,
			Type:      ia.Person.Type,
		})
	}

	switch {
	case p.DOI != "":
		p.ID = p.DOI
		p.URL = "https://doi.org/" + p.DOI
	case p.PubMedURL != "":
		p.URL = p.PubMedURL
	}
	return p
}
