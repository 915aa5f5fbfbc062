package charite

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"refdesk/models"
)

// FetchTeam holt die Publikationen aller Mitglieder mit Token, seriell
// mit Wartezeit zwischen den Anfragen, und dedupliziert das Ergebnis.
// Ohne Mitgliederliste wird das konfigurierte Roster verwendet.
func (c *Client) FetchTeam(ctx context.Context, members []models.TeamMember) []*models.Paper {
	if members == nil {
		members = c.team
	}
	var fetchable []models.TeamMember
	for _, m := range members {
		if m.HasToken() {
			fetchable = append(fetchable, m)
		}
	}

	c.log.Info("Hole Team-Publikationen",
		zap.Int("mit_token", len(fetchable)),
		zap.Int("ohne_token", len(members)-len(fetchable)))

	var all []*models.Paper
	for i, member := range fetchable {
		if i > 0 && !c.pause(ctx) {
			break
		}
		all = append(all, c.FetchMember(ctx, member)...)
	}

	deduped := models.Deduplicate(all)
	c.log.Info("Team-Abruf abgeschlossen",
		zap.Int("roh", len(all)), zap.Int("dedupliziert", len(deduped)))
	return deduped
}

// FetchMember holt die Publikationen eines einzelnen Mitglieds.
func (c *Client) FetchMember(ctx context.Context, member models.TeamMember) []*models.Paper {
	if !member.HasToken() {
		c.log.Debug("Kein API-Token, Mitglied übersprungen", zap.String("name", member.Name))
		return nil
	}
	pubs := c.FetchPublications(ctx, member.Token)
	c.log.Info("Publikationen für Mitglied geladen",
		zap.String("name", member.Name), zap.Int("count", len(pubs)))
	return pubs
}

// FetchMemberByName sucht ein Roster-Mitglied per Teilstring
// (Groß-/Kleinschreibung egal) und holt dessen Publikationen.
func (c *Client) FetchMemberByName(ctx context.Context, name string) ([]*models.Paper, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, fmt.Errorf("name fehlt")
	}
	for _, m := range c.team {
		if strings.Contains(strings.ToLower(m.Name), needle) ||
			strings.Contains(strings.ToLower(m.Surname), needle) {
			return c.FetchMember(ctx, m), nil
		}
	}
	return nil, fmt.Errorf("kein Teammitglied passt zu %q", name)
}

// DiscoverTokens läuft die Co-Autoren-Netze aller bekannten Tokens ab
// und sammelt Tokens für Roster-Mitglieder ein, die noch keines haben.
// Der Seed bestimmt den Startpunkt; leer heißt erstes Token im Roster.
func (c *Client) DiscoverTokens(ctx context.Context, seed string) map[string]string {
	surnames := make(map[string]bool, len(c.team))
	discovered := make(map[string]string)
	for _, m := range c.team {
		surnames[m.Surname] = true
		if m.HasToken() {
			discovered[m.Surname] = m.Token
			if seed == "" {
				seed = m.Token
			}
		}
	}

	var scan []string
	if seed != "" {
		scan = append(scan, seed)
	}
	for _, m := range c.team {
		if m.HasToken() && m.Token != seed {
			scan = append(scan, m.Token)
		}
	}

	record := func(surname, firstName, token string) {
		if token == "" || !surnames[surname] || discovered[surname] != "" {
			return
		}
		discovered[surname] = token
		c.log.Info("Token entdeckt",
			zap.String("name", strings.TrimSpace(firstName+" "+surname)),
			zap.String("token", token))
	}

	for i, token := range scan {
		if i > 0 && !c.pause(ctx) {
			break
		}
		for _, ca := range c.FetchCoauthors(ctx, token) {
			record(ca.Name, ca.FirstName, ca.Token)
		}
		for _, pub := range c.FetchPublications(ctx, token) {
			for _, ia := range pub.InternalAuthors {
				record(ia.Surname, ia.FirstName, ia.Token)
			}
		}
	}

	var missing []string
	for s := range surnames {
		if discovered[s] == "" {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		c.log.Info("Keine Token gefunden", zap.Strings("surnames", missing))
	}
	return discovered
}

// Search filtert die Team-Publikationen per Titel-Teilstring. Eine
// abweichende Mitgliederliste kann über die Optionen mitkommen.
func (c *Client) Search(ctx context.Context, query string, opts models.SearchOptions) ([]*models.Paper, error) {
	all := c.FetchTeam(ctx, opts.Members)

	needle := strings.ToLower(query)
	var matched []*models.Paper
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.Title), needle) {
			matched = append(matched, p)
		}
	}

	if limit := opts.Limit(100); len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Get sucht eine Team-Publikation über ihre DOI.
func (c *Client) Get(ctx context.Context, doi string) (*models.Paper, error) {
	target := models.NormalizeDOI(doi)
	if target == "" {
		target = strings.ToLower(strings.TrimSpace(doi))
	}
	if target == "" {
		return nil, fmt.Errorf("doi fehlt")
	}

	for _, p := range c.FetchTeam(ctx, nil) {
		candidate := models.NormalizeDOI(p.DOI)
		if candidate == "" {
			candidate = strings.ToLower(strings.TrimSpace(p.DOI))
		}
		if candidate != "" && candidate == target {
			return p, nil
		}
	}
	return nil, fmt.Errorf("publikation mit DOI %s nicht gefunden", doi)
}

// Roster liefert das konfigurierte Roster in API-Darstellung.
func (c *Client) Roster() []RosterEntry {
	entries := make([]RosterEntry, 0, len(c.team))
	for _, m := range c.team {
		entries = append(entries, RosterEntry{
			Name:        m.Name,
			Surname:     m.Surname,
			Token:       m.Token,
			ProfileURL:  m.ProfileURL,
			ORCID:       m.ORCID,
			HasAPIToken: m.HasToken(),
		})
	}
	return entries
}

// pause wartet die konfigurierte Zeit zwischen zwei Anfragen. false,
// wenn der Kontext vorher abläuft.
func (c *Client) pause(ctx context.Context) bool {
	delay := c.cfg.TeamFetchDelay()
	if delay <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		c.log.Warn("Team-Abruf abgebrochen", zap.Error(ctx.Err()))
		return false
	case <-time.After(delay):
		return true
	}
}
