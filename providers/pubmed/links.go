package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"refdesk/models"
)

// Linknamen der PubMed-Zitationsgraphen in ELink.
const (
	linkCitedIn = "pubmed_pubmed_citedin"
	linkRefs    = "pubmed_pubmed_refs"
	linkSimilar = "pubmed_pubmed"
	linkPMC     = "pubmed_pmc"
)

// CitedBy findet Artikel, die den angegebenen Artikel zitieren.
func (f *Fetcher) CitedBy(ctx context.Context, pmid string, maxResults int) ([]*models.Paper, error) {
	if maxResults <= 0 {
		maxResults = 100
	}
	ids, err := f.linkIDs(ctx, pmid, linkCitedIn, maxResults)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		f.log.Info("Keine zitierenden Artikel gefunden", zap.String("pmid", pmid))
		return nil, nil
	}
	return f.Batch(ctx, ids)
}

// References liefert das Literaturverzeichnis eines Artikels, soweit
// PubMed es verlinkt hat.
func (f *Fetcher) References(ctx context.Context, pmid string) ([]*models.Paper, error) {
	ids, err := f.linkIDs(ctx, pmid, linkRefs, 0)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		f.log.Info("Keine Referenzen gefunden", zap.String("pmid", pmid))
		return nil, nil
	}
	return f.Batch(ctx, ids)
}

// Similar findet inhaltlich verwandte Artikel. Der Ausgangsartikel
// selbst wird aus dem Ergebnis entfernt.
func (f *Fetcher) Similar(ctx context.Context, pmid string, maxResults int) ([]*models.Paper, error) {
	if maxResults <= 0 {
		maxResults = 20
	}
	ids, err := f.linkIDs(ctx, pmid, linkSimilar, maxResults+1)
	if err != nil {
		return nil, err
	}

	filtered := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != pmid {
			filtered = append(filtered, id)
		}
	}
	if len(filtered) > maxResults {
		filtered = filtered[:maxResults]
	}
	if len(filtered) == 0 {
		return nil, nil
	}
	return f.Batch(ctx, filtered)
}

// Fulltext holt den PMC-Volltext, sofern der Artikel dort vorliegt.
// Ohne PMC-Eintrag kommt (nil, nil) zurück.
func (f *Fetcher) Fulltext(ctx context.Context, pmid string) (*FullText, error) {
	ids, err := f.linkIDs(ctx, pmid, linkPMC, 1)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		f.log.Info("Kein PMC-Volltext verfügbar", zap.String("pmid", pmid))
		return nil, nil
	}
	pmcid := ids[0]

	params := url.Values{}
	params.Set("db", "pmc")
	params.Set("id", pmcid)
	params.Set("rettype", "full")
	params.Set("retmode", "xml")

	body, err := f.doGet(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("PMC-Volltext fehlgeschlagen: %w", err)
	}

	return &FullText{
		PMID:  pmid,
		PMCID: pmcid,
		XML:   string(body),
		URL:   "https://www.ncbi.nlm.nih.gov/pmc/articles/PMC" + pmcid + "/",
	}, nil
}

// linkIDs fragt ELink nach verknüpften IDs. retMax 0 lässt das Limit weg.
func (f *Fetcher) linkIDs(ctx context.Context, pmid, linkname string, retMax int) ([]string, error) {
	if !pmidRe.MatchString(pmid) {
		return nil, fmt.Errorf("ungültige PMID: %q", pmid)
	}

	params := url.Values{}
	params.Set("dbfrom", "pubmed")
	params.Set("db", "pubmed")
	if linkname == linkPMC {
		params.Set("db", "pmc")
	}
	params.Set("id", pmid)
	params.Set("linkname", linkname)
	params.Set("retmode", "json")
	if retMax > 0 {
		params.Set("retmax", strconv.Itoa(retMax))
	}

	body, err := f.doGet(ctx, "elink.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("elink %s fehlgeschlagen: %w", linkname, err)
	}

	var elink ELinkResponse
	if err := json.Unmarshal(body, &elink); err != nil {
		return nil, fmt.Errorf("elink-Antwort nicht lesbar: %w", err)
	}

	var ids []string
	for _, ls := range elink.LinkSets {
		for _, db := range ls.LinkSetDBs {
			if db.LinkName == linkname {
				ids = append(ids, db.Links...)
			}
		}
	}
	return ids, nil
}
