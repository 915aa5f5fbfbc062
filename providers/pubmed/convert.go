package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// converterURL ist der NCBI-Dienst zur Umrechnung zwischen PMID, PMCID
// und DOI.
const converterURL = "https://www.ncbi.nlm.nih.gov/pmc/utils/idconv/v1.0/"

// ValidatePMID prüft Format und Existenz einer PMID. Netzfehler bei der
// Existenzprüfung werden geloggt und als nicht existent gewertet.
func (f *Fetcher) ValidatePMID(ctx context.Context, pmid string) Validation {
	if !pmidRe.MatchString(pmid) {
		return Validation{ValidFormat: false, Exists: false}
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", pmid)
	params.Set("retmode", "json")

	body, err := f.doGet(ctx, "esummary.fcgi", params)
	if err != nil {
		f.log.Warn("PMID-Existenzprüfung fehlgeschlagen", zap.String("pmid", pmid), zap.Error(err))
		return Validation{ValidFormat: true, Exists: false}
	}

	var summary struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &summary); err != nil {
		f.log.Warn("ESummary-Antwort nicht lesbar", zap.Error(err))
		return Validation{ValidFormat: true, Exists: false}
	}

	raw, ok := summary.Result[pmid]
	if !ok {
		return Validation{ValidFormat: true, Exists: false}
	}
	var record map[string]json.RawMessage
	if err := json.Unmarshal(raw, &record); err != nil {
		return Validation{ValidFormat: true, Exists: false}
	}
	_, hasError := record["error"]
	return Validation{ValidFormat: true, Exists: !hasError}
}

// ConvertID rechnet zwischen den Kennungssystemen pmid, pmcid und doi
// um. Identische Typen sind ein No-op; keine Umrechnung gefunden ergibt
// einen leeren String ohne Fehler.
func (f *Fetcher) ConvertID(ctx context.Context, identifier, sourceType, targetType string) (string, error) {
	if sourceType == targetType {
		return identifier, nil
	}
	if !validIDType(sourceType) || !validIDType(targetType) {
		return "", fmt.Errorf("unbekannter ID-Typ: %s nach %s (erlaubt: pmid, pmcid, doi)", sourceType, targetType)
	}

	f.log.Info("Konvertiere Kennung",
		zap.String("id", identifier),
		zap.String("von", sourceType),
		zap.String("nach", targetType))

	params := url.Values{}
	params.Set("ids", identifier)
	params.Set("format", "json")
	params.Set("idtype", sourceType)
	if f.cfg.PubMedTool != "" {
		params.Set("tool", f.cfg.PubMedTool)
	}
	if f.cfg.PubMedEmail != "" {
		params.Set("email", f.cfg.PubMedEmail)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, converterURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := f.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("ID-Converter-Anfrage fehlgeschlagen: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("ID-Converter failed: status %d", resp.StatusCode)
	}

	var conv ConverterResponse
	if err := json.NewDecoder(resp.Body).Decode(&conv); err != nil {
		return "", fmt.Errorf("converter-Antwort nicht lesbar: %w", err)
	}
	if len(conv.Records) == 0 {
		f.log.Info("Keine Umrechnung gefunden", zap.String("id", identifier))
		return "", nil
	}

	record := conv.Records[0]
	switch targetType {
	case "pmid":
		return record.PMID, nil
	case "pmcid":
		return record.PMCID, nil
	default:
		return record.DOI, nil
	}
}

func validIDType(t string) bool {
	return t == "pmid" || t == "pmcid" || t == "doi"
}
