package zotero

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"refdesk/models"
)

// Timeout für direkte Web-API-Zugriffe (Schreibpfad, Snapshots).
const apiTimeout = 30 * time.Second

// LibraryConfig beschreibt eine konkrete Zotero-Bibliothek.
type LibraryConfig struct {
	LibraryID   string
	LibraryType string // "group" oder "user"
	APIKey      string
	APIBase     string
}

// Client bündelt beide Kanäle zu genau einer Bibliothek: den Tool-Kanal
// für Lesezugriffe und die Web-API für Schreibzugriffe.
//
// Listen-Reads geben bei gestörtem Kanal eine leere Liste zurück und
// loggen den Fehler; Aufrufer behandeln "nichts gefunden" und "Kanal
// gestört" gleich. Nur GetItem reicht Fehler durch, weil Workflows dort
// zwischen fehlend und vorhanden unterscheiden müssen.
type Client struct {
	lib   LibraryConfig
	tools *ToolClient
	httpc *http.Client
	log   *zap.Logger
}

// NewClient bindet einen Tool-Kanal an eine Bibliothek.
func NewClient(lib LibraryConfig, tools *ToolClient, log *zap.Logger) *Client {
	if lib.APIBase == "" {
		lib.APIBase = "https://api.zotero.org"
	}
	return &Client{
		lib:   lib,
		tools: tools.WithLibrary(lib.LibraryID, lib.LibraryType, lib.APIKey),
		httpc: &http.Client{Timeout: apiTimeout},
		log: log.With(
			zap.String("library_type", lib.LibraryType),
			zap.String("library_id", lib.LibraryID),
		),
	}
}

// LibraryID gibt die Kennung der gebundenen Bibliothek zurück.
func (c *Client) LibraryID() string { return c.lib.LibraryID }

// SearchItems durchsucht Titel, Autoren und Volltexte der Bibliothek.
func (c *Client) SearchItems(ctx context.Context, query string, limit int) []models.Item {
	if limit <= 0 {
		limit = 50
	}
	items := c.listCall(ctx, "zotero_search_items",
		map[string]any{"query": query, "limit": limit}, "items", "results")
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// GetItem holt die vollständigen Metadaten eines Eintrags.
func (c *Client) GetItem(ctx context.Context, itemKey string) (*models.Item, error) {
	data, err := c.tools.Call(ctx, "zotero_get_item_metadata", map[string]any{"item_key": itemKey})
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", itemKey, err)
	}
	if msg, ok := payloadError(data); ok {
		return nil, &APIError{StatusCode: http.StatusNotFound, Message: msg, Key: itemKey}
	}
	var item models.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("get item %s: antwort nicht lesbar: %w", itemKey, err)
	}
	if item.Key == "" {
		item.Key = itemKey
	}
	return &item, nil
}

// ListCollections listet alle Sammlungen der Bibliothek.
func (c *Client) ListCollections(ctx context.Context) []models.Collection {
	data, err := c.tools.Call(ctx, "zotero_get_collections", nil)
	if err != nil {
		c.log.Warn("Sammlungen nicht abrufbar", zap.Error(err))
		return nil
	}
	var cols []models.Collection
	if err := decodeList(data, &cols, "collections"); err != nil {
		c.log.Warn("Sammlungsliste nicht lesbar", zap.Error(err))
		return nil
	}
	return cols
}

// CollectionItems listet die Einträge einer Sammlung.
func (c *Client) CollectionItems(ctx context.Context, collectionKey string) []models.Item {
	return c.listCall(ctx, "zotero_get_collection_items",
		map[string]any{"collection_key": collectionKey}, "items")
}

// Fulltext liefert den indizierten Volltext eines Eintrags, sofern
// vorhanden. Antworten ohne JSON-Hülle werden als roher Text übernommen.
func (c *Client) Fulltext(ctx context.Context, itemKey string) string {
	data, err := c.tools.Call(ctx, "zotero_get_item_fulltext", map[string]any{"item_key": itemKey})
	if err != nil {
		c.log.Warn("Volltext nicht abrufbar", zap.String("item_key", itemKey), zap.Error(err))
		return ""
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return string(data)
	}
	if _, ok := envelope["error"]; ok {
		return ""
	}
	for _, key := range []string{"fulltext", "text"} {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
	}
	return ""
}

// Annotations liefert PDF-Anmerkungen und Notizen zu einem Eintrag.
func (c *Client) Annotations(ctx context.Context, itemKey string) []models.Annotation {
	data, err := c.tools.Call(ctx, "zotero_get_annotations", map[string]any{"item_key": itemKey})
	if err != nil {
		c.log.Warn("Anmerkungen nicht abrufbar", zap.String("item_key", itemKey), zap.Error(err))
		return nil
	}
	var notes []models.Annotation
	if err := decodeList(data, &notes, "annotations"); err != nil {
		c.log.Warn("Anmerkungen nicht lesbar", zap.Error(err))
		return nil
	}
	return notes
}

// SemanticSearch sucht inhaltlich ähnliche Einträge zur Anfrage.
func (c *Client) SemanticSearch(ctx context.Context, query string, limit int) []models.Item {
	if limit <= 0 {
		limit = 10
	}
	return c.listCall(ctx, "zotero_semantic_search",
		map[string]any{"query": query, "limit": limit}, "results", "items")
}

// AdvancedSearch sucht feldweise. Mindestens ein Kriterium muss gesetzt
// sein, sonst gibt es einen Eingabefehler statt einer Netzrunde.
func (c *Client) AdvancedSearch(ctx context.Context, crit models.AdvancedSearchCriteria) ([]models.Item, error) {
	if crit.Empty() {
		return nil, fmt.Errorf("%w: mindestens ein Suchfeld angeben", ErrInvalidInput)
	}
	args := map[string]any{}
	if crit.Title != "" {
		args["title"] = crit.Title
	}
	if crit.Creator != "" {
		args["creator"] = crit.Creator
	}
	if crit.Tag != "" {
		args["tag"] = crit.Tag
	}
	if crit.ItemType != "" {
		args["itemType"] = crit.ItemType
	}
	if crit.Year != 0 {
		args["year"] = crit.Year
	}
	return c.listCall(ctx, "zotero_advanced_search", args, "items", "results"), nil
}

// Recent liefert die zuletzt hinzugefügten Einträge.
func (c *Client) Recent(ctx context.Context, limit int) []models.Item {
	if limit <= 0 {
		limit = 20
	}
	return c.listCall(ctx, "zotero_get_recent", map[string]any{"limit": limit}, "items")
}

// Tags listet alle Schlagwörter der Bibliothek.
func (c *Client) Tags(ctx context.Context) []string {
	data, err := c.tools.Call(ctx, "zotero_get_tags", nil)
	if err != nil {
		c.log.Warn("Schlagwörter nicht abrufbar", zap.Error(err))
		return nil
	}
	return decodeTags(data)
}

// SearchByTag liefert alle Einträge mit dem Schlagwort.
func (c *Client) SearchByTag(ctx context.Context, tag string) []models.Item {
	return c.listCall(ctx, "zotero_search_by_tag", map[string]any{"tag": tag}, "items")
}

// SearchByDOI sucht einen Eintrag über seine DOI. Verglichen wird
// normalisiert, damit Präfix- und Schreibvarianten zueinander finden.
func (c *Client) SearchByDOI(ctx context.Context, doi string) *models.Item {
	target := models.NormalizeDOI(doi)
	if target == "" {
		target = strings.ToLower(strings.TrimSpace(doi))
	}
	if target == "" {
		return nil
	}
	for _, item := range c.SearchItems(ctx, doi, 10) {
		got := item.NormalizedDOI()
		if got == "" {
			got = strings.ToLower(strings.TrimSpace(item.DOI))
		}
		if got != "" && got == target {
			return &item
		}
	}
	return nil
}

// listCall führt einen Tool-Aufruf aus und dekodiert eine Item-Liste.
func (c *Client) listCall(ctx context.Context, tool string, args map[string]any, keys ...string) []models.Item {
	data, err := c.tools.Call(ctx, tool, args)
	if err != nil {
		c.log.Warn("Tool-Aufruf fehlgeschlagen", zap.String("tool", tool), zap.Error(err))
		return nil
	}
	var items []models.Item
	if err := decodeList(data, &items, keys...); err != nil {
		c.log.Warn("Tool-Antwort nicht lesbar", zap.String("tool", tool), zap.Error(err))
		return nil
	}
	return items
}

// decodeList dekodiert eine Liste aus einer Tool-Antwort. Akzeptiert
// werden eine JSON-Hülle mit einem der angegebenen Schlüssel oder ein
// nacktes Array. Eine Hülle mit "error" zählt als leeres Ergebnis, eine
// Hülle ohne passenden Schlüssel ebenfalls.
func decodeList(data []byte, target any, keys ...string) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(data, target)
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("weder Objekt noch Array: %w", err)
	}
	if raw, ok := envelope["error"]; ok {
		var msg string
		_ = json.Unmarshal(raw, &msg)
		return fmt.Errorf("tool meldet Fehler: %s", msg)
	}
	for _, key := range keys {
		if raw, ok := envelope[key]; ok {
			return json.Unmarshal(raw, target)
		}
	}
	return nil
}

// decodeTags liest Schlagwörter wahlweise als Strings oder als Objekte.
func decodeTags(data []byte) []string {
	var envelope struct {
		Tags json.RawMessage `json:"tags"`
	}
	raw := json.RawMessage(data)
	if json.Unmarshal(data, &envelope) == nil && envelope.Tags != nil {
		raw = envelope.Tags
	}
	var names []string
	if json.Unmarshal(raw, &names) == nil {
		return names
	}
	var tagged []models.Tag
	if json.Unmarshal(raw, &tagged) == nil {
		names = make([]string, 0, len(tagged))
		for _, t := range tagged {
			if t.Tag != "" {
				names = append(names, t.Tag)
			}
		}
		return names
	}
	return nil
}

// payloadError erkennt die Fehlerhülle {"error": "..."} einer Tool-Antwort.
func payloadError(data []byte) (string, bool) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", false
	}
	raw, ok := envelope["error"]
	if !ok {
		return "", false
	}
	var msg string
	if json.Unmarshal(raw, &msg) != nil {
		msg = string(raw)
	}
	return msg, true
}
