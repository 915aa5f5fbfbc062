package zotero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AddResult fasst eine Batch-Zuordnung von Einträgen zu einer Sammlung
// zusammen. Einzelne Fehlschläge brechen den Batch nie ab.
type AddResult struct {
	Status  string      `json:"status"` // success, partial oder error
	Added   int         `json:"added"`
	Failed  int         `json:"failed"`
	Details []AddDetail `json:"details"`
}

// AddDetail dokumentiert das Ergebnis für einen einzelnen Eintrag.
type AddDetail struct {
	ItemKey string `json:"item_key"`
	Status  string `json:"status"` // added, already_in_collection oder error
	Error   string `json:"error,omitempty"`
}

// CreateCollection legt eine Sammlung an und gibt deren Schlüssel zurück.
// parentKey darf leer sein.
func (c *Client) CreateCollection(ctx context.Context, name, parentKey string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: sammlungsname fehlt", ErrInvalidInput)
	}
	payload := map[string]any{"name": name}
	if parentKey != "" {
		payload["parentCollection"] = parentKey
	}
	data, err := c.apiWrite(ctx, http.MethodPost, "/collections", []any{payload}, "")
	if err != nil {
		return "", fmt.Errorf("create collection %q: %w", name, err)
	}
	key, err := parseWriteKey(data)
	if err != nil {
		return "", fmt.Errorf("create collection %q: %w", name, err)
	}
	c.log.Info("Sammlung angelegt", zap.String("name", name), zap.String("key", key))
	return key, nil
}

// CreateItem legt einen Eintrag an und gibt dessen Schlüssel zurück.
// Fehlt itemType, wird journalArticle gesetzt.
func (c *Client) CreateItem(ctx context.Context, item map[string]any) (string, error) {
	if item == nil {
		return "", fmt.Errorf("%w: eintrag fehlt", ErrInvalidInput)
	}
	if _, ok := item["itemType"]; !ok {
		item["itemType"] = "journalArticle"
	}
	data, err := c.apiWrite(ctx, http.MethodPost, "/items", []any{item}, "")
	if err != nil {
		return "", fmt.Errorf("create item: %w", err)
	}
	key, err := parseWriteKey(data)
	if err != nil {
		return "", fmt.Errorf("create item: %w", err)
	}
	return key, nil
}

// AddItemsToCollection ordnet Einträge einer Sammlung zu. Jeder Eintrag
// wird frisch geladen, damit Version und bestehende Zuordnungen stimmen.
// Bereits zugeordnete Einträge zählen weder als hinzugefügt noch als
// fehlgeschlagen.
func (c *Client) AddItemsToCollection(ctx context.Context, collectionKey string, itemKeys []string) *AddResult {
	res := &AddResult{Details: make([]AddDetail, 0, len(itemKeys))}

	for _, itemKey := range itemKeys {
		item, err := c.GetItem(ctx, itemKey)
		if err != nil {
			res.Failed++
			res.Details = append(res.Details, AddDetail{ItemKey: itemKey, Status: "error", Error: err.Error()})
			continue
		}
		if item.InCollection(collectionKey) {
			res.Details = append(res.Details, AddDetail{ItemKey: itemKey, Status: "already_in_collection"})
			continue
		}
		patch := map[string]any{"collections": append(item.Collections, collectionKey)}
		version := strconv.Itoa(item.Version)
		if _, err := c.apiWrite(ctx, http.MethodPatch, "/items/"+itemKey, patch, version); err != nil {
			res.Failed++
			res.Details = append(res.Details, AddDetail{ItemKey: itemKey, Status: "error", Error: err.Error()})
			continue
		}
		res.Added++
		res.Details = append(res.Details, AddDetail{ItemKey: itemKey, Status: "added"})
	}

	switch {
	case res.Failed == 0:
		res.Status = "success"
	case res.Added > 0:
		res.Status = "partial"
	default:
		res.Status = "error"
	}
	c.log.Info("Einträge zugeordnet",
		zap.String("collection", collectionKey),
		zap.Int("added", res.Added),
		zap.Int("failed", res.Failed))
	return res
}

// RemoveItemFromCollection löst einen Eintrag aus einer Sammlung. Ist er
// dort nicht zugeordnet, ist das kein Fehler.
func (c *Client) RemoveItemFromCollection(ctx context.Context, collectionKey, itemKey string) (bool, error) {
	item, err := c.GetItem(ctx, itemKey)
	if err != nil {
		return false, fmt.Errorf("remove item %s: %w", itemKey, err)
	}
	if !item.InCollection(collectionKey) {
		return false, nil
	}
	remaining := make([]string, 0, len(item.Collections))
	for _, key := range item.Collections {
		if key != collectionKey {
			remaining = append(remaining, key)
		}
	}
	patch := map[string]any{"collections": remaining}
	if _, err := c.apiWrite(ctx, http.MethodPatch, "/items/"+itemKey, patch, strconv.Itoa(item.Version)); err != nil {
		return false, fmt.Errorf("remove item %s: %w", itemKey, err)
	}
	return true, nil
}

// UpdateItem ändert Felder eines Eintrags unter Versionsschutz.
func (c *Client) UpdateItem(ctx context.Context, itemKey string, updates map[string]any) error {
	if len(updates) == 0 {
		return fmt.Errorf("%w: keine Änderungen angegeben", ErrInvalidInput)
	}
	item, err := c.GetItem(ctx, itemKey)
	if err != nil {
		return fmt.Errorf("update item %s: %w", itemKey, err)
	}
	if _, err := c.apiWrite(ctx, http.MethodPatch, "/items/"+itemKey, updates, strconv.Itoa(item.Version)); err != nil {
		return fmt.Errorf("update item %s: %w", itemKey, err)
	}
	return nil
}

// DeleteCollection löscht eine Sammlung. Die Einträge darin bleiben in
// der Bibliothek erhalten.
func (c *Client) DeleteCollection(ctx context.Context, collectionKey string) error {
	req, err := c.apiRequest(ctx, http.MethodGet, "/collections/"+collectionKey, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("delete collection %s: %w", collectionKey, err)
	}
	version := resp.Header.Get("Last-Modified-Version")
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if err := checkAPIStatus(resp.StatusCode, collectionKey, nil); err != nil {
		return fmt.Errorf("delete collection %s: %w", collectionKey, err)
	}

	req, err = c.apiRequest(ctx, http.MethodDelete, "/collections/"+collectionKey, nil)
	if err != nil {
		return err
	}
	req.Header.Set("If-Unmodified-Since-Version", version)
	resp, err = c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("delete collection %s: %w", collectionKey, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if err := checkAPIStatus(resp.StatusCode, collectionKey, nil); err != nil {
		return fmt.Errorf("delete collection %s: %w", collectionKey, err)
	}
	c.log.Info("Sammlung gelöscht", zap.String("key", collectionKey))
	return nil
}

// CollectionsPage holt eine Seite Sammlungen direkt über die Web-API.
// Gedacht für Snapshots; zurück kommen Roh-JSON und Gesamtzahl.
func (c *Client) CollectionsPage(ctx context.Context, start, limit int) ([]json.RawMessage, int, error) {
	return c.rawPage(ctx, "/collections", start, limit)
}

// ItemsPage holt eine Seite Einträge direkt über die Web-API.
func (c *Client) ItemsPage(ctx context.Context, start, limit int) ([]json.RawMessage, int, error) {
	return c.rawPage(ctx, "/items", start, limit)
}

func (c *Client) rawPage(ctx context.Context, path string, start, limit int) ([]json.RawMessage, int, error) {
	if limit <= 0 {
		limit = 100
	}
	url := fmt.Sprintf("%s?format=json&limit=%d&start=%d", path, limit, start)
	req, err := c.apiRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("page %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("page %s: %w", path, err)
	}
	if err := checkAPIStatus(resp.StatusCode, "", body); err != nil {
		return nil, 0, fmt.Errorf("page %s: %w", path, err)
	}
	var page []json.RawMessage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, 0, fmt.Errorf("page %s: %w", path, err)
	}
	total, _ := strconv.Atoi(resp.Header.Get("Total-Results"))
	return page, total, nil
}

// apiWrite führt einen schreibenden Web-API-Aufruf aus. POSTs erhalten
// einen Write-Token gegen doppelte Ausführung, Mutationen den
// Versionsschutz über If-Unmodified-Since-Version.
func (c *Client) apiWrite(ctx context.Context, method, path string, body any, version string) ([]byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := c.apiRequest(ctx, method, path, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	if method == http.MethodPost {
		req.Header.Set("Zotero-Write-Token", uuid.NewString())
	}
	if version != "" {
		req.Header.Set("If-Unmodified-Since-Version", version)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := checkAPIStatus(resp.StatusCode, "", respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

func (c *Client) apiRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	url := c.lib.APIBase + c.apiPrefix() + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Zotero-API-Version", "3")
	req.Header.Set("Content-Type", "application/json")
	if c.lib.APIKey != "" {
		req.Header.Set("Zotero-API-Key", c.lib.APIKey)
	}
	return req, nil
}

func (c *Client) apiPrefix() string {
	if c.lib.LibraryType == "user" {
		return "/users/" + c.lib.LibraryID
	}
	return "/groups/" + c.lib.LibraryID
}

// parseWriteKey zieht den Schlüssel des angelegten Objekts aus der
// Antwort. Die API liefert je nach Version success (Schlüssel als
// String) oder successful (volles Objekt).
func parseWriteKey(data []byte) (string, error) {
	var res struct {
		Success    map[string]string          `json:"success"`
		Successful map[string]json.RawMessage `json:"successful"`
		Failed     map[string]struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"failed"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return "", fmt.Errorf("antwort nicht lesbar: %w", err)
	}
	if key, ok := res.Success["0"]; ok && key != "" {
		return key, nil
	}
	if raw, ok := res.Successful["0"]; ok {
		var obj struct {
			Key string `json:"key"`
		}
		if json.Unmarshal(raw, &obj) == nil && obj.Key != "" {
			return obj.Key, nil
		}
	}
	if failure, ok := res.Failed["0"]; ok {
		return "", &APIError{StatusCode: failure.Code, Message: failure.Message}
	}
	return "", fmt.Errorf("kein Schlüssel in der Antwort")
}

// checkAPIStatus übersetzt Web-API-Statuscodes in die Fehlertaxonomie.
func checkAPIStatus(code int, key string, body []byte) error {
	switch {
	case code < 400:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrAuth
	case code == http.StatusNotFound:
		return &APIError{StatusCode: code, Message: "not found", Key: key}
	case code == http.StatusPreconditionFailed:
		return ErrConflict
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		msg := "request failed"
		if len(body) > 0 {
			msg = string(body)
			if len(msg) > 200 {
				msg = msg[:200]
			}
		}
		return &APIError{StatusCode: code, Message: msg, Key: key}
	}
}
