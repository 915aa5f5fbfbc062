package zotero

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Festes Timeout pro Tool-Call; Aufrufer können es nicht ändern.
const toolTimeout = 60 * time.Second

// ToolClient kapselt den JSON-RPC-2.0-Kanal zum zotero-mcp Server.
// Ein Call = ein Tool = ein Ergebnis; kein Streaming über Call-Grenzen.
// Der Bibliothekskontext wird pro abgeleitetem Client als feste Header
// mitgesendet; Limiter und Verbindung teilen sich alle Ableitungen.
type ToolClient struct {
	baseURL string
	apiKey  string
	headers map[string]string
	httpc   *http.Client
	limiter *rate.Limiter
	reqID   *atomic.Int64
	log     *zap.Logger
}

// NewToolClient erstellt einen Kanal zum Tool-Server unter baseURL.
func NewToolClient(baseURL, apiKey string, rps float64, log *zap.Logger) *ToolClient {
	if rps <= 0 {
		rps = 10
	}
	return &ToolClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: toolTimeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		reqID:   &atomic.Int64{},
		log:     log,
	}
}

// WithLibrary gibt einen abgeleiteten Client zurück, der die angegebene
// Bibliothek als Header-Kontext mitsendet.
func (t *ToolClient) WithLibrary(libraryID, libraryType, apiKey string) *ToolClient {
	derived := *t
	derived.headers = map[string]string{
		"X-Zotero-Library-ID":   libraryID,
		"X-Zotero-Library-Type": libraryType,
	}
	if apiKey != "" {
		derived.headers["X-Zotero-API-Key"] = apiKey
	}
	return &derived
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int64     `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  *toolResult     `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type toolResult struct {
	Content []contentBlock `json:"content"`
	IsError bool           `json:"isError"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// text sammelt alle Textblöcke des Ergebnisses ein.
func (r *toolResult) text() string {
	var parts []string
	for _, c := range r.Content {
		if c.Type == "text" && c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Call ruft ein Tool auf und gibt dessen Text-Payload zurück (meist JSON).
// Der Limiter drosselt alle Aufrufe dieses Clients.
func (t *ToolClient) Call(ctx context.Context, tool string, args map[string]any) ([]byte, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      t.reqID.Add(1),
		Method:  "tools/call",
		Params:  rpcParams{Name: tool, Arguments: args},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal tool request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	if t.apiKey != "" {
		httpReq.Header.Set("x-api-key", t.apiKey)
	}
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}

	t.log.Debug("Rufe Tool auf", zap.String("tool", tool))

	resp, err := t.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tool call %s: %w", tool, err)
	}
	defer resp.Body.Close()

	if err := checkToolStatus(resp.StatusCode, tool); err != nil {
		return nil, err
	}

	var rpcResp rpcResponse
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		rpcResp, err = parseSSE(resp.Body)
	} else {
		err = json.NewDecoder(resp.Body).Decode(&rpcResp)
	}
	if err != nil {
		return nil, fmt.Errorf("tool call %s: decode response: %w", tool, err)
	}

	if rpcResp.Error != nil {
		return nil, fmt.Errorf("tool call %s: rpc error %d: %s", tool, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if rpcResp.Result == nil {
		return nil, fmt.Errorf("tool call %s: leere Antwort", tool)
	}

	text := rpcResp.Result.text()
	if rpcResp.Result.IsError {
		return nil, fmt.Errorf("tool call %s: %s", tool, text)
	}
	return []byte(text), nil
}

// parseSSE liest einen Server-Sent-Events-Strom und extrahiert die erste
// vollständige JSON-RPC-Antwort. Ping-Kommentare und Event-Marker werden
// übersprungen.
func parseSSE(r io.Reader) (rpcResponse, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") || strings.HasPrefix(line, "event:") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" {
			continue
		}
		var resp rpcResponse
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			continue
		}
		if resp.Result != nil || resp.Error != nil {
			return resp, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return rpcResponse{}, err
	}
	return rpcResponse{}, fmt.Errorf("kein JSON-RPC-Payload im Event-Strom")
}

// checkToolStatus übersetzt HTTP-Fehlercodes in die Fehlertaxonomie.
func checkToolStatus(code int, tool string) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("tool call %s: %w", tool, ErrAuth)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("tool call %s: %w", tool, ErrRateLimited)
	case code >= 400:
		return &APIError{StatusCode: code, Message: fmt.Sprintf("tool call %s failed", tool)}
	}
	return nil
}
