package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"refdesk/models"
	"refdesk/providers"
	"refdesk/services"
	"refdesk/zotero"
)

// stubLibrary liefert feste Daten für den Kanaltest.
type stubLibrary struct {
	items []models.Item
	item  *models.Item
}

func (s *stubLibrary) SearchItems(_ context.Context, _ string, _ int) []models.Item {
	return s.items
}

func (s *stubLibrary) GetItem(_ context.Context, key string) (*models.Item, error) {
	if s.item != nil && s.item.Key == key {
		return s.item, nil
	}
	return nil, fmt.Errorf("item %s: %w", key, zotero.ErrNotFound)
}

func (s *stubLibrary) ListCollections(context.Context) []models.Collection { return nil }

func (s *stubLibrary) CollectionItems(context.Context, string) []models.Item { return nil }

func (s *stubLibrary) SearchByTag(context.Context, string) []models.Item { return nil }

func (s *stubLibrary) SemanticSearch(context.Context, string, int) []models.Item { return nil }

func (s *stubLibrary) CreateCollection(context.Context, string, string) (string, error) {
	return "COL1", nil
}

func (s *stubLibrary) CreateItem(context.Context, map[string]any) (string, error) {
	return "ITEM1", nil
}

func (s *stubLibrary) AddItemsToCollection(context.Context, string, []string) *zotero.AddResult {
	return &zotero.AddResult{Status: "success"}
}

func (s *stubLibrary) Fulltext(context.Context, string) string { return "Volltext" }

var _ Library = (*stubLibrary)(nil)

type stubProvider struct{ name string }

func (p stubProvider) Search(context.Context, string, models.SearchOptions) ([]*models.Paper, error) {
	return []*models.Paper{{ID: "1", Title: "Quellentreffer", Source: p.name}}, nil
}

func (p stubProvider) Get(context.Context, string) (*models.Paper, error) {
	return nil, zotero.ErrNotFound
}

func (p stubProvider) Name() string { return p.name }

type stubTeam struct{}

func (stubTeam) FetchTeam(context.Context, []models.TeamMember) []*models.Paper {
	return []*models.Paper{{ID: "10.1234/team", Title: "Teamarbeit", Source: "charite"}}
}

func minimalServer(lib *stubLibrary) *Server {
	log := zap.NewNop()
	return NewServer(Deps{
		Library:   lib,
		Workflows: services.NewWorkflows(lib, nil, log),
	}, log)
}

func fullServer(lib *stubLibrary) *Server {
	log := zap.NewNop()
	search := services.NewSearchService([]providers.Provider{
		stubProvider{name: "pubmed"}, stubProvider{name: "arxiv"},
	}, log)
	return NewServer(Deps{
		Library:   lib,
		Workflows: services.NewWorkflows(lib, nil, log),
		Importer:  services.NewImporter(search, lib, log),
		Search:    search,
		Resolver:  zotero.NewResolver("http://unbenutzt.invalid", "", log),
		Team:      stubTeam{},
	}, log)
}

// runLines schickt die Zeilen durch den Server und gibt die
// Antwortzeilen zurück.
func runLines(t *testing.T, s *Server, lines ...string) []string {
	t.Helper()
	var out strings.Builder
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	if err := s.Run(context.Background(), in, &out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var responses []string
	for _, l := range strings.Split(out.String(), "\n") {
		if l != "" {
			responses = append(responses, l)
		}
	}
	return responses
}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

func decodeResponse(t *testing.T, line string) wireResponse {
	t.Helper()
	var resp wireResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatalf("Antwort nicht dekodierbar: %v\n%s", err, line)
	}
	return resp
}

func TestInitializeHandshake(t *testing.T) {
	s := minimalServer(&stubLibrary{})

	out := runLines(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	if len(out) != 1 {
		t.Fatalf("%d Antworten, erwartet 1", len(out))
	}
	resp := decodeResponse(t, out[0])
	if resp.JSONRPC != "2.0" || resp.ID != float64(1) {
		t.Errorf("jsonrpc/id = %q/%v", resp.JSONRPC, resp.ID)
	}
	var result struct {
		ProtocolVersion string         `json:"protocolVersion"`
		Capabilities    map[string]any `json:"capabilities"`
		ServerInfo      serverInfo     `json:"serverInfo"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("Result: %v", err)
	}
	if result.ProtocolVersion != "2024-11-05" {
		t.Errorf("protocolVersion = %q", result.ProtocolVersion)
	}
	if result.ServerInfo.Name != "refdesk" || result.ServerInfo.Version != "0.1.0" {
		t.Errorf("serverInfo = %+v", result.ServerInfo)
	}
	if _, ok := result.Capabilities["tools"]; !ok {
		t.Errorf("capabilities = %v", result.Capabilities)
	}
}

func TestToolsListAdvertisesWiredTools(t *testing.T) {
	list := func(s *Server) map[string]bool {
		out := runLines(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
		resp := decodeResponse(t, out[0])
		var result struct {
			Tools []toolInfo `json:"tools"`
		}
		if err := json.Unmarshal(resp.Result, &result); err != nil {
			t.Fatalf("Result: %v", err)
		}
		names := make(map[string]bool, len(result.Tools))
		for _, tool := range result.Tools {
			names[tool.Name] = true
			if tool.Description == "" || !json.Valid(tool.InputSchema) {
				t.Errorf("Werkzeug %s ohne Beschreibung oder mit kaputtem Schema", tool.Name)
			}
		}
		return names
	}

	minimal := list(minimalServer(&stubLibrary{}))
	if len(minimal) != 11 {
		t.Errorf("minimaler Server hat %d Werkzeuge, erwartet 11", len(minimal))
	}
	for _, name := range []string{"zotero_search", "build_reading_list", "export_bibliography", "library_status"} {
		if !minimal[name] {
			t.Errorf("Werkzeug %s fehlt", name)
		}
	}
	for _, name := range []string{"pubmed_search", "import_to_collection", "resolve_doi", "team_publications"} {
		if minimal[name] {
			t.Errorf("Werkzeug %s trotz fehlender Abhängigkeit angeboten", name)
		}
	}

	full := list(fullServer(&stubLibrary{}))
	if len(full) != 16 {
		t.Errorf("voller Server hat %d Werkzeuge, erwartet 16", len(full))
	}
	for _, name := range []string{"pubmed_search", "arxiv_search", "import_to_collection", "resolve_doi", "team_publications"} {
		if !full[name] {
			t.Errorf("Werkzeug %s fehlt", name)
		}
	}
}

func TestToolsCallReturnsIndentedJSON(t *testing.T) {
	lib := &stubLibrary{items: []models.Item{{Key: "A1", Title: "Gefunden"}}}
	s := minimalServer(lib)

	out := runLines(t, s,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"zotero_search","arguments":{"query":"fhir","limit":5}}}`)
	resp := decodeResponse(t, out[0])
	if resp.Error != nil {
		t.Fatalf("Fehler: %+v", resp.Error)
	}
	var result callResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("Result: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Type != "text" {
		t.Fatalf("Content = %+v", result.Content)
	}
	text := result.Content[0].Text
	if !strings.Contains(text, "\n  ") {
		t.Errorf("Text ist nicht eingerückt:\n%s", text)
	}
	var items []models.Item
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		t.Fatalf("Text ist kein Item-JSON: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Gefunden" {
		t.Errorf("Items = %+v", items)
	}
}

func TestWorkflowThroughChannel(t *testing.T) {
	s := minimalServer(&stubLibrary{})

	out := runLines(t, s,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"smart_add_paper","arguments":{"doi":"10.1234/abc"}}}`)
	resp := decodeResponse(t, out[0])
	if resp.Error != nil {
		t.Fatalf("Fehler: %+v", resp.Error)
	}
	var result callResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("Result: %v", err)
	}
	if !strings.Contains(result.Content[0].Text, `"status": "ready"`) {
		t.Errorf("Text:\n%s", result.Content[0].Text)
	}
}

func TestNotificationGetsNoResponse(t *testing.T) {
	s := minimalServer(&stubLibrary{})

	out := runLines(t, s,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	if len(out) != 1 {
		t.Fatalf("%d Antworten, erwartet nur die auf initialize", len(out))
	}
	if resp := decodeResponse(t, out[0]); resp.ID != float64(1) {
		t.Errorf("id = %v", resp.ID)
	}
}

func TestParseErrorWithoutID(t *testing.T) {
	s := minimalServer(&stubLibrary{})

	out := runLines(t, s, `das ist kein json`)
	resp := decodeResponse(t, out[0])
	if resp.Error == nil || resp.Error.Code != -32700 {
		t.Fatalf("Fehler = %+v, erwartet -32700", resp.Error)
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(out[0]), &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["id"]; ok {
		t.Errorf("Parse-Fehler darf keine id tragen: %s", out[0])
	}
}

func TestUnknownMethod(t *testing.T) {
	s := minimalServer(&stubLibrary{})

	out := runLines(t, s, `{"jsonrpc":"2.0","id":9,"method":"resources/list"}`)
	resp := decodeResponse(t, out[0])
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Fatalf("Fehler = %+v", resp.Error)
	}
	if resp.Error.Message != "Method not found: resources/list" {
		t.Errorf("Message = %q", resp.Error.Message)
	}
}

func TestUnknownTool(t *testing.T) {
	s := minimalServer(&stubLibrary{})

	out := runLines(t, s,
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"gibt_es_nicht","arguments":{}}}`)
	resp := decodeResponse(t, out[0])
	if resp.Error == nil || resp.Error.Code != -32603 {
		t.Fatalf("Fehler = %+v", resp.Error)
	}
	if resp.Error.Message != "Internal error: Unknown tool: gibt_es_nicht" {
		t.Errorf("Message = %q", resp.Error.Message)
	}
}

func TestToolFailureBecomesInternalError(t *testing.T) {
	s := minimalServer(&stubLibrary{})

	out := runLines(t, s,
		`{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"zotero_get_metadata","arguments":{"item_key":"FEHLT"}}}`)
	resp := decodeResponse(t, out[0])
	if resp.Error == nil || resp.Error.Code != -32603 {
		t.Fatalf("Fehler = %+v", resp.Error)
	}
	if !strings.HasPrefix(resp.Error.Message, "Internal error: ") || !strings.Contains(resp.Error.Message, "FEHLT") {
		t.Errorf("Message = %q", resp.Error.Message)
	}
}

func TestTeamToolThroughChannel(t *testing.T) {
	s := fullServer(&stubLibrary{})

	out := runLines(t, s,
		`{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"team_publications","arguments":{}}}`)
	resp := decodeResponse(t, out[0])
	if resp.Error != nil {
		t.Fatalf("Fehler: %+v", resp.Error)
	}
	var result callResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("Result: %v", err)
	}
	var team teamResult
	if err := json.Unmarshal([]byte(result.Content[0].Text), &team); err != nil {
		t.Fatalf("Text: %v", err)
	}
	if team.Count != 1 || team.Publications[0].Title != "Teamarbeit" {
		t.Errorf("team = %+v", team)
	}
}

func TestEmptyLinesAreIgnored(t *testing.T) {
	s := minimalServer(&stubLibrary{})

	out := runLines(t, s, "", "   ", `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	if len(out) != 1 {
		t.Errorf("%d Antworten, erwartet 1", len(out))
	}
}
