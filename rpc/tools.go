package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"refdesk/models"
	"refdesk/zotero"
)

// TeamSource liefert die Publikationsliste des institutionellen Teams.
// Eine leere Mitgliederliste heißt das konfigurierte Roster.
type TeamSource interface {
	FetchTeam(ctx context.Context, members []models.TeamMember) []*models.Paper
}

// Handler führt ein Werkzeug mit den entschlüsselten Argumenten aus.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Tool ist ein Eintrag der Werkzeugliste: Name, Beschreibung und
// JSON-Schema gehen an den Client, der Handler bleibt serverseitig.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
}

// JSON-Argumente kommen als map[string]any an; Zahlen sind float64.

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]any, key string, def int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return def
}

func boolArg(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

type sourceSearchResult struct {
	Source string          `json:"source"`
	Query  string          `json:"query"`
	Count  int             `json:"count"`
	Papers []*models.Paper `json:"papers"`
}

type teamResult struct {
	Count        int             `json:"count"`
	Publications []*models.Paper `json:"publications"`
}

type statusResult struct {
	Libraries zotero.LibraryStatus `json:"libraries"`
	Sources   []string             `json:"sources"`
}

// buildTools registriert die Werkzeuge: zuerst der direkte
// Bibliothekszugriff, dann die Workflows, zuletzt die Quellen- und
// Brückenwerkzeuge soweit ihre Abhängigkeiten angebunden sind.
func (s *Server) buildTools() []Tool {
	tools := []Tool{
		{
			Name:        "zotero_search",
			Description: "Search for papers in the Zotero library by keyword",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Search query (e.g., 'FHIR terminology')"},
					"limit": {"type": "integer", "description": "Maximum results (default: 50)", "default": 50}
				},
				"required": ["query"]
			}`),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.lib.SearchItems(ctx, stringArg(args, "query"), intArg(args, "limit", 50)), nil
			},
		},
		{
			Name:        "zotero_get_metadata",
			Description: "Get detailed metadata for a specific paper",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"item_key": {"type": "string", "description": "Zotero item key"}
				},
				"required": ["item_key"]
			}`),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.lib.GetItem(ctx, stringArg(args, "item_key"))
			},
		},
		{
			Name:        "zotero_list_collections",
			Description: "List all collections in the Zotero library",
			InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
			Handler: func(ctx context.Context, _ map[string]any) (any, error) {
				return s.lib.ListCollections(ctx), nil
			},
		},
		{
			Name:        "zotero_get_collection_items",
			Description: "Get all items in a specific collection",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"collection_key": {"type": "string", "description": "Collection key"}
				},
				"required": ["collection_key"]
			}`),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.lib.CollectionItems(ctx, stringArg(args, "collection_key")), nil
			},
		},
		{
			Name:        "zotero_get_fulltext",
			Description: "Get full text content of a paper",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"item_key": {"type": "string", "description": "Zotero item key"}
				},
				"required": ["item_key"]
			}`),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.lib.Fulltext(ctx, stringArg(args, "item_key")), nil
			},
		},
		{
			Name:        "zotero_semantic_search",
			Description: "AI-powered semantic search for similar papers",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Natural language search query"},
					"limit": {"type": "integer", "description": "Maximum results (default: 10)", "default": 10}
				},
				"required": ["query"]
			}`),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.lib.SemanticSearch(ctx, stringArg(args, "query"), intArg(args, "limit", 10)), nil
			},
		},
		{
			Name:        "build_reading_list",
			Description: "Build a curated reading list for a research topic",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"topic": {"type": "string", "description": "Research topic (e.g., 'FHIR interoperability')"},
					"max_papers": {"type": "integer", "description": "Maximum papers to include (default: 20)", "default": 20},
					"min_year": {"type": "integer", "description": "Only include papers from this year or later"}
				},
				"required": ["topic"]
			}`),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.flows.BuildReadingList(ctx,
					stringArg(args, "topic"),
					intArg(args, "max_papers", 20),
					intArg(args, "min_year", 0)), nil
			},
		},
		{
			Name:        "smart_add_paper",
			Description: "Add paper from DOI with duplicate checking and collection suggestion",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"doi": {"type": "string", "description": "Paper DOI (e.g., '10.1234/example')"},
					"check_duplicates": {"type": "boolean", "description": "Check if paper already exists (default: true)", "default": true}
				},
				"required": ["doi"]
			}`),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.flows.SmartAddPaper(ctx,
					stringArg(args, "doi"),
					boolArg(args, "check_duplicates", true))
			},
		},
		{
			Name:        "export_bibliography",
			Description: "Export papers as BibTeX bibliography",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"collection_name": {"type": "string", "description": "Export from this collection"},
					"tag": {"type": "string", "description": "Export papers with this tag"},
					"format": {"type": "string", "description": "Output format (default: bibtex)", "default": "bibtex"}
				}
			}`),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.flows.ExportBibliography(ctx,
					stringArg(args, "collection_name"),
					stringArg(args, "tag"),
					stringArg(args, "format"))
			},
		},
		{
			Name:        "find_related_papers",
			Description: "Find papers related to a given paper using semantic search",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"item_key": {"type": "string", "description": "Zotero key of the source paper"},
					"limit": {"type": "integer", "description": "Maximum related papers (default: 10)", "default": 10}
				},
				"required": ["item_key"]
			}`),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.flows.FindRelatedPapers(ctx,
					stringArg(args, "item_key"),
					intArg(args, "limit", 10))
			},
		},
	}

	if s.search != nil {
		tools = append(tools,
			Tool{
				Name:        "pubmed_search",
				Description: "Search PubMed for biomedical literature",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"query": {"type": "string", "description": "Search query"},
						"max_results": {"type": "integer", "description": "Maximum results (default: 20)", "default": 20}
					},
					"required": ["query"]
				}`),
				Handler: s.sourceSearch("pubmed"),
			},
			Tool{
				Name:        "arxiv_search",
				Description: "Search arXiv preprints",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"query": {"type": "string", "description": "Search query"},
						"max_results": {"type": "integer", "description": "Maximum results (default: 20)", "default": 20}
					},
					"required": ["query"]
				}`),
				Handler: s.sourceSearch("arxiv"),
			})
	}
	if s.imp != nil {
		tools = append(tools, Tool{
			Name:        "import_to_collection",
			Description: "Search an external source and import the results into a collection",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"source": {"type": "string", "description": "Source name (pubmed, arxiv, charite)"},
					"query": {"type": "string", "description": "Search query"},
					"collection_name": {"type": "string", "description": "Target collection"},
					"create_collection": {"type": "boolean", "description": "Create the collection if missing (default: true)", "default": true},
					"max_results": {"type": "integer", "description": "Maximum results to import (default: 50)", "default": 50}
				},
				"required": ["source", "query", "collection_name"]
			}`),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.imp.ImportToCollection(ctx,
					stringArg(args, "source"),
					stringArg(args, "query"),
					stringArg(args, "collection_name"),
					boolArg(args, "create_collection", true),
					models.SearchOptions{MaxResults: intArg(args, "max_results", 50)})
			},
		})
	}
	if s.resolver != nil {
		tools = append(tools, Tool{
			Name:        "resolve_doi",
			Description: "Resolve a DOI to bibliographic metadata via Crossref",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"doi": {"type": "string", "description": "DOI to resolve"}
				},
				"required": ["doi"]
			}`),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return s.resolver.ResolveDOI(ctx, stringArg(args, "doi"))
			},
		})
	}
	if s.team != nil {
		tools = append(tools, Tool{
			Name:        "team_publications",
			Description: "Fetch the deduplicated publication list of the research team",
			InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
			Handler: func(ctx context.Context, _ map[string]any) (any, error) {
				pubs := s.team.FetchTeam(ctx, nil)
				return teamResult{Count: len(pubs), Publications: pubs}, nil
			},
		})
	}
	tools = append(tools, Tool{
		Name:        "library_status",
		Description: "Show configured libraries and available search sources",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
		Handler: func(_ context.Context, _ map[string]any) (any, error) {
			var sources []string
			if s.search != nil {
				sources = s.search.Sources()
			}
			return statusResult{Libraries: s.libraries, Sources: sources}, nil
		},
	})
	return tools
}

// sourceSearch baut den Handler für die direkte Suche in einer Quelle.
func (s *Server) sourceSearch(source string) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		prov, err := s.search.Provider(source)
		if err != nil {
			return nil, err
		}
		query := stringArg(args, "query")
		papers, err := prov.Search(ctx, query, models.SearchOptions{MaxResults: intArg(args, "max_results", 20)})
		if err != nil {
			return nil, fmt.Errorf("suche in %s: %w", source, err)
		}
		return sourceSearchResult{Source: source, Query: query, Count: len(papers), Papers: papers}, nil
	}
}
