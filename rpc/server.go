// Package rpc bedient den zeilenbasierten JSON-RPC-2.0-Kommandokanal
// über stdio: initialize-Handshake, Werkzeugliste und Werkzeugaufrufe.
// Antworten gehen nach stdout, Logs ausschließlich nach stderr.
package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"refdesk/services"
	"refdesk/zotero"
)

const (
	protocolVersion = "2024-11-05"
	serverName      = "refdesk"
	serverVersion   = "0.1.0"

	// Zeilen über dieser Größe bricht der Scanner ab.
	maxLineBytes = 10 << 20
)

// Library ist die Bibliothekssicht des Kommandokanals: die Leseseite
// der Workflow-Schicht plus Volltextzugriff.
type Library interface {
	services.Library
	Fulltext(ctx context.Context, itemKey string) string
}

var _ Library = (*zotero.Client)(nil)

// Deps bündelt die Abhängigkeiten des Servers. Team und Resolver sind
// optional; ohne sie fehlen die zugehörigen Werkzeuge in der Liste.
type Deps struct {
	Library   Library
	Workflows *services.Workflows
	Importer  *services.Importer
	Search    *services.SearchService
	Resolver  *zotero.Resolver
	Team      TeamSource
	Libraries zotero.LibraryStatus
}

// Server beantwortet JSON-RPC-Anfragen, eine pro Zeile.
type Server struct {
	lib       Library
	flows     *services.Workflows
	imp       *services.Importer
	search    *services.SearchService
	resolver  *zotero.Resolver
	team      TeamSource
	libraries zotero.LibraryStatus
	log       *zap.Logger

	tools  []Tool
	byName map[string]Tool
}

// NewServer baut den Server und registriert die Werkzeuge.
func NewServer(deps Deps, log *zap.Logger) *Server {
	s := &Server{
		lib:       deps.Library,
		flows:     deps.Workflows,
		imp:       deps.Importer,
		search:    deps.Search,
		resolver:  deps.Resolver,
		team:      deps.Team,
		libraries: deps.Libraries,
		log:       log,
	}
	s.tools = s.buildTools()
	s.byName = make(map[string]Tool, len(s.tools))
	for _, t := range s.tools {
		s.byName[t.Name] = t
	}
	return s
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id,omitempty"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

type toolsListResult struct {
	Tools []toolInfo `json:"tools"`
}

type toolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callResult struct {
	Content []textContent `json:"content"`
}

// Run liest Anfragen zeilenweise von r und schreibt Antworten nach w,
// eine pro Zeile. Kehrt bei EOF zurück; der Kontext wird zwischen den
// Zeilen geprüft, ein blockierendes Lesen unterbricht er nicht.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	s.log.Info("Kommandokanal gestartet", zap.Int("werkzeuge", len(s.tools)))

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.Error("Zeile ist kein JSON", zap.Error(err))
			s.write(w, response{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "Parse error"}})
			continue
		}
		if resp, ok := s.process(ctx, &req); ok {
			s.write(w, resp)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stdin lesen: %w", err)
	}
	s.log.Info("EOF, Kommandokanal beendet")
	return nil
}

// process beantwortet eine Anfrage. Anfragen ohne id sind Notifications
// und bekommen keine Antwort (ok false).
func (s *Server) process(ctx context.Context, req *request) (response, bool) {
	if req.ID == nil {
		if req.Method == "notifications/initialized" {
			s.log.Debug("Client hat den Handshake abgeschlossen")
		}
		return response{}, false
	}

	resp := response{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "initialize":
		resp.Result = initializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      serverInfo{Name: serverName, Version: serverVersion},
		}
	case "tools/list":
		infos := make([]toolInfo, 0, len(s.tools))
		for _, t := range s.tools {
			infos = append(infos, toolInfo{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
		}
		resp.Result = toolsListResult{Tools: infos}
	case "tools/call":
		var params callParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				resp.Error = &rpcError{Code: -32602, Message: "Invalid params: " + err.Error()}
				return resp, true
			}
		}
		return s.call(ctx, req.ID, params), true
	default:
		resp.Error = &rpcError{Code: -32601, Message: "Method not found: " + req.Method}
	}
	return resp, true
}

// call führt einen Werkzeugaufruf aus. Jeder Fehler des Werkzeugs wird
// als -32603 gemeldet, der Kanal selbst bleibt intakt.
func (s *Server) call(ctx context.Context, id any, params callParams) response {
	resp := response{JSONRPC: "2.0", ID: id}

	tool, ok := s.byName[params.Name]
	if !ok {
		resp.Error = &rpcError{Code: -32603, Message: fmt.Sprintf("Internal error: Unknown tool: %s", params.Name)}
		return resp
	}
	args := params.Arguments
	if args == nil {
		args = map[string]any{}
	}

	data, err := tool.Handler(ctx, args)
	if err != nil {
		s.log.Error("Werkzeugaufruf fehlgeschlagen", zap.String("tool", params.Name), zap.Error(err))
		resp.Error = &rpcError{Code: -32603, Message: "Internal error: " + err.Error()}
		return resp
	}
	text, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		s.log.Error("Werkzeugergebnis nicht serialisierbar", zap.String("tool", params.Name), zap.Error(err))
		resp.Error = &rpcError{Code: -32603, Message: "Internal error: " + err.Error()}
		return resp
	}
	resp.Result = callResult{Content: []textContent{{Type: "text", Text: string(text)}}}
	return resp
}

func (s *Server) write(w io.Writer, resp response) {
	// Eine leere String-id behandeln wie keine.
	if resp.ID == "" {
		resp.ID = nil
	}
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("Antwort nicht serialisierbar", zap.Error(err))
		return
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		s.log.Error("Antwort nicht geschrieben", zap.Error(err))
	}
}
