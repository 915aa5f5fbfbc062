package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"refdesk/config"
	"refdesk/models"
	"refdesk/services"
	"refdesk/zotero"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func TestErrStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"ungültige Eingabe", fmt.Errorf("doi: %w", zotero.ErrInvalidInput), http.StatusBadRequest},
		{"nicht konfiguriert", fmt.Errorf("personal: %w", zotero.ErrNotConfigured), http.StatusBadRequest},
		{"nicht gefunden", fmt.Errorf("item X: %w", zotero.ErrNotFound), http.StatusNotFound},
		{"Konflikt", fmt.Errorf("version: %w", zotero.ErrConflict), http.StatusConflict},
		{"unbekannt", errors.New("kaputt"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := errStatus(tc.err); got != tc.want {
			t.Errorf("%s: erwartet %d, bekam %d", tc.name, tc.want, got)
		}
	}
}

func TestSourceStatusMapping(t *testing.T) {
	if got := sourceStatus(errors.New("timeout")); got != http.StatusBadGateway {
		t.Errorf("Upstream-Fehler: erwartet 502, bekam %d", got)
	}
	if got := sourceStatus(fmt.Errorf("x: %w", zotero.ErrInvalidInput)); got != http.StatusBadRequest {
		t.Errorf("Eingabefehler: erwartet 400, bekam %d", got)
	}
	if got := sourceStatus(fmt.Errorf("x: %w", zotero.ErrNotFound)); got != http.StatusNotFound {
		t.Errorf("nicht gefunden: erwartet 404, bekam %d", got)
	}
}

func TestIntQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		raw  string
		want int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=abc", 20},
		{"limit=-3", 20},
		{"limit=0", 20},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/?"+tc.raw, nil)
		if got := intQuery(c, "limit", 20); got != tc.want {
			t.Errorf("%q: erwartet %d, bekam %d", tc.raw, tc.want, got)
		}
	}
}

func TestTeamCache(t *testing.T) {
	tc := &teamCache{}
	papers, fetched := tc.get()
	if papers != nil || !fetched.IsZero() {
		t.Fatalf("leerer Cache sollte nil und Nullzeit liefern, bekam %v / %v", papers, fetched)
	}

	tc.set([]*models.Paper{{Title: "Eins"}})
	papers, fetched = tc.get()
	if len(papers) != 1 || papers[0].Title != "Eins" {
		t.Fatalf("erwartet einen Eintrag, bekam %v", papers)
	}
	if fetched.IsZero() || time.Since(fetched) > time.Minute {
		t.Errorf("Zeitstempel fehlt oder ist unplausibel: %v", fetched)
	}
}

func TestAPIKeyAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(apiKeyAuthMiddleware(&config.Config{APISecretKey: "geheim"}))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("ohne Schlüssel erwartet 401, bekam %d", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-API-KEY", "falsch")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("mit falschem Schlüssel erwartet 401, bekam %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-API-KEY", "geheim")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("mit Schlüssel erwartet 200, bekam %d", w.Code)
	}

	// Ohne konfigurierten Schlüssel ist die Prüfung abgeschaltet.
	open := gin.New()
	open.Use(apiKeyAuthMiddleware(&config.Config{}))
	open.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = httptest.NewRecorder()
	open.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusOK {
		t.Errorf("ohne Pflichtschlüssel erwartet 200, bekam %d", w.Code)
	}
}

func TestSystemRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{ZoteroDefaultLibrary: "group", ZoteroToolRPS: 10}
	dual := zotero.NewDualClient(cfg, zap.NewNop())
	search := services.NewSearchService(nil, zap.NewNop())

	router := gin.New()
	setupSystemRoutes(router, dual, search, &teamCache{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("/health: erwartet 200, bekam %d", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, "healthy") {
		t.Errorf("unerwarteter Health-Body: %s", body)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("/api/status: erwartet 200, bekam %d", w.Code)
	}
	var status struct {
		Libraries zotero.LibraryStatus `json:"libraries"`
		Sources   []string             `json:"sources"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("Status nicht lesbar: %v", err)
	}
	if status.Libraries.Default != "group" {
		t.Errorf("erwartet Default group, bekam %q", status.Libraries.Default)
	}
	if status.Libraries.Group.Configured || status.Libraries.Personal.Configured {
		t.Errorf("leere Config darf keine Bibliothek als konfiguriert melden")
	}
	if len(status.Sources) != 0 {
		t.Errorf("ohne Quellen erwartet leere Liste, bekam %v", status.Sources)
	}
}
