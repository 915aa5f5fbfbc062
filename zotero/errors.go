// Package zotero spricht den Referenzmanager über zwei Kanäle an: Lesezugriffe
// laufen als Tool-Calls über einen zotero-mcp Server, Schreibzugriffe direkt
// gegen die versionierte Web-API.
package zotero

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured: für die angeforderte Bibliothek fehlen ID oder API-Key.
	ErrNotConfigured = errors.New("library not configured")
	// ErrNotFound: die Ressource existiert remote nicht.
	ErrNotFound = errors.New("not found")
	// ErrAuth: Credentials fehlen oder sind ungültig (401/403).
	ErrAuth = errors.New("authentication failed")
	// ErrRateLimited: die Gegenseite drosselt (429). Wird nicht automatisch
	// wiederholt.
	ErrRateLimited = errors.New("rate limited")
	// ErrConflict: Versionskonflikt beim Schreiben (412). Wird nie mit
	// frischer Version automatisch wiederholt.
	ErrConflict = errors.New("version conflict")
	// ErrInvalidInput: Validierungsfehler vor jedem Netzwerkaufruf.
	ErrInvalidInput = errors.New("invalid input")
)

// APIError trägt Statuscode und Kontext eines fehlgeschlagenen Remote-Aufrufs.
type APIError struct {
	StatusCode int
	Message    string
	Key        string // betroffener Item-/Collection-Key, falls bekannt
}

func (e *APIError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("api error %d for %s: %s", e.StatusCode, e.Key, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound meldet, ob err eine Nicht-gefunden-Bedingung ist.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

// IsConflict meldet, ob err ein Versionskonflikt ist.
func IsConflict(err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 412
}

// IsNotConfigured meldet, ob err ein Konfigurationsfehler ist.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}

// IsInvalidInput meldet, ob err ein Validierungsfehler ist.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
