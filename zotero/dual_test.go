package zotero

import (
	"testing"

	"go.uber.org/zap"

	"refdesk/config"
)

func TestDualClientLegacyFallback(t *testing.T) {
	cfg := &config.Config{
		ZoteroLegacyLibraryID: "777",
		ZoteroLegacyAPIKey:    "legacykey",
		ZoteroDefaultLibrary:  "group",
		ZoteroToolURL:         "http://localhost:3030/mcp",
	}
	dual := NewDualClient(cfg, zap.NewNop())

	client, err := dual.Client("group")
	if err != nil {
		t.Fatalf("Client(group): %v", err)
	}
	if client.LibraryID() != "777" {
		t.Errorf("LibraryID = %q, erwartet legacy 777", client.LibraryID())
	}
	if !dual.Status().Group.Configured {
		t.Error("Gruppenbibliothek sollte als konfiguriert gelten")
	}
}

func TestDualClientPrefersNewVariables(t *testing.T) {
	cfg := &config.Config{
		ZoteroGroupLibraryID:  "111",
		ZoteroGroupAPIKey:     "groupkey",
		ZoteroLegacyLibraryID: "777",
		ZoteroLegacyAPIKey:    "legacykey",
		ZoteroDefaultLibrary:  "group",
	}
	dual := NewDualClient(cfg, zap.NewNop())

	client, err := dual.Client("")
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if client.LibraryID() != "111" {
		t.Errorf("LibraryID = %q, erwartet 111", client.LibraryID())
	}
}

func TestDualClientUnconfiguredPersonal(t *testing.T) {
	cfg := &config.Config{
		ZoteroGroupLibraryID: "111",
		ZoteroGroupAPIKey:    "groupkey",
		ZoteroDefaultLibrary: "group",
	}
	dual := NewDualClient(cfg, zap.NewNop())

	if _, err := dual.Client("personal"); !IsNotConfigured(err) {
		t.Errorf("erwartet Konfigurationsfehler, bekam %v", err)
	}
	if dual.Status().Personal.Configured {
		t.Error("persönliche Bibliothek darf nicht als konfiguriert gelten")
	}
}

func TestDualClientUnknownLibrary(t *testing.T) {
	dual := NewDualClient(&config.Config{ZoteroDefaultLibrary: "group"}, zap.NewNop())
	if _, err := dual.Client("shared"); !IsInvalidInput(err) {
		t.Errorf("erwartet Eingabefehler, bekam %v", err)
	}
}

func TestDualClientSetDefault(t *testing.T) {
	cfg := &config.Config{
		ZoteroGroupLibraryID:    "111",
		ZoteroGroupAPIKey:       "k1",
		ZoteroPersonalLibraryID: "222",
		ZoteroPersonalAPIKey:    "k2",
		ZoteroDefaultLibrary:    "group",
	}
	dual := NewDualClient(cfg, zap.NewNop())

	if err := dual.SetDefault("personal"); err != nil {
		t.Fatalf("SetDefault: %v", err)
	}
	if dual.Default() != "personal" {
		t.Errorf("Default = %q", dual.Default())
	}
	client, err := dual.Client("")
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if client.LibraryID() != "222" {
		t.Errorf("Voreinstellung greift nicht: %q", client.LibraryID())
	}

	if err := dual.SetDefault("nope"); !IsInvalidInput(err) {
		t.Errorf("erwartet Eingabefehler, bekam %v", err)
	}
	if dual.Default() != "personal" {
		t.Error("fehlgeschlagenes SetDefault darf die Voreinstellung nicht ändern")
	}
}

func TestDualClientBadDefaultFallsBack(t *testing.T) {
	dual := NewDualClient(&config.Config{ZoteroDefaultLibrary: "whatever"}, zap.NewNop())
	if dual.Default() != "group" {
		t.Errorf("Default = %q, erwartet group", dual.Default())
	}
}

func TestDualClientReusesClients(t *testing.T) {
	cfg := &config.Config{
		ZoteroGroupLibraryID: "111",
		ZoteroGroupAPIKey:    "k1",
		ZoteroDefaultLibrary: "group",
	}
	dual := NewDualClient(cfg, zap.NewNop())

	first, err := dual.Client("group")
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	second, err := dual.Client("group")
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if first != second {
		t.Error("Client wird nicht wiederverwendet")
	}
}
