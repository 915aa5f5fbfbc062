package zotero

import (
	"fmt"

	"go.uber.org/zap"

	"refdesk/config"
)

// LibrarySlot beschreibt den Konfigurationsstand einer Bibliothek.
type LibrarySlot struct {
	Configured bool   `json:"configured"`
	LibraryID  string `json:"library_id"`
}

// LibraryStatus fasst beide Bibliotheken und die Voreinstellung zusammen.
type LibraryStatus struct {
	Group    LibrarySlot `json:"group"`
	Personal LibrarySlot `json:"personal"`
	Default  string      `json:"default"`
}

// DualClient verwaltet die Gruppenbibliothek des Teams und eine optionale
// persönliche Bibliothek. Clients entstehen erst beim ersten Zugriff;
// eine unkonfigurierte Bibliothek fällt dann mit ErrNotConfigured auf.
//
// Nicht nebenläufig sicher. Aufbau und SetDefault gehören in den
// Setup-Pfad des Prozesses, danach wird nur noch gelesen.
type DualClient struct {
	group      LibraryConfig
	personal   LibraryConfig
	defaultLib string

	tools          *ToolClient
	groupClient    *Client
	personalClient *Client
	log            *zap.Logger
}

// NewDualClient baut die Bibliotheksverwaltung aus der Konfiguration.
// Die alten Single-Library-Variablen ZOTERO_LIBRARY_ID und ZOTERO_API_KEY
// füllen weiterhin den Gruppen-Slot, wenn die neuen fehlen.
func NewDualClient(cfg *config.Config, log *zap.Logger) *DualClient {
	groupID := cfg.ZoteroGroupLibraryID
	if groupID == "" {
		groupID = cfg.ZoteroLegacyLibraryID
	}
	groupKey := cfg.ZoteroGroupAPIKey
	if groupKey == "" {
		groupKey = cfg.ZoteroLegacyAPIKey
	}

	d := &DualClient{
		group: LibraryConfig{
			LibraryID:   groupID,
			LibraryType: "group",
			APIKey:      groupKey,
			APIBase:     cfg.ZoteroAPIBase,
		},
		personal: LibraryConfig{
			LibraryID:   cfg.ZoteroPersonalLibraryID,
			LibraryType: "user",
			APIKey:      cfg.ZoteroPersonalAPIKey,
			APIBase:     cfg.ZoteroAPIBase,
		},
		defaultLib: cfg.ZoteroDefaultLibrary,
		tools:      NewToolClient(cfg.ZoteroToolURL, cfg.ZoteroToolAPIKey, cfg.ZoteroToolRPS, log),
		log:        log,
	}
	if d.defaultLib != "group" && d.defaultLib != "personal" {
		log.Warn("Unbekannte Standardbibliothek, nutze group", zap.String("wert", d.defaultLib))
		d.defaultLib = "group"
	}
	return d
}

// Client gibt den Client der angeforderten Bibliothek zurück. Ein leerer
// Name wählt die Voreinstellung.
func (d *DualClient) Client(library string) (*Client, error) {
	if library == "" {
		library = d.defaultLib
	}
	switch library {
	case "group":
		if d.group.LibraryID == "" || d.group.APIKey == "" {
			return nil, fmt.Errorf("%w: Gruppenbibliothek (ZOTERO_GROUP_LIBRARY_ID, ZOTERO_GROUP_API_KEY)", ErrNotConfigured)
		}
		if d.groupClient == nil {
			d.groupClient = NewClient(d.group, d.tools, d.log)
		}
		return d.groupClient, nil
	case "personal":
		if d.personal.LibraryID == "" || d.personal.APIKey == "" {
			return nil, fmt.Errorf("%w: persönliche Bibliothek (ZOTERO_PERSONAL_LIBRARY_ID, ZOTERO_PERSONAL_API_KEY)", ErrNotConfigured)
		}
		if d.personalClient == nil {
			d.personalClient = NewClient(d.personal, d.tools, d.log)
		}
		return d.personalClient, nil
	default:
		return nil, fmt.Errorf("%w: unbekannter Bibliothekstyp %q", ErrInvalidInput, library)
	}
}

// Default gibt den Namen der voreingestellten Bibliothek zurück.
func (d *DualClient) Default() string { return d.defaultLib }

// SetDefault ändert die Voreinstellung.
func (d *DualClient) SetDefault(library string) error {
	if library != "group" && library != "personal" {
		return fmt.Errorf("%w: unbekannter Bibliothekstyp %q", ErrInvalidInput, library)
	}
	d.defaultLib = library
	return nil
}

// Status meldet den Konfigurationsstand beider Bibliotheken, ohne
// Schlüssel preiszugeben.
func (d *DualClient) Status() LibraryStatus {
	return LibraryStatus{
		Group: LibrarySlot{
			Configured: d.group.LibraryID != "" && d.group.APIKey != "",
			LibraryID:  d.group.LibraryID,
		},
		Personal: LibrarySlot{
			Configured: d.personal.LibraryID != "" && d.personal.APIKey != "",
			LibraryID:  d.personal.LibraryID,
		},
		Default: d.defaultLib,
	}
}
