// Sichert die Referenzbibliothek als gepackten JSON-Snapshot in den
// S3-Bucket und rotiert alte Stände. Gedacht für einen externen Cron.
package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"refdesk/config"
	"refdesk/storage"
	"refdesk/zotero"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// Seitengröße der Web-API; mehr als 100 liefert sie pro Antwort nicht.
const pageSize = 100

type backupOptions struct {
	KeepBackups int    `envconfig:"KEEP_BACKUPS" default:"4"`
	Library     string `envconfig:"BACKUP_LIBRARY"`
}

// snapshot ist das vollständige Abbild einer Bibliothek zu einem
// Zeitpunkt. Sammlungen und Einträge bleiben rohes API-JSON, damit der
// Snapshot auch Felder überlebt, die das eigene Modell nicht kennt.
type snapshot struct {
	Library     string            `json:"library"`
	LibraryID   string            `json:"library_id"`
	CreatedAt   time.Time         `json:"created_at"`
	Collections []json.RawMessage `json:"collections"`
	Items       []json.RawMessage `json:"items"`
}

func main() {
	log.Println("Starte Bibliotheks-Backup...")

	var opts backupOptions
	if err := envconfig.Process("", &opts); err != nil {
		log.Fatalf("Fehler beim Laden der Optionen: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Fehler beim Laden der Konfiguration: %v", err)
	}
	if !cfg.S3Configured() {
		log.Fatalf("Kein S3-Ziel konfiguriert (STRATO_S3_*)")
	}

	// Die Bibliotheksschicht loggt über zap; für den Cron-Lauf reicht
	// das Standard-Log.
	dual := zotero.NewDualClient(cfg, zap.NewNop())
	library := opts.Library
	if library == "" {
		library = dual.Default()
	}
	client, err := dual.Client(library)
	if err != nil {
		log.Fatalf("Bibliothek %q nicht nutzbar: %v", library, err)
	}

	store, err := storage.NewClient(cfg)
	if err != nil {
		log.Fatalf("Fehler beim Erstellen des S3-Clients: %v", err)
	}

	ctx := context.Background()

	snap, err := buildSnapshot(ctx, client, library)
	if err != nil {
		log.Fatalf("Fehler beim Auslesen der Bibliothek: %v", err)
	}
	log.Printf("Bibliothek %s gelesen: %d Sammlungen, %d Einträge",
		library, len(snap.Collections), len(snap.Items))

	data, err := compress(snap)
	if err != nil {
		log.Fatalf("Fehler beim Packen des Snapshots: %v", err)
	}

	key := fmt.Sprintf("zotero/backup-%s.json.gz",
		snap.CreatedAt.UTC().Format("2006-01-02T15-04-05Z"))
	if _, err := store.Upload(ctx, key, bytes.NewReader(data), "application/gzip"); err != nil {
		log.Fatalf("Fehler beim Hochladen nach S3: %v", err)
	}
	log.Printf("Backup erfolgreich als %s hochgeladen (%d Bytes)", key, len(data))

	if err := rotateBackups(ctx, store, opts.KeepBackups); err != nil {
		log.Fatalf("Fehler bei der Rotation alter Backups: %v", err)
	}

	log.Println("Backup-Prozess erfolgreich abgeschlossen.")
}

func buildSnapshot(ctx context.Context, client *zotero.Client, library string) (*snapshot, error) {
	snap := &snapshot{
		Library:   library,
		LibraryID: client.LibraryID(),
		CreatedAt: time.Now(),
	}

	for start := 0; ; start += pageSize {
		page, total, err := client.CollectionsPage(ctx, start, pageSize)
		if err != nil {
			return nil, fmt.Errorf("sammlungen ab %d: %w", start, err)
		}
		snap.Collections = append(snap.Collections, page...)
		if len(page) == 0 || start+len(page) >= total {
			break
		}
	}

	for start := 0; ; start += pageSize {
		page, total, err := client.ItemsPage(ctx, start, pageSize)
		if err != nil {
			return nil, fmt.Errorf("einträge ab %d: %w", start, err)
		}
		snap.Items = append(snap.Items, page...)
		if len(page) == 0 || start+len(page) >= total {
			break
		}
	}

	return snap, nil
}

func compress(snap *snapshot) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(snap); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func rotateBackups(ctx context.Context, store *storage.Client, keep int) error {
	objects, err := store.List(ctx, "zotero/backup-")
	if err != nil {
		return err
	}
	if len(objects) <= keep {
		log.Printf("Weniger als %d Backups vorhanden, keine Rotation nötig.", keep)
		return nil
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})

	for _, obj := range objects[keep:] {
		log.Printf("Lösche altes Backup: %s", obj.Key)
		if err := store.Delete(ctx, obj.Key); err != nil {
			log.Printf("Fehler beim Löschen von %s: %v", obj.Key, err)
		}
	}
	return nil
}
