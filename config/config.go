package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
// Bibliotheks-Credentials sind optional: eine unkonfigurierte Bibliothek
// fällt erst beim Zugriff mit einem Konfigurationsfehler auf.
type Config struct {
	HTTPPort     string `envconfig:"HTTP_PORT" default:"8000"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Referenzmanager: Gruppen- und persönliche Bibliothek, plus die
	// alten Single-Library-Variablen als Fallback für den Gruppen-Slot.
	ZoteroAPIBase           string `envconfig:"ZOTERO_API_BASE" default:"https://api.zotero.org"`
	ZoteroGroupLibraryID    string `envconfig:"ZOTERO_GROUP_LIBRARY_ID"`
	ZoteroGroupAPIKey       string `envconfig:"ZOTERO_GROUP_API_KEY"`
	ZoteroPersonalLibraryID string `envconfig:"ZOTERO_PERSONAL_LIBRARY_ID"`
	ZoteroPersonalAPIKey    string `envconfig:"ZOTERO_PERSONAL_API_KEY"`
	ZoteroLegacyLibraryID   string `envconfig:"ZOTERO_LIBRARY_ID"`
	ZoteroLegacyAPIKey      string `envconfig:"ZOTERO_API_KEY"`
	ZoteroDefaultLibrary    string `envconfig:"ZOTERO_DEFAULT_LIBRARY" default:"group"`

	// Werkzeugkanal zum zotero-mcp Server
	ZoteroToolURL    string  `envconfig:"ZOTERO_TOOL_URL" default:"http://localhost:3030/mcp"`
	ZoteroToolAPIKey string  `envconfig:"ZOTERO_TOOL_API_KEY"`
	ZoteroToolRPS    float64 `envconfig:"ZOTERO_TOOL_RPS" default:"10"`

	PubMedBaseURL string `envconfig:"PUBMED_BASE_URL" default:"https://eutils.ncbi.nlm.nih.gov/entrez/eutils"`
	PubMedAPIKey  string `envconfig:"PUBMED_API_KEY"`
	PubMedEmail   string `envconfig:"PUBMED_EMAIL"`
	PubMedTool    string `envconfig:"PUBMED_TOOL" default:"refdesk"`

	ArxivBaseURL string `envconfig:"ARXIV_BASE_URL" default:"http://export.arxiv.org/api/query"`

	CrossrefBaseURL string `envconfig:"CROSSREF_BASE_URL" default:"https://api.crossref.org"`
	CrossrefMailto  string `envconfig:"CROSSREF_MAILTO"`

	// Charité Forschungsdatenbank
	ChariteBaseURL   string `envconfig:"CHARITE_BASE_URL" default:"https://forschungsdatenbank.charite.de/experts/expert"`
	TeamFile         string `envconfig:"TEAM_FILE"`
	TeamFetchDelayMs int    `envconfig:"TEAM_FETCH_DELAY_MS" default:"300"`

	// Zeitplan für den Team-Cache-Refresh
	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 5 * * *"`

	PDFDir string `envconfig:"PDF_DIR" default:"./pdfs"`

	EnabledSources string `envconfig:"ENABLED_SOURCES" default:"pubmed,arxiv,charite"`

	// S3 (Strato) für Snapshots und archivierte PDFs; optional für den
	// HTTP-Dienst, Pflicht nur für cmd/backup.
	StratoS3Key    string `envconfig:"STRATO_S3_KEY"`
	StratoS3Secret string `envconfig:"STRATO_S3_SECRET"`
	StratoS3URL    string `envconfig:"STRATO_S3_URL"`
	StratoS3Region string `envconfig:"STRATO_S3_REGION"`
	StratoS3Bucket string `envconfig:"STRATO_S3_BUCKET"`
}

// Sources gibt die aktivierten Quellen als Liste zurück.
func (c *Config) Sources() []string {
	var out []string
	for _, s := range strings.Split(c.EnabledSources, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// TeamFetchDelay gibt die Wartezeit zwischen zwei Roster-Abrufen zurück.
func (c *Config) TeamFetchDelay() time.Duration {
	return time.Duration(c.TeamFetchDelayMs) * time.Millisecond
}

// S3Configured meldet, ob alle S3-Parameter gesetzt sind.
func (c *Config) S3Configured() bool {
	return c.StratoS3Key != "" && c.StratoS3Secret != "" && c.StratoS3URL != "" &&
		c.StratoS3Region != "" && c.StratoS3Bucket != ""
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
