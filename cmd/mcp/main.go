package main

import (
	"context"
	"log"
	"os"

	"go.uber.org/zap"

	"refdesk/config"
	"refdesk/models"
	"refdesk/providers"
	"refdesk/providers/arxiv"
	"refdesk/providers/charite"
	"refdesk/providers/pubmed"
	"refdesk/rpc"
	"refdesk/services"
	"refdesk/zotero"
)

// Stdio-Einstieg für den Kommandokanal. stdout gehört dem Protokoll,
// zap.NewProduction loggt nach stderr.
func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	dual := zotero.NewDualClient(cfg, logging)
	lib, err := dual.Client(dual.Default())
	if err != nil {
		logging.Fatal("Standardbibliothek nicht nutzbar", zap.Error(err))
	}

	team := loadTeam(cfg, logging)
	provs := buildProviders(cfg, team, logging)

	var search *services.SearchService
	var importer *services.Importer
	if len(provs) > 0 {
		search = services.NewSearchService(provs, logging)
		importer = services.NewImporter(search, lib, logging)
	} else {
		logging.Warn("Keine Quellen aktiviert, nur Bibliothekswerkzeuge verfügbar")
	}
	resolver := zotero.NewResolver(cfg.CrossrefBaseURL, cfg.CrossrefMailto, logging)

	deps := rpc.Deps{
		Library:   lib,
		Workflows: services.NewWorkflows(lib, resolver, logging),
		Importer:  importer,
		Search:    search,
		Resolver:  resolver,
		Libraries: dual.Status(),
	}
	for _, p := range provs {
		if c, ok := p.(*charite.Client); ok {
			deps.Team = c
		}
	}

	srv := rpc.NewServer(deps, logging)
	if err := srv.Run(context.Background(), os.Stdin, os.Stdout); err != nil {
		logging.Fatal("Kommandokanal abgebrochen", zap.Error(err))
	}
}

func loadTeam(cfg *config.Config, log *zap.Logger) []models.TeamMember {
	if cfg.TeamFile == "" {
		return charite.DefaultTeam()
	}
	team, err := charite.LoadRoster(cfg.TeamFile)
	if err != nil {
		log.Warn("Roster-Datei nicht lesbar, nutze eingebautes Roster",
			zap.String("datei", cfg.TeamFile), zap.Error(err))
		return charite.DefaultTeam()
	}
	log.Info("Roster geladen", zap.String("datei", cfg.TeamFile), zap.Int("mitglieder", len(team)))
	return team
}

func buildProviders(cfg *config.Config, team []models.TeamMember, log *zap.Logger) []providers.Provider {
	var provs []providers.Provider
	for _, name := range cfg.Sources() {
		switch name {
		case "pubmed":
			provs = append(provs, pubmed.NewFetcher(cfg, log))
		case "arxiv":
			provs = append(provs, arxiv.NewFetcher(cfg, log))
		case "charite":
			provs = append(provs, charite.NewClient(cfg, team, log))
		default:
			log.Warn("Unbekannte Quelle in ENABLED_SOURCES", zap.String("quelle", name))
		}
	}
	return provs
}
