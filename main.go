package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"refdesk/config"
	"refdesk/models"
	"refdesk/providers"
	"refdesk/providers/arxiv"
	"refdesk/providers/charite"
	"refdesk/providers/pubmed"
	"refdesk/services"
	"refdesk/storage"
	"refdesk/zotero"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var (
	importedItemsCounter prometheus.Counter
	teamRefreshCounter   prometheus.Counter
	teamCacheGauge       prometheus.Gauge
)

func init() {
	importedItemsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "imported_items_total",
			Help: "Total number of items filed into the reference library via imports.",
		},
	)
	teamRefreshCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "team_refresh_runs_total",
			Help: "Total number of team publication refresh runs.",
		},
	)
	teamCacheGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "team_cache_publications",
			Help: "Number of publications currently held in the team cache.",
		},
	)
	prometheus.MustRegister(importedItemsCounter, teamRefreshCounter, teamCacheGauge)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

// teamCache hält die zuletzt abgerufenen Teampublikationen im Speicher.
// Der Abruf über alle Mitglieder dauert durch die Höflichkeitspause des
// Instituts-Clients mehrere Sekunden und soll nicht pro Request anfallen.
type teamCache struct {
	mu      sync.RWMutex
	papers  []*models.Paper
	fetched time.Time
}

func (tc *teamCache) get() ([]*models.Paper, time.Time) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.papers, tc.fetched
}

func (tc *teamCache) set(papers []*models.Paper) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.papers = papers
	tc.fetched = time.Now()
}

// intQuery liest einen optionalen numerischen Query-Parameter.
func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// errStatus übersetzt Fehler der Bibliotheksschicht in HTTP-Statuscodes.
func errStatus(err error) int {
	switch {
	case zotero.IsInvalidInput(err), zotero.IsNotConfigured(err):
		return http.StatusBadRequest
	case zotero.IsNotFound(err):
		return http.StatusNotFound
	case zotero.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// sourceStatus übersetzt Fehler der Quellen-Adapter. Deren Fehlermodell
// ist flach, daher gilt alles jenseits der Eingabevalidierung als
// Upstream-Ausfall.
func sourceStatus(err error) int {
	switch {
	case zotero.IsInvalidInput(err):
		return http.StatusBadRequest
	case zotero.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

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

	// Setup Library Clients
	// Der Dual-Router ist nicht für nebenläufige Nutzung synchronisiert,
	// deshalb werden alle Clients einmalig im Setup aufgelöst.
	dual := zotero.NewDualClient(cfg, logging)
	lib, err := dual.Client(dual.Default())
	if err != nil {
		logging.Fatal("Default library not usable", zap.Error(err))
	}
	logging.Info("Reference library connected", zap.String("library", dual.Default()))

	// Setup Sources
	roster := loadTeam(cfg, logging)
	var (
		enabled []providers.Provider
		pm      *pubmed.Fetcher
		ax      *arxiv.Fetcher
		ch      *charite.Client
	)
	for _, name := range cfg.Sources() {
		switch name {
		case "pubmed":
			pm = pubmed.NewFetcher(cfg, logging)
			enabled = append(enabled, pm)
		case "arxiv":
			ax = arxiv.NewFetcher(cfg, logging)
			enabled = append(enabled, ax)
		case "charite":
			ch = charite.NewClient(cfg, roster, logging)
			enabled = append(enabled, ch)
		default:
			logging.Warn("Unknown source in config", zap.String("source_name", name))
		}
	}
	if len(enabled) == 0 {
		logging.Fatal("No valid sources enabled. Check ENABLED_SOURCES in .env")
	}
	logging.Info("Active sources loaded", zap.Strings("sources", cfg.Sources()))

	// Setup Services
	var store *storage.Client
	if cfg.S3Configured() {
		store, err = storage.NewClient(cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		logging.Info("S3 archive enabled", zap.String("bucket", cfg.StratoS3Bucket))
	}
	resolver := zotero.NewResolver(cfg.CrossrefBaseURL, cfg.CrossrefMailto, logging)
	search := services.NewSearchService(enabled, logging)
	flows := services.NewWorkflows(lib, resolver, logging)
	importer := services.NewImporter(search, lib, logging)
	cache := &teamCache{}

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup Routes
	setupSystemRoutes(router, dual, search, cache)
	setupPaperRoutes(router, lib, logging)
	setupCollectionRoutes(router, lib, logging)
	setupTagRoutes(router, lib)
	setupLibraryRoutes(router, dual)
	setupWorkflowRoutes(router, flows)
	setupImportRoutes(router, search, importer, resolver, logging)
	if pm != nil {
		setupPubMedRoutes(router, pm, logging)
	}
	if ax != nil {
		setupArxivRoutes(router, ax, store, cfg, logging)
	}

	if ch != nil {
		refresh := func(ctx context.Context) int {
			pubs := ch.FetchTeam(ctx, nil)
			cache.set(pubs)
			teamCacheGauge.Set(float64(len(pubs)))
			teamRefreshCounter.Inc()
			return len(pubs)
		}
		setupTeamRoutes(router, ch, cache, refresh, logging)

		// Setup Cron
		cronScheduler := cron.New()
		cronScheduler.AddFunc(cfg.CronSchedule, func() {
			logging.Info("Running scheduled team refresh...")
			count := refresh(context.Background())
			logging.Info("Scheduled team refresh completed", zap.Int("publications", count))
		})
		cronScheduler.Start()
	}

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// loadTeam lädt das Roster aus TEAM_FILE, fällt bei Problemen auf die
// eingebaute Mitgliederliste zurück.
func loadTeam(cfg *config.Config, log *zap.Logger) []models.TeamMember {
	if cfg.TeamFile == "" {
		return charite.DefaultTeam()
	}
	team, err := charite.LoadRoster(cfg.TeamFile)
	if err != nil {
		log.Warn("Roster load failed, using built-in team",
			zap.String("path", cfg.TeamFile), zap.Error(err))
		return charite.DefaultTeam()
	}
	log.Info("Roster loaded", zap.String("path", cfg.TeamFile), zap.Int("members", len(team)))
	return team
}

func setupSystemRoutes(router *gin.Engine, dual *zotero.DualClient, search *services.SearchService, cache *teamCache) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.GET("/api/status", func(c *gin.Context) {
		papers, fetched := cache.get()
		teamInfo := gin.H{"publications": len(papers)}
		if !fetched.IsZero() {
			teamInfo["fetched_at"] = fetched
		}
		c.JSON(http.StatusOK, gin.H{
			"libraries":  dual.Status(),
			"sources":    search.Sources(),
			"team_cache": teamInfo,
		})
	})
}

func setupPaperRoutes(router *gin.Engine, lib *zotero.Client, log *zap.Logger) {
	rg := router.Group("/api/papers")

	rg.GET("/search", func(c *gin.Context) {
		q := c.Query("q")
		if q == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
			return
		}
		items := lib.SearchItems(c.Request.Context(), q, intQuery(c, "limit", 50))
		c.JSON(http.StatusOK, items)
	})

	rg.GET("/semantic-search", func(c *gin.Context) {
		q := c.Query("q")
		if q == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
			return
		}
		items := lib.SemanticSearch(c.Request.Context(), q, intQuery(c, "limit", 10))
		c.JSON(http.StatusOK, items)
	})

	rg.GET("/advanced-search", func(c *gin.Context) {
		crit := models.AdvancedSearchCriteria{
			Title:    c.Query("title"),
			Creator:  c.Query("creator"),
			Tag:      c.Query("tag"),
			ItemType: c.Query("item_type"),
			Year:     c.Query("year"),
		}
		items, err := lib.AdvancedSearch(c.Request.Context(), crit)
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, items)
	})

	rg.GET("/recent", func(c *gin.Context) {
		c.JSON(http.StatusOK, lib.Recent(c.Request.Context(), intQuery(c, "limit", 20)))
	})

	// DOI als Query-Parameter, weil sie selbst Schrägstriche enthält
	rg.GET("/by-doi", func(c *gin.Context) {
		doi := c.Query("doi")
		if doi == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'doi' is required"})
			return
		}
		item := lib.SearchByDOI(c.Request.Context(), doi)
		if item == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
			return
		}
		c.JSON(http.StatusOK, item)
	})

	rg.GET("/:key", func(c *gin.Context) {
		item, err := lib.GetItem(c.Request.Context(), c.Param("key"))
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, item)
	})

	rg.GET("/:key/fulltext", func(c *gin.Context) {
		key := c.Param("key")
		c.JSON(http.StatusOK, gin.H{
			"item_key": key,
			"fulltext": lib.Fulltext(c.Request.Context(), key),
		})
	})

	rg.GET("/:key/annotations", func(c *gin.Context) {
		c.JSON(http.StatusOK, lib.Annotations(c.Request.Context(), c.Param("key")))
	})

	// Nur die gesendeten Felder ändern, der Rest bleibt unberührt
	rg.PUT("/:key", func(c *gin.Context) {
		key := c.Param("key")
		var updates map[string]any
		if err := c.ShouldBindJSON(&updates); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := lib.UpdateItem(c.Request.Context(), key, updates); err != nil {
			log.Error("Item update failed", zap.String("item_key", key), zap.Error(err))
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		item, err := lib.GetItem(c.Request.Context(), key)
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, item)
	})
}

func setupCollectionRoutes(router *gin.Engine, lib *zotero.Client, log *zap.Logger) {
	rg := router.Group("/api/collections")

	rg.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, lib.ListCollections(c.Request.Context()))
	})

	rg.POST("", func(c *gin.Context) {
		var req struct {
			Name      string `json:"name" binding:"required"`
			ParentKey string `json:"parent_key"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'name' is required."})
			return
		}
		key, err := lib.CreateCollection(c.Request.Context(), req.Name, req.ParentKey)
		if err != nil {
			log.Error("Collection creation failed", zap.String("name", req.Name), zap.Error(err))
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"key": key, "name": req.Name})
	})

	rg.GET("/:key/items", func(c *gin.Context) {
		c.JSON(http.StatusOK, lib.CollectionItems(c.Request.Context(), c.Param("key")))
	})

	rg.POST("/:key/items", func(c *gin.Context) {
		var req struct {
			ItemKeys []string `json:"item_keys" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'item_keys' is required."})
			return
		}
		res := lib.AddItemsToCollection(c.Request.Context(), c.Param("key"), req.ItemKeys)
		c.JSON(http.StatusOK, res)
	})

	rg.DELETE("/:key", func(c *gin.Context) {
		key := c.Param("key")
		if err := lib.DeleteCollection(c.Request.Context(), key); err != nil {
			log.Error("Collection deletion failed", zap.String("collection_key", key), zap.Error(err))
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Collection deleted."})
	})

	rg.DELETE("/:key/items/:itemKey", func(c *gin.Context) {
		removed, err := lib.RemoveItemFromCollection(c.Request.Context(), c.Param("key"), c.Param("itemKey"))
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": removed})
	})
}

func setupTagRoutes(router *gin.Engine, lib *zotero.Client) {
	rg := router.Group("/api/tags")

	rg.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, lib.Tags(c.Request.Context()))
	})

	rg.GET("/:tag/papers", func(c *gin.Context) {
		c.JSON(http.StatusOK, lib.SearchByTag(c.Request.Context(), c.Param("tag")))
	})
}

// setupLibraryRoutes bietet die explizite Bibliothekswahl an. Wer nicht
// mit der Default-Bibliothek arbeiten will, nutzt diese Routen statt
// eines Umschalters.
func setupLibraryRoutes(router *gin.Engine, dual *zotero.DualClient) {
	group, groupErr := dual.Client("group")
	personal, personalErr := dual.Client("personal")

	searchIn := func(client *zotero.Client, resolveErr error) gin.HandlerFunc {
		return func(c *gin.Context) {
			if resolveErr != nil {
				c.JSON(errStatus(resolveErr), gin.H{"error": resolveErr.Error()})
				return
			}
			q := c.Query("q")
			if q == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
				return
			}
			items := client.SearchItems(c.Request.Context(), q, intQuery(c, "limit", 50))
			c.JSON(http.StatusOK, items)
		}
	}

	router.GET("/api/group/search", searchIn(group, groupErr))
	router.GET("/api/personal/search", searchIn(personal, personalErr))
}

func setupWorkflowRoutes(router *gin.Engine, flows *services.Workflows) {
	rg := router.Group("/api/workflows")

	rg.GET("/reading-list", func(c *gin.Context) {
		topic := c.Query("topic")
		if topic == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'topic' is required"})
			return
		}
		list := flows.BuildReadingList(c.Request.Context(), topic,
			intQuery(c, "max_papers", 20), intQuery(c, "min_year", 0))
		c.JSON(http.StatusOK, list)
	})

	rg.POST("/smart-add", func(c *gin.Context) {
		var req struct {
			DOI             string `json:"doi" binding:"required"`
			CheckDuplicates *bool  `json:"check_duplicates"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'doi' is required."})
			return
		}
		check := req.CheckDuplicates == nil || *req.CheckDuplicates
		res, err := flows.SmartAddPaper(c.Request.Context(), req.DOI, check)
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	})

	rg.GET("/export-bibliography", func(c *gin.Context) {
		exp, err := flows.ExportBibliography(c.Request.Context(),
			c.Query("collection"), c.Query("tag"), c.Query("format"))
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, exp)
	})

	rg.GET("/related-papers/:key", func(c *gin.Context) {
		rel, err := flows.FindRelatedPapers(c.Request.Context(), c.Param("key"), intQuery(c, "limit", 10))
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rel)
	})
}

func setupImportRoutes(router *gin.Engine, search *services.SearchService, importer *services.Importer, resolver *zotero.Resolver, log *zap.Logger) {
	router.POST("/api/import", func(c *gin.Context) {
		var req struct {
			Source           string `json:"source" binding:"required"`
			Query            string `json:"query" binding:"required"`
			CollectionName   string `json:"collection_name" binding:"required"`
			CreateCollection *bool  `json:"create_collection"`
			MaxResults       int    `json:"max_results"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'source', 'query' and 'collection_name' are required."})
			return
		}
		create := req.CreateCollection == nil || *req.CreateCollection
		res, err := importer.ImportToCollection(c.Request.Context(), req.Source, req.Query,
			req.CollectionName, create, models.SearchOptions{MaxResults: req.MaxResults})
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		importedItemsCounter.Add(float64(len(res.ItemsAdded)))
		c.JSON(http.StatusOK, res)
	})

	router.POST("/api/import/multi", func(c *gin.Context) {
		var req struct {
			Sources          []string `json:"sources"`
			Query            string   `json:"query" binding:"required"`
			CollectionName   string   `json:"collection_name" binding:"required"`
			MaxPerSource     int      `json:"max_per_source"`
			CreateCollection *bool    `json:"create_collection"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'query' and 'collection_name' are required."})
			return
		}
		create := req.CreateCollection == nil || *req.CreateCollection
		res, err := importer.ImportMultiSource(c.Request.Context(), req.Sources, req.Query,
			req.CollectionName, req.MaxPerSource, create)
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		importedItemsCounter.Add(float64(len(res.ItemsAdded)))
		c.JSON(http.StatusOK, res)
	})

	router.GET("/api/search/multi", func(c *gin.Context) {
		q := c.Query("q")
		if q == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
			return
		}
		var srcs []string
		if raw := c.Query("sources"); raw != "" {
			srcs = strings.Split(raw, ",")
		}
		res, err := search.SearchAll(c.Request.Context(), q, srcs,
			models.SearchOptions{MaxResults: intQuery(c, "limit", 0)})
		if err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	})

	router.POST("/api/resolve-doi", func(c *gin.Context) {
		var req struct {
			DOI string `json:"doi" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'doi' is required."})
			return
		}
		rec, err := resolver.ResolveDOI(c.Request.Context(), req.DOI)
		if err != nil {
			log.Warn("DOI resolution failed", zap.String("doi", req.DOI), zap.Error(err))
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rec)
	})
}

func setupPubMedRoutes(router *gin.Engine, pm *pubmed.Fetcher, log *zap.Logger) {
	rg := router.Group("/api/sources/pubmed")

	rg.GET("/search", func(c *gin.Context) {
		q := c.Query("q")
		if q == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
			return
		}
		papers, err := pm.Search(c.Request.Context(), q, models.SearchOptions{
			MaxResults: intQuery(c, "limit", 20),
			Sort:       c.Query("sort"),
			MinDate:    c.Query("min_date"),
			MaxDate:    c.Query("max_date"),
		})
		if err != nil {
			log.Error("PubMed search failed", zap.String("query", q), zap.Error(err))
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"query": q, "count": len(papers), "papers": papers})
	})

	rg.POST("/advanced-search", func(c *gin.Context) {
		var req pubmed.AdvancedQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		papers, err := pm.AdvancedSearch(c.Request.Context(), req)
		if err != nil {
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(papers), "papers": papers})
	})

	rg.GET("/search/author", func(c *gin.Context) {
		author := c.Query("name")
		if author == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'name' is required"})
			return
		}
		papers, err := pm.SearchByAuthor(c.Request.Context(), author, c.Query("affiliation"), intQuery(c, "limit", 20))
		if err != nil {
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"author": author, "count": len(papers), "papers": papers})
	})

	rg.GET("/search/journal", func(c *gin.Context) {
		journal := c.Query("name")
		if journal == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'name' is required"})
			return
		}
		papers, err := pm.SearchByJournal(c.Request.Context(), journal,
			c.Query("min_date"), c.Query("max_date"), intQuery(c, "limit", 20))
		if err != nil {
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"journal": journal, "count": len(papers), "papers": papers})
	})

	rg.POST("/search/mesh", func(c *gin.Context) {
		var req struct {
			Terms          []string `json:"terms" binding:"required"`
			MajorTopicOnly bool     `json:"major_topic_only"`
			MaxResults     int      `json:"max_results"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'terms' is required."})
			return
		}
		papers, err := pm.SearchByMeSH(c.Request.Context(), req.Terms, req.MajorTopicOnly, req.MaxResults)
		if err != nil {
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"terms": req.Terms, "count": len(papers), "papers": papers})
	})

	rg.GET("/trending", func(c *gin.Context) {
		field := c.Query("field")
		papers, err := pm.Trending(c.Request.Context(), field, intQuery(c, "days", 30), intQuery(c, "limit", 20))
		if err != nil {
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"field": field, "count": len(papers), "papers": papers})
	})

	rg.POST("/batch", func(c *gin.Context) {
		var req struct {
			PMIDs []string `json:"pmids" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'pmids' is required."})
			return
		}
		papers, err := pm.Batch(c.Request.Context(), req.PMIDs)
		if err != nil {
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(papers), "papers": papers})
	})

	rg.POST("/convert", func(c *gin.Context) {
		var req struct {
			Identifier string `json:"identifier" binding:"required"`
			From       string `json:"from" binding:"required"`
			To         string `json:"to" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'identifier', 'from' and 'to' are required."})
			return
		}
		converted, err := pm.ConvertID(c.Request.Context(), req.Identifier, req.From, req.To)
		if err != nil {
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"identifier": req.Identifier, "converted": converted, "type": req.To})
	})

	rg.GET("/validate/:pmid", func(c *gin.Context) {
		c.JSON(http.StatusOK, pm.ValidatePMID(c.Request.Context(), c.Param("pmid")))
	})

	rg.GET("/:pmid", func(c *gin.Context) {
		paper, err := pm.Get(c.Request.Context(), c.Param("pmid"))
		if err != nil {
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, paper)
	})

	rg.GET("/:pmid/abstract", func(c *gin.Context) {
		pmid := c.Param("pmid")
		abstract, err := pm.Abstract(c.Request.Context(), pmid)
		if err != nil {
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"pmid": pmid, "abstract": abstract})
	})

	rg.GET("/:pmid/citations", func(c *gin.Context) {
		pmid := c.Param("pmid")
		papers, err := pm.CitedBy(c.Request.Context(), pmid, intQuery(c, "limit", 20))
		if err != nil {
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"pmid": pmid, "count": len(papers), "papers": papers})
	})

	rg.GET("/:pmid/references", func(c *gin.Context) {
		pmid := c.Param("pmid")
		papers, err := pm.References(c.Request.Context(), pmid)
		if err != nil {
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"pmid": pmid, "count": len(papers), "papers": papers})
	})

	rg.GET("/:pmid/similar", func(c *gin.Context) {
		pmid := c.Param("pmid")
		papers, err := pm.Similar(c.Request.Context(), pmid, intQuery(c, "limit", 10))
		if err != nil {
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"pmid": pmid, "count": len(papers), "papers": papers})
	})

	rg.GET("/:pmid/fulltext", func(c *gin.Context) {
		ft, err := pm.Fulltext(c.Request.Context(), c.Param("pmid"))
		if err != nil {
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, ft)
	})

	rg.GET("/:pmid/export", func(c *gin.Context) {
		pmid := c.Param("pmid")
		format := c.DefaultQuery("format", "bibtex")
		citation, err := pm.FormatCitation(c.Request.Context(), pmid, format)
		if err != nil {
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"pmid": pmid, "format": format, "citation": citation})
	})
}

func setupArxivRoutes(router *gin.Engine, ax *arxiv.Fetcher, store *storage.Client, cfg *config.Config, log *zap.Logger) {
	rg := router.Group("/api/sources/arxiv")

	rg.GET("/search", func(c *gin.Context) {
		q := c.Query("q")
		if q == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
			return
		}
		opts := models.SearchOptions{
			MaxResults: intQuery(c, "limit", 20),
			Sort:       c.Query("sort"),
		}
		if raw := c.Query("categories"); raw != "" {
			opts.Categories = strings.Split(raw, ",")
		}
		papers, err := ax.Search(c.Request.Context(), q, opts)
		if err != nil {
			log.Error("arXiv search failed", zap.String("query", q), zap.Error(err))
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"query": q, "count": len(papers), "papers": papers})
	})

	rg.GET("/search/author", func(c *gin.Context) {
		author := c.Query("name")
		if author == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'name' is required"})
			return
		}
		papers, err := ax.SearchByAuthor(c.Request.Context(), author, intQuery(c, "limit", 20))
		if err != nil {
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"author": author, "count": len(papers), "papers": papers})
	})

	rg.GET("/category/:category", func(c *gin.Context) {
		category := c.Param("category")
		papers, err := ax.SearchByCategory(c.Request.Context(), category, c.Query("q"), intQuery(c, "limit", 20))
		if err != nil {
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"category": category, "count": len(papers), "papers": papers})
	})

	rg.GET("/recent", func(c *gin.Context) {
		category := c.Query("category")
		papers, err := ax.Recent(c.Request.Context(), category, intQuery(c, "limit", 20))
		if err != nil {
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"category": category, "count": len(papers), "papers": papers})
	})

	rg.GET("/categories", func(c *gin.Context) {
		c.JSON(http.StatusOK, arxiv.Categories())
	})

	rg.GET("/:id", func(c *gin.Context) {
		paper, err := ax.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, paper)
	})

	rg.GET("/:id/bibtex", func(c *gin.Context) {
		id := c.Param("id")
		entry, err := ax.ExportBibTeX(c.Request.Context(), id)
		if err != nil {
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "bibtex": entry})
	})

	// Lädt das PDF lokal herunter und legt es zusätzlich im Bucket ab,
	// sofern S3 konfiguriert ist.
	rg.POST("/:id/archive", func(c *gin.Context) {
		id := c.Param("id")
		path, err := ax.DownloadPDF(c.Request.Context(), id, cfg.PDFDir, "")
		if err != nil {
			log.Error("PDF download failed", zap.String("arxiv_id", id), zap.Error(err))
			c.JSON(sourceStatus(err), gin.H{"error": err.Error()})
			return
		}
		resp := gin.H{"id": id, "path": path}
		if store != nil {
			f, ferr := os.Open(path)
			if ferr != nil {
				log.Error("Archived PDF not readable", zap.String("path", path), zap.Error(ferr))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "stored file not readable"})
				return
			}
			link, uerr := store.Upload(c.Request.Context(), "arxiv/"+filepath.Base(path), f, "application/pdf")
			f.Close()
			if uerr != nil {
				log.Error("PDF upload failed", zap.String("arxiv_id", id), zap.Error(uerr))
				c.JSON(http.StatusBadGateway, gin.H{"error": "upload to object storage failed"})
				return
			}
			resp["s3_url"] = link
		}
		c.JSON(http.StatusOK, resp)
	})
}

func setupTeamRoutes(router *gin.Engine, team *charite.Client, cache *teamCache, refresh func(context.Context) int, log *zap.Logger) {
	rg := router.Group("/api/team")

	rg.GET("/members", func(c *gin.Context) {
		c.JSON(http.StatusOK, team.Roster())
	})

	rg.GET("/publications", func(c *gin.Context) {
		papers, fetched := cache.get()
		if fetched.IsZero() {
			// Erster Zugriff füllt den Cache synchron.
			refresh(c.Request.Context())
			papers, fetched = cache.get()
		}
		c.JSON(http.StatusOK, gin.H{
			"count":        len(papers),
			"fetched_at":   fetched,
			"publications": papers,
		})
	})

	rg.GET("/members/:name/publications", func(c *gin.Context) {
		name := c.Param("name")
		papers, err := team.FetchMemberByName(c.Request.Context(), name)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"member": name, "count": len(papers), "publications": papers})
	})

	rg.POST("/refresh", func(c *gin.Context) {
		go func() {
			count := refresh(context.Background())
			log.Info("Async team refresh completed", zap.Int("publications", count))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Team refresh triggered."})
	})

	rg.POST("/discover", func(c *gin.Context) {
		tokens := team.DiscoverTokens(c.Request.Context(), c.Query("seed"))
		c.JSON(http.StatusOK, gin.H{"count": len(tokens), "tokens": tokens})
	})
}
