package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/username/fimaledger/src/config"
	"github.com/username/fimaledger/src/database"
	"github.com/username/fimaledger/src/export"
	"github.com/username/fimaledger/src/handlers"
	"github.com/username/fimaledger/src/logger"
	"github.com/username/fimaledger/src/parsers"
	"github.com/username/fimaledger/src/processors"
	"github.com/username/fimaledger/src/services"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("FIMA ledger server starting...")

	logger.L.Info("Loading fund registry...", "path", config.Cfg.FundRegistryPath)
	registry, err := config.LoadFundRegistry(config.Cfg.FundRegistryPath)
	if err != nil {
		logger.L.Error("Failed to load fund registry", "error", err)
		os.Exit(1)
	}
	config.Funds = registry

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	logger.L.Info("Initializing services and handlers...")
	extractor := parsers.NewExtractor(config.Cfg.ExtractionTimeout, parsers.DefaultBackends()...)
	segmenter := processors.NewSegmenter(registry)
	recognizer := processors.NewRecognizer(config.Cfg.AmountTolerance, config.Cfg.MaxNumericDigits)
	reconciler := processors.NewReconciler(config.Cfg.AmountTolerance)

	ledgerService := services.NewLedgerService(reconciler)
	statementService := services.NewStatementService(
		extractor, segmenter, recognizer, reconciler,
		ledgerService, reportCache,
	)

	statementHandler := handlers.NewStatementHandler(statementService)
	portfolioHandler := handlers.NewPortfolioHandler(statementService)
	exportHandler := handlers.NewExportHandler(statementService, export.NewExcelExporter())

	watcher := services.NewWatchService(statementService, config.Cfg.WatchDir, config.Cfg.WatchSchedule)
	if err := watcher.Start(); err != nil {
		logger.L.Error("Failed to start folder watcher", "error", err)
		os.Exit(1)
	}
	defer watcher.Stop()

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("POST /api/statements", statementHandler.HandleUpload)
	apiRouter.HandleFunc("GET /api/statements", statementHandler.HandleGetIngestions)
	apiRouter.HandleFunc("GET /api/positions", portfolioHandler.HandleGetPositions)
	apiRouter.HandleFunc("GET /api/operations", portfolioHandler.HandleGetOperations)
	apiRouter.HandleFunc("GET /api/stats", portfolioHandler.HandleGetStats)
	apiRouter.HandleFunc("GET /api/export/excel", exportHandler.HandleExportExcel)

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "FIMA ledger backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
