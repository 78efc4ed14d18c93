package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/DieForGlory/process-peredach/src/classify"
	"github.com/DieForGlory/process-peredach/src/config"
	"github.com/DieForGlory/process-peredach/src/crm"
	"github.com/DieForGlory/process-peredach/src/database"
	"github.com/DieForGlory/process-peredach/src/handlers"
	"github.com/DieForGlory/process-peredach/src/logger"
	"github.com/DieForGlory/process-peredach/src/parsers"
	"github.com/DieForGlory/process-peredach/src/services"
	"github.com/DieForGlory/process-peredach/src/storage"
	"github.com/DieForGlory/process-peredach/src/workflow"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
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
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
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
	logger.L.Info("Peredach backend server starting...")

	logger.L.Info("Initializing workflow database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath, config.Cfg.ResetDBOnStart)
	logger.L.Info("Workflow database initialized successfully.")

	logger.L.Info("Connecting to CRM replica...")
	crmDB := crm.Connect(config.Cfg.CRMDSN)
	logger.L.Info("CRM connection established.")

	logger.L.Info("Initializing run registry...")
	runCache := cache.New(config.Cfg.RunTTL, 2*config.Cfg.RunTTL)
	logger.L.Info("Run registry initialized.", "ttl", config.Cfg.RunTTL)

	logger.L.Info("Initializing services and handlers...")
	crmRepo := crm.NewRepository(crmDB)
	statusStore := storage.NewSQLStatusStore(database.DB)
	classifier := classify.NewClassifier(crmRepo, statusStore)
	surveyParser := parsers.NewSurveyParser()
	surveyService := services.NewSurveyService(surveyParser, classifier, runCache, config.Cfg.RunTTL)
	engine := workflow.NewEngine(statusStore)

	surveyHandler := handlers.NewSurveyHandler(surveyService, crmRepo)
	dealsHandler := handlers.NewDealsHandler(surveyService, crmRepo, statusStore)
	documentsHandler := handlers.NewDocumentsHandler(surveyService)
	workflowHandler := handlers.NewWorkflowHandler(engine, crmRepo, config.Cfg.UploadDir)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("GET /api/houses", surveyHandler.HandleGetHouses)
	apiRouter.HandleFunc("GET /api/houses/{houseID}/survey-template", surveyHandler.HandleGetSurveyTemplate)

	apiRouter.HandleFunc("POST /api/surveys", surveyHandler.HandleProcessSurvey)
	apiRouter.HandleFunc("GET /api/runs/{runID}", surveyHandler.HandleGetRun)
	apiRouter.HandleFunc("GET /api/runs/{runID}/checkerboard", surveyHandler.HandleGetCheckerboard)
	apiRouter.HandleFunc("GET /api/runs/{runID}/deals", dealsHandler.HandleGetRunDeals)
	apiRouter.HandleFunc("GET /api/runs/{runID}/groups/{groupKey}/archive", documentsHandler.HandleGetGroupArchive)
	apiRouter.HandleFunc("GET /api/runs/{runID}/groups/{groupKey}/deals/{propertyID}/notification", documentsHandler.HandleGetNotification)

	apiRouter.HandleFunc("GET /api/deals", dealsHandler.HandleGetDeals)
	apiRouter.HandleFunc("POST /api/deals/{dealID}/mark-delivered", workflowHandler.HandleMarkDelivered)
	apiRouter.HandleFunc("POST /api/deals/{dealID}/mark-arrived", workflowHandler.HandleMarkArrived)
	apiRouter.HandleFunc("GET /api/deals/{dealID}/unilateral-act", workflowHandler.HandleDownloadUnilateralAct)
	apiRouter.HandleFunc("POST /api/deals/{dealID}/unilateral-act", workflowHandler.HandleUploadUnilateralAct)
	apiRouter.HandleFunc("GET /api/deals/{dealID}/acceptance-act", workflowHandler.HandleDownloadAcceptanceAct)
	apiRouter.HandleFunc("POST /api/deals/{dealID}/acceptance-result", workflowHandler.HandleAcceptanceResult)
	apiRouter.HandleFunc("POST /api/deals/{dealID}/final-docs", workflowHandler.HandleUploadFinalDocs)

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Peredach backend is running"})
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
		WriteTimeout: 15 * time.Second,
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
