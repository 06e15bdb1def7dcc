package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paper-reader/internal/cover"
	"paper-reader/internal/filesystem"
	"paper-reader/internal/handlers"
	"paper-reader/internal/index"
	"paper-reader/internal/library"
	"paper-reader/internal/logging"
	"paper-reader/internal/media"
	"paper-reader/internal/memory"
	"paper-reader/internal/metrics"
	"paper-reader/internal/middleware"
	"paper-reader/internal/renderer"
	"paper-reader/internal/startup"
	"paper-reader/internal/storage"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	memory.ApplyLimit(os.Getenv)

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"data":   config.DataDir,
		"papers": config.PapersDir,
		"tmp":    config.TempDir,
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	metrics.InitializeMetrics()

	if config.VipsEnabled {
		startup.LogVipsInit(media.InitVips())
	}

	chain := renderer.New(config.RendererConfig())
	startup.LogRendererInit(chain)

	lib, err := openLibrary(config, chain)
	if err != nil {
		startup.LogFatal("Failed to open library: %v", err)
	}

	collector := metrics.NewCollector(lib, time.Minute)
	collector.Start()

	h := handlers.New(lib, handlers.Config{
		TempDir:       config.TempDir,
		MaxPDFBytes:   config.MaxPDFBytes,
		MaxCoverBytes: config.MaxCoverBytes,
	})

	router := setupRouter(h, config)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           buildHandler(router, config),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(config.MetricsPort)
	}

	done := make(chan struct{})
	go handleShutdown(srv, metricsSrv, collector, chain, done)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

// openLibrary builds the store, index and cover resolver and drops index
// entries whose files disappeared while the server was down.
func openLibrary(config *startup.Config, r cover.Renderer) (*library.Library, error) {
	indexStart := time.Now()

	store, err := storage.New(config.PapersDir)
	if err != nil {
		return nil, err
	}
	idx, err := index.Open(config.IndexPath)
	if err != nil {
		return nil, err
	}

	lib := library.New(store, idx, cover.NewResolver(store, r, config.CoverWidth, config.CoverHeight), library.Config{
		MaxPDFBytes:   config.MaxPDFBytes,
		MaxCoverBytes: config.MaxCoverBytes,
	})

	dropped, err := lib.Reconcile()
	if err != nil {
		return nil, err
	}
	startup.LogIndexInit(lib.Stats().Papers, dropped, time.Since(indexStart))
	return lib, nil
}

func setupRouter(h *handlers.Handlers, config *startup.Config) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET", "HEAD")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix(config.APIPrefix).Subrouter()
	if config.APIPrefix == "" {
		api = r
	}
	api.HandleFunc("/papers", h.ListPapers).Methods("GET")
	api.HandleFunc("/papers", h.UploadPaper).Methods("POST")
	api.HandleFunc("/papers/{id}", h.GetPaper).Methods("GET")
	api.HandleFunc("/papers/{id}", h.DeletePaper).Methods("DELETE")
	api.HandleFunc("/papers/{id}/cover", h.GetCover).Methods("GET", "HEAD")
	api.HandleFunc("/papers/{id}/file", h.GetFile).Methods("GET", "HEAD")

	// Static files
	if config.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(config.StaticDir)))
	}

	return r
}

// buildHandler wraps the router in the middleware chain, outermost first:
// recovery, access log, CORS, compression, metrics.
func buildHandler(router http.Handler, config *startup.Config) http.Handler {
	handler := middleware.Metrics(middleware.DefaultMetricsConfig())(router)
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)
	handler = middleware.CORS(config.CORSOrigins)(handler)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler = middleware.Logger(loggingConfig)(handler)

	return middleware.Recovery(handler)
}

func startMetricsServer(port string) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", handlers.MetricsHandler())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

func handleShutdown(srv, metricsSrv *http.Server, collector *metrics.Collector, chain *renderer.Chain, done chan<- struct{}) {
	defer close(done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping cover renderers")
	chain.Cleanup()
	startup.LogShutdownStepComplete("Renderer processes cleaned up")

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	media.ShutdownVips()

	startup.LogShutdownComplete()
}
