package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hls-vault/internal/capability"
	"hls-vault/internal/database"
	"hls-vault/internal/handlers"
	"hls-vault/internal/jobs"
	"hls-vault/internal/logging"
	"hls-vault/internal/memory"
	"hls-vault/internal/metrics"
	"hls-vault/internal/middleware"
	"hls-vault/internal/pipeline"
	"hls-vault/internal/startup"
	"hls-vault/internal/workers"
)

const jobRetryDelay = 30 * time.Second

func main() {
	startTime := time.Now()

	// Cap the Go heap before anything allocates; encoder child processes
	// need the rest of the container limit.
	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error("Failed to close database: %v", err)
		}
	}()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Boot-time encoder detection. This is a diagnostic; every pipeline run
	// re-detects so newly installed encoders are picked up without a restart.
	detector := capability.NewDetector(config.FFmpegPath, config.FFprobePath, config.HardwareAccel)
	bootEncoder := detector.Detect(context.Background())
	startup.LogEncoderInit(bootEncoder.FFmpegPath, bootEncoder.FFprobePath, bootEncoder.HWAccel)

	// Processing pipeline and job queue
	pl := pipeline.New(db, detector, pipeline.Options{
		HLSDir:         config.HLSDir,
		ThumbnailDir:   config.ThumbnailDir,
		Tracks:         config.Tracks(),
		Perf:           config.Perf,
		ParallelJobs:   config.ParallelJobs,
		ProcessTimeout: config.ProcessTimeout,
	})
	workerCount := workers.ForCPU(config.PipelineWorkers)
	queue := jobs.NewQueue(pl, workerCount, config.JobRetries, jobRetryDelay)
	queue.Start()
	startup.LogQueueInit(workerCount, config.JobRetries)

	// Metrics
	metrics.InitializeMetrics()
	var collector *metrics.Collector
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		collector = metrics.NewCollector(db, 30*time.Second)
		collector.Start()

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:         ":" + config.MetricsPort,
			Handler:      metricsMux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Handlers and router
	h := handlers.New(db, queue, config)
	router := setupRouter(h, config.MetricsEnabled)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)
	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)

	srv := &http.Server{
		Addr:        ":" + config.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Uploads and segment downloads can be long; no write deadline.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv, metricsSrv, queue, collector)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers, metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.Liveness).Methods("GET")
	r.HandleFunc("/readyz", h.Readiness).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Video lifecycle
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/videos", h.UploadVideo).Methods("POST")
	api.HandleFunc("/videos", h.ListVideos).Methods("GET")
	api.HandleFunc("/videos/{id}", h.GetVideo).Methods("GET")
	api.HandleFunc("/videos/{id}", h.DeleteVideo).Methods("DELETE")
	api.HandleFunc("/videos/{id}/reprocess", h.ReprocessVideo).Methods("POST")
	api.HandleFunc("/videos/{id}/thumbnail", h.ServeThumbnail).Methods("GET")

	// HLS delivery. The key route must precede the catch-all path route.
	api.HandleFunc("/hls/key/{keyfile}", h.ServeKey).Methods("GET")
	api.HandleFunc("/hls/{path:.*}", h.ServeHLS).Methods("GET")

	// Convenience alias when the dedicated metrics listener is disabled
	if !metricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	return r
}

func handleShutdown(srv, metricsSrv *http.Server, queue *jobs.Queue, collector *metrics.Collector) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping job queue")
	queue.Stop()
	startup.LogShutdownStepComplete("Job queue stopped")

	if collector != nil {
		startup.LogShutdownStep("Stopping metrics collector")
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
