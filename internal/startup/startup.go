package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"time"

	"hls-vault/internal/logging"
	"hls-vault/internal/transcode"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration. It is a plain read-only snapshot:
// components receive it at construction and never mutate it.
type Config struct {
	MediaDir    string
	OutputDir   string
	DatabaseDir string
	Port        string
	MetricsPort string

	MetricsEnabled  bool
	LogHealthChecks bool

	// Encoder settings
	FFmpegPath     string // configured path, empty = auto-detect
	FFprobePath    string
	HardwareAccel  bool
	Perf           transcode.PerfSettings
	ParallelJobs   int64
	ProcessTimeout time.Duration

	// Encode ladder, in manifest order
	VideoTracks []transcode.TrackSpec
	AudioTracks []transcode.TrackSpec

	// Job system
	PipelineWorkers int
	JobRetries      int

	// Derived paths
	DatabasePath string
	HLSDir       string
	ThumbnailDir string
	UploadDir    string
}

// Tracks returns the full encode ladder (audio first, then video) in
// configuration order.
func (c *Config) Tracks() []transcode.TrackSpec {
	out := make([]transcode.TrackSpec, 0, len(c.AudioTracks)+len(c.VideoTracks))
	out = append(out, c.AudioTracks...)
	out = append(out, c.VideoTracks...)
	return out
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	mediaDir := getEnv("MEDIA_DIR", "/media")
	outputDir := getEnv("OUTPUT_DIR", "/output")
	databaseDir := getEnv("DATABASE_DIR", "/database")
	port := getEnv("PORT", "8080")
	metricsPort := getEnv("METRICS_PORT", "9090")
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)

	ffmpegPath := os.Getenv("FFMPEG_PATH")
	ffprobePath := os.Getenv("FFPROBE_PATH")
	hardwareAccel := getEnvBool("VIDEO_HARDWARE_ACCELERATION", true)
	preset := getEnv("VIDEO_PRESET", "ultrafast")
	tune := getEnv("VIDEO_TUNE", "zerolatency")
	crf := getEnvInt("VIDEO_CRF", 28)
	threads := getEnvInt("VIDEO_THREADS", 0)
	segmentTime := getEnvInt("VIDEO_SEGMENT_TIME", 6)
	parallelJobs := getEnvInt("VIDEO_PARALLEL_JOBS", 3)
	processTimeout := getEnvDuration("VIDEO_PROCESS_TIMEOUT", 2*time.Hour)
	pipelineWorkers := getEnvInt("PIPELINE_WORKERS", 1)
	jobRetries := getEnvInt("JOB_RETRIES", 3)

	logging.Info("  MEDIA_DIR:               %s", mediaDir)
	logging.Info("  OUTPUT_DIR:              %s", outputDir)
	logging.Info("  DATABASE_DIR:            %s", databaseDir)
	logging.Info("  PORT:                    %s", port)
	logging.Info("  METRICS_PORT:            %s", metricsPort)
	logging.Info("  METRICS_ENABLED:         %v", metricsEnabled)
	logging.Info("  VIDEO_PRESET:            %s", preset)
	logging.Info("  VIDEO_TUNE:              %s", tune)
	logging.Info("  VIDEO_CRF:               %d", crf)
	logging.Info("  VIDEO_SEGMENT_TIME:      %ds", segmentTime)
	logging.Info("  VIDEO_PARALLEL_JOBS:     %d", parallelJobs)
	logging.Info("  VIDEO_PROCESS_TIMEOUT:   %s", processTimeout)
	logging.Info("  HARDWARE_ACCELERATION:   %v", hardwareAccel)
	logging.Info("  PIPELINE_WORKERS:        %d", pipelineWorkers)
	logging.Info("  JOB_RETRIES:             %d", jobRetries)
	logging.Info("  LOG_LEVEL:               %s", logging.GetLevel())

	if parallelJobs < 1 {
		logging.Warn("  Invalid VIDEO_PARALLEL_JOBS, using default: 3")
		parallelJobs = 3
	}
	if pipelineWorkers < 1 {
		pipelineWorkers = 1
	}
	if jobRetries < 1 {
		jobRetries = 1
	}

	// Resolve paths
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	var err error
	mediaDir, err = filepath.Abs(mediaDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media directory path: %w", err)
	}
	outputDir, err = filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory path: %w", err)
	}
	databaseDir, err = filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}

	config := &Config{
		MediaDir:        mediaDir,
		OutputDir:       outputDir,
		DatabaseDir:     databaseDir,
		Port:            port,
		MetricsPort:     metricsPort,
		MetricsEnabled:  metricsEnabled,
		LogHealthChecks: logHealthChecks,
		FFmpegPath:      ffmpegPath,
		FFprobePath:     ffprobePath,
		HardwareAccel:   hardwareAccel,
		Perf: transcode.PerfSettings{
			Preset:         preset,
			Tune:           tune,
			CRF:            crf,
			Threads:        threads,
			SegmentSeconds: segmentTime,
		},
		ParallelJobs:    int64(parallelJobs),
		ProcessTimeout:  processTimeout,
		VideoTracks:     defaultVideoTracks(),
		AudioTracks:     defaultAudioTracks(),
		PipelineWorkers: pipelineWorkers,
		JobRetries:      jobRetries,
		DatabasePath:    filepath.Join(databaseDir, "hls-vault.db"),
		HLSDir:          filepath.Join(outputDir, "hls"),
		ThumbnailDir:    filepath.Join(outputDir, "thumbnails"),
		UploadDir:       filepath.Join(mediaDir, "uploads"),
	}

	required := []struct {
		path string
		name string
	}{
		{databaseDir, "database"},
		{config.UploadDir, "upload"},
		{config.HLSDir, "HLS output"},
		{config.ThumbnailDir, "thumbnail"},
	}
	for _, dir := range required {
		if err := ensureDirectory(dir.path, dir.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", dir.name, err)
		}
		if err := testWriteAccess(dir.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", dir.name, err)
		}
		logging.Info("  [OK] %s directory is writable: %s", dir.name, dir.path)
	}

	logging.Info("")
	logging.Info("  Encode ladder:")
	for _, track := range config.Tracks() {
		logging.Info("    %s", track)
	}

	return config, nil
}

// defaultVideoTracks returns the video ladder, honoring per-rung bitrate
// overrides from the environment.
func defaultVideoTracks() []transcode.TrackSpec {
	return []transcode.TrackSpec{
		{ID: "360p", Kind: transcode.TrackVideo, Width: 640, Height: 360, Bitrate: getEnv("VIDEO_BITRATE_360P", "600k")},
		{ID: "720p", Kind: transcode.TrackVideo, Width: 1280, Height: 720, Bitrate: getEnv("VIDEO_BITRATE_720P", "1800k")},
		{ID: "1080p", Kind: transcode.TrackVideo, Width: 1920, Height: 1080, Bitrate: getEnv("VIDEO_BITRATE_1080P", "3500k")},
	}
}

func defaultAudioTracks() []transcode.TrackSpec {
	return []transcode.TrackSpec{
		{ID: "audio_128k", Kind: transcode.TrackAudio, Bitrate: "128k", Codec: "aac"},
		{ID: "audio_64k", Kind: transcode.TrackAudio, Bitrate: "64k", Codec: "aac"},
	}
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogEncoderInit logs the detected encoder configuration at boot. Detection is
// repeated per pipeline run; this is a boot-time diagnostic only.
func LogEncoderInit(ffmpegPath, ffprobePath, hwAccel string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("ENCODER DETECTION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  FFmpeg:  %s", ffmpegPath)
	logging.Info("  FFprobe: %s", ffprobePath)
	if hwAccel == "" {
		logging.Info("  Hardware acceleration: software encoding (CPU only)")
	} else {
		logging.Info("  Hardware acceleration: %s", hwAccel)
	}
}

// LogQueueInit logs job queue startup
func LogQueueInit(workers, retries int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("JOB QUEUE")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Pipeline workers: %d", workers)
	logging.Info("  Attempts per asset: %d", retries)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		sort.Slice(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })
		for _, route := range routes {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    __  ____   _____  _    __            ____
   / / / / /  / ___/ | |  / /___ ___  __/ / /_
  / /_/ / /   \__ \  | | / / __ '/ / / / / __/
 / __  / /______/ /  | |/ / /_/ / /_/ / / /_
/_/ /_/_____/____/   |___/\__,_/\__,_/_/\__/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Write access itself was confirmed
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration value for %s: %q, using default: %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
