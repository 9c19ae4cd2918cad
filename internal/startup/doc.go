// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// This package centralizes all application configuration and provides consistent
// logging throughout the application lifecycle.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig].
// The following environment variables are supported:
//
//   - MEDIA_DIR: Directory for uploaded source files (default: /media)
//   - OUTPUT_DIR: Root directory for packaged HLS output (default: /output)
//   - DATABASE_DIR: Path to database directory (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - FFMPEG_PATH / FFPROBE_PATH: Encoder/prober binaries (auto-detected if unset)
//   - VIDEO_PRESET: Encoder preset (default: ultrafast)
//   - VIDEO_TUNE: Encoder tuning (default: zerolatency)
//   - VIDEO_CRF: Quality factor (default: 28)
//   - VIDEO_THREADS: Encoder threads, 0 = auto (default: 0)
//   - VIDEO_SEGMENT_TIME: HLS segment duration in seconds (default: 6)
//   - VIDEO_PARALLEL_JOBS: Concurrent video encoder processes (default: 3)
//   - VIDEO_PROCESS_TIMEOUT: Per-track encoder timeout (default: 2h)
//   - VIDEO_HARDWARE_ACCELERATION: Probe for hardware encoders (default: true)
//   - VIDEO_BITRATE_360P / _720P / _1080P: Video ladder bitrate overrides
//   - PIPELINE_WORKERS: Concurrent pipeline runs (default: 1)
//   - JOB_RETRIES: Processing attempts per asset (default: 3)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//
// # Directory Setup
//
// The package validates and creates required directories:
//   - Database directory: Required, must be writable
//   - Output directory: Required, must be writable (HLS packages, thumbnails)
//   - Media directory: Required, must be writable (uploads land here)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
