package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"paper-reader/internal/logging"
	"paper-reader/internal/renderer"
	"paper-reader/internal/workers"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
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

// Config holds all application configuration
type Config struct {
	DataDir        string
	Port           string
	MetricsPort    string
	MetricsEnabled bool
	APIPrefix      string
	StaticDir      string
	CORSOrigins    string

	MaxPDFBytes   int64
	MaxCoverBytes int64

	RenderTimeout time.Duration
	RenderWidth   int
	RenderDPI     int
	RenderWorkers int
	VipsEnabled   bool

	CoverWidth  uint32
	CoverHeight uint32

	LogStaticFiles  bool
	LogHealthChecks bool

	// Derived paths
	PapersDir string
	TempDir   string
	IndexPath string
}

// Default limits and sizes.
const (
	DefaultMaxPDFBytes   = 50 * 1024 * 1024
	DefaultMaxCoverBytes = 10 * 1024 * 1024
	DefaultRenderWidth   = 640
	DefaultRenderDPI     = 110
	DefaultCoverWidth    = 360
	DefaultCoverHeight   = 480
	maxRenderWorkers     = 4
)

// LoadConfig loads and validates configuration from environment variables,
// reading a .env file in the working directory first when one exists.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("Failed to load .env file: %v", err)
		}
	} else {
		logging.Info("  Loaded environment from .env")
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	config := &Config{
		DataDir:         getEnv("DATA_DIR", "./data"),
		Port:            getEnv("PORT", "8000"),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		APIPrefix:       normalizePrefix(getEnv("API_PREFIX", "/api")),
		StaticDir:       getEnv("STATIC_DIR", "./static"),
		CORSOrigins:     getEnv("CORS_ORIGINS", "*"),
		MaxPDFBytes:     getEnvInt64("MAX_PDF_BYTES", DefaultMaxPDFBytes),
		MaxCoverBytes:   getEnvInt64("MAX_COVER_BYTES", DefaultMaxCoverBytes),
		RenderTimeout:   getEnvDuration("RENDER_TIMEOUT", renderer.DefaultTimeout),
		RenderWidth:     int(getEnvInt64("RENDER_WIDTH", DefaultRenderWidth)),
		RenderDPI:       int(getEnvInt64("RENDER_DPI", DefaultRenderDPI)),
		RenderWorkers:   workers.ForCPU(maxRenderWorkers),
		VipsEnabled:     getEnvBool("VIPS_ENABLED", false),
		CoverWidth:      uint32(getEnvInt64("COVER_WIDTH", DefaultCoverWidth)),
		CoverHeight:     uint32(getEnvInt64("COVER_HEIGHT", DefaultCoverHeight)),
		LogStaticFiles:  getEnvBool("LOG_STATIC_FILES", false),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", true),
	}

	if clamped := renderer.ClampTimeout(config.RenderTimeout); clamped != config.RenderTimeout {
		logging.Warn("  RENDER_TIMEOUT %v outside %v-%v, using %v",
			config.RenderTimeout, renderer.MinTimeout, renderer.MaxTimeout, clamped)
		config.RenderTimeout = clamped
	}

	logging.Info("  DATA_DIR:            %s", config.DataDir)
	logging.Info("  PORT:                %s", config.Port)
	logging.Info("  METRICS_PORT:        %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", config.MetricsEnabled)
	logging.Info("  API_PREFIX:          %s", config.APIPrefix)
	logging.Info("  STATIC_DIR:          %s", config.StaticDir)
	logging.Info("  CORS_ORIGINS:        %s", config.CORSOrigins)
	logging.Info("  MAX_PDF_BYTES:       %s", formatBytes(config.MaxPDFBytes))
	logging.Info("  MAX_COVER_BYTES:     %s", formatBytes(config.MaxCoverBytes))
	logging.Info("  RENDER_TIMEOUT:      %v", config.RenderTimeout)
	logging.Info("  RENDER_WIDTH:        %d", config.RenderWidth)
	logging.Info("  RENDER_DPI:          %d", config.RenderDPI)
	logging.Info("  RENDER_WORKERS:      %d", config.RenderWorkers)
	logging.Info("  VIPS_ENABLED:        %v", config.VipsEnabled)
	logging.Info("  COVER_SIZE:          %dx%d", config.CoverWidth, config.CoverHeight)
	logging.Info("  LOG_STATIC_FILES:    %v", config.LogStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	dataDir, err := filepath.Abs(config.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	config.DataDir = dataDir
	config.PapersDir = filepath.Join(dataDir, "papers")
	config.TempDir = filepath.Join(dataDir, "tmp")
	config.IndexPath = filepath.Join(dataDir, "index.json")
	logging.Info("  Data directory (absolute): %s", dataDir)

	for _, dir := range []struct{ path, name string }{
		{dataDir, "data"},
		{config.PapersDir, "papers"},
		{config.TempDir, "temp"},
	} {
		if err := ensureDirectory(dir.path, dir.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", dir.name, err)
		}
	}

	logging.Debug("  Testing data directory write access...")
	if err := testWriteAccess(config.PapersDir); err != nil {
		return nil, fmt.Errorf("papers directory is not writable: %w", err)
	}
	logging.Info("  [OK] Papers directory is writable")

	if info, err := os.Stat(config.StaticDir); err != nil || !info.IsDir() {
		logging.Info("  Static directory not found, UI disabled")
		config.StaticDir = ""
	} else if abs, err := filepath.Abs(config.StaticDir); err == nil {
		config.StaticDir = abs
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Static UI:   %s", enabledString(config.StaticDir != ""))
	logging.Info("    libvips:     %s", enabledString(config.VipsEnabled))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

// RendererConfig returns the renderer settings derived from c.
func (c *Config) RendererConfig() renderer.Config {
	return renderer.Config{
		Timeout: c.RenderTimeout,
		Width:   c.RenderWidth,
		DPI:     c.RenderDPI,
		Workers: c.RenderWorkers,
		TempDir: c.TempDir,
		UseVips: c.VipsEnabled,
	}
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogRendererInit reports which rasterizers the chain can use.
func LogRendererInit(chain *renderer.Chain) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("RENDERER INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	available := chain.Available()
	if len(available) == 0 {
		logging.Warn("  No rasterizer found (pdftoppm, mutool, gs)")
		logging.Warn("  Documents without a cover will show the default cover")
		return
	}
	cfg := chain.Config()
	logging.Info("  [OK] Rasterizers: %s", strings.Join(available, ", "))
	logging.Info("  Per-tool timeout: %v, concurrent renders: %d", cfg.Timeout, cfg.Workers)
}

// LogVipsInit reports the libvips initialization result.
func LogVipsInit(err error) {
	if err != nil {
		logging.Warn("  libvips unavailable: %v", err)
		return
	}
	logging.Info("  [OK] libvips initialized")
}

// LogIndexInit reports the index state after startup reconciliation.
func LogIndexInit(papers int, dropped []string, duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("INDEX INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] %d papers indexed (loaded in %v)", papers, duration)
	if len(dropped) > 0 {
		logging.Warn("  Dropped %d stale index entries", len(dropped))
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			pathTemplate, err = route.GetPathRegexp()
			if err != nil {
				return nil
			}
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified (e.g., static file server)
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
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
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
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logStaticFiles {
		logging.Info("    Static file logging: ON")
	} else {
		logging.Info("    Static file logging: OFF (set LOG_STATIC_FILES=true to enable)")
	}
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
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

func printBanner() {
	banner := `
------------------------------------------------------------
     ____                          ____                 __
    / __ \____ _____  ___  _____  / __ \___  ____ _____/ /__  _____
   / /_/ / __ '/ __ \/ _ \/ ___/ / /_/ / _ \/ __ '/ __  / _ \/ ___/
  / ____/ /_/ / /_/ /  __/ /    / _, _/  __/ /_/ / /_/ /  __/ /
 /_/    \__,_/ .___/\___/_/    /_/ |_|\___/\__,_/\__,_/\___/_/
            /_/
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

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
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
	}
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
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

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid value for %s: %q, using default: %d", key, value, defaultValue)
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
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
