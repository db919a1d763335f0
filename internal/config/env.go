package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
	MinLevel      string
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
	RateLimit       int // requests per minute per IP on the session API
	SessionTTL      time.Duration
}

// BookConfig defines the document, the layout policy and the flip options.
type BookConfig struct {
	Source       string
	Policy       string // "fixed"|"viewport"
	BaseHeight   float64
	ViewportW    float64
	ViewportH    float64
	Padding      float64
	SizeMode     string // "fixed"|"stretch"
	MinWidth     float64
	MaxWidth     float64
	MinHeight    float64
	MaxHeight    float64
	ShowCover    bool
	MaxShadow    float64
	UsePortrait  bool
	AwaitRenders bool
	FailureText  string
	Fullscreen   bool
}

// RenderConfig defines rasterization and encoding.
type RenderConfig struct {
	Concurrency int
	JPEGQuality int
	ColorMode   string // "rgb"|"gray"
}

// AutoFlipConfig defines the auto-flip scheduler.
type AutoFlipConfig struct {
	Interval time.Duration
}

// CacheConfig defines the static asset cache.
type CacheConfig struct {
	Name     string
	Backend  string // "memory"|"redis"
	Assets   []string
	Install  bool
	BaseURL  string
	Timeout  time.Duration
	FetchRPS float64
}

// RedisConfig defines redis connectivity.
type RedisConfig struct {
	URL string
}

// S3Config defines S3 access for s3:// sources.
type S3Config struct {
	Bucket string
}

// SourceConfig defines how remote and encrypted sources are fetched.
type SourceConfig struct {
	Password   string // decrypts GCM3NCR0-framed sources
	Timeout    time.Duration
	TempMaxAge time.Duration
}

// Config is the top-level configuration.
type Config struct {
	Logging  LoggingConfig
	Axiom    AxiomConfig
	Server   ServerConfig
	Book     BookConfig
	Render   RenderConfig
	AutoFlip AutoFlipConfig
	Cache    CacheConfig
	Redis    RedisConfig
	S3       S3Config
	Source   SourceConfig
}

// DefaultAssets is the install-time manifest. The source PDF is not listed:
// range requests against a cached copy are unreliable.
var DefaultAssets = []string{
	"/",
	"/static/style.css",
	"/static/app.js",
	"/manifest.json",
	"/static/icon.svg",
	"https://cdn.jsdelivr.net/npm/page-flip@2.0.7/dist/js/page-flip.browser.min.js",
}

// Load reads an optional .env file and then builds the configuration from the environment.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	// Logging defaults
	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/flipbook.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	// Axiom defaults
	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_flipbook",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
		MinLevel:      strings.ToLower(getEnv("AXIOM_MIN_LEVEL", "info")),
	}

	cfg.Server = ServerConfig{
		Port:            getEnv("PORT", "8080"),
		ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
		RateLimit:       parseInt(getEnv("SESSION_RATE_LIMIT", "120"), 120),
		SessionTTL:      parseDuration(getEnv("SESSION_TTL", "24h"), 24*time.Hour),
	}

	// Book defaults follow the two-page spread layout
	cfg.Book = BookConfig{
		Source:       getEnv("FLIPBOOK_SOURCE", "konyvem.pdf"),
		Policy:       strings.ToLower(getEnv("LAYOUT_POLICY", "viewport")),
		BaseHeight:   parseFloat(getEnv("LAYOUT_BASE_HEIGHT", "800"), 800),
		ViewportW:    parseFloat(getEnv("VIEWPORT_WIDTH", "1920"), 1920),
		ViewportH:    parseFloat(getEnv("VIEWPORT_HEIGHT", "1080"), 1080),
		Padding:      parseFloat(getEnv("VIEWPORT_PADDING", "40"), 40),
		SizeMode:     strings.ToLower(getEnv("FLIP_SIZE_MODE", "fixed")),
		MinWidth:     parseFloat(getEnv("FLIP_MIN_WIDTH", "300"), 300),
		MaxWidth:     parseFloat(getEnv("FLIP_MAX_WIDTH", "1500"), 1500),
		MinHeight:    parseFloat(getEnv("FLIP_MIN_HEIGHT", "400"), 400),
		MaxHeight:    parseFloat(getEnv("FLIP_MAX_HEIGHT", "1200"), 1200),
		ShowCover:    parseBool(getEnv("FLIP_SHOW_COVER", "true")),
		MaxShadow:    parseFloat(getEnv("FLIP_MAX_SHADOW_OPACITY", "0.5"), 0.5),
		UsePortrait:  parseBool(getEnv("FLIP_USE_PORTRAIT", "false")),
		AwaitRenders: parseBool(getEnv("AWAIT_RENDERS", "true")),
		FailureText:  getEnv("LOAD_FAILURE_TEXT", "Hiba történt a fájl betöltésekor: "),
		Fullscreen:   parseBool(getEnv("ALLOW_FULLSCREEN", "true")),
	}

	cfg.Render = RenderConfig{
		Concurrency: parseInt(getEnv("RENDER_CONCURRENCY", "4"), 4),
		JPEGQuality: parseInt(getEnv("JPEG_QUALITY", "85"), 85),
		ColorMode:   strings.ToLower(getEnv("RENDER_COLOR", "rgb")),
	}

	cfg.AutoFlip = AutoFlipConfig{
		Interval: parseDuration(getEnv("AUTOFLIP_INTERVAL", "5s"), 5*time.Second),
	}

	cfg.Cache = CacheConfig{
		Name:     getEnv("CACHE_NAME", "flipbook-v2"),
		Backend:  strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
		Assets:   parseList(getEnv("CACHE_ASSETS", ""), DefaultAssets),
		Install:  parseBool(getEnv("CACHE_INSTALL", "true")),
		BaseURL:  getEnv("CACHE_BASE_URL", ""),
		Timeout:  parseDuration(getEnv("CACHE_INSTALL_TIMEOUT", "30s"), 30*time.Second),
		FetchRPS: parseFloat(getEnv("CACHE_FETCH_RPS", "10"), 10),
	}
	if cfg.Cache.BaseURL == "" {
		cfg.Cache.BaseURL = "http://127.0.0.1:" + cfg.Server.Port
	}

	cfg.Redis = RedisConfig{
		URL: getEnv("REDIS_URL", "redis://localhost:6379"),
	}

	cfg.S3 = S3Config{
		Bucket: getEnv("AWS_S3_BUCKET", ""),
	}

	cfg.Source = SourceConfig{
		Password:   getEnv("SOURCE_PASSWORD", ""),
		Timeout:    parseDuration(getEnv("SOURCE_FETCH_TIMEOUT", "2m"), 2*time.Minute),
		TempMaxAge: parseDuration(getEnv("SOURCE_TEMP_MAX_AGE", "24h"), 24*time.Hour),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func parseList(s string, def []string) []string {
	if strings.TrimSpace(s) == "" {
		return append([]string(nil), def...)
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
