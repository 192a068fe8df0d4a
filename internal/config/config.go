// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, the Messenger/LLM/speech/spreadsheet
// integrations, deduplication, rate limiting, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-messenger-bot/internal/sysutil"
)

// CORSConfig lists the browser origins allowed to call the admin API.
// Empty means any origin.
type CORSConfig struct {
	AllowedOrigins []string // CORS_ALLOWED_ORIGINS, comma separated
}

// SecurityConfig controls response hardening headers.
type SecurityConfig struct {
	EnableHSTS bool          // ENABLE_HSTS
	HSTSMaxAge time.Duration // HSTS_MAX_AGE
}

// OTELConfig controls the OTLP/gRPC trace exporter.
type OTELConfig struct {
	Enabled     bool
	Endpoint    string // host:port of the collector
	Insecure    bool   // plaintext gRPC
	ServiceName string
	SampleRatio float64 // parent-based ratio in [0,1]
}

// MessengerConfig holds the Facebook page and Graph API settings.
type MessengerConfig struct {
	VerifyToken     string        // FB_VERIFY_TOKEN, echoed challenge guard
	AppSecret       string        // FB_APP_SECRET, empty disables signature checks
	PageAccessToken string        // FB_PAGE_ACCESS_TOKEN
	GraphAPIBase    string        // FB_GRAPH_API_BASE
	GraphAPIVersion string        // FB_GRAPH_API_VERSION, e.g. v19.0
	SendTimeout     time.Duration // FB_SEND_TIMEOUT
}

// LLMConfig holds the Gemini settings for the second reply tier.
type LLMConfig struct {
	APIKey          string // GEMINI_API_KEY, empty disables the tier
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int
	Temperature     float64
	BusinessName    string
}

// Enabled reports whether the LLM tier is configured.
func (c LLMConfig) Enabled() bool { return strings.TrimSpace(c.APIKey) != "" }

// SpeechConfig holds the Whisper-compatible transcription settings.
type SpeechConfig struct {
	Enabled  bool
	APIBase  string
	APIKey   string
	Model    string
	Language string // optional ISO-639-1 hint
	Timeout  time.Duration
	MaxBytes int64
}

// SheetsConfig holds the Google Sheets lead log settings.
type SheetsConfig struct {
	Enabled         bool
	SpreadsheetID   string
	Range           string
	CredentialsFile string
}

// RedisConfig holds connection parameters for the redis dedupe backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	UseTLS   bool
}

// DedupeConfig bounds the "already processed" and "already greeted" sets.
type DedupeConfig struct {
	Backend     string        // memory|sqlite|redis
	MessageTTL  time.Duration // how long a message id is remembered
	GreetingTTL time.Duration // how long a greeted sender is remembered
	MaxEntries  int           // memory backend capacity
}

// Config is the full runtime configuration of the bot process.
type Config struct {
	// HTTP server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	LogLevel       string // zerolog level name
	LogPretty      bool   // console writer instead of JSON
	SwaggerEnabled bool
	APIBasePath    string // admin API prefix
	WebhookPath    string // Messenger callback route

	// App
	DBPath        string // SQLite path
	RepliesPath   string // optional reply table (yaml/json); empty uses the embedded one
	GreetNewUsers bool   // greet a sender before the first reply
	AdminAPIKey   string // X-API-Key for the admin API; empty disables it

	// Dispatcher
	Workers   int
	QueueSize int

	// Admin API throttling, per API key or client IP.
	RateRPS   float64
	RateBurst int

	CORS     CORSConfig
	Security SecurityConfig

	// Integrations
	Messenger MessengerConfig
	LLM       LLMConfig
	Speech    SpeechConfig
	Sheets    SheetsConfig
	Redis     RedisConfig
	Dedupe    DedupeConfig

	OTEL OTELConfig
}

// MustLoad is Load for process startup: it panics on an invalid environment.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load builds a Config from the process environment. Unset or unparsable
// variables take their defaults; the result is normalized and then validated,
// with every problem reported in the returned error.
func Load() (Config, error) {
	cfg := Config{
		Port:              env("PORT", "8080", asIs),
		ReadTimeout:       env("READ_TIMEOUT", 15*time.Second, time.ParseDuration),
		ReadHeaderTimeout: env("READ_HEADER_TIMEOUT", 10*time.Second, time.ParseDuration),
		WriteTimeout:      env("WRITE_TIMEOUT", 20*time.Second, time.ParseDuration),
		IdleTimeout:       env("IDLE_TIMEOUT", 60*time.Second, time.ParseDuration),
		MaxHeaderBytes:    env("MAX_HEADER_BYTES", 1<<20, strconv.Atoi),
		GinMode:           env("GIN_MODE", "release", lower),

		LogLevel:       env("LOG_LEVEL", "info", lower),
		LogPretty:      env("LOG_PRETTY", false, parseBool),
		SwaggerEnabled: env("SWAGGER_ENABLED", false, parseBool),
		APIBasePath:    env("API_BASE_PATH", "/api/v1", routePath),
		WebhookPath:    env("WEBHOOK_PATH", "/webhook", routePath),

		DBPath:        env("DB_PATH", "app.db", asIs),
		RepliesPath:   env("REPLIES_PATH", "", asIs),
		GreetNewUsers: env("GREET_NEW_USERS", true, parseBool),
		AdminAPIKey:   env("ADMIN_API_KEY", "", asIs),

		Workers:   env("WORKERS", 4, strconv.Atoi),
		QueueSize: env("QUEUE_SIZE", 256, strconv.Atoi),

		RateRPS:   env("RATE_RPS", 5.0, parseFloat),
		RateBurst: env("RATE_BURST", 10, strconv.Atoi),

		CORS: CORSConfig{
			AllowedOrigins: env("CORS_ALLOWED_ORIGINS", []string(nil), csv),
		},
		Security: SecurityConfig{
			EnableHSTS: env("ENABLE_HSTS", false, parseBool),
			HSTSMaxAge: env("HSTS_MAX_AGE", 180*24*time.Hour, time.ParseDuration),
		},

		Messenger: MessengerConfig{
			VerifyToken:     env("FB_VERIFY_TOKEN", "", asIs),
			AppSecret:       env("FB_APP_SECRET", "", asIs),
			PageAccessToken: env("FB_PAGE_ACCESS_TOKEN", "", asIs),
			GraphAPIBase:    env("FB_GRAPH_API_BASE", "https://graph.facebook.com", baseURL),
			GraphAPIVersion: env("FB_GRAPH_API_VERSION", "v19.0", asIs),
			SendTimeout:     env("FB_SEND_TIMEOUT", 10*time.Second, time.ParseDuration),
		},
		LLM: LLMConfig{
			APIKey:          env("GEMINI_API_KEY", "", asIs),
			Model:           env("GEMINI_MODEL", "gemini-1.5-flash", asIs),
			Timeout:         env("GEMINI_TIMEOUT", 20*time.Second, time.ParseDuration),
			MaxOutputTokens: env("GEMINI_MAX_OUTPUT_TOKENS", 512, strconv.Atoi),
			Temperature:     env("GEMINI_TEMPERATURE", 0.4, parseFloat),
			BusinessName:    env("BUSINESS_NAME", "HomeFixerKhulna", asIs),
		},
		Speech: SpeechConfig{
			Enabled:  env("SPEECH_ENABLED", false, parseBool),
			APIBase:  env("SPEECH_API_BASE", "https://api.groq.com/openai/v1", baseURL),
			APIKey:   env("SPEECH_API_KEY", "", asIs),
			Model:    env("SPEECH_MODEL", "whisper-large-v3", asIs),
			Language: env("SPEECH_LANGUAGE", "", asIs),
			Timeout:  env("SPEECH_TIMEOUT", 60*time.Second, time.ParseDuration),
			MaxBytes: env("SPEECH_MAX_BYTES", int64(25<<20), parseInt64),
		},
		Sheets: SheetsConfig{
			Enabled:         env("SHEETS_ENABLED", false, parseBool),
			SpreadsheetID:   env("SHEETS_SPREADSHEET_ID", "", asIs),
			Range:           env("SHEETS_RANGE", "Leads!A:F", asIs),
			CredentialsFile: env("SHEETS_CREDENTIALS_FILE", "", asIs),
		},
		Redis: RedisConfig{
			Addr:     env("REDIS_ADDR", "localhost:6379", asIs),
			Password: env("REDIS_PASSWORD", "", asIs),
			DB:       env("REDIS_DB", 0, strconv.Atoi),
			UseTLS:   env("REDIS_TLS", false, parseBool),
		},
		Dedupe: DedupeConfig{
			Backend:     env("DEDUPE_BACKEND", "memory", lower),
			MessageTTL:  env("DEDUPE_MESSAGE_TTL", 24*time.Hour, time.ParseDuration),
			GreetingTTL: env("DEDUPE_GREETING_TTL", 30*24*time.Hour, time.ParseDuration),
			MaxEntries:  env("DEDUPE_MAX_ENTRIES", 100000, strconv.Atoi),
		},

		OTEL: OTELConfig{
			Enabled:     env("OTEL_ENABLED", false, parseBool),
			Endpoint:    env("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317", asIs),
			Insecure:    env("OTEL_EXPORTER_OTLP_INSECURE", true, parseBool),
			ServiceName: env("OTEL_SERVICE_NAME", "messenger-bot", asIs),
			SampleRatio: env("OTEL_TRACES_SAMPLER_ARG", 1.0, parseFloat),
		},
	}

	cfg.normalize()
	return cfg, cfg.Validate()
}

// normalize folds aliases and clamps values that have a safe floor.
func (c *Config) normalize() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	if !oneOf(c.GinMode, "debug", "release", "test") {
		c.GinMode = "release"
	}
	c.Workers = max(c.Workers, 1)
	c.QueueSize = max(c.QueueSize, 0)
}

// Validate reports every invalid setting, joined into one error.
func (c Config) Validate() error {
	var errs []error
	require := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }

	require(oneOf(c.LogLevel, "debug", "info", "warn", "error", "fatal", "panic"),
		"LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic (got %q)", c.LogLevel)
	require(!blank(c.Port), "PORT must not be empty")
	require(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"server timeouts must be positive durations")
	require(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")
	require(!blank(c.DBPath), "DB_PATH must not be empty")
	require(c.WebhookPath != "/" || c.APIBasePath != "/", "WEBHOOK_PATH and API_BASE_PATH must not both be '/'")
	require(c.RateRPS >= 0, "RATE_RPS must be >= 0")
	require(c.RateBurst >= 1, "RATE_BURST must be >= 1")
	require(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")

	require(!blank(c.Messenger.VerifyToken), "FB_VERIFY_TOKEN must not be empty")
	require(!blank(c.Messenger.PageAccessToken), "FB_PAGE_ACCESS_TOKEN must not be empty")
	require(c.Messenger.SendTimeout > 0, "FB_SEND_TIMEOUT must be > 0")
	require(c.LLM.Timeout > 0, "GEMINI_TIMEOUT must be > 0")
	require(c.LLM.Temperature >= 0 && c.LLM.Temperature <= 2, "GEMINI_TEMPERATURE must be in [0,2]")
	if c.Speech.Enabled {
		require(!blank(c.Speech.APIKey), "SPEECH_API_KEY is required when SPEECH_ENABLED")
		require(c.Speech.MaxBytes > 0 && c.Speech.Timeout > 0, "SPEECH_MAX_BYTES and SPEECH_TIMEOUT must be > 0")
	}
	if c.Sheets.Enabled {
		require(!blank(c.Sheets.SpreadsheetID) && !blank(c.Sheets.CredentialsFile),
			"SHEETS_SPREADSHEET_ID and SHEETS_CREDENTIALS_FILE are required when SHEETS_ENABLED")
	}

	require(oneOf(c.Dedupe.Backend, "memory", "sqlite", "redis"),
		"DEDUPE_BACKEND must be one of: memory, sqlite, redis (got %q)", c.Dedupe.Backend)
	require(c.Dedupe.MessageTTL > 0 && c.Dedupe.GreetingTTL > 0, "DEDUPE_MESSAGE_TTL and DEDUPE_GREETING_TTL must be > 0")
	require(c.Dedupe.MaxEntries >= 1, "DEDUPE_MAX_ENTRIES must be >= 1")
	require(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	return errors.Join(errs...)
}

// env returns the parsed value of key, or def when the variable is unset,
// empty, or rejected by parse.
func env[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

var errNotBool = errors.New("not a boolean")

func asIs(s string) (string, error)  { return s, nil }
func lower(s string) (string, error) { return strings.ToLower(strings.TrimSpace(s)), nil }

func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }
func parseInt64(s string) (int64, error)   { return strconv.ParseInt(s, 10, 64) }

func parseBool(s string) (bool, error) {
	if b, ok := sysutil.ParseBool(s); ok {
		return b, nil
	}
	return false, errNotBool
}

func baseURL(s string) (string, error) { return strings.TrimRight(strings.TrimSpace(s), "/"), nil }

// csv splits a comma separated list, dropping blank items.
func csv(s string) ([]string, error) {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out, nil
}

// routePath yields "/x/y" for inputs like "x/y/", and "/" for blank input.
func routePath(p string) (string, error) {
	p = "/" + strings.Trim(strings.TrimSpace(p), "/")
	return p, nil
}

func oneOf(v string, allowed ...string) bool { return slices.Contains(allowed, v) }
