// Package config handles loading and validating the narrator configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration for the narrator daemon.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Transports TransportsConfig `mapstructure:"transports"`
	Synthesis  SynthesisConfig  `mapstructure:"synthesis"`
	TTS        TTSConfig        `mapstructure:"tts"`
	Auth       AuthConfig       `mapstructure:"auth"`
	History    HistoryConfig    `mapstructure:"history"`
	Storage    StorageConfig    `mapstructure:"storage"`
	UI         UIConfig         `mapstructure:"ui"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
	GRPC GRPCConfig `mapstructure:"grpc"`
	NATS NATSConfig `mapstructure:"nats"`
}

// HTTPConfig configures the web form and JSON API.
type HTTPConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// NATSConfig configures the NATS request/reply transport.
type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
	Queue   string `mapstructure:"queue"`

	// Embedded starts an in-process NATS server on EmbeddedPort and
	// connects to it instead of URL.
	Embedded     bool `mapstructure:"embedded"`
	EmbeddedPort int  `mapstructure:"embedded_port"`
}

// SynthesisConfig controls the chunked synthesis pipeline and input limits.
type SynthesisConfig struct {
	Backend        string        `mapstructure:"backend"` // espeak, piper, gtts, openai
	MaxWords       int           `mapstructure:"max_words"`
	MaxChars       int           `mapstructure:"max_chars"`       // 0 disables the ceiling
	MaxWordsTotal  int           `mapstructure:"max_words_total"` // 0 disables the ceiling
	OversizePolicy string        `mapstructure:"oversize_policy"` // warn or reject
	LongTextWords  int           `mapstructure:"long_text_words"`
	ChunkTimeout   time.Duration `mapstructure:"chunk_timeout"`
	Concurrency    int           `mapstructure:"concurrency"`
	TempDir        string        `mapstructure:"temp_dir"`
}

// TTSConfig configures the individual speech backends.
type TTSConfig struct {
	Espeak EspeakConfig `mapstructure:"espeak"`
	Piper  PiperConfig  `mapstructure:"piper"`
	GTTS   GTTSConfig   `mapstructure:"gtts"`
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// EspeakConfig holds settings for the local espeak-ng subprocess backend.
type EspeakConfig struct {
	Command      string `mapstructure:"command"` // e.g. "espeak-ng" or "espeak -a 150"
	DefaultVoice string `mapstructure:"default_voice"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
//
// For a single Piper instance that serves all languages, set Endpoint.
// For per-language instances, set Endpoints which maps ISO-639-1 codes to
// individual Wyoming TCP endpoints. If both are set, Endpoints takes
// precedence and Endpoint is the fallback.
type PiperConfig struct {
	Endpoint  string            `mapstructure:"endpoint"`
	Endpoints map[string]string `mapstructure:"endpoints"`
	Voices    map[string]string `mapstructure:"voices"`  // ISO-639-1 code -> voice model name
	Genders   map[string]string `mapstructure:"genders"` // voice model name -> male|female
}

// GTTSConfig holds settings for the Google Translate speech endpoint.
type GTTSConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	DefaultLanguage   string  `mapstructure:"default_language"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// OpenAIConfig holds OpenAI speech API settings.
type OpenAIConfig struct {
	APIKey         string            `mapstructure:"api_key"`
	BaseURL        string            `mapstructure:"base_url"`
	Model          string            `mapstructure:"model"`
	DefaultVoice   string            `mapstructure:"default_voice"`
	ResponseFormat string            `mapstructure:"response_format"` // wav or mp3
	Genders        map[string]string `mapstructure:"genders"`         // voice -> male|female
}

// AuthConfig configures the optional password gate.
type AuthConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Password     string `mapstructure:"password"`
	PasswordHash string `mapstructure:"password_hash"` // bcrypt; wins over Password
}

// HistoryConfig configures the SQLite request history.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
	MaxEntries    int    `mapstructure:"max_entries"`
}

// StorageConfig configures where finished audio may be published.
type StorageConfig struct {
	S3 S3Config `mapstructure:"s3"`
}

// S3Config holds S3-compatible object storage settings.
type S3Config struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Secure    bool   `mapstructure:"secure"`
	Prefix    string `mapstructure:"prefix"`
}

// UIConfig holds the web form's cosmetic settings.
type UIConfig struct {
	Title        string `mapstructure:"title"`
	Tagline      string `mapstructure:"tagline"`
	DonationText string `mapstructure:"donation_text"`
	DonationURL  string `mapstructure:"donation_url"`
}

// RateLimitConfig throttles the HTTP API per client IP.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"` // 0 disables
}

// TelemetryConfig configures metrics and tracing export.
type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	StdoutTraces bool   `mapstructure:"stdout_traces"` // pretty-print spans when no OTLP endpoint is set
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./narrator.yaml, ./configs/narrator.yaml, /etc/narrator/narrator.yaml.
// A .env file in the working directory is loaded into the environment first.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("narrator")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/narrator")
	}

	// Environment variables: NARRATOR_SYNTHESIS_BACKEND, NARRATOR_AUTH_PASSWORD, etc.
	v.SetEnvPrefix("NARRATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envOnlyKeys {
		_ = v.BindEnv(key)
	}

	// The config file is optional; env vars and defaults are sufficient.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${OPENAI_API_KEY}").
	cfg.TTS.OpenAI.APIKey = resolveEnvRef(cfg.TTS.OpenAI.APIKey)
	cfg.Auth.Password = resolveEnvRef(cfg.Auth.Password)
	cfg.Auth.PasswordHash = resolveEnvRef(cfg.Auth.PasswordHash)
	cfg.Storage.S3.AccessKey = resolveEnvRef(cfg.Storage.S3.AccessKey)
	cfg.Storage.S3.SecretKey = resolveEnvRef(cfg.Storage.S3.SecretKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envOnlyKeys have no default, so AutomaticEnv alone would never surface
// them to Unmarshal.
var envOnlyKeys = []string{
	"auth.password",
	"auth.password_hash",
	"tts.openai.api_key",
	"storage.s3.endpoint",
	"storage.s3.access_key",
	"storage.s3.secret_key",
	"storage.s3.bucket",
	"storage.s3.region",
	"ui.donation_text",
	"ui.donation_url",
	"telemetry.otlp_endpoint",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("transports.http.allowed_origins", []string{"*"})
	v.SetDefault("transports.grpc.enabled", false)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.nats.enabled", false)
	v.SetDefault("transports.nats.url", "nats://localhost:4222")
	v.SetDefault("transports.nats.subject", "narrator.synthesize")
	v.SetDefault("transports.nats.queue", "narrator")
	v.SetDefault("transports.nats.embedded", false)
	v.SetDefault("transports.nats.embedded_port", 4222)
	v.SetDefault("synthesis.backend", "espeak")
	v.SetDefault("synthesis.max_words", 250)
	v.SetDefault("synthesis.max_chars", 0)
	v.SetDefault("synthesis.max_words_total", 0)
	v.SetDefault("synthesis.oversize_policy", "warn")
	v.SetDefault("synthesis.long_text_words", 1000)
	v.SetDefault("synthesis.chunk_timeout", "60s")
	v.SetDefault("synthesis.concurrency", 1)
	v.SetDefault("synthesis.temp_dir", "")
	v.SetDefault("tts.espeak.command", "espeak-ng")
	v.SetDefault("tts.espeak.default_voice", "en")
	v.SetDefault("tts.piper.endpoint", "localhost:10200")
	v.SetDefault("tts.gtts.base_url", "https://translate.google.com")
	v.SetDefault("tts.gtts.default_language", "en")
	v.SetDefault("tts.gtts.requests_per_second", 4)
	v.SetDefault("tts.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("tts.openai.model", "tts-1")
	v.SetDefault("tts.openai.default_voice", "alloy")
	v.SetDefault("tts.openai.response_format", "wav")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", "./data/narrator-history.db")
	v.SetDefault("history.retention_days", 30)
	v.SetDefault("history.max_entries", 10000)
	v.SetDefault("storage.s3.enabled", false)
	v.SetDefault("storage.s3.secure", true)
	v.SetDefault("storage.s3.prefix", "narrator/")
	v.SetDefault("ui.title", "Free Text-to-Voice Generator")
	v.SetDefault("ui.tagline", "CPU-friendly • No API key • Works offline")
	v.SetDefault("rate_limit.requests_per_minute", 30)
	v.SetDefault("telemetry.service_name", "narrator")
	v.SetDefault("telemetry.otlp_insecure", true)
	v.SetDefault("telemetry.stdout_traces", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks the loaded configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	switch c.Synthesis.Backend {
	case "espeak", "piper", "gtts", "openai":
	default:
		return fmt.Errorf("synthesis.backend must be one of espeak|piper|gtts|openai, got %q", c.Synthesis.Backend)
	}
	if c.Synthesis.MaxWords <= 0 {
		return errors.New("synthesis.max_words must be positive")
	}
	if c.Synthesis.MaxChars < 0 || c.Synthesis.MaxWordsTotal < 0 {
		return errors.New("synthesis.max_chars and synthesis.max_words_total must be >= 0")
	}
	switch c.Synthesis.OversizePolicy {
	case "warn", "reject":
	default:
		return errors.New("synthesis.oversize_policy must be one of warn|reject")
	}
	if c.Synthesis.ChunkTimeout <= 0 {
		return errors.New("synthesis.chunk_timeout must be positive")
	}
	if c.Synthesis.Concurrency <= 0 {
		return errors.New("synthesis.concurrency must be >= 1")
	}
	if c.Transports.HTTP.Enabled && !validPort(c.Transports.HTTP.Port) {
		return errors.New("transports.http.port must be between 1 and 65535")
	}
	if c.Transports.GRPC.Enabled && !validPort(c.Transports.GRPC.Port) {
		return errors.New("transports.grpc.port must be between 1 and 65535")
	}
	if c.Transports.NATS.Enabled && (c.Transports.NATS.URL == "" || c.Transports.NATS.Subject == "") {
		return errors.New("transports.nats.url and transports.nats.subject must be set when nats is enabled")
	}
	if c.Transports.NATS.Embedded && !validPort(c.Transports.NATS.EmbeddedPort) {
		return errors.New("transports.nats.embedded_port must be between 1 and 65535")
	}
	if !validPort(c.Server.HealthPort) {
		return errors.New("server.health_port must be between 1 and 65535")
	}
	if c.Synthesis.Backend == "openai" && c.TTS.OpenAI.APIKey == "" {
		return errors.New("tts.openai.api_key must be set when synthesis.backend=openai")
	}
	if c.Auth.Enabled && c.Auth.Password == "" && c.Auth.PasswordHash == "" {
		return errors.New("auth.password or auth.password_hash must be set when auth is enabled")
	}
	if c.History.Enabled && c.History.Path == "" {
		return errors.New("history.path must not be empty when history is enabled")
	}
	if c.Storage.S3.Enabled && (c.Storage.S3.Endpoint == "" || c.Storage.S3.Bucket == "") {
		return errors.New("storage.s3.endpoint and storage.s3.bucket must be set when s3 is enabled")
	}
	return nil
}

func validPort(p int) bool { return p > 0 && p <= 65535 }

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
