package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Classifier providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Default upstream endpoints.
const (
	DefaultIzmirAPIURL    = "https://openapi.izmir.bel.tr/api/izsu/arizakaynaklisukesintileri"
	DefaultIzmirWebURL    = "https://www.izsu.gov.tr/tr/Duyurular/263"
	DefaultAnkaraWebURL   = "https://aski.gov.tr/tr/Kesinti.aspx"
	DefaultIstanbulWebURL = "https://www.iski.istanbul/web/tr-TR/ariza-kesinti"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr           string
	LogLevel           string
	LogFormat          string
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string

	SnapshotPath       string
	RefreshInterval    time.Duration
	RefreshTimeout     time.Duration
	RefreshConcurrency int

	// Upstream sources.
	FetchTimeout    time.Duration
	WebFetchTimeout time.Duration
	UserAgent       string
	IzmirAPIURL     string
	IzmirWebURL     string
	AnkaraWebURL    string
	IstanbulWebURL  string

	// Classifier (LLM) configuration.
	ClassifierProvider string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAIModel        string
	GeminiAPIKey       string
	GeminiModel        string
	ClassifierMaxInput int
	ClassifierTimeout  time.Duration
	ClassifierCacheTTL time.Duration

	// Optional snapshot publishing.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":5000"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		CORSAllowedOrigins: splitList(sharedcfg.EnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),

		SnapshotPath: sharedcfg.EnvOrDefault("SNAPSHOT_PATH", "kesintiler.json"),

		UserAgent:      sharedcfg.EnvOrDefault("USER_AGENT", "Mozilla/5.0"),
		IzmirAPIURL:    sharedcfg.EnvOrDefault("IZMIR_API_URL", DefaultIzmirAPIURL),
		IzmirWebURL:    sharedcfg.EnvOrDefault("IZMIR_WEB_URL", DefaultIzmirWebURL),
		AnkaraWebURL:   sharedcfg.EnvOrDefault("ANKARA_WEB_URL", DefaultAnkaraWebURL),
		IstanbulWebURL: sharedcfg.EnvOrDefault("ISTANBUL_WEB_URL", DefaultIstanbulWebURL),

		ClassifierProvider: strings.ToLower(sharedcfg.EnvOrDefault("CLASSIFIER_PROVIDER", ProviderOpenAI)),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      sharedcfg.EnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:        sharedcfg.EnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        sharedcfg.EnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "water-interruptions"),
	}

	durations := []struct {
		env string
		def string
		dst *time.Duration
	}{
		{"REFRESH_INTERVAL", "15m", &cfg.RefreshInterval},
		{"REFRESH_TIMEOUT", "2m", &cfg.RefreshTimeout},
		{"FETCH_TIMEOUT", "10s", &cfg.FetchTimeout},
		{"WEB_FETCH_TIMEOUT", "15s", &cfg.WebFetchTimeout},
		{"CLASSIFIER_TIMEOUT", "60s", &cfg.ClassifierTimeout},
		{"CLASSIFIER_CACHE_TTL", "1h", &cfg.ClassifierCacheTTL},
	}
	for _, d := range durations {
		if *d.dst, err = parsePositiveDuration(d.env, d.def); err != nil {
			return nil, err
		}
	}

	if cfg.RefreshConcurrency, err = parsePositiveInt("REFRESH_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.ClassifierMaxInput, err = parsePositiveInt("CLASSIFIER_MAX_INPUT", 10000); err != nil {
		return nil, err
	}

	if cfg.SnapshotPath == "" {
		return nil, errors.New("SNAPSHOT_PATH is required")
	}
	if cfg.ClassifierProvider != ProviderOpenAI && cfg.ClassifierProvider != ProviderGemini {
		return nil, fmt.Errorf("CLASSIFIER_PROVIDER must be %q or %q", ProviderOpenAI, ProviderGemini)
	}

	return cfg, nil
}

// ClassifierAPIKey returns the credential for the selected provider. An empty
// key disables LLM classification.
func (c *Config) ClassifierAPIKey() string {
	if c.ClassifierProvider == ProviderGemini {
		return c.GeminiAPIKey
	}
	return c.OpenAIAPIKey
}

// KafkaEnabled reports whether snapshots should be published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parsePositiveDuration(name, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return d, nil
}

func parsePositiveInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", name)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
