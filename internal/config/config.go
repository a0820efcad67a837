package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the SiteBrief worker.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Trackyard TrackyardConfig
	AI        AIConfig
	Artifact  ArtifactConfig
	Scheduler SchedulerConfig
	Report    ReportConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type TrackyardConfig struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	OpenAI           OpenAIConfig
	Gemini           GeminiConfig
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type ArtifactConfig struct {
	// Backend is "fs" or "http".
	Backend string
	Dir     string
	BaseURL string
	Token   string
	Timeout time.Duration
}

type SchedulerConfig struct {
	PollInterval  time.Duration
	SweepInterval time.Duration
	Retention     time.Duration
	WorkDir       string
}

// ReportConfig holds the pipeline tuning knobs.
type ReportConfig struct {
	MinNotes        int
	MinPhotos       int
	MaxCandidates   int
	MinCandidates   int
	MaxImages       int
	MaxSummaryWords int
	MaxPhotoDays    int
}

var validProviders = map[string]bool{
	"openai": true,
	"gemini": true,
	"mock":   true,
}

var validArtifactBackends = map[string]bool{
	"fs":   true,
	"http": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("SITEBRIEF_PORT", 8080),
			Env:  envString("SITEBRIEF_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Trackyard: TrackyardConfig{
			BaseURL:  os.Getenv("TRACKYARD_BASE_URL"),
			APIToken: os.Getenv("TRACKYARD_API_TOKEN"),
			Timeout:  envDuration("TRACKYARD_TIMEOUT", 30*time.Second),
			CacheTTL: envDuration("TRACKYARD_CACHE_TTL", 10*time.Minute),
		},
		AI: AIConfig{
			Provider:         os.Getenv("AI_PROVIDER"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 60*time.Second),
			OpenAI: OpenAIConfig{
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com"),
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4o"),
			},
			Gemini: GeminiConfig{
				APIKey: os.Getenv("GEMINI_API_KEY"),
				Model:  envString("GEMINI_MODEL", "gemini-1.5-pro"),
			},
		},
		Artifact: ArtifactConfig{
			Backend: envString("ARTIFACT_BACKEND", "fs"),
			Dir:     envString("ARTIFACT_DIR", "artifacts"),
			BaseURL: os.Getenv("ARTIFACT_BASE_URL"),
			Token:   os.Getenv("ARTIFACT_TOKEN"),
			Timeout: envDuration("ARTIFACT_TIMEOUT", 60*time.Second),
		},
		Scheduler: SchedulerConfig{
			PollInterval:  envDuration("SCHEDULER_POLL_INTERVAL", 30*time.Second),
			SweepInterval: envDuration("SCHEDULER_SWEEP_INTERVAL", time.Hour),
			Retention:     envDuration("ARTIFACT_RETENTION", 120*time.Hour),
			WorkDir:       envString("SCHEDULER_WORK_DIR", os.TempDir()),
		},
		Report: ReportConfig{
			MinNotes:        envInt("REPORT_MIN_NOTES", 4),
			MinPhotos:       envInt("REPORT_MIN_PHOTOS", 5),
			MaxCandidates:   envInt("REPORT_MAX_CANDIDATES", 60),
			MinCandidates:   envInt("REPORT_MIN_CANDIDATES", 20),
			MaxImages:       envInt("REPORT_MAX_IMAGES", 12),
			MaxSummaryWords: envInt("REPORT_MAX_SUMMARY_WORDS", 200),
			MaxPhotoDays:    envInt("REPORT_MAX_PHOTO_DAYS", 5),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Trackyard.BaseURL == "" {
		return fmt.Errorf("TRACKYARD_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Trackyard.BaseURL, "http://") && !strings.HasPrefix(c.Trackyard.BaseURL, "https://") {
		return fmt.Errorf("TRACKYARD_BASE_URL must start with http:// or https://, got %q", c.Trackyard.BaseURL)
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of openai, gemini, mock; got %q", c.AI.Provider)
	}
	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if c.AI.Provider == "gemini" && c.AI.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER is gemini")
	}

	if !validArtifactBackends[c.Artifact.Backend] {
		return fmt.Errorf("ARTIFACT_BACKEND must be fs or http; got %q", c.Artifact.Backend)
	}
	if c.Artifact.Backend == "http" && c.Artifact.BaseURL == "" {
		return fmt.Errorf("ARTIFACT_BASE_URL is required when ARTIFACT_BACKEND is http")
	}

	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("SCHEDULER_POLL_INTERVAL must be positive")
	}
	if c.Scheduler.SweepInterval <= 0 {
		return fmt.Errorf("SCHEDULER_SWEEP_INTERVAL must be positive")
	}
	if c.Scheduler.Retention <= 0 {
		return fmt.Errorf("ARTIFACT_RETENTION must be positive")
	}

	if c.Report.MinCandidates > c.Report.MaxCandidates {
		return fmt.Errorf("REPORT_MIN_CANDIDATES (%d) must not exceed REPORT_MAX_CANDIDATES (%d)",
			c.Report.MinCandidates, c.Report.MaxCandidates)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
