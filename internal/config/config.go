// Package config assembles tutorly's configuration from defaults, an
// optional YAML file, a .env file and TUTORLY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/tutorly/internal/events"
	"github.com/abhisek/tutorly/internal/ingest"
	"github.com/abhisek/tutorly/internal/lesson"
	"github.com/abhisek/tutorly/internal/llm"
	"github.com/abhisek/tutorly/internal/quiz"
	"github.com/abhisek/tutorly/internal/search"
	"github.com/abhisek/tutorly/internal/session"
)

// Config is the complete application configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`
	DBPath   string `yaml:"db_path"`

	LLM        llm.Config              `yaml:"llm"`
	Session    session.Config          `yaml:"session"`
	Lesson     lesson.Config           `yaml:"lesson"`
	Quiz       quiz.Config             `yaml:"quiz"`
	Digest     ingest.DigestConfig     `yaml:"digest"`
	Transcript ingest.TranscriptConfig `yaml:"transcript"`
	Search     search.Config           `yaml:"search"`
	HTTP       HTTPConfig              `yaml:"http"`
	AMQP       events.Config           `yaml:"amqp"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr        string        `yaml:"addr"`
	CORSOrigins []string      `yaml:"cors_origins"`
	GinMode     string        `yaml:"gin_mode"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:   "info",
		LLM:        llm.DefaultConfig(),
		Session:    session.DefaultConfig(),
		Lesson:     lesson.DefaultConfig(),
		Quiz:       quiz.DefaultConfig(),
		Digest:     ingest.DefaultDigestConfig(),
		Transcript: ingest.DefaultTranscriptConfig(),
		Search:     search.DefaultConfig(),
		HTTP: HTTPConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000"},
			GinMode:     "release",
			ReadTimeout: 30 * time.Second,
		},
		AMQP: events.DefaultConfig(),
	}
}

// Load reads .env (if present), then the YAML file at path (or
// TUTORLY_CONFIG when path is empty), then applies environment overrides.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("TUTORLY_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.LLM = llm.ApplyEnv(cfg.LLM)

	if v := os.Getenv("TUTORLY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TUTORLY_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TUTORLY_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("TUTORLY_CORS_ORIGINS"); v != "" {
		cfg.HTTP.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("TUTORLY_AMQP_URL"); v != "" {
		cfg.AMQP.URL = v
	}
	if v := os.Getenv("TUTORLY_AMQP_EXCHANGE"); v != "" {
		cfg.AMQP.Exchange = v
	}
	if v := os.Getenv("TUTORLY_SEARCH_URL"); v != "" {
		cfg.Search.BaseURL = v
	}

	if v := os.Getenv("TUTORLY_SEARCH_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TUTORLY_SEARCH_ENABLED: %w", err)
		}
		cfg.Search.Enabled = b
	}
	if v := os.Getenv("TUTORLY_REMEDIATION_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TUTORLY_REMEDIATION_LIMIT: %w", err)
		}
		cfg.Session.RemediationLimit = n
	}
	if v := os.Getenv("TUTORLY_PASS_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("TUTORLY_PASS_THRESHOLD: %w", err)
		}
		cfg.Session.PassThreshold = f
	}
	if v := os.Getenv("TUTORLY_MAX_STEPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TUTORLY_MAX_STEPS: %w", err)
		}
		cfg.Lesson.MaxSteps = n
	}
	return nil
}

// Validate checks values that would otherwise fail deep inside a session.
func (c Config) Validate() error {
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if c.Lesson.MaxSteps < 1 {
		return fmt.Errorf("lesson: max steps %d must be at least 1", c.Lesson.MaxSteps)
	}
	if c.Quiz.MiniMaxQuestions < 1 || c.Quiz.MiniMaxQuestions > quiz.MaxMiniQuestions {
		return fmt.Errorf("quiz: mini max questions %d must be between 1 and %d", c.Quiz.MiniMaxQuestions, quiz.MaxMiniQuestions)
	}
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// Logger builds the root logger at the configured level.
func (c Config) Logger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "tutorly",
		Level:  hclog.LevelFromString(c.LogLevel),
		Output: os.Stderr,
	})
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
