package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is read from the environment once, in cmd/*.
type Config struct {
	Port      int    `env:"PORT" envDefault:"3000"`
	StaticDir string `env:"STATIC_DIR" envDefault:"."`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	APIKey      string        `env:"OPENROUTER_API_KEY"`
	ParamPrefix string        `env:"PARAM_PREFIX"`
	BaseURL     string        `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	Model       string        `env:"OPENROUTER_MODEL" envDefault:"mistralai/mistral-small-3.1-24b-instruct:free"`
	Timeout     time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"30s"`

	SiteURL    string `env:"SITE_URL" envDefault:"https://erkin.me"`
	SiteTitle  string `env:"SITE_TITLE" envDefault:"Erkin's Personal Website"`
	OwnerName  string `env:"OWNER_NAME" envDefault:"Erkin Ovlyagulyyev"`
	OwnerTitle string `env:"OWNER_TITLE" envDefault:"Flutter Developer"`

	MaxPromptLength int `env:"MAX_PROMPT_LENGTH" envDefault:"4000"`
	MaxHistoryItems int `env:"MAX_HISTORY_ITEMS" envDefault:"20"`

	AuditTable string `env:"AUDIT_TABLE"`

	// RenderMarkdown renders replies as markdown on the streaming endpoint.
	RenderMarkdown bool `env:"RENDER_MARKDOWN" envDefault:"false"`
}

// Load reads an optional .env file from files (default ".env") and then the
// process environment. Variables already set in the environment win over the
// file.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	return parse(env.Options{})
}

// FromMap builds a Config from vars only, ignoring the process environment.
func FromMap(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, errors.New("OPENROUTER_MODEL must not be empty"))
	}
	if strings.TrimSpace(c.OwnerName) == "" {
		errs = append(errs, errors.New("OWNER_NAME must not be empty"))
	}
	if c.MaxPromptLength <= 0 {
		errs = append(errs, fmt.Errorf("MAX_PROMPT_LENGTH must be positive: %d", c.MaxPromptLength))
	}
	if c.MaxHistoryItems < 0 {
		errs = append(errs, fmt.Errorf("MAX_HISTORY_ITEMS must not be negative: %d", c.MaxHistoryItems))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("UPSTREAM_TIMEOUT must be positive: %s", c.Timeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// UsesParamStore reports whether the API key must come from SSM.
func (c Config) UsesParamStore() bool {
	return strings.TrimSpace(c.APIKey) == "" && strings.TrimSpace(c.ParamPrefix) != ""
}

// SlogLevel maps LOG_LEVEL to a slog level; unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
