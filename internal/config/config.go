// Package config loads server settings from the environment, optionally
// layered over a YAML file named by CONFIG_FILE.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all server settings. Environment variables override YAML
// values; secrets are env-only (yaml:"-").
type Config struct {
	Port        int      `yaml:"port" env:"PORT" env-default:"8080"`
	DBPath      string   `yaml:"db_path" env:"DB_PATH" env-default:"data/unityboard.db"`
	StaticDir   string   `yaml:"static_dir" env:"STATIC_DIR" env-default:"web/dist"`
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:"," env-default:"http://localhost:5173"`

	JWTSecret    string        `yaml:"-" env:"JWT_SECRET"`
	JWTExpiry    time.Duration `yaml:"jwt_expiry" env:"JWT_EXPIRY" env-default:"168h"`
	CookieSecure bool          `yaml:"cookie_secure" env:"COOKIE_SECURE" env-default:"false"`

	Upload   UploadConfig   `yaml:"upload"`
	GitHub   GitHubConfig   `yaml:"github"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	Reminder ReminderConfig `yaml:"reminder"`
	Log      LogConfig      `yaml:"log"`
}

type UploadConfig struct {
	Dir      string `yaml:"dir" env:"UPLOAD_DIR" env-default:"data/uploads"`
	MaxBytes int64  `yaml:"max_bytes" env:"UPLOAD_MAX_BYTES" env-default:"10485760"`
}

// GitHubConfig enables GitHub sign-in when ClientID is set.
type GitHubConfig struct {
	ClientID     string `yaml:"client_id" env:"GITHUB_CLIENT_ID"`
	ClientSecret string `yaml:"-" env:"GITHUB_CLIENT_SECRET"`
	CallbackURL  string `yaml:"callback_url" env:"GITHUB_CALLBACK_URL"`
}

type SandboxConfig struct {
	Enabled bool `yaml:"enabled" env:"SANDBOX_ENABLED" env-default:"false"`
}

// ReminderConfig drives the due-date sweep: every Interval, tasks due within
// Window are reminded once.
type ReminderConfig struct {
	Interval time.Duration `yaml:"interval" env:"REMINDER_INTERVAL" env-default:"1h"`
	Window   time.Duration `yaml:"window" env:"REMINDER_WINDOW" env-default:"24h"`
}

type LogConfig struct {
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// Load reads the configuration and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading: %w", err)
	}
	if cfg.GitHub.CallbackURL == "" {
		cfg.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/api/auth/github/callback", cfg.Port)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_BYTES must be positive"))
	}
	if c.Reminder.Interval <= 0 {
		errs = append(errs, errors.New("REMINDER_INTERVAL must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level; unknown values mean info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewLogger builds the process logger: JSON when Format is "json", text otherwise.
func (l LogConfig) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
