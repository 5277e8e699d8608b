// Package config loads the service configuration once at startup.
//
// Precedence, lowest first: defaults, settings file (CRM_SETTINGS_FILE, JSON or
// YAML), .env, process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Database Database `yaml:"database"`
	Gemini   Gemini   `yaml:"gemini"`
	RabbitMQ RabbitMQ `yaml:"rabbitmq"`
	Redis    Redis    `yaml:"redis"`
	SMTP     SMTP     `yaml:"smtp"`
	Calendly Calendly `yaml:"calendly"`
	Log      Log      `yaml:"log"`
}

type HTTP struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// AIRateLimit is the number of /ai requests allowed per client per minute. 0 disables.
	AIRateLimit int `yaml:"ai_rate_limit"`
	// TrustProxyHeaders identifies clients by X-Forwarded-For / X-Real-IP.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
}

type Database struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type Gemini struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	// StructuredOutput asks the model for application/json with a response schema.
	StructuredOutput bool `yaml:"structured_output"`
}

func (g Gemini) Enabled() bool { return g.APIKey != "" }

type RabbitMQ struct {
	URL string `yaml:"url"`
}

type Redis struct {
	URL string `yaml:"url"`
}

type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

func (s SMTP) Enabled() bool { return s.Host != "" }

type Calendly struct {
	SigningKey string `yaml:"signing_key"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

func Defaults() Config {
	return Config{
		HTTP: HTTP{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
			AIRateLimit:    30,
		},
		Database: Database{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Gemini: Gemini{
			Model:            "gemini-2.0-flash",
			StructuredOutput: true,
		},
		SMTP: SMTP{Port: 587},
		Log:  Log{Level: "info", Format: "json"},
	}
}

// Load reads the settings file (if any), the .env file (if any) and the
// environment, then validates the result.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CRM_SETTINGS_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// .env is optional, like in local development.
	_ = godotenv.Load()

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read settings file: %w", err)
	}
	// JSON is valid YAML, so appsettings.json style files work as well.
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse settings file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.HTTP.Addr, "HTTP_ADDR")
	if v, ok := os.LookupEnv("CORS_ALLOWED_ORIGINS"); ok {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}

	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Gemini.Model, "GEMINI_MODEL")
	setString(&cfg.Gemini.BaseURL, "GEMINI_BASE_URL")
	setString(&cfg.RabbitMQ.URL, "RABBITMQ_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.SMTP.Host, "SMTP_HOST")
	setString(&cfg.SMTP.User, "SMTP_USER")
	setString(&cfg.SMTP.Password, "SMTP_PASS")
	setString(&cfg.SMTP.From, "SMTP_FROM")
	setString(&cfg.Calendly.SigningKey, "CALENDLY_WEBHOOK_SIGNING_KEY")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")

	var errs []error
	if err := setInt(&cfg.HTTP.AIRateLimit, "AI_RATE_LIMIT"); err != nil {
		errs = append(errs, err)
	}
	if err := setInt(&cfg.SMTP.Port, "SMTP_PORT"); err != nil {
		errs = append(errs, err)
	}
	if err := setBool(&cfg.Gemini.StructuredOutput, "GEMINI_STRUCTURED_OUTPUT"); err != nil {
		errs = append(errs, err)
	}
	if err := setBool(&cfg.HTTP.TrustProxyHeaders, "TRUST_PROXY_HEADERS"); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate checks the settings every component relies on.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Database.URL) == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("HTTP_ADDR must not be empty"))
	}
	if c.HTTP.AIRateLimit < 0 {
		errs = append(errs, errors.New("AI_RATE_LIMIT must not be negative"))
	}
	if c.Gemini.Enabled() && c.Gemini.Model == "" {
		errs = append(errs, errors.New("GEMINI_MODEL must not be empty when GEMINI_API_KEY is set"))
	}
	if c.SMTP.Enabled() && c.SMTP.From == "" {
		errs = append(errs, errors.New("SMTP_FROM is required when SMTP_HOST is set"))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
