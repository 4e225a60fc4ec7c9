package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/dreamland/internal/extraction"
	"github.com/starford/dreamland/internal/worker"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Extraction extraction.Config `yaml:"extraction"`
	Worker     worker.Config     `yaml:"worker"`
	Inbox      InboxConfig       `yaml:"inbox"`
	Events     EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.SQLite.Validate(); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if err := validateExtraction(&c.Extraction); err != nil {
		return fmt.Errorf("extraction: %w", err)
	}
	if err := validation.ValidateStruct(&c.Worker,
		validation.Field(&c.Worker.Concurrency, validation.Required, validation.Min(1)),
		validation.Field(&c.Worker.QueueSize, validation.Required, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	if err := c.Inbox.Validate(); err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.AllowedOrigins, validation.Each(validation.By(origin))),
	)
}

// origin accepts a URL or the "*" wildcard.
func origin(v any) error {
	s, _ := v.(string)
	if s == "*" {
		return nil
	}
	return validation.Validate(s, validation.Required, is.URL)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

func validateExtraction(c *extraction.Config) error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required,
			validation.In(extraction.ProviderOpenAI, extraction.ProviderGemini, extraction.ProviderNone)),
		validation.Field(&c.BaseURL, is.URL),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&c.MaxTokens, validation.Required, validation.Min(1)),
		validation.Field(&c.Breaker, validation.By(func(any) error {
			return validation.ValidateStruct(&c.Breaker,
				validation.Field(&c.Breaker.FailureRatio, validation.Min(0.0), validation.Max(1.0)),
			)
		})),
	)
}

// InboxConfig holds the journal inbox directory watched for new dreams.
type InboxConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the inbox configuration.
func (c *InboxConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// EventsConfig holds SSE broadcast settings.
type EventsConfig struct {
	// Throttle is the minimum spacing between world.updated events.
	Throttle time.Duration `yaml:"throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Throttle, validation.Required, validation.Min(time.Millisecond)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:           8080,
				AllowedOrigins: []string{"http://localhost:5173"},
			},
		},
		SQLite: SQLiteConfig{
			Path: "./dreamland.db",
		},
		Extraction: extraction.DefaultConfig(),
		Worker: worker.Config{
			Concurrency: 2,
			QueueSize:   256,
		},
		Inbox: InboxConfig{
			Path: "./inbox",
		},
		Events: EventsConfig{
			Throttle: 2 * time.Second,
		},
	}
}
