package extraction

import "time"

// Providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

// Config configures the extraction provider and its reliability envelope.
type Config struct {
	Provider    string        `yaml:"provider"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Breaker     BreakerConfig `yaml:"breaker"`
}

// BreakerConfig mirrors gobreaker.Settings. The breaker trips once at least
// MinRequests calls were seen in Interval and the failure ratio reaches FailureRatio.
type BreakerConfig struct {
	MaxRequests  uint32        `yaml:"max_requests"`
	Interval     time.Duration `yaml:"interval"`
	OpenTimeout  time.Duration `yaml:"open_timeout"`
	FailureRatio float64       `yaml:"failure_ratio"`
	MinRequests  uint32        `yaml:"min_requests"`
}

// DefaultConfig returns the extraction defaults: OpenAI, 30s timeout,
// temperature 0.3 and 2000 output tokens.
func DefaultConfig() Config {
	return Config{
		Provider:    ProviderOpenAI,
		Timeout:     30 * time.Second,
		Temperature: 0.3,
		MaxTokens:   2000,
		Breaker: BreakerConfig{
			MaxRequests:  1,
			Interval:     time.Minute,
			OpenTimeout:  30 * time.Second,
			FailureRatio: 0.6,
			MinRequests:  3,
		},
	}
}

// ModelOrDefault returns the configured model or the provider default.
func (c Config) ModelOrDefault() string {
	if c.Model != "" {
		return c.Model
	}
	if c.Provider == ProviderGemini {
		return "gemini-2.5-flash"
	}
	return "gpt-4-turbo-preview"
}
