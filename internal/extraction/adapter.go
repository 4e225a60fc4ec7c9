package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/starford/dreamland/internal/apperr"
	"github.com/starford/dreamland/internal/metrics"
)

// Adapter wraps a Service with a timeout, a circuit breaker and the keyword
// fallback. Extract never fails.
type Adapter struct {
	svc     Service
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
	metrics *metrics.Collector
}

// NewAdapter builds an Adapter around svc. A nil svc always falls back.
func NewAdapter(svc Service, cfg Config, logger *slog.Logger, m *metrics.Collector) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	bc := cfg.Breaker
	if bc == (BreakerConfig{}) {
		bc = DefaultConfig().Breaker
	}
	name := "extraction"
	if svc != nil {
		name = svc.Name()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bc.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("extraction circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return &Adapter{svc: svc, timeout: cfg.Timeout, breaker: breaker, logger: logger, metrics: m}
}

// NewService builds the provider named by cfg.Provider. It returns nil
// without error when extraction is disabled or no API key is set.
func NewService(ctx context.Context, cfg Config) (Service, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAI(cfg, &http.Client{}), nil
	case ProviderGemini:
		g, err := NewGemini(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return g, nil
	case ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("extraction: unknown provider %q", cfg.Provider)
	}
}

// Extract runs the service under the timeout and breaker, falling back to
// the keyword extractor on any failure.
func (a *Adapter) Extract(ctx context.Context, text, language string) Outcome {
	if a.svc == nil {
		return a.fallback(text, ReasonUnconfigured, nil)
	}

	v, err := a.breaker.Execute(func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		p, err := a.svc.Extract(cctx, text, language)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
		}
		return p, nil
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return a.fallback(text, ReasonCircuitOpen, err)
	case errors.Is(err, ErrMalformed):
		return a.fallback(text, ReasonMalformed, err)
	case err != nil:
		return a.fallback(text, ReasonUnavailable, apperr.Unavailable(a.svc.Name(), err))
	}

	a.metrics.Extraction(string(SourceService))
	return Outcome{Result: Normalize(v.(*Payload)), Source: SourceService}
}

// State reports the breaker state, for readiness output.
func (a *Adapter) State() string {
	if a.svc == nil {
		return "disabled"
	}
	return a.breaker.State().String()
}

func (a *Adapter) fallback(text string, reason Reason, err error) Outcome {
	attrs := []any{slog.String("reason", string(reason))}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	a.logger.Warn("using fallback extractor", attrs...)
	a.metrics.Extraction(string(SourceFallback))
	return Outcome{Result: Fallback(text), Source: SourceFallback, Reason: reason}
}
