package internal

import (
	"io"

	"github.com/starford/dreamland/internal/extraction"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput io.Writer
	extractor extraction.Service
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput redirects the JSON log stream, which defaults to stdout.
// The MCP command logs to stderr because stdout carries the protocol.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithExtractionService replaces the provider built from the extraction config.
func WithExtractionService(svc extraction.Service) Option {
	return func(a *application) {
		a.extractor = svc
	}
}
