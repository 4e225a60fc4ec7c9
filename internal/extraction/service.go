// Package extraction turns free dream text into candidate locations,
// entities and transits. A language-model Service is tried first; the
// deterministic keyword extractor covers every failure mode.
package extraction

import (
	"context"
	"errors"

	"github.com/starford/dreamland/internal/models"
)

// ErrMalformed reports a service response that is not the expected JSON shape.
var ErrMalformed = errors.New("malformed extraction payload")

// Service is an external text-understanding backend. Implementations return
// the raw structured payload; interpretation happens in Normalize.
type Service interface {
	Name() string
	Extract(ctx context.Context, text, language string) (*Payload, error)
}

// LocationCandidate is an extracted place not yet resolved against the store.
type LocationCandidate = models.LocationInput

// EntityCandidate is an extracted entity. Location optionally names the
// candidate location the entity belongs to.
type EntityCandidate struct {
	models.EntityInput
	Location string `json:"location,omitempty"`
}

// TransitCandidate references its endpoints by extracted location name.
type TransitCandidate struct {
	From       string  `json:"from_location"`
	To         string  `json:"to_location"`
	Trigger    string  `json:"trigger"`
	Confidence float64 `json:"confidence"`
}

// Result is one dream's normalized candidate set.
type Result struct {
	Locations []LocationCandidate `json:"locations"`
	Entities  []EntityCandidate   `json:"entities"`
	Transits  []TransitCandidate  `json:"transits"`
}

// Source names where a Result came from.
type Source string

const (
	SourceService  Source = "service"
	SourceFallback Source = "fallback"
)

// Reason explains a fallback.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonUnconfigured Reason = "unconfigured"
	ReasonCircuitOpen  Reason = "circuit_open"
	ReasonUnavailable  Reason = "unavailable"
	ReasonMalformed    Reason = "malformed"
)

// Outcome is what the Adapter hands to reconciliation.
type Outcome struct {
	Result Result
	Source Source
	Reason Reason
}
