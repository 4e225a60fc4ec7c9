package extraction

import (
	"strings"

	"github.com/starford/dreamland/internal/models"
)

// palette maps archetypes to display colors. Unknown archetypes use models.DefaultColor.
var palette = map[string]string{
	"home":        "#3b82f6",
	"forest":      "#22c55e",
	"city":        "#6366f1",
	"water":       "#06b6d4",
	"cave":        "#78716c",
	"building":    "#8b5cf6",
	"sky":         "#38bdf8",
	"underground": "#44403c",
}

// Palette returns a copy of the archetype color table.
func Palette() map[string]string {
	out := make(map[string]string, len(palette))
	for k, v := range palette {
		out[k] = v
	}
	return out
}

// ColorFor returns the display color for an archetype, case-insensitively.
func ColorFor(archetype string) string {
	if c, ok := palette[strings.ToLower(strings.TrimSpace(archetype))]; ok {
		return c
	}
	return models.DefaultColor
}

// Normalize applies defaults and bounds to a decoded payload. Items without
// a name are dropped, as are transits missing either endpoint.
func Normalize(p *Payload) Result {
	res := Result{
		Locations: []LocationCandidate{},
		Entities:  []EntityCandidate{},
		Transits:  []TransitCandidate{},
	}
	if p == nil {
		return res
	}
	for _, l := range p.Locations {
		if l.Name == "" {
			continue
		}
		res.Locations = append(res.Locations, LocationCandidate{
			Name:        l.Name,
			Archetype:   l.Archetype,
			Layer:       l.Layer,
			X:           models.ClampUnit(l.X),
			Y:           models.ClampUnit(l.Y),
			Symbol:      l.Symbol,
			Description: l.Description,
			Color:       ColorFor(l.Archetype),
		})
	}
	for _, e := range p.Entities {
		if e.Name == "" {
			continue
		}
		res.Entities = append(res.Entities, EntityCandidate{
			EntityInput: models.EntityInput{
				Name:        e.Name,
				Type:        models.ParseEntityType(e.Type),
				Description: e.Description,
				Symbol:      e.Symbol,
				Confidence:  models.ClampConfidence(e.Confidence),
			},
			Location: e.Location,
		})
	}
	for _, t := range p.Transits {
		if t.From == "" || t.To == "" {
			continue
		}
		res.Transits = append(res.Transits, TransitCandidate{
			From:       t.From,
			To:         t.To,
			Trigger:    t.Trigger,
			Confidence: models.ClampConfidence(t.Confidence),
		})
	}
	return res
}
