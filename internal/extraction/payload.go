package extraction

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/starford/dreamland/internal/models"
)

// Payload is the service response decoded field by field. Missing or
// mistyped fields hold their documented defaults.
type Payload struct {
	Locations []RawLocation
	Entities  []RawEntity
	Transits  []RawTransit
}

type RawLocation struct {
	Name        string
	Archetype   string
	Layer       models.Layer
	X, Y        float64
	Symbol      string
	Description string
}

type RawEntity struct {
	Name        string
	Type        string
	Symbol      string
	Confidence  float64
	Description string
	Location    string
}

type RawTransit struct {
	From       string
	To         string
	Trigger    string
	Confidence float64
}

type object map[string]json.RawMessage

// ParsePayload decodes a service response. Markdown code fences around the
// JSON are tolerated. The response must be a JSON object carrying at least
// one of the locations, entities or transits lists.
func ParsePayload(raw string) (*Payload, error) {
	var top object
	if err := json.Unmarshal([]byte(stripFences(raw)), &top); err != nil || top == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}
	_, hasLoc := top["locations"]
	_, hasEnt := top["entities"]
	_, hasTr := top["transits"]
	if !hasLoc && !hasEnt && !hasTr {
		return nil, fmt.Errorf("%w: no locations, entities or transits", ErrMalformed)
	}

	p := &Payload{}
	for _, o := range objects(top["locations"]) {
		p.Locations = append(p.Locations, RawLocation{
			Name:        o.str("name"),
			Archetype:   o.str("archetype"),
			Layer:       o.layer("layer"),
			X:           o.num("x", 0),
			Y:           o.num("y", 0),
			Symbol:      o.str("symbol"),
			Description: o.str("description"),
		})
	}
	for _, o := range objects(top["entities"]) {
		p.Entities = append(p.Entities, RawEntity{
			Name:        o.str("name"),
			Type:        o.str("type"),
			Symbol:      o.str("symbol"),
			Confidence:  o.num("confidence", 1),
			Description: o.str("description"),
			Location:    o.str("location", "location_name"),
		})
	}
	for _, o := range objects(top["transits"]) {
		p.Transits = append(p.Transits, RawTransit{
			From:       o.str("from_location", "from_location_name", "from"),
			To:         o.str("to_location", "to_location_name", "to"),
			Trigger:    o.str("trigger"),
			Confidence: o.num("confidence", 1),
		})
	}
	return p, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // language tag
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// objects decodes a JSON array of objects, skipping elements of any other shape.
func objects(raw json.RawMessage) []object {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]object, 0, len(items))
	for _, it := range items {
		var o object
		if err := json.Unmarshal(it, &o); err == nil && o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (o object) str(keys ...string) string {
	for _, k := range keys {
		var s string
		if err := json.Unmarshal(o[k], &s); err == nil && s != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// num accepts JSON numbers and numeric strings.
func (o object) num(key string, def float64) float64 {
	raw, ok := o[key]
	if !ok || string(raw) == "null" {
		return def
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return def
}

// layer follows the sign of a numeric value; layer names are accepted too.
func (o object) layer(key string) models.Layer {
	var s string
	if err := json.Unmarshal(o[key], &s); err == nil {
		if l, err := models.ParseLayer(s); err == nil {
			return l
		}
		return models.LayerPrimary
	}
	f := o.num(key, 0)
	if math.IsNaN(f) {
		return models.LayerPrimary
	}
	switch {
	case f < 0:
		return models.LayerLower
	case f > 0:
		return models.LayerUpper
	}
	return models.LayerPrimary
}
