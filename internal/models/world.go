// Package models defines the domain types of the dream world model.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultColor is the display color used when an archetype is unknown.
const DefaultColor = "#3b82f6"

// Dream is one journaled entry.
type Dream struct {
	ID        int64     `json:"id"`
	Date      time.Time `json:"date"`
	Cycle     int       `json:"cycle"`
	Content   string    `json:"content"`
	Language  string    `json:"language"`
	Processed bool      `json:"processed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location is a deduplicated place in the world model.
type Location struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Archetype   string    `json:"archetype"`
	Layer       Layer     `json:"layer"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Symbol      string    `json:"symbol"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	Frequency   int       `json:"frequency"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LocationInput holds the attributes needed to create a Location.
type LocationInput struct {
	Name        string  `json:"name"`
	Archetype   string  `json:"archetype"`
	Layer       Layer   `json:"layer"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Symbol      string  `json:"symbol"`
	Description string  `json:"description"`
	Color       string  `json:"color"`
}

// Entity is a deduplicated character, object, being, animal or concept.
type Entity struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Type        EntityType `json:"type"`
	Description string     `json:"description"`
	Symbol      string     `json:"symbol"`
	Confidence  float64    `json:"confidence"`
	LocationID  *int64     `json:"location_id"`
	CreatedAt   time.Time  `json:"created_at"`
}

// EntityInput holds the attributes needed to create an Entity.
type EntityInput struct {
	Name        string     `json:"name"`
	Type        EntityType `json:"type"`
	Description string     `json:"description"`
	Symbol      string     `json:"symbol"`
	Confidence  float64    `json:"confidence"`
	LocationID  *int64     `json:"location_id,omitempty"`
}

// Transit is a directed movement between two locations within one dream.
type Transit struct {
	ID             int64     `json:"id"`
	DreamID        int64     `json:"dream_id"`
	FromLocationID int64     `json:"from_location_id"`
	ToLocationID   int64     `json:"to_location_id"`
	Trigger        string    `json:"trigger"`
	Confidence     float64   `json:"confidence"`
	CreatedAt      time.Time `json:"created_at"`
}

// DreamLocation links a dream to a location in order of appearance.
type DreamLocation struct {
	ID         int64 `json:"id"`
	DreamID    int64 `json:"dream_id"`
	LocationID int64 `json:"location_id"`
	Order      int   `json:"order"`
}

// DreamEntity links a dream to an entity.
type DreamEntity struct {
	ID       int64 `json:"id"`
	DreamID  int64 `json:"dream_id"`
	EntityID int64 `json:"entity_id"`
}

// ChangeLog is an immutable audit record of a structural edit.
type ChangeLog struct {
	ID         int64           `json:"id"`
	Action     ChangeAction    `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   int64           `json:"entity_id"`
	OldData    json.RawMessage `json:"old_data,omitempty"`
	NewData    json.RawMessage `json:"new_data,omitempty"`
	MergedFrom []int64         `json:"merged_from,omitempty"`
	SplitInto  []int64         `json:"split_into,omitempty"`
	UserNote   string          `json:"user_note,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// WorldStats aggregates counts over the world model.
type WorldStats struct {
	TotalDreams          int       `json:"total_dreams"`
	TotalLocations       int       `json:"total_locations"`
	TotalEntities        int       `json:"total_entities"`
	TotalTransits        int       `json:"total_transits"`
	MostFrequentLocation *Location `json:"most_frequent_location"`
	LatestDream          *Dream    `json:"latest_dream"`
}

// WorldExport is a snapshot of the whole world model.
type WorldExport struct {
	ExportID   string     `json:"export_id"`
	ExportDate time.Time  `json:"export_date"`
	Dreams     []Dream    `json:"dreams"`
	Locations  []Location `json:"locations"`
	Entities   []Entity   `json:"entities"`
	Transits   []Transit  `json:"transits"`
}

// ParseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp
// and returns it in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return t.UTC(), nil
}

// NameKey returns the case-insensitive dedup key for a Location or Entity name.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ClampUnit clamps v to [-1, 1].
func ClampUnit(v float64) float64 {
	return clamp(v, -1, 1)
}

// ClampConfidence clamps v to [0, 1].
func ClampConfidence(v float64) float64 {
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v != v { // NaN
		return 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
