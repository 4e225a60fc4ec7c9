package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Layer is a discrete vertical stratum of the dream world.
type Layer int

// Dream world layers.
const (
	LayerLower   Layer = -1
	LayerPrimary Layer = 0
	LayerUpper   Layer = 1
)

// Layers lists every valid layer, lowest first.
var Layers = []Layer{LayerLower, LayerPrimary, LayerUpper}

// String returns the upper-case layer name.
func (l Layer) String() string {
	switch l {
	case LayerLower:
		return "LOWER"
	case LayerPrimary:
		return "PRIMARY"
	case LayerUpper:
		return "UPPER"
	default:
		return fmt.Sprintf("Layer(%d)", int(l))
	}
}

// Valid reports whether l is one of the three known layers.
func (l Layer) Valid() bool {
	return l >= LayerLower && l <= LayerUpper
}

// LayerFromSign maps a signed integer onto a layer: negative values are
// LOWER, zero is PRIMARY and positive values are UPPER.
func LayerFromSign(v int) Layer {
	switch {
	case v < 0:
		return LayerLower
	case v > 0:
		return LayerUpper
	default:
		return LayerPrimary
	}
}

// ParseLayer accepts a layer name (case-insensitive) or a signed integer.
func ParseLayer(s string) (Layer, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "LOWER":
		return LayerLower, nil
	case "PRIMARY":
		return LayerPrimary, nil
	case "UPPER":
		return LayerUpper, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return LayerFromSign(n), nil
	}
	return LayerPrimary, fmt.Errorf("unknown layer %q", s)
}

// MarshalJSON encodes the layer by name.
func (l Layer) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes either a layer name or an integer.
func (l *Layer) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		parsed, err := ParseLayer(name)
		if err != nil {
			return err
		}
		*l = parsed
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("layer must be a name or an integer: %w", err)
	}
	*l = LayerFromSign(n)
	return nil
}

// EntityType classifies an Entity.
type EntityType string

// Entity types.
const (
	EntityPerson   EntityType = "person"
	EntityBeing    EntityType = "being"
	EntityAnimal   EntityType = "animal"
	EntityAbstract EntityType = "abstract"
	EntityObject   EntityType = "object"
)

// EntityTypes lists every valid entity type.
var EntityTypes = []EntityType{EntityPerson, EntityBeing, EntityAnimal, EntityAbstract, EntityObject}

// ParseEntityType maps s case-insensitively onto the entity vocabulary.
// Unknown or empty values become EntityAbstract.
func ParseEntityType(s string) EntityType {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}
	return EntityAbstract
}

// Valid reports whether t belongs to the entity vocabulary.
func (t EntityType) Valid() bool {
	switch t {
	case EntityPerson, EntityBeing, EntityAnimal, EntityAbstract, EntityObject:
		return true
	}
	return false
}

// ChangeAction is the kind of structural edit recorded in the changelog.
type ChangeAction string

// Changelog actions.
const (
	ActionCreate ChangeAction = "create"
	ActionUpdate ChangeAction = "update"
	ActionMerge  ChangeAction = "merge"
	ActionSplit  ChangeAction = "split"
	ActionDelete ChangeAction = "delete"
)

// Changelog subject types.
const (
	SubjectLocation = "location"
	SubjectEntity   = "entity"
)
