package extraction

import (
	"strings"

	"github.com/starford/dreamland/internal/models"
)

// UnknownColor is used for the placeholder location of the fallback extractor.
const UnknownColor = "#6b7280"

type keywordRule struct {
	words    []string
	location LocationCandidate
}

// Keyword rules of the fallback extractor, checked in order.
var locationRules = []keywordRule{
	{
		words: []string{"house", "home", "room"},
		location: LocationCandidate{
			Name: "Home", Archetype: "home", Layer: models.LayerPrimary,
			Symbol: "🏠", Description: "A familiar home setting", Color: "#3b82f6",
		},
	},
	{
		words: []string{"forest", "tree", "woods"},
		location: LocationCandidate{
			Name: "Forest", Archetype: "forest", Layer: models.LayerPrimary, X: 0.5, Y: 0.3,
			Symbol: "🌲", Description: "A mysterious forest", Color: "#22c55e",
		},
	},
	{
		words: []string{"water", "ocean", "sea", "lake"},
		location: LocationCandidate{
			Name: "Water", Archetype: "water", Layer: models.LayerPrimary, X: -0.3, Y: 0.5,
			Symbol: "🌊", Description: "A body of water", Color: "#06b6d4",
		},
	},
}

var unknownPlace = LocationCandidate{
	Name: "Unknown Place", Archetype: "abstract", Layer: models.LayerPrimary,
	Symbol: "❓", Description: "An unidentified location", Color: UnknownColor,
}

var personWords = []string{"person", "man", "woman", "friend", "stranger"}

var unknownPerson = EntityCandidate{
	EntityInput: models.EntityInput{
		Name: "Unknown Person", Type: models.EntityPerson,
		Symbol: "👤", Confidence: 0.7, Description: "A person from the dream",
	},
}

// Fallback is the deterministic keyword extractor. Keywords match anywhere
// in the lower-cased text, so plurals and inflections hit. It always yields
// at least one location and never yields transits.
func Fallback(text string) Result {
	lower := strings.ToLower(text)
	has := func(words []string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}

	res := Result{
		Locations: []LocationCandidate{},
		Entities:  []EntityCandidate{},
		Transits:  []TransitCandidate{},
	}
	for _, rule := range locationRules {
		if has(rule.words) {
			res.Locations = append(res.Locations, rule.location)
		}
	}
	if len(res.Locations) == 0 {
		res.Locations = append(res.Locations, unknownPlace)
	}
	if has(personWords) {
		res.Entities = append(res.Entities, unknownPerson)
	}
	return res
}
