package extraction

import "fmt"

const systemPrompt = "You are a dream analysis expert. Always respond with valid JSON only."

const extractionPrompt = `You are an expert dream analyst. Analyze the following dream and extract structured information.

Dream language: %s

Dream content:
%s

Extract the following information in JSON format:

1. Locations: places visited in the dream
   - name: descriptive name
   - archetype: type of place (home, forest, city, water, cave, building, sky, underground, ...)
   - layer: -1 (underworld/subconscious), 0 (normal reality) or 1 (higher realm/sky)
   - x: float between -1 and 1 (east-west position)
   - y: float between -1 and 1 (north-south position)
   - symbol: an appropriate emoji
   - description: brief description

2. Entities: people, beings, animals, objects or abstract concepts
   - name: who or what it is
   - type: "person", "being", "animal", "abstract" or "object"
   - symbol: an appropriate emoji
   - confidence: 0.0 to 1.0
   - description: brief description
   - location: name of the location above where it appears, if any

3. Transits: movements between the locations above
   - from_location: name of the starting location
   - to_location: name of the destination location
   - trigger: what caused the movement
   - confidence: 0.0 to 1.0

Return ONLY valid JSON in this exact format:
{
  "locations": [{"name": "...", "archetype": "...", "layer": 0, "x": 0.0, "y": 0.0, "symbol": "...", "description": "..."}],
  "entities": [{"name": "...", "type": "person", "symbol": "...", "confidence": 1.0, "description": "...", "location": "..."}],
  "transits": [{"from_location": "...", "to_location": "...", "trigger": "...", "confidence": 1.0}]
}`

func buildPrompt(text, language string) string {
	if language == "" {
		language = "en"
	}
	return fmt.Sprintf(extractionPrompt, language, text)
}
