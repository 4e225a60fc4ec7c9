package mcpserver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/dreamland/internal/extraction"
	"github.com/starford/dreamland/internal/models"
)

// WorldGuideURI is the resource address of the world guide.
const WorldGuideURI = "dreamland://world-guide"

const guideIntro = `# Dreamland World Guide

Dreamland turns dream journal entries into a persistent map. Each dream is
read for places (locations), beings (entities) and movements between places
(transits). Places that recur across dreams are merged by name, so the map
grows more accurate as more dreams are recorded.

## Recording dreams

Use record_dream with the free text of one dream. Date is YYYY-MM-DD and
defaults to today; cycle counts sleep cycles within one night and starts at 1;
language is a short code such as en or de. Reconciliation runs in the
background, so the map may take a moment to reflect a new dream.

## Coordinates

x and y range from -1 to 1. A location that reappears drifts toward the
average of all positions it was observed at. Frequency counts observations.
`

// WorldGuide describes layers, archetypes, entity types and the color palette.
func WorldGuide() string {
	var b strings.Builder
	b.WriteString(guideIntro)

	b.WriteString("\n## Layers\n\n")
	for _, l := range models.Layers {
		fmt.Fprintf(&b, "- %s (%d)\n", l, int(l))
	}

	b.WriteString("\n## Archetypes and colors\n\n")
	palette := extraction.Palette()
	names := make([]string, 0, len(palette))
	for name := range palette {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %s\n", name, palette[name])
	}

	b.WriteString("\n## Entity types\n\n")
	for _, t := range models.EntityTypes {
		fmt.Fprintf(&b, "- %s\n", t)
	}

	b.WriteString("\n## Curating the map\n\n")
	b.WriteString("Two locations that are really the same place can be combined with\n" +
		"merge_locations. The merged location takes the mean position and the\n" +
		"summed frequency of its sources, and every dream, entity and transit is\n" +
		"moved onto it.\n")
	return b.String()
}
