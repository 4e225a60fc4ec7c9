package internal

import (
	"time"

	"github.com/starford/dreamland/internal/worldservice"
)

// SampleDreams returns three demonstration dreams dated over the days
// leading up to now.
func SampleDreams(now time.Time) []worldservice.DreamInput {
	day := now.UTC().Truncate(24 * time.Hour)
	return []worldservice.DreamInput{
		{
			Date:     day.AddDate(0, 0, -2),
			Cycle:    1,
			Language: "en",
			Content: "I was in my childhood home. The rooms were familiar but somehow different. " +
				"I walked through the garden and found a hidden door leading to a forest.",
		},
		{
			Date:     day.AddDate(0, 0, -1),
			Cycle:    1,
			Language: "en",
			Content: "I found myself in a vast library with endless shelves. Books were floating in the air. " +
				"I met an old friend who handed me a glowing book.",
		},
		{
			Date:     day,
			Cycle:    1,
			Language: "en",
			Content: "I was swimming in a crystal clear ocean. Below me I could see an underwater city with lights. " +
				"I dove down and entered through a grand archway.",
		},
	}
}
