package upstream

import (
	"time"

	"github.com/illmade-knight/go-postcache/pkg/types"
)

// DemoItems returns the fixed placeholder set served when no credentials are
// configured, so the page always has something to render.
func DemoItems(author string, now time.Time) []types.Item {
	return []types.Item{
		{
			ID:        "1",
			Text:      "Beat the Hammer Game #1 - Victory! 🏆 The challenger couldn't handle the pressure!",
			CreatedAt: now,
			Author:    author,
		},
		{
			ID:        "2",
			Text:      "New challenger approaching! Game starts in 30 minutes. 🔨 Who thinks they can beat The Hammer?",
			CreatedAt: now.Add(-time.Hour),
			Author:    author,
		},
		{
			ID:        "3",
			Text:      "Weekly stats: 12 wins, 8 losses. The Hammer remains strong! 💪 #BeatTheHammer",
			CreatedAt: now.Add(-2 * time.Hour),
			Author:    author,
		},
	}
}
