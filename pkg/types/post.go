package types

import (
	"time"
)

// MediaType is the kind of a media attachment as reported by the upstream API.
type MediaType string

const (
	MediaPhoto       MediaType = "photo"
	MediaVideo       MediaType = "video"
	MediaAnimatedGIF MediaType = "animated_gif"
)

// MediaAttachment is an image, video or animated clip referenced by an Item.
type MediaAttachment struct {
	// MediaKey is unique within the owning Item.
	MediaKey        string    `json:"media_key"`
	Type            MediaType `json:"type"`
	URL             string    `json:"url,omitempty"`
	PreviewImageURL string    `json:"preview_image_url,omitempty"`
	Width           int       `json:"width,omitempty"`
	Height          int       `json:"height,omitempty"`
}

// Renderable reports whether the attachment has anything a page can show.
func (m MediaAttachment) Renderable() bool {
	return m.URL != "" || m.PreviewImageURL != ""
}

// Item is a normalized post. ID is stable across repeated fetches of the same
// upstream record.
type Item struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	CreatedAt time.Time         `json:"created_at"`
	Author    string            `json:"author"`
	Media     []MediaAttachment `json:"media,omitempty"`
}

// Mode tells the consumer whether items came from the upstream or are placeholders.
type Mode string

const (
	ModeDemo Mode = "demo"
	ModeLive Mode = "live"
)

// Attempt records one upstream query for diagnostics.
type Attempt struct {
	Query  string `json:"query"`
	Status int    `json:"status,omitempty"`
	Body   string `json:"body,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Debug carries counters and upstream diagnostics alongside a Result.
type Debug struct {
	ItemCount         int       `json:"itemCount"`
	MediaCount        int       `json:"mediaCount"`
	ItemsWithMedia    int       `json:"itemsWithMedia"`
	UsedFallbackQuery bool      `json:"usedFallbackQuery,omitempty"`
	Attempts          []Attempt `json:"attempts,omitempty"`
	// SnapshotAge is set when the items were served from the durable snapshot.
	SnapshotAge string `json:"snapshotAge,omitempty"`
}

// Result is what the rendering layer receives. Items is never nil so it always
// encodes as a JSON array.
type Result struct {
	Items []Item `json:"items"`
	Mode  Mode   `json:"mode"`
	Error string `json:"error,omitempty"`
	Stale bool   `json:"stale,omitempty"`
	Debug *Debug `json:"debug,omitempty"`
}

// CountMedia returns the number of attachments across items and how many items
// carry at least one.
func CountMedia(items []Item) (media int, itemsWithMedia int) {
	for _, it := range items {
		media += len(it.Media)
		if len(it.Media) > 0 {
			itemsWithMedia++
		}
	}
	return media, itemsWithMedia
}
