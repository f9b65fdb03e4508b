package upstream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/illmade-knight/go-postcache/pkg/types"
)

// searchEnvelope is the recent-search response. Unknown fields are ignored.
type searchEnvelope struct {
	Data     []postRecord `json:"data"`
	Includes struct {
		Media []mediaObject `json:"media"`
		Users []userObject  `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int `json:"result_count"`
	} `json:"meta"`
}

type postRecord struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	CreatedAt   string `json:"created_at"`
	AuthorID    string `json:"author_id"`
	Attachments struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
}

type mediaObject struct {
	MediaKey        string `json:"media_key"`
	Type            string `json:"type"`
	URL             string `json:"url"`
	PreviewImageURL string `json:"preview_image_url"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
}

type userObject struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

func decodeEnvelope(body []byte) (*searchEnvelope, error) {
	var env searchEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &env, nil
}

func mediaType(raw string) (types.MediaType, bool) {
	switch t := types.MediaType(raw); t {
	case types.MediaPhoto, types.MediaVideo, types.MediaAnimatedGIF:
		return t, true
	}
	return "", false
}

// normalize maps the envelope into Items. Media keys are resolved against the
// side table in the order the record lists them; keys that do not resolve are
// dropped. A missing or unparsable created_at is replaced with now.
func normalize(env *searchEnvelope, defaultAuthor string, now time.Time) []types.Item {
	media := make(map[string]mediaObject, len(env.Includes.Media))
	for _, m := range env.Includes.Media {
		media[m.MediaKey] = m
	}
	users := make(map[string]string, len(env.Includes.Users))
	for _, u := range env.Includes.Users {
		if u.Username != "" {
			users[u.ID] = "@" + u.Username
		}
	}

	items := make([]types.Item, 0, len(env.Data))
	for _, rec := range env.Data {
		if rec.ID == "" {
			continue
		}
		item := types.Item{
			ID:     rec.ID,
			Text:   rec.Text,
			Author: defaultAuthor,
		}
		if author, ok := users[rec.AuthorID]; ok {
			item.Author = author
		}
		item.CreatedAt = now
		if rec.CreatedAt != "" {
			if ts, err := time.Parse(time.RFC3339, rec.CreatedAt); err == nil {
				item.CreatedAt = ts
			}
		}
		seen := make(map[string]bool, len(rec.Attachments.MediaKeys))
		for _, key := range rec.Attachments.MediaKeys {
			if seen[key] {
				continue
			}
			m, ok := media[key]
			if !ok {
				continue
			}
			kind, ok := mediaType(m.Type)
			if !ok {
				continue
			}
			seen[key] = true
			item.Media = append(item.Media, types.MediaAttachment{
				MediaKey:        m.MediaKey,
				Type:            kind,
				URL:             m.URL,
				PreviewImageURL: m.PreviewImageURL,
				Width:           m.Width,
				Height:          m.Height,
			})
		}
		items = append(items, item)
	}
	return items
}
