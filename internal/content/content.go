// Package content encodes and decodes message bodies. A body is plain
// text, or a tagged attachment: "Pic_" followed by an image id, or "Music_"
// followed by the JSON metadata of a track.
package content

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/glasschat/glasschat-client/internal/api"
)

const (
	imagePrefix = "Pic_"
	musicPrefix = "Music_"
)

// Kind is the kind of a message body.
type Kind int

const (
	KindText Kind = iota
	KindImage
	KindMusic
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindMusic:
		return "music"
	default:
		return "text"
	}
}

// Content is a decoded message body.
type Content struct {
	Kind    Kind
	Text    string
	ImageID string
	Track   api.Track
}

// Parse decodes a message body. A music tag whose payload is not valid JSON
// is kept as text.
func Parse(body string) Content {
	switch {
	case strings.HasPrefix(body, imagePrefix) && len(body) > len(imagePrefix):
		return Content{Kind: KindImage, ImageID: body[len(imagePrefix):]}
	case strings.HasPrefix(body, musicPrefix):
		var track api.Track
		if err := json.Unmarshal([]byte(body[len(musicPrefix):]), &track); err == nil && track.ID != "" {
			return Content{Kind: KindMusic, Track: track}
		}
	}
	return Content{Kind: KindText, Text: body}
}

// Image returns the body of an image message.
func Image(id string) string {
	return imagePrefix + id
}

// Music returns the body of a music message.
func Music(track api.Track) (string, error) {
	b, err := json.Marshal(track)
	if err != nil {
		return "", fmt.Errorf("encode track: %w", err)
	}
	return musicPrefix + string(b), nil
}

// Summary is a one-line description of c for previews and notifications.
func Summary(c Content) string {
	switch c.Kind {
	case KindImage:
		return "[image]"
	case KindMusic:
		return fmt.Sprintf("[music] %s - %s", c.Track.Name, c.Track.ArtistLine())
	default:
		return c.Text
	}
}
