// Package gallery is the image viewer over the images of a conversation.
package gallery

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/glasschat/glasschat-client/internal/chatsync"
	"github.com/glasschat/glasschat-client/internal/content"
)

// Image is one entry of the gallery.
type Image struct {
	ID     string
	Sender string
	Index  int
}

// Gallery is the ordered list of images rendered in a conversation with a
// cursor. Navigation stops at both ends.
type Gallery struct {
	images []Image
	pos    int
}

// Collect builds a gallery from rendered items in render order.
func Collect(items []chatsync.Item) *Gallery {
	g := &Gallery{}
	for _, it := range items {
		if it.Content.Kind != content.KindImage {
			continue
		}
		g.images = append(g.images, Image{ID: it.Content.ImageID, Sender: it.Message.Sender, Index: it.Index})
	}
	return g
}

// Len returns the number of images.
func (g *Gallery) Len() int {
	return len(g.images)
}

// Open moves the cursor to the image rendered at message index. It
// returns false when that message is not an image.
func (g *Gallery) Open(index int) bool {
	for i, img := range g.images {
		if img.Index == index {
			g.pos = i
			return true
		}
	}
	return false
}

// OpenID moves the cursor to the first image with id.
func (g *Gallery) OpenID(id string) bool {
	for i, img := range g.images {
		if img.ID == id {
			g.pos = i
			return true
		}
	}
	return false
}

// Current returns the image under the cursor.
func (g *Gallery) Current() (Image, bool) {
	if len(g.images) == 0 {
		return Image{}, false
	}
	return g.images[g.pos], true
}

// Position returns the 1-based cursor position.
func (g *Gallery) Position() int {
	if len(g.images) == 0 {
		return 0
	}
	return g.pos + 1
}

func (g *Gallery) HasPrev() bool { return g.pos > 0 }
func (g *Gallery) HasNext() bool { return g.pos < len(g.images)-1 }

// Prev moves back one image; at the first image it does nothing.
func (g *Gallery) Prev() bool {
	if !g.HasPrev() {
		return false
	}
	g.pos--
	return true
}

// Next moves forward one image; at the last image it does nothing.
func (g *Gallery) Next() bool {
	if !g.HasNext() {
		return false
	}
	g.pos++
	return true
}

// Fetcher loads image bytes and their content type.
type Fetcher func(ctx context.Context, id string) ([]byte, string, error)

// Download saves the current image into dir and returns the file path.
func (g *Gallery) Download(ctx context.Context, fetch Fetcher, dir string) (string, error) {
	img, ok := g.Current()
	if !ok {
		return "", fmt.Errorf("download: gallery is empty")
	}
	data, contentType, err := fetch(ctx, img.ID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("download: %w", err)
	}

	path := filepath.Join(dir, FileName(img.ID, contentType))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	return path, nil
}

// FileName picks a file name for image id from its content type.
func FileName(id, contentType string) string {
	name := "image-" + strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, id)
	if filepath.Ext(name) != "" {
		return name
	}
	ext := ".img"
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			switch mt {
			case "image/jpeg":
				ext = ".jpg"
			default:
				if exts, _ := mime.ExtensionsByType(mt); len(exts) > 0 {
					ext = exts[0]
				}
			}
		}
	}
	return name + ext
}
