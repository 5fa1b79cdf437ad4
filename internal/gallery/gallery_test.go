package gallery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/glasschat/glasschat-client/internal/api"
	"github.com/glasschat/glasschat-client/internal/chatsync"
	"github.com/glasschat/glasschat-client/internal/content"
)

func items(bodies ...string) []chatsync.Item {
	var out []chatsync.Item
	for i, b := range bodies {
		out = append(out, chatsync.Item{
			Index:   i,
			Message: api.Message{Sender: "bob", Content: b},
			Content: content.Parse(b),
		})
	}
	return out
}

func TestNavigationStopsAtTheEnds(t *testing.T) {
	g := Collect(items("Pic_a", "hello", "Pic_b", "Pic_c"))
	if g.Len() != 3 {
		t.Fatalf("expected 3 images, got %d", g.Len())
	}
	if !g.Open(2) {
		t.Fatalf("open image at index 2")
	}
	if img, _ := g.Current(); img.ID != "b" || g.Position() != 2 {
		t.Fatalf("unexpected current %+v at %d", img, g.Position())
	}
	if g.Open(1) {
		t.Fatalf("text message opened as image")
	}

	if !g.Next() || g.HasNext() || g.Next() {
		t.Fatalf("expected to stop at the last image")
	}
	if img, _ := g.Current(); img.ID != "c" {
		t.Fatalf("next wrapped around to %q", img.ID)
	}

	g.Prev()
	g.Prev()
	if g.HasPrev() || g.Prev() {
		t.Fatalf("expected to stop at the first image")
	}
	if img, _ := g.Current(); img.ID != "a" {
		t.Fatalf("prev wrapped around to %q", img.ID)
	}
}

func TestEmptyGallery(t *testing.T) {
	g := Collect(items("hi"))
	if _, ok := g.Current(); ok || g.HasNext() || g.HasPrev() || g.Position() != 0 {
		t.Fatalf("empty gallery should have no current image")
	}
	if _, err := g.Download(context.Background(), nil, t.TempDir()); err == nil {
		t.Fatalf("expected download error")
	}
}

func TestDownloadWritesFile(t *testing.T) {
	g := Collect(items("Pic_42"))
	dir := filepath.Join(t.TempDir(), "downloads")
	path, err := g.Download(context.Background(), func(ctx context.Context, id string) ([]byte, string, error) {
		return []byte("PNG"), "image/png", nil
	}, dir)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if filepath.Base(path) != "image-42.png" {
		t.Fatalf("unexpected file name %q", path)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "PNG" {
		t.Fatalf("unexpected file contents %q %v", b, err)
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("x/y", "image/jpeg"); got != "image-x_y.jpg" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := FileName("z", ""); got != "image-z.img" {
		t.Fatalf("unexpected name %q", got)
	}
}
