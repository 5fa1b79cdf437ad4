package content

import (
	"strings"
	"testing"

	"github.com/glasschat/glasschat-client/internal/api"
)

func TestParseText(t *testing.T) {
	c := Parse("hello there")
	if c.Kind != KindText || c.Text != "hello there" {
		t.Fatalf("unexpected content %+v", c)
	}
}

func TestImageTag(t *testing.T) {
	body := Image("a1b2")
	if body != "Pic_a1b2" {
		t.Fatalf("unexpected body %q", body)
	}
	c := Parse(body)
	if c.Kind != KindImage || c.ImageID != "a1b2" {
		t.Fatalf("unexpected content %+v", c)
	}
	if Parse("Pic_").Kind != KindText {
		t.Fatalf("expected bare prefix to be text")
	}
}

func TestMusicTag(t *testing.T) {
	track := api.Track{ID: "186016", Name: "Sunny", Artists: []string{"Jay"}, PicURL: "http://p/1.jpg", IsVIP: true}
	body, err := Music(track)
	if err != nil {
		t.Fatalf("music: %v", err)
	}
	if !strings.HasPrefix(body, "Music_{") || !strings.Contains(body, `"id":186016`) {
		t.Fatalf("unexpected body %q", body)
	}
	c := Parse(body)
	if c.Kind != KindMusic {
		t.Fatalf("expected music, got %v", c.Kind)
	}
	if c.Track.Name != "Sunny" || c.Track.ArtistLine() != "Jay" || !c.Track.IsVIP {
		t.Fatalf("unexpected track %+v", c.Track)
	}
	if Summary(c) != "[music] Sunny - Jay" {
		t.Fatalf("unexpected summary %q", Summary(c))
	}
}

func TestBrokenMusicIsText(t *testing.T) {
	c := Parse("Music_{not json")
	if c.Kind != KindText || c.Text != "Music_{not json" {
		t.Fatalf("expected text fallback, got %+v", c)
	}
}
