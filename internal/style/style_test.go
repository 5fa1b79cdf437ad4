package style

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

func TestRampEndpoints(t *testing.T) {
	colors := ramp(5, rgb("#000000"), rgb("#ffffff"))
	if len(colors) != 5 {
		t.Fatalf("got %d colours", len(colors))
	}
	if colors[0] != "#000000" {
		t.Fatalf("unexpected start %v", colors[0])
	}
	last, err := colorful.Hex(string(colors[4]))
	if err != nil || last.R < 0.99 || last.G < 0.99 || last.B < 0.99 {
		t.Fatalf("unexpected end %v", colors[4])
	}
	if one := ramp(1, rgb("#000000"), rgb("#0000ff")); len(one) != 1 || one[0] != "#000000" {
		t.Fatalf("single colour ramp %v", one)
	}
}

func TestRGBIgnoresTerminalProfile(t *testing.T) {
	tests := []struct {
		in   lipgloss.Color
		want string
	}{
		{"#f25d94", "#f25d94"},
		{"170", "#d75fd7"},
		{"9", "#ff0000"},
		{"not a colour", "#000000"},
	}
	for _, tt := range tests {
		if got := rgb(tt.in).Hex(); got != tt.want {
			t.Fatalf("rgb(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestGraphemesKeepClusters(t *testing.T) {
	got := graphemes("ok🇸🇪")
	if len(got) != 3 || got[2] != "🇸🇪" {
		t.Fatalf("unexpected clusters %q", got)
	}
	if Gradient("", ColorFuscia, ColorCyan) != "" {
		t.Fatalf("empty text should render nothing")
	}
}

func TestRenderSubscreenIncludesTitle(t *testing.T) {
	out := RenderSubscreen(40, 10, "Logs", "body")
	if !strings.Contains(out, "Logs") || !strings.Contains(out, "body") {
		t.Fatalf("missing content in %q", out)
	}
}
