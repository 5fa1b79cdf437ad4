package style

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/gamut"
	"github.com/muesli/termenv"
	"github.com/rivo/uniseg"
)

// rainbow is the palette cycled by Rainbow.
var rainbow = gamut.Blends(gamut.Hex("#F25D94"), gamut.Hex("#EDFF82"), 50)

// rgb resolves a hex or ANSI colour without consulting the terminal's
// colour profile. Anything else is black.
func rgb(c lipgloss.Color) colorful.Color {
	s := string(c)
	if strings.HasPrefix(s, "#") {
		if col, err := colorful.Hex(s); err == nil {
			return col
		}
		return colorful.Color{}
	}
	n, err := strconv.Atoi(s)
	switch {
	case err != nil || n < 0 || n > 255:
		return colorful.Color{}
	case n < 16:
		return termenv.ConvertToRGB(termenv.ANSIColor(n))
	default:
		return termenv.ConvertToRGB(termenv.ANSI256Color(n))
	}
}

// ramp returns n colours blended in Hcl from one colour to the other.
func ramp(n int, from, to colorful.Color) []lipgloss.Color {
	out := make([]lipgloss.Color, n)
	for i := range n {
		var t float64
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		out[i] = lipgloss.Color(from.BlendHcl(to, t).Clamped().Hex())
	}
	return out
}

// graphemes splits s into user-perceived characters.
func graphemes(s string) []string {
	var out []string
	gr := uniseg.NewGraphemes(s)
	for gr.Next() {
		out = append(out, gr.Str())
	}
	return out
}

// Gradient renders text in bold with a horizontal colour gradient.
func Gradient(text string, from, to lipgloss.Color) string {
	clusters := graphemes(text)
	if len(clusters) == 0 {
		return ""
	}

	bold := lipgloss.NewStyle().Bold(true)
	var b strings.Builder
	for i, c := range ramp(len(clusters), rgb(from), rgb(to)) {
		b.WriteString(bold.Foreground(c).Render(clusters[i]))
	}
	return b.String()
}

// Rainbow colours each character of text with the next palette entry.
func Rainbow(text string) string {
	var b strings.Builder
	for i, cluster := range graphemes(text) {
		c, _ := colorful.MakeColor(rainbow[i%len(rainbow)])
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(c.Hex())).Render(cluster))
	}
	return b.String()
}
