package playback

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Line is one timed lyric line.
type Line struct {
	At   time.Duration
	Text string
}

// Lyrics are lines sorted by time.
type Lyrics []Line

var lrcTag = regexp.MustCompile(`\[(\d+):(\d+)(?:[.:](\d+))?\]`)

// ParseLRC parses LRC text. A line may carry several time tags; metadata
// tags such as [ar:...] and untimed lines are skipped.
func ParseLRC(text string) Lyrics {
	var out Lyrics
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSpace(raw)
		tags := lrcTag.FindAllStringSubmatchIndex(raw, -1)
		if len(tags) == 0 {
			continue
		}
		body := strings.TrimSpace(raw[tags[len(tags)-1][1]:])
		for _, m := range tags {
			min, _ := strconv.Atoi(raw[m[2]:m[3]])
			sec, _ := strconv.Atoi(raw[m[4]:m[5]])
			at := time.Duration(min)*time.Minute + time.Duration(sec)*time.Second
			if m[6] >= 0 {
				frac := raw[m[6]:m[7]]
				n, _ := strconv.Atoi(frac)
				switch len(frac) {
				case 1:
					at += time.Duration(n) * 100 * time.Millisecond
				case 2:
					at += time.Duration(n) * 10 * time.Millisecond
				default:
					at += time.Duration(n) * time.Millisecond
				}
			}
			out = append(out, Line{At: at, Text: body})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At < out[j].At })
	return out
}

// At returns the index of the line being sung at pos, or false before the
// first line.
func (l Lyrics) At(pos time.Duration) (int, bool) {
	i := sort.Search(len(l), func(i int) bool { return l[i].At > pos })
	if i == 0 {
		return 0, false
	}
	return i - 1, true
}
