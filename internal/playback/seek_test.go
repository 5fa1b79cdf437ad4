package playback

import (
	"testing"
	"time"
)

func TestDragCommitsOnRelease(t *testing.T) {
	bar := Bar{X: 10, Y: 3, Width: 21}
	var d Drag

	if d.Down(bar, 5, 3) {
		t.Fatalf("press left of the bar started a drag")
	}
	if d.Down(bar, 15, 4) {
		t.Fatalf("press below the bar started a drag")
	}
	if _, ok := d.Up(15); ok {
		t.Fatalf("release without a drag committed a seek")
	}

	if !d.Down(bar, 10, 3) || !d.Active() {
		t.Fatalf("press on the bar did not start a drag")
	}
	if f, ok := d.Move(20); !ok || f != 0.5 {
		t.Fatalf("expected preview 0.5, got %v %v", f, ok)
	}
	if f, ok := d.Move(100); !ok || f != 1 {
		t.Fatalf("expected clamp to 1, got %v", f)
	}
	f, ok := d.Up(0)
	if !ok || f != 0 {
		t.Fatalf("expected release clamped to 0, got %v %v", f, ok)
	}
	if d.Active() {
		t.Fatalf("drag still active after release")
	}
}

func TestParseLRC(t *testing.T) {
	lrc := "[ar:Someone]\n[00:01.50]first\n[00:10.00][00:30.00]chorus\nno tag\n[01:02.3]late\n"
	lyrics := ParseLRC(lrc)
	if len(lyrics) != 4 {
		t.Fatalf("expected 4 lines, got %d: %+v", len(lyrics), lyrics)
	}
	if lyrics[0].At != 1500*time.Millisecond || lyrics[0].Text != "first" {
		t.Fatalf("unexpected first line %+v", lyrics[0])
	}
	if lyrics[1].Text != "chorus" || lyrics[2].Text != "chorus" || lyrics[2].At != 30*time.Second {
		t.Fatalf("repeated tags not expanded: %+v", lyrics)
	}
	if lyrics[3].At != time.Minute+2300*time.Millisecond {
		t.Fatalf("unexpected last time %v", lyrics[3].At)
	}

	if _, ok := lyrics.At(time.Second); ok {
		t.Fatalf("no line before the first timestamp")
	}
	if i, ok := lyrics.At(12 * time.Second); !ok || i != 1 {
		t.Fatalf("expected line 1, got %d %v", i, ok)
	}
	if i, _ := lyrics.At(10 * time.Minute); i != 3 {
		t.Fatalf("expected last line, got %d", i)
	}
}
