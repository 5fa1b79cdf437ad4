package playback

// Bar is the on-screen box of a progress bar, in terminal cells.
type Bar struct {
	X, Y  int
	Width int
}

// Contains reports whether the cell (x, y) is on the bar.
func (b Bar) Contains(x, y int) bool {
	return b.Width > 0 && y == b.Y && x >= b.X && x < b.X+b.Width
}

// Fraction maps column x to a position on the bar, clamped to [0, 1].
func (b Bar) Fraction(x int) float64 {
	if b.Width <= 1 {
		return 0
	}
	return clamp(float64(x-b.X) / float64(b.Width-1))
}

// Drag tracks a pointer drag on a progress bar. The position is previewed
// while moving and committed on release.
type Drag struct {
	bar      Bar
	active   bool
	fraction float64
}

// Down starts a drag if the pointer went down on bar.
func (d *Drag) Down(bar Bar, x, y int) bool {
	if !bar.Contains(x, y) {
		return false
	}
	d.bar = bar
	d.active = true
	d.fraction = bar.Fraction(x)
	return true
}

// Move updates the previewed position. Vertical movement off the bar is
// ignored.
func (d *Drag) Move(x int) (float64, bool) {
	if !d.active {
		return 0, false
	}
	d.fraction = d.bar.Fraction(x)
	return d.fraction, true
}

// Up ends the drag and returns the position to seek to.
func (d *Drag) Up(x int) (float64, bool) {
	if !d.active {
		return 0, false
	}
	d.active = false
	d.fraction = d.bar.Fraction(x)
	return d.fraction, true
}

// Active reports whether a drag is in progress.
func (d *Drag) Active() bool {
	return d.active
}

// Preview returns the fraction shown while dragging.
func (d *Drag) Preview() float64 {
	return d.fraction
}
