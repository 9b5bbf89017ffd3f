package view

// control bar heights in css pixels
const (
	ControlBarHeight    = 60
	MiniPlayerBarHeight = 80
)

type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ContentBounds computes the rectangle of the embedded content below the
// control bar for the given window content size.
func ContentBounds(width int, height int, miniPlayer bool) Rect {
	bar := ControlBarHeight
	if miniPlayer {
		bar = MiniPlayerBarHeight
	}
	return Rect{
		X:      0,
		Y:      bar,
		Width:  width,
		Height: height - bar,
	}
}
