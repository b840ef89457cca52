package models

import "fmt"

// Point is a pointer position in canvas coordinates.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Rect is a panel rectangle in canvas coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) Left() int   { return r.X }
func (r Rect) Top() int    { return r.Y }
func (r Rect) Right() int  { return r.X + r.Width }
func (r Rect) Bottom() int { return r.Y + r.Height }

// Edges returns the rectangle as absolute edge positions.
func (r Rect) Edges() Edges {
	return Edges{Top: r.Top(), Left: r.Left(), Right: r.Right(), Bottom: r.Bottom()}
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// Edges is the (top, left, right, bottom) form used while a gesture is computed.
type Edges struct {
	Top    int
	Left   int
	Right  int
	Bottom int
}

// Rect re-derives width and height from the edges.
func (e Edges) Rect() Rect {
	return Rect{X: e.Left, Y: e.Top, Width: e.Right - e.Left, Height: e.Bottom - e.Top}
}

// Handle identifies the resize grip a gesture started from.
// HandleNone means the whole panel is being dragged.
type Handle string

const (
	HandleNone   Handle = ""
	HandleTop    Handle = "top"
	HandleRight  Handle = "right"
	HandleBottom Handle = "bottom"
	HandleLeft   Handle = "left"
	HandleNE     Handle = "ne"
	HandleSE     Handle = "se"
	HandleSW     Handle = "sw"
	HandleNW     Handle = "nw"
)

// IsValid reports whether h is one of the eight resize handles.
func (h Handle) IsValid() bool {
	switch h {
	case HandleTop, HandleRight, HandleBottom, HandleLeft,
		HandleNE, HandleSE, HandleSW, HandleNW:
		return true
	default:
		return false
	}
}

// MovesLeft reports whether the handle controls the left edge.
func (h Handle) MovesLeft() bool { return h == HandleLeft || h == HandleNW || h == HandleSW }

// MovesRight reports whether the handle controls the right edge.
func (h Handle) MovesRight() bool { return h == HandleRight || h == HandleNE || h == HandleSE }

// MovesTop reports whether the handle controls the top edge.
func (h Handle) MovesTop() bool { return h == HandleTop || h == HandleNW || h == HandleNE }

// MovesBottom reports whether the handle controls the bottom edge.
func (h Handle) MovesBottom() bool { return h == HandleBottom || h == HandleSE || h == HandleSW }
