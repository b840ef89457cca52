package usecase

import "PanelSync/internal/domain/models"

// SnapResolver aligns a provisional rectangle to nearby sibling edges.
type SnapResolver struct {
	Distance int // max edge-to-edge gap that still snaps
	Margin   int // gap kept between panels snapped edge-to-edge
}

// NewSnapResolver creates a resolver with the given tolerance and margin.
func NewSnapResolver(distance, margin int) SnapResolver {
	return SnapResolver{Distance: distance, Margin: margin}
}

// Resolve returns candidate with its edges snapped against siblings.
//
// Siblings are visited in order and every rule that fires overwrites the
// edge it targets, so the last matching sibling wins. A vertical-edge rule
// is only considered when the two rectangles overlap vertically within the
// snap distance, and the horizontal-edge rules symmetrically.
func (s SnapResolver) Resolve(candidate models.Rect, siblings []models.Rect) models.Rect {
	return Resolve(candidate, siblings, s.Distance, s.Margin)
}

// Resolve is the functional form of SnapResolver.Resolve.
func Resolve(candidate models.Rect, siblings []models.Rect, snapDistance, snapMargin int) models.Rect {
	e := candidate.Edges()
	d := snapDistance

	for _, sib := range siblings {
		se := sib.Edges()

		if overlaps(e.Top, e.Bottom, se.Top, se.Bottom, d) {
			if abs(e.Left-se.Right) <= d {
				e.Left = se.Right + snapMargin
			}
			if abs(e.Left-se.Left) <= d {
				e.Left = se.Left
			}
			if abs(e.Right-se.Right) <= d {
				e.Right = se.Right
			}
			if abs(e.Right-se.Left) <= d {
				e.Right = se.Left - snapMargin
			}
		}

		if overlaps(e.Left, e.Right, se.Left, se.Right, d) {
			if abs(e.Top-se.Bottom) <= d {
				e.Top = se.Bottom + snapMargin
			}
			if abs(e.Top-se.Top) <= d {
				e.Top = se.Top
			}
			if abs(e.Bottom-se.Bottom) <= d {
				e.Bottom = se.Bottom
			}
			if abs(e.Bottom-se.Top) <= d {
				e.Bottom = se.Top - snapMargin
			}
		}
	}

	if e.Left < 0 {
		e.Left = 0
	}
	if e.Top < 0 {
		e.Top = 0
	}
	return e.Rect()
}

// overlaps reports whether [lo, hi] intersects [slo-d, shi+d] or spans it.
func overlaps(lo, hi, slo, shi, d int) bool {
	return (lo >= slo-d && lo <= shi+d) ||
		(hi >= slo-d && hi <= shi+d) ||
		(lo <= slo-d && hi >= shi+d)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
