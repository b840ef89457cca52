package usecase

import (
	"context"
	"fmt"

	"PanelSync/internal/domain/models"
	drepo "PanelSync/internal/domain/repository"
	applogger "PanelSync/pkg/logger"
)

// GestureState is the per-panel pointer state.
type GestureState int

const (
	GestureIdle GestureState = iota
	GestureDragging
	GestureResizing
)

func (s GestureState) String() string {
	switch s {
	case GestureDragging:
		return "dragging"
	case GestureResizing:
		return "resizing"
	default:
		return "idle"
	}
}

type gesture struct {
	state  GestureState
	handle models.Handle
	origin models.Point
	start  models.Rect
	frozen []models.Rect // sibling snapshot, nil when reading live
}

// ResizeController turns pointer gestures into panel rectangle updates.
// At most one gesture is active per panel.
type ResizeController struct {
	canvas *Canvas
	snap   SnapResolver
	active map[string]*gesture
}

func newResizeController(c *Canvas) *ResizeController {
	return &ResizeController{
		canvas: c,
		snap:   NewSnapResolver(c.opts.SnapDistance, c.opts.SnapMargin),
		active: make(map[string]*gesture),
	}
}

// State returns the gesture state of a panel.
func (r *ResizeController) State(panelID string) (GestureState, models.Handle) {
	g, ok := r.active[panelID]
	if !ok {
		return GestureIdle, models.HandleNone
	}
	return g.state, g.handle
}

// BeginResize starts resizing from handle. It is a no-op when the panel
// already has an active gesture.
func (r *ResizeController) BeginResize(panelID string, handle models.Handle, origin models.Point) error {
	if !handle.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidHandle, handle)
	}
	return r.begin(panelID, GestureResizing, handle, origin)
}

// BeginDrag starts moving the whole panel. Same no-op rule as BeginResize.
func (r *ResizeController) BeginDrag(panelID string, origin models.Point) error {
	return r.begin(panelID, GestureDragging, models.HandleNone, origin)
}

func (r *ResizeController) begin(panelID string, state GestureState, handle models.Handle, origin models.Point) error {
	p, err := r.canvas.Panel(panelID)
	if err != nil {
		return err
	}
	if _, busy := r.active[panelID]; busy {
		return nil
	}
	g := &gesture{state: state, handle: handle, origin: origin, start: p.Rect}
	if r.canvas.opts.FreezeSiblings {
		g.frozen = r.canvas.siblingRects(panelID)
	}
	r.active[panelID] = g
	r.canvas.deps.Metrics.RecordGesture(state.String())
	return nil
}

// PointerMoved applies the pointer position to the panel and returns the
// resolved rectangle. Nothing is persisted.
func (r *ResizeController) PointerMoved(panelID string, pointer models.Point) (models.Rect, error) {
	g, ok := r.active[panelID]
	if !ok {
		return models.Rect{}, fmt.Errorf("%w: %s", ErrNoActiveGesture, panelID)
	}
	p, err := r.canvas.Panel(panelID)
	if err != nil {
		return models.Rect{}, err
	}

	candidate := provisional(g, pointer, p.MinWidth, p.MinHeight)

	siblings := g.frozen
	if siblings == nil {
		siblings = r.canvas.siblingRects(panelID)
	}
	resolved := r.snap.Resolve(candidate, siblings)
	if g.state == GestureDragging {
		resolved = translateOnly(candidate, resolved)
	}

	p.Rect = enforceMinimum(resolved, g.handle, p.MinWidth, p.MinHeight)
	return p.Rect, nil
}

// EndResize finishes the gesture and writes the final geometry once.
func (r *ResizeController) EndResize(ctx context.Context, panelID string) (models.Rect, error) {
	if _, ok := r.active[panelID]; !ok {
		return models.Rect{}, fmt.Errorf("%w: %s", ErrNoActiveGesture, panelID)
	}
	delete(r.active, panelID)

	p, err := r.canvas.Panel(panelID)
	if err != nil {
		return models.Rect{}, err
	}
	rect := p.Rect
	r.canvas.upsert(ctx, panelID, drepo.GeometryFields(rect))
	r.canvas.emit(ctx, &models.CanvasEvent{Type: models.EventGeometryCommitted, PanelID: panelID, Rect: &rect})
	r.canvas.deps.Logger.Debug("gesture committed",
		applogger.String("canvas", r.canvas.id),
		applogger.String("panel", panelID),
		applogger.String("rect", rect.String()),
	)
	return rect, nil
}

func (r *ResizeController) forget(panelID string) {
	delete(r.active, panelID)
}

// provisional applies the raw pointer delta to the edges the gesture
// controls. The edges opposite the handle stay where they were; a moving
// edge that would break the minimum size is re-derived from the fixed one.
func provisional(g *gesture, pointer models.Point, minW, minH int) models.Rect {
	dx := pointer.X - g.origin.X
	dy := pointer.Y - g.origin.Y
	h := g.handle

	if h == models.HandleTop || h == models.HandleBottom {
		dx = 0
	}
	if h == models.HandleLeft || h == models.HandleRight {
		dy = 0
	}

	top := g.start.Y + dy
	left := g.start.X + dx
	right := left + g.start.Width
	bottom := top + g.start.Height

	if h.MovesLeft() {
		right -= dx
		if right-left < minW {
			left = right - minW
		}
	}
	if h.MovesRight() {
		left -= dx
		if right-left < minW {
			right = left + minW
		}
	}
	if h.MovesTop() {
		bottom -= dy
		if bottom-top < minH {
			top = bottom - minH
		}
	}
	if h.MovesBottom() {
		top -= dy
		if bottom-top < minH {
			bottom = top + minH
		}
	}

	return models.Edges{Top: top, Left: left, Right: right, Bottom: bottom}.Rect()
}

// translateOnly turns the edge adjustments of a dragged panel into a move,
// keeping its size. A snapped left (top) edge wins over a snapped right
// (bottom) edge.
func translateOnly(candidate, resolved models.Rect) models.Rect {
	out := candidate
	switch {
	case resolved.Left() != candidate.Left():
		out.X = resolved.Left()
	case resolved.Right() != candidate.Right():
		out.X = resolved.Right() - candidate.Width
	}
	switch {
	case resolved.Top() != candidate.Top():
		out.Y = resolved.Top()
	case resolved.Bottom() != candidate.Bottom():
		out.Y = resolved.Bottom() - candidate.Height
	}
	out.X = max(out.X, 0)
	out.Y = max(out.Y, 0)
	return out
}

// enforceMinimum repairs a snapped rectangle that fell below the minimum
// size, moving the edge the handle controls. Left and top stay >= 0.
func enforceMinimum(r models.Rect, h models.Handle, minW, minH int) models.Rect {
	e := r.Edges()
	if e.Right-e.Left < minW {
		if h.MovesLeft() {
			e.Left = e.Right - minW
		} else {
			e.Right = e.Left + minW
		}
	}
	if e.Bottom-e.Top < minH {
		if h.MovesTop() {
			e.Top = e.Bottom - minH
		} else {
			e.Bottom = e.Top + minH
		}
	}
	if e.Left < 0 {
		e.Right -= e.Left
		e.Left = 0
	}
	if e.Top < 0 {
		e.Bottom -= e.Top
		e.Top = 0
	}
	return e.Rect()
}
