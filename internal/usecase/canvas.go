package usecase

import (
	"context"
	"fmt"
	"time"

	"PanelSync/internal/domain/models"
	drepo "PanelSync/internal/domain/repository"
	applogger "PanelSync/pkg/logger"

	"github.com/google/uuid"
)

// CanvasOptions holds per-canvas geometry settings.
type CanvasOptions struct {
	SnapDistance   int
	SnapMargin     int
	FreezeSiblings bool // snapshot sibling rects at gesture start

	// minimum size for definitions that carry none
	DefaultMinWidth  int
	DefaultMinHeight int
}

// Deps are the collaborators shared by every canvas.
type Deps struct {
	Gateway drepo.PersistenceGateway
	Events  drepo.EventPublisher // optional
	Metrics drepo.Metrics        // optional
	Logger  *applogger.Logger
	Now     func() time.Time
}

func (d *Deps) fill() {
	if d.Metrics == nil {
		d.Metrics = noopMetrics{}
	}
	if d.Logger == nil {
		d.Logger = applogger.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

// Canvas owns an ordered set of panels and the z-order counter.
// It is not safe for concurrent use; the Dispatcher serializes access.
type Canvas struct {
	id     string
	panels []*models.Panel
	byID   map[string]*models.Panel
	zIndex int
	opts   CanvasOptions
	deps   Deps

	Resize      *ResizeController
	Groups      *GroupLink
	Instruments *InstrumentBroadcaster
}

// NewCanvas creates an empty canvas.
func NewCanvas(id string, opts CanvasOptions, deps Deps) *Canvas {
	deps.fill()
	c := &Canvas{
		id:   id,
		byID: make(map[string]*models.Panel),
		opts: opts,
		deps: deps,
	}
	c.Resize = newResizeController(c)
	c.Groups = &GroupLink{canvas: c}
	c.Instruments = &InstrumentBroadcaster{canvas: c}
	return c
}

func (c *Canvas) ID() string { return c.id }

// ZIndex returns the current maximum z-order.
func (c *Canvas) ZIndex() int { return c.zIndex }

// Panel looks a panel up by id.
func (c *Canvas) Panel(id string) (*models.Panel, error) {
	p, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPanelNotFound, id)
	}
	return p, nil
}

// Panels returns the registry in insertion order.
func (c *Canvas) Panels() []*models.Panel {
	out := make([]*models.Panel, len(c.panels))
	copy(out, c.panels)
	return out
}

// siblingRects returns the rectangles of every panel except exclude.
func (c *Canvas) siblingRects(exclude string) []models.Rect {
	rects := make([]models.Rect, 0, len(c.panels))
	for _, p := range c.panels {
		if p.ID != exclude {
			rects = append(rects, p.Rect)
		}
	}
	return rects
}

// AddPanel creates a panel from def. A stored z-order is kept when it does
// not collide with another panel; otherwise the panel goes on top.
// persist is false when the panel is being restored from the store.
func (c *Canvas) AddPanel(ctx context.Context, def models.PanelDefinition, persist bool) (*models.Panel, error) {
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	if _, ok := c.byID[def.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrPanelExists, def.ID)
	}
	if def.MinWidth <= 0 {
		def.MinWidth = c.opts.DefaultMinWidth
	}
	if def.MinHeight <= 0 {
		def.MinHeight = c.opts.DefaultMinHeight
	}

	w, h := def.Size()
	p := &models.Panel{
		ID:           def.ID,
		Kind:         def.Kind,
		Rect:         models.Rect{X: max(def.X, 0), Y: max(def.Y, 0), Width: w, Height: h},
		MinWidth:     def.MinWidth,
		MinHeight:    def.MinHeight,
		Group:        def.Group,
		Instrument:   def.Instrument,
		AcceptsPrice: def.AcceptsPrice,
	}
	if p.MinWidth <= 0 {
		p.MinWidth = models.DefaultMinWidth
	}
	if p.MinHeight <= 0 {
		p.MinHeight = models.DefaultMinHeight
	}

	if def.ZIndex > 0 && !c.zTaken(def.ZIndex) {
		p.ZIndex = def.ZIndex
		c.zIndex = max(c.zIndex, def.ZIndex)
	} else {
		c.zIndex++
		p.ZIndex = c.zIndex
	}

	c.panels = append(c.panels, p)
	c.byID[p.ID] = p

	if persist {
		r := p.Rect
		c.upsert(ctx, p.ID, drepo.PanelFields(p))
		c.emit(ctx, &models.CanvasEvent{Type: models.EventPanelAdded, PanelID: p.ID, Rect: &r, ZIndex: p.ZIndex})
	}
	return p, nil
}

func (c *Canvas) zTaken(z int) bool {
	for _, p := range c.panels {
		if p.ZIndex == z {
			return true
		}
	}
	return false
}

// RemovePanel drops the panel from the canvas and from persistence.
// The z-order counter is not advanced.
func (c *Canvas) RemovePanel(ctx context.Context, id string) error {
	if _, err := c.Panel(id); err != nil {
		return err
	}
	delete(c.byID, id)
	for i, p := range c.panels {
		if p.ID == id {
			c.panels = append(c.panels[:i], c.panels[i+1:]...)
			break
		}
	}
	c.Resize.forget(id)

	err := c.deps.Gateway.RemovePanel(ctx, c.id, id)
	c.deps.Metrics.RecordPersistence("remove", err)
	if err != nil {
		c.persistFailed("remove_panel", id, err)
	}
	c.emit(ctx, &models.CanvasEvent{Type: models.EventPanelRemoved, PanelID: id})
	return nil
}

// Focus raises the panel above every other panel on pointer-down.
// A panel already on top keeps its z-order and nothing is written.
func (c *Canvas) Focus(ctx context.Context, id string) (*models.Panel, error) {
	p, err := c.Panel(id)
	if err != nil {
		return nil, err
	}
	if p.ZIndex < c.zIndex {
		c.zIndex++
		p.ZIndex = c.zIndex
		c.upsert(ctx, p.ID, drepo.Fields{drepo.FieldZIndex: p.ZIndex})
		c.emit(ctx, &models.CanvasEvent{Type: models.EventPanelFocused, PanelID: p.ID, ZIndex: p.ZIndex})
	}
	return p, nil
}

// View returns a snapshot of the canvas.
func (c *Canvas) View() models.CanvasView {
	v := models.CanvasView{ID: c.id, ZIndex: c.zIndex, Panels: make([]models.PanelView, 0, len(c.panels))}
	for _, p := range c.panels {
		v.Panels = append(v.Panels, p.View())
	}
	return v
}

func (c *Canvas) upsert(ctx context.Context, panelID string, fields drepo.Fields) {
	err := c.deps.Gateway.UpsertPanelFields(ctx, c.id, panelID, fields)
	c.deps.Metrics.RecordPersistence("upsert", err)
	if err != nil {
		c.persistFailed("upsert", panelID, err)
	}
}

func (c *Canvas) persistFailed(op, panelID string, err error) {
	c.deps.Logger.Error("persistence write rejected",
		applogger.String("op", op),
		applogger.String("canvas", c.id),
		applogger.String("panel", panelID),
		applogger.Error(err),
	)
}

func (c *Canvas) emit(ctx context.Context, ev *models.CanvasEvent) {
	if c.deps.Events == nil {
		return
	}
	ev.CanvasID = c.id
	ev.Timestamp = c.deps.Now()
	if err := c.deps.Events.Publish(ctx, ev); err != nil {
		c.deps.Metrics.RecordError("event_publish")
		c.deps.Logger.Warn("canvas event publish failed",
			applogger.String("type", string(ev.Type)),
			applogger.String("canvas", c.id),
			applogger.Error(err),
		)
	}
}

type noopMetrics struct{}

func (noopMetrics) RecordGesture(string) {}
func (noopMetrics) RecordBroadcast(string, int) {}
func (noopMetrics) RecordPersistence(string, error) {}
func (noopMetrics) RecordError(string) {}
func (noopMetrics) RecordLatency(string, float64) {}
