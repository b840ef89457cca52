package usecase

import (
	"context"
	"fmt"

	"PanelSync/internal/domain/models"
	applogger "PanelSync/pkg/logger"
)

// Command is a canvas mutation or query executed on the dispatcher goroutine.
type Command interface {
	Name() string
	execute(ctx context.Context, d *Dispatcher) (any, error)
}

type AddPanel struct {
	CanvasID   string
	Definition models.PanelDefinition
}

func (AddPanel) Name() string { return "add_panel" }

func (c AddPanel) execute(ctx context.Context, d *Dispatcher) (any, error) {
	cv := d.canvasOrCreate(c.CanvasID)
	p, err := cv.AddPanel(ctx, c.Definition, true)
	if err != nil {
		return nil, err
	}
	return p.View(), nil
}

type RemovePanel struct {
	CanvasID string
	PanelID  string
}

func (RemovePanel) Name() string { return "remove_panel" }

func (c RemovePanel) execute(ctx context.Context, d *Dispatcher) (any, error) {
	cv, err := d.canvas(c.CanvasID)
	if err != nil {
		return nil, err
	}
	return nil, cv.RemovePanel(ctx, c.PanelID)
}

type FocusPanel struct {
	CanvasID string
	PanelID  string
}

func (FocusPanel) Name() string { return "focus_panel" }

func (c FocusPanel) execute(ctx context.Context, d *Dispatcher) (any, error) {
	cv, err := d.canvas(c.CanvasID)
	if err != nil {
		return nil, err
	}
	p, err := cv.Focus(ctx, c.PanelID)
	if err != nil {
		return nil, err
	}
	return p.View(), nil
}

type BeginResize struct {
	CanvasID string
	PanelID  string
	Handle   models.Handle
	Origin   models.Point
}

func (BeginResize) Name() string { return "begin_resize" }

func (c BeginResize) execute(_ context.Context, d *Dispatcher) (any, error) {
	cv, err := d.canvas(c.CanvasID)
	if err != nil {
		return nil, err
	}
	return nil, cv.Resize.BeginResize(c.PanelID, c.Handle, c.Origin)
}

type BeginDrag struct {
	CanvasID string
	PanelID  string
	Origin   models.Point
}

func (BeginDrag) Name() string { return "begin_drag" }

func (c BeginDrag) execute(_ context.Context, d *Dispatcher) (any, error) {
	cv, err := d.canvas(c.CanvasID)
	if err != nil {
		return nil, err
	}
	return nil, cv.Resize.BeginDrag(c.PanelID, c.Origin)
}

type PointerMoved struct {
	CanvasID string
	PanelID  string
	Pointer  models.Point
}

func (PointerMoved) Name() string { return "pointer_moved" }

func (c PointerMoved) execute(_ context.Context, d *Dispatcher) (any, error) {
	cv, err := d.canvas(c.CanvasID)
	if err != nil {
		return nil, err
	}
	return cv.Resize.PointerMoved(c.PanelID, c.Pointer)
}

type EndResize struct {
	CanvasID string
	PanelID  string
}

func (EndResize) Name() string { return "end_resize" }

func (c EndResize) execute(ctx context.Context, d *Dispatcher) (any, error) {
	cv, err := d.canvas(c.CanvasID)
	if err != nil {
		return nil, err
	}
	return cv.Resize.EndResize(ctx, c.PanelID)
}

type SetGroup struct {
	CanvasID string
	PanelID  string
	Group    string
}

// GroupResult reports the panel's instrument after a group change.
type GroupResult struct {
	Group      models.GroupTag    `json:"group"`
	Instrument *models.Instrument `json:"instrument,omitempty"`
	Imported   bool               `json:"imported"`
}

func (SetGroup) Name() string { return "set_group" }

func (c SetGroup) execute(ctx context.Context, d *Dispatcher) (any, error) {
	tag, err := models.ParseGroupTag(c.Group)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGroup, err)
	}
	cv, err := d.canvas(c.CanvasID)
	if err != nil {
		return nil, err
	}
	inst, imported, err := cv.Groups.SetGroup(ctx, c.PanelID, tag)
	if err != nil {
		return nil, err
	}
	return GroupResult{Group: tag, Instrument: inst, Imported: imported}, nil
}

type SetInstrument struct {
	CanvasID   string
	PanelID    string
	Instrument *models.Instrument
}

func (SetInstrument) Name() string { return "set_instrument" }

func (c SetInstrument) execute(ctx context.Context, d *Dispatcher) (any, error) {
	cv, err := d.canvas(c.CanvasID)
	if err != nil {
		return nil, err
	}
	return cv.Instruments.SetInstrument(ctx, c.PanelID, c.Instrument)
}

// PushToGroup sends an instrument to the panel's group without selecting it
// on the panel itself.
type PushToGroup struct {
	CanvasID   string
	PanelID    string
	Instrument *models.Instrument
}

func (PushToGroup) Name() string { return "push_to_group" }

func (c PushToGroup) execute(ctx context.Context, d *Dispatcher) (any, error) {
	cv, err := d.canvas(c.CanvasID)
	if err != nil {
		return nil, err
	}
	return cv.Instruments.PushToGroup(ctx, c.PanelID, c.Instrument)
}

type BroadcastPrice struct {
	CanvasID string
	PanelID  string
	Price    float64
}

func (BroadcastPrice) Name() string { return "broadcast_price" }

func (c BroadcastPrice) execute(ctx context.Context, d *Dispatcher) (any, error) {
	cv, err := d.canvas(c.CanvasID)
	if err != nil {
		return nil, err
	}
	return cv.Instruments.BroadcastPrice(ctx, c.PanelID, c.Price)
}

type SnapshotCanvas struct {
	CanvasID string
}

func (SnapshotCanvas) Name() string { return "snapshot_canvas" }

func (c SnapshotCanvas) execute(_ context.Context, d *Dispatcher) (any, error) {
	cv, err := d.canvas(c.CanvasID)
	if err != nil {
		return nil, err
	}
	return cv.View(), nil
}

// seedCanvas installs restored panels. An already open canvas is left as is.
type seedCanvas struct {
	CanvasID    string
	Definitions []models.PanelDefinition
}

func (seedCanvas) Name() string { return "seed_canvas" }

func (c seedCanvas) execute(ctx context.Context, d *Dispatcher) (any, error) {
	if cv, ok := d.canvases[c.CanvasID]; ok {
		return cv.View(), nil
	}
	cv := d.canvasOrCreate(c.CanvasID)
	for _, def := range c.Definitions {
		if _, err := cv.AddPanel(ctx, def, false); err != nil {
			d.deps.Logger.Warn("skipping stored panel",
				applogger.String("canvas", c.CanvasID),
				applogger.String("panel", def.ID),
				applogger.Error(err),
			)
		}
	}
	return cv.View(), nil
}
