package usecase

import (
	"context"

	"PanelSync/internal/domain/models"
	drepo "PanelSync/internal/domain/repository"
	applogger "PanelSync/pkg/logger"
)

// GroupLink assigns group tags and performs the join-time instrument import.
type GroupLink struct {
	canvas *Canvas
}

// SetGroup sets the panel's group tag. Joining a group whose first member
// (in registry order) holds a different instrument imports that instrument
// without broadcasting it further. It returns the panel's instrument after
// the call and whether an import happened.
func (g *GroupLink) SetGroup(ctx context.Context, panelID string, tag models.GroupTag) (*models.Instrument, bool, error) {
	c := g.canvas
	p, err := c.Panel(panelID)
	if err != nil {
		return nil, false, err
	}

	p.Group = tag
	imported := false

	if tag.IsSet() {
		if src := g.source(p); src != nil && !models.SameInstrument(src.Instrument, p.Instrument) {
			c.Instruments.assignIsolated(p, src.Instrument)
			imported = true
			c.upsert(ctx, p.ID, drepo.InstrumentFields(p.Instrument))
			c.deps.Logger.Debug("group join imported instrument",
				applogger.String("canvas", c.id),
				applogger.String("panel", p.ID),
				applogger.String("source", src.ID),
				applogger.String("instrument", src.Instrument.ID),
			)
		}
	}

	c.upsert(ctx, p.ID, drepo.GroupFields(tag))
	c.deps.Logger.Debug("group changed",
		applogger.String("canvas", c.id),
		applogger.String("panel", p.ID),
		applogger.String("group", string(tag)),
		applogger.Bool("imported", imported),
	)
	c.emit(ctx, &models.CanvasEvent{
		Type:         models.EventGroupChanged,
		PanelID:      p.ID,
		Group:        tag,
		InstrumentID: models.InstrumentID(p.Instrument),
	})
	return p.Instrument, imported, nil
}

// source returns the first other panel carrying p's tag with an instrument.
func (g *GroupLink) source(p *models.Panel) *models.Panel {
	for _, w := range g.canvas.panels {
		if w.ID != p.ID && w.Group == p.Group && w.Instrument != nil {
			return w
		}
	}
	return nil
}

// Members returns the panels carrying tag, in registry order.
func (g *GroupLink) Members(tag models.GroupTag) []*models.Panel {
	if !tag.IsSet() {
		return nil
	}
	var out []*models.Panel
	for _, w := range g.canvas.panels {
		if w.Group == tag {
			out = append(out, w)
		}
	}
	return out
}
