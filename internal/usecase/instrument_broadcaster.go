package usecase

import (
	"context"
	"time"

	"PanelSync/internal/domain/models"
	drepo "PanelSync/internal/domain/repository"
	applogger "PanelSync/pkg/logger"
)

// InstrumentBroadcaster propagates an instrument selection to every panel
// sharing the origin's group and persists the result as one batch.
type InstrumentBroadcaster struct {
	canvas *Canvas
}

// SetInstrument binds inst to the panel. A panel that is importing or
// broadcasting only takes the assignment: no fan-out, no write.
// The returned ids are the panels that received the instrument, origin first.
func (b *InstrumentBroadcaster) SetInstrument(ctx context.Context, panelID string, inst *models.Instrument) ([]string, error) {
	c := b.canvas
	p, err := c.Panel(panelID)
	if err != nil {
		return nil, err
	}

	if p.Sync != models.SyncIdle {
		p.Instrument = inst
		return []string{p.ID}, nil
	}

	start := time.Now()
	p.Sync = models.SyncBroadcasting
	defer func() { p.Sync = models.SyncIdle }()

	p.Instrument = inst
	affected := []string{p.ID}
	entries := make([]drepo.FieldWrite, 0, 1)

	if p.Group.IsSet() {
		for _, w := range c.panels {
			if w.ID == p.ID || w.Group != p.Group {
				continue
			}
			b.assignIsolated(w, inst)
			affected = append(affected, w.ID)
			entries = append(entries, drepo.FieldWrite{PanelID: w.ID, Fields: drepo.InstrumentFields(inst)})
		}
	}
	entries = append(entries, drepo.FieldWrite{PanelID: p.ID, Fields: drepo.InstrumentFields(inst)})

	b.submit(ctx, entries)
	c.deps.Metrics.RecordBroadcast(string(p.Group), len(affected))
	c.deps.Metrics.RecordLatency("broadcast", time.Since(start).Seconds())
	c.emit(ctx, &models.CanvasEvent{
		Type:         models.EventInstrumentBroadcast,
		PanelID:      p.ID,
		Group:        p.Group,
		InstrumentID: models.InstrumentID(inst),
		Affected:     affected,
	})
	return affected, nil
}

// PushToGroup hands inst to the other members of the panel's group whose
// instrument differs, leaving the panel itself untouched. Every receiver is
// isolated and the writes go out as one batch.
func (b *InstrumentBroadcaster) PushToGroup(ctx context.Context, panelID string, inst *models.Instrument) ([]string, error) {
	c := b.canvas
	p, err := c.Panel(panelID)
	if err != nil {
		return nil, err
	}
	if !p.Group.IsSet() || inst == nil {
		return nil, nil
	}

	var affected []string
	var entries []drepo.FieldWrite
	for _, w := range c.panels {
		if w.ID == p.ID || w.Group != p.Group || models.SameInstrument(w.Instrument, inst) {
			continue
		}
		b.assignIsolated(w, inst)
		affected = append(affected, w.ID)
		entries = append(entries, drepo.FieldWrite{PanelID: w.ID, Fields: drepo.InstrumentFields(inst)})
	}
	if len(entries) == 0 {
		return nil, nil
	}
	b.submit(ctx, entries)
	c.deps.Metrics.RecordBroadcast(string(p.Group), len(affected))
	c.emit(ctx, &models.CanvasEvent{
		Type:         models.EventInstrumentBroadcast,
		PanelID:      p.ID,
		Group:        p.Group,
		InstrumentID: inst.ID,
		Affected:     affected,
	})
	return affected, nil
}

// BroadcastPrice pushes a price to the other members of the panel's group
// that accept prices and already show an instrument. Prices are not persisted.
func (b *InstrumentBroadcaster) BroadcastPrice(ctx context.Context, panelID string, price float64) ([]string, error) {
	c := b.canvas
	p, err := c.Panel(panelID)
	if err != nil {
		return nil, err
	}
	if price <= 0 || !p.Group.IsSet() {
		return nil, nil
	}

	var affected []string
	for _, w := range c.panels {
		if w.ID == p.ID || w.Group != p.Group || !w.AcceptsPrice || w.Instrument == nil {
			continue
		}
		w.Price = price
		affected = append(affected, w.ID)
	}
	if len(affected) > 0 {
		c.emit(ctx, &models.CanvasEvent{
			Type:     models.EventPriceBroadcast,
			PanelID:  p.ID,
			Group:    p.Group,
			Price:    price,
			Affected: affected,
		})
	}
	return affected, nil
}

// assignIsolated sets the instrument while the panel is in the importing
// state, so the assignment cannot start a broadcast of its own.
func (b *InstrumentBroadcaster) assignIsolated(w *models.Panel, inst *models.Instrument) {
	prev := w.Sync
	w.Sync = models.SyncImporting
	w.Instrument = inst
	w.Sync = prev
}

func (b *InstrumentBroadcaster) submit(ctx context.Context, entries []drepo.FieldWrite) {
	c := b.canvas
	err := c.deps.Gateway.BatchUpsert(ctx, c.id, entries)
	c.deps.Metrics.RecordPersistence("batch_upsert", err)
	if err != nil {
		c.deps.Logger.Error("instrument batch write rejected",
			applogger.String("canvas", c.id),
			applogger.Int("entries", len(entries)),
			applogger.Error(err),
		)
	}
}
