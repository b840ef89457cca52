package usecase

import (
	"context"
	"sync"
	"time"

	"PanelSync/internal/domain/models"
	drepo "PanelSync/internal/domain/repository"
)

type upsertCall struct {
	canvasID string
	panelID  string
	fields   drepo.Fields
}

type fakeGateway struct {
	mu      sync.Mutex
	upserts []upsertCall
	batches [][]drepo.FieldWrite
	removed []string
	fail    error
}

func (g *fakeGateway) UpsertPanelFields(_ context.Context, canvasID, panelID string, fields drepo.Fields) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.upserts = append(g.upserts, upsertCall{canvasID: canvasID, panelID: panelID, fields: fields})
	return g.fail
}

func (g *fakeGateway) BatchUpsert(_ context.Context, _ string, entries []drepo.FieldWrite) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.batches = append(g.batches, entries)
	return g.fail
}

func (g *fakeGateway) RemovePanel(_ context.Context, _, panelID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removed = append(g.removed, panelID)
	return g.fail
}

func (g *fakeGateway) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.upserts, g.batches, g.removed = nil, nil, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []*models.CanvasEvent
}

func (e *fakeEvents) Publish(_ context.Context, ev *models.CanvasEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *fakeEvents) Close() error { return nil }

func (e *fakeEvents) types() []models.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.EventType, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeFinder struct {
	byID map[string]*models.Instrument
	err  error
}

func newFakeFinder(insts ...*models.Instrument) *fakeFinder {
	f := &fakeFinder{byID: make(map[string]*models.Instrument)}
	for _, i := range insts {
		f.byID[i.ID] = i
	}
	return f
}

func (f *fakeFinder) FindByID(_ context.Context, id string) (*models.Instrument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byID[id], nil
}

func (f *fakeFinder) FindBySymbol(_ context.Context, symbol string) (*models.Instrument, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, i := range f.byID {
		if i.Symbol == symbol {
			return i, nil
		}
	}
	return nil, nil
}

type fakeReader struct {
	panels map[string][]drepo.StoredPanel
}

func (r *fakeReader) LoadPanels(_ context.Context, canvasID string) ([]drepo.StoredPanel, error) {
	return r.panels[canvasID], nil
}

type fakeEventStore struct {
	mu     sync.Mutex
	stored []*models.CanvasEvent
	fail   error
}

func (s *fakeEventStore) Store(_ context.Context, ev *models.CanvasEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.stored = append(s.stored, ev)
	return nil
}

func (s *fakeEventStore) Query(context.Context, string, time.Time, time.Time, int) ([]*models.CanvasEvent, error) {
	return nil, nil
}

func (s *fakeEventStore) Health(context.Context) error { return nil }

var (
	instAAPL = &models.Instrument{ID: "i-aapl", Symbol: "AAPL", FullName: "Apple Inc.", Type: "stock"}
	instMSFT = &models.Instrument{ID: "i-msft", Symbol: "MSFT", FullName: "Microsoft Corp.", Type: "stock"}
	instBTC  = &models.Instrument{ID: "i-btc", Symbol: "BTCUSD", FullName: "Bitcoin", Type: "crypto"}
)

func testCanvas(gw *fakeGateway, opts CanvasOptions) (*Canvas, *fakeEvents) {
	ev := &fakeEvents{}
	c := NewCanvas("c1", opts, Deps{
		Gateway: gw,
		Events:  ev,
		Now:     func() time.Time { return time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC) },
	})
	return c, ev
}

func mustAdd(c *Canvas, def models.PanelDefinition) *models.Panel {
	if def.Kind == "" {
		def.Kind = "chart"
	}
	p, err := c.AddPanel(context.Background(), def, false)
	if err != nil {
		panic(err)
	}
	return p
}
