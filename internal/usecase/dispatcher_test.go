package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"PanelSync/internal/domain/models"
	drepo "PanelSync/internal/domain/repository"
)

func startDispatcher(t *testing.T, reader drepo.PanelReader, finder drepo.InstrumentFinder) (*Dispatcher, *fakeGateway) {
	t.Helper()
	gw := &fakeGateway{}
	d := NewDispatcher(CanvasOptions{SnapDistance: 15, SnapMargin: 5}, Deps{Gateway: gw}, reader, finder, 8)
	d.Start()
	t.Cleanup(d.Stop)
	return d, gw
}

func TestDispatcherGestureRoundTrip(t *testing.T) {
	d, gw := startDispatcher(t, nil, nil)
	ctx := context.Background()

	if _, err := d.AddPanel(ctx, "c1", models.PanelDefinition{ID: "a", Kind: "chart", Width: 300, Height: 300, MinWidth: 100, MinHeight: 100}); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if _, err := d.AddPanel(ctx, "c1", models.PanelDefinition{ID: "b", Kind: "chart", X: 310, Width: 300, Height: 300, MinWidth: 100, MinHeight: 100}); err != nil {
		t.Fatalf("add b: %v", err)
	}
	if err := d.BeginResize(ctx, "c1", "a", models.HandleRight, models.Point{X: 300, Y: 10}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	r, err := d.PointerMoved(ctx, "c1", "a", models.Point{X: 305, Y: 10})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if r.Right() != 305 {
		t.Fatalf("expected snapped right edge 305, got %s", r)
	}
	final, err := d.EndResize(ctx, "c1", "a")
	if err != nil || final != r {
		t.Fatalf("end: %v %s", err, final)
	}

	view, err := d.Snapshot(ctx, "c1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(view.Panels) != 2 || view.Panels[0].Rect != r {
		t.Fatalf("unexpected snapshot %+v", view)
	}
	if got := len(gw.upserts); got != 3 {
		t.Fatalf("expected 2 creates and 1 geometry write, got %d", got)
	}
}

func TestDispatcherErrors(t *testing.T) {
	d, _ := startDispatcher(t, nil, nil)
	ctx := context.Background()

	if _, err := d.Snapshot(ctx, "nope"); !errors.Is(err, ErrCanvasNotFound) {
		t.Fatalf("expected ErrCanvasNotFound, got %v", err)
	}
	if _, err := d.AddPanel(ctx, "c1", models.PanelDefinition{ID: "a", Kind: "chart"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := d.SetGroup(ctx, "c1", "a", "12"); !errors.Is(err, ErrInvalidGroup) {
		t.Fatalf("expected ErrInvalidGroup, got %v", err)
	}
	if _, err := d.Focus(ctx, "c1", "zz"); !errors.Is(err, ErrPanelNotFound) {
		t.Fatalf("expected ErrPanelNotFound, got %v", err)
	}
}

func TestDispatcherSerializesConcurrentCallers(t *testing.T) {
	d, gw := startDispatcher(t, nil, nil)
	ctx := context.Background()
	for _, id := range []string{"p1", "p2", "p3"} {
		if _, err := d.AddPanel(ctx, "c1", models.PanelDefinition{ID: id, Kind: "chart", Group: "1"}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	gw.reset()

	var wg sync.WaitGroup
	insts := []*models.Instrument{instAAPL, instMSFT, instBTC}
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := []string{"p1", "p2", "p3"}[i%3]
			if _, err := d.SetInstrument(ctx, "c1", id, insts[i%3]); err != nil {
				t.Errorf("set: %v", err)
			}
		}(i)
	}
	wg.Wait()

	gw.mu.Lock()
	batches := len(gw.batches)
	gw.mu.Unlock()
	if batches != 30 {
		t.Fatalf("expected one batch per call, got %d", batches)
	}
	view, err := d.Snapshot(ctx, "c1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	first := view.Panels[0].Instrument.ID
	for _, p := range view.Panels {
		if p.Instrument.ID != first {
			t.Fatalf("group diverged: %s has %s, want %s", p.ID, p.Instrument.ID, first)
		}
	}
}

func TestOpenCanvasRestores(t *testing.T) {
	reader := &fakeReader{panels: map[string][]drepo.StoredPanel{
		"desk": {
			{ID: "a", Fields: map[string]string{"kind": "chart", "x": "10", "y": "20", "width": "400", "height": "420", "zIndex": "4", "group": "2", "instrumentId": instAAPL.ID}},
			{ID: "b", Fields: map[string]string{"kind": "ticket", "zIndex": "9", "instrumentId": "gone", "acceptsPrice": "true"}},
		},
	}}
	d, gw := startDispatcher(t, reader, newFakeFinder(instAAPL))
	ctx := context.Background()

	view, err := d.OpenCanvas(ctx, "desk")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if view.ZIndex != 9 || len(view.Panels) != 2 {
		t.Fatalf("unexpected view %+v", view)
	}
	a := view.Panels[0]
	if a.Rect != (models.Rect{X: 10, Y: 20, Width: 400, Height: 420}) || a.Group != "2" || a.Instrument == nil || a.Instrument.ID != instAAPL.ID {
		t.Fatalf("unexpected restored panel %+v", a)
	}
	b := view.Panels[1]
	if b.Instrument != nil || !b.AcceptsPrice || b.Rect.Width != models.DefaultMinWidth {
		t.Fatalf("unexpected restored panel %+v", b)
	}
	if len(gw.upserts) != 0 {
		t.Fatalf("restoring must not write, got %d", len(gw.upserts))
	}

	again, err := d.OpenCanvas(ctx, "desk")
	if err != nil || len(again.Panels) != 2 {
		t.Fatalf("reopen must keep the open canvas: %v %+v", err, again)
	}
}

func TestSelectInstrument(t *testing.T) {
	d, gw := startDispatcher(t, nil, newFakeFinder(instAAPL, instMSFT))
	ctx := context.Background()
	for _, id := range []string{"p1", "p2", "p3"} {
		if _, err := d.AddPanel(ctx, "c1", models.PanelDefinition{ID: id, Kind: "chart", Group: "5"}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	gw.reset()

	affected, found, err := d.SelectInstrument(ctx, "c1", "p1", SelectQuery{Symbol: "MSFT"}, false)
	if err != nil || !found {
		t.Fatalf("select: found=%v err=%v", found, err)
	}
	if len(affected) != 2 {
		t.Fatalf("expected siblings only, got %v", affected)
	}
	view, _ := d.Snapshot(ctx, "c1")
	if view.Panels[0].Instrument != nil {
		t.Fatalf("origin must not take the instrument")
	}

	affected, found, err = d.SelectInstrument(ctx, "c1", "p1", SelectQuery{InstrumentID: instAAPL.ID}, true)
	if err != nil || !found || len(affected) != 3 {
		t.Fatalf("select on this: %v %v %v", affected, found, err)
	}

	gw.reset()
	_, found, err = d.SelectInstrument(ctx, "c1", "p1", SelectQuery{Symbol: "NOPE"}, true)
	if err != nil || found {
		t.Fatalf("unknown instrument must be a no-op: found=%v err=%v", found, err)
	}
	if len(gw.batches) != 0 {
		t.Fatalf("no writes expected for a failed lookup")
	}
}

func TestDispatchAfterStop(t *testing.T) {
	d := NewDispatcher(CanvasOptions{}, Deps{Gateway: &fakeGateway{}}, nil, nil, 1)
	d.Start()
	d.Stop()
	d.Stop()

	if _, err := d.Snapshot(context.Background(), "c1"); !errors.Is(err, ErrDispatcherDone) {
		t.Fatalf("expected ErrDispatcherDone, got %v", err)
	}
}

func TestDispatchHonoursContext(t *testing.T) {
	d := NewDispatcher(CanvasOptions{}, Deps{Gateway: &fakeGateway{}}, nil, nil, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Loop not started: the first command fills the queue, the second blocks.
	go func() { _, _ = d.Dispatch(ctx, SnapshotCanvas{CanvasID: "c1"}) }()
	if _, err := d.Dispatch(ctx, SnapshotCanvas{CanvasID: "c1"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}

func TestKafkaSelectionHandler(t *testing.T) {
	d, _ := startDispatcher(t, nil, newFakeFinder(instBTC))
	ctx := context.Background()
	if _, err := d.AddPanel(ctx, "c1", models.PanelDefinition{ID: "p1", Kind: "chart"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	h := NewKafkaSelectionHandler("selections", d, nil, nil)
	if h.Topic() != "selections" {
		t.Fatalf("unexpected topic %s", h.Topic())
	}

	msg, _ := json.Marshal(models.InstrumentSelection{CanvasID: "c1", PanelID: "p1", Symbol: "BTCUSD", SelectOnThis: true})
	if err := h.Handle(ctx, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	view, _ := d.Snapshot(ctx, "c1")
	if view.Panels[0].Instrument == nil || view.Panels[0].Instrument.ID != instBTC.ID {
		t.Fatalf("selection not applied: %+v", view.Panels[0])
	}

	unknown, _ := json.Marshal(models.InstrumentSelection{CanvasID: "zz", PanelID: "p1", Symbol: "BTCUSD", SelectOnThis: true})
	if err := h.Handle(ctx, unknown); err != nil {
		t.Fatalf("unknown canvas must be dropped, got %v", err)
	}
	if err := h.Handle(ctx, []byte("{")); err == nil {
		t.Fatalf("expected unmarshal error")
	}
}

func TestKafkaEventsHandler(t *testing.T) {
	store := &fakeEventStore{}
	h := NewKafkaEventsHandler("canvas.events", store, nil)

	msg, _ := json.Marshal(models.CanvasEvent{Type: models.EventPanelFocused, CanvasID: "c1", PanelID: "a", ZIndex: 3, Timestamp: time.Now()})
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(store.stored) != 1 || store.stored[0].ZIndex != 3 {
		t.Fatalf("unexpected stored events %+v", store.stored)
	}

	store.fail = errTest
	if err := h.Handle(context.Background(), msg); !errors.Is(err, errTest) {
		t.Fatalf("expected store error, got %v", err)
	}
}
