package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	drepo "PanelSync/internal/domain/repository"
	"PanelSync/pkg/docstore"
)

// gatedStore blocks every write until gate is closed and records write order.
type gatedStore struct {
	*docstore.MemoryStore
	gate chan struct{}

	mu    sync.Mutex
	order []string
	fail  error
}

func newGatedStore() *gatedStore {
	return &gatedStore{MemoryStore: docstore.NewMemoryStore(), gate: make(chan struct{})}
}

func (g *gatedStore) record(tag string) error {
	<-g.gate
	g.mu.Lock()
	defer g.mu.Unlock()
	g.order = append(g.order, tag)
	return g.fail
}

func (g *gatedStore) Upsert(ctx context.Context, coll, id string, fields map[string]any) error {
	if err := g.record("upsert:" + id); err != nil {
		return err
	}
	return g.MemoryStore.Upsert(ctx, coll, id, fields)
}

func (g *gatedStore) Batch(ctx context.Context, coll string, docs []docstore.Document) error {
	if err := g.record("batch"); err != nil {
		return err
	}
	return g.MemoryStore.Batch(ctx, coll, docs)
}

func (g *gatedStore) Delete(ctx context.Context, coll, id string) error {
	if err := g.record("delete:" + id); err != nil {
		return err
	}
	return g.MemoryStore.Delete(ctx, coll, id)
}

type countingMetrics struct {
	mu       sync.Mutex
	failures map[string]int
}

func (m *countingMetrics) RecordGesture(string) {}
func (m *countingMetrics) RecordBroadcast(string, int) {}
func (m *countingMetrics) RecordError(string) {}
func (m *countingMetrics) RecordLatency(string, float64) {}
func (m *countingMetrics) RecordPersistence(op string, err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures == nil {
		m.failures = map[string]int{}
	}
	m.failures[op]++
}

func TestPanelStoreAppliesInOrder(t *testing.T) {
	gs := newGatedStore()
	ps := NewPanelStore(gs, nil, nil)
	ctx := context.Background()

	mustOK := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	mustOK(ps.UpsertPanelFields(ctx, "c1", "a", drepo.Fields{drepo.FieldX: 1}))
	mustOK(ps.BatchUpsert(ctx, "c1", []drepo.FieldWrite{
		{PanelID: "a", Fields: drepo.Fields{drepo.FieldInstrumentID: "i-1"}},
		{PanelID: "b", Fields: drepo.Fields{drepo.FieldInstrumentID: "i-1"}},
	}))
	mustOK(ps.RemovePanel(ctx, "c1", "b"))
	mustOK(ps.UpsertPanelFields(ctx, "c1", "a", drepo.Fields{drepo.FieldX: 2}))

	close(gs.gate)
	if err := ps.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	want := []string{"upsert:a", "batch", "delete:b", "upsert:a"}
	if len(gs.order) != len(want) {
		t.Fatalf("order = %v", gs.order)
	}
	for i := range want {
		if gs.order[i] != want[i] {
			t.Fatalf("order = %v, want %v", gs.order, want)
		}
	}

	doc, err := gs.Get(ctx, canvasCollection("c1"), "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc[drepo.FieldX] != "2" || doc[drepo.FieldInstrumentID] != "i-1" {
		t.Fatalf("doc = %v", doc)
	}
	if _, err := gs.Get(ctx, canvasCollection("c1"), "b"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("b should be removed, err = %v", err)
	}
}

func TestPanelStoreQueueFull(t *testing.T) {
	gs := newGatedStore()
	ps := NewPanelStore(gs, nil, nil, WithQueueSize(1))
	ctx := context.Background()

	// the writer takes one op and blocks on the gate, the queue holds one more
	var full bool
	for i := 0; i < 4; i++ {
		if err := ps.UpsertPanelFields(ctx, "c", "p", drepo.Fields{drepo.FieldX: i}); errors.Is(err, ErrWriteQueueFull) {
			full = true
			break
		}
	}
	if !full {
		t.Fatalf("expected ErrWriteQueueFull")
	}
	close(gs.gate)
	_ = ps.Close()

	if err := ps.UpsertPanelFields(ctx, "c", "p", drepo.Fields{}); !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("err after close = %v", err)
	}
	if err := ps.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestPanelStoreCountsFailures(t *testing.T) {
	gs := newGatedStore()
	gs.fail = errors.New("redis down")
	close(gs.gate)
	m := &countingMetrics{}
	ps := NewPanelStore(gs, nil, m)

	_ = ps.BatchUpsert(context.Background(), "c", []drepo.FieldWrite{{PanelID: "p", Fields: drepo.Fields{drepo.FieldX: 1}}})
	_ = ps.Close()

	if m.failures["store_batch_upsert"] != 1 {
		t.Fatalf("failures = %v", m.failures)
	}
}

func TestPanelStoreEmptyBatchIsNoop(t *testing.T) {
	gs := newGatedStore()
	ps := NewPanelStore(gs, nil, nil)
	if err := ps.BatchUpsert(context.Background(), "c", nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if ps.Pending() != 0 {
		t.Fatalf("empty batch was queued")
	}
	close(gs.gate)
	_ = ps.Close()
}

func TestLoadPanelsOrder(t *testing.T) {
	ms := docstore.NewMemoryStore()
	ctx := context.Background()
	coll := canvasCollection("c")
	_ = ms.Upsert(ctx, coll, "top", map[string]any{drepo.FieldZIndex: 10})
	_ = ms.Upsert(ctx, coll, "b", map[string]any{drepo.FieldZIndex: 2})
	_ = ms.Upsert(ctx, coll, "a", map[string]any{drepo.FieldZIndex: 2})
	_ = ms.Upsert(ctx, coll, "bottom", map[string]any{drepo.FieldZIndex: 1})

	ps := NewPanelStore(ms, nil, nil)
	defer ps.Close()

	got, err := ps.LoadPanels(ctx, "c")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"bottom", "a", "b", "top"}
	for i, sp := range got {
		if sp.ID != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, sp.ID, want[i])
		}
	}
}
