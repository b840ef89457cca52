package repository

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	drepo "PanelSync/internal/domain/repository"
	"PanelSync/pkg/docstore"
	applogger "PanelSync/pkg/logger"
)

var (
	ErrWriteQueueFull = errors.New("panel store: write queue full")
	ErrStoreClosed    = errors.New("panel store: closed")
)

type opKind int

const (
	opUpsert opKind = iota
	opBatch
	opRemove
)

func (k opKind) String() string {
	switch k {
	case opBatch:
		return "batch_upsert"
	case opRemove:
		return "remove"
	default:
		return "upsert"
	}
}

type writeOp struct {
	kind     opKind
	canvasID string
	panelID  string
	fields   drepo.Fields
	entries  []drepo.FieldWrite
}

// PanelStoreOption configures PanelStore.
type PanelStoreOption func(*PanelStore)

// WithQueueSize sets the write queue capacity.
func WithQueueSize(n int) PanelStoreOption {
	return func(s *PanelStore) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithWriteTimeout bounds each backend write.
func WithWriteTimeout(d time.Duration) PanelStoreOption {
	return func(s *PanelStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// PanelStore persists panel documents through a single writer goroutine.
// Writes are accepted without blocking and applied in submission order.
type PanelStore struct {
	store   docstore.Store
	log     *applogger.Logger
	metrics drepo.Metrics

	queueSize int
	timeout   time.Duration
	ops       chan writeOp

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPanelStore creates the store and starts its writer.
func NewPanelStore(store docstore.Store, log *applogger.Logger, metrics drepo.Metrics, opts ...PanelStoreOption) *PanelStore {
	s := &PanelStore{
		store:     store,
		log:       log,
		metrics:   metrics,
		queueSize: 1024,
		timeout:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = applogger.NewNop()
	}
	s.ops = make(chan writeOp, s.queueSize)

	s.wg.Add(1)
	go s.writer()
	return s
}

func canvasCollection(canvasID string) string {
	return docstore.Collection("canvas", canvasID)
}

func (s *PanelStore) UpsertPanelFields(_ context.Context, canvasID, panelID string, fields drepo.Fields) error {
	return s.enqueue(writeOp{kind: opUpsert, canvasID: canvasID, panelID: panelID, fields: fields})
}

func (s *PanelStore) BatchUpsert(_ context.Context, canvasID string, entries []drepo.FieldWrite) error {
	if len(entries) == 0 {
		return nil
	}
	return s.enqueue(writeOp{kind: opBatch, canvasID: canvasID, entries: entries})
}

func (s *PanelStore) RemovePanel(_ context.Context, canvasID, panelID string) error {
	return s.enqueue(writeOp{kind: opRemove, canvasID: canvasID, panelID: panelID})
}

func (s *PanelStore) enqueue(op writeOp) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	select {
	case s.ops <- op:
		return nil
	default:
		return ErrWriteQueueFull
	}
}

func (s *PanelStore) writer() {
	defer s.wg.Done()
	for op := range s.ops {
		s.apply(op)
	}
}

func (s *PanelStore) apply(op writeOp) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	coll := canvasCollection(op.canvasID)
	var err error
	switch op.kind {
	case opUpsert:
		err = s.store.Upsert(ctx, coll, op.panelID, op.fields)
	case opBatch:
		docs := make([]docstore.Document, len(op.entries))
		for i, e := range op.entries {
			docs[i] = docstore.Document{ID: e.PanelID, Fields: e.Fields}
		}
		err = s.store.Batch(ctx, coll, docs)
	case opRemove:
		err = s.store.Delete(ctx, coll, op.panelID)
	}

	if s.metrics != nil {
		s.metrics.RecordPersistence("store_"+op.kind.String(), err)
	}
	if err != nil {
		s.log.Error("panel store write failed",
			applogger.String("op", op.kind.String()),
			applogger.String("canvas", op.canvasID),
			applogger.String("panel", op.panelID),
			applogger.Int("entries", len(op.entries)),
			applogger.Error(err),
		)
	}
}

// LoadPanels returns the stored panels of a canvas ordered by z-order.
func (s *PanelStore) LoadPanels(ctx context.Context, canvasID string) ([]drepo.StoredPanel, error) {
	docs, err := s.store.List(ctx, canvasCollection(canvasID))
	if err != nil {
		return nil, err
	}
	out := make([]drepo.StoredPanel, 0, len(docs))
	for id, fields := range docs {
		out = append(out, drepo.StoredPanel{ID: id, Fields: fields})
	}
	sort.Slice(out, func(i, j int) bool {
		zi, _ := strconv.Atoi(out[i].Fields[drepo.FieldZIndex])
		zj, _ := strconv.Atoi(out[j].Fields[drepo.FieldZIndex])
		if zi != zj {
			return zi < zj
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Pending returns the number of queued writes.
func (s *PanelStore) Pending() int {
	return len(s.ops)
}

// Close stops accepting writes and waits until queued writes are applied.
func (s *PanelStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ops)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

var (
	_ drepo.PersistenceGateway = (*PanelStore)(nil)
	_ drepo.PanelReader        = (*PanelStore)(nil)
)
