package repository

import (
	"context"
	"time"

	"PanelSync/internal/domain/models"
)

// PersistenceGateway is the durable store for panel documents.
// Writes are fire-and-forget: a nil error means the write was accepted,
// not that it reached the backend.
type PersistenceGateway interface {
	UpsertPanelFields(ctx context.Context, canvasID, panelID string, fields Fields) error
	BatchUpsert(ctx context.Context, canvasID string, entries []FieldWrite) error
	RemovePanel(ctx context.Context, canvasID, panelID string) error
}

// PanelReader loads stored panel documents when a canvas is opened.
type PanelReader interface {
	LoadPanels(ctx context.Context, canvasID string) ([]StoredPanel, error)
}

// InstrumentFinder resolves a single instrument; (nil, nil) means not found.
type InstrumentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Instrument, error)
	FindBySymbol(ctx context.Context, symbol string) (*models.Instrument, error)
}

// InstrumentSearch is the external search collaborator.
type InstrumentSearch interface {
	Search(ctx context.Context, text string) (*models.SearchResult, error)
}

// EventPublisher forwards canvas events to other consumers.
type EventPublisher interface {
	Publish(ctx context.Context, ev *models.CanvasEvent) error
	Close() error
}

// EventStore archives canvas events for later inspection.
type EventStore interface {
	Store(ctx context.Context, ev *models.CanvasEvent) error
	Query(ctx context.Context, canvasID string, from, to time.Time, limit int) ([]*models.CanvasEvent, error)
	Health(ctx context.Context) error
}

type Metrics interface {
	RecordGesture(kind string)
	RecordBroadcast(group string, panels int)
	RecordPersistence(op string, err error)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
