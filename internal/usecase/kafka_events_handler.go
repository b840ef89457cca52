package usecase

import (
	"context"
	"encoding/json"
	"time"

	"PanelSync/internal/domain/models"
	domrepo "PanelSync/internal/domain/repository"
	pkgkafka "PanelSync/pkg/kafka"
)

// KafkaEventsHandler consumes canvas events and archives them.
type KafkaEventsHandler struct {
	topic   string
	store   domrepo.EventStore
	metrics domrepo.Metrics
}

func NewKafkaEventsHandler(topic string, store domrepo.EventStore, metrics domrepo.Metrics) *KafkaEventsHandler {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &KafkaEventsHandler{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaEventsHandler) Topic() string { return h.topic }

func (h *KafkaEventsHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.CanvasEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if !ev.Timestamp.IsZero() {
		h.metrics.RecordLatency("event_e2e_seconds", time.Since(ev.Timestamp).Seconds())
	}

	start := time.Now()
	err := h.store.Store(ctx, &ev)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaEventsHandler)(nil)
