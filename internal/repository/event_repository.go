package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"PanelSync/internal/domain/models"
	"PanelSync/internal/domain/repository"
	pkgkafka "PanelSync/pkg/kafka"
)

// ClickHouseEventStore implements EventStore for ClickHouse.
type ClickHouseEventStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseEventStore creates the event archive.
func NewClickHouseEventStore(db *sql.DB, table string) *ClickHouseEventStore {
	return &ClickHouseEventStore{db: db, table: table}
}

func (s *ClickHouseEventStore) Store(ctx context.Context, ev *models.CanvasEvent) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, canvas_id, panel_id, type, x, y, width, height, z_index, group_tag, instrument_id, price, affected) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table)
	var x, y, w, h int
	if ev.Rect != nil {
		x, y, w, h = ev.Rect.X, ev.Rect.Y, ev.Rect.Width, ev.Rect.Height
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	affected := ev.Affected
	if affected == nil {
		affected = []string{}
	}
	_, err := s.db.ExecContext(ctx, q,
		ts,
		ev.CanvasID,
		ev.PanelID,
		string(ev.Type),
		int32(x),
		int32(y),
		int32(w),
		int32(h),
		int32(ev.ZIndex),
		string(ev.Group),
		ev.InstrumentID,
		ev.Price,
		affected,
	)
	return err
}

func (s *ClickHouseEventStore) Query(ctx context.Context, canvasID string, from, to time.Time, limit int) ([]*models.CanvasEvent, error) {
	q := fmt.Sprintf("SELECT ts, canvas_id, panel_id, type, x, y, width, height, z_index, group_tag, instrument_id, price, affected FROM %s WHERE canvas_id = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, canvasID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.CanvasEvent
	for rows.Next() {
		var (
			ev         models.CanvasEvent
			typ, group string
			x, y, w, h int32
			z          int32
		)
		if err := rows.Scan(&ev.Timestamp, &ev.CanvasID, &ev.PanelID, &typ, &x, &y, &w, &h, &z, &group, &ev.InstrumentID, &ev.Price, &ev.Affected); err != nil {
			return nil, err
		}
		ev.Type = models.EventType(typ)
		ev.Group = models.GroupTag(group)
		ev.ZIndex = int(z)
		if ev.Type == models.EventGeometryCommitted || ev.Type == models.EventPanelAdded {
			ev.Rect = &models.Rect{X: int(x), Y: int(y), Width: int(w), Height: int(h)}
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func (s *ClickHouseEventStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// KafkaEventPublisher implements EventPublisher for Kafka.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaEventPublisher creates Kafka publisher keyed by canvas id.
func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, ev *models.CanvasEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.CanvasID), ev)
}

// PublishBatch writes the events in one producer call, preserving order.
func (p *KafkaEventPublisher) PublishBatch(ctx context.Context, events []*models.CanvasEvent) error {
	msgs := make([]pkgkafka.Message, 0, len(events))
	for _, ev := range events {
		msgs = append(msgs, pkgkafka.Message{Key: []byte(ev.CanvasID), Value: ev})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// Close is a no-op; the producer is shared and closed by its owner.
func (p *KafkaEventPublisher) Close() error {
	return nil
}

// EventSchema returns the DDL for the event archive table.
func EventSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		strings.TrimSpace(fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    ts            DateTime64(3),
    canvas_id     LowCardinality(String),
    panel_id      String,
    type          LowCardinality(String),
    x             Int32,
    y             Int32,
    width         Int32,
    height        Int32,
    z_index       Int32,
    group_tag     LowCardinality(String),
    instrument_id String,
    price         Float64,
    affected      Array(String)
) ENGINE = MergeTree
PARTITION BY toYYYYMM(ts)
ORDER BY (canvas_id, ts)`, table)),
	}
}

var (
	_ repository.EventStore     = (*ClickHouseEventStore)(nil)
	_ repository.EventPublisher = (*KafkaEventPublisher)(nil)
	_ BatchPublisher            = (*KafkaEventPublisher)(nil)
)
