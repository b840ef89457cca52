package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimal = `
environment: test
persistence:
  backend: memory
`

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Canvas.SnapDistance != 5 || c.Canvas.SnapMargin != 5 {
		t.Fatalf("snap defaults = %d/%d", c.Canvas.SnapDistance, c.Canvas.SnapMargin)
	}
	if c.Canvas.DefaultMinWidth != 275 || c.Canvas.DefaultMinHeight != 395 {
		t.Fatalf("min size defaults = %dx%d", c.Canvas.DefaultMinWidth, c.Canvas.DefaultMinHeight)
	}
	if c.Persistence.QueueSize != 1024 || c.Persistence.WriteTimeout != 5*time.Second {
		t.Fatalf("persistence defaults = %+v", c.Persistence)
	}
	if c.Kafka.Topics.Events == "" || c.Kafka.Consumer.AutoOffsetReset != "latest" {
		t.Fatalf("kafka defaults = %+v", c.Kafka.Topics)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"no environment":   "persistence: {backend: memory}",
		"redis needs host": "environment: x\npersistence: {backend: redis}",
		"bad backend":      "environment: x\npersistence: {backend: disk}",
		"kafka no brokers": minimal + "kafka: {enabled: true}",
		"bad offset":       minimal + "kafka: {consumer: {auto_offset_reset: middle}}",
		"ch needs kafka":   minimal + "clickhouse: {enabled: true, host: ch}",
		"bad seed":         minimal + "instruments: {seed: [{id: i-1}]}",
		"negative snap":    minimal + "canvas: {snap_distance: -1}",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(minimal), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	c, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 9999 || !c.Kafka.Enabled || strings.Join(c.Kafka.Brokers, ";") != "k1:9092;k2:9092" {
		t.Fatalf("env not applied: port=%d kafka=%v %v", c.Server.Port, c.Kafka.Enabled, c.Kafka.Brokers)
	}

	t.Setenv("PERSISTENCE_BACKEND", "redis")
	if _, err := LoadWithEnv(path); err == nil {
		t.Fatalf("env override must be validated")
	}
}

func TestShippedConfigParses(t *testing.T) {
	if _, err := Load(filepath.Join("..", "..", "config", "config.yaml")); err != nil {
		t.Fatalf("config/config.yaml: %v", err)
	}
}
