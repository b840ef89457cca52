package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type recordingHook struct {
	NoopHook
	name  string
	trail *[]string
	fail  error
	boom  bool
}

func (h recordingHook) BeforeHandle(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	*h.trail = append(*h.trail, "before:"+h.name)
	if h.boom {
		panic("boom")
	}
	return ctx, km, append(data, h.name...), h.fail
}

func (h recordingHook) AfterHandle(context.Context, string, kafka.Message, []byte, error) {
	*h.trail = append(*h.trail, "after:"+h.name)
}

func TestHookChainOrder(t *testing.T) {
	var trail []string
	chain := NewHookChain(recordingHook{name: "a", trail: &trail}, nil, recordingHook{name: "b", trail: &trail})

	_, _, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte(">"))
	if err != nil {
		t.Fatalf("before: %v", err)
	}
	if string(data) != ">ab" {
		t.Fatalf("payload not threaded: %q", data)
	}
	chain.AfterHandle(context.Background(), "t", kafka.Message{}, data, nil)

	want := []string{"before:a", "before:b", "after:b", "after:a"}
	if len(trail) != len(want) {
		t.Fatalf("trail = %v", trail)
	}
	for i := range want {
		if trail[i] != want[i] {
			t.Fatalf("trail = %v, want %v", trail, want)
		}
	}
}

func TestHookChainStopsOnError(t *testing.T) {
	var trail []string
	stop := errors.New("stop")
	chain := NewHookChain(recordingHook{name: "a", trail: &trail, fail: stop}, recordingHook{name: "b", trail: &trail})

	_, _, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte(">"))
	if !errors.Is(err, stop) {
		t.Fatalf("err = %v", err)
	}
	if string(data) != ">" {
		t.Fatalf("payload should be unchanged, got %q", data)
	}
	if len(trail) != 1 {
		t.Fatalf("second hook ran: %v", trail)
	}
}

func TestHookChainRecoversPanic(t *testing.T) {
	var trail []string
	chain := NewHookChain(recordingHook{name: "a", trail: &trail, boom: true})

	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	if !errors.As(err, &he) || he.Code != "ERR_PANIC" {
		t.Fatalf("expected panic hook error, got %v", err)
	}
}

func TestTraceHook(t *testing.T) {
	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}
	ctx, _, _, err := TraceHook{}.BeforeHandle(context.Background(), "t", km, nil)
	if err != nil {
		t.Fatalf("before: %v", err)
	}
	if id, ok := TraceID(ctx); !ok || id != "abc" {
		t.Fatalf("trace id = %q, %v", id, ok)
	}
	if _, ok := StartTime(ctx); !ok {
		t.Fatalf("start time missing")
	}
}

func TestMaxPayloadHook(t *testing.T) {
	h := MaxPayloadHook{Limit: 4}
	if _, _, _, err := h.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte("1234")); err != nil {
		t.Fatalf("at limit: %v", err)
	}
	if _, _, _, err := h.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte("12345")); err == nil {
		t.Fatalf("expected rejection over limit")
	}
}

func TestBackoffWithJitter(t *testing.T) {
	min, max := 10*time.Millisecond, 80*time.Millisecond
	for attempt := 1; attempt <= 8; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		if d <= 0 || d > max {
			t.Fatalf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
}

func TestStartOffset(t *testing.T) {
	if startOffset("latest") != kafka.LastOffset {
		t.Fatalf("latest")
	}
	if startOffset("earliest") != kafka.FirstOffset || startOffset("") != kafka.FirstOffset {
		t.Fatalf("earliest")
	}
}
