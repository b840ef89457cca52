package docstore

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreUpsertAndClear(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Upsert(ctx, "canvas/c1", "a", map[string]any{"x": 10, "group": "2", "acceptsPrice": true}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Upsert(ctx, "canvas/c1", "a", map[string]any{"group": nil, "y": 4}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	doc, err := s.Get(ctx, "canvas/c1", "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc["x"] != "10" || doc["y"] != "4" || doc["acceptsPrice"] != "true" {
		t.Fatalf("unexpected doc %v", doc)
	}
	if _, ok := doc["group"]; ok {
		t.Fatalf("expected group removed, got %v", doc)
	}
}

func TestMemoryStoreBatchListDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.Batch(ctx, "canvas/c1", []Document{
		{ID: "a", Fields: map[string]any{"instrumentId": "i-1"}},
		{ID: "b", Fields: map[string]any{"instrumentId": "i-1"}},
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	all, _ := s.List(ctx, "canvas/c1")
	if len(all) != 2 || all["b"]["instrumentId"] != "i-1" {
		t.Fatalf("unexpected list %v", all)
	}

	if err := s.Delete(ctx, "canvas/c1", "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "canvas/c1", "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if all, _ := s.List(ctx, "canvas/c2"); len(all) != 0 {
		t.Fatalf("expected empty collection")
	}
}

func TestEncode(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"s", "s"},
		{42, "42"},
		{int64(7), "7"},
		{1.5, "1.5"},
		{false, "false"},
		{[]string{"a"}, `["a"]`},
	}
	for _, tc := range cases {
		got, err := Encode(tc.in)
		if err != nil || got != tc.want {
			t.Fatalf("Encode(%v) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}
