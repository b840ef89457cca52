package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"PanelSync/internal/domain/models"
	"PanelSync/internal/repository"
	"PanelSync/internal/usecase"
	"PanelSync/pkg/config"
	"PanelSync/pkg/docstore"
	xhttp "PanelSync/pkg/http"
)

func TestRunContextShutsDownInOrder(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.ShutdownTimeout = time.Second

	store := docstore.NewMemoryStore()
	panels := repository.NewPanelStore(store, nil, nil)
	relay := repository.NewEventRelay(8, nil, nil)
	d := usecase.NewDispatcher(usecase.CanvasOptions{}, usecase.Deps{Gateway: panels, Events: relay}, panels, nil, 4)
	srv := xhttp.NewServer(nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0), xhttp.WithMetricsPath(""))

	app := New(cfg, nil, Components{
		HTTP:       srv,
		Dispatcher: d,
		Events:     relay,
		Panels:     panels,
		Store:      store,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	// wait for the dispatcher loop before issuing commands
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := d.AddPanel(context.Background(), "c1", models.PanelDefinition{ID: "a", Kind: "chart"}); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("dispatcher never accepted commands")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("shutdown did not finish")
	}

	if _, err := d.Snapshot(context.Background(), "c1"); !errors.Is(err, usecase.ErrDispatcherDone) {
		t.Fatalf("dispatcher still running: %v", err)
	}
	// the queued create reached the store before it closed
	if _, err := store.Get(context.Background(), docstore.Collection("canvas", "c1"), "a"); err != nil {
		t.Fatalf("panel not flushed: %v", err)
	}
}
