package usecase

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"PanelSync/internal/domain/models"
	drepo "PanelSync/internal/domain/repository"
)

func twoPanels(t *testing.T, opts CanvasOptions) (*Canvas, *fakeGateway) {
	t.Helper()
	gw := &fakeGateway{}
	c, _ := testCanvas(gw, opts)
	mustAdd(c, models.PanelDefinition{ID: "a", X: 0, Y: 0, Width: 300, Height: 300, MinWidth: 100, MinHeight: 100})
	mustAdd(c, models.PanelDefinition{ID: "b", X: 310, Y: 0, Width: 300, Height: 300, MinWidth: 100, MinHeight: 100})
	return c, gw
}

func TestResizeRightEdgeSnapsToSibling(t *testing.T) {
	c, gw := twoPanels(t, CanvasOptions{SnapDistance: 15, SnapMargin: 5})
	ctx := context.Background()

	if err := c.Resize.BeginResize("a", models.HandleRight, models.Point{X: 300, Y: 150}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	got, err := c.Resize.PointerMoved("a", models.Point{X: 305, Y: 150})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	want := models.Rect{X: 0, Y: 0, Width: 305, Height: 300}
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if len(gw.upserts) != 0 {
		t.Fatalf("pointer moves must not persist, got %d writes", len(gw.upserts))
	}

	final, err := c.Resize.EndResize(ctx, "a")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if final != want {
		t.Fatalf("expected committed %s, got %s", want, final)
	}
	if len(gw.upserts) != 1 {
		t.Fatalf("expected exactly one write, got %d", len(gw.upserts))
	}
	f := gw.upserts[0].fields
	if f[drepo.FieldX] != 0 || f[drepo.FieldY] != 0 || f[drepo.FieldWidth] != 305 || f[drepo.FieldHeight] != 300 {
		t.Fatalf("unexpected geometry write %v", f)
	}
	if st, _ := c.Resize.State("a"); st != GestureIdle {
		t.Fatalf("expected idle after end, got %s", st)
	}
}

func TestResizeUsesCanvasSnapOptions(t *testing.T) {
	for _, tc := range []struct {
		distance int
		want     int
	}{
		{distance: 15, want: 305},
		{distance: 2, want: 302},
	} {
		c, _ := twoPanels(t, CanvasOptions{SnapDistance: tc.distance, SnapMargin: 5})
		if err := c.Resize.BeginResize("a", models.HandleRight, models.Point{X: 300, Y: 150}); err != nil {
			t.Fatalf("begin: %v", err)
		}
		got, err := c.Resize.PointerMoved("a", models.Point{X: 302, Y: 150})
		if err != nil {
			t.Fatalf("move: %v", err)
		}
		if got.Right() != tc.want {
			t.Fatalf("distance %d: expected right edge %d, got %s", tc.distance, tc.want, got)
		}
	}
}

func TestResizeKeepsMinimumAndOrigin(t *testing.T) {
	handles := []models.Handle{
		models.HandleTop, models.HandleRight, models.HandleBottom, models.HandleLeft,
		models.HandleNE, models.HandleSE, models.HandleSW, models.HandleNW, models.HandleNone,
	}
	rng := rand.New(rand.NewSource(42))

	for _, h := range handles {
		c, _ := twoPanels(t, CanvasOptions{SnapDistance: 15, SnapMargin: 5})
		mustAdd(c, models.PanelDefinition{ID: "c", X: 0, Y: 320, Width: 280, Height: 120, MinWidth: 100, MinHeight: 100})
		for round := 0; round < 20; round++ {
			origin := models.Point{X: rng.Intn(600), Y: rng.Intn(600)}
			var err error
			if h == models.HandleNone {
				err = c.Resize.BeginDrag("a", origin)
			} else {
				err = c.Resize.BeginResize("a", h, origin)
			}
			if err != nil {
				t.Fatalf("begin %q: %v", h, err)
			}
			for step := 0; step < 15; step++ {
				pt := models.Point{X: origin.X + rng.Intn(1200) - 600, Y: origin.Y + rng.Intn(1200) - 600}
				r, err := c.Resize.PointerMoved("a", pt)
				if err != nil {
					t.Fatalf("move %q: %v", h, err)
				}
				if r.Width < 100 || r.Height < 100 || r.X < 0 || r.Y < 0 {
					t.Fatalf("handle %q round %d step %d: invalid rect %s", h, round, step, r)
				}
			}
			if _, err := c.Resize.EndResize(context.Background(), "a"); err != nil {
				t.Fatalf("end %q: %v", h, err)
			}
		}
	}
}

func TestResizeLeftRederivesFromFixedEdge(t *testing.T) {
	gw := &fakeGateway{}
	c, _ := testCanvas(gw, CanvasOptions{SnapDistance: 15, SnapMargin: 5})
	mustAdd(c, models.PanelDefinition{ID: "a", X: 0, Y: 0, Width: 300, Height: 300, MinWidth: 100, MinHeight: 100})

	if err := c.Resize.BeginResize("a", models.HandleLeft, models.Point{X: 0, Y: 100}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	got, err := c.Resize.PointerMoved("a", models.Point{X: 250, Y: 400})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	want := models.Rect{X: 200, Y: 0, Width: 100, Height: 300}
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestDragTranslatesOnSnap(t *testing.T) {
	c, _ := twoPanels(t, CanvasOptions{SnapDistance: 15, SnapMargin: 5})

	if err := c.Resize.BeginDrag("a", models.Point{X: 0, Y: 0}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	got, err := c.Resize.PointerMoved("a", models.Point{X: 3, Y: 0})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if want := (models.Rect{X: 5, Y: 0, Width: 300, Height: 300}); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}

	got, err = c.Resize.PointerMoved("a", models.Point{X: -50, Y: -50})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if want := (models.Rect{X: 0, Y: 0, Width: 300, Height: 300}); got != want {
		t.Fatalf("expected clamp to %s, got %s", want, got)
	}
}

func TestBeginIsNoopWhileActive(t *testing.T) {
	c, _ := twoPanels(t, CanvasOptions{SnapDistance: 15, SnapMargin: 5})

	if err := c.Resize.BeginResize("a", models.HandleSE, models.Point{X: 300, Y: 300}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := c.Resize.BeginDrag("a", models.Point{X: 10, Y: 10}); err != nil {
		t.Fatalf("second begin: %v", err)
	}
	st, h := c.Resize.State("a")
	if st != GestureResizing || h != models.HandleSE {
		t.Fatalf("expected resizing se, got %s %q", st, h)
	}
	if st, _ := c.Resize.State("b"); st != GestureIdle {
		t.Fatalf("other panel must stay idle, got %s", st)
	}
}

func TestGestureErrors(t *testing.T) {
	c, _ := twoPanels(t, CanvasOptions{})

	if err := c.Resize.BeginResize("a", models.Handle("middle"), models.Point{}); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle, got %v", err)
	}
	if _, err := c.Resize.PointerMoved("a", models.Point{}); !errors.Is(err, ErrNoActiveGesture) {
		t.Fatalf("expected ErrNoActiveGesture, got %v", err)
	}
	if _, err := c.Resize.EndResize(context.Background(), "a"); !errors.Is(err, ErrNoActiveGesture) {
		t.Fatalf("expected ErrNoActiveGesture, got %v", err)
	}
	if err := c.Resize.BeginDrag("missing", models.Point{}); !errors.Is(err, ErrPanelNotFound) {
		t.Fatalf("expected ErrPanelNotFound, got %v", err)
	}
}

func TestFrozenSiblings(t *testing.T) {
	c, _ := twoPanels(t, CanvasOptions{SnapDistance: 15, SnapMargin: 5, FreezeSiblings: true})

	if err := c.Resize.BeginResize("a", models.HandleRight, models.Point{X: 300, Y: 150}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	b, _ := c.Panel("b")
	b.Rect = models.Rect{X: 900, Y: 0, Width: 300, Height: 300}

	got, err := c.Resize.PointerMoved("a", models.Point{X: 307, Y: 150})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if got.Right() != 305 {
		t.Fatalf("expected snap against frozen sibling, got %s", got)
	}
}

func TestLiveSiblings(t *testing.T) {
	c, _ := twoPanels(t, CanvasOptions{SnapDistance: 15, SnapMargin: 5})

	if err := c.Resize.BeginResize("a", models.HandleRight, models.Point{X: 300, Y: 150}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	b, _ := c.Panel("b")
	b.Rect = models.Rect{X: 900, Y: 0, Width: 300, Height: 300}

	got, err := c.Resize.PointerMoved("a", models.Point{X: 307, Y: 150})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if got.Right() != 307 {
		t.Fatalf("expected no snap once sibling moved away, got %s", got)
	}
}
