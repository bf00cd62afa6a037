package history

import (
	"errors"
	"testing"
)

type counter struct{ v int }

type add struct{ n int }

func (a add) Do(c *counter) error   { c.v += a.n; return nil }
func (a add) Undo(c *counter) error { c.v -= a.n; return nil }

type failing struct{}

func (failing) Do(*counter) error   { return errors.New("do failed") }
func (failing) Undo(*counter) error { return errors.New("undo failed") }

// apply performs the edit and records it, the way editors use the log.
func apply(h *History[*counter], c *counter, a Action[*counter]) {
	_ = a.Do(c)
	h.Push(a)
}

func TestUndoRedo(t *testing.T) {
	c := &counter{}
	h := New[*counter](10)
	apply(h, c, add{1})
	apply(h, c, add{10})
	apply(h, c, add{100})

	if ok, _ := h.Undo(c); !ok || c.v != 11 {
		t.Fatalf("undo: ok=%v v=%d", ok, c.v)
	}
	if ok, _ := h.Undo(c); !ok || c.v != 1 {
		t.Fatalf("undo: ok=%v v=%d", ok, c.v)
	}
	if ok, _ := h.Redo(c); !ok || c.v != 11 {
		t.Fatalf("redo: ok=%v v=%d", ok, c.v)
	}
	if ok, _ := h.Redo(c); !ok || c.v != 111 {
		t.Fatalf("redo: ok=%v v=%d", ok, c.v)
	}
	if ok, _ := h.Redo(c); ok {
		t.Fatalf("redo past the end")
	}
}

func TestPushDiscardsRedoFuture(t *testing.T) {
	c := &counter{}
	h := New[*counter](10)
	apply(h, c, add{1})
	apply(h, c, add{2})
	_, _ = h.Undo(c)
	apply(h, c, add{5})

	if h.CanRedo() || h.Len() != 2 {
		t.Fatalf("future not discarded: len=%d canRedo=%v", h.Len(), h.CanRedo())
	}
	_, _ = h.Undo(c)
	_, _ = h.Undo(c)
	if c.v != 0 {
		t.Fatalf("v=%d after undoing everything", c.v)
	}
}

func TestBoundedDepth(t *testing.T) {
	c := &counter{}
	h := New[*counter](3)
	for i := 1; i <= 5; i++ {
		apply(h, c, add{i})
	}
	if h.Len() != 3 {
		t.Fatalf("len=%d want 3", h.Len())
	}
	for h.CanUndo() {
		_, _ = h.Undo(c)
	}
	// Only the last three edits (3, 4, 5) could be undone.
	if c.v != 1+2 {
		t.Fatalf("v=%d want 3", c.v)
	}

	h.SetMax(1)
	if h.Len() != 1 {
		t.Fatalf("SetMax did not trim: %d", h.Len())
	}
}

func TestDisabledAndClear(t *testing.T) {
	c := &counter{}
	h := New[*counter](0)
	apply(h, c, add{1})
	if h.CanUndo() {
		t.Fatalf("disabled history recorded an action")
	}

	h = New[*counter](5)
	apply(h, c, add{1})
	h.Clear()
	if ok, _ := h.Undo(c); ok {
		t.Fatalf("undo after Clear")
	}
}

func TestFailingUndoKeepsState(t *testing.T) {
	c := &counter{}
	h := New[*counter](5)
	h.Push(failing{})
	if ok, err := h.Undo(c); ok || err == nil {
		t.Fatalf("expected failed undo, ok=%v err=%v", ok, err)
	}
	if !h.CanUndo() {
		t.Fatalf("failed undo moved the cursor")
	}
}
