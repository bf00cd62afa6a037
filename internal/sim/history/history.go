// Package history is a bounded undo/redo log.
package history

// Action is one reversible edit of a T. Do reapplies the edit, Undo reverts it.
type Action[T any] interface {
	Do(target T) error
	Undo(target T) error
}

// History holds applied actions up to a maximum depth. Actions are pushed
// after they have been applied; pushing after an undo discards the undone
// actions.
type History[T any] struct {
	max     int
	actions []Action[T]
	// cursor is the number of actions currently applied.
	cursor int
}

// New returns a log holding at most depth actions. depth <= 0 disables history.
func New[T any](depth int) *History[T] {
	return &History[T]{max: depth}
}

func (h *History[T]) Max() int { return h.max }

// SetMax changes the depth, dropping the oldest actions if needed.
func (h *History[T]) SetMax(depth int) {
	h.max = depth
	h.trim()
}

func (h *History[T]) Push(a Action[T]) {
	if h.max <= 0 {
		return
	}
	for i := h.cursor; i < len(h.actions); i++ {
		h.actions[i] = nil
	}
	h.actions = append(h.actions[:h.cursor], a)
	h.cursor++
	h.trim()
}

func (h *History[T]) trim() {
	if h.max < 0 {
		h.max = 0
	}
	if over := len(h.actions) - h.max; over > 0 {
		h.actions = append(h.actions[:0:0], h.actions[over:]...)
		h.cursor = max(h.cursor-over, 0)
	}
}

// Undo reverts the most recent applied action. It reports false when there
// is nothing to undo. An action whose Undo fails stays applied.
func (h *History[T]) Undo(target T) (bool, error) {
	if h.cursor == 0 {
		return false, nil
	}
	if err := h.actions[h.cursor-1].Undo(target); err != nil {
		return false, err
	}
	h.cursor--
	return true, nil
}

// Redo reapplies the most recently undone action.
func (h *History[T]) Redo(target T) (bool, error) {
	if h.cursor == len(h.actions) {
		return false, nil
	}
	if err := h.actions[h.cursor].Do(target); err != nil {
		return false, err
	}
	h.cursor++
	return true, nil
}

func (h *History[T]) CanUndo() bool { return h.cursor > 0 }

func (h *History[T]) CanRedo() bool { return h.cursor < len(h.actions) }

// Len is the number of actions held, applied or undone.
func (h *History[T]) Len() int { return len(h.actions) }

func (h *History[T]) Clear() {
	h.actions = nil
	h.cursor = 0
}
