package history

import (
	"sync"

	"go.uber.org/zap"
)

// DefaultMaxSize is the number of undo snapshots kept by default.
const DefaultMaxSize = 50

// State is the full undo/redo stack. Past is ordered oldest first, Future is
// ordered next-to-redo first.
type State[T any] struct {
	Past    []T `json:"past"`
	Present T   `json:"present"`
	Future  []T `json:"future"`
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	maxSize int
	logger  *zap.Logger
}

// WithMaxSize bounds the undo stack. Values below 1 are ignored.
func WithMaxSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Manager is a bounded undo/redo history over values of type T. Values are
// treated as immutable: updates derive a new value instead of mutating the
// present one. Manager is the sole mutator of its state and is safe for
// concurrent use.
type Manager[T any] struct {
	mu      sync.RWMutex
	past    []T
	present T
	future  []T
	maxSize int
	logger  *zap.Logger
}

// New creates a history whose present value is initial.
func New[T any](initial T, opts ...Option) *Manager[T] {
	o := options{maxSize: DefaultMaxSize, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager[T]{
		present: initial,
		maxSize: o.maxSize,
		logger:  o.logger.With(zap.String("component", "history")),
	}
}

// Commit replaces the present value with update(present). When addToHistory
// is false the replacement is transient: past and future are left untouched
// and the change cannot be undone on its own. Otherwise the old present is
// pushed onto the undo stack and the redo stack is cleared.
func (m *Manager[T]) Commit(update func(T) T, addToHistory bool) T {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := update(m.present)
	if !addToHistory {
		m.present = next
		return next
	}

	m.past = m.pushBounded(m.past, m.present)
	m.present = next
	m.future = nil
	m.logger.Debug("history commit", zap.Int("past", len(m.past)))
	return next
}

// Undo steps back one snapshot. It reports false when there is nothing to
// undo.
func (m *Manager[T]) Undo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.past) == 0 {
		return false
	}
	last := len(m.past) - 1
	previous := m.past[last]
	m.past = m.past[:last:last]
	m.future = append([]T{m.present}, m.future...)
	m.present = previous
	m.logger.Debug("history undo", zap.Int("past", len(m.past)), zap.Int("future", len(m.future)))
	return true
}

// Redo re-applies the most recently undone snapshot. It reports false when
// there is nothing to redo.
func (m *Manager[T]) Redo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.future) == 0 {
		return false
	}
	next := m.future[0]
	m.future = m.future[1:]
	m.past = m.pushBounded(m.past, m.present)
	m.present = next
	m.logger.Debug("history redo", zap.Int("past", len(m.past)), zap.Int("future", len(m.future)))
	return true
}

// ClearHistory drops both stacks and keeps the present value.
func (m *Manager[T]) ClearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.past = nil
	m.future = nil
}

// Reset replaces the present value and drops both stacks.
func (m *Manager[T]) Reset(present T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.past = nil
	m.future = nil
	m.present = present
}

// CanUndo reports whether Undo would change the present value.
func (m *Manager[T]) CanUndo() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.past) > 0
}

// CanRedo reports whether Redo would change the present value.
func (m *Manager[T]) CanRedo() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.future) > 0
}

// Present returns the current value.
func (m *Manager[T]) Present() T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.present
}

// Depth returns the sizes of the undo and redo stacks.
func (m *Manager[T]) Depth() (past, future int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.past), len(m.future)
}

// MaxSize returns the undo bound.
func (m *Manager[T]) MaxSize() int {
	return m.maxSize
}

// State returns a copy of the stacks.
func (m *Manager[T]) State() State[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return State[T]{
		Past:    append([]T{}, m.past...),
		Present: m.present,
		Future:  append([]T{}, m.future...),
	}
}

// Restore replaces the stacks with s, keeping only the most recent
// snapshots of s.Past when it exceeds the bound.
func (m *Manager[T]) Restore(s State[T]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	past := s.Past
	if len(past) > m.maxSize {
		past = past[len(past)-m.maxSize:]
	}
	m.past = append([]T(nil), past...)
	m.present = s.Present
	m.future = append([]T(nil), s.Future...)
	m.logger.Debug("history restored", zap.Int("past", len(m.past)), zap.Int("future", len(m.future)))
}

// pushBounded appends v and drops the oldest entries beyond the bound. The
// result never shares its backing array with a slice handed out by State.
func (m *Manager[T]) pushBounded(stack []T, v T) []T {
	stack = append(stack, v)
	if over := len(stack) - m.maxSize; over > 0 {
		trimmed := make([]T, m.maxSize)
		copy(trimmed, stack[over:])
		stack = trimmed
	}
	return stack
}
