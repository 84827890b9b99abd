package filewatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func collect(t *testing.T) (chan Event, func(Event)) {
	t.Helper()
	ch := make(chan Event, 16)
	return ch, func(e Event) { ch <- e }
}

func next(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func touch(t *testing.T, path string, at time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(at.String()), 0o644))
	require.NoError(t, os.Chtimes(path, at, at))
}

func TestWatcher_DetectsWriteCreateRemove(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "canvas.json")
	later := filepath.Join(dir, "later.json")
	base := time.Now().Add(-time.Hour)
	touch(t, existing, base)

	ch, handler := collect(t)
	w, err := New([]string{existing, later}, handler, WithDebounce(0), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	w.Check()
	assert.Empty(t, ch)

	touch(t, existing, base.Add(time.Minute))
	w.Check()
	e := next(t, ch)
	assert.Equal(t, OpWrite, e.Op)
	assert.Equal(t, existing, e.Path)

	touch(t, later, base)
	w.Check()
	e = next(t, ch)
	assert.Equal(t, OpCreate, e.Op)
	assert.Equal(t, later, e.Path)

	require.NoError(t, os.Remove(later))
	w.Check()
	e = next(t, ch)
	assert.Equal(t, OpRemove, e.Op)
}

func TestWatcher_DebounceCoalesces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "canvas.json")
	base := time.Now().Add(-time.Hour)
	touch(t, path, base)

	ch, handler := collect(t)
	w, err := New([]string{path}, handler, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		touch(t, path, base.Add(time.Duration(i)*time.Minute))
		w.Check()
	}

	e := next(t, ch)
	assert.Equal(t, OpWrite, e.Op)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra event %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcher_RunStopsWithContext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "canvas.json")
	touch(t, path, time.Now().Add(-time.Hour))

	ch, handler := collect(t)
	w, err := New([]string{path}, handler, WithInterval(5*time.Millisecond), WithDebounce(0))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	touch(t, path, time.Now())
	assert.Equal(t, OpWrite, next(t, ch).Op)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New([]string{"x"}, nil)
	assert.Error(t, err)

	w, err := New([]string{"relative.json"}, func(Event) {})
	require.NoError(t, err)
	require.Len(t, w.Paths(), 1)
	assert.True(t, filepath.IsAbs(w.Paths()[0]))
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "WRITE", OpWrite.String())
	assert.Equal(t, "REMOVE", OpRemove.String())
	assert.Equal(t, "UNKNOWN", Op(42).String())
}
