package execution

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/agentstudio/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeFetcher serves scripted statuses per execution id. Once the script is
// exhausted the last entry repeats.
type fakeFetcher struct {
	mu          sync.Mutex
	scripts     map[string][]string
	errs        map[string]error
	statusCalls map[string]int
	resultCalls map[string]int
	resultsErr  error
	block       chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		scripts:     make(map[string][]string),
		errs:        make(map[string]error),
		statusCalls: make(map[string]int),
		resultCalls: make(map[string]int),
	}
}

func (f *fakeFetcher) script(id string, statuses ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[id] = statuses
}

func (f *fakeFetcher) fail(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[id] = err
}

func (f *fakeFetcher) GetStatus(ctx context.Context, id string) (*Status, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.statusCalls[id]
	f.statusCalls[id] = n + 1
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	script := f.scripts[id]
	if len(script) == 0 {
		return &Status{ExecutionID: id, Status: StatusRunning}, nil
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	return &Status{
		ExecutionID:  id,
		Status:       script[n],
		StepStatuses: map[string]string{"step-1": script[n]},
	}, nil
}

func (f *fakeFetcher) GetResults(_ context.Context, id string) (*Results, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultCalls[id]++
	if f.resultsErr != nil {
		return nil, f.resultsErr
	}
	return &Results{ExecutionID: id, Status: StatusCompleted, StepResults: map[string]StepResult{}}, nil
}

func (f *fakeFetcher) calls(id string) (status, results int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls[id], f.resultCalls[id]
}

const (
	waitFor = 2 * time.Second
	tick    = 2 * time.Millisecond
)

func newTestPoller(t *testing.T, f StatusFetcher, cfg PollerConfig) *Poller {
	t.Helper()
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Millisecond
	}
	cfg.Logger = zaptest.NewLogger(t)
	p := NewPoller(f, cfg)
	t.Cleanup(p.Close)
	return p
}

func TestPoller_StopsOnTerminalAndFetchesResultsOnce(t *testing.T) {
	f := newFakeFetcher()
	f.script("e1", StatusRunning, StatusRunning, StatusCompleted)

	var completed atomic.Int32
	var cleared atomic.Int32
	var seen []string
	var seenMu sync.Mutex

	var p *Poller
	p = newTestPoller(t, f, PollerConfig{
		OnStatus: func(st *Status) {
			seenMu.Lock()
			seen = append(seen, st.Status)
			seenMu.Unlock()
		},
		OnComplete: func(res *Results) {
			assert.Equal(t, "e1", res.ExecutionID)
			assert.Equal(t, int32(0), cleared.Load(), "complete must precede clear")
			completed.Add(1)
		},
		OnClear: func() {
			cleared.Add(1)
			p.SetExecutionID("")
		},
	})

	p.SetExecutionID("e1")
	require.Eventually(t, func() bool { return cleared.Load() == 1 }, waitFor, tick)

	statusCalls, resultCalls := f.calls("e1")
	assert.Equal(t, 3, statusCalls)
	assert.Equal(t, 1, resultCalls)
	assert.Equal(t, int32(1), completed.Load())
	assert.Equal(t, StateIdle, p.State())
	assert.Equal(t, "", p.ExecutionID())

	// the last status stays visible after clearing
	require.NotNil(t, p.Status())
	assert.Equal(t, StatusCompleted, p.Status().Status)
	assert.Equal(t, map[string]string{"step-1": StatusCompleted}, p.Status().StepStatuses)
	require.NotNil(t, p.Results())
	assert.NoError(t, p.Err())

	seenMu.Lock()
	assert.Equal(t, []string{StatusRunning, StatusRunning, StatusCompleted}, seen)
	seenMu.Unlock()

	// no further fetches after terminal
	time.Sleep(30 * time.Millisecond)
	statusCalls, _ = f.calls("e1")
	assert.Equal(t, 3, statusCalls)
}

func TestPoller_EachDefaultTerminalStatusStops(t *testing.T) {
	for _, status := range DefaultTerminalStatuses() {
		t.Run(status, func(t *testing.T) {
			f := newFakeFetcher()
			f.script("x", status)
			var cleared atomic.Bool
			p := newTestPoller(t, f, PollerConfig{OnClear: func() { cleared.Store(true) }})

			p.SetExecutionID("x")
			require.Eventually(t, cleared.Load, waitFor, tick)
			assert.Equal(t, StateIdle, p.State())
			statusCalls, resultCalls := f.calls("x")
			assert.Equal(t, 1, statusCalls)
			assert.Equal(t, 1, resultCalls)
		})
	}
}

func TestPoller_CustomTerminalStatusesAreExact(t *testing.T) {
	f := newFakeFetcher()
	f.script("x", "Completed", "done")
	var cleared atomic.Bool
	p := newTestPoller(t, f, PollerConfig{
		TerminalStatuses: []string{"done"},
		OnClear:          func() { cleared.Store(true) },
	})

	p.SetExecutionID("x")
	require.Eventually(t, cleared.Load, waitFor, tick)
	statusCalls, _ := f.calls("x")
	assert.Equal(t, 2, statusCalls)
	assert.Equal(t, "done", p.Status().Status)
}

func TestPoller_FetchErrorIsRecordedAndPollingContinues(t *testing.T) {
	f := newFakeFetcher()
	boom := errors.New("boom")
	f.fail("x", boom)
	p := newTestPoller(t, f, PollerConfig{})

	p.SetExecutionID("x")
	require.Eventually(t, func() bool {
		statusCalls, _ := f.calls("x")
		return statusCalls >= 3
	}, waitFor, tick)

	assert.ErrorIs(t, p.Err(), boom)
	assert.Equal(t, StatePolling, p.State())
	assert.Nil(t, p.Status())

	// recovery clears the error
	f.fail("x", nil)
	f.script("x", StatusRunning)
	require.Eventually(t, func() bool { return p.Err() == nil && p.Status() != nil }, waitFor, tick)
	assert.Equal(t, StatePolling, p.State())
}

func TestPoller_ResultsFailureStillClears(t *testing.T) {
	f := newFakeFetcher()
	f.script("x", StatusFailed)
	f.resultsErr = errors.New("results down")

	var completed, cleared atomic.Bool
	p := newTestPoller(t, f, PollerConfig{
		OnComplete: func(*Results) { completed.Store(true) },
		OnClear:    func() { cleared.Store(true) },
	})

	p.SetExecutionID("x")
	require.Eventually(t, cleared.Load, waitFor, tick)
	assert.False(t, completed.Load())
	assert.EqualError(t, p.Err(), "results down")
	assert.Nil(t, p.Results())
	assert.Equal(t, StatusFailed, p.Status().Status)
}

func TestPoller_NullIDStopsAndKeepsStatus(t *testing.T) {
	f := newFakeFetcher()
	f.script("x", StatusRunning)
	p := newTestPoller(t, f, PollerConfig{})

	p.SetExecutionID("x")
	require.Eventually(t, func() bool { return p.Status() != nil }, waitFor, tick)

	p.SetExecutionID("")
	assert.Equal(t, StateIdle, p.State())
	assert.Equal(t, "", p.ExecutionID())
	require.NotNil(t, p.Status())
	assert.Equal(t, StatusRunning, p.Status().Status)

	// give a cancelled loop time to exit, then confirm no more fetches
	time.Sleep(20 * time.Millisecond)
	before, _ := f.calls("x")
	time.Sleep(30 * time.Millisecond)
	after, _ := f.calls("x")
	assert.Equal(t, before, after)
}

func TestPoller_SameIDAfterNullResumesWithoutClearing(t *testing.T) {
	f := newFakeFetcher()
	boom := errors.New("boom")
	f.fail("x", boom)
	p := newTestPoller(t, f, PollerConfig{})

	p.SetExecutionID("x")
	require.Eventually(t, func() bool { return p.Err() != nil }, waitFor, tick)
	p.SetExecutionID("")

	f.mu.Lock()
	f.block = make(chan struct{})
	f.mu.Unlock()

	p.SetExecutionID("x")
	assert.Equal(t, StatePolling, p.State())
	assert.ErrorIs(t, p.Err(), boom, "same id must not clear the error")

	f.mu.Lock()
	close(f.block)
	f.block = nil
	f.mu.Unlock()
}

func TestPoller_NewIDClearsStatusAndError(t *testing.T) {
	f := newFakeFetcher()
	f.fail("a", errors.New("boom"))
	p := newTestPoller(t, f, PollerConfig{})

	p.SetExecutionID("a")
	require.Eventually(t, func() bool { return p.Err() != nil }, waitFor, tick)

	f.mu.Lock()
	f.block = make(chan struct{})
	f.mu.Unlock()

	p.SetExecutionID("b")
	assert.NoError(t, p.Err())
	assert.Nil(t, p.Status())
	assert.Equal(t, "b", p.ExecutionID())

	f.mu.Lock()
	close(f.block)
	f.block = nil
	f.mu.Unlock()
}

func TestPoller_SettingSameIDIsNoop(t *testing.T) {
	f := newFakeFetcher()
	f.script("x", StatusRunning)
	p := newTestPoller(t, f, PollerConfig{Interval: time.Hour})

	p.SetExecutionID("x")
	require.Eventually(t, func() bool { return p.Polls() == 1 }, waitFor, tick)
	p.SetExecutionID("x")

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, p.Polls())
	statusCalls, _ := f.calls("x")
	assert.Equal(t, 1, statusCalls)
}

func TestPoller_StaleResponseIsDiscarded(t *testing.T) {
	f := newFakeFetcher()
	f.script("old", StatusCompleted)
	f.script("new", StatusRunning)

	f.mu.Lock()
	f.block = make(chan struct{})
	f.mu.Unlock()

	var completed atomic.Bool
	p := newTestPoller(t, f, PollerConfig{
		Interval:   time.Hour,
		OnComplete: func(*Results) { completed.Store(true) },
	})

	p.SetExecutionID("old")
	time.Sleep(10 * time.Millisecond)
	p.SetExecutionID("new")

	f.mu.Lock()
	close(f.block)
	f.block = nil
	f.mu.Unlock()

	require.Eventually(t, func() bool { return p.Status() != nil }, waitFor, tick)
	assert.Equal(t, "new", p.Status().ExecutionID)
	assert.Equal(t, StatePolling, p.State())
	assert.False(t, completed.Load())
	_, resultCalls := f.calls("old")
	assert.Equal(t, 0, resultCalls)
}

func TestPoller_MaxPolls(t *testing.T) {
	f := newFakeFetcher()
	f.script("x", StatusRunning)
	var cleared atomic.Int32
	p := newTestPoller(t, f, PollerConfig{MaxPolls: 3, OnClear: func() { cleared.Add(1) }})

	p.SetExecutionID("x")
	require.Eventually(t, func() bool { return cleared.Load() == 1 }, waitFor, tick)
	assert.Equal(t, StateIdle, p.State())

	assert.Equal(t, 3, p.Polls())
	assert.True(t, types.IsErrorCode(p.Err(), types.ErrPollLimitExceeded))
	time.Sleep(20 * time.Millisecond)
	statusCalls, _ := f.calls("x")
	assert.Equal(t, 3, statusCalls)
}

func TestPoller_TicksAreSerialized(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	fetcher := fetcherFunc(func(ctx context.Context, id string) (*Status, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return &Status{ExecutionID: id, Status: StatusRunning}, nil
	})
	p := newTestPoller(t, fetcher, PollerConfig{Interval: time.Millisecond})

	p.SetExecutionID("x")
	require.Eventually(t, func() bool { return p.Polls() >= 5 }, waitFor, tick)
	p.Close()
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestPoller_CloseStopsPolling(t *testing.T) {
	f := newFakeFetcher()
	p := newTestPoller(t, f, PollerConfig{})
	p.SetExecutionID("x")
	require.Eventually(t, func() bool { return p.Polls() > 0 }, waitFor, tick)

	p.Close()
	before, _ := f.calls("x")
	time.Sleep(20 * time.Millisecond)
	after, _ := f.calls("x")
	assert.Equal(t, before, after)

	p.SetExecutionID("y")
	assert.Equal(t, StateIdle, p.State())
}

func TestPollerDefaults(t *testing.T) {
	p := NewPoller(newFakeFetcher(), PollerConfig{})
	defer p.Close()
	assert.Equal(t, DefaultPollInterval, p.cfg.Interval)
	assert.ElementsMatch(t, DefaultTerminalStatuses(), p.cfg.TerminalStatuses)
	assert.Equal(t, StateIdle, p.State())
	assert.Equal(t, "idle", p.State().String())
}

type fetcherFunc func(ctx context.Context, id string) (*Status, error)

func (f fetcherFunc) GetStatus(ctx context.Context, id string) (*Status, error) { return f(ctx, id) }

func (f fetcherFunc) GetResults(_ context.Context, id string) (*Results, error) {
	return &Results{ExecutionID: id}, nil
}

func TestPoller_StopFromStatusCallback(t *testing.T) {
	f := newFakeFetcher()
	f.script("e1", StatusRunning)

	var p *Poller
	var once sync.Once
	stopped := make(chan struct{})
	p = newTestPoller(t, f, PollerConfig{
		OnStatus: func(*Status) {
			once.Do(func() {
				p.SetExecutionID("")
				close(stopped)
			})
		},
	})

	p.SetExecutionID("e1")
	select {
	case <-stopped:
	case <-time.After(waitFor):
		t.Fatal("callback did not run")
	}

	require.Eventually(t, func() bool { return p.State() == StateIdle }, waitFor, tick)
	calls, _ := f.calls("e1")
	time.Sleep(30 * time.Millisecond)
	after, _ := f.calls("e1")
	assert.Equal(t, calls, after)
	assert.Equal(t, map[string]string{"step-1": StatusRunning}, p.Status().StepStatuses)
}
