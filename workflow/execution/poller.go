package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/agentstudio/internal/metrics"
	"github.com/BaSui01/agentstudio/types"
	"go.uber.org/zap"
)

// DefaultPollInterval is the delay between status fetches.
const DefaultPollInterval = 500 * time.Millisecond

// State is the poller's lifecycle state.
type State int

const (
	// StateIdle means no execution is being tracked.
	StateIdle State = iota
	// StatePolling means status is being fetched on an interval.
	StatePolling
	// StateSettling means a terminal status was seen and final results are
	// being fetched.
	StateSettling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateSettling:
		return "settling"
	default:
		return "unknown"
	}
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	// Interval between status fetches. Zero uses DefaultPollInterval.
	Interval time.Duration
	// TerminalStatuses end polling. Empty uses DefaultTerminalStatuses.
	// Matching is exact and case-sensitive.
	TerminalStatuses []string
	// MaxPolls stops polling after this many status fetches without a
	// terminal status. Zero polls until terminal.
	MaxPolls int
	// FetchTimeout bounds each individual fetch. Zero means no timeout.
	FetchTimeout time.Duration

	// OnStatus is called after every successful status fetch.
	OnStatus func(*Status)
	// OnComplete is called with the final results once a terminal status
	// has been seen and the results fetch succeeded.
	OnComplete func(*Results)
	// OnClear asks the owner to drop the execution id. It is called after
	// settling whether or not the results fetch succeeded, and when MaxPolls
	// is reached. It may call SetExecutionID.
	//
	// All callbacks run on the polling goroutine. They may call
	// SetExecutionID (including "" to stop) but must not call Close, which
	// waits for that goroutine and would deadlock.
	OnClear func()

	Logger  *zap.Logger
	Metrics *metrics.Collector
}

// Poller tracks one execution at a time: it fetches status on a fixed
// interval until a terminal status appears, then fetches the results once.
//
// Fetches are serialized: the next tick waits for the previous fetch to
// return. Fetch failures are recorded in Err and polling continues.
type Poller struct {
	fetcher  StatusFetcher
	cfg      PollerConfig
	terminal map[string]bool
	logger   *zap.Logger

	mu          sync.Mutex
	state       State
	executionID string
	lastSeenID  string
	status      *Status
	results     *Results
	err         error
	polls       int
	generation  uint64
	cancel      context.CancelFunc
	closed      bool

	wg sync.WaitGroup
}

// NewPoller creates an idle poller.
func NewPoller(fetcher StatusFetcher, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if len(cfg.TerminalStatuses) == 0 {
		cfg.TerminalStatuses = DefaultTerminalStatuses()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	terminal := make(map[string]bool, len(cfg.TerminalStatuses))
	for _, s := range cfg.TerminalStatuses {
		terminal[s] = true
	}
	return &Poller{
		fetcher:  fetcher,
		cfg:      cfg,
		terminal: terminal,
		logger:   cfg.Logger.With(zap.String("component", "execution_poller")),
	}
}

// SetExecutionID points the poller at an execution. An empty id stops
// polling but keeps the last status visible. A new id different from the
// last one seen clears status and error before polling starts; the same id
// again keeps them. Passing the id that is already set is a no-op.
func (p *Poller) SetExecutionID(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || id == p.executionID {
		return
	}

	p.stopLocked()
	p.executionID = id
	if id == "" {
		p.logger.Debug("polling stopped")
		return
	}

	if id != p.lastSeenID {
		p.status = nil
		p.results = nil
		p.err = nil
	}
	p.lastSeenID = id
	p.polls = 0
	p.state = StatePolling
	p.generation++

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(1)
	go p.run(ctx, id, p.generation)

	p.logger.Debug("polling started", zap.String("execution_id", id))
}

func (p *Poller) releaseLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// stopLocked cancels the running loop without waiting for it; the loop
// discards whatever it fetches afterwards.
func (p *Poller) stopLocked() {
	p.releaseLocked()
	p.generation++
	p.state = StateIdle
}

// Close stops polling and waits for the polling goroutine to exit. The
// poller cannot be restarted. Close must not be called from a callback;
// use SetExecutionID("") there instead.
func (p *Poller) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		p.stopLocked()
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context, id string, gen uint64) {
	defer p.wg.Done()

	p.cfg.Metrics.RecordPollingStarted()
	final := ""
	defer func() { p.cfg.Metrics.RecordPollingStopped(final) }()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		status, ok := p.tick(ctx, id, gen)
		if !ok {
			return
		}
		if status != "" {
			final = status
			p.settle(ctx, id, gen)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick fetches the status once. It returns the terminal status when one was
// observed, and ok=false when the loop must stop.
func (p *Poller) tick(ctx context.Context, id string, gen uint64) (terminal string, ok bool) {
	fetchCtx, cancel := p.fetchContext(ctx)
	start := time.Now()
	st, err := p.fetcher.GetStatus(fetchCtx, id)
	cancel()
	p.cfg.Metrics.RecordPoll(time.Since(start), err)
	if err == nil && st == nil {
		err = fmt.Errorf("empty status for execution %s", id)
	}

	p.mu.Lock()
	if p.generation != gen {
		p.mu.Unlock()
		return "", false
	}
	p.polls++

	if err != nil {
		p.err = err
		p.logger.Warn("status fetch failed",
			zap.String("execution_id", id),
			zap.Int("polls", p.polls),
			zap.Error(err))
		stop := p.limitReachedLocked(err)
		onClear := p.cfg.OnClear
		p.mu.Unlock()
		if stop && onClear != nil {
			onClear()
		}
		return "", !stop
	}

	p.status = st.Clone()
	p.err = nil
	isTerminal := p.terminal[st.Status]
	stop := false
	if isTerminal {
		p.state = StateSettling
	} else {
		stop = p.limitReachedLocked(nil)
	}
	onStatus, onClear := p.cfg.OnStatus, p.cfg.OnClear
	p.mu.Unlock()

	if onStatus != nil {
		onStatus(st.Clone())
	}
	if stop && onClear != nil {
		onClear()
	}
	if isTerminal {
		p.logger.Info("execution reached terminal status",
			zap.String("execution_id", id),
			zap.String("status", st.Status))
		return st.Status, true
	}
	return "", !stop
}

func (p *Poller) limitReachedLocked(cause error) bool {
	if p.cfg.MaxPolls <= 0 || p.polls < p.cfg.MaxPolls {
		return false
	}
	p.err = types.NewError(types.ErrPollLimitExceeded,
		fmt.Sprintf("no terminal status after %d polls", p.polls)).WithCause(cause)
	p.state = StateIdle
	p.releaseLocked()
	p.logger.Warn("poll limit reached", zap.String("execution_id", p.executionID), zap.Int("polls", p.polls))
	return true
}

func (p *Poller) settle(ctx context.Context, id string, gen uint64) {
	fetchCtx, cancel := p.fetchContext(ctx)
	res, err := p.fetcher.GetResults(fetchCtx, id)
	cancel()

	p.mu.Lock()
	if p.generation != gen {
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.err = err
		p.logger.Warn("results fetch failed", zap.String("execution_id", id), zap.Error(err))
	} else {
		p.results = res
	}
	p.state = StateIdle
	p.releaseLocked()
	onComplete, onClear := p.cfg.OnComplete, p.cfg.OnClear
	p.mu.Unlock()

	if err == nil && onComplete != nil {
		onComplete(res)
	}
	if onClear != nil {
		onClear()
	}
}

func (p *Poller) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.FetchTimeout > 0 {
		return context.WithTimeout(ctx, p.cfg.FetchTimeout)
	}
	return context.WithCancel(ctx)
}

// State returns the lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// ExecutionID returns the id currently set, or "".
func (p *Poller) ExecutionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.executionID
}

// Status returns the last fetched status, or nil.
func (p *Poller) Status() *Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status.Clone()
}

// Results returns the final results of the last settled execution, or nil.
func (p *Poller) Results() *Results {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.results
}

// Err returns the most recent fetch error, or nil after a successful fetch.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Polls returns the number of status fetches for the current execution.
func (p *Poller) Polls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polls
}
