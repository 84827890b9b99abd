// Package filewatch 轮询文件修改时间，在文件变化时回调。
// 用于 `agentstudio watch`：画布文件保存后自动重新编译。
package filewatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Op 文件操作类型
type Op int

const (
	// OpCreate 文件出现
	OpCreate Op = iota
	// OpWrite 文件被修改
	OpWrite
	// OpRemove 文件被删除
	OpRemove
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// Event 文件变更事件
type Event struct {
	Path      string    `json:"path"`
	Op        Op        `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// Option 监听器选项
type Option func(*Watcher)

// WithInterval 设置轮询间隔
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithDebounce 设置防抖延迟，同一文件在延迟内的多次变化只回调一次
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Watcher 监听一组文件
type Watcher struct {
	mu       sync.Mutex
	paths    []string
	modTimes map[string]time.Time
	pending  map[string]Event
	timer    *time.Timer
	handler  func(Event)

	interval time.Duration
	debounce time.Duration
	logger   *zap.Logger
}

// New 创建监听器；路径被解析为绝对路径，不存在的文件会在出现时触发 OpCreate
func New(paths []string, handler func(Event), opts ...Option) (*Watcher, error) {
	if handler == nil {
		return nil, fmt.Errorf("filewatch: handler is required")
	}
	w := &Watcher{
		modTimes: make(map[string]time.Time),
		pending:  make(map[string]Event),
		handler:  handler,
		interval: time.Second,
		debounce: 100 * time.Millisecond,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("component", "filewatch"))

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("filewatch: resolve %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		switch {
		case err == nil:
			w.modTimes[abs] = info.ModTime()
		case os.IsNotExist(err):
			w.logger.Warn("watched file does not exist yet", zap.String("path", abs))
		default:
			return nil, fmt.Errorf("filewatch: stat %s: %w", abs, err)
		}
		w.paths = append(w.paths, abs)
	}

	return w, nil
}

// Paths 返回监听的绝对路径
func (w *Watcher) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.paths...)
}

// Run 阻塞轮询直到 ctx 结束
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("file watcher started",
		zap.Strings("paths", w.Paths()),
		zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return ctx.Err()
		case <-ticker.C:
			w.Check()
		}
	}
}

// Check 检查一次所有文件，发现变化时按防抖规则调度回调
func (w *Watcher) Check() {
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, path := range w.paths {
		info, err := os.Stat(path)
		last, tracked := w.modTimes[path]

		switch {
		case err != nil:
			if os.IsNotExist(err) && tracked {
				delete(w.modTimes, path)
				w.queueLocked(Event{Path: path, Op: OpRemove, Timestamp: now})
			}
		case !tracked:
			w.modTimes[path] = info.ModTime()
			w.queueLocked(Event{Path: path, Op: OpCreate, Timestamp: now})
		case !info.ModTime().Equal(last):
			w.modTimes[path] = info.ModTime()
			w.queueLocked(Event{Path: path, Op: OpWrite, Timestamp: now})
		}
	}
}

func (w *Watcher) queueLocked(evt Event) {
	w.pending[evt.Path] = evt

	if w.debounce <= 0 {
		w.flushLocked()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		w.flushLocked()
		w.mu.Unlock()
	})
}

// flushLocked 派发所有待处理事件；回调在锁外异步执行
func (w *Watcher) flushLocked() {
	if len(w.pending) == 0 {
		return
	}
	events := make([]Event, 0, len(w.pending))
	for _, evt := range w.pending {
		events = append(events, evt)
	}
	w.pending = make(map[string]Event)

	go func() {
		for _, evt := range events {
			w.logger.Debug("dispatching file event",
				zap.String("path", evt.Path),
				zap.String("op", evt.Op.String()))
			w.handler(evt)
		}
	}()
}
