package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/agentstudio/types"
	"go.uber.org/zap"
)

// BreakerState 熔断器状态
type BreakerState int

const (
	// BreakerClosed 正常放行
	BreakerClosed BreakerState = iota
	// BreakerOpen 拒绝所有请求
	BreakerOpen
	// BreakerHalfOpen 允许少量探测请求
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	// FailureThreshold 连续失败次数阈值，0 表示关闭熔断
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`
	// RecoveryTimeout 熔断后进入半开前的等待时间
	RecoveryTimeout time.Duration `json:"recovery_timeout" yaml:"recovery_timeout"`
	// HalfOpenMaxProbes 半开状态允许的探测请求数
	HalfOpenMaxProbes int `json:"half_open_max_probes" yaml:"half_open_max_probes"`
}

// DefaultBreakerConfig 默认熔断器配置
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:  5,
		RecoveryTimeout:   30 * time.Second,
		HalfOpenMaxProbes: 1,
	}
}

// breaker 保护执行引擎调用：连续的上游失败达到阈值后快速失败，
// 等待 RecoveryTimeout 后放行探测请求，探测成功即恢复。
type breaker struct {
	config      BreakerConfig
	state       BreakerState
	failures    int
	lastFailure time.Time
	probes      int
	onChange    func(BreakerState)
	now         func() time.Time
	logger      *zap.Logger
	mu          sync.Mutex
}

func newBreaker(config BreakerConfig, onChange func(BreakerState), logger *zap.Logger) *breaker {
	return &breaker{
		config:   config,
		onChange: onChange,
		now:      time.Now,
		logger:   logger,
	}
}

// allow 检查是否允许请求通过
func (b *breaker) allow() error {
	if b.config.FailureThreshold <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		wait := b.config.RecoveryTimeout - b.now().Sub(b.lastFailure)
		if wait > 0 {
			return types.NewError(types.ErrServiceUnavailable,
				fmt.Sprintf("workflow engine unavailable after %d consecutive failures, retry in %v", b.failures, wait.Round(time.Millisecond))).
				WithRetryable(true)
		}
		b.transitionTo(BreakerHalfOpen, "recovery timeout elapsed")
		b.probes = 1
		return nil

	case BreakerHalfOpen:
		if b.probes < b.config.HalfOpenMaxProbes {
			b.probes++
			return nil
		}
		return types.NewError(types.ErrServiceUnavailable, "workflow engine probe in flight").WithRetryable(true)

	default:
		return nil
	}
}

// record 记录一次调用结果；只有上游故障（可重试错误）计入失败。
// 调用方取消的请求没有得到引擎应答，不改变熔断状态，只归还探测名额。
func (b *breaker) record(err error) {
	if b.config.FailureThreshold <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if errors.Is(err, context.Canceled) {
		if b.state == BreakerHalfOpen && b.probes > 0 {
			b.probes--
		}
		return
	}

	if err == nil || !types.IsRetryable(err) {
		b.failures = 0
		if b.state != BreakerClosed {
			b.transitionTo(BreakerClosed, "probe succeeded")
		}
		return
	}

	b.failures++
	b.lastFailure = b.now()

	switch b.state {
	case BreakerClosed:
		if b.failures >= b.config.FailureThreshold {
			b.transitionTo(BreakerOpen, fmt.Sprintf("%d consecutive failures", b.failures))
		}
	case BreakerHalfOpen:
		b.transitionTo(BreakerOpen, "failure in half-open state")
	}
}

func (b *breaker) current() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// transitionTo 状态转换（必须在锁内调用）
func (b *breaker) transitionTo(state BreakerState, reason string) {
	old := b.state
	b.state = state
	b.probes = 0

	b.logger.Info("circuit breaker state change",
		zap.String("old_state", old.String()),
		zap.String("new_state", state.String()),
		zap.String("reason", reason),
		zap.Int("failures", b.failures))

	if b.onChange != nil {
		b.onChange(state)
	}
}
