package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/agentstudio/internal/ctxkeys"
	"github.com/BaSui01/agentstudio/internal/metrics"
	"github.com/BaSui01/agentstudio/internal/tlsutil"
	"github.com/BaSui01/agentstudio/types"
	"github.com/BaSui01/agentstudio/workflow"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const instrumentationName = "github.com/BaSui01/agentstudio/workflow/execution"

// =============================================================================
// 🔌 执行引擎 HTTP 客户端
// =============================================================================

// ClientConfig 执行引擎客户端配置
type ClientConfig struct {
	// BaseURL 引擎地址，例如 http://localhost:8000
	BaseURL string `json:"base_url" yaml:"base_url"`
	// APIKey 通过 X-API-Key 头发送，可为空
	APIKey string `json:"api_key" yaml:"api_key"`
	// Timeout 单次请求超时
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	// RateLimit 每秒请求数，0 表示不限流
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit"`
	// RateBurst 突发请求数
	RateBurst int `json:"rate_burst" yaml:"rate_burst"`
	// Breaker 熔断配置
	Breaker BreakerConfig `json:"breaker" yaml:"breaker"`
	// TLS 出站 TLS 设置
	TLS tlsutil.Config `json:"tls" yaml:"tls"`
}

// DefaultClientConfig 返回默认客户端配置
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:   "http://localhost:8000",
		Timeout:   30 * time.Second,
		RateLimit: 20,
		RateBurst: 40,
		Breaker:   DefaultBreakerConfig(),
	}
}

// ClientOption 客户端选项
type ClientOption func(*Client)

// WithHTTPClient 替换底层 http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithClientLogger 设置日志
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClientMetrics 设置指标收集器
func WithClientMetrics(m *metrics.Collector) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// Client 调用工作流引擎的 /workflows 与 /executions 接口，实现 Engine
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	breaker *breaker
	group   singleflight.Group
	tracer  trace.Tracer
	metrics *metrics.Collector
	logger  *zap.Logger
}

var _ Engine = (*Client)(nil)

// NewClient 创建执行引擎客户端
func NewClient(config ClientConfig, opts ...ClientOption) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(config.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, types.NewInvalidRequestError(fmt.Sprintf("invalid engine base url %q", config.BaseURL))
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	hc, err := tlsutil.HTTPClient(timeout, config.TLS)
	if err != nil {
		return nil, types.NewInvalidRequestError("invalid engine tls config").WithCause(err)
	}

	c := &Client{
		baseURL: strings.TrimRight(base.String(), "/"),
		apiKey:  config.APIKey,
		http:    hc,
		tracer:  otel.Tracer(instrumentationName),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "engine_client"))

	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	m := c.metrics
	c.breaker = newBreaker(config.Breaker, func(s BreakerState) {
		m.RecordBreakerState(int(s))
	}, c.logger)

	return c, nil
}

// BreakerState 返回熔断器当前状态
func (c *Client) BreakerState() BreakerState {
	return c.breaker.current()
}

// CreateWorkflow 注册编译后的工作流，返回引擎分配的 id
func (c *Client) CreateWorkflow(ctx context.Context, def *workflow.WorkflowDefinition) (string, error) {
	if def == nil {
		return "", types.NewInvalidRequestError("workflow definition is nil")
	}

	var resp struct {
		ID         string `json:"id"`
		WorkflowID string `json:"workflow_id"`
	}
	if err := c.do(ctx, "create_workflow", http.MethodPost, "/workflows/", def, &resp); err != nil {
		return "", err
	}

	id := resp.ID
	if id == "" {
		id = resp.WorkflowID
	}
	if id == "" {
		return "", types.NewError(types.ErrUpstreamError, "engine returned no workflow id")
	}

	c.logger.Info("workflow created", zap.String("workflow_id", id), zap.String("name", def.Name))
	return id, nil
}

// Submit 启动一次执行，返回执行 id
func (c *Client) Submit(ctx context.Context, workflowID string, req SubmitRequest) (string, error) {
	if workflowID == "" {
		return "", types.NewInvalidRequestError("workflow id is required")
	}
	if req.InputData == nil {
		req.InputData = map[string]any{}
	}

	var resp struct {
		ExecutionID string `json:"execution_id"`
	}
	path := "/workflows/" + url.PathEscape(workflowID) + "/execute"
	if err := c.do(ctx, "submit", http.MethodPost, path, req, &resp); err != nil {
		return "", err
	}
	if resp.ExecutionID == "" {
		return "", types.NewError(types.ErrUpstreamError, "engine returned no execution id")
	}

	c.logger.Info("execution submitted",
		zap.String("workflow_id", workflowID),
		zap.String("execution_id", resp.ExecutionID))
	return resp.ExecutionID, nil
}

// GetStatus 获取执行状态；同一执行的并发请求合并为一次
func (c *Client) GetStatus(ctx context.Context, executionID string) (*Status, error) {
	if executionID == "" {
		return nil, types.NewInvalidRequestError("execution id is required")
	}

	v, err, shared := c.group.Do("status:"+executionID, func() (any, error) {
		var st Status
		if err := c.do(ctx, "get_status", http.MethodGet, "/executions/"+url.PathEscape(executionID), nil, &st); err != nil {
			return nil, err
		}
		if st.ExecutionID == "" {
			st.ExecutionID = executionID
		}
		return &st, nil
	})
	if err != nil {
		return nil, err
	}
	st := v.(*Status)
	if shared {
		st = st.Clone()
	}
	return st, nil
}

// GetResults 获取执行最终结果
func (c *Client) GetResults(ctx context.Context, executionID string) (*Results, error) {
	if executionID == "" {
		return nil, types.NewInvalidRequestError("execution id is required")
	}

	var res Results
	path := "/executions/" + url.PathEscape(executionID) + "/results"
	if err := c.do(ctx, "get_results", http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	if res.ExecutionID == "" {
		res.ExecutionID = executionID
	}
	if res.StepResults == nil {
		res.StepResults = map[string]StepResult{}
	}
	return &res, nil
}

// =============================================================================
// 🔧 请求处理
// =============================================================================

func (c *Client) do(ctx context.Context, operation, method, path string, body, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "engine."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("engine.path", path),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c.limiter != nil {
		if werr := c.limiter.Wait(ctx); werr != nil {
			return types.NewError(types.ErrRateLimited, "engine client rate limit wait aborted").WithCause(werr)
		}
	}

	if err := c.breaker.allow(); err != nil {
		return err
	}
	defer func() { c.breaker.record(err) }()

	var reader io.Reader
	if body != nil {
		data, merr := json.Marshal(body)
		if merr != nil {
			return types.NewInvalidRequestError("failed to encode request body").WithCause(merr)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return types.NewError(types.ErrInternalError, "failed to build engine request").WithCause(err)
	}
	requestID, ok := ctxkeys.RequestID(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	span.SetAttributes(attribute.String("request.id", requestID))
	if sessionID, ok := ctxkeys.SessionID(ctx); ok {
		req.Header.Set("X-Session-ID", sessionID)
		span.SetAttributes(attribute.String("session.id", sessionID))
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordEngineRequest(operation, 0, time.Since(start))
		c.logger.Warn("engine request failed",
			zap.String("operation", operation),
			zap.String("request_id", requestID),
			zap.Error(err))
		return transportError(err)
	}
	defer resp.Body.Close()

	c.metrics.RecordEngineRequest(operation, resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= 300 {
		herr := mapHTTPError(resp.StatusCode, readErrorMessage(resp.Body))
		c.logger.Warn("engine returned error",
			zap.String("operation", operation),
			zap.String("request_id", requestID),
			zap.Int("status", resp.StatusCode),
			zap.Error(herr))
		return herr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewError(types.ErrUpstreamError, "failed to decode engine response").WithCause(err)
	}
	return nil
}

func transportError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return types.NewError(types.ErrUpstreamTimeout, "workflow engine request timed out").
			WithCause(err).WithRetryable(true)
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return types.NewError(types.ErrUpstreamTimeout, "workflow engine request timed out").
			WithCause(err).WithRetryable(true)
	}
	return types.NewUpstreamError("workflow engine unreachable", err)
}

// mapHTTPError 将引擎的 HTTP 状态码映射为结构化错误
func mapHTTPError(status int, msg string) *types.Error {
	var e *types.Error
	switch {
	case status == http.StatusNotFound:
		e = types.NewNotFoundError(msg)
	case status == http.StatusTooManyRequests:
		e = types.NewError(types.ErrRateLimited, msg).WithRetryable(true)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e = types.NewError(types.ErrUnauthorized, msg)
	case status == http.StatusGatewayTimeout:
		e = types.NewError(types.ErrUpstreamTimeout, msg).WithRetryable(true)
	case status >= 500:
		e = types.NewError(types.ErrUpstreamError, msg).WithRetryable(true)
	default:
		e = types.NewInvalidRequestError(msg)
	}
	return e.WithHTTPStatus(status)
}

// readErrorMessage 解析 {"detail": ...} 或 {"error": {"message": ...}} 形式的错误体
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return "failed to read error response"
	}

	var resp struct {
		Detail any `json:"detail"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &resp); err == nil {
		switch d := resp.Detail.(type) {
		case string:
			if d != "" {
				return d
			}
		case nil:
		default:
			if b, err := json.Marshal(d); err == nil {
				return string(b)
			}
		}
		if resp.Error.Message != "" {
			return resp.Error.Message
		}
	}

	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return "empty error response"
	}
	return msg
}
