package studio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/agentstudio/internal/ctxkeys"
	"github.com/BaSui01/agentstudio/internal/metrics"
	"github.com/BaSui01/agentstudio/types"
	"github.com/BaSui01/agentstudio/workflow"
	"github.com/BaSui01/agentstudio/workflow/execution"
	"github.com/BaSui01/agentstudio/workflow/history"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/BaSui01/agentstudio/studio"

// =============================================================================
// 🎨 编辑会话
// =============================================================================

// Option 会话选项
type Option func(*Session)

// WithCompiler 设置编译器
func WithCompiler(c *workflow.Compiler) Option {
	return func(s *Session) {
		if c != nil {
			s.compiler = c
		}
	}
}

// WithEngine 设置执行引擎，未设置时 Run 不可用
func WithEngine(e execution.Engine) Option {
	return func(s *Session) { s.engine = e }
}

// WithDraftStore 设置草稿存储，未设置时 SaveDraft/LoadDraft 不可用
func WithDraftStore(store *history.Store[workflow.Snapshot]) Option {
	return func(s *Session) { s.store = store }
}

// WithHistorySize 设置撤销栈上限
func WithHistorySize(n int) Option {
	return func(s *Session) { s.historySize = n }
}

// WithPollerConfig 设置轮询参数；回调字段由会话接管，传入的回调会被忽略
func WithPollerConfig(cfg execution.PollerConfig) Option {
	return func(s *Session) { s.pollerConfig = cfg }
}

// WithRunLog 设置运行记录，多个会话可以共享同一个 RunLog
func WithRunLog(l *execution.RunLog) Option {
	return func(s *Session) {
		if l != nil {
			s.runs = l
		}
	}
}

// WithStatusListener 每次拉取到执行状态后回调
func WithStatusListener(fn func(*execution.Status)) Option {
	return func(s *Session) { s.onStatus = fn }
}

// WithCompleteListener 执行结束并拿到结果后回调
func WithCompleteListener(fn func(*execution.Results)) Option {
	return func(s *Session) { s.onComplete = fn }
}

// WithMetrics 设置指标收集器
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Session) { s.metrics = m }
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Session 是一个画布的编辑与运行会话：编辑操作经由有界历史，
// 运行时编译当前快照、注册工作流、提交执行并交给轮询器跟踪。
type Session struct {
	id          string
	historySize int
	hist        *history.Manager[workflow.Snapshot]
	compiler    *workflow.Compiler
	engine      execution.Engine
	store       *history.Store[workflow.Snapshot]
	runs        *execution.RunLog
	poller      *execution.Poller

	pollerConfig execution.PollerConfig
	onStatus     func(*execution.Status)
	onComplete   func(*execution.Results)

	mu          sync.Mutex
	executionID string
	workflowID  string
	settled     chan struct{}

	tracer  trace.Tracer
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewSession 创建会话；id 为空时生成 uuid
func NewSession(id string, initial workflow.Snapshot, opts ...Option) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	s := &Session{
		id:       id,
		compiler: workflow.NewCompiler(),
		runs:     execution.NewRunLog(0),
		tracer:   otel.Tracer(instrumentationName),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "studio_session"), zap.String("session_id", id))

	if initial.Nodes == nil && initial.Edges == nil {
		initial = workflow.EmptySnapshot()
	}
	s.hist = history.New(initial.Clone(), history.WithMaxSize(s.historySize), history.WithLogger(s.logger))

	if s.engine != nil {
		cfg := s.pollerConfig
		cfg.OnStatus = s.handleStatus
		cfg.OnComplete = s.handleComplete
		cfg.OnClear = s.handleClear
		cfg.Logger = s.logger
		if cfg.Metrics == nil {
			cfg.Metrics = s.metrics
		}
		s.poller = execution.NewPoller(s.engine, cfg)
	}

	return s
}

// ID 返回会话 id
func (s *Session) ID() string { return s.id }

// Snapshot 返回当前画布
func (s *Session) Snapshot() workflow.Snapshot {
	return s.hist.Present().Clone()
}

// Close 停止轮询
func (s *Session) Close() {
	if s.poller != nil {
		s.poller.Close()
	}
}

// =============================================================================
// ✏️ 编辑操作
// =============================================================================

// AddNode 添加节点；id 为空时生成 uuid
func (s *Session) AddNode(node workflow.Node) (workflow.Node, error) {
	if node.ID == "" {
		node.ID = uuid.NewString()
	}
	if node.Type == "" {
		return workflow.Node{}, types.NewInvalidRequestError("node type is required")
	}
	if _, exists := s.hist.Present().Node(node.ID); exists {
		return workflow.Node{}, types.NewInvalidRequestError(fmt.Sprintf("node %q already exists", node.ID))
	}

	added := node.Clone()
	s.commit("add_node", true, func(cur workflow.Snapshot) workflow.Snapshot {
		next := cur.Clone()
		next.Nodes = append(next.Nodes, added.Clone())
		return next
	})
	return added, nil
}

// UpdateNode 用 update 的返回值替换节点，节点 id 不可修改
func (s *Session) UpdateNode(id string, update func(workflow.Node) workflow.Node) error {
	cur := s.hist.Present()
	idx := cur.NodeIndex(id)
	if idx < 0 {
		return types.NewNotFoundError(fmt.Sprintf("node %q not found", id))
	}
	updated := update(cur.Nodes[idx].Clone())
	updated.ID = id

	s.commit("update_node", true, func(cur workflow.Snapshot) workflow.Snapshot {
		next := cur.Clone()
		if i := next.NodeIndex(id); i >= 0 {
			next.Nodes[i] = updated.Clone()
		}
		return next
	})
	return nil
}

// SetParameter 设置节点的单个参数
func (s *Session) SetParameter(id, key string, value workflow.Value) error {
	return s.UpdateNode(id, func(n workflow.Node) workflow.Node {
		if n.Parameters == nil {
			n.Parameters = workflow.Params{}
		}
		n.Parameters[key] = value
		return n
	})
}

// MoveNode 更新节点位置，不进入撤销历史
func (s *Session) MoveNode(id string, pos workflow.Position) error {
	if s.hist.Present().NodeIndex(id) < 0 {
		return types.NewNotFoundError(fmt.Sprintf("node %q not found", id))
	}
	s.commit("move_node", false, func(cur workflow.Snapshot) workflow.Snapshot {
		next := cur.Clone()
		if i := next.NodeIndex(id); i >= 0 {
			p := pos
			next.Nodes[i].Position = &p
		}
		return next
	})
	return nil
}

// RemoveNode 删除节点及其相连的边
func (s *Session) RemoveNode(id string) error {
	if s.hist.Present().NodeIndex(id) < 0 {
		return types.NewNotFoundError(fmt.Sprintf("node %q not found", id))
	}
	s.commit("remove_node", true, func(cur workflow.Snapshot) workflow.Snapshot {
		next := workflow.EmptySnapshot()
		for _, n := range cur.Nodes {
			if n.ID != id {
				next.Nodes = append(next.Nodes, n.Clone())
			}
		}
		for _, e := range cur.Edges {
			if e.Source != id && e.Target != id {
				next.Edges = append(next.Edges, e)
			}
		}
		return next
	})
	return nil
}

// Connect 添加一条边；两端节点必须存在，id 为空时生成 uuid
func (s *Session) Connect(edge workflow.Edge) (workflow.Edge, error) {
	cur := s.hist.Present()
	for _, end := range []string{edge.Source, edge.Target} {
		if cur.NodeIndex(end) < 0 {
			return workflow.Edge{}, types.NewNotFoundError(fmt.Sprintf("node %q not found", end))
		}
	}
	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}
	for _, e := range cur.Edges {
		if e.ID == edge.ID {
			return workflow.Edge{}, types.NewInvalidRequestError(fmt.Sprintf("edge %q already exists", edge.ID))
		}
	}

	s.commit("connect", true, func(cur workflow.Snapshot) workflow.Snapshot {
		next := cur.Clone()
		next.Edges = append(next.Edges, edge)
		return next
	})
	return edge, nil
}

// Disconnect 删除一条边
func (s *Session) Disconnect(edgeID string) error {
	found := false
	for _, e := range s.hist.Present().Edges {
		if e.ID == edgeID {
			found = true
			break
		}
	}
	if !found {
		return types.NewNotFoundError(fmt.Sprintf("edge %q not found", edgeID))
	}

	s.commit("disconnect", true, func(cur workflow.Snapshot) workflow.Snapshot {
		next := cur.Clone()
		next.Edges = next.Edges[:0]
		for _, e := range cur.Edges {
			if e.ID != edgeID {
				next.Edges = append(next.Edges, e)
			}
		}
		return next
	})
	return nil
}

// Replace 整体替换画布（例如导入），可撤销
func (s *Session) Replace(snapshot workflow.Snapshot) {
	replacement := snapshot.Clone()
	s.commit("replace", true, func(workflow.Snapshot) workflow.Snapshot {
		return replacement.Clone()
	})
}

// Clear 清空画布，可撤销
func (s *Session) Clear() {
	s.commit("clear", true, func(workflow.Snapshot) workflow.Snapshot {
		return workflow.EmptySnapshot()
	})
}

// Undo 撤销，无可撤销项时返回 false
func (s *Session) Undo() bool {
	ok := s.hist.Undo()
	if ok {
		s.recordHistory("undo")
	}
	return ok
}

// Redo 重做，无可重做项时返回 false
func (s *Session) Redo() bool {
	ok := s.hist.Redo()
	if ok {
		s.recordHistory("redo")
	}
	return ok
}

// CanUndo 是否可撤销
func (s *Session) CanUndo() bool { return s.hist.CanUndo() }

// CanRedo 是否可重做
func (s *Session) CanRedo() bool { return s.hist.CanRedo() }

// ClearHistory 清空撤销/重做栈，保留当前画布
func (s *Session) ClearHistory() {
	s.hist.ClearHistory()
	s.recordHistory("clear_history")
}

// History 返回历史栈的副本
func (s *Session) History() history.State[workflow.Snapshot] {
	return s.hist.State()
}

func (s *Session) commit(op string, addToHistory bool, update func(workflow.Snapshot) workflow.Snapshot) {
	s.hist.Commit(update, addToHistory)
	s.recordHistory(op)
}

func (s *Session) recordHistory(op string) {
	past, future := s.hist.Depth()
	s.metrics.RecordHistoryOperation(op, past, future)
	s.logger.Debug("history operation",
		zap.String("operation", op),
		zap.Int("past", past),
		zap.Int("future", future))
}

// =============================================================================
// 🧩 编译
// =============================================================================

// Compile 编译当前画布
func (s *Session) Compile(ctx context.Context, meta workflow.Meta) *workflow.Compilation {
	_, span := s.tracer.Start(ctx, "studio.compile",
		trace.WithAttributes(
			attribute.String("session.id", s.id),
			attribute.String("workflow.name", meta.Name),
		))
	defer span.End()

	snapshot := s.hist.Present()
	start := time.Now()
	result := s.compiler.Compile(snapshot, meta)
	duration := time.Since(start)

	diags := make(map[string]string, len(result.Diagnostics))
	for _, d := range result.Diagnostics {
		diags[string(d.Code)] = string(d.Severity)
	}
	hasErrors := workflow.HasErrors(result.Diagnostics)
	s.metrics.RecordCompile(len(result.Definition.Steps), duration, diags, hasErrors)

	span.SetAttributes(
		attribute.Int("workflow.steps", len(result.Definition.Steps)),
		attribute.Int("workflow.diagnostics", len(result.Diagnostics)),
	)
	s.logger.Debug("canvas compiled",
		zap.Int("steps", len(result.Definition.Steps)),
		zap.Int("diagnostics", len(result.Diagnostics)),
		zap.Duration("duration", duration))

	return result
}

// =============================================================================
// ▶️ 运行
// =============================================================================

// Run 是一次成功提交的执行
type Run struct {
	WorkflowID  string                `json:"workflow_id"`
	ExecutionID string                `json:"execution_id"`
	Diagnostics []workflow.Diagnostic `json:"diagnostics"`
}

// Run 编译当前画布，注册工作流并提交执行，随后开始轮询。
// 含 error 级别诊断的画布不会提交。
func (s *Session) Run(ctx context.Context, meta workflow.Meta, req execution.SubmitRequest) (_ *Run, err error) {
	if s.engine == nil {
		return nil, types.NewError(types.ErrServiceUnavailable, "no workflow engine configured")
	}

	ctx = ctxkeys.WithSessionID(ctx, s.id)
	ctx, span := s.tracer.Start(ctx, "studio.run",
		trace.WithAttributes(
			attribute.String("session.id", s.id),
			attribute.String("workflow.name", meta.Name),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	compiled := s.Compile(ctx, meta)
	if workflow.HasErrors(compiled.Diagnostics) {
		return nil, types.NewError(types.ErrInvalidGraph,
			fmt.Sprintf("canvas has %d diagnostics, first: %s", len(compiled.Diagnostics), firstError(compiled.Diagnostics)))
	}

	workflowID, err := s.engine.CreateWorkflow(ctx, compiled.Definition)
	if err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}

	if req.InputData == nil {
		req.InputData = map[string]any{}
	}
	if req.SessionID == "" {
		req.SessionID = s.id
	}
	executionID, err := s.engine.Submit(ctx, workflowID, req)
	if err != nil {
		return nil, fmt.Errorf("submit execution: %w", err)
	}

	s.mu.Lock()
	s.executionID = executionID
	s.workflowID = workflowID
	closeOnce(s.settled)
	s.settled = make(chan struct{})
	s.mu.Unlock()

	s.runs.Start(executionID, workflowID, compiled.Definition.Name)
	s.poller.SetExecutionID(executionID)

	span.SetAttributes(
		attribute.String("workflow.id", workflowID),
		attribute.String("execution.id", executionID),
	)
	s.logger.Info("run submitted",
		zap.String("workflow_id", workflowID),
		zap.String("execution_id", executionID))

	return &Run{WorkflowID: workflowID, ExecutionID: executionID, Diagnostics: compiled.Diagnostics}, nil
}

// Wait 阻塞直到当前执行结束轮询，返回最终结果或轮询错误
func (s *Session) Wait(ctx context.Context) (*execution.Results, error) {
	s.mu.Lock()
	settled := s.settled
	s.mu.Unlock()
	if settled == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "no run has been started")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-settled:
	}

	if err := s.poller.Err(); err != nil {
		return nil, err
	}
	return s.poller.Results(), nil
}

// StopPolling 停止跟踪当前执行，保留最后一次状态
func (s *Session) StopPolling() {
	if s.poller == nil {
		return
	}
	s.mu.Lock()
	s.executionID = ""
	s.mu.Unlock()
	s.poller.SetExecutionID("")
}

// ExecutionID 返回正在跟踪的执行 id
func (s *Session) ExecutionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executionID
}

// ExecutionStatus 返回最近一次拉取到的执行状态
func (s *Session) ExecutionStatus() *execution.Status {
	if s.poller == nil {
		return nil
	}
	return s.poller.Status()
}

// ExecutionErr 返回最近一次拉取错误
func (s *Session) ExecutionErr() error {
	if s.poller == nil {
		return nil
	}
	return s.poller.Err()
}

// Runs 返回运行记录，最新的在前
func (s *Session) Runs() []execution.RunRecord {
	return s.runs.List(nil)
}

func (s *Session) handleStatus(st *execution.Status) {
	s.runs.Observe(st)
	if s.onStatus != nil {
		s.onStatus(st)
	}
}

func (s *Session) handleComplete(res *execution.Results) {
	s.runs.Finish(res)
	if s.onComplete != nil {
		s.onComplete(res)
	}
}

// handleClear 轮询结束后丢弃执行 id
func (s *Session) handleClear() {
	s.mu.Lock()
	id := s.executionID
	s.executionID = ""
	settled := s.settled
	s.mu.Unlock()

	s.poller.SetExecutionID("")

	if id != "" {
		if rec, ok := s.runs.Get(id); ok && !rec.Finished() {
			s.runs.Fail(id, s.poller.Err())
		}
	}

	s.mu.Lock()
	if s.settled == settled {
		closeOnce(settled)
	}
	s.mu.Unlock()

	s.logger.Info("run settled", zap.String("execution_id", id))
}

// closeOnce 关闭尚未关闭的通道（必须在锁内调用）
func closeOnce(ch chan struct{}) {
	if ch == nil {
		return
	}
	select {
	case <-ch:
	default:
		close(ch)
	}
}

func firstError(diags []workflow.Diagnostic) string {
	for _, d := range diags {
		if d.Severity == workflow.SeverityError {
			return d.Message
		}
	}
	return ""
}

// =============================================================================
// 💾 草稿
// =============================================================================

// SaveDraft 保存当前历史栈
func (s *Session) SaveDraft(ctx context.Context) error {
	if s.store == nil {
		return types.NewError(types.ErrStoreUnavailable, "no draft store configured")
	}
	err := s.store.Save(ctx, s.id, s.hist.State())
	s.metrics.RecordDraftOperation("save", err)
	return err
}

// LoadDraft 恢复已保存的历史栈
func (s *Session) LoadDraft(ctx context.Context) error {
	if s.store == nil {
		return types.NewError(types.ErrStoreUnavailable, "no draft store configured")
	}
	state, err := s.store.Load(ctx, s.id)
	s.metrics.RecordDraftOperation("load", err)
	if err != nil {
		return err
	}
	s.hist.Restore(state)
	s.recordHistory("restore")
	return nil
}

// DeleteDraft 删除已保存的草稿
func (s *Session) DeleteDraft(ctx context.Context) error {
	if s.store == nil {
		return types.NewError(types.ErrStoreUnavailable, "no draft store configured")
	}
	err := s.store.Delete(ctx, s.id)
	s.metrics.RecordDraftOperation("delete", err)
	return err
}
