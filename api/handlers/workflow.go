package handlers

import (
	"net/http"
	"strings"

	"github.com/BaSui01/agentstudio/api"
	"github.com/BaSui01/agentstudio/internal/metrics"
	"github.com/BaSui01/agentstudio/studio"
	"github.com/BaSui01/agentstudio/types"
	"github.com/BaSui01/agentstudio/workflow"
	"go.uber.org/zap"
)

// =============================================================================
// 🧩 工作流编译 Handler
// =============================================================================

// WorkflowHandler 画布编译与结构校验
type WorkflowHandler struct {
	compiler *workflow.Compiler
	metrics  *metrics.Collector
	logger   *zap.Logger
	maxBody  int64
}

// WorkflowOption 配置 WorkflowHandler
type WorkflowOption func(*WorkflowHandler)

// WithHandlerMetrics 记录编译指标
func WithHandlerMetrics(m *metrics.Collector) WorkflowOption {
	return func(h *WorkflowHandler) { h.metrics = m }
}

// WithMaxBodyBytes 设置请求体上限
func WithMaxBodyBytes(n int64) WorkflowOption {
	return func(h *WorkflowHandler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// NewWorkflowHandler 创建处理器；compiler 为 nil 时使用默认编译器
func NewWorkflowHandler(compiler *workflow.Compiler, logger *zap.Logger, opts ...WorkflowOption) *WorkflowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if compiler == nil {
		compiler = workflow.NewCompiler(workflow.WithCompilerLogger(logger))
	}
	h := &WorkflowHandler{
		compiler: compiler,
		logger:   logger.With(zap.String("component", "workflow_handler")),
		maxBody:  DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register 挂载路由
func (h *WorkflowHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/workflows/compile", h.HandleCompile)
	mux.HandleFunc("POST /api/v1/workflows/validate", h.HandleValidate)
}

// HandleCompile 处理 POST /api/v1/workflows/compile
// @Summary 编译画布
// @Tags 工作流
// @Accept json
// @Produce json
// @Param request body api.CompileRequest true "画布与元数据"
// @Success 200 {object} api.CompileResponse
// @Failure 400 {object} Response
// @Router /api/v1/workflows/compile [post]
func (h *WorkflowHandler) HandleCompile(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.CompileRequest
	if err := DecodeJSONBody(w, r, &req, h.maxBody, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		WriteError(w, types.NewInvalidRequestError("name is required"), h.logger)
		return
	}

	session := studio.NewSession("", req.Snapshot(),
		studio.WithCompiler(h.compiler),
		studio.WithMetrics(h.metrics),
		studio.WithLogger(h.logger))
	defer session.Close()

	result := session.Compile(r.Context(), req.Meta())
	WriteSuccess(w, api.CompileResponse{
		Definition:  result.Definition,
		Diagnostics: nonNil(result.Diagnostics),
	})
}

// HandleValidate 处理 POST /api/v1/workflows/validate
// @Summary 校验画布结构
// @Tags 工作流
// @Accept json
// @Produce json
// @Param request body api.ValidateRequest true "画布"
// @Success 200 {object} api.ValidateResponse
// @Failure 400 {object} Response
// @Router /api/v1/workflows/validate [post]
func (h *WorkflowHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.ValidateRequest
	if err := DecodeJSONBody(w, r, &req, h.maxBody, h.logger); err != nil {
		return
	}

	diags := workflow.Validate(req.Snapshot())
	WriteSuccess(w, api.ValidateResponse{
		Valid:       !workflow.HasErrors(diags),
		Diagnostics: nonNil(diags),
	})
}

func nonNil(diags []workflow.Diagnostic) []workflow.Diagnostic {
	if diags == nil {
		return []workflow.Diagnostic{}
	}
	return diags
}
