package api

import (
	"github.com/BaSui01/agentstudio/workflow"
)

// =============================================================================
// 工作流编译类型
// =============================================================================

// CompileRequest 编译请求：工作流元数据加画布快照
// @Description 画布编译请求
type CompileRequest struct {
	// 工作流 ID（可选，为空时由引擎分配）
	ID string `json:"id,omitempty" example:"wf-1"`
	// 工作流名称
	Name string `json:"name" example:"Support triage" binding:"required"`
	// 描述
	Description string `json:"description,omitempty"`
	// 版本
	Version string `json:"version,omitempty" example:"1.0.0"`
	// 标签
	Tags []string `json:"tags,omitempty"`
	// 画布节点
	Nodes []workflow.Node `json:"nodes"`
	// 画布连线
	Edges []workflow.Edge `json:"edges"`
}

// Meta 提取工作流元数据
func (r CompileRequest) Meta() workflow.Meta {
	return workflow.Meta{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Version:     r.Version,
		Tags:        r.Tags,
	}
}

// Snapshot 提取画布快照
func (r CompileRequest) Snapshot() workflow.Snapshot {
	return snapshotOf(r.Nodes, r.Edges)
}

// CompileResponse 编译结果
// @Description 编译结果
type CompileResponse struct {
	Definition  *workflow.WorkflowDefinition `json:"definition"`
	Diagnostics []workflow.Diagnostic        `json:"diagnostics"`
}

// ValidateRequest 结构校验请求
// @Description 画布结构校验请求
type ValidateRequest struct {
	Nodes []workflow.Node `json:"nodes"`
	Edges []workflow.Edge `json:"edges"`
}

// Snapshot 提取画布快照
func (r ValidateRequest) Snapshot() workflow.Snapshot {
	return snapshotOf(r.Nodes, r.Edges)
}

// ValidateResponse 结构校验结果；Valid 表示没有 error 级诊断
// @Description 画布结构校验结果
type ValidateResponse struct {
	Valid       bool                  `json:"valid"`
	Diagnostics []workflow.Diagnostic `json:"diagnostics"`
}

func snapshotOf(nodes []workflow.Node, edges []workflow.Edge) workflow.Snapshot {
	s := workflow.EmptySnapshot()
	if nodes != nil {
		s.Nodes = nodes
	}
	if edges != nil {
		s.Edges = edges
	}
	return s
}
