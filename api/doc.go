// Package api 定义 Agent Studio HTTP API 的请求与响应类型。
//
// # 端点
//
//	POST /api/v1/workflows/compile   画布 → 工作流定义 + 诊断
//	POST /api/v1/workflows/validate  画布结构校验
//	GET  /health, /healthz, /ready, /version
//
// 所有响应都包在 handlers.Response 信封中：
//
//	{"success": true, "data": {...}, "timestamp": "..."}
//
// 错误响应携带 code、message 与 retryable 标记。
package api
