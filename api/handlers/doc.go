// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 Agent Studio HTTP API 的请求处理器。

# 核心类型

  - WorkflowHandler — 画布编译（/api/v1/workflows/compile）与结构校验（/api/v1/workflows/validate）
  - HealthHandler   — 存活与就绪探针、版本信息
  - Response        — 统一 JSON 信封（success + data + error + timestamp）
  - ResponseWriter  — 捕获状态码与响应大小，供日志与指标中间件使用

# 错误处理

所有错误以 types.Error 表达，HTTPStatus 把错误码映射为状态码；
非 types.Error 的错误统一作为 INTERNAL_ERROR 返回，不泄露细节。
*/
package handlers
