// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 agentstudio 可执行程序。

# 子命令

  - serve    启动 API（编译、校验、健康检查）与独立端口的 /metrics
  - compile  把画布导出文件编译为工作流定义（JSON 或 YAML）
  - run      编译、注册并提交执行，轮询到终态后输出结果
  - watch    轮询画布文件，保存后自动重新编译
  - health   请求运行中服务的 /health
  - version  打印构建信息

# 中间件链

Recovery → RequestID → SecurityHeaders → RequestLogger → Metrics →
OTelTracing → CORS → RateLimiter（按 IP 的令牌桶）。

Version、BuildTime、GitCommit 通过 ldflags 注入。
*/
package main
