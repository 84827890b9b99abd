// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、图编译、
撤销历史、执行轮询、执行引擎客户端与草稿存储。

# 概述

Collector 通过 promauto 注册到默认 Registry，所有指标按 namespace
隔离。Record 方法对 nil 接收者安全，未启用指标的组件可直接传 nil。

# 主要能力

  - HTTP 指标：请求总数、耗时、响应体大小，状态码归类为 2xx/3xx/4xx/5xx
  - 编译指标：编译次数（clean/warnings/errors）、耗时、步骤数、诊断计数
  - 历史指标：undo/redo/commit 等操作计数与栈深度
  - 轮询指标：状态拉取次数与耗时、正在轮询的执行数、终态计数
  - 引擎指标：按 operation 分组的请求计数与耗时、熔断器状态
*/
package metrics
