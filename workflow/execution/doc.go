// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package execution 跟踪已提交工作流的执行状态。

# 概述

Poller 每次只跟踪一个执行：按固定间隔拉取状态，直到出现终态
（默认 completed、failed、error、cancelled），随后拉取一次最终结果，
依次回调 OnComplete 与 OnClear。拉取失败记录在 Err 中，轮询继续。

Client 是工作流引擎 HTTP 接口的实现，负责注册工作流、提交执行、
查询状态与结果，内置限流、熔断、并发状态请求合并以及 OTel 链路追踪。

RunLog 在内存中保存最近的执行记录，供会话展示运行历史。

# 状态机

	Idle ──SetExecutionID(id)──▶ Polling ──终态──▶ Settling ──结果──▶ Idle
	  ▲                            │
	  └──────SetExecutionID("")────┘
*/
package execution
