// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

// Package server 管理 HTTP 监听的生命周期：非阻塞启动、
// 基于 context 的优雅关闭与异步错误上报。
// agentstudio serve 用它分别运行 API 与 /metrics 两个监听。
package server
