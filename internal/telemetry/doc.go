// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

// Package telemetry 负责 OpenTelemetry SDK 的初始化与关闭，
// 将编译、引擎调用与 HTTP 请求的 span 导出到 OTLP collector。
// 禁用时不连接任何外部服务，全局 provider 保持 noop。
package telemetry
