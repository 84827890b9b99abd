// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

// Package config 提供 Agent Studio 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 AGENTSTUDIO_）的顺序加载，
// 分为 server、engine、compiler、history、poller、redis、log、telemetry
// 八个部分，并可转换为各组件自己的配置结构。
package config
