// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

// Package history 提供有界的撤销/重做历史 Manager，以及基于 Redis 的
// 草稿存储 Store。
//
// Manager 持有 past、present、future 三段快照。可撤销的提交把旧的
// present 压入 past（超出上限时丢弃最旧的一项）并清空 future；
// 瞬时提交（例如拖动节点过程中的位置更新）只替换 present。
package history
