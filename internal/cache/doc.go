// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
包 cache 提供基于 Redis 的键值存储，供编辑器草稿持久化使用。

# 概述

Manager 封装 go-redis 客户端，负责连接初始化、后台健康检查与优雅关闭。
所有键自动加上配置的 KeyPrefix，Keys 通过 SCAN 列出并去掉前缀。

# 核心类型

  - Manager：Get/Set/Delete/Keys/TTL 以及 GetJSON/SetJSON
  - Config：地址、密码、键前缀、默认 TTL、连接池与健康检查间隔

# 错误语义

  - ErrCacheMiss：键不存在，IsCacheMiss 用于判断
  - ErrClosed：管理器已关闭
*/
package cache
