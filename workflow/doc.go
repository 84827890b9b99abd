// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package workflow 提供可视化工作流画布模型与图编译器。

# 概述

workflow 包描述编辑器画布上的节点与连线（Snapshot），并把某一时刻的
画布编译为执行引擎可直接消费的 WorkflowDefinition。编译是纯函数：
相同输入得到字节级一致的输出，任何缺省与回退都以 Diagnostic 形式返回，
从不报错。

# 核心接口与类型

  - Node / Edge / Snapshot — 画布模型，Snapshot 视为不可变值
  - Value / Params         — 节点参数的和类型（null/string/number/bool/array/object）
  - Catalog                — 节点面板 id 集合，Classify 将节点类型映射为 StepType
  - BindVariables          — 提取 {{...}} 占位符并绑定到上游输出
  - ResolveDependencies    — 按连线顺序计算每个节点的上游依赖
  - Compiler               — Snapshot → Compilation{Definition, Diagnostics}
  - Validate               — 结构检查（悬空连线、重复、自环、环）

# 主要能力

  - 按步骤类型生成 config：trigger / prompt / agent_execution /
    tool_execution / input / output / conditional
  - 模型到 provider 的解析（ModelCatalog）与个性预设（Personalities）
  - WorkflowDefinition 支持 JSON / YAML 导出与解析校验
*/
package workflow
