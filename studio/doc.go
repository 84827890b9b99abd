// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package studio 把可视化编辑器的三个核心组件组合成一个会话。

Session 持有一个画布的有界撤销历史：添加、修改、连线、删除、清空等
操作都是可撤销提交，拖动节点只更新当前快照。Compile 把当前快照交给
workflow.Compiler；Run 在编译结果没有 error 级诊断时向执行引擎注册
工作流并提交执行，然后把执行 id 交给 execution.Poller，轮询结束后
会话丢弃该 id。可选的草稿存储把历史栈保存到 Redis。

	s := studio.NewSession("", workflow.Snapshot{}, studio.WithEngine(client))
	in, _ := s.AddNode(workflow.Node{Type: "input_text", Label: "Question"})
	bot, _ := s.AddNode(workflow.Node{Type: "agents_chatbot", Label: "Bot"})
	_, _ = s.Connect(workflow.Edge{Source: in.ID, Target: bot.ID})
	run, err := s.Run(ctx, workflow.Meta{Name: "qa"}, execution.SubmitRequest{})
*/
package studio
