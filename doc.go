// Toolchat - tool-augmented chat loops in Go
//
// Toolchat resolves a user turn against a language model that may request
// tools. The model is called, every tool it asks for is run and answered in
// request order, and the loop repeats until the model replies without tool
// calls or the iteration budget runs out.
//
// # Quick Start
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//
//		"github.com/smallnest/toolchat/agent"
//		"github.com/smallnest/toolchat/conversation"
//		"github.com/smallnest/toolchat/llms/openai"
//		"github.com/smallnest/toolchat/tool"
//	)
//
//	func main() {
//		client, _ := openai.New(openai.WithToken("..."), openai.WithModel("qwen/qwen3-32b"))
//		registry, _ := tool.NewRegistry(tool.NewAdd())
//		ctrl, _ := agent.New(client, registry, agent.WithMaxIterations(10))
//
//		conv := conversation.New("You are a helpful assistant.")
//		result, err := ctrl.ResolveTurn(context.Background(), conv, "What is 2+2?")
//		if err != nil {
//			panic(err)
//		}
//		fmt.Println(result.Answer)
//	}
//
// # Packages
//
//   - conversation: messages, tool calls and the integrity-checked history
//   - tool: the Tool interface, argument schemas, the registry and the
//     built-in research tools (Wikipedia, arXiv, Tavily, Brave) plus add
//   - llms: the model client interface with retry and timeout wrappers, and
//     clients over go-openai (llms/openai) and langchaingo (llms/langchain)
//   - agent: the dispatch loop controller and its turn events
//   - session: persistent chat sessions with one turn at a time each
//   - store: session storage in memory, JSON files, SQLite, Redis or
//     PostgreSQL
//   - render: tool labels, sanitized markdown and terminal styles
//   - server: the HTTP chat page with server-sent turn events
//   - config, app and log: configuration, wiring and logging
//
// # Examples
//
// examples/multi_tool_chat serves the research chat on http://localhost:8080
// and examples/tool_calling_agent runs the add-tool agent in a terminal.
package toolchat
