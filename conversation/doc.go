// Package conversation holds the message model shared by the dispatch loop,
// the LLM clients and the stores.
//
// A Conversation starts with one system message and only grows. Appending
// checks the referential integrity of tool traffic: an assistant message may
// request tool calls with conversation-unique ids, and until every one of them
// is answered by a tool message carrying the matching ToolCallID, no other kind
// of message can be appended. Reset is the only way to shrink a conversation.
//
//	conv := conversation.New("You are a helpful assistant.")
//	_ = conv.Append(conversation.UserMessage("What is 2+2?"))
//	_ = conv.Append(conversation.AssistantMessage("", conversation.ToolCall{
//		ID: "call_1", Name: "add", Arguments: map[string]any{"a": 2, "b": 2},
//	}))
//	_ = conv.Append(conversation.ToolResult{ToolCallID: "call_1", Name: "add", Content: "4"}.Message())
package conversation
