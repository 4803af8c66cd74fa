// Package agent implements the dispatch loop that resolves a user turn by
// alternating model calls and tool executions.
//
// A turn starts in StateAwaitingModel right after the user message is
// appended. Each model reply either ends the turn (StateDone) or requests
// tools (StateExecutingTools); every requested call is answered by one tool
// message, in request order, before the model is called again. The turn fails
// (StateFailed) when the model call fails or the iteration budget is spent,
// and stops (StateCancelled) when the caller cancels between steps.
//
//	c, err := agent.New(client, registry, agent.WithMaxIterations(10))
//	if err != nil {
//		return err
//	}
//	conv := conversation.New("You are a helpful assistant.")
//	result, err := c.ResolveTurn(ctx, conv, "What is 2+2?")
//
// Progress is reported to Listeners as Events; StreamingListener forwards them
// to a channel for UIs.
package agent
