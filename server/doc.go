// Package server exposes chat sessions over HTTP.
//
// The page at / talks to a small JSON API for sessions and posts messages to
// /api/chat, which answers with a server-sent event stream: start, user,
// tool_call and tool_result for every tool round, then final or error, and
// end.
package server
