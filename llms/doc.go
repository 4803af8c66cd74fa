// Package llms defines the model client used by the dispatch loop and the
// error classification shared by all providers.
//
// Providers live in sub packages: llms/openai talks to any OpenAI compatible
// endpoint (Groq by default) through go-openai, llms/langchain adapts a
// langchaingo model, and llms/fake replays scripted replies for tests and
// offline runs. WithRetry and WithTimeout decorate any Client.
package llms
