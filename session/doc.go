// Package session manages chat sessions on top of a conversation store.
//
// A session pairs the model-facing conversation with the transcript people
// see. Manager.Run resolves one turn through a Resolver, usually an
// *agent.Controller, records the turn's events as transcript entries and
// saves the session. Turns on one session never overlap: a second Run while
// one is active fails with ErrTurnInProgress.
package session
