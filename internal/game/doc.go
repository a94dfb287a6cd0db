// Package game implements the Chukrum round state machine.
//
// A Round owns the draw pile, the discard pile and both hands. Every player
// move is expressed as an Action and applied through Round.Apply, which
// either mutates the round and returns a Result or rejects the action with
// an error wrapping ErrInvalidAction and leaves the round untouched.
//
// The Engine drives solo play against an Agent, scheduling the agent's turn
// after a think delay on a quartz clock so tests can advance time explicitly.
package game
