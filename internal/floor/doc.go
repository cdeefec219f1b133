// Package floor decides who may speak in a live session.
//
// A Controller owns one session's floor: the urgency Registry collecting
// bids for the next grant, the single-use human Override, and the turn
// currently in progress. Every operation takes the caller's notion of now so
// transitions are deterministic under test; the runner package drives Tick
// from a wall-clock ticker so turns and sessions end on schedule without
// client traffic.
//
// Transitions are reported to a Sink as Events. Finished turns travel as
// domain.TurnRecord values inside EventTurnEnded.
package floor
