// Package domain holds the session, participant and turn types shared by the
// floor engine, its runners and storage, together with the session clock and
// the error taxonomy surfaced to callers.
package domain
