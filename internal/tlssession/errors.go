package tlssession

import "errors"

var (
	// ErrHandshakeFailed is returned by Handshake/PollAndHandshake when
	// the TLS engine itself could not complete the handshake. Fatal;
	// the session cannot be retried.
	ErrHandshakeFailed = errors.New("tlssession: handshake failed")

	// ErrAborted is returned when a session-level abort event fires
	// while PollAndHandshake is waiting.
	ErrAborted = errors.New("tlssession: handshake aborted")

	// ErrMustReadFirst is returned by WriteAll when the TLS engine
	// reports it needs to read (renegotiation) before more can be
	// written; the caller must drain input and retry.
	ErrMustReadFirst = errors.New("tlssession: must read before writing again")

	// ErrWrongState is returned when an operation is attempted from a
	// state that doesn't support it (e.g. WriteAll before Established).
	ErrWrongState = errors.New("tlssession: operation invalid in current state")

	// ErrDestroyed is returned by any operation on a session that has
	// already transitioned to Destroyed.
	ErrDestroyed = errors.New("tlssession: session destroyed")

	// ErrAlertNotDelivered marks a Close error component for a queued
	// alert that crypto/tls had no way to actually send.
	ErrAlertNotDelivered = errors.New("tlssession: alert not delivered")
)
