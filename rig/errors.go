package rig

import "errors"

// Failure categories for gateway calls. Callers match them with errors.Is.
var (
	// ErrNotConnected is returned when a call is made before Connect
	// succeeded or after Disconnect.
	ErrNotConnected = errors.New("not connected to FLRig")

	// ErrConnection indicates the FLRig endpoint is unreachable or the
	// handshake failed.
	ErrConnection = errors.New("connection to FLRig failed")

	// ErrCommunication indicates a request was sent but failed or the
	// response was malformed.
	ErrCommunication = errors.New("FLRig communication failed")

	// ErrInvalidArgument indicates caller-side validation failed; the
	// request never reached the endpoint.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTimeout indicates the endpoint did not answer in time.
	ErrTimeout = errors.New("FLRig request timed out")
)
