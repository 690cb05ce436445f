package tn3270

import (
	"fmt"
)

// NetworkError is returned when the connection to the host could not be opened, or failed
// while reading or writing
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("tn3270: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NegotiationError is returned when the host sent something that does not belong at the
// current point of option negotiation, or refused the requested device
type NegotiationError struct {
	State  NegotiationState
	Reason string
	// Err is the underlying failure, if any, such as a NetworkError when the connection
	// closed partway through negotiation
	Err error
}

func (e *NegotiationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tn3270: negotiation failed in state %s: %s: %v", e.State, e.Reason, e.Err)
	}

	return fmt.Sprintf("tn3270: negotiation failed in state %s: %s", e.State, e.Reason)
}

func (e *NegotiationError) Unwrap() error {
	return e.Err
}
