package domain

import (
	"fmt"
)

// ValidationError marks a single claim as malformed. The claim is rejected;
// scoring continues for other claims.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid claim: %s %s", e.Field, e.Reason)
}

// ConfigurationError marks an invalid indicator or threshold configuration.
// Fatal at startup; on hot reload the bad set is rejected and the active
// set stays in place.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// TransportError marks a subscriber connection failure. Recovered locally via
// reconnect with backoff; never surfaced as a scoring failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
