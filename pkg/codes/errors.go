package codes

import "errors"

// Error taxonomy for the gateway core. Callers wrap these with fmt.Errorf
// and %w so errors.Is works across layers.
var (
	// ErrAuthenticationFailure is returned on a bind with unknown system_id
	// or a password mismatch. Terminal for the offending connection.
	ErrAuthenticationFailure = errors.New("authentication failure")

	// ErrCapacityExceeded is returned on a bind that would push a client
	// past its configured connection cap. Terminal for the connection.
	ErrCapacityExceeded = errors.New("connection capacity exceeded")

	// ErrNoVendorAvailable is returned by routing when no candidate vendor
	// has at least one active host.
	ErrNoVendorAvailable = errors.New("no vendor available")

	// ErrNoActiveHost is returned by vendor dispatch when the selected
	// vendor has no active host session.
	ErrNoActiveHost = errors.New("no active hosts")

	// ErrSubmissionRejected is returned when a vendor NACKs a submission
	// and no eligible host remains for failover.
	ErrSubmissionRejected = errors.New("submission rejected by vendor")

	// ErrCorrelationMiss is returned when a delivery report references a
	// message id with no matching in-flight entry.
	ErrCorrelationMiss = errors.New("no in-flight entry for message")
)
