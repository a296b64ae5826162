package partitioner

import "errors"

var (
	// ErrNoConvergence if the integrity checker still reports violations after the maximum
	// number of repair iterations.
	ErrNoConvergence = errors.New("partition did not converge")

	// ErrNoProgress if the integrity checker reports a violation for an edge the configuration
	// already declares. Augmenting the configuration cannot fix such a violation.
	ErrNoProgress = errors.New("violation is already covered by the configuration")

	ErrNoPartitionWriter = errors.New("no partition writer configured")

	ErrNilConfig = errors.New("nil reference configuration")
)
