package algorithms

import "time"

// BackoffType selects the delay algorithm used between retries.
type BackoffType int

const (
	// BackoffFixed waits the same delay before every retry.
	BackoffFixed BackoffType = iota
	// BackoffExponential doubles the delay on each retry.
	BackoffExponential
	// BackoffJittered is exponential with random jitter.
	BackoffJittered
	// BackoffDecorrelated uses AWS-style decorrelated jitter.
	BackoffDecorrelated
)

// String returns the configuration name of the backoff type.
func (t BackoffType) String() string {
	switch t {
	case BackoffFixed:
		return "fixed"
	case BackoffExponential:
		return "exponential"
	case BackoffJittered:
		return "jittered"
	case BackoffDecorrelated:
		return "decorrelated"
	default:
		return "unknown"
	}
}

// ParseBackoffType maps a configuration name back to a BackoffType.
// Unknown names fall back to BackoffFixed.
func ParseBackoffType(name string) BackoffType {
	switch name {
	case "exponential":
		return BackoffExponential
	case "jittered":
		return BackoffJittered
	case "decorrelated":
		return BackoffDecorrelated
	default:
		return BackoffFixed
	}
}

// NewBackoffStrategy builds the strategy for the given type. A zero or
// negative initialDelay yields a strategy that never waits.
func NewBackoffStrategy(
	backoffType BackoffType,
	initialDelay, maxDelay time.Duration,
	jitterFactor float64,
) BackoffStrategy {
	if initialDelay <= 0 {
		return noBackoff{}
	}
	if maxDelay < initialDelay {
		maxDelay = initialDelay
	}

	switch backoffType {
	case BackoffExponential:
		return newExponentialBackoff(initialDelay, maxDelay)

	case BackoffJittered:
		return newJitteredBackoff(initialDelay, maxDelay, jitterFactor)

	case BackoffDecorrelated:
		return newDecorrelatedJitterBackoff(initialDelay, maxDelay)

	default:
		return fixedBackoff{delay: initialDelay}
	}
}
