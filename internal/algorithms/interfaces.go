package algorithms

import "time"

// BackoffStrategy computes the pause between two attempts of the same task.
//
// Implementations are shared by every worker of an orchestrator, so they must
// be safe for concurrent use.
type BackoffStrategy interface {
	// NextDelay returns how long to wait before retry number attemptNumber
	// (0 = the first retry after the initial failure). lastError is the error
	// that triggered the retry.
	NextDelay(attemptNumber int, lastError error) time.Duration

	// Reset clears per-task state for stateful strategies.
	Reset()
}
