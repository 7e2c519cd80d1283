package retry

import (
	"errors"

	platformerrors "github.com/jmgilman/go/errors"
)

// Matcher classifies an error.
type Matcher func(error) bool

// Is matches errors that wrap target.
func Is(target error) Matcher {
	return func(err error) bool {
		return errors.Is(err, target)
	}
}

// As matches errors with an E anywhere in their chain.
func As[E error]() Matcher {
	return func(err error) bool {
		var target E
		return errors.As(err, &target)
	}
}

// Any matches every error.
func Any() Matcher {
	return func(error) bool { return true }
}

// Classified matches errors that carry a retryable platform classification.
func Classified() Matcher {
	return platformerrors.IsRetryable
}

// Panics matches recovered panics.
func Panics() Matcher {
	return As[*PanicError]()
}

func matchAny(ms []Matcher, err error) bool {
	for _, m := range ms {
		if m != nil && m(err) {
			return true
		}
	}
	return false
}
