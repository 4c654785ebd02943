package spot

import "fmt"

// InputError reports invalid input handed to a detector, an image accessor or
// the gap-closing controller. It is never fatal to the caller's process.
type InputError struct {
	// Op names the operation that rejected the input, e.g. "LogDetector".
	Op     string
	Reason string
}

func (e *InputError) Error() string {
	if e.Op == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}
