package realtime

import (
	"errors"
	"fmt"

	"github.com/docsales/realstate-docgen-front-sub000/pkg/platform/sentinel"
)

// ErrCircuitOpen is returned while a namespace is cooling down after
// repeated dial failures.
var ErrCircuitOpen = errors.New("realtime circuit open")

// SocketUnavailableError means the push path could not be established.
// Consumers fall back to pull-only operation.
type SocketUnavailableError struct {
	Namespace Namespace
	Err       error
}

func (e *SocketUnavailableError) Error() string {
	return fmt.Sprintf("realtime connection for %s unavailable: %v", e.Namespace, e.Err)
}

func (e *SocketUnavailableError) Unwrap() error {
	return e.Err
}

// Is matches sentinel.ErrUnavailable.
func (e *SocketUnavailableError) Is(target error) bool {
	return target == sentinel.ErrUnavailable
}
