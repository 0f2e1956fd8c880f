package containers

import "errors"

var (
	// ErrInvalidArgument marks caller misuse such as an empty service name.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrRuntimeUnavailable is reported when the container runtime does not answer.
	ErrRuntimeUnavailable = errors.New("container runtime unavailable")
	// ErrServiceNotFound is reported when no container carries the service name.
	ErrServiceNotFound = errors.New("service not found")
)
