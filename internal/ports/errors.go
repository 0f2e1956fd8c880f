package ports

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnreachable is matched by every ExhaustedError.
var ErrUnreachable = errors.New("dependent service unreachable")

// ExhaustedError reports that no port in the chain answered.
type ExhaustedError struct {
	Host      string
	Attempted []int
	Causes    map[int]error
}

func (e *ExhaustedError) Error() string {
	attempted := make([]string, 0, len(e.Attempted))
	for _, port := range e.Attempted {
		attempted = append(attempted, strconv.Itoa(port))
	}
	if len(attempted) == 0 {
		return fmt.Sprintf("%s: no candidate ports for %s", ErrUnreachable, e.Host)
	}
	return fmt.Sprintf("%s: %s did not answer on ports %s", ErrUnreachable, e.Host, strings.Join(attempted, ", "))
}

func (e *ExhaustedError) Unwrap() error {
	return ErrUnreachable
}
