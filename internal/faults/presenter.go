package faults

import (
	"errors"

	"github.com/nholik/aio-sentinel/internal/containers"
	"github.com/nholik/aio-sentinel/internal/metrics"
	"github.com/nholik/aio-sentinel/internal/ports"
	"github.com/nholik/aio-sentinel/internal/reconfig"
	"github.com/nholik/aio-sentinel/internal/state"
	"github.com/rs/zerolog"
)

// Presenter turns faults into user-facing presentations and always logs the detail.
type Presenter struct {
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewPresenter returns a presenter. m may be nil.
func NewPresenter(logger zerolog.Logger, m *metrics.Metrics) *Presenter {
	return &Presenter{logger: logger, metrics: m}
}

// Present maps category to its presentation. Unknown categories get the
// generic message. detail is logged and never shown to the user.
func (p *Presenter) Present(category Category, detail error) Presentation {
	e, ok := taxonomy[category]
	if !ok {
		p.logger.Warn().Str("category", string(category)).Msg("unknown fault category, using generic presentation")
		category = CategoryGenericAPIFailure
		e = taxonomy[category]
	}

	event := p.logger.Warn()
	if category == CategoryNoInstallFound || category == CategoryServiceNotFound {
		event = p.logger.Debug()
	}
	event.Str("category", string(category)).
		Str("recovery", string(e.recovery)).
		Err(detail).
		Msg("fault presented")
	p.metrics.IncFaults(string(category))

	return Presentation{
		Category:      category,
		UserMessage:   e.message,
		Recovery:      e.recovery,
		RetryAfter:    e.retryAfter,
		ConsoleLogged: true,
	}
}

// PresentError classifies err and presents it.
func (p *Presenter) PresentError(err error) Presentation {
	return p.Present(Classify(err), err)
}

// Classify maps errors returned by the other packages to a category.
func Classify(err error) Category {
	var fault *Fault
	if errors.As(err, &fault) && fault.Category.Known() {
		return fault.Category
	}
	var exhausted *ports.ExhaustedError

	switch {
	case err == nil:
		return CategoryGenericAPIFailure
	case errors.Is(err, state.ErrNoInstallation), errors.Is(err, reconfig.ErrNoInstallation):
		return CategoryNoInstallFound
	case errors.Is(err, state.ErrCorruptState):
		return CategoryStateFileCorrupt
	case errors.Is(err, containers.ErrRuntimeUnavailable):
		return CategoryRuntimeUnavailable
	case errors.As(err, &exhausted), errors.Is(err, ports.ErrUnreachable):
		return CategoryDependentServiceUnavailable
	case errors.Is(err, containers.ErrServiceNotFound):
		return CategoryServiceNotFound
	default:
		return CategoryGenericAPIFailure
	}
}

// ExitCode maps a category to a process exit status for the CLI.
func ExitCode(category Category) int {
	switch category {
	case CategoryNoInstallFound:
		return 3
	case CategoryStateFileCorrupt:
		return 4
	case CategoryRuntimeUnavailable, CategoryDependentServiceUnavailable:
		return 5
	case CategoryServiceNotFound:
		return 6
	default:
		return 1
	}
}
