package faults

import (
	"fmt"
	"time"
)

// Category is one entry in the closed fault taxonomy shown to users.
type Category string

const (
	CategoryNoInstallFound              Category = "no-install-found"
	CategoryRuntimeUnavailable          Category = "runtime-unavailable"
	CategoryDependentServiceUnavailable Category = "dependent-service-unavailable"
	CategoryServiceNotFound             Category = "service-not-found"
	CategoryStateFileCorrupt            Category = "state-file-corrupt"
	CategoryGenericAPIFailure           Category = "generic-api-failure"
)

// Recovery is the action a UI offers after a fault.
type Recovery string

const (
	RecoveryOfferWizard          Recovery = "offer-wizard"
	RecoveryRetryInterval        Recovery = "retry-interval"
	RecoveryRetryFallbackScan    Recovery = "retry-fallback-scan"
	RecoveryShowPlaceholder      Recovery = "show-placeholder"
	RecoveryOfferReconfiguration Recovery = "offer-reconfiguration"
	RecoveryRetry                Recovery = "retry"
)

// Presentation is what a UI shows for a fault.
type Presentation struct {
	Category      Category      `json:"category"`
	UserMessage   string        `json:"userMessage"`
	Recovery      Recovery      `json:"recovery"`
	RetryAfter    time.Duration `json:"retryAfter,omitempty"`
	ConsoleLogged bool          `json:"consoleLogged"`
}

type entry struct {
	message    string
	recovery   Recovery
	retryAfter time.Duration
}

var taxonomy = map[Category]entry{
	CategoryNoInstallFound: {
		message:  "No installation was found. Run the installation wizard to set up your node.",
		recovery: RecoveryOfferWizard,
	},
	CategoryRuntimeUnavailable: {
		message:    "Docker is not reachable. Service status will refresh once it is running again.",
		recovery:   RecoveryRetryInterval,
		retryAfter: 30 * time.Second,
	},
	CategoryDependentServiceUnavailable: {
		message:    "The Kaspa node is not answering on any known port. Retrying with a full port scan.",
		recovery:   RecoveryRetryFallbackScan,
		retryAfter: 10 * time.Second,
	},
	CategoryServiceNotFound: {
		message:  "This service is not available right now.",
		recovery: RecoveryShowPlaceholder,
	},
	CategoryStateFileCorrupt: {
		message:  "The installation record could not be read. Run reconfiguration to repair it.",
		recovery: RecoveryOfferReconfiguration,
	},
	CategoryGenericAPIFailure: {
		message:    "Something went wrong. Please try again.",
		recovery:   RecoveryRetry,
		retryAfter: 5 * time.Second,
	},
}

// Categories returns every known category.
func Categories() []Category {
	return []Category{
		CategoryNoInstallFound,
		CategoryRuntimeUnavailable,
		CategoryDependentServiceUnavailable,
		CategoryServiceNotFound,
		CategoryStateFileCorrupt,
		CategoryGenericAPIFailure,
	}
}

// Known reports whether c is in the taxonomy.
func (c Category) Known() bool {
	_, ok := taxonomy[c]
	return ok
}

// Fault is an error tagged with its category and the operation that failed.
type Fault struct {
	Category Category
	Op       string
	Err      error
}

// New wraps err as a fault.
func New(category Category, op string, err error) *Fault {
	return &Fault{Category: category, Op: op, Err: err}
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Op, f.Category)
	}
	return fmt.Sprintf("%s: %v", f.Op, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}
