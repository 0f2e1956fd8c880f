package notify

import (
	"fmt"
	"time"

	"github.com/nholik/aio-sentinel/internal/transition"
)

func makeChanges(count int) []transition.Change {
	changes := make([]transition.Change, count)
	for i := 0; i < count; i++ {
		changes[i] = transition.Change{
			Kind:     transition.KindService,
			Name:     fmt.Sprintf("svc-%02d", i+1),
			Profile:  "kaspa-node",
			Previous: "healthy",
			Current:  "stopped",
			Severity: transition.SeverityCritical,
			Reasons:  []string{"container exited"},
		}
	}
	return changes
}

func fastTiming() Option {
	return WithTiming(time.Millisecond, 1, time.Millisecond, 2*time.Millisecond, 20*time.Millisecond)
}
