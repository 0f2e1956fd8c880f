package containers

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		state  string
		status string
		want   Status
	}{
		{name: "healthy", state: "running", status: "Up 2 hours (healthy)", want: StatusHealthy},
		{name: "unhealthy", state: "running", status: "Up 5 minutes (unhealthy)", want: StatusUnhealthy},
		{name: "starting", state: "running", status: "Up 3 seconds (health: starting)", want: StatusStarting},
		{name: "no health check", state: "running", status: "Up 2 hours", want: StatusHealthy},
		{name: "exited", state: "exited", status: "Exited (0) 3 minutes ago", want: StatusStopped},
		{name: "paused", state: "paused", status: "Up 2 hours (Paused)", want: StatusStopped},
		{name: "restarting", state: "restarting", status: "Restarting (1) 5 seconds ago", want: StatusStopped},
		{name: "created", state: "created", status: "Created", want: StatusStopped},
		{name: "state case", state: "Running", status: "Up 1 minute (healthy)", want: StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.state, tt.status); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestUptime(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{status: "Up 2 hours (healthy)", want: "2 hours"},
		{status: "Up 3 seconds (health: starting)", want: "3 seconds"},
		{status: "Up About a minute", want: "About a minute"},
		{status: "Up Less than a second", want: "Less than a second"},
		{status: "Exited (0) 3 minutes ago", want: ""},
		{status: "", want: ""},
	}

	for _, tt := range tests {
		if got := Uptime(tt.status); got != tt.want {
			t.Fatalf("Uptime(%q): expected %q, got %q", tt.status, tt.want, got)
		}
	}
}

func TestHasHealthCheck(t *testing.T) {
	if HasHealthCheck("Up 2 hours") {
		t.Fatalf("expected no health check")
	}
	if !HasHealthCheck("Up 2 hours (unhealthy)") {
		t.Fatalf("expected health check")
	}
}
