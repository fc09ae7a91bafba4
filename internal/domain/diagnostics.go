package domain

import "time"

// DiagnosticStatus indicates whether a single check passed.
type DiagnosticStatus string

const (
	DiagnosticStatusPass DiagnosticStatus = "pass"
	DiagnosticStatusFail DiagnosticStatus = "fail"
)

// DiagnosticItem is one backend or local check result with optional hint.
type DiagnosticItem struct {
	ID      string           `json:"id" yaml:"id"`
	Name    string           `json:"name" yaml:"name"`
	Status  DiagnosticStatus `json:"status" yaml:"status"`
	Message string           `json:"message" yaml:"message"`
	Hint    string           `json:"hint,omitempty" yaml:"hint,omitempty"`
	Latency time.Duration    `json:"latency,omitempty" yaml:"latency,omitempty"`
}

// DiagnosticReport aggregates checks in a stable order for UI and CLI output.
type DiagnosticReport struct {
	GeneratedAt time.Time        `json:"generatedAt" yaml:"generatedAt"`
	HasFailures bool             `json:"hasFailures" yaml:"hasFailures"`
	Items       []DiagnosticItem `json:"items" yaml:"items"`
}

// Failures returns the failed items only.
func (r DiagnosticReport) Failures() []DiagnosticItem {
	var out []DiagnosticItem
	for _, item := range r.Items {
		if item.Status == DiagnosticStatusFail {
			out = append(out, item)
		}
	}
	return out
}
