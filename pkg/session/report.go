package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/it-ony/Dogbone/pkg/dogbone"
)

// Report summarizes one run.
type Report struct {
	RunID          string
	Mode           string
	Placements     []dogbone.Descriptor
	Failures       []*dogbone.CornerError
	Skipped        int
	EdgesProcessed int
	Elapsed        time.Duration
	Benchmark      bool

	// Findings are the problems the feature checks reported after the run.
	Findings []string
	// Rejected lists the selection events refused while draining the queue
	// at the start of the run.
	Rejected []string
}

// ErrorCount is the number of corners that failed.
func (r *Report) ErrorCount() int { return len(r.Failures) }

// Message is the summary shown to the user when corners failed, or "".
func (r *Report) Message() string {
	if r.ErrorCount() == 0 {
		return ""
	}
	return fmt.Sprintf("Reported errors:%d\nYou may not need to do anything, \nbut check holes have been created", r.ErrorCount())
}

// BenchmarkMessage reports the run time when benchmarking is enabled, or "".
func (r *Report) BenchmarkMessage() string {
	if !r.Benchmark {
		return ""
	}
	return fmt.Sprintf("Benchmark: %.02f sec processing %d edges", r.Elapsed.Seconds(), r.EdgesProcessed)
}

type failureJSON struct {
	Face  string `json:"face"`
	Edge  string `json:"edge"`
	Error string `json:"error"`
}

// MarshalJSON renders failures as plain messages.
func (r *Report) MarshalJSON() ([]byte, error) {
	failures := make([]failureJSON, 0, len(r.Failures))
	for _, f := range r.Failures {
		failures = append(failures, failureJSON{Face: f.FaceKey, Edge: f.EdgeKey, Error: f.Err.Error()})
	}
	placements := r.Placements
	if placements == nil {
		placements = []dogbone.Descriptor{}
	}
	findings := r.Findings
	if findings == nil {
		findings = []string{}
	}
	rejected := r.Rejected
	if rejected == nil {
		rejected = []string{}
	}
	return json.Marshal(struct {
		RunID          string               `json:"runId"`
		Mode           string               `json:"mode"`
		Placements     []dogbone.Descriptor `json:"placements"`
		Failures       []failureJSON        `json:"failures"`
		Findings       []string             `json:"findings"`
		Rejected       []string             `json:"rejected"`
		ErrorCount     int                  `json:"errorCount"`
		Skipped        int                  `json:"skipped"`
		EdgesProcessed int                  `json:"edgesProcessed"`
		ElapsedSeconds float64              `json:"elapsedSeconds"`
		Message        string               `json:"message,omitempty"`
		Benchmark      string               `json:"benchmark,omitempty"`
	}{
		RunID:          r.RunID,
		Mode:           r.Mode,
		Placements:     placements,
		Failures:       failures,
		Findings:       findings,
		Rejected:       rejected,
		ErrorCount:     r.ErrorCount(),
		Skipped:        r.Skipped,
		EdgesProcessed: r.EdgesProcessed,
		ElapsedSeconds: r.Elapsed.Seconds(),
		Message:        r.Message(),
		Benchmark:      r.BenchmarkMessage(),
	})
}
