package harvest

import (
	"time"

	"github.com/pevans/newsharvest/filter"
)

// RunReport summarises one collection pass. Its shape is what dashboards and
// the API consume, so field names are stable.
type RunReport struct {
	ID           string         `json:"id"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	Cancelled    bool           `json:"cancelled"`
	ConfigErrors []string       `json:"config_errors,omitempty"`
	Targets      []TargetReport `json:"per_target"`
}

// TargetReport holds the counts for one target. Attempted counts article
// pages, not listing or feed pages.
type TargetReport struct {
	Target               string                `json:"target"`
	Attempted            int                   `json:"attempted"`
	Fetched              int                   `json:"fetched"`
	Extracted            int                   `json:"extracted"`
	Accepted             int                   `json:"accepted"`
	Discovered           int                   `json:"discovered,omitempty"`
	RejectedReasonCounts map[filter.Reason]int `json:"rejected_reason_counts"`
	Strategies           map[string]int        `json:"strategies,omitempty"`
	Errors               []string              `json:"errors,omitempty"`
	// Aborted is set when cancellation interrupted the target.
	Aborted bool `json:"aborted,omitempty"`
}

// Totals is the sum over all targets.
type Totals struct {
	Attempted int                   `json:"attempted"`
	Fetched   int                   `json:"fetched"`
	Extracted int                   `json:"extracted"`
	Accepted  int                   `json:"accepted"`
	Rejected  map[filter.Reason]int `json:"rejected"`
}

func newTargetReport(name string) TargetReport {
	return TargetReport{
		Target:               name,
		RejectedReasonCounts: make(map[filter.Reason]int),
		Strategies:           make(map[string]int),
	}
}

func (tr *TargetReport) reject(reason filter.Reason) {
	tr.RejectedReasonCounts[reason]++
}

// Target returns the report for the named target.
func (r *RunReport) Target(name string) (TargetReport, bool) {
	for _, tr := range r.Targets {
		if tr.Target == name {
			return tr, true
		}
	}
	return TargetReport{}, false
}

// Totals sums the per-target counts.
func (r *RunReport) Totals() Totals {
	t := Totals{Rejected: make(map[filter.Reason]int)}
	for _, tr := range r.Targets {
		t.Attempted += tr.Attempted
		t.Fetched += tr.Fetched
		t.Extracted += tr.Extracted
		t.Accepted += tr.Accepted
		for reason, n := range tr.RejectedReasonCounts {
			t.Rejected[reason] += n
		}
	}
	return t
}

// Duration is the wall time of the run.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
