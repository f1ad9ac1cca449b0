package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Lookup outcomes.
const (
	OutcomeFound    = "found"
	OutcomeSkipped  = "skipped"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
	OutcomeStale    = "stale"
)

// Submission outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Recorder counts lookup and submission outcomes. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	lookups     *prometheus.CounterVec
	submissions *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests to keep them isolated from the default registerer.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opform",
			Name:      "zipcode_lookups_total",
			Help:      "Address lookups by outcome.",
		}, []string{"outcome"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opform",
			Name:      "submissions_total",
			Help:      "Form submissions by outcome.",
		}, []string{"outcome"}),
	}
	if reg == nil {
		return r, nil
	}
	for _, c := range []prometheus.Collector{r.lookups, r.submissions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Lookup records one address lookup outcome.
func (r *Recorder) Lookup(outcome string) {
	if r == nil {
		return
	}
	r.lookups.WithLabelValues(outcome).Inc()
}

// Submission records one submit outcome.
func (r *Recorder) Submission(outcome string) {
	if r == nil {
		return
	}
	r.submissions.WithLabelValues(outcome).Inc()
}
