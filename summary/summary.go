// Package summary is the in-memory ExecutionSummary run aggregate
// exposed both as a JSON snapshot for the admin API and as Prometheus
// counters on a private registry.
package summary

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Summary is the process-lifetime aggregate of every submission outcome.
// Counters are cheap, append-only and safe for concurrent use; Snapshot
// takes a consistent read under the same mutex the increments use.
type Summary struct {
	mu sync.RWMutex

	intentsSeen       int64
	duplicatesSkipped int64
	submitted         int64
	rejected          int64
	blocked           int64
	filled            int64

	registry       *prometheus.Registry
	intentsSeenVec prometheus.Counter
	duplicatesVec  prometheus.Counter
	submittedVec   prometheus.Counter
	rejectedVec    prometheus.Counter
	blockedVec     prometheus.Counter
	filledVec      prometheus.Counter
}

// New wires a Summary on its own prometheus registry, namespaced
// "qtsw2exec".
func New() *Summary {
	reg := prometheus.NewRegistry()
	s := &Summary{
		registry: reg,
		intentsSeenVec: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "qtsw2exec", Subsystem: "execution", Name: "intents_seen_total",
			Help: "Total intents presented to SubmitIntent.",
		}),
		duplicatesVec: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "qtsw2exec", Subsystem: "execution", Name: "duplicates_skipped_total",
			Help: "Intents skipped because the journal already recorded a submission.",
		}),
		submittedVec: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "qtsw2exec", Subsystem: "execution", Name: "orders_submitted_total",
			Help: "Entry orders successfully submitted to the adapter.",
		}),
		rejectedVec: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "qtsw2exec", Subsystem: "execution", Name: "orders_rejected_total",
			Help: "Entry orders rejected by the broker or refused by the adapter.",
		}),
		blockedVec: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "qtsw2exec", Subsystem: "execution", Name: "orders_blocked_total",
			Help: "Submissions blocked by the kill switch or a stood-down stream.",
		}),
		filledVec: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "qtsw2exec", Subsystem: "execution", Name: "fills_total",
			Help: "Entry fill callbacks processed.",
		}),
	}
	reg.MustRegister(prometheus.NewGoCollector())
	return s
}

// Registry exposes the private registry for the admin HTTP surface's
// /metrics endpoint.
func (s *Summary) Registry() *prometheus.Registry { return s.registry }

func (s *Summary) IncIntentsSeen() {
	s.mu.Lock()
	s.intentsSeen++
	s.mu.Unlock()
	s.intentsSeenVec.Inc()
}

func (s *Summary) IncDuplicatesSkipped() {
	s.mu.Lock()
	s.duplicatesSkipped++
	s.mu.Unlock()
	s.duplicatesVec.Inc()
}

func (s *Summary) IncSubmitted() {
	s.mu.Lock()
	s.submitted++
	s.mu.Unlock()
	s.submittedVec.Inc()
}

func (s *Summary) IncRejected() {
	s.mu.Lock()
	s.rejected++
	s.mu.Unlock()
	s.rejectedVec.Inc()
}

func (s *Summary) IncBlocked() {
	s.mu.Lock()
	s.blocked++
	s.mu.Unlock()
	s.blockedVec.Inc()
}

func (s *Summary) IncFilled() {
	s.mu.Lock()
	s.filled++
	s.mu.Unlock()
	s.filledVec.Inc()
}

// Snapshot is the JSON-serializable view the admin API's GET /summary
// returns.
type Snapshot struct {
	IntentsSeen       int64 `json:"intents_seen"`
	DuplicatesSkipped int64 `json:"duplicates_skipped"`
	Submitted         int64 `json:"submitted"`
	Rejected          int64 `json:"rejected"`
	Blocked           int64 `json:"blocked"`
	Filled            int64 `json:"filled"`
}

func (s *Summary) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		IntentsSeen:       s.intentsSeen,
		DuplicatesSkipped: s.duplicatesSkipped,
		Submitted:         s.submitted,
		Rejected:          s.rejected,
		Blocked:           s.blocked,
		Filled:            s.filled,
	}
}
