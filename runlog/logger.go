package runlog

import "sync"

// StepInfo is the static definition of a step, as the run log records it
// at run start (spec §4.4, table step_definition).
type StepInfo struct {
	Name          string
	Deps          []string
	When          string
	Condition     *bool
	IsBranch      bool
	SourceText    string
	DisabledDeps  []string
	DisabledSelf  bool
}

// StepMeta is one progress observation for a step, forwarded to every
// registered Logger under the engine's shared lock (spec §4.3.5).
type StepMeta struct {
	Status            string
	ResultKind        string // "none" | "scalar" | "list"
	Rows              []map[string]any
	DurationMS        *float64
	InputLines        *int
	OutputLines       *int
	ThroughputInLPS   *float64
	ThroughputOutLPS  *float64
	OutputText        string
}

// Logger is the capability an execution run logs progress to: a per-run
// columnar store, the central cross-run store, or any future sink (spec
// §9, "Polymorphic logger set").
type Logger interface {
	LogStep(stepName string, meta StepMeta) error
	Close() error
}

// MultiLogger fans a single LogStep/Close call out to an ordered set of
// loggers, serialized by one lock shared across all of them, so every
// logger observes updates in the same order and never interleaves writes.
type MultiLogger struct {
	mu      sync.Mutex
	loggers []Logger
}

// NewMultiLogger composes the given loggers, in call order.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// LogStep forwards meta to every composed logger, in order, under the
// shared lock. The first error is returned after every logger has been
// given a chance to observe the update.
func (m *MultiLogger) LogStep(stepName string, meta StepMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first error
	for _, l := range m.loggers {
		if err := l.LogStep(stepName, meta); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes every composed logger, in order, returning the first
// error encountered.
func (m *MultiLogger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first error
	for _, l := range m.loggers {
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
