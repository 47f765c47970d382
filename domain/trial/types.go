package trial

import (
	"fmt"
	"math"
	"strings"

	"github.com/leibatt/latency-visual-search/domain/core"
)

// Condition identifies which of the four experimental conditions a trial
// belongs to.
type Condition string

const (
	Experiment1 Condition = "Experiment1"
	Experiment2 Condition = "Experiment2"
	Experiment3 Condition = "Experiment3"
	Experiment4 Condition = "Experiment4"
)

// Conditions lists the valid experimental conditions in report order.
var Conditions = []Condition{Experiment1, Experiment2, Experiment3, Experiment4}

// IsValid reports whether the condition is one of the four experiments.
func (c Condition) IsValid() bool {
	switch c {
	case Experiment1, Experiment2, Experiment3, Experiment4:
		return true
	}
	return false
}

// LatencyLevels are the discrete latency buckets (ms) used in the
// categorical experiments.
var LatencyLevels = []float64{0, 2500, 7000, 10000, 14000}

// MaxLatencyMS bounds latency in the continuous experiments.
const MaxLatencyMS = 14000

// NotReported is the sentinel imputed into free-form fields that were
// left empty by the participant or coder.
const NotReported = "not reported"

// StrategySwitch is the strategy label indicating the participant changed
// search approach mid-trial.
const StrategySwitch = "strategy switch"

// Outcome level names used when the binary outcome enters a categorical test.
const (
	OutcomeFastFirst = "fast_first"
	OutcomeSlowFirst = "slow_first"
)

// Trial is one participant-trial observation. Trials are never mutated
// after creation; derived tables are built by copying.
type Trial struct {
	Participant          core.ParticipantID `json:"participant"`
	Condition            Condition          `json:"condition"`
	LatencyMS            float64            `json:"latency_ms"`
	FoundFastTargetFirst bool               `json:"found_fast_target_first"`
	Interactions         int                `json:"interactions"`
	Strategy             string             `json:"strategy"`
	SwitchedStrategy     bool               `json:"switched_strategy"`
	Notes                string             `json:"notes,omitempty"`
}

// Validate checks the trial invariants: a known condition, latency in
// [0, MaxLatencyMS], and a non-negative interaction count.
func (t *Trial) Validate() error {
	if t.Participant.String() == "" {
		return fmt.Errorf("trial missing participant id")
	}
	if !t.Condition.IsValid() {
		return fmt.Errorf("unknown condition %q", t.Condition)
	}
	if math.IsNaN(t.LatencyMS) || t.LatencyMS < 0 || t.LatencyMS > MaxLatencyMS {
		return fmt.Errorf("latency %.1f ms outside [0, %d]", t.LatencyMS, MaxLatencyMS)
	}
	if t.Interactions < 0 {
		return fmt.Errorf("negative interaction count %d", t.Interactions)
	}
	return nil
}

// OutcomeLabel returns the named level for the binary outcome.
func (t *Trial) OutcomeLabel() string {
	if t.FoundFastTargetFirst {
		return OutcomeFastFirst
	}
	return OutcomeSlowFirst
}

// LatencyBucket maps the trial latency to the nearest discrete level used
// in the categorical experiments.
func (t *Trial) LatencyBucket() float64 {
	best := LatencyLevels[0]
	bestDist := math.Abs(t.LatencyMS - best)
	for _, level := range LatencyLevels[1:] {
		if d := math.Abs(t.LatencyMS - level); d < bestDist {
			best = level
			bestDist = d
		}
	}
	return best
}

// NormalizeStrategy lowercases a strategy label and imputes the sentinel
// for empty values.
func NormalizeStrategy(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return NotReported
	}
	return s
}
