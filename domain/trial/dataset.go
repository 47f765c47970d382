package trial

import (
	"fmt"
	"strconv"

	"github.com/leibatt/latency-visual-search/domain/core"
)

// Dataset is an immutable ordered collection of trials read from one
// input table. Filter and projection operations return new datasets and
// never share backing storage with their source.
type Dataset struct {
	Name        string
	Fingerprint core.DatasetFingerprint
	trials      []Trial
}

// NewDataset builds a dataset after validating every trial. The slice is
// copied so later mutation of the argument cannot leak in.
func NewDataset(name string, trials []Trial) (*Dataset, error) {
	for i := range trials {
		if err := trials[i].Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	copied := make([]Trial, len(trials))
	copy(copied, trials)

	fields := make(map[string]string, len(copied)+1)
	fields["name"] = name
	for i, t := range copied {
		fields[strconv.Itoa(i)] = fmt.Sprintf("%s|%s|%.3f|%t|%d|%s",
			t.Participant, t.Condition, t.LatencyMS, t.FoundFastTargetFirst, t.Interactions, t.Strategy)
	}

	return &Dataset{
		Name:        name,
		Fingerprint: core.DatasetFingerprint(core.HashFields(fields)),
		trials:      copied,
	}, nil
}

// Len returns the number of trials.
func (d *Dataset) Len() int {
	return len(d.trials)
}

// Trials returns a copy of the trial slice.
func (d *Dataset) Trials() []Trial {
	out := make([]Trial, len(d.trials))
	copy(out, d.trials)
	return out
}

// At returns the trial at index i.
func (d *Dataset) At(i int) Trial {
	return d.trials[i]
}

// FilterCondition returns a new dataset holding only trials from the
// given condition.
func (d *Dataset) FilterCondition(c Condition) *Dataset {
	var kept []Trial
	for _, t := range d.trials {
		if t.Condition == c {
			kept = append(kept, t)
		}
	}
	sub, err := NewDataset(fmt.Sprintf("%s[%s]", d.Name, c), kept)
	if err != nil {
		// Trials were validated on construction; a filtered subset
		// cannot fail validation.
		panic(err)
	}
	return sub
}

// OutcomeLabels extracts the named outcome level per trial.
func (d *Dataset) OutcomeLabels() []string {
	out := make([]string, len(d.trials))
	for i := range d.trials {
		out[i] = d.trials[i].OutcomeLabel()
	}
	return out
}

// LatencyBucketLabels extracts the discrete latency level per trial,
// formatted as a factor label ("0", "2500", ...).
func (d *Dataset) LatencyBucketLabels() []string {
	out := make([]string, len(d.trials))
	for i := range d.trials {
		out[i] = strconv.FormatFloat(d.trials[i].LatencyBucket(), 'f', -1, 64)
	}
	return out
}

// StrategyLabels extracts the normalized strategy label per trial.
func (d *Dataset) StrategyLabels() []string {
	out := make([]string, len(d.trials))
	for i := range d.trials {
		out[i] = NormalizeStrategy(d.trials[i].Strategy)
	}
	return out
}

// SwitchLabels extracts the strategy-switch indicator per trial as a
// binary factor ("switch" / "no_switch").
func (d *Dataset) SwitchLabels() []string {
	out := make([]string, len(d.trials))
	for i := range d.trials {
		if d.trials[i].SwitchedStrategy {
			out[i] = "switch"
		} else {
			out[i] = "no_switch"
		}
	}
	return out
}

// ConditionLabels extracts the condition label per trial.
func (d *Dataset) ConditionLabels() []string {
	out := make([]string, len(d.trials))
	for i := range d.trials {
		out[i] = string(d.trials[i].Condition)
	}
	return out
}

// Latencies extracts the continuous latency (ms) per trial.
func (d *Dataset) Latencies() []float64 {
	out := make([]float64, len(d.trials))
	for i := range d.trials {
		out[i] = d.trials[i].LatencyMS
	}
	return out
}

// Outcomes extracts the binary outcome per trial as 0/1.
func (d *Dataset) Outcomes() []int {
	out := make([]int, len(d.trials))
	for i := range d.trials {
		if d.trials[i].FoundFastTargetFirst {
			out[i] = 1
		}
	}
	return out
}

// InteractionCounts extracts the total interaction count per trial.
func (d *Dataset) InteractionCounts() []float64 {
	out := make([]float64, len(d.trials))
	for i := range d.trials {
		out[i] = float64(d.trials[i].Interactions)
	}
	return out
}

// Subset returns a new dataset holding the trials at the given indices,
// in the given order. Used by the partitioner.
func (d *Dataset) Subset(name string, indices []int) (*Dataset, error) {
	kept := make([]Trial, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(d.trials) {
			return nil, fmt.Errorf("subset index %d out of range [0, %d)", idx, len(d.trials))
		}
		kept = append(kept, d.trials[idx])
	}
	return NewDataset(name, kept)
}
