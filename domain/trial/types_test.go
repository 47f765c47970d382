package trial

import (
	"testing"

	"github.com/leibatt/latency-visual-search/domain/core"
)

func validTrial() Trial {
	return Trial{
		Participant:          core.ParticipantID("p1"),
		Condition:            Experiment1,
		LatencyMS:            2500,
		FoundFastTargetFirst: true,
		Interactions:         4,
		Strategy:             "scan rows",
	}
}

func TestTrial_ValidateBounds(t *testing.T) {
	tr := validTrial()
	if err := tr.Validate(); err != nil {
		t.Fatalf("Valid trial rejected: %v", err)
	}

	tr = validTrial()
	tr.Condition = "Experiment5"
	if err := tr.Validate(); err == nil {
		t.Error("Unknown condition should be rejected")
	}

	tr = validTrial()
	tr.LatencyMS = -1
	if err := tr.Validate(); err == nil {
		t.Error("Negative latency should be rejected")
	}

	tr = validTrial()
	tr.LatencyMS = MaxLatencyMS + 1
	if err := tr.Validate(); err == nil {
		t.Error("Latency above the maximum should be rejected")
	}

	tr = validTrial()
	tr.LatencyMS = MaxLatencyMS
	if err := tr.Validate(); err != nil {
		t.Errorf("Boundary latency should be accepted: %v", err)
	}

	tr = validTrial()
	tr.Interactions = -1
	if err := tr.Validate(); err == nil {
		t.Error("Negative interaction count should be rejected")
	}

	tr = validTrial()
	tr.Participant = ""
	if err := tr.Validate(); err == nil {
		t.Error("Missing participant should be rejected")
	}
}

func TestTrial_LatencyBucket(t *testing.T) {
	cases := []struct {
		latency float64
		want    float64
	}{
		{0, 0},
		{1000, 0},
		{1300, 2500},
		{2500, 2500},
		{4500, 2500},
		{4800, 7000},
		{8400, 7000},
		{8600, 10000},
		{11900, 10000},
		{12100, 14000},
		{14000, 14000},
	}
	for _, c := range cases {
		tr := validTrial()
		tr.LatencyMS = c.latency
		if got := tr.LatencyBucket(); got != c.want {
			t.Errorf("LatencyBucket(%.0f) = %.0f, want %.0f", c.latency, got, c.want)
		}
	}
}

func TestTrial_OutcomeLabel(t *testing.T) {
	tr := validTrial()
	if tr.OutcomeLabel() != OutcomeFastFirst {
		t.Errorf("Expected %q, got %q", OutcomeFastFirst, tr.OutcomeLabel())
	}
	tr.FoundFastTargetFirst = false
	if tr.OutcomeLabel() != OutcomeSlowFirst {
		t.Errorf("Expected %q, got %q", OutcomeSlowFirst, tr.OutcomeLabel())
	}
}

func TestNormalizeStrategy(t *testing.T) {
	cases := map[string]string{
		"":                  NotReported,
		"   ":               NotReported,
		"Scan Rows":         "scan rows",
		"STRATEGY SWITCH":   StrategySwitch,
		" strategy switch ": StrategySwitch,
	}
	for in, want := range cases {
		if got := NormalizeStrategy(in); got != want {
			t.Errorf("NormalizeStrategy(%q) = %q, want %q", in, got, want)
		}
	}
}
