package analysis

import (
	"github.com/montanaflynn/stats"

	"github.com/leibatt/latency-visual-search/domain/trial"
)

// SummaryStats holds descriptive statistics for one numeric column.
type SummaryStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	Q25    float64 `json:"q25"`
	Q75    float64 `json:"q75"`
	N      int     `json:"n"`
}

// ConditionSummary describes one experimental condition for the report
// header tables.
type ConditionSummary struct {
	Condition     trial.Condition `json:"condition"`
	Trials        int             `json:"trials"`
	FastFirstRate float64         `json:"fast_first_rate"`
	SwitchRate    float64         `json:"switch_rate"`
	Latency       SummaryStats    `json:"latency"`
	Interactions  SummaryStats    `json:"interactions"`
}

// Summarize computes descriptive statistics for a numeric column.
func Summarize(data []float64) SummaryStats {
	if len(data) == 0 {
		return SummaryStats{}
	}
	mean, _ := stats.Mean(data)
	stdDev, _ := stats.StandardDeviation(data)
	min, _ := stats.Min(data)
	max, _ := stats.Max(data)
	median, _ := stats.Median(data)
	q25, _ := stats.Percentile(data, 25)
	q75, _ := stats.Percentile(data, 75)

	return SummaryStats{
		Mean:   mean,
		StdDev: stdDev,
		Min:    min,
		Max:    max,
		Median: median,
		Q25:    q25,
		Q75:    q75,
		N:      len(data),
	}
}

// SummarizeConditions produces one summary row per experimental
// condition present in the dataset, in canonical condition order.
func SummarizeConditions(d *trial.Dataset) []ConditionSummary {
	var out []ConditionSummary
	for _, c := range trial.Conditions {
		sub := d.FilterCondition(c)
		if sub.Len() == 0 {
			continue
		}

		fastFirst := 0
		switches := 0
		for _, t := range sub.Trials() {
			if t.FoundFastTargetFirst {
				fastFirst++
			}
			if t.SwitchedStrategy {
				switches++
			}
		}

		out = append(out, ConditionSummary{
			Condition:     c,
			Trials:        sub.Len(),
			FastFirstRate: float64(fastFirst) / float64(sub.Len()),
			SwitchRate:    float64(switches) / float64(sub.Len()),
			Latency:       Summarize(sub.Latencies()),
			Interactions:  Summarize(sub.InteractionCounts()),
		})
	}
	return out
}
