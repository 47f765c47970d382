package tabular

import (
	"context"
	"strconv"
	"strings"

	"github.com/leibatt/latency-visual-search/domain/core"
	"github.com/leibatt/latency-visual-search/domain/trial"
	"github.com/leibatt/latency-visual-search/internal"
	"github.com/leibatt/latency-visual-search/internal/errors"
	"github.com/leibatt/latency-visual-search/ports"
)

// Required column names. Matching is case-insensitive and accepts the
// aliases below.
const (
	colParticipant  = "participant"
	colCondition    = "condition"
	colLatency      = "latencyMs"
	colOutcome      = "foundFastTargetFirst"
	colInteractions = "totalInteractions"
	colStrategy     = "searchStrategy"
	colNotes        = "notes"
)

var columnAliases = map[string][]string{
	colParticipant:  {"participant", "participant_id", "subject"},
	colCondition:    {"condition", "experiment", "experiment_condition"},
	colLatency:      {"latencyMs", "latency_ms", "latency"},
	colOutcome:      {"foundFastTargetFirst", "found_fast_target_first", "fast_first"},
	colInteractions: {"totalInteractions", "total_interactions", "interactions"},
	colStrategy:     {"searchStrategy", "search_strategy", "strategy"},
	colNotes:        {"notes", "comments", "remarks"},
}

// DatasetReader reads a trial dataset from a CSV or XLSX file, coercing
// columns into the domain types. Rows missing an analytic field
// (condition, latency, outcome) are dropped; missing free-form fields are
// imputed with the "not reported" sentinel.
type DatasetReader struct {
	files *FileReader
	log   *internal.Logger
}

var _ ports.DatasetReader = (*DatasetReader)(nil)

// NewDatasetReader creates a dataset reader.
func NewDatasetReader(log *internal.Logger) *DatasetReader {
	return &DatasetReader{files: NewFileReader(), log: log}
}

// Read loads and binds the file at path.
func (r *DatasetReader) Read(ctx context.Context, path string) (*trial.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table, err := r.files.ReadTable(path)
	if err != nil {
		return nil, err
	}

	idx := map[string]int{}
	for canonical, aliases := range columnAliases {
		idx[canonical] = -1
		for _, alias := range aliases {
			if c := table.Column(alias); c >= 0 {
				idx[canonical] = c
				break
			}
		}
	}
	for _, required := range []string{colParticipant, colCondition, colLatency, colOutcome, colInteractions, colStrategy} {
		if idx[required] < 0 {
			return nil, errors.MissingColumn(required)
		}
	}

	var trials []trial.Trial
	dropped := 0
	for rowNum, row := range table.Rows {
		t, ok, err := bindRow(row, idx)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d of %s", rowNum+2, path)
		}
		if !ok {
			dropped++
			continue
		}
		trials = append(trials, t)
	}

	if dropped > 0 {
		r.log.Warn("dropped %d of %d rows from %s with missing analytic fields", dropped, len(table.Rows), path)
	}
	if len(trials) == 0 {
		return nil, errors.InvalidInput("no usable rows after filtering: " + path)
	}

	ds, err := trial.NewDataset(path, trials)
	if err != nil {
		return nil, errors.Wrap(err, "dataset validation failed")
	}
	r.log.Info("loaded %d trials from %s (fingerprint %.12s)", ds.Len(), path, ds.Fingerprint)
	return ds, nil
}

// bindRow coerces one raw row. ok=false drops the row (missing analytic
// value); an error aborts the load (unparseable value).
func bindRow(row []string, idx map[string]int) (trial.Trial, bool, error) {
	cell := func(col string) string {
		c := idx[col]
		if c < 0 || c >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[c])
	}

	condition := cell(colCondition)
	latency := cell(colLatency)
	outcome := cell(colOutcome)
	if condition == "" || latency == "" || outcome == "" {
		return trial.Trial{}, false, nil
	}

	latencyMS, err := strconv.ParseFloat(latency, 64)
	if err != nil {
		return trial.Trial{}, false, errors.InvalidInput("unparseable latency " + strconv.Quote(latency))
	}
	fastFirst, err := parseBinary(outcome)
	if err != nil {
		return trial.Trial{}, false, err
	}

	interactions := 0
	if s := cell(colInteractions); s != "" {
		interactions, err = strconv.Atoi(s)
		if err != nil {
			return trial.Trial{}, false, errors.InvalidInput("unparseable interaction count " + strconv.Quote(s))
		}
	}

	strategy := trial.NormalizeStrategy(cell(colStrategy))
	notes := cell(colNotes)
	if notes == "" {
		notes = trial.NotReported
	}

	t := trial.Trial{
		Participant:          core.ParticipantID(cell(colParticipant)),
		Condition:            trial.Condition(condition),
		LatencyMS:            latencyMS,
		FoundFastTargetFirst: fastFirst,
		Interactions:         interactions,
		Strategy:             strategy,
		SwitchedStrategy:     strategy == trial.StrategySwitch,
		Notes:                notes,
	}
	return t, true, nil
}

// parseBinary accepts the encodings seen across the two datasets: 0/1,
// true/false, yes/no.
func parseBinary(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes":
		return true, nil
	case "0", "false", "no":
		return false, nil
	}
	return false, errors.InvalidInput("unparseable binary value " + strconv.Quote(s))
}
