package tabular

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leibatt/latency-visual-search/domain/trial"
	"github.com/leibatt/latency-visual-search/internal"
	"github.com/leibatt/latency-visual-search/internal/errors"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	return path
}

func testReader() *DatasetReader {
	return NewDatasetReader(internal.NewLogger(internal.LogLevelError))
}

func TestDatasetReader_ReadValidCSV(t *testing.T) {
	path := writeCSV(t, `participant,condition,latencyMs,foundFastTargetFirst,totalInteractions,searchStrategy,notes
p1,Experiment1,0,1,3,scan rows,fine
p2,Experiment1,2500,0,6,strategy switch,
p3,Experiment3,14000,false,9,,slow session
`)

	d, err := testReader().Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if d.Len() != 3 {
		t.Fatalf("Expected 3 trials, got %d", d.Len())
	}

	first := d.At(0)
	if first.Condition != trial.Experiment1 || !first.FoundFastTargetFirst || first.Interactions != 3 {
		t.Errorf("First trial bound incorrectly: %+v", first)
	}

	second := d.At(1)
	if !second.SwitchedStrategy {
		t.Error("Strategy switch row should set the switch indicator")
	}
	if second.Notes != trial.NotReported {
		t.Errorf("Empty notes should be imputed, got %q", second.Notes)
	}

	third := d.At(2)
	if third.Strategy != trial.NotReported {
		t.Errorf("Empty strategy should be imputed, got %q", third.Strategy)
	}
	if third.FoundFastTargetFirst {
		t.Error("false should parse as a negative outcome")
	}

	if d.Fingerprint == "" {
		t.Error("Dataset fingerprint should be set")
	}
}

func TestDatasetReader_ColumnAliases(t *testing.T) {
	path := writeCSV(t, `subject,experiment,latency_ms,fast_first,interactions,strategy
p1,Experiment2,7000,yes,4,exhaustive scan
p2,Experiment2,7000,no,2,scan rows
`)

	d, err := testReader().Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read with aliased columns failed: %v", err)
	}
	if d.Len() != 2 {
		t.Fatalf("Expected 2 trials, got %d", d.Len())
	}
	if d.At(0).Condition != trial.Experiment2 {
		t.Errorf("Aliased condition column not bound: %+v", d.At(0))
	}
}

func TestDatasetReader_MissingColumnIsFatal(t *testing.T) {
	path := writeCSV(t, `participant,condition,foundFastTargetFirst,totalInteractions,searchStrategy
p1,Experiment1,1,3,scan rows
`)

	_, err := testReader().Read(context.Background(), path)
	if err == nil {
		t.Fatal("Expected a fatal error for a missing latency column")
	}
	if errors.GetCode(err) != errors.CodeMissingColumn {
		t.Errorf("Expected MISSING_COLUMN code, got %s", errors.GetCode(err))
	}
}

func TestDatasetReader_DropsRowsMissingAnalyticFields(t *testing.T) {
	path := writeCSV(t, `participant,condition,latencyMs,foundFastTargetFirst,totalInteractions,searchStrategy
p1,Experiment1,0,1,3,scan rows
p2,,2500,0,6,scan rows
p3,Experiment1,,1,2,scan rows
p4,Experiment1,7000,,4,scan rows
p5,Experiment1,10000,0,1,scan rows
`)

	d, err := testReader().Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if d.Len() != 2 {
		t.Errorf("Expected 2 usable rows after dropping, got %d", d.Len())
	}
}

func TestDatasetReader_UnparseableValueIsFatal(t *testing.T) {
	path := writeCSV(t, `participant,condition,latencyMs,foundFastTargetFirst,totalInteractions,searchStrategy
p1,Experiment1,fast,1,3,scan rows
`)

	_, err := testReader().Read(context.Background(), path)
	if err == nil {
		t.Fatal("Expected a fatal error for an unparseable latency")
	}
}

func TestDatasetReader_OutOfRangeLatencyRejected(t *testing.T) {
	path := writeCSV(t, `participant,condition,latencyMs,foundFastTargetFirst,totalInteractions,searchStrategy
p1,Experiment1,15000,1,3,scan rows
`)

	if _, err := testReader().Read(context.Background(), path); err == nil {
		t.Fatal("Expected validation failure for latency above the maximum")
	}
}

func TestFileReader_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := NewFileReader().ReadTable(path); err == nil {
		t.Fatal("Expected an error for an unsupported extension")
	}
}

func TestFileReader_MissingFile(t *testing.T) {
	if _, err := NewFileReader().ReadTable(filepath.Join(t.TempDir(), "absent.csv")); err == nil {
		t.Fatal("Expected an error for a missing file")
	}
}

func TestTable_ColumnCaseInsensitive(t *testing.T) {
	table := &Table{Headers: []string{"Participant", "LatencyMS"}}
	if table.Column("participant") != 0 {
		t.Error("Column lookup should be case-insensitive")
	}
	if table.Column("latencyms") != 1 {
		t.Error("Column lookup should be case-insensitive")
	}
	if table.Column("absent") != -1 {
		t.Error("Absent column should return -1")
	}
}
