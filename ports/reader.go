package ports

import (
	"context"

	"github.com/leibatt/latency-visual-search/domain/trial"
)

// DatasetReader loads a trial table from external storage. Implementations
// own file-format concerns (CSV, XLSX); the domain only sees validated
// datasets.
type DatasetReader interface {
	Read(ctx context.Context, path string) (*trial.Dataset, error)
}
