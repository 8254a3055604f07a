package comprez

const (
	// defaultBatchRecords is the number of records compressed per batch.
	defaultBatchRecords = 4096
)

// TableOption is a functional option for configuring table builds.
type TableOption func(*tableConfig)

type tableConfig struct {
	workers      int
	batchRecords int
}

func defaultTableConfig() *tableConfig {
	return &tableConfig{
		workers:      0, // Default to single-threaded; use WithWorkers(n) to parallelize
		batchRecords: defaultBatchRecords,
	}
}

// WithWorkers sets the number of goroutines compressing batches.
func WithWorkers(n int) TableOption {
	return func(c *tableConfig) {
		c.workers = n
	}
}

// WithBatchRecords sets how many records make up one batch. n is rounded up
// to a multiple of 8 so every batch starts on a byte boundary; n <= 0
// restores the default.
func WithBatchRecords(n int) TableOption {
	return func(c *tableConfig) {
		if n <= 0 {
			c.batchRecords = defaultBatchRecords
			return
		}
		c.batchRecords = (n + 7) &^ 7
	}
}
