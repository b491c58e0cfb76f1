package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// CSVSink writes each shard to its own CSV file under a base directory.
// Updates rewrite the whole file; shard files stay small enough (bounded
// by shard capacity) for that to be acceptable.
// Safe for concurrent use.
type CSVSink struct {
	mu     sync.Mutex
	dir    string
	logger *zap.Logger
}

// NewCSVSink creates the output directory if needed.
func NewCSVSink(dir string, logger *zap.Logger) (*CSVSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}
	return &CSVSink{dir: dir, logger: logger}, nil
}

func (c *CSVSink) path(shard string) string {
	return filepath.Join(c.dir, shard+".csv")
}

// EnsureShard creates the shard file with its header when absent.
func (c *CSVSink) EnsureShard(ctx context.Context, shard string, header []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.path(shard)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create shard %q: %w", shard, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	c.logger.Info("csv shard created", zap.String("shard", shard), zap.String("path", path))
	return f.Close()
}

// Append adds rows at the end of the shard file.
func (c *CSVSink) Append(ctx context.Context, shard string, rows [][]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.path(shard), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("csv: open shard %q: %w", shard, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// Update rewrites the shard file with the row at offset replaced.
func (c *CSVSink) Update(ctx context.Context, shard string, offset int, row []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.path(shard)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("csv: open shard %q: %w", shard, err)
	}
	records, err := csv.NewReader(f).ReadAll()
	f.Close()
	if err != nil {
		return fmt.Errorf("csv: read shard %q: %w", shard, err)
	}

	// Row 0 is the header; data offsets start below it.
	target := offset + 1
	if target <= 0 || target >= len(records) {
		return fmt.Errorf("csv: offset %d out of range for shard %q (%d data rows)", offset, shard, len(records)-1)
	}
	records[target] = row

	tmp, err := os.CreateTemp(filepath.Dir(path), ".shard-*.csv")
	if err != nil {
		return fmt.Errorf("csv: create temp: %w", err)
	}
	w := csv.NewWriter(tmp)
	if err := w.WriteAll(records); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("csv: rewrite shard %q: %w", shard, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("csv: replace shard %q: %w", shard, err)
	}
	return nil
}

// Close is a no-op; files are opened per call.
func (c *CSVSink) Close() error { return nil }
