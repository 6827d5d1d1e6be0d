package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/pkg/logger"
)

// ErrBufferFull is returned by Add when Capacity rows are already waiting
var ErrBufferFull = errors.New("metrics buffer full")

const flushTimeout = 5 * time.Second

// BufferConfig configures the row buffer
type BufferConfig struct {
	Writer        Writer
	BatchSize     int           // rows per table that trigger an early flush
	FlushInterval time.Duration // periodic flush
	Capacity      int           // rows kept while the writer is failing; 0 means 10 * BatchSize
}

// Buffer groups rows per table and writes them from a single goroutine,
// on the flush interval or as soon as a table reaches BatchSize. Rows of a
// failed write are put back, up to Capacity.
type Buffer struct {
	writer    Writer
	batchSize int
	capacity  int

	mu      sync.Mutex
	pending map[string][]Row
	size    int
	closed  bool

	kick chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewBuffer creates the buffer and starts its flush loop
func NewBuffer(cfg BufferConfig) *Buffer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 10 * time.Second
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = cfg.BatchSize * 10
	}

	b := &Buffer{
		writer:    cfg.Writer,
		batchSize: cfg.BatchSize,
		capacity:  cfg.Capacity,
		pending:   make(map[string][]Row),
		kick:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go b.loop(cfg.FlushInterval)

	logger.Info("metrics buffer started",
		zap.Int("batch_size", cfg.BatchSize),
		zap.Int("capacity", cfg.Capacity),
		zap.Duration("flush_interval", cfg.FlushInterval),
	)
	return b
}

// Add queues the row. It never blocks on the writer.
func (b *Buffer) Add(row Row) error {
	if row == nil {
		return errors.New("metrics row is nil")
	}
	table := row.TableName()
	if table == "" {
		return errors.New("metrics row has no table")
	}
	if len(row.Columns()) != len(row.Values()) {
		return fmt.Errorf("%s row has %d columns and %d values", table, len(row.Columns()), len(row.Values()))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New("metrics buffer closed")
	}
	if b.size >= b.capacity {
		return ErrBufferFull
	}

	b.pending[table] = append(b.pending[table], row)
	b.size++

	if len(b.pending[table]) >= b.batchSize {
		select {
		case b.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

// Flush writes everything queued so far
func (b *Buffer) Flush(ctx context.Context) error {
	b.mu.Lock()
	batches := b.pending
	b.pending = make(map[string][]Row)
	b.size = 0
	b.mu.Unlock()

	var errs []error
	for table, rows := range batches {
		if err := b.writer.Write(ctx, table, rows); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", table, err))
			b.requeue(table, rows)
			continue
		}
		logger.Debug("metrics flushed", zap.String("table", table), zap.Int("rows", len(rows)))
	}
	return errors.Join(errs...)
}

// requeue puts failed rows back in front of newer ones, dropping the oldest
// when that would exceed capacity
func (b *Buffer) requeue(table string, rows []Row) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.capacity - b.size
	if room <= 0 {
		logger.Warn("metrics rows dropped", zap.String("table", table), zap.Int("rows", len(rows)))
		return
	}
	if len(rows) > room {
		logger.Warn("metrics rows dropped", zap.String("table", table), zap.Int("rows", len(rows)-room))
		rows = rows[len(rows)-room:]
	}

	b.pending[table] = append(append([]Row{}, rows...), b.pending[table]...)
	b.size += len(rows)
}

// Size returns the number of queued rows
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Close stops the flush loop and writes what is left. The writer stays open.
func (b *Buffer) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	close(b.stop)
	<-b.done

	if err := b.Flush(ctx); err != nil {
		return fmt.Errorf("final metrics flush: %w", err)
	}
	logger.Info("metrics buffer closed")
	return nil
}

func (b *Buffer) loop(interval time.Duration) {
	defer close(b.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
		case <-b.kick:
		}

		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		if err := b.Flush(ctx); err != nil {
			logger.Warn("metrics flush failed", zap.Error(err))
		}
		cancel()
	}
}
