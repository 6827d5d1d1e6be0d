package clickhouse

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/pkg/logger"
	"github.com/selivandex/sentiment-fusion/pkg/models"
)

// BatchWriter buffers records and writes them in batches
type BatchWriter[T any] struct {
	buffer      []T
	bufferMu    sync.Mutex
	maxBatch    int
	flushTicker *time.Ticker
	flushFunc   func(context.Context, []T) error
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewBatchWriter creates new batch writer
func NewBatchWriter[T any](maxBatch int, maxWait time.Duration, flushFunc func(context.Context, []T) error) *BatchWriter[T] {
	if maxBatch <= 0 {
		maxBatch = 500
	}
	if maxWait <= 0 {
		maxWait = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	bw := &BatchWriter[T]{
		buffer:      make([]T, 0, maxBatch),
		maxBatch:    maxBatch,
		flushTicker: time.NewTicker(maxWait),
		flushFunc:   flushFunc,
		ctx:         ctx,
		cancel:      cancel,
	}

	bw.wg.Add(1)
	go bw.autoFlush()

	return bw
}

// Add adds records to buffer
func (bw *BatchWriter[T]) Add(records ...T) {
	bw.bufferMu.Lock()
	bw.buffer = append(bw.buffer, records...)
	shouldFlush := len(bw.buffer) >= bw.maxBatch
	bw.bufferMu.Unlock()

	if shouldFlush {
		bw.flush(bw.ctx)
	}
}

func (bw *BatchWriter[T]) autoFlush() {
	defer bw.wg.Done()

	for {
		select {
		case <-bw.flushTicker.C:
			bw.flush(bw.ctx)
		case <-bw.ctx.Done():
			// final flush outlives the cancelled writer context
			bw.flush(context.Background())
			return
		}
	}
}

func (bw *BatchWriter[T]) flush(parent context.Context) {
	bw.bufferMu.Lock()
	if len(bw.buffer) == 0 {
		bw.bufferMu.Unlock()
		return
	}
	toWrite := make([]T, len(bw.buffer))
	copy(toWrite, bw.buffer)
	bw.buffer = bw.buffer[:0]
	bw.bufferMu.Unlock()

	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()

	if err := bw.flushFunc(ctx, toWrite); err != nil {
		logger.Error("failed to flush batch to ClickHouse",
			zap.Int("records", len(toWrite)),
			zap.Error(err),
		)
		return
	}

	logger.Debug("flushed batch to ClickHouse", zap.Int("records", len(toWrite)))
}

// Close stops the writer and flushes remaining data
func (bw *BatchWriter[T]) Close() error {
	bw.flushTicker.Stop()
	bw.cancel()
	bw.wg.Wait()
	return nil
}

// ArchivedBar is a price bar tagged with its instrument
type ArchivedBar struct {
	Code string
	Bar  models.PriceBar
}

// BarArchiver writes fetched daily bars to ClickHouse in the background
type BarArchiver struct {
	*BatchWriter[ArchivedBar]
}

// BarStore is the archive side used for reads
type BarStore interface {
	SaveDailyBars(ctx context.Context, code string, bars []models.PriceBar) error
	GetDailyBars(ctx context.Context, code string, days int) ([]models.PriceBar, error)
}

// NewBarArchiver creates batch writer for daily bars
func NewBarArchiver(repo BarStore, maxBatch int, maxWait time.Duration) *BarArchiver {
	flushFunc := func(ctx context.Context, records []ArchivedBar) error {
		grouped := make(map[string][]models.PriceBar)
		for _, record := range records {
			grouped[record.Code] = append(grouped[record.Code], record.Bar)
		}
		for code, bars := range grouped {
			if err := repo.SaveDailyBars(ctx, code, bars); err != nil {
				return err
			}
		}
		return nil
	}

	return &BarArchiver{BatchWriter: NewBatchWriter(maxBatch, maxWait, flushFunc)}
}

// Archive queues bars for an instrument
func (a *BarArchiver) Archive(code string, bars []models.PriceBar) {
	records := make([]ArchivedBar, len(bars))
	for i, bar := range bars {
		records[i] = ArchivedBar{Code: code, Bar: bar}
	}
	a.Add(records...)
}
