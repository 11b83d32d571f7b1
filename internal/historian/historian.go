// internal/historian/historian.go
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/wordchain/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Sink persists a batch of records.
type Sink func(ctx context.Context, recs []models.RoomEventRecord) error

// Service drains the room event queue and writes records in batches, either
// when a batch fills or on every flush tick.
type Service struct {
	rdb        *redis.Client
	queue      string
	batchSize  int
	flushDelay time.Duration
	popTimeout time.Duration
	sink       Sink
	logger     *logrus.Logger

	batchMu sync.Mutex
	batch   []models.RoomEventRecord
}

func New(rdb *redis.Client, queue string, batchSize int, flushDelay time.Duration, sink Sink, logger *logrus.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 20
	}
	if flushDelay <= 0 {
		flushDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		rdb:        rdb,
		queue:      queue,
		batchSize:  batchSize,
		flushDelay: flushDelay,
		popTimeout: 3 * time.Second,
		sink:       sink,
		logger:     logger,
		batch:      make([]models.RoomEventRecord, 0, batchSize),
	}
}

// Run blocks until ctx ends, then flushes whatever is buffered.
func (s *Service) Run(ctx context.Context) {
	s.logger.WithField("queue", s.queue).Info("Historian started")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.flushDelay)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Flush(ctx)
			}
		}
	}()

	for ctx.Err() == nil {
		res, err := s.rdb.BLPop(ctx, s.popTimeout, s.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			s.logger.WithError(err).Error("BLPop failed")
			time.Sleep(time.Second)
			continue
		}
		// res[0] is the list name, res[1] the payload.
		if len(res) < 2 {
			continue
		}
		s.Ingest(ctx, res[1])
	}

	wg.Wait()
	// ctx is done; give the final flush its own deadline.
	final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Flush(final)
	s.logger.Info("Historian stopped")
}

// Ingest decodes one queued payload and buffers it, flushing if the batch is full.
func (s *Service) Ingest(ctx context.Context, payload string) {
	var rec models.RoomEventRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		s.logger.WithError(err).Warn("Invalid room event record")
		return
	}

	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.batchSize
	s.batchMu.Unlock()

	if full {
		s.Flush(ctx)
	}
}

// Flush writes the buffered batch. A failed batch is logged and dropped.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	out := s.batch
	s.batch = make([]models.RoomEventRecord, 0, s.batchSize)
	s.batchMu.Unlock()

	if err := s.sink(ctx, out); err != nil {
		s.logger.WithError(err).WithField("records", len(out)).Error("Failed to flush room events")
		return
	}
	s.logger.WithField("records", len(out)).Debug("Flushed room events")
}

// Pending reports how many records are buffered.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}
