// internal/historian/historian_test.go
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordchain/internal/cache"
	"github.com/jason-s-yu/wordchain/internal/config"
	"github.com/jason-s-yu/wordchain/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSink struct {
	mu      sync.Mutex
	batches [][]models.RoomEventRecord
	err     error
}

func (m *memSink) write(_ context.Context, recs []models.RoomEventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, recs)
	return m.err
}

func (m *memSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func payload(t *testing.T, event string) string {
	t.Helper()
	data, err := json.Marshal(models.RoomEventRecord{RoomID: uuid.New(), Event: event, Payload: []byte(`{}`), Timestamp: time.Now().UnixMilli()})
	require.NoError(t, err)
	return string(data)
}

func TestIngestFlushesFullBatch(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sink := &memSink{}
	s := New(nil, "q", 2, time.Minute, sink.write, logger)
	ctx := context.Background()

	s.Ingest(ctx, payload(t, "roomCreated"))
	assert.Equal(t, 1, s.Pending())
	assert.Equal(t, 0, sink.count())

	s.Ingest(ctx, payload(t, "playerJoined"))
	assert.Equal(t, 0, s.Pending())
	require.Len(t, sink.batches, 1)
	assert.Equal(t, "roomCreated", sink.batches[0][0].Event)
	assert.Equal(t, "playerJoined", sink.batches[0][1].Event)
}

func TestIngestSkipsGarbage(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := New(nil, "q", 2, time.Minute, (&memSink{}).write, logger)
	s.Ingest(context.Background(), "not json")
	assert.Equal(t, 0, s.Pending())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Invalid room event record", hook.LastEntry().Message)
}

func TestFailedFlushIsDropped(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sink := &memSink{err: errors.New("db down")}
	s := New(nil, "q", 10, time.Minute, sink.write, logger)
	s.Ingest(context.Background(), payload(t, "gameEnded"))
	s.Flush(context.Background())
	assert.Equal(t, 0, s.Pending())
	s.Flush(context.Background())
	assert.Len(t, sink.batches, 1)
}

func TestRunDrainsRedisQueue(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := cache.Connect(ctx, cfg.Redis)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	defer rdb.Close()

	queue := "wordchain_historian_test_" + uuid.NewString()[:8]
	rec := cache.NewRecorder(rdb, queue)
	for i := 0; i < 3; i++ {
		require.NoError(t, rec.Record(ctx, models.RoomEventRecord{RoomID: uuid.New(), Event: "wordPlayed", Payload: []byte(`{}`)}))
	}

	logger, _ := test.NewNullLogger()
	sink := &memSink{}
	s := New(rdb, queue, 10, 20*time.Millisecond, sink.write, logger)
	s.popTimeout = 100 * time.Millisecond

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return sink.count() == 3 }, 3*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}
