package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/wordchain/internal/models"
)

// InsertRoomEventsTx writes a batch of queued room events in one transaction.
func InsertRoomEventsTx(ctx context.Context, tx pgx.Tx, recs []models.RoomEventRecord) error {
	q := `
		INSERT INTO room_events (room_id, session_ref, event, payload, emitted_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5)
	`
	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue(q, rec.RoomID, rec.Session, rec.Event, []byte(rec.Payload), time.UnixMilli(rec.Timestamp))
	}
	br := tx.SendBatch(ctx, batch)
	for i := range recs {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert room event %d (%s): %w", i, recs[i].Event, err)
		}
	}
	return br.Close()
}

// SaveRoomEvents persists a batch using the global pool.
func SaveRoomEvents(ctx context.Context, recs []models.RoomEventRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return InsertRoomEventsTx(ctx, tx, recs)
	})
}
