package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordchain/internal/game"
	"github.com/jason-s-yu/wordchain/internal/models"
	"github.com/sirupsen/logrus"
)

// EventRecorder is the sink RecordingNotifier writes to.
type EventRecorder interface {
	Record(ctx context.Context, rec models.RoomEventRecord) error
}

// RecordingNotifier forwards to an inner notifier and queues a history record
// for every event. Recording happens on its own goroutine and never affects
// delivery.
type RecordingNotifier struct {
	inner    game.Notifier
	recorder EventRecorder
	logger   *logrus.Logger
	timeout  time.Duration
}

func NewRecordingNotifier(inner game.Notifier, recorder EventRecorder, logger *logrus.Logger) *RecordingNotifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RecordingNotifier{inner: inner, recorder: recorder, logger: logger, timeout: 2 * time.Second}
}

func (n *RecordingNotifier) NotifyPlayer(roomID uuid.UUID, session game.SessionRef, ev game.Event) error {
	err := n.inner.NotifyPlayer(roomID, session, ev)
	n.record(roomID, string(session), ev)
	return err
}

func (n *RecordingNotifier) NotifyRoom(roomID uuid.UUID, ev game.Event) error {
	err := n.inner.NotifyRoom(roomID, ev)
	n.record(roomID, "", ev)
	return err
}

func (n *RecordingNotifier) record(roomID uuid.UUID, session string, ev game.Event) {
	if n.recorder == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.WithError(err).WithField("event", ev.Name()).Warn("Could not encode event for history")
		return
	}
	rec := models.RoomEventRecord{
		RoomID:    roomID,
		Session:   session,
		Event:     string(ev.Name()),
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.recorder.Record(ctx, rec); err != nil {
			n.logger.WithError(err).WithField("event", rec.Event).Debug("Room event not recorded")
		}
	}()
}
