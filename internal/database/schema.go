package database

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           UUID PRIMARY KEY,
	username     TEXT NOT NULL UNIQUE,
	is_ephemeral BOOLEAN NOT NULL DEFAULT FALSE,
	games_played INTEGER NOT NULL DEFAULT 0,
	games_won    INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS room_events (
	id          BIGSERIAL PRIMARY KEY,
	room_id     UUID NOT NULL,
	session_ref TEXT,
	event       TEXT NOT NULL,
	payload     JSONB NOT NULL,
	emitted_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS room_events_room_idx ON room_events (room_id, emitted_at);
`

// Migrate creates the tables this service needs if they are missing.
func Migrate(ctx context.Context) error {
	if _, err := DB.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
