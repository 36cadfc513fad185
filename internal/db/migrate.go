package db

import (
	"context"
	"database/sql"
)

const keystoneMigration = `
CREATE TABLE IF NOT EXISTS users (
    id bigserial PRIMARY KEY,
    username text NOT NULL UNIQUE,
    password_hash text NOT NULL,
    is_admin boolean NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS recipients (
    id bigserial PRIMARY KEY,
    name text NOT NULL,
    email text,
    notes text
);

CREATE TABLE IF NOT EXISTS media_items (
    id bigserial PRIMARY KEY,
    title text NOT NULL,
    media_type text NOT NULL,
    filename text NOT NULL,
    cover_filename text,
    created_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS albums (
    id bigserial PRIMARY KEY,
    title text NOT NULL,
    description text,
    cover_filename text,
    created_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS album_media_links (
    album_id bigint NOT NULL REFERENCES albums(id) ON DELETE CASCADE,
    media_item_id bigint NOT NULL REFERENCES media_items(id) ON DELETE CASCADE,
    PRIMARY KEY (album_id, media_item_id)
);

CREATE TABLE IF NOT EXISTS assignments (
    id bigserial PRIMARY KEY,
    recipient_id bigint NOT NULL REFERENCES recipients(id) ON DELETE CASCADE,
    album_id bigint NOT NULL REFERENCES albums(id) ON DELETE CASCADE,
    token text NOT NULL UNIQUE,
    created_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS assignments_token_idx
ON assignments (token);

CREATE TABLE IF NOT EXISTS statistic_events (
    id bigserial PRIMARY KEY,
    assignment_id bigint NOT NULL REFERENCES assignments(id) ON DELETE CASCADE,
    event_type text NOT NULL,
    media_item_id bigint REFERENCES media_items(id) ON DELETE SET NULL,
    details text,
    created_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS statistic_events_assignment_idx
ON statistic_events (assignment_id, event_type, created_at);
`

func RunKeystoneMigration(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, keystoneMigration)
	return err
}
