package main

import (
	"database/sql"
	"log"

	_ "github.com/lib/pq" // PostgreSQL driver
)

var db *sql.DB

func initDB(connStr string) {
	if connStr == "" {
		connStr = "user=outmentor password=outmentor dbname=outmentordb sslmode=disable"
		log.Default().Println("Warning: DATABASE_URL not set, using default connection string")
	}

	var err error
	db, err = sql.Open("postgres", connStr)
	if err != nil {
		log.Fatal("Error connecting to the database:", err)
	}
	err = db.Ping()
	if err != nil {
		log.Fatal("Cannot reach the database:", err)
	}
	log.Default().Println("Database connection established successfully")

	if err := ensureSchema(db); err != nil {
		log.Fatal("Error initializing database schema:", err)
	}
}

// ensureSchema creates all tables if they are missing. Safe to run on every
// startup; existing tables are left untouched.
func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS users (
    id            SERIAL PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_active   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS profiles (
    user_id        INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    role           TEXT NOT NULL CHECK (role IN ('mentor', 'team')),
    display_name   TEXT NOT NULL,
    contact_email  TEXT,
    location_state TEXT,
    location_city  TEXT,
    bio            TEXT,
    avatar_url     TEXT,
    cover_url      TEXT,
    external_link  TEXT,
    is_public      BOOLEAN NOT NULL DEFAULT FALSE,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS mentor_details (
    user_id         INTEGER PRIMARY KEY REFERENCES profiles(user_id) ON DELETE CASCADE,
    works_with_ftc  BOOLEAN NOT NULL DEFAULT FALSE,
    works_with_fll  BOOLEAN NOT NULL DEFAULT FALSE,
    knowledge_areas JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS team_details (
    user_id        INTEGER PRIMARY KEY REFERENCES profiles(user_id) ON DELETE CASCADE,
    team_number    TEXT,
    team_type      TEXT NOT NULL CHECK (team_type IN ('FTC', 'FLL')),
    interest_areas JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS followers (
    follower_id  INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    following_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (follower_id, following_id)
);

CREATE TABLE IF NOT EXISTS connections (
    id         SERIAL PRIMARY KEY,
    mentor_id  INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    team_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    status     TEXT NOT NULL DEFAULT 'accepted',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (mentor_id, team_id)
);

CREATE TABLE IF NOT EXISTS messages (
    id            BIGSERIAL PRIMARY KEY,
    connection_id INTEGER NOT NULL REFERENCES connections(id) ON DELETE CASCADE,
    sender_id     INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    body          TEXT NOT NULL,
    is_read       BOOLEAN NOT NULL DEFAULT FALSE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_followers_following ON followers (following_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_messages_connection ON messages (connection_id, created_at DESC);
`)
	return err
}
