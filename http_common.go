package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// --- Response helpers ---
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// labelList decodes a jsonb string array column. Anything unreadable
// becomes an empty list so responses never carry null where the client
// expects an array.
func labelList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var v []string
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return []string{}
	}
	return v
}

func fetchProfileSummary(db *sql.DB, userID int) (ProfileSummary, error) {
	var s ProfileSummary
	err := db.QueryRow(`
        SELECT
            u.id,
            COALESCE(p.display_name, 'User ' || u.id::text) AS display_name,
            COALESCE(p.role, '') AS role,
            COALESCE(p.avatar_url, '') AS avatar_url
        FROM users u
        LEFT JOIN profiles p ON p.user_id = u.id
        WHERE u.id = $1
    `, userID).Scan(&s.ID, &s.DisplayName, &s.Role, &s.AvatarURL)
	return s, err
}

// fetchProfileSummaries loads summaries for a set of user ids in one query.
// The result map only contains ids that actually exist.
func fetchProfileSummaries(db *sql.DB, userIDs []int) (map[int]ProfileSummary, error) {
	out := make(map[int]ProfileSummary, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(userIDs))
	args := make([]interface{}, len(userIDs))
	for i, id := range userIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`
        SELECT
            u.id,
            COALESCE(p.display_name, 'User ' || u.id::text) AS display_name,
            COALESCE(p.role, '') AS role,
            COALESCE(p.avatar_url, '') AS avatar_url
        FROM users u
        LEFT JOIN profiles p ON p.user_id = u.id
        WHERE u.id IN (%s)
    `, joinPlaceholders(placeholders))

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s ProfileSummary
		if err := rows.Scan(&s.ID, &s.DisplayName, &s.Role, &s.AvatarURL); err != nil {
			return nil, err
		}
		out[s.ID] = s
	}
	return out, rows.Err()
}

// withTx wraps a function in a database transaction.
// - Ensures COMMIT on success, ROLLBACK on errors or panics.
// - Keeps handler bodies tiny and all state changes atomic.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}

	defer func() {
		// If the callback panics, make sure to rollback before re-panicking
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ConnectionRow represents a mentor-team connection
type ConnectionRow struct {
	ID        int
	MentorID  int
	TeamID    int
	Status    string
	CreatedAt time.Time
}

type rowQuerier interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}

// loadPairConnection returns the connection row between two users no matter
// which of them holds the mentor role. Returns (nil, nil) if the pair has
// no connection yet. Works on *sql.DB and *sql.Tx alike.
func loadPairConnection(q rowQuerier, a, b int) (*ConnectionRow, error) {
	row := q.QueryRow(`
		SELECT id, mentor_id, team_id, status, created_at
		FROM connections
		WHERE (mentor_id = $1 AND team_id = $2)
		   OR (mentor_id = $2 AND team_id = $1)
		LIMIT 1
	`, a, b)

	var c ConnectionRow
	if err := row.Scan(&c.ID, &c.MentorID, &c.TeamID, &c.Status, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}
