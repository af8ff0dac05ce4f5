package main

import (
	"database/sql"
	"net/http"
)

// POST /me/ping keeps the viewer's presence fresh between authenticated
// requests; the chat UI polls it while a conversation is open.
func mePingHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID, ok := getUserIDFromBearer(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		_, _ = db.Exec(`UPDATE users SET last_active = NOW() WHERE id = $1`, userID)
		w.WriteHeader(http.StatusNoContent)
	}
}

// A user counts as online for 90 seconds after their last authenticated
// request or ping.
func isOnlineNow(db *sql.DB, userID int) (bool, error) {
	var online bool
	err := db.QueryRow(`
		SELECT COALESCE(last_active > NOW() - INTERVAL '90 seconds', FALSE) AS online
		FROM users
		WHERE id = $1
	`, userID).Scan(&online)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return online, err
}
