package main

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"time"
)

// ChatPeerSummary represents a conversation peer with recent activity
type ChatPeerSummary struct {
	ConnectionID   int        `json:"connectionId"`
	UserID         int        `json:"userId"`
	UserName       string     `json:"userName"`
	Role           string     `json:"role"`
	AvatarURL      *string    `json:"avatarUrl,omitempty"`
	LastMessageAt  *time.Time `json:"lastMessageAt,omitempty"`
	UnreadMessages int        `json:"unreadMessages"`
	IsOnline       bool       `json:"isOnline,omitempty"`
}

// GET /chats/summary
// Returns every accepted connection of the logged in user and for each peer:
// name, role, avatar, latest message time and unread count.
func chatSummaryHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID, ok := getUserIDFromBearer(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		// CTEs for clarity.
		// 1) accepted = my connections with the peer id resolved
		// 2) latest   = newest message timestamp per connection (NULL if none)
		// 3) unreads  = messages the peer sent me that I haven't read
		// Finally join user details.
		const q = `
WITH accepted AS (
  SELECT c.id AS connection_id,
         CASE WHEN c.mentor_id = $1 THEN c.team_id ELSE c.mentor_id END AS peer_id
  FROM connections c
  WHERE c.status = 'accepted' AND (c.mentor_id = $1 OR c.team_id = $1)
),
latest AS (
  SELECT a.connection_id, MAX(m.created_at) AS last_message_at
  FROM accepted a
  LEFT JOIN messages m ON m.connection_id = a.connection_id
  GROUP BY a.connection_id
),
unreads AS (
  SELECT a.connection_id,
         COALESCE(SUM(CASE WHEN m.is_read = FALSE AND m.sender_id = a.peer_id THEN 1 ELSE 0 END), 0) AS unread_count
  FROM accepted a
  LEFT JOIN messages m ON m.connection_id = a.connection_id
  GROUP BY a.connection_id
)
SELECT
  a.connection_id,
  u.id AS user_id,
  COALESCE(p.display_name, CONCAT('User ', u.id::text)) AS display_name,
  COALESCE(p.role, '') AS role,
  p.avatar_url,
  l.last_message_at,
  COALESCE(uR.unread_count, 0) AS unread_count
FROM accepted a
JOIN users u         ON u.id = a.peer_id
LEFT JOIN profiles p ON p.user_id = u.id
LEFT JOIN latest l   ON l.connection_id = a.connection_id
LEFT JOIN unreads uR ON uR.connection_id = a.connection_id
ORDER BY COALESCE(l.last_message_at, to_timestamp(0)) DESC, u.id ASC
;`

		rows, err := db.Query(q, userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			log.Println("Error querying chat summary:", err)
			return
		}
		defer rows.Close()

		summaries := make([]ChatPeerSummary, 0, 32)
		for rows.Next() {
			var s ChatPeerSummary
			if err := rows.Scan(&s.ConnectionID, &s.UserID, &s.UserName, &s.Role,
				&s.AvatarURL, &s.LastMessageAt, &s.UnreadMessages); err != nil {
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}

			online, err := isOnlineNow(db, s.UserID)
			if err == nil {
				s.IsOnline = online
			}
			summaries = append(summaries, s)
		}
		if err := rows.Err(); err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}

		writeJSON(w, http.StatusOK, summaries)
	}
}

// POST /chats/read?peer_id=123
// For receiving the ack from frontend that the conversation has been read
func chatsMarkReadHandler(db *sql.DB) http.HandlerFunc {
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
		peerStr := r.URL.Query().Get("peer_id")
		peerID, err := strconv.Atoi(peerStr)
		if err != nil || peerID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_target")
			return
		}

		conn, err := loadPairConnection(db, userID, peerID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if conn == nil {
			// No conversation -> nothing to mark
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Mark the messages from peer to you as read
		_, _ = db.Exec(`
			UPDATE messages
			SET is_read = TRUE
			WHERE connection_id = $1 AND sender_id = $2 AND is_read IS FALSE
		`, conn.ID, peerID)

		w.WriteHeader(http.StatusNoContent)
	}
}
