package main

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// A connection is a single undirected mentor-team edge stored canonically as
// (mentor_id, team_id). Connecting is immediate: the row is born 'accepted',
// there is no pending negotiation between the parties.

func profileRole(db *sql.DB, userID int) (string, error) {
	var role string
	err := db.QueryRow("SELECT role FROM profiles WHERE user_id = $1", userID).Scan(&role)
	return role, err
}

// POST /profiles/{id}/connect
// Valid only across roles: one side must be a mentor, the other a team. The
// mentor_id/team_id columns are resolved from the roles, never from who
// clicked first, so the same pair always maps to the same row. The unique
// (mentor_id, team_id) constraint plus ON CONFLICT DO NOTHING makes a repeat
// call (or a concurrent double-click) land on the existing row instead of
// failing. The response always carries the connection id and the peer's
// summary so the client can proceed to the conversation either way.
func connectHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "profiles" || parts[2] != "connect" {
			http.NotFound(w, r)
			return
		}
		targetID, err := strconv.Atoi(parts[1])
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		me := r.Context().Value(userIDKey).(int)
		if targetID == me {
			writeError(w, http.StatusBadRequest, "invalid_target")
			return
		}

		myRole, err := profileRole(db, me)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			log.Println("connectHandler role lookup error:", err)
			return
		}

		var targetRole string
		var targetPublic bool
		err = db.QueryRow(
			"SELECT role, is_public FROM profiles WHERE user_id = $1",
			targetID,
		).Scan(&targetRole, &targetPublic)
		if err == sql.ErrNoRows {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if !targetPublic {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		if myRole == targetRole {
			// mentor-mentor and team-team pairs never connect
			writeError(w, http.StatusConflict, "invalid_target")
			return
		}

		mentorID, teamID := me, targetID
		if myRole == RoleTeam {
			mentorID, teamID = targetID, me
		}

		type response struct {
			State        string          `json:"state"`
			ConnectionID int             `json:"connection_id"`
			Created      bool            `json:"created"`
			Peer         *ProfileSummary `json:"peer,omitempty"`
		}
		resp := response{State: "accepted"}

		err = withTx(r.Context(), db, func(tx *sql.Tx) error {
			// On conflict the insert is a no-op and RETURNING yields no row;
			// the existing pair is then read back.
			err := tx.QueryRow(`
				INSERT INTO connections (mentor_id, team_id, status)
				VALUES ($1, $2, 'accepted')
				ON CONFLICT (mentor_id, team_id) DO NOTHING
				RETURNING id
			`, mentorID, teamID).Scan(&resp.ConnectionID)
			if err == nil {
				resp.Created = true
				return nil
			}
			if err != sql.ErrNoRows {
				return err
			}
			row, err := loadPairConnection(tx, me, targetID)
			if err != nil {
				return err
			}
			if row == nil {
				return sql.ErrNoRows
			}
			resp.ConnectionID = row.ID
			return nil
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			log.Println("connectHandler tx error:", err)
			return
		}

		if peer, err := fetchProfileSummary(db, targetID); err == nil {
			resp.Peer = &peer
		}

		status := http.StatusOK
		if resp.Created {
			status = http.StatusCreated
		}
		writeJSON(w, status, resp)
	})
}

// GET /connections
// The viewer's connections, newest first, with the peer's summary resolved
// from whichever side of the edge isn't the viewer.
func connectionsHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		rows, err := db.Query(`
			SELECT id,
			       CASE WHEN mentor_id = $1 THEN team_id ELSE mentor_id END AS peer_id,
			       status,
			       created_at
			FROM connections
			WHERE mentor_id = $1 OR team_id = $1
			ORDER BY created_at DESC, id DESC
		`, userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			log.Println("Error fetching connections:", err)
			return
		}
		defer rows.Close()

		type connEntry struct {
			ConnectionID int       `json:"connection_id"`
			Status       string    `json:"status"`
			Since        time.Time `json:"since"`
			peerID       int
		}
		entries := make([]connEntry, 0, 16)
		peerIDs := make([]int, 0, 16)
		for rows.Next() {
			var e connEntry
			if err := rows.Scan(&e.ConnectionID, &e.peerID, &e.Status, &e.Since); err != nil {
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			entries = append(entries, e)
			peerIDs = append(peerIDs, e.peerID)
		}
		if err := rows.Err(); err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}

		summaries, err := loadProfileSummaries(r.Context(), db, peerIDs)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			log.Println("Error loading connection peers:", err)
			return
		}
		byID := make(map[int]ProfileSummary, len(summaries))
		for _, s := range summaries {
			byID[s.ID] = s
		}

		type connResponse struct {
			ConnectionID int            `json:"connection_id"`
			Status       string         `json:"status"`
			Since        time.Time      `json:"since"`
			Peer         ProfileSummary `json:"peer"`
		}
		out := make([]connResponse, 0, len(entries))
		for _, e := range entries {
			peer, ok := byID[e.peerID]
			if !ok {
				continue
			}
			out = append(out, connResponse{
				ConnectionID: e.ConnectionID,
				Status:       e.Status,
				Since:        e.Since,
				Peer:         peer,
			})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"connections": out})
	})
}
