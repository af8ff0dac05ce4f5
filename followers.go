package main

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"strings"
)

// FollowState is the authoritative follow relation between a viewer and a
// profile, returned after every follow mutation so the client never has to
// guess at the outcome.
type FollowState struct {
	Following bool `json:"following"`
	Count     int  `json:"count"`
}

// followerIDs returns who follows the given user, newest edge first.
func followerIDs(db *sql.DB, userID int) ([]int, error) {
	rows, err := db.Query(`
		SELECT follower_id
		FROM followers
		WHERE following_id = $1
		ORDER BY created_at DESC, follower_id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int, 0, 32)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func isFollowing(db *sql.DB, followerID, followingID int) (bool, error) {
	var exists bool
	err := db.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM followers WHERE follower_id = $1 AND following_id = $2)",
		followerID, followingID,
	).Scan(&exists)
	return exists, err
}

func followerCount(db *sql.DB, userID int) (int, error) {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM followers WHERE following_id = $1", userID).Scan(&n)
	return n, err
}

// targetProfileVisible reports whether {id} has a profile the viewer may act
// on: public, or owned by the viewer.
func targetProfileVisible(db *sql.DB, targetID, viewerID int) (bool, error) {
	var isPublic bool
	err := db.QueryRow("SELECT is_public FROM profiles WHERE user_id = $1", targetID).Scan(&isPublic)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return isPublic || targetID == viewerID, nil
}

// GET /profiles/{id}/followers
// Returns the follower summaries, the follower count derived from the same
// fetch, and (for an authenticated viewer looking at someone else) whether
// the viewer follows the target.
func followersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "profiles" || parts[2] != "followers" {
			http.NotFound(w, r)
			return
		}
		targetID, err := strconv.Atoi(parts[1])
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		viewerID, authed := getUserIDFromRequest(r)

		visible, err := targetProfileVisible(db, targetID, viewerID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if !visible {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		ids, err := followerIDs(db, targetID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			log.Println("Error fetching followers:", err)
			return
		}

		summaries, err := loadProfileSummaries(r.Context(), db, ids)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			log.Println("Error loading follower summaries:", err)
			return
		}

		// List and count come from the same edge fetch, so they can't drift
		// apart within one response.
		resp := map[string]interface{}{
			"followers": summaries,
			"count":     len(ids),
		}
		if authed && viewerID != targetID {
			following, err := isFollowing(db, viewerID, targetID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			resp["is_following"] = following
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// POST /profiles/{id}/follow creates the edge, DELETE removes it. Both are
// idempotent: the composite primary key makes a duplicate insert a no-op and
// deleting a missing edge is still success. The response carries the
// post-mutation state re-read from the store.
func followToggleHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "profiles" || parts[2] != "follow" {
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

		visible, err := targetProfileVisible(db, targetID, me)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if !visible {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		if r.Method == http.MethodPost {
			_, err = db.Exec(`
				INSERT INTO followers (follower_id, following_id)
				VALUES ($1, $2)
				ON CONFLICT (follower_id, following_id) DO NOTHING
			`, me, targetID)
		} else {
			_, err = db.Exec(
				"DELETE FROM followers WHERE follower_id = $1 AND following_id = $2",
				me, targetID,
			)
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			log.Println("Error updating follow edge:", err)
			return
		}

		state, err := reloadFollowState(db, me, targetID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		writeJSON(w, http.StatusOK, state)
	})
}

func reloadFollowState(db *sql.DB, viewerID, targetID int) (FollowState, error) {
	following, err := isFollowing(db, viewerID, targetID)
	if err != nil {
		return FollowState{}, err
	}
	count, err := followerCount(db, targetID)
	if err != nil {
		return FollowState{}, err
	}
	return FollowState{Following: following, Count: count}, nil
}
