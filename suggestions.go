package main

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
)

// GET /suggestions
// Ranked opposite-role pairing candidates for the viewer.
func suggestionsHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		results, err := getSuggestionsWithScores(db, userID)
		if errors.Is(err, errIncompleteProfile) || err == sql.ErrNoRows {
			writeError(w, http.StatusForbidden, "incomplete_profile")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "suggestion_error")
			log.Println("Error computing suggestions:", err)
			return
		}

		ids := make([]int, 0, len(results))
		for _, res := range results {
			ids = append(ids, res.UserID)
		}
		summaries, err := loadProfileSummaries(r.Context(), db, ids)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		byID := make(map[int]ProfileSummary, len(summaries))
		for _, s := range summaries {
			byID[s.ID] = s
		}

		type suggestion struct {
			Peer        ProfileSummary `json:"peer"`
			Score       int            `json:"score"`
			SharedAreas []string       `json:"shared_areas,omitempty"`
		}
		out := make([]suggestion, 0, len(results))
		for _, res := range results {
			peer, ok := byID[res.UserID]
			if !ok {
				continue
			}
			out = append(out, suggestion{Peer: peer, Score: res.Score, SharedAreas: res.SharedAreas})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"suggestions": out})
	})
}
