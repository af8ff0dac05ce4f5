package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
)

// DirectoryEntry is what a directory listing shows per profile: the public
// summary plus enough location context to pick someone nearby.
type DirectoryEntry struct {
	ProfileSummary
	LocationState string `json:"location_state,omitempty"`
	LocationCity  string `json:"location_city,omitempty"`
}

// GET /profiles?role=&program=&area=&state=&city=&limit=
// Public directory of mentors and teams. Every filter is optional; filters
// compose with AND. The program filter matches a mentor's capability flags or
// a team's type, whichever side the row is.
func directoryHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}

		q := r.URL.Query()
		role := strings.TrimSpace(q.Get("role"))
		program := strings.TrimSpace(q.Get("program"))
		area := strings.TrimSpace(q.Get("area"))
		state := strings.TrimSpace(q.Get("state"))
		city := strings.TrimSpace(q.Get("city"))

		if role != "" && !validRole(role) {
			writeError(w, http.StatusBadRequest, "invalid_role")
			return
		}
		if program != "" && !validTeamType(program) {
			writeError(w, http.StatusBadRequest, "invalid_program")
			return
		}

		limit := 50
		if raw := q.Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		conds := []string{"p.is_public = TRUE"}
		args := []interface{}{}
		arg := func(v interface{}) string {
			args = append(args, v)
			return fmt.Sprintf("$%d", len(args))
		}

		if role != "" {
			conds = append(conds, "p.role = "+arg(role))
		}
		if program != "" {
			flag := "m.works_with_ftc"
			if program == ProgramFLL {
				flag = "m.works_with_fll"
			}
			conds = append(conds, fmt.Sprintf(
				"((p.role = 'mentor' AND COALESCE(%s, FALSE)) OR (p.role = 'team' AND t.team_type = %s))",
				flag, arg(program),
			))
		}
		if area != "" {
			ph := arg(area)
			conds = append(conds, fmt.Sprintf(`EXISTS (
				SELECT 1 FROM jsonb_array_elements_text(
					COALESCE(m.knowledge_areas, t.interest_areas, '[]'::jsonb)
				) AS label WHERE LOWER(label) = LOWER(%s)
			)`, ph))
		}
		if state != "" {
			conds = append(conds, "LOWER(COALESCE(p.location_state, '')) = LOWER("+arg(state)+")")
		}
		if city != "" {
			conds = append(conds, "LOWER(COALESCE(p.location_city, '')) = LOWER("+arg(city)+")")
		}

		query := fmt.Sprintf(`
			SELECT p.user_id, p.display_name, p.role,
			       COALESCE(p.avatar_url, ''), COALESCE(p.location_state, ''), COALESCE(p.location_city, '')
			FROM profiles p
			LEFT JOIN mentor_details m ON m.user_id = p.user_id
			LEFT JOIN team_details t ON t.user_id = p.user_id
			WHERE %s
			ORDER BY p.created_at DESC, p.user_id DESC
			LIMIT %s
		`, strings.Join(conds, " AND "), arg(limit))

		rows, err := db.Query(query, args...)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			log.Println("Error querying directory:", err)
			return
		}
		defer rows.Close()

		entries := make([]DirectoryEntry, 0, limit)
		for rows.Next() {
			var e DirectoryEntry
			if err := rows.Scan(&e.ID, &e.DisplayName, &e.Role, &e.AvatarURL, &e.LocationState, &e.LocationCity); err != nil {
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			entries = append(entries, e)
		}
		if err := rows.Err(); err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"profiles": entries,
			"count":    len(entries),
		})
	}
}
