package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
)

// Dispatcher for /profiles/{id}[/followers|/follow|/connect]
func profilesDispatcher(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.Trim(r.URL.Path, "/")
		parts := strings.Split(path, "/")
		if len(parts) < 2 || parts[0] != "profiles" {
			http.NotFound(w, r)
			return
		}
		if len(parts) == 2 {
			profileHandler(db).ServeHTTP(w, r)
			return
		}
		if len(parts) == 3 {
			switch parts[2] {
			case "followers":
				followersHandler(db).ServeHTTP(w, r)
			case "follow":
				followToggleHandler(db).ServeHTTP(w, r)
			case "connect":
				connectHandler(db).ServeHTTP(w, r)
			default:
				http.NotFound(w, r)
			}
			return
		}
		http.NotFound(w, r)
	}
}

// loadProfile fetches one profile with its role-specific details in a single
// query. The role decides which detail struct gets populated; a profile whose
// detail row was never created keeps a nil section, which is how the rest of
// the code tells an incomplete profile from a completed one.
func loadProfile(db *sql.DB, userID int) (*Profile, error) {
	var p Profile
	var contactEmail, locationState, locationCity, bio, avatarURL, coverURL, externalLink sql.NullString
	var worksWithFTC, worksWithFLL sql.NullBool
	var knowledgeAreas, interestAreas json.RawMessage
	var teamNumber, teamType sql.NullString

	err := db.QueryRow(`
		SELECT p.user_id, p.role, p.display_name, p.contact_email, p.location_state,
		       p.location_city, p.bio, p.avatar_url, p.cover_url, p.external_link,
		       p.is_public, p.created_at,
		       md.works_with_ftc, md.works_with_fll, md.knowledge_areas,
		       td.team_number, td.team_type, td.interest_areas
		FROM profiles p
		LEFT JOIN mentor_details md ON md.user_id = p.user_id
		LEFT JOIN team_details td ON td.user_id = p.user_id
		WHERE p.user_id = $1
	`, userID).Scan(
		&p.UserID, &p.Role, &p.DisplayName, &contactEmail, &locationState,
		&locationCity, &bio, &avatarURL, &coverURL, &externalLink,
		&p.IsPublic, &p.CreatedAt,
		&worksWithFTC, &worksWithFLL, &knowledgeAreas,
		&teamNumber, &teamType, &interestAreas,
	)
	if err != nil {
		return nil, err
	}

	p.ContactEmail = contactEmail.String
	p.LocationState = locationState.String
	p.LocationCity = locationCity.String
	p.Bio = bio.String
	p.AvatarURL = avatarURL.String
	p.CoverURL = coverURL.String
	p.ExternalLink = externalLink.String

	// The detail columns are NOT NULL in their tables, so a NULL here means
	// the LEFT JOIN found no row at all.
	switch p.Role {
	case RoleMentor:
		if worksWithFTC.Valid {
			p.Mentor = &MentorDetails{
				WorksWithFTC:   worksWithFTC.Bool,
				WorksWithFLL:   worksWithFLL.Bool,
				KnowledgeAreas: labelList(knowledgeAreas),
			}
		}
	case RoleTeam:
		if teamType.Valid {
			p.Team = &TeamDetails{
				TeamNumber:    teamNumber.String,
				TeamType:      teamType.String,
				InterestAreas: labelList(interestAreas),
			}
		}
	}
	return &p, nil
}

// GET /profiles/{id}
// Public profiles are visible to everyone, private ones only to their owner.
func profileHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 2 || parts[0] != "profiles" {
			http.NotFound(w, r)
			return
		}
		targetID, err := strconv.Atoi(parts[1])
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		// Viewer is optional here; a missing or bad token just means an
		// anonymous view.
		viewerID, _ := getUserIDFromRequest(r)

		profile, err := loadProfile(db, targetID)
		if err == sql.ErrNoRows {
			writeError(w, http.StatusNotFound, "not_found")
			return
		} else if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			log.Println("Error loading profile:", err)
			return
		}

		// A private profile looks exactly like a missing one to other viewers
		if !profile.IsPublic && viewerID != targetID {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		online, err := isOnlineNow(db, targetID)
		if err != nil {
			// Not critical. If fails, assume that the user is offline
			online = false
		}
		profile.IsOnline = online

		writeJSON(w, http.StatusOK, profile)
	}
}

func meHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(userIDKey).(int)
		summary, err := fetchProfileSummary(db, userID)
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeJSON(w, http.StatusOK, summary)
	})
}

// GET /me/profile returns the owner's own profile regardless of visibility.
// PUT/PATCH /me/profile updates it, including the role-specific details.
func meProfileHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			viewMeProfile(db, w, r)
		case http.MethodPut, http.MethodPatch:
			updateMeProfile(db, w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
		}
	})
}

func viewMeProfile(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey).(int)

	profile, err := loadProfile(db, userID)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "not_found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		log.Println("Error loading own profile:", err)
		return
	}
	profile.IsOnline = true

	writeJSON(w, http.StatusOK, profile)
}

func updateMeProfile(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	type ProfileUpdateRequest struct {
		DisplayName   string         `json:"display_name"`
		ContactEmail  string         `json:"contact_email"`
		LocationState string         `json:"location_state"`
		LocationCity  string         `json:"location_city"`
		Bio           string         `json:"bio"`
		AvatarURL     string         `json:"avatar_url"`
		CoverURL      string         `json:"cover_url"`
		ExternalLink  string         `json:"external_link"`
		IsPublic      *bool          `json:"is_public"`
		Mentor        *MentorDetails `json:"mentor"`
		Team          *TeamDetails   `json:"team"`
	}

	var req ProfileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	userID := r.Context().Value(userIDKey).(int)

	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	// Role is fixed at registration; reject a detail section for the other one
	var role string
	err := db.QueryRow("SELECT role FROM profiles WHERE user_id = $1", userID).Scan(&role)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "not_found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	switch role {
	case RoleMentor:
		if req.Team != nil {
			writeError(w, http.StatusBadRequest, "invalid_details")
			return
		}
	case RoleTeam:
		if req.Mentor != nil {
			writeError(w, http.StatusBadRequest, "invalid_details")
			return
		}
		if req.Team != nil && !validTeamType(req.Team.TeamType) {
			writeError(w, http.StatusBadRequest, "invalid_team_type")
			return
		}
		if req.Team == nil {
			// The team type must be stated at least once
			var exists bool
			if err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM team_details WHERE user_id = $1)", userID).Scan(&exists); err != nil {
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			if !exists {
				writeError(w, http.StatusBadRequest, "missing_fields")
				return
			}
		}
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	err = withTx(r.Context(), db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
            UPDATE profiles SET
                display_name = $2,
                contact_email = $3,
                location_state = $4,
                location_city = $5,
                bio = $6,
                avatar_url = $7,
                cover_url = $8,
                external_link = $9,
                is_public = $10
            WHERE user_id = $1
        `, userID, req.DisplayName, req.ContactEmail, req.LocationState, req.LocationCity,
			req.Bio, req.AvatarURL, req.CoverURL, req.ExternalLink, isPublic)
		if err != nil {
			return err
		}

		switch role {
		case RoleMentor:
			if req.Mentor == nil {
				_, err = tx.Exec(`INSERT INTO mentor_details (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
				return err
			}
			areas, _ := json.Marshal(normalizeLabels(req.Mentor.KnowledgeAreas))
			_, err = tx.Exec(`
                INSERT INTO mentor_details (user_id, works_with_ftc, works_with_fll, knowledge_areas)
                VALUES ($1, $2, $3, $4)
                ON CONFLICT (user_id) DO UPDATE SET
                    works_with_ftc = EXCLUDED.works_with_ftc,
                    works_with_fll = EXCLUDED.works_with_fll,
                    knowledge_areas = EXCLUDED.knowledge_areas
            `, userID, req.Mentor.WorksWithFTC, req.Mentor.WorksWithFLL, areas)
			return err

		case RoleTeam:
			if req.Team == nil {
				return nil
			}
			areas, _ := json.Marshal(normalizeLabels(req.Team.InterestAreas))
			_, err = tx.Exec(`
                INSERT INTO team_details (user_id, team_number, team_type, interest_areas)
                VALUES ($1, $2, $3, $4)
                ON CONFLICT (user_id) DO UPDATE SET
                    team_number = EXCLUDED.team_number,
                    team_type = EXCLUDED.team_type,
                    interest_areas = EXCLUDED.interest_areas
            `, userID, strings.TrimSpace(req.Team.TeamNumber), req.Team.TeamType, areas)
			return err
		}
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "profile_save_error")
		log.Println("Error saving profile:", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
