package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// ============================================================================
// PROFILE TEST SUITE
// ============================================================================

func TestProfileSuite(t *testing.T) {
	t.Run("OwnProfile", func(t *testing.T) {
		testOwnProfile(t)
	})

	t.Run("ProfileUpdate", func(t *testing.T) {
		testProfileUpdate(t)
	})

	t.Run("PublicProfileView", func(t *testing.T) {
		testPublicProfileView(t)
	})

	t.Run("LabelNormalization", func(t *testing.T) {
		testLabelNormalization(t)
	})
}

func getOwnProfile(t *testing.T, user TestUser) Profile {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/me/profile", nil)
	req.Header.Set("Authorization", "Bearer "+user.Token)
	w := httptest.NewRecorder()

	meProfileHandler(db).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("failed to fetch own profile: status %d", w.Code)
	}

	var p Profile
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatalf("failed to decode profile: %v", err)
	}
	return p
}

func testOwnProfile(t *testing.T) {
	mentorEmail := "own_profile_mentor@example.com"
	teamEmail := "own_profile_team@example.com"
	freshEmail := "own_profile_fresh@example.com"
	defer cleanupTestData(mentorEmail, teamEmail, freshEmail)

	mentor := createTestMentor(t, mentorEmail)
	team := createTestTeam(t, teamEmail)
	fresh := createTestUser(t, freshEmail, "password123", RoleMentor)

	t.Run("Mentor sees mentor section", func(t *testing.T) {
		p := getOwnProfile(t, mentor)

		if p.Role != RoleMentor {
			t.Errorf("expected role %q, got %q", RoleMentor, p.Role)
		}
		if p.Mentor == nil {
			t.Fatal("expected mentor details in own profile")
		}
		if p.Team != nil {
			t.Error("mentor profile must not carry team details")
		}
		if !p.Mentor.WorksWithFTC {
			t.Error("expected works_with_ftc to be true")
		}
		if len(p.Mentor.KnowledgeAreas) != 2 {
			t.Errorf("expected 2 knowledge areas, got %d", len(p.Mentor.KnowledgeAreas))
		}
	})

	t.Run("Team sees team section", func(t *testing.T) {
		p := getOwnProfile(t, team)

		if p.Role != RoleTeam {
			t.Errorf("expected role %q, got %q", RoleTeam, p.Role)
		}
		if p.Team == nil {
			t.Fatal("expected team details in own profile")
		}
		if p.Mentor != nil {
			t.Error("team profile must not carry mentor details")
		}
		if p.Team.TeamType != ProgramFTC {
			t.Errorf("expected team type %q, got %q", ProgramFTC, p.Team.TeamType)
		}
	})

	t.Run("Fresh registration has no detail section yet", func(t *testing.T) {
		p := getOwnProfile(t, fresh)

		if p.Role != RoleMentor {
			t.Errorf("expected role %q, got %q", RoleMentor, p.Role)
		}
		if p.Mentor != nil {
			t.Error("expected no mentor details before the profile is completed")
		}
		if p.IsPublic {
			t.Error("expected a fresh profile to be private")
		}
	})

	t.Run("Me summary endpoint", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+mentor.Token)
		w := httptest.NewRecorder()

		meHandler(db).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}

		var s ProfileSummary
		json.NewDecoder(w.Body).Decode(&s)
		if s.ID != mentor.ID {
			t.Errorf("expected id %d, got %d", mentor.ID, s.ID)
		}
		if s.Role != RoleMentor {
			t.Errorf("expected role %q, got %q", RoleMentor, s.Role)
		}
	})

	t.Run("Unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me/profile", nil)
		w := httptest.NewRecorder()

		meProfileHandler(db).ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", w.Code)
		}
	})
}

func testProfileUpdate(t *testing.T) {
	mentorEmail := "update_mentor@example.com"
	teamEmail := "update_team@example.com"
	defer cleanupTestData(mentorEmail, teamEmail)

	mentor := createTestUser(t, mentorEmail, "password123", RoleMentor)
	team := createTestUser(t, teamEmail, "password123", RoleTeam)

	sendUpdate := func(t *testing.T, user TestUser, body []byte) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(http.MethodPut, "/me/profile", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+user.Token)
		w := httptest.NewRecorder()
		meProfileHandler(db).ServeHTTP(w, req)
		return w
	}

	t.Run("Team section rejected for mentor", func(t *testing.T) {
		body, _ := json.Marshal(TestProfile{
			DisplayName: "Confused Mentor",
			Team:        &TeamDetails{TeamNumber: "1", TeamType: ProgramFTC},
		})
		w := sendUpdate(t, mentor, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})

	t.Run("Mentor section rejected for team", func(t *testing.T) {
		body, _ := json.Marshal(TestProfile{
			DisplayName: "Confused Team",
			Mentor:      &MentorDetails{WorksWithFTC: true},
		})
		w := sendUpdate(t, team, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})

	t.Run("Team update requires team type on first save", func(t *testing.T) {
		body, _ := json.Marshal(TestProfile{DisplayName: "No Type Team"})
		w := sendUpdate(t, team, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})

	t.Run("Invalid team type rejected", func(t *testing.T) {
		body, _ := json.Marshal(TestProfile{
			DisplayName: "Bad Type Team",
			Team:        &TeamDetails{TeamNumber: "77", TeamType: "FRC"},
		})
		w := sendUpdate(t, team, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})

	t.Run("Empty display name rejected", func(t *testing.T) {
		body, _ := json.Marshal(TestProfile{DisplayName: "   "})
		w := sendUpdate(t, mentor, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})

	t.Run("Invalid JSON rejected", func(t *testing.T) {
		w := sendUpdate(t, mentor, []byte(`{not valid json`))
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})

	t.Run("Wrong method rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/me/profile", nil)
		req.Header.Set("Authorization", "Bearer "+mentor.Token)
		w := httptest.NewRecorder()
		meProfileHandler(db).ServeHTTP(w, req)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status 405, got %d", w.Code)
		}
	})

	t.Run("Valid mentor update persists", func(t *testing.T) {
		body, _ := json.Marshal(TestProfile{
			DisplayName:   "Updated Mentor",
			LocationState: "MG",
			LocationCity:  "Belo Horizonte",
			Bio:           "Ten seasons of FTC",
			IsPublic:      true,
			Mentor: &MentorDetails{
				WorksWithFTC:   true,
				WorksWithFLL:   false,
				KnowledgeAreas: []string{"vision", "odometry"},
			},
		})
		w := sendUpdate(t, mentor, body)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		p := getOwnProfile(t, mentor)
		if p.DisplayName != "Updated Mentor" {
			t.Errorf("expected display name to be updated, got %q", p.DisplayName)
		}
		if p.LocationState != "MG" || p.LocationCity != "Belo Horizonte" {
			t.Errorf("expected location to be updated, got %q/%q", p.LocationState, p.LocationCity)
		}
		if !p.IsPublic {
			t.Error("expected profile to be public after update")
		}
		if p.Mentor == nil || p.Mentor.WorksWithFLL {
			t.Error("expected mentor details with works_with_fll false")
		}
	})

	t.Run("Valid team update persists", func(t *testing.T) {
		body, _ := json.Marshal(TestProfile{
			DisplayName: "Updated Team",
			IsPublic:    true,
			Team: &TeamDetails{
				TeamNumber:    "8844",
				TeamType:      ProgramFLL,
				InterestAreas: []string{"robot game", "innovation project"},
			},
		})
		w := sendUpdate(t, team, body)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		p := getOwnProfile(t, team)
		if p.Team == nil {
			t.Fatal("expected team details after update")
		}
		if p.Team.TeamNumber != "8844" || p.Team.TeamType != ProgramFLL {
			t.Errorf("expected team 8844/FLL, got %s/%s", p.Team.TeamNumber, p.Team.TeamType)
		}
	})

	t.Run("Team update without section keeps existing details", func(t *testing.T) {
		body, _ := json.Marshal(TestProfile{DisplayName: "Renamed Team", IsPublic: true})
		w := sendUpdate(t, team, body)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}

		p := getOwnProfile(t, team)
		if p.DisplayName != "Renamed Team" {
			t.Errorf("expected renamed team, got %q", p.DisplayName)
		}
		if p.Team == nil || p.Team.TeamNumber != "8844" {
			t.Error("expected existing team details to survive a rename")
		}
	})
}

func testPublicProfileView(t *testing.T) {
	publicEmail := "view_public@example.com"
	privateEmail := "view_private@example.com"
	viewerEmail := "view_viewer@example.com"
	defer cleanupTestData(publicEmail, privateEmail, viewerEmail)

	publicMentor := createTestMentor(t, publicEmail)
	viewer := createTestTeam(t, viewerEmail)

	privateUser := createTestUser(t, privateEmail, "password123", RoleMentor)
	privateProfile := getDefaultMentorProfile()
	privateProfile.DisplayName = "Private Mentor"
	privateProfile.IsPublic = false
	updateTestProfile(t, privateUser, privateProfile)

	tests := []struct {
		name           string
		path           string
		token          string
		expectedStatus int
	}{
		{
			name:           "Public profile visible anonymously",
			path:           fmt.Sprintf("/profiles/%d", publicMentor.ID),
			token:          "",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Public profile visible to authenticated viewer",
			path:           fmt.Sprintf("/profiles/%d", publicMentor.ID),
			token:          viewer.Token,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Private profile hidden from stranger",
			path:           fmt.Sprintf("/profiles/%d", privateUser.ID),
			token:          viewer.Token,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Private profile hidden from anonymous",
			path:           fmt.Sprintf("/profiles/%d", privateUser.ID),
			token:          "",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Private profile visible to owner",
			path:           fmt.Sprintf("/profiles/%d", privateUser.ID),
			token:          privateUser.Token,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Nonexistent profile",
			path:           "/profiles/999999",
			token:          viewer.Token,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Malformed profile id",
			path:           "/profiles/notanumber",
			token:          viewer.Token,
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()

			profilesDispatcher(db).ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}

	t.Run("Public view carries role details", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/profiles/%d", publicMentor.ID), nil)
		w := httptest.NewRecorder()

		profilesDispatcher(db).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}

		var p Profile
		json.NewDecoder(w.Body).Decode(&p)
		if p.UserID != publicMentor.ID {
			t.Errorf("expected profile id %d, got %d", publicMentor.ID, p.UserID)
		}
		if p.Mentor == nil {
			t.Error("expected mentor details in public view")
		}
		if p.Team != nil {
			t.Error("mentor profile must not carry team details")
		}
	})

	t.Run("Wrong method on profile view", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/profiles/%d", publicMentor.ID), nil)
		w := httptest.NewRecorder()

		profilesDispatcher(db).ServeHTTP(w, req)

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status 405, got %d", w.Code)
		}
	})
}

func testLabelNormalization(t *testing.T) {
	email := "labels_mentor@example.com"
	defer cleanupTestData(email)

	mentor := createTestUser(t, email, "password123", RoleMentor)

	profile := getDefaultMentorProfile()
	profile.Mentor.KnowledgeAreas = []string{" programming ", "Programming", "", "CAD", "cad", "strategy"}
	updateTestProfile(t, mentor, profile)

	p := getOwnProfile(t, mentor)
	if p.Mentor == nil {
		t.Fatal("expected mentor details")
	}

	areas := p.Mentor.KnowledgeAreas
	if len(areas) != 3 {
		t.Fatalf("expected 3 normalized areas, got %d: %v", len(areas), areas)
	}
	if areas[0] != "programming" || areas[1] != "CAD" || areas[2] != "strategy" {
		t.Errorf("expected first spellings to win in order, got %v", areas)
	}
}
