package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// Initialize JWT secret for helper tests
func init() {
	jwtSecret = []byte("test-secret-key-for-testing")
}

// createTestUser creates a user with the given role and returns a TestUser
// with ID and Token. The profile is left the way registration leaves it:
// private, display name derived from the email, no role details yet.
func createTestUser(t *testing.T, email, password, role string) TestUser {
	t.Helper()

	// Clean up existing user
	db.Exec("DELETE FROM users WHERE email = $1", email)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("failed to generate bcrypt hash: %v", err)
	}

	var userID int
	err = db.QueryRow(
		"INSERT INTO users (email, password_hash, last_active) VALUES ($1, $2, NOW()) RETURNING id",
		email, string(hash),
	).Scan(&userID)
	if err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}

	displayName := email
	if at := strings.Index(displayName, "@"); at > 0 {
		displayName = displayName[:at]
	}
	_, err = db.Exec(
		"INSERT INTO profiles (user_id, role, display_name) VALUES ($1, $2, $3)",
		userID, role, displayName,
	)
	if err != nil {
		t.Fatalf("failed to insert profile: %v", err)
	}

	// Login to get token
	token := loginUser(t, email, password)

	return TestUser{
		ID:       userID,
		Email:    email,
		Password: password,
		Role:     role,
		Token:    token,
	}
}

// loginUser logs in a user and returns the JWT token
func loginUser(t *testing.T, email, password string) string {
	t.Helper()

	reqBody := []byte(fmt.Sprintf(`{"email":"%s","password":"%s"}`, email, password))
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBuffer(reqBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	loginHandler(db).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("login failed for %s: status %d", email, w.Code)
	}

	var respBody map[string]interface{}
	json.NewDecoder(w.Body).Decode(&respBody)
	token, ok := respBody["token"].(string)
	if !ok {
		t.Fatalf("expected token in login response, got %v", respBody)
	}

	return token
}

// updateTestProfile completes a profile through the handler
func updateTestProfile(t *testing.T, user TestUser, profile TestProfile) {
	t.Helper()

	profileJSON, err := json.Marshal(profile)
	if err != nil {
		t.Fatalf("failed to marshal profile: %v", err)
	}

	req := httptest.NewRequest(http.MethodPut, "/me/profile", bytes.NewBuffer(profileJSON))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+user.Token)
	w := httptest.NewRecorder()

	meProfileHandler(db).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("failed to update profile for user %d: status %d, body %s", user.ID, w.Code, w.Body.String())
	}
}

// createTestMentor creates a mentor with a public completed profile
func createTestMentor(t *testing.T, email string) TestUser {
	t.Helper()
	user := createTestUser(t, email, "password123", RoleMentor)
	updateTestProfile(t, user, getDefaultMentorProfile())
	return user
}

// createTestTeam creates a team with a public completed profile
func createTestTeam(t *testing.T, email string) TestUser {
	t.Helper()
	user := createTestUser(t, email, "password123", RoleTeam)
	updateTestProfile(t, user, getDefaultTeamProfile())
	return user
}

// getDefaultMentorProfile returns a default mentor profile for testing
func getDefaultMentorProfile() TestProfile {
	return TestProfile{
		DisplayName:   "Test Mentor",
		LocationState: "SP",
		LocationCity:  "Campinas",
		Bio:           "FTC alumni, happy to help rookie teams",
		IsPublic:      true,
		Mentor: &MentorDetails{
			WorksWithFTC:   true,
			WorksWithFLL:   true,
			KnowledgeAreas: []string{"programming", "strategy"},
		},
	}
}

// getDefaultTeamProfile returns a default team profile for testing
func getDefaultTeamProfile() TestProfile {
	return TestProfile{
		DisplayName:   "Test Team",
		LocationState: "SP",
		LocationCity:  "Campinas",
		Bio:           "Rookie FTC team looking for mentors",
		IsPublic:      true,
		Team: &TeamDetails{
			TeamNumber:    "20231",
			TeamType:      ProgramFTC,
			InterestAreas: []string{"programming", "chassis design"},
		},
	}
}

// createAcceptedConnection inserts a mentor-team connection directly
func createAcceptedConnection(t *testing.T, mentorID, teamID int) int {
	t.Helper()

	var id int
	err := db.QueryRow(`
		INSERT INTO connections (mentor_id, team_id, status)
		VALUES ($1, $2, 'accepted')
		ON CONFLICT (mentor_id, team_id) DO UPDATE SET status = EXCLUDED.status
		RETURNING id
	`, mentorID, teamID).Scan(&id)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	return id
}

// createFollow inserts a follower edge directly
func createFollow(t *testing.T, followerID, followingID int) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO followers (follower_id, following_id)
		VALUES ($1, $2)
		ON CONFLICT (follower_id, following_id) DO NOTHING
	`, followerID, followingID)
	if err != nil {
		t.Fatalf("failed to create follow edge: %v", err)
	}
}

// cleanupTestData removes test data for given emails
func cleanupTestData(emails ...string) {
	for _, email := range emails {
		db.Exec("DELETE FROM followers WHERE follower_id IN (SELECT id FROM users WHERE email = $1) OR following_id IN (SELECT id FROM users WHERE email = $1)", email)
		db.Exec("DELETE FROM connections WHERE mentor_id IN (SELECT id FROM users WHERE email = $1) OR team_id IN (SELECT id FROM users WHERE email = $1)", email)
		db.Exec("DELETE FROM users WHERE email = $1", email)
	}
}
