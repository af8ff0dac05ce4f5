package main

import (
	"strings"
	"time"
)

// Profile roles. A user registers as exactly one of these and the role
// never changes afterwards.
const (
	RoleMentor = "mentor"
	RoleTeam   = "team"
)

// FIRST programs a mentor can serve or a team can compete in.
const (
	ProgramFTC = "FTC"
	ProgramFLL = "FLL"
)

// MentorDetails holds the mentor-only part of a profile.
type MentorDetails struct {
	WorksWithFTC   bool     `json:"works_with_ftc"`
	WorksWithFLL   bool     `json:"works_with_fll"`
	KnowledgeAreas []string `json:"knowledge_areas"`
}

// TeamDetails holds the team-only part of a profile.
type TeamDetails struct {
	TeamNumber    string   `json:"team_number"`
	TeamType      string   `json:"team_type"`
	InterestAreas []string `json:"interest_areas"`
}

// Profile is a user's full profile. Exactly one of Mentor/Team is non-nil,
// selected by Role.
type Profile struct {
	UserID        int            `json:"id"`
	Role          string         `json:"role"`
	DisplayName   string         `json:"display_name"`
	ContactEmail  string         `json:"contact_email,omitempty"`
	LocationState string         `json:"location_state,omitempty"`
	LocationCity  string         `json:"location_city,omitempty"`
	Bio           string         `json:"bio,omitempty"`
	AvatarURL     string         `json:"avatar_url,omitempty"`
	CoverURL      string         `json:"cover_url,omitempty"`
	ExternalLink  string         `json:"external_link,omitempty"`
	IsPublic      bool           `json:"is_public"`
	IsOnline      bool           `json:"is_online"`
	CreatedAt     time.Time      `json:"created_at"`
	Mentor        *MentorDetails `json:"mentor,omitempty"`
	Team          *TeamDetails   `json:"team,omitempty"`
}

// ProfileSummary is the compact projection used in follower lists,
// connection lists and chat sidebars.
type ProfileSummary struct {
	ID          int    `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

func validRole(role string) bool {
	return role == RoleMentor || role == RoleTeam
}

func validTeamType(t string) bool {
	return t == ProgramFTC || t == ProgramFLL
}

// normalizeLabels trims whitespace, drops empty entries and removes
// duplicates (case-insensitive, first spelling wins). Knowledge and
// interest areas are sets, so the stored order carries no meaning but
// stays stable for display.
func normalizeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		key := strings.ToLower(l)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
	}
	return out
}
