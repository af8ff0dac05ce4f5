package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"
)

// errIncompleteProfile marks a viewer whose role details were never filled
// in; suggestions need them to score anything.
var errIncompleteProfile = errors.New("profile incomplete")

// Mentor-team pairing. Candidates are scored on area overlap and location
// affinity; program compatibility is a hard gate, not a score component: an
// FLL-only mentor is never suggested to an FTC team no matter how well the
// areas line up.

// disciplineGroups maps a robotics discipline to the labels that signal it.
// Two labels in the same discipline count as a semantic match even when they
// are spelled differently.
var disciplineGroups = map[string][]string{
	"software":    {"programming", "coding", "software", "java", "python", "autonomous", "vision", "control"},
	"mechanical":  {"mechanical", "cad", "build", "fabrication", "machining", "3d printing", "chassis"},
	"electrical":  {"electronics", "electrical", "wiring", "sensors", "motors", "circuits", "pneumatics"},
	"competition": {"strategy", "scouting", "drive", "judging", "game analysis", "engineering notebook"},
	"outreach":    {"outreach", "fundraising", "sponsorship", "community", "marketing", "social media", "project management"},
}

// areaOverlapScore scores how well a mentor's knowledge areas cover a team's
// interest areas. Exact matches dominate; same-discipline labels still count.
// The returned labels are the exact matches in the viewer's own spelling.
func areaOverlapScore(viewerAreas, candidateAreas []string) (int, []string) {
	if len(viewerAreas) == 0 || len(candidateAreas) == 0 {
		return 0, nil
	}

	candidateSet := make(map[string]bool, len(candidateAreas))
	for _, area := range candidateAreas {
		candidateSet[strings.ToLower(area)] = true
	}

	exactMatches := 0
	var shared []string
	for _, area := range viewerAreas {
		if candidateSet[strings.ToLower(area)] {
			exactMatches++
			shared = append(shared, area)
		}
	}

	semanticMatches := 0
	for _, viewerArea := range viewerAreas {
		viewerLower := strings.ToLower(viewerArea)
		for _, candidateArea := range candidateAreas {
			candidateLower := strings.ToLower(candidateArea)
			if viewerLower == candidateLower {
				continue
			}
			for _, group := range disciplineGroups {
				viewerInGroup := false
				candidateInGroup := false
				for _, groupWord := range group {
					if strings.Contains(viewerLower, groupWord) {
						viewerInGroup = true
					}
					if strings.Contains(candidateLower, groupWord) {
						candidateInGroup = true
					}
				}
				if viewerInGroup && candidateInGroup {
					semanticMatches++
					break
				}
			}
		}
	}

	score := exactMatches*3 + semanticMatches

	// High-overlap bonus when the two sets mostly agree.
	total := len(viewerAreas) + len(candidateAreas)
	if total > 0 && float64(exactMatches*2)/float64(total) > 0.5 {
		score += 5
	}

	return score, shared
}

// programCompatible reports whether the mentor works with the team's program.
func programCompatible(m *MentorDetails, t *TeamDetails) bool {
	if m == nil || t == nil {
		return false
	}
	switch t.TeamType {
	case ProgramFTC:
		return m.WorksWithFTC
	case ProgramFLL:
		return m.WorksWithFLL
	}
	return false
}

// locationAffinityScore favors nearby pairs. The schema stores state and
// city, not coordinates, so affinity is same-city > same-state > elsewhere.
func locationAffinityScore(stateA, cityA, stateB, cityB string) int {
	if stateA == "" || stateB == "" || !strings.EqualFold(stateA, stateB) {
		return 0
	}
	if cityA != "" && strings.EqualFold(cityA, cityB) {
		return 15
	}
	return 8
}

// MatchResult is one suggestion candidate with its pairing score.
type MatchResult struct {
	UserID      int      `json:"user_id"`
	Score       int      `json:"score"`
	SharedAreas []string `json:"shared_areas,omitempty"`
}

// getSuggestionsWithScores ranks public opposite-role profiles for userID,
// skipping pairs that are already connected. Top 10 by score.
func getSuggestionsWithScores(db *sql.DB, userID int) ([]MatchResult, error) {
	viewer, err := loadProfile(db, userID)
	if err != nil {
		return nil, err
	}

	var viewerAreas []string
	var candidateRole string
	switch viewer.Role {
	case RoleMentor:
		if viewer.Mentor == nil {
			return nil, errIncompleteProfile
		}
		viewerAreas = viewer.Mentor.KnowledgeAreas
		candidateRole = RoleTeam
	case RoleTeam:
		if viewer.Team == nil {
			return nil, errIncompleteProfile
		}
		viewerAreas = viewer.Team.InterestAreas
		candidateRole = RoleMentor
	default:
		return nil, errIncompleteProfile
	}

	rows, err := db.Query(`
		SELECT p.user_id,
		       COALESCE(p.location_state, ''),
		       COALESCE(p.location_city, ''),
		       COALESCE(m.works_with_ftc, FALSE),
		       COALESCE(m.works_with_fll, FALSE),
		       COALESCE(m.knowledge_areas, '[]'::jsonb),
		       COALESCE(t.team_number, ''),
		       COALESCE(t.team_type, ''),
		       COALESCE(t.interest_areas, '[]'::jsonb)
		FROM profiles p
		LEFT JOIN mentor_details m ON m.user_id = p.user_id
		LEFT JOIN team_details t ON t.user_id = p.user_id
		WHERE p.is_public = TRUE
		  AND p.role = $2
		  AND p.user_id <> $1
		  AND NOT EXISTS (
		      SELECT 1 FROM connections c
		      WHERE (c.mentor_id = $1 AND c.team_id = p.user_id)
		         OR (c.mentor_id = p.user_id AND c.team_id = $1)
		  )
	`, userID, candidateRole)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []MatchResult
	for rows.Next() {
		var candID int
		var candState, candCity string
		var worksFTC, worksFLL bool
		var knowledgeRaw, interestRaw json.RawMessage
		var teamNumber, teamType string
		if err := rows.Scan(&candID, &candState, &candCity, &worksFTC, &worksFLL,
			&knowledgeRaw, &teamNumber, &teamType, &interestRaw); err != nil {
			continue
		}

		var candAreas []string
		var mentor *MentorDetails
		var team *TeamDetails
		if candidateRole == RoleMentor {
			mentor = &MentorDetails{WorksWithFTC: worksFTC, WorksWithFLL: worksFLL, KnowledgeAreas: labelList(knowledgeRaw)}
			candAreas = mentor.KnowledgeAreas
			team = viewer.Team
		} else {
			team = &TeamDetails{TeamNumber: teamNumber, TeamType: teamType, InterestAreas: labelList(interestRaw)}
			candAreas = team.InterestAreas
			mentor = viewer.Mentor
		}
		if !programCompatible(mentor, team) {
			continue
		}

		areaScore, shared := areaOverlapScore(viewerAreas, candAreas)
		score := areaScore * 3
		score += locationAffinityScore(viewer.LocationState, viewer.LocationCity, candState, candCity)
		if score == 0 {
			continue
		}

		candidates = append(candidates, MatchResult{UserID: candID, Score: score, SharedAreas: shared})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].UserID < candidates[j].UserID
	})

	if len(candidates) > 10 {
		candidates = candidates[:10]
	}
	return candidates, nil
}
