package supervisor

import (
	"strings"

	"github.com/mattjoyce/missionctl/internal/model"
)

// Scoring weights for capability matching.
const (
	skillWeight   = 3
	keywordWeight = 2
)

// MatchAgentForTask scores every executing worker against the task's title
// and description and returns the best match, or "" when nothing scores.
// The walk is over sorted agent ids, so identical input always yields the
// same suggestion.
func (r *Registry) MatchAgentForTask(task model.Task) string {
	text := strings.ToLower(task.Title + " " + task.Description)

	best := ""
	bestScore := 0
	for _, agentID := range r.ids {
		caps := r.agents[agentID]
		if caps.IsSupervisor || !caps.CanExecute {
			continue
		}

		score := 0
		for _, skill := range caps.Skills {
			if strings.Contains(text, skill) {
				score += skillWeight
			}
			for _, kw := range skillKeywords[skill] {
				if strings.Contains(text, kw) {
					score += keywordWeight
				}
			}
		}

		if score > bestScore {
			best = agentID
			bestScore = score
		}
	}
	return best
}

// MatchedSkills returns the skill tags of agentID found in the task text,
// used to annotate delegation records.
func (r *Registry) MatchedSkills(task model.Task, agentID string) []string {
	caps, ok := r.agents[agentID]
	if !ok {
		return nil
	}
	text := strings.ToLower(task.Title + " " + task.Description)

	var matched []string
	for _, skill := range caps.Skills {
		if strings.Contains(text, skill) {
			matched = append(matched, skill)
			continue
		}
		for _, kw := range skillKeywords[skill] {
			if strings.Contains(text, kw) {
				matched = append(matched, skill)
				break
			}
		}
	}
	return matched
}
