// Package supervisor implements the capability router and delegation state
// machine: a static registry of agent skills, task-to-agent matching, the
// lifecycle transition table, and the message templates the supervising
// agent works from.
package supervisor

import "sort"

// Capability describes one agent in the fleet.
type Capability struct {
	Role         string   `json:"role"`
	Skills       []string `json:"skills"`
	IsSupervisor bool     `json:"isSupervisor"`
	CanExecute   bool     `json:"canExecute"`
}

// Registry is an immutable snapshot of agent capabilities, built once at
// startup and shared read-only across operations.
type Registry struct {
	agents map[string]Capability
	ids    []string // sorted, for deterministic iteration
}

// NewRegistry builds a registry snapshot from the given capability map.
func NewRegistry(agents map[string]Capability) *Registry {
	ids := make([]string, 0, len(agents))
	copied := make(map[string]Capability, len(agents))
	for id, cap := range agents {
		ids = append(ids, id)
		copied[id] = cap
	}
	sort.Strings(ids)
	return &Registry{agents: copied, ids: ids}
}

// Get returns the capability entry for an agent id.
func (r *Registry) Get(agentID string) (Capability, bool) {
	c, ok := r.agents[agentID]
	return c, ok
}

// IDs returns all agent ids in sorted order.
func (r *Registry) IDs() []string {
	return r.ids
}

// IsSupervisor reports whether an agent coordinates rather than executes.
func (r *Registry) IsSupervisor(agentID string) bool {
	return r.agents[agentID].IsSupervisor
}

// SupervisorID returns the designated coordinating agent, or "".
func (r *Registry) SupervisorID() string {
	for _, id := range r.ids {
		if r.agents[id].IsSupervisor {
			return id
		}
	}
	return ""
}

// DefaultRegistry returns the fleet the mission control deployment runs:
// one supervising agent plus nine executing workers.
func DefaultRegistry() *Registry {
	return NewRegistry(map[string]Capability{
		"jarvis": {
			Role:         "Supervisory Orchestrator",
			Skills:       []string{"delegation", "review", "coordination", "planning", "quality-assurance"},
			IsSupervisor: true,
		},
		"shuri": {
			Role:       "Product Analyst",
			Skills:     []string{"testing", "ux-analysis", "competitive-analysis", "bug-hunting", "user-research"},
			CanExecute: true,
		},
		"fury": {
			Role:       "Customer Researcher",
			Skills:     []string{"research", "data-analysis", "customer-insights", "market-research", "surveys"},
			CanExecute: true,
		},
		"vision": {
			Role:       "SEO Analyst",
			Skills:     []string{"seo", "keyword-research", "content-optimization", "analytics", "search-ranking"},
			CanExecute: true,
		},
		"loki": {
			Role:       "Content Writer",
			Skills:     []string{"writing", "blog", "copywriting", "editing", "content-strategy", "storytelling"},
			CanExecute: true,
		},
		"quill": {
			Role:       "Social Media Manager",
			Skills:     []string{"social-media", "engagement", "content-calendar", "community", "viral-content"},
			CanExecute: true,
		},
		"wanda": {
			Role:       "Designer",
			Skills:     []string{"design", "ui-ux", "visual-design", "mockups", "brand-identity"},
			CanExecute: true,
		},
		"pepper": {
			Role:       "Email Marketing Specialist",
			Skills:     []string{"email-marketing", "campaigns", "newsletters", "automation", "conversion"},
			CanExecute: true,
		},
		"friday": {
			Role:       "Developer",
			Skills:     []string{"coding", "development", "implementation", "debugging", "devops", "scripting"},
			CanExecute: true,
		},
		"wong": {
			Role:       "Notion Agent",
			Skills:     []string{"documentation", "knowledge-base", "organization", "project-management"},
			CanExecute: true,
		},
	})
}

// skillKeywords expands a skill tag into the words a task description is
// likely to use for it.
var skillKeywords = map[string][]string{
	"writing":         {"write", "blog", "article", "post", "copy", "content", "story", "essay", "draft"},
	"blog":            {"blog", "article", "post"},
	"seo":             {"seo", "search", "keyword", "ranking", "organic", "serp"},
	"design":          {"design", "ui", "ux", "mockup", "visual", "brand", "logo", "layout"},
	"coding":          {"code", "develop", "implement", "build", "program", "script", "fix", "bug", "deploy"},
	"development":     {"code", "develop", "implement", "build", "program"},
	"research":        {"research", "analyze", "investigate", "study", "survey", "data"},
	"testing":         {"test", "qa", "quality", "bug", "edge-case", "review"},
	"social-media":    {"social", "twitter", "linkedin", "instagram", "tiktok", "facebook", "post"},
	"email-marketing": {"email", "newsletter", "campaign", "drip", "subscriber"},
	"documentation":   {"document", "notion", "wiki", "knowledge", "organize"},
}
