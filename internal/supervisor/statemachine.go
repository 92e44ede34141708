package supervisor

// Task lifecycle states. The clean vocabulary came in with the supervisor
// flow; the legacy one predates it and is still written by older agents, so
// the transition table cross-links both.
const (
	StatePending   = "pending"
	StateAnalyzing = "analyzing"
	StateDelegated = "delegated"
	StateRunning   = "running"
	StateReviewing = "reviewing"
	StateCompleted = "completed"
	StateArchived  = "archived"

	// Legacy vocabulary.
	StateInbox      = "inbox"
	StateAssigned   = "assigned"
	StateInProgress = "in_progress"
	StateReview     = "review"
	StateDone       = "done"
)

// validTransitions is the adjacency table of allowed from → to moves.
var validTransitions = map[string][]string{
	StateInbox:      {StatePending, StateAnalyzing, StateAssigned},
	StatePending:    {StateAnalyzing, StateDelegated, StateAssigned},
	StateAnalyzing:  {StateDelegated, StatePending},
	StateAssigned:   {StateInProgress, StateDelegated, StateRunning, StateAnalyzing},
	StateDelegated:  {StateRunning, StateInProgress, StateAnalyzing},
	StateInProgress: {StateReview, StateReviewing, StateDone, StateCompleted},
	StateRunning:    {StateReviewing, StateReview, StateCompleted},
	StateReview:     {StateDone, StateCompleted, StateInProgress, StateRunning, StateDelegated},
	StateReviewing:  {StateCompleted, StateDelegated, StateRunning},
	StateCompleted:  {StateArchived, StateDone},
	StateDone:       {StateArchived, StateCompleted},
	StateArchived:   {},
}

// ValidateTransition reports whether moving from one state to another is
// allowed. A self-transition is always valid, including for states absent
// from the table.
//
// The validator is advisory: callers log a warning on an invalid move and
// apply it anyway, because agents write task status files directly and the
// engine must follow whatever state they land in.
func ValidateTransition(from, to string) bool {
	if from == to {
		return true
	}
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
