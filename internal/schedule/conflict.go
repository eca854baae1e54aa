package schedule

// ConflictType identifies which rule a conflict violates.
type ConflictType string

const (
	ConflictDoubleBooking   ConflictType = "double_booking"
	ConflictTeamOverlap     ConflictType = "team_overlap"
	ConflictRestTime        ConflictType = "rest_time"
	ConflictTimePreference  ConflictType = "time_preference"
	ConflictVenueConstraint ConflictType = "venue_constraint"
)

// Severity of a conflict. Critical conflicts block an edit by default,
// warnings require confirmation.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Conflict is derived from the current match set and never stored.
type Conflict struct {
	Type             ConflictType
	Severity         Severity
	Message          string
	MatchID          string
	ConflictingMatch string // empty when the conflict involves a single match
	Details          map[string]any
}

// IsCritical returns true for critical conflicts.
func (c Conflict) IsCritical() bool {
	return c.Severity == SeverityCritical
}

// SuggestionType is the kind of remediation.
type SuggestionType string

const (
	SuggestionMove SuggestionType = "move"
	SuggestionSwap SuggestionType = "swap"
)

// SuggestionAction is the payload applied when a suggestion is accepted.
// It is comparable so structurally equal actions can be deduplicated.
type SuggestionAction struct {
	Type    SuggestionType
	MatchID string
	Target  SlotKey // move only
	OtherID string  // swap only
}

// Impact lists the matches a suggestion is expected to fix.
type Impact struct {
	Resolves []string
}

// Suggestion is a ranked candidate fix. Suggestions are ephemeral.
type Suggestion struct {
	Type        SuggestionType
	Priority    int
	Description string
	Action      SuggestionAction
	Impact      Impact
}
