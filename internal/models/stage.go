package models

// Stage is the negotiation phase of a pipeline entry.
type Stage string

const (
	StageLead        Stage = "LEAD"
	StageContacted   Stage = "CONTACTED"
	StageMeeting     Stage = "MEETING"
	StageProposal    Stage = "PROPOSAL"
	StageNegotiation Stage = "NEGOTIATION"
	StageClosedWon   Stage = "CLOSED_WON"
	StageClosedLost  Stage = "CLOSED_LOST"

	// StageQualified only appears in the default probability table; no
	// transition helper produces it. Kept as a named constant until product
	// confirms whether it belongs in the progression or should go.
	StageQualified Stage = "QUALIFIED"
)

// stageProbabilities is the single source of truth for the default
// probability assigned when an entry moves into a stage.
var stageProbabilities = map[Stage]int{
	StageLead:        10,
	StageContacted:   25,
	StageQualified:   50,
	StageProposal:    75,
	StageNegotiation: 90,
	StageClosedWon:   100,
	StageClosedLost:  0,
}

// fallbackProbability applies to any stage missing from the table
// (including MEETING and free-form values stored by older clients).
const fallbackProbability = 25

// DefaultProbability returns the table probability for the stage, or the
// fallback when the stage is not listed.
func (s Stage) DefaultProbability() int {
	if p, ok := stageProbabilities[s]; ok {
		return p
	}
	return fallbackProbability
}

// Terminal reports whether the stage closes an entry. Terminal is a
// convention only: nothing prevents a later transition back out.
func (s Stage) Terminal() bool {
	return s == StageClosedWon || s == StageClosedLost
}

func (s Stage) String() string {
	return string(s)
}
