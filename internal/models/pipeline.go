package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PipelineEntry is one tracked sales opportunity. Lead, property and agent
// are referenced by opaque numeric IDs owned elsewhere.
type PipelineEntry struct {
	ID         int64  `json:"id"`
	LeadID     *int64 `json:"lead_id"`
	PropertyID *int64 `json:"property_id"`
	AgentID    *int64 `json:"agent_id"`

	Stage       Stage `json:"stage"`
	Probability *int  `json:"probability"`

	ExpectedValue *decimal.Decimal `json:"expected_value"`
	Currency      string           `json:"currency"`

	Source   string `json:"source"`
	Priority string `json:"priority"`

	NextAction      string     `json:"next_action"`
	NextActionDate  *time.Time `json:"next_action_date"`
	LastContactDate *time.Time `json:"last_contact_date"`

	Notes NoteLog  `json:"notes"`
	Tags  []string `json:"tags"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ClosedAt         *time.Time       `json:"closed_at"`
	CloseReason      string           `json:"close_reason"`
	ActualValue      *decimal.Decimal `json:"actual_value"`
	CommissionEarned *decimal.Decimal `json:"commission_earned"`

	DaysInPipeline      *int       `json:"days_in_pipeline"`
	StageChangesCount   int        `json:"stage_changes_count"`
	LastStageChangeDate *time.Time `json:"last_stage_change_date"`
}

// Active reports whether the entry has not reached a terminal stage.
func (e *PipelineEntry) Active() bool {
	return !e.Stage.Terminal()
}

// ExpectedValueOrZero treats an absent expected value as zero for sums.
func (e *PipelineEntry) ExpectedValueOrZero() decimal.Decimal {
	if e.ExpectedValue == nil {
		return decimal.Zero
	}
	return *e.ExpectedValue
}

// ProbabilityOrZero treats an absent probability as zero for averages.
func (e *PipelineEntry) ProbabilityOrZero() int {
	if e.Probability == nil {
		return 0
	}
	return *e.Probability
}

// NoteEntry is one timestamped line in an entry's append-only note log.
type NoteEntry struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// NoteLog is the ordered append-only note history of a pipeline entry.
// Appends never rewrite earlier entries; the log collapses to a single text
// blob only at the storage boundary.
type NoteLog []NoteEntry

// Append adds a timestamped line to the end of the log.
func (l NoteLog) Append(at time.Time, text string) NoteLog {
	return append(l, NoteEntry{At: at, Text: text})
}

const noteTimeLayout = "2006-01-02 15:04"

// Blob serializes the log to the single-text-column storage format, one
// "[timestamp] text" line per entry.
func (l NoteLog) Blob() string {
	if len(l) == 0 {
		return ""
	}
	lines := make([]string, len(l))
	for i, n := range l {
		lines[i] = fmt.Sprintf("[%s] %s", n.At.UTC().Format(noteTimeLayout), n.Text)
	}
	return strings.Join(lines, "\n")
}

// ParseNoteLog rebuilds a note log from its storage blob. Lines that do not
// carry a parsable timestamp prefix are kept verbatim with a zero time so
// legacy notes survive round-trips.
func ParseNoteLog(blob string) NoteLog {
	if blob == "" {
		return nil
	}
	var log NoteLog
	for _, line := range strings.Split(blob, "\n") {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[") {
			if end := strings.Index(line, "] "); end > 0 {
				if at, err := time.Parse(noteTimeLayout, line[1:end]); err == nil {
					log = append(log, NoteEntry{At: at, Text: line[end+2:]})
					continue
				}
			}
		}
		log = append(log, NoteEntry{Text: line})
	}
	return log
}

// EncodeTags serializes the tag set as a JSON array for the storage boundary.
func EncodeTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "", nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(data), nil
}

// DecodeTags parses the stored JSON array back into a tag slice.
func DecodeTags(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return tags, nil
}

// ParseAmount parses a money amount, rejecting negatives. Used for the
// close-deal value and commission parameters.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount must not be negative: %s", s)
	}
	return d, nil
}
