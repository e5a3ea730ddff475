// README: Incident aggregate and status definitions.
package incident

import (
	"time"

	"rakshak/internal/types"
)

type Status string

const (
	StatusReported Status = "REPORTED"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

type Incident struct {
	ID          types.ID
	PhoneNumber string
	Description string
	Origin      types.Point
	Severity    Severity // optional, empty when the reporter gave none
	Status      Status
	ImageURLs   []string
	CreatedAt   time.Time
	ReviewedAt  *time.Time
}

// AllowedTransitions represents the review state flow as code. REPORTED is
// the only non-terminal state; ACCEPTED and REJECTED are terminal.
var AllowedTransitions = map[Status][]Status{
	StatusReported: {StatusAccepted, StatusRejected},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

func ValidStatus(s Status) bool {
	return s == StatusAccepted || s == StatusRejected
}

func ValidSeverity(s Severity) bool {
	switch s {
	case "", SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}
