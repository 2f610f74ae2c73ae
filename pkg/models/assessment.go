package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CIA is one of the Confidentiality/Integrity/Availability dimensions.
type CIA string

const (
	CIAConfidentiality CIA = "C"
	CIAIntegrity       CIA = "I"
	CIAAvailability    CIA = "A"
)

// ParseCIA normalizes a stored CIA letter or word. Unknown values return false.
func ParseCIA(s string) (CIA, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "C", "CONFIDENTIALITY":
		return CIAConfidentiality, true
	case "I", "INTEGRITY":
		return CIAIntegrity, true
	case "A", "AVAILABILITY":
		return CIAAvailability, true
	}
	return "", false
}

// ParseCIAList normalizes a stored mapping, dropping unknown entries and
// keeping the stored order.
func ParseCIAList(vals []string) []CIA {
	out := make([]CIA, 0, len(vals))
	for _, v := range vals {
		if c, ok := ParseCIA(v); ok {
			out = append(out, c)
		}
	}
	return out
}

// ContainsCIA reports whether mapping includes dim.
func ContainsCIA(mapping []CIA, dim CIA) bool {
	for _, c := range mapping {
		if c == dim {
			return true
		}
	}
	return false
}

// SeverityCategory names one of the four impact bands of a risk scenario.
type SeverityCategory string

const (
	SeverityFinancial    SeverityCategory = "financial"
	SeverityRegulatory   SeverityCategory = "regulatory"
	SeverityReputational SeverityCategory = "reputational"
	SeverityOperational  SeverityCategory = "operational"
)

// SelectionMode chooses which assessments of an organization a run reads.
type SelectionMode string

const (
	// SelectActive takes the most recently modified assessment per business unit.
	SelectActive SelectionMode = "active"
	// SelectAll takes every non-deleted assessment of the organization.
	SelectAll SelectionMode = "all"
	// SelectIDs takes an explicit list of assessments.
	SelectIDs SelectionMode = "ids"
)

// Selection is a validated assessment selection.
type Selection struct {
	Mode          SelectionMode
	AssessmentIDs []uuid.UUID
}

// Validate checks that the selection is well formed.
func (s Selection) Validate() error {
	switch s.Mode {
	case SelectActive, SelectAll:
		return nil
	case SelectIDs:
		if len(s.AssessmentIDs) == 0 {
			return fmt.Errorf("%w: mode %q requires at least one assessment id", ErrInvalidSelection, s.Mode)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidSelection, s.Mode)
	}
}

// Organization is the organization a run computes dashboards for.
type Organization struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`

	// RiskAppetite is the monetary ceiling, in millions, used to cap target impact.
	RiskAppetite *float64 `json:"riskAppetite"`
}

// AssessmentTree is everything one run reads from the data store.
type AssessmentTree struct {
	Organization Organization
	Assessments  []Assessment
}

// Assessment is one business unit's assessment.
type Assessment struct {
	ID               uuid.UUID
	BusinessUnitID   uuid.UUID
	BusinessUnitName string
	ModifiedAt       time.Time
	Processes        []Process
}

// Process is a business process assessed within an assessment.
type Process struct {
	ID            uuid.UUID // business process id
	Name          string
	Assets        []Asset
	RiskScenarios []RiskScenario
}

// Asset is an asset supporting a process. Assets are versioned by Name;
// ModifiedAt orders the versions.
type Asset struct {
	ID         uuid.UUID
	Name       string
	ModifiedAt time.Time
	Answers    []QuestionnaireAnswer
}

// QuestionnaireAnswer is a control-maturity answer. One answer may
// reference several MITRE controls. Response is nil when unanswered and
// -1 when the question is not applicable.
type QuestionnaireAnswer struct {
	QuestionID uuid.UUID
	ControlIDs []string
	Response   *float64
}

// RiskScenario is a risk scenario attached to a process.
type RiskScenario struct {
	ID         uuid.UUID
	Name       string
	CIAMapping []CIA
	Taxonomy   []SeverityBand
}

// SeverityBand is one qualitative impact band of a risk scenario.
// Ranges are stored as free text and may carry suffixes such as "k".
type SeverityBand struct {
	Category SeverityCategory `json:"category"`
	Level    string           `json:"level"`
	MinRange string           `json:"minRange"`
	MaxRange string           `json:"maxRange"`
	Weight   *float64         `json:"weight"`
}
