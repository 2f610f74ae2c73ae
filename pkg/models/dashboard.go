package models

import (
	"time"

	"github.com/google/uuid"
)

// AssetRef is the asset side of a flat record.
type AssetRef struct {
	ID         uuid.UUID         `json:"id"`
	Name       string            `json:"name"`
	ModifiedAt time.Time         `json:"modifiedAt"`
	Controls   []ControlResponse `json:"controls"`
}

// ScenarioRef is the risk-scenario side of a flat record.
type ScenarioRef struct {
	ID           uuid.UUID     `json:"id"`
	Name         string        `json:"name"`
	CIAMapping   []CIA         `json:"ciaMapping"`
	Financial    *SeverityBand `json:"financial"`
	Regulatory   *SeverityBand `json:"regulatory"`
	Reputational *SeverityBand `json:"reputational"`
	Operational  *SeverityBand `json:"operational"`
}

// Band returns the severity band for a category, or nil.
func (s *ScenarioRef) Band(c SeverityCategory) *SeverityBand {
	if s == nil {
		return nil
	}
	switch c {
	case SeverityFinancial:
		return s.Financial
	case SeverityRegulatory:
		return s.Regulatory
	case SeverityReputational:
		return s.Reputational
	case SeverityOperational:
		return s.Operational
	}
	return nil
}

// FlatAssessmentRecord is one (assessment, process, asset, risk scenario)
// combination. Asset and Scenario are nil for the placeholder row emitted
// when a process has no assets or no risk scenarios.
type FlatAssessmentRecord struct {
	OrganizationID      uuid.UUID    `json:"organizationId"`
	OrganizationName    string       `json:"organizationName"`
	AssessmentID        uuid.UUID    `json:"assessmentId"`
	BusinessUnitID      uuid.UUID    `json:"businessUnitId"`
	BusinessUnitName    string       `json:"businessUnitName"`
	BusinessProcessID   uuid.UUID    `json:"businessProcessId"`
	BusinessProcessName string       `json:"businessProcessName"`
	Asset               *AssetRef    `json:"asset,omitempty"`
	Scenario            *ScenarioRef `json:"riskScenario,omitempty"`
}

// HasAsset reports whether the record carries an asset.
func (r *FlatAssessmentRecord) HasAsset() bool { return r.Asset != nil }

// HasScenario reports whether the record carries a risk scenario.
func (r *FlatAssessmentRecord) HasScenario() bool { return r.Scenario != nil }

// Projection is the inherent, residual and target view of a risk at one
// dashboard granularity. Residual and target fields stay nil when no control
// strength applies.
type Projection struct {
	InherentRiskScore *float64  `json:"inherentRiskScore"`
	InherentRiskLevel RiskLevel `json:"inherentRiskLevel,omitempty"`
	InherentImpact    *float64  `json:"inherentImpact"`

	ControlStrength *float64 `json:"controlStrength"`

	ResidualRiskScore *float64  `json:"residualRiskScore"`
	ResidualRiskLevel RiskLevel `json:"residualRiskLevel,omitempty"`
	ResidualImpact    *float64  `json:"residualImpact"`

	TargetImpact          *float64  `json:"targetImpact"`
	TargetControlStrength *float64  `json:"targetControlStrength"`
	TargetRiskScore       *float64  `json:"targetRiskScore"`
	TargetRiskLevel       RiskLevel `json:"targetRiskLevel,omitempty"`
}

// DashboardRecord is a flat record enriched with impacts, control strength
// and the ERM, Business and CIO projections. It is the persisted row type.
type DashboardRecord struct {
	FlatAssessmentRecord

	BatchID   uuid.UUID `json:"batchId"`
	BatchTime time.Time `json:"batchTime"`

	FinancialImpact    *float64 `json:"financialImpact"`
	RegulatoryImpact   *float64 `json:"regulatoryImpact"`
	ReputationalImpact *float64 `json:"reputationalImpact"`
	OperationalImpact  *float64 `json:"operationalImpact"`

	InherentFinancialExposure *float64  `json:"inherentFinancialExposure"`
	OverallImpactScore        *float64  `json:"overallImpactScore"`
	InherentRiskLevel         RiskLevel `json:"inherentRiskLevel,omitempty"`

	ControlStrengthProcessToAsset *float64 `json:"controlStrengthProcessToAsset"`
	ControlStrengthC              *float64 `json:"controlStrengthC"`
	ControlStrengthI              *float64 `json:"controlStrengthI"`
	ControlStrengthA              *float64 `json:"controlStrengthA"`

	ERM      Projection `json:"erm"`
	Business Projection `json:"business"`
	CIO      Projection `json:"cio"`
}

// AssetKey returns the asset id, or uuid.Nil for a placeholder row.
func (r *DashboardRecord) AssetKey() uuid.UUID {
	if r.Asset == nil {
		return uuid.Nil
	}
	return r.Asset.ID
}

// ScenarioKey returns the risk scenario id, or uuid.Nil for a placeholder row.
func (r *DashboardRecord) ScenarioKey() uuid.UUID {
	if r.Scenario == nil {
		return uuid.Nil
	}
	return r.Scenario.ID
}

// RunResult summarizes one completed pipeline run for an organization.
type RunResult struct {
	RunID     uuid.UUID     `json:"runId"`
	OrgID     uuid.UUID     `json:"orgId"`
	Mode      SelectionMode `json:"mode"`
	Records   int           `json:"records"`
	BatchTime time.Time     `json:"batchTime"`
	Duration  time.Duration `json:"duration"`
}
