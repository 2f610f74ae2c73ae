// Package models provides domain models for the cyber-risk platform.
package models

// RiskLevel represents the risk severity level.
type RiskLevel string

const (
	RiskLevelVeryLow  RiskLevel = "very low"
	RiskLevelLow      RiskLevel = "low"
	RiskLevelModerate RiskLevel = "moderate"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// RiskLevels lists every level from least to most severe.
var RiskLevels = []RiskLevel{
	RiskLevelVeryLow,
	RiskLevelLow,
	RiskLevelModerate,
	RiskLevelHigh,
	RiskLevelCritical,
}

// riskThresholds is ordered from the highest threshold down.
var riskThresholds = []struct {
	level RiskLevel
	min   float64
}{
	{RiskLevelCritical, 4},
	{RiskLevelHigh, 3},
	{RiskLevelModerate, 2},
	{RiskLevelLow, 1},
	{RiskLevelVeryLow, 0},
}

// CalculateRiskLevel converts a risk score to a risk level by picking the
// highest threshold that is <= score. Anything below every threshold is very low.
func CalculateRiskLevel(score float64) RiskLevel {
	for _, t := range riskThresholds {
		if score >= t.min {
			return t.level
		}
	}
	return RiskLevelVeryLow
}

// RiskLevelOf is CalculateRiskLevel for an optional score. A nil score has no level.
func RiskLevelOf(score *float64) RiskLevel {
	if score == nil {
		return ""
	}
	return CalculateRiskLevel(*score)
}

// Rank orders levels for comparison: very low is 0, critical is 4.
// Unknown or empty levels rank -1.
func (l RiskLevel) Rank() int {
	for i, lvl := range RiskLevels {
		if lvl == l {
			return i
		}
	}
	return -1
}
