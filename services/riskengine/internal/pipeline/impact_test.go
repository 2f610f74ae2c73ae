package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskfabric/cyberrisk/pkg/models"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"1000000", models.Float(1000000)},
		{"1,500,000", models.Float(1500000)},
		{"$2,000,000", models.Float(2000000)},
		{"500k", models.Float(500)},
		{" 250000 USD", models.Float(250000)},
		{".5", models.Float(0.5)},
		{"-3", models.Float(-3)},
		{"abc", nil},
		{"", nil},
		{"k500", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAmount(tt.in))
		})
	}
}

func TestBandImpact(t *testing.T) {
	var stats Stats

	assert.Nil(t, BandImpact(nil, &stats))

	b := band(models.SeverityFinancial, "High", "1,000,000", "3,000,000", 1)
	got := BandImpact(&b, &stats)
	require.NotNil(t, got)
	assert.Equal(t, 2.0, *got)

	onlyMax := band(models.SeverityFinancial, "High", "", "4000000", 1)
	assert.Equal(t, 4.0, *BandImpact(&onlyMax, &stats))

	bad := band(models.SeverityFinancial, "High", "n/a", "unknown", 1)
	assert.Nil(t, BandImpact(&bad, &stats))
	assert.Equal(t, 2, stats.UnparsableRanges)
}

func TestLevelNumber(t *testing.T) {
	tests := []struct {
		level string
		want  float64
		ok    bool
	}{
		{"Critical", 4, true},
		{"high", 4, true},
		{"Moderate", 3, true},
		{"medium", 3, true},
		{"Low", 2, true},
		{"Very Low", 1, true},
		{"severe", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := LevelNumber(tt.level)
		assert.Equal(t, tt.ok, ok, tt.level)
		assert.Equal(t, tt.want, got, tt.level)
	}
}

func TestOverallImpactScore(t *testing.T) {
	ref := &models.ScenarioRef{
		Financial:    ptrBand(band(models.SeverityFinancial, "High", "", "", 2)),
		Regulatory:   ptrBand(band(models.SeverityRegulatory, "Low", "", "", 1)),
		Reputational: ptrBand(band(models.SeverityReputational, "Moderate", "", "", 1)),
		Operational:  ptrBand(band(models.SeverityOperational, "Very low", "", "", 0)),
	}
	// (4*2 + 2*1 + 3*1 + 1*0) / 4
	assert.Equal(t, 3.25, *OverallImpactScore(ref))

	assert.Nil(t, OverallImpactScore(nil))
	assert.Nil(t, OverallImpactScore(&models.ScenarioRef{}))

	noWeight := &models.ScenarioRef{Financial: &models.SeverityBand{Level: "High"}}
	assert.Nil(t, OverallImpactScore(noWeight))
}

func TestInherentFinancialExposure(t *testing.T) {
	var stats Stats
	ref := &models.ScenarioRef{
		Financial:    ptrBand(band(models.SeverityFinancial, "High", "1000000", "3000000", 9)),
		Regulatory:   ptrBand(band(models.SeverityRegulatory, "Low", "1000000", "1000000", 1)),
		Reputational: ptrBand(band(models.SeverityReputational, "High", "3000000", "3000000", 3)),
	}
	// 2 + (1*1 + 3*3) / (1 + 3); the financial weight is not used.
	assert.Equal(t, 4.5, *InherentFinancialExposure(ref, &stats))
}

func TestInherentFinancialExposure_PartialData(t *testing.T) {
	var stats Stats

	assert.Nil(t, InherentFinancialExposure(nil, &stats))
	assert.Nil(t, InherentFinancialExposure(&models.ScenarioRef{}, &stats))

	financialOnly := &models.ScenarioRef{
		Financial: ptrBand(band(models.SeverityFinancial, "High", "1250000", "1250000", 1)),
	}
	assert.Equal(t, 1.3, *InherentFinancialExposure(financialOnly, &stats))

	weightedOnly := &models.ScenarioRef{
		Operational: ptrBand(band(models.SeverityOperational, "Low", "500000", "500000", 2)),
	}
	assert.Equal(t, 0.5, *InherentFinancialExposure(weightedOnly, &stats))

	zeroWeights := &models.ScenarioRef{
		Financial:   ptrBand(band(models.SeverityFinancial, "High", "1000000", "1000000", 1)),
		Operational: ptrBand(band(models.SeverityOperational, "Low", "500000", "500000", 0)),
	}
	assert.Equal(t, 1.0, *InherentFinancialExposure(zeroWeights, &stats))
}

func TestApplyImpact(t *testing.T) {
	var stats Stats
	tree := sampleTree()
	flat := Flatten(tree)
	require.Len(t, flat, 1)

	rec := models.DashboardRecord{FlatAssessmentRecord: flat[0]}
	ApplyImpact(&rec, &stats)

	assert.Equal(t, 2.0, *rec.FinancialImpact)
	assert.Equal(t, 2.0, *rec.RegulatoryImpact)
	assert.Nil(t, rec.ReputationalImpact)
	assert.Nil(t, rec.OperationalImpact)
	assert.Equal(t, 4.0, *rec.InherentFinancialExposure)
	assert.Equal(t, 3.5, *rec.OverallImpactScore)
	assert.Equal(t, models.RiskLevelHigh, rec.InherentRiskLevel)
}

func TestApplyImpact_Placeholder(t *testing.T) {
	var stats Stats
	rec := models.DashboardRecord{}
	ApplyImpact(&rec, &stats)

	assert.Nil(t, rec.InherentFinancialExposure)
	assert.Nil(t, rec.OverallImpactScore)
	assert.Equal(t, models.RiskLevel(""), rec.InherentRiskLevel)
}

func ptrBand(b models.SeverityBand) *models.SeverityBand { return &b }
