package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskfabric/cyberrisk/pkg/models"
)

func TestAssessmentQuery(t *testing.T) {
	org := uuid.New()
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	tests := []struct {
		name     string
		sel      models.Selection
		contains []string
		absent   []string
		args     int
	}{
		{
			name:     "active takes latest per business unit",
			sel:      models.Selection{Mode: models.SelectActive},
			contains: []string{"ROW_NUMBER() OVER", "PARTITION BY a.business_unit_id", "ORDER BY a.modified_date DESC, a.id DESC", "rn = 1", "NOT a.is_deleted"},
			absent:   []string{"ANY($2)"},
			args:     1,
		},
		{
			name:     "all",
			sel:      models.Selection{Mode: models.SelectAll},
			contains: []string{"NOT a.is_deleted"},
			absent:   []string{"ROW_NUMBER", "ANY($2)"},
			args:     1,
		},
		{
			name:     "explicit ids",
			sel:      models.Selection{Mode: models.SelectIDs, AssessmentIDs: ids},
			contains: []string{"a.id = ANY($2)", "NOT a.is_deleted"},
			absent:   []string{"ROW_NUMBER"},
			args:     2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := assessmentQuery(org, tt.sel)
			for _, s := range tt.contains {
				assert.Contains(t, sql, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, sql, s)
			}
			require.Len(t, args, tt.args)
			assert.Equal(t, org, args[0])
		})
	}
}

func TestAssembleTree(t *testing.T) {
	org := models.Organization{ID: uuid.New(), Name: "Acme"}
	a1, a2 := uuid.New(), uuid.New()
	ap1, ap2, orphanAP := uuid.New(), uuid.New(), uuid.New()
	bp1 := uuid.New()
	asset1 := uuid.New()
	sc1 := uuid.New()
	now := time.Now().UTC()

	tree := assembleTree(org,
		[]assessmentRow{
			{ID: a1, BusinessUnitID: uuid.New(), BusinessUnitName: "Payments", ModifiedAt: now},
			{ID: a2, BusinessUnitID: uuid.New(), BusinessUnitName: "Retail", ModifiedAt: now},
		},
		[]processRow{
			{ID: ap1, AssessmentID: a1, ProcessID: bp1, Name: "Settlement"},
			{ID: ap2, AssessmentID: a1, ProcessID: uuid.New(), Name: "Refunds"},
			{ID: orphanAP, AssessmentID: uuid.New(), ProcessID: uuid.New(), Name: "Orphan"},
		},
		[]assetRow{{ID: asset1, ProcessRow: ap1, Name: "ledger-db", ModifiedAt: now}},
		[]answerRow{
			{AssetID: asset1, QuestionID: uuid.New(), ControlIDs: []string{"M1", "M2"}, Response: models.Float(3)},
			{AssetID: asset1, QuestionID: uuid.New(), ControlIDs: []string{"M3"}},
		},
		[]scenarioRow{{ID: sc1, ProcessRow: ap1, Name: "Exfiltration", CIAMapping: []string{"C", "i", "bogus"}}},
		[]taxonomyRow{
			{ScenarioID: sc1, Category: " Financial ", Level: strPtr("High"), MinRange: strPtr("1000"), Weight: models.Float(1)},
			{ScenarioID: sc1, Category: "operational"},
		},
	)

	assert.Equal(t, org, tree.Organization)
	require.Len(t, tree.Assessments, 2)
	assert.Empty(t, tree.Assessments[1].Processes)

	procs := tree.Assessments[0].Processes
	require.Len(t, procs, 2)
	assert.Equal(t, bp1, procs[0].ID)
	assert.Empty(t, procs[1].Assets)
	assert.Empty(t, procs[1].RiskScenarios)

	require.Len(t, procs[0].Assets, 1)
	assert.Len(t, procs[0].Assets[0].Answers, 2)
	assert.Nil(t, procs[0].Assets[0].Answers[1].Response)

	require.Len(t, procs[0].RiskScenarios, 1)
	sc := procs[0].RiskScenarios[0]
	assert.Equal(t, []models.CIA{models.CIAConfidentiality, models.CIAIntegrity}, sc.CIAMapping)
	require.Len(t, sc.Taxonomy, 2)
	assert.Equal(t, models.SeverityFinancial, sc.Taxonomy[0].Category)
	assert.Equal(t, "1000", sc.Taxonomy[0].MinRange)
	assert.Equal(t, "", sc.Taxonomy[0].MaxRange)
	assert.Equal(t, models.SeverityOperational, sc.Taxonomy[1].Category)
}

func TestGroupControls(t *testing.T) {
	mitigation := "MITIGATION"
	meta := groupControls([]controlRow{
		{ControlID: "M1", TechniqueID: strPtr("T1001"), CIAMapping: []string{"C"}, Priority: int32Ptr(2), Type: &mitigation},
		{ControlID: "M1", TechniqueID: strPtr("T1002"), CIAMapping: []string{"A"}},
		{ControlID: "M2", Priority: int32Ptr(1)},
	})

	require.Len(t, meta["M1"], 2)
	assert.Equal(t, 6.0, meta["M1"][0].Weight())
	assert.Equal(t, 0, meta["M1"][1].Priority)
	assert.Equal(t, "T1002", meta["M1"][1].TechniqueID)
	assert.Equal(t, 1.0, meta["M2"][0].Weight())
}

func TestDashboardColumns(t *testing.T) {
	cols := dashboardColumns()
	assert.Len(t, cols, len(recordColumns)+3*len(projectionColumns))
	assert.Contains(t, cols, "erm_residual_risk_score")
	assert.Contains(t, cols, "cio_target_risk_level")

	seen := make(map[string]bool)
	for _, c := range cols {
		assert.False(t, seen[c], "duplicate column %s", c)
		seen[c] = true
	}

	sql := latestDashboardSQL()
	assert.True(t, strings.HasPrefix(sql, "SELECT organization_id, organization_name"))
	assert.Contains(t, sql, "max(batch_time)")
}

// scanInto copies encoded values into scan targets the way a driver would.
func scanInto(t *testing.T, vals, targets []any) {
	t.Helper()
	require.Len(t, targets, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		dst := reflect.ValueOf(targets[i]).Elem()
		src := reflect.ValueOf(v)
		require.True(t, src.Type().AssignableTo(dst.Type()), "column %d (%s): %s into %s", i, dashboardColumns()[i], src.Type(), dst.Type())
		dst.Set(src)
	}
}

func TestDashboardRow_RoundTrip(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	full := models.DashboardRecord{
		FlatAssessmentRecord: models.FlatAssessmentRecord{
			OrganizationID:      uuid.New(),
			OrganizationName:    "Acme",
			AssessmentID:        uuid.New(),
			BusinessUnitID:      uuid.New(),
			BusinessUnitName:    "Payments",
			BusinessProcessID:   uuid.New(),
			BusinessProcessName: "Settlement",
			Asset: &models.AssetRef{
				ID: uuid.New(), Name: "ledger-db", ModifiedAt: now,
				Controls: []models.ControlResponse{{ControlID: "M1", Score: models.Float(2)}, {ControlID: "M2"}},
			},
			Scenario: &models.ScenarioRef{
				ID: uuid.New(), Name: "Exfiltration",
				CIAMapping: []models.CIA{models.CIAConfidentiality, models.CIAIntegrity},
				Financial:  &models.SeverityBand{Category: models.SeverityFinancial, Level: "High", MinRange: "1", MaxRange: "2", Weight: models.Float(1)},
			},
		},
		BatchID:                       uuid.New(),
		BatchTime:                     now,
		FinancialImpact:               models.Float(1.5),
		InherentFinancialExposure:     models.Float(1.5),
		OverallImpactScore:            models.Float(4),
		InherentRiskLevel:             models.RiskLevelCritical,
		ControlStrengthProcessToAsset: models.Float(3.75),
		ControlStrengthC:              models.Float(3.75),
		ControlStrengthI:              models.Float(0),
		ControlStrengthA:              models.Float(0),
		ERM:                           models.Projection{InherentRiskScore: models.Float(4), InherentRiskLevel: models.RiskLevelCritical, ResidualRiskLevel: models.RiskLevelLow},
		Business:                      models.Projection{TargetRiskLevel: models.RiskLevelVeryLow, TargetImpact: models.Float(1)},
		CIO:                           models.Projection{ControlStrength: models.Float(3.75)},
	}
	placeholder := models.DashboardRecord{
		FlatAssessmentRecord: models.FlatAssessmentRecord{
			OrganizationID:    full.OrganizationID,
			BusinessProcessID: uuid.New(),
		},
		BatchID:   full.BatchID,
		BatchTime: now,
	}

	for i, rec := range []models.DashboardRecord{full, placeholder} {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			vals, err := dashboardValues(&rec)
			require.NoError(t, err)

			var row dashboardRow
			scanInto(t, vals, row.targets())
			got, err := row.record()
			require.NoError(t, err)
			assert.Equal(t, rec, got)
		})
	}
}

func TestDashboardValues_Placeholder(t *testing.T) {
	vals, err := dashboardValues(&models.DashboardRecord{})
	require.NoError(t, err)

	cols := dashboardColumns()
	byName := make(map[string]any, len(cols))
	for i, c := range cols {
		byName[c] = vals[i]
	}
	assert.Nil(t, byName["asset_id"].(*uuid.UUID))
	assert.Nil(t, byName["asset_controls"].([]byte))
	assert.Nil(t, byName["risk_scenario_cia_mapping"].([]string))
	assert.Equal(t, "", byName["erm_residual_risk_level"])
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))

	plain := errors.New("syntax error")
	assert.Equal(t, plain, classify(plain))

	timeout := fmt.Errorf("query assessments: %w", context.DeadlineExceeded)
	assert.ErrorIs(t, classify(timeout), models.ErrStoreUnavailable)
	assert.ErrorIs(t, classify(timeout), context.DeadlineExceeded)
}

func strPtr(s string) *string { return &s }
func int32Ptr(v int32) *int32 { return &v }
