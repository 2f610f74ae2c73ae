package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/riskfabric/cyberrisk/pkg/models"
	"github.com/riskfabric/cyberrisk/pkg/telemetry"
)

const dashboardTable = "risk_dashboard_records"

var projectionColumns = []string{
	"inherent_risk_score",
	"inherent_risk_level",
	"inherent_impact",
	"control_strength",
	"residual_risk_score",
	"residual_risk_level",
	"residual_impact",
	"target_impact",
	"target_control_strength",
	"target_risk_score",
	"target_risk_level",
}

var recordColumns = []string{
	"organization_id",
	"organization_name",
	"assessment_id",
	"business_unit_id",
	"business_unit_name",
	"business_process_id",
	"business_process_name",
	"asset_id",
	"asset_name",
	"asset_modified_at",
	"asset_controls",
	"risk_scenario_id",
	"risk_scenario_name",
	"risk_scenario_cia_mapping",
	"severity_bands",
	"batch_id",
	"batch_time",
	"financial_impact",
	"regulatory_impact",
	"reputational_impact",
	"operational_impact",
	"inherent_financial_exposure",
	"overall_impact_score",
	"inherent_risk_level",
	"control_strength_process_to_asset",
	"control_strength_c",
	"control_strength_i",
	"control_strength_a",
}

// dashboardColumns is the full column list of risk_dashboard_records in
// write and scan order.
func dashboardColumns() []string {
	cols := append([]string(nil), recordColumns...)
	for _, prefix := range []string{"erm_", "business_", "cio_"} {
		for _, c := range projectionColumns {
			cols = append(cols, prefix+c)
		}
	}
	return cols
}

type severityBands struct {
	Financial    *models.SeverityBand `json:"financial,omitempty"`
	Regulatory   *models.SeverityBand `json:"regulatory,omitempty"`
	Reputational *models.SeverityBand `json:"reputational,omitempty"`
	Operational  *models.SeverityBand `json:"operational,omitempty"`
}

func projectionValues(p models.Projection) []any {
	return []any{
		p.InherentRiskScore,
		string(p.InherentRiskLevel),
		p.InherentImpact,
		p.ControlStrength,
		p.ResidualRiskScore,
		string(p.ResidualRiskLevel),
		p.ResidualImpact,
		p.TargetImpact,
		p.TargetControlStrength,
		p.TargetRiskScore,
		string(p.TargetRiskLevel),
	}
}

// dashboardValues encodes a record in dashboardColumns order.
func dashboardValues(rec *models.DashboardRecord) ([]any, error) {
	var (
		assetID, scenarioID     *uuid.UUID
		assetName, scenarioName *string
		assetModified           *time.Time
		controls, bands         []byte
		cia                     []string
	)

	if a := rec.Asset; a != nil {
		assetID, assetName, assetModified = &a.ID, &a.Name, &a.ModifiedAt
		c := a.Controls
		if c == nil {
			c = []models.ControlResponse{}
		}
		b, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("failed to encode asset controls: %w", err)
		}
		controls = b
	}

	if s := rec.Scenario; s != nil {
		scenarioID, scenarioName = &s.ID, &s.Name
		cia = make([]string, len(s.CIAMapping))
		for i, c := range s.CIAMapping {
			cia[i] = string(c)
		}
		b, err := json.Marshal(severityBands{
			Financial:    s.Financial,
			Regulatory:   s.Regulatory,
			Reputational: s.Reputational,
			Operational:  s.Operational,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode severity bands: %w", err)
		}
		bands = b
	}

	vals := []any{
		rec.OrganizationID,
		rec.OrganizationName,
		rec.AssessmentID,
		rec.BusinessUnitID,
		rec.BusinessUnitName,
		rec.BusinessProcessID,
		rec.BusinessProcessName,
		assetID,
		assetName,
		assetModified,
		controls,
		scenarioID,
		scenarioName,
		cia,
		bands,
		rec.BatchID,
		rec.BatchTime,
		rec.FinancialImpact,
		rec.RegulatoryImpact,
		rec.ReputationalImpact,
		rec.OperationalImpact,
		rec.InherentFinancialExposure,
		rec.OverallImpactScore,
		string(rec.InherentRiskLevel),
		rec.ControlStrengthProcessToAsset,
		rec.ControlStrengthC,
		rec.ControlStrengthI,
		rec.ControlStrengthA,
	}
	for _, p := range []models.Projection{rec.ERM, rec.Business, rec.CIO} {
		vals = append(vals, projectionValues(p)...)
	}
	return vals, nil
}

// dashboardRow is the scan target for one risk_dashboard_records row.
type dashboardRow struct {
	rec models.DashboardRecord

	assetID, scenarioID     *uuid.UUID
	assetName, scenarioName *string
	assetModified           *time.Time
	controls, bands         []byte
	cia                     []string
	levels                  [10]string
}

func (r *dashboardRow) targets() []any {
	t := []any{
		&r.rec.OrganizationID,
		&r.rec.OrganizationName,
		&r.rec.AssessmentID,
		&r.rec.BusinessUnitID,
		&r.rec.BusinessUnitName,
		&r.rec.BusinessProcessID,
		&r.rec.BusinessProcessName,
		&r.assetID,
		&r.assetName,
		&r.assetModified,
		&r.controls,
		&r.scenarioID,
		&r.scenarioName,
		&r.cia,
		&r.bands,
		&r.rec.BatchID,
		&r.rec.BatchTime,
		&r.rec.FinancialImpact,
		&r.rec.RegulatoryImpact,
		&r.rec.ReputationalImpact,
		&r.rec.OperationalImpact,
		&r.rec.InherentFinancialExposure,
		&r.rec.OverallImpactScore,
		&r.levels[0],
		&r.rec.ControlStrengthProcessToAsset,
		&r.rec.ControlStrengthC,
		&r.rec.ControlStrengthI,
		&r.rec.ControlStrengthA,
	}
	for i, p := range []*models.Projection{&r.rec.ERM, &r.rec.Business, &r.rec.CIO} {
		base := 1 + i*3
		t = append(t,
			&p.InherentRiskScore,
			&r.levels[base],
			&p.InherentImpact,
			&p.ControlStrength,
			&p.ResidualRiskScore,
			&r.levels[base+1],
			&p.ResidualImpact,
			&p.TargetImpact,
			&p.TargetControlStrength,
			&p.TargetRiskScore,
			&r.levels[base+2],
		)
	}
	return t
}

// record rebuilds the domain record after a scan.
func (r *dashboardRow) record() (models.DashboardRecord, error) {
	rec := r.rec
	rec.InherentRiskLevel = models.RiskLevel(r.levels[0])
	for i, p := range []*models.Projection{&rec.ERM, &rec.Business, &rec.CIO} {
		base := 1 + i*3
		p.InherentRiskLevel = models.RiskLevel(r.levels[base])
		p.ResidualRiskLevel = models.RiskLevel(r.levels[base+1])
		p.TargetRiskLevel = models.RiskLevel(r.levels[base+2])
	}

	if r.assetID != nil {
		a := &models.AssetRef{ID: *r.assetID}
		if r.assetName != nil {
			a.Name = *r.assetName
		}
		if r.assetModified != nil {
			a.ModifiedAt = *r.assetModified
		}
		if len(r.controls) > 0 {
			if err := json.Unmarshal(r.controls, &a.Controls); err != nil {
				return rec, fmt.Errorf("failed to decode asset controls: %w", err)
			}
		}
		rec.Asset = a
	}

	if r.scenarioID != nil {
		s := &models.ScenarioRef{ID: *r.scenarioID, CIAMapping: models.ParseCIAList(r.cia)}
		if r.scenarioName != nil {
			s.Name = *r.scenarioName
		}
		if len(r.bands) > 0 {
			var b severityBands
			if err := json.Unmarshal(r.bands, &b); err != nil {
				return rec, fmt.Errorf("failed to decode severity bands: %w", err)
			}
			s.Financial, s.Regulatory, s.Reputational, s.Operational = b.Financial, b.Regulatory, b.Reputational, b.Operational
		}
		rec.Scenario = s
	}
	return rec, nil
}

// ReplaceDashboard deletes the organization's rows and bulk-inserts records
// in one transaction. On failure the previous rows remain.
func (r *Repository) ReplaceDashboard(ctx context.Context, orgID uuid.UUID, records []models.DashboardRecord) error {
	ctx, span := telemetry.DatabaseSpan(ctx, "copy", dashboardTable)
	defer span.End()

	rows := make([][]any, len(records))
	for i := range records {
		vals, err := dashboardValues(&records[i])
		if err != nil {
			span.SetError(err)
			return err
		}
		rows[i] = vals
	}

	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM `+dashboardTable+` WHERE organization_id = $1`, orgID); err != nil {
			return fmt.Errorf("failed to clear dashboard: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{dashboardTable}, dashboardColumns(), pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy dashboard rows: %w", err)
		}
		if n != int64(len(rows)) {
			return fmt.Errorf("copied %d of %d dashboard rows", n, len(rows))
		}
		return nil
	})
	if err != nil {
		span.SetError(err)
		return classify(err)
	}
	span.SetAttribute("rows", len(rows))
	return nil
}

// LatestDashboard returns the organization's rows from its most recent
// batch. It fails with models.ErrInvalidOrganization when the organization
// does not exist.
func (r *Repository) LatestDashboard(ctx context.Context, orgID uuid.UUID) ([]models.DashboardRecord, error) {
	ctx, span := telemetry.DatabaseSpan(ctx, "select", dashboardTable)
	defer span.End()

	if _, err := getOrganization(ctx, r.db.Pool, orgID); err != nil {
		span.SetError(err)
		return nil, err
	}

	rows, err := r.db.Pool.Query(ctx, latestDashboardSQL(), orgID)
	if err != nil {
		span.SetError(err)
		return nil, classify(err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DashboardRecord, error) {
		var dr dashboardRow
		if err := row.Scan(dr.targets()...); err != nil {
			return models.DashboardRecord{}, err
		}
		return dr.record()
	})
	if err != nil {
		span.SetError(err)
		return nil, classify(err)
	}
	span.SetAttribute("rows", len(out))
	return out, nil
}

func latestDashboardSQL() string {
	return "SELECT " + strings.Join(dashboardColumns(), ", ") + `
		FROM ` + dashboardTable + `
		WHERE organization_id = $1
		  AND batch_time = (
		      SELECT max(batch_time) FROM ` + dashboardTable + ` WHERE organization_id = $1
		  )
		ORDER BY business_unit_name, business_process_name,
		         asset_name NULLS FIRST, asset_id NULLS FIRST,
		         risk_scenario_name NULLS FIRST, risk_scenario_id NULLS FIRST`
}
