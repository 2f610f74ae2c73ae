// Package export serializes dashboard records to flat files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/riskfabric/cyberrisk/pkg/models"
)

// column is one CSV column and how to render it.
type column struct {
	name  string
	value func(r *models.DashboardRecord) (string, error)
}

func text(f func(r *models.DashboardRecord) string) func(*models.DashboardRecord) (string, error) {
	return func(r *models.DashboardRecord) (string, error) { return f(r), nil }
}

func number(f func(r *models.DashboardRecord) *float64) func(*models.DashboardRecord) (string, error) {
	return func(r *models.DashboardRecord) (string, error) { return formatFloat(f(r)), nil }
}

func id(v uuid.UUID) string {
	if v == uuid.Nil {
		return ""
	}
	return v.String()
}

func projection(prefix string, p func(r *models.DashboardRecord) *models.Projection) []column {
	return []column{
		{prefix + "InherentRiskScore", number(func(r *models.DashboardRecord) *float64 { return p(r).InherentRiskScore })},
		{prefix + "InherentRiskLevel", text(func(r *models.DashboardRecord) string { return string(p(r).InherentRiskLevel) })},
		{prefix + "InherentImpact", number(func(r *models.DashboardRecord) *float64 { return p(r).InherentImpact })},
		{prefix + "ControlStrength", number(func(r *models.DashboardRecord) *float64 { return p(r).ControlStrength })},
		{prefix + "ResidualRiskScore", number(func(r *models.DashboardRecord) *float64 { return p(r).ResidualRiskScore })},
		{prefix + "ResidualRiskLevel", text(func(r *models.DashboardRecord) string { return string(p(r).ResidualRiskLevel) })},
		{prefix + "ResidualImpact", number(func(r *models.DashboardRecord) *float64 { return p(r).ResidualImpact })},
		{prefix + "TargetImpact", number(func(r *models.DashboardRecord) *float64 { return p(r).TargetImpact })},
		{prefix + "TargetControlStrength", number(func(r *models.DashboardRecord) *float64 { return p(r).TargetControlStrength })},
		{prefix + "TargetRiskScore", number(func(r *models.DashboardRecord) *float64 { return p(r).TargetRiskScore })},
		{prefix + "TargetRiskLevel", text(func(r *models.DashboardRecord) string { return string(p(r).TargetRiskLevel) })},
	}
}

var columns = buildColumns()

func buildColumns() []column {
	cols := []column{
		{"organizationId", text(func(r *models.DashboardRecord) string { return id(r.OrganizationID) })},
		{"organizationName", text(func(r *models.DashboardRecord) string { return r.OrganizationName })},
		{"assessmentId", text(func(r *models.DashboardRecord) string { return id(r.AssessmentID) })},
		{"businessUnitId", text(func(r *models.DashboardRecord) string { return id(r.BusinessUnitID) })},
		{"businessUnitName", text(func(r *models.DashboardRecord) string { return r.BusinessUnitName })},
		{"businessProcessId", text(func(r *models.DashboardRecord) string { return id(r.BusinessProcessID) })},
		{"businessProcessName", text(func(r *models.DashboardRecord) string { return r.BusinessProcessName })},
		{"assetId", text(func(r *models.DashboardRecord) string { return id(r.AssetKey()) })},
		{"assetName", text(func(r *models.DashboardRecord) string {
			if r.Asset == nil {
				return ""
			}
			return r.Asset.Name
		})},
		{"assetControls", assetControls},
		{"riskScenarioId", text(func(r *models.DashboardRecord) string { return id(r.ScenarioKey()) })},
		{"riskScenarioName", text(func(r *models.DashboardRecord) string {
			if r.Scenario == nil {
				return ""
			}
			return r.Scenario.Name
		})},
		{"riskScenarioCIAMapping", text(ciaMapping)},
		{"batchId", text(func(r *models.DashboardRecord) string { return id(r.BatchID) })},
		{"batchTime", text(func(r *models.DashboardRecord) string {
			if r.BatchTime.IsZero() {
				return ""
			}
			return r.BatchTime.UTC().Format(time.RFC3339Nano)
		})},
		{"financialImpact", number(func(r *models.DashboardRecord) *float64 { return r.FinancialImpact })},
		{"regulatoryImpact", number(func(r *models.DashboardRecord) *float64 { return r.RegulatoryImpact })},
		{"reputationalImpact", number(func(r *models.DashboardRecord) *float64 { return r.ReputationalImpact })},
		{"operationalImpact", number(func(r *models.DashboardRecord) *float64 { return r.OperationalImpact })},
		{"inherentFinancialExposure", number(func(r *models.DashboardRecord) *float64 { return r.InherentFinancialExposure })},
		{"overallImpactScore", number(func(r *models.DashboardRecord) *float64 { return r.OverallImpactScore })},
		{"inherentRiskLevel", text(func(r *models.DashboardRecord) string { return string(r.InherentRiskLevel) })},
		{"controlStrengthProcessToAsset", number(func(r *models.DashboardRecord) *float64 { return r.ControlStrengthProcessToAsset })},
		{"controlStrengthC", number(func(r *models.DashboardRecord) *float64 { return r.ControlStrengthC })},
		{"controlStrengthI", number(func(r *models.DashboardRecord) *float64 { return r.ControlStrengthI })},
		{"controlStrengthA", number(func(r *models.DashboardRecord) *float64 { return r.ControlStrengthA })},
	}
	cols = append(cols, projection("erm", func(r *models.DashboardRecord) *models.Projection { return &r.ERM })...)
	cols = append(cols, projection("business", func(r *models.DashboardRecord) *models.Projection { return &r.Business })...)
	cols = append(cols, projection("cio", func(r *models.DashboardRecord) *models.Projection { return &r.CIO })...)
	return cols
}

// Header returns the CSV column names in output order.
func Header() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.name
	}
	return out
}

func ciaMapping(r *models.DashboardRecord) string {
	if r.Scenario == nil {
		return ""
	}
	parts := make([]string, len(r.Scenario.CIAMapping))
	for i, c := range r.Scenario.CIAMapping {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

func assetControls(r *models.DashboardRecord) (string, error) {
	if r.Asset == nil {
		return "", nil
	}
	controls := r.Asset.Controls
	if controls == nil {
		controls = []models.ControlResponse{}
	}
	b, err := json.Marshal(controls)
	if err != nil {
		return "", fmt.Errorf("failed to encode asset controls: %w", err)
	}
	return string(b), nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, records []models.DashboardRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	row := make([]string, len(columns))
	for i := range records {
		for j, c := range columns {
			v, err := c.value(&records[i])
			if err != nil {
				return fmt.Errorf("record %d column %s: %w", i, c.name, err)
			}
			row[j] = v
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
