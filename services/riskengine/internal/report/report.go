// Package report shapes the latest dashboard batch of an organization into
// the chart and table views served by the API. Every function is a pure
// group-and-map over already computed records and keeps first-seen order.
package report

import (
	"github.com/google/uuid"

	"github.com/riskfabric/cyberrisk/pkg/models"
)

// View names accepted by Build.
const (
	ViewTable    = "table"
	ViewExposure = "exposure"
	ViewHeatmap  = "heatmap"
	ViewRadar    = "radar"
	ViewERM      = "erm"
	ViewBusiness = "business"
	ViewCIO      = "cio"
)

// Views lists every supported view.
var Views = []string{ViewTable, ViewExposure, ViewHeatmap, ViewRadar, ViewERM, ViewBusiness, ViewCIO}

// Build returns the named view, or false when the view is unknown.
func Build(view string, records []models.DashboardRecord) (any, bool) {
	switch view {
	case ViewTable:
		return Table(records), true
	case ViewExposure:
		return ExposureByProcess(records), true
	case ViewHeatmap:
		return HeatmapByBusinessUnit(records), true
	case ViewRadar:
		return RadarByBusinessUnit(records), true
	case ViewERM:
		return ERM(records), true
	case ViewBusiness:
		return Business(records), true
	case ViewCIO:
		return CIO(records), true
	}
	return nil, false
}

// TableRow is one dashboard row with scalar columns only.
type TableRow struct {
	BusinessUnit       string           `json:"businessUnit"`
	BusinessProcess    string           `json:"businessProcess"`
	Asset              string           `json:"asset,omitempty"`
	RiskScenario       string           `json:"riskScenario,omitempty"`
	CIAMapping         []models.CIA     `json:"ciaMapping,omitempty"`
	OverallImpactScore *float64         `json:"overallImpactScore"`
	FinancialExposure  *float64         `json:"inherentFinancialExposure"`
	InherentRiskLevel  models.RiskLevel `json:"inherentRiskLevel,omitempty"`
	ControlStrength    *float64         `json:"controlStrength"`
	ResidualRiskScore  *float64         `json:"residualRiskScore"`
	ResidualRiskLevel  models.RiskLevel `json:"residualRiskLevel,omitempty"`
	TargetRiskLevel    models.RiskLevel `json:"targetRiskLevel,omitempty"`
}

// Table flattens records for tabular display using the ERM projection.
func Table(records []models.DashboardRecord) []TableRow {
	out := make([]TableRow, 0, len(records))
	for i := range records {
		r := &records[i]
		row := TableRow{
			BusinessUnit:       r.BusinessUnitName,
			BusinessProcess:    r.BusinessProcessName,
			OverallImpactScore: r.OverallImpactScore,
			FinancialExposure:  r.InherentFinancialExposure,
			InherentRiskLevel:  r.InherentRiskLevel,
			ControlStrength:    r.ERM.ControlStrength,
			ResidualRiskScore:  r.ERM.ResidualRiskScore,
			ResidualRiskLevel:  r.ERM.ResidualRiskLevel,
			TargetRiskLevel:    r.ERM.TargetRiskLevel,
		}
		if r.Asset != nil {
			row.Asset = r.Asset.Name
		}
		if r.Scenario != nil {
			row.RiskScenario = r.Scenario.Name
			row.CIAMapping = r.Scenario.CIAMapping
		}
		out = append(out, row)
	}
	return out
}

// ProcessExposure is the Business-tab impact of one business process.
type ProcessExposure struct {
	BusinessUnitID      uuid.UUID        `json:"businessUnitId"`
	BusinessUnitName    string           `json:"businessUnitName"`
	BusinessProcessID   uuid.UUID        `json:"businessProcessId"`
	BusinessProcessName string           `json:"businessProcessName"`
	InherentImpact      *float64         `json:"inherentImpact"`
	ResidualImpact      *float64         `json:"residualImpact"`
	TargetImpact        *float64         `json:"targetImpact"`
	InherentRiskLevel   models.RiskLevel `json:"inherentRiskLevel,omitempty"`
	ResidualRiskLevel   models.RiskLevel `json:"residualRiskLevel,omitempty"`
}

type processKey struct{ bu, bp uuid.UUID }

// ExposureByProcess returns one entry per (business unit, business process).
func ExposureByProcess(records []models.DashboardRecord) []ProcessExposure {
	seen := make(map[processKey]bool)
	var out []ProcessExposure
	for i := range records {
		r := &records[i]
		k := processKey{r.BusinessUnitID, r.BusinessProcessID}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, ProcessExposure{
			BusinessUnitID:      r.BusinessUnitID,
			BusinessUnitName:    r.BusinessUnitName,
			BusinessProcessID:   r.BusinessProcessID,
			BusinessProcessName: r.BusinessProcessName,
			InherentImpact:      r.Business.InherentImpact,
			ResidualImpact:      r.Business.ResidualImpact,
			TargetImpact:        r.Business.TargetImpact,
			InherentRiskLevel:   r.Business.InherentRiskLevel,
			ResidualRiskLevel:   r.Business.ResidualRiskLevel,
		})
	}
	return out
}

// LevelCounts counts scenarios per risk level.
type LevelCounts map[models.RiskLevel]int

func newLevelCounts() LevelCounts {
	c := make(LevelCounts, len(models.RiskLevels))
	for _, l := range models.RiskLevels {
		c[l] = 0
	}
	return c
}

// BusinessUnitHeatmap counts the risk scenarios of a business unit by
// inherent and residual level.
type BusinessUnitHeatmap struct {
	BusinessUnitID   uuid.UUID   `json:"businessUnitId"`
	BusinessUnitName string      `json:"businessUnitName"`
	Inherent         LevelCounts `json:"inherent"`
	Residual         LevelCounts `json:"residual"`
}

// HeatmapByBusinessUnit counts ERM-level scenario rows per business unit.
// Rows without a scenario or without a level are not counted.
func HeatmapByBusinessUnit(records []models.DashboardRecord) []BusinessUnitHeatmap {
	index := make(map[uuid.UUID]int)
	var out []BusinessUnitHeatmap
	for i := range records {
		r := &records[i]
		pos, ok := index[r.BusinessUnitID]
		if !ok {
			pos = len(out)
			index[r.BusinessUnitID] = pos
			out = append(out, BusinessUnitHeatmap{
				BusinessUnitID:   r.BusinessUnitID,
				BusinessUnitName: r.BusinessUnitName,
				Inherent:         newLevelCounts(),
				Residual:         newLevelCounts(),
			})
		}
		if r.Scenario == nil {
			continue
		}
		if l := r.ERM.InherentRiskLevel; l.Rank() >= 0 {
			out[pos].Inherent[l]++
		}
		if l := r.ERM.ResidualRiskLevel; l.Rank() >= 0 {
			out[pos].Residual[l]++
		}
	}
	return out
}

// BusinessUnitRadar is the average C, I and A control strength of the
// distinct assets under a business unit.
type BusinessUnitRadar struct {
	BusinessUnitID   uuid.UUID `json:"businessUnitId"`
	BusinessUnitName string    `json:"businessUnitName"`
	Assets           int       `json:"assets"`
	C                *float64  `json:"c"`
	I                *float64  `json:"i"`
	A                *float64  `json:"a"`
}

// RadarByBusinessUnit averages control strength per business unit over
// distinct assets, so an asset shared by several scenarios counts once.
func RadarByBusinessUnit(records []models.DashboardRecord) []BusinessUnitRadar {
	type acc struct {
		radar   BusinessUnitRadar
		assets  map[uuid.UUID]bool
		c, i, a []*float64
	}
	index := make(map[uuid.UUID]*acc)
	var order []uuid.UUID

	for n := range records {
		r := &records[n]
		g, ok := index[r.BusinessUnitID]
		if !ok {
			g = &acc{
				radar:  BusinessUnitRadar{BusinessUnitID: r.BusinessUnitID, BusinessUnitName: r.BusinessUnitName},
				assets: make(map[uuid.UUID]bool),
			}
			index[r.BusinessUnitID] = g
			order = append(order, r.BusinessUnitID)
		}
		if r.Asset == nil || g.assets[r.Asset.ID] {
			continue
		}
		g.assets[r.Asset.ID] = true
		g.c = append(g.c, r.ControlStrengthC)
		g.i = append(g.i, r.ControlStrengthI)
		g.a = append(g.a, r.ControlStrengthA)
	}

	out := make([]BusinessUnitRadar, 0, len(order))
	for _, id := range order {
		g := index[id]
		g.radar.Assets = len(g.assets)
		g.radar.C = models.RoundPtr(models.MeanOf(g.c...), 2)
		g.radar.I = models.RoundPtr(models.MeanOf(g.i...), 2)
		g.radar.A = models.RoundPtr(models.MeanOf(g.a...), 2)
		out = append(out, g.radar)
	}
	return out
}

// ERMRow is the ERM projection of one risk scenario within a business process.
type ERMRow struct {
	BusinessUnitName    string            `json:"businessUnitName"`
	BusinessProcessName string            `json:"businessProcessName"`
	RiskScenarioID      uuid.UUID         `json:"riskScenarioId"`
	RiskScenarioName    string            `json:"riskScenarioName"`
	CIAMapping          []models.CIA      `json:"ciaMapping"`
	Projection          models.Projection `json:"projection"`
}

// ERM returns one row per (business unit, business process, risk scenario).
func ERM(records []models.DashboardRecord) []ERMRow {
	type key struct{ bu, bp, sc uuid.UUID }
	seen := make(map[key]bool)
	var out []ERMRow
	for i := range records {
		r := &records[i]
		if r.Scenario == nil {
			continue
		}
		k := key{r.BusinessUnitID, r.BusinessProcessID, r.Scenario.ID}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, ERMRow{
			BusinessUnitName:    r.BusinessUnitName,
			BusinessProcessName: r.BusinessProcessName,
			RiskScenarioID:      r.Scenario.ID,
			RiskScenarioName:    r.Scenario.Name,
			CIAMapping:          r.Scenario.CIAMapping,
			Projection:          r.ERM,
		})
	}
	return out
}

// BusinessRow is the Business projection of one business process.
type BusinessRow struct {
	BusinessUnitID      uuid.UUID         `json:"businessUnitId"`
	BusinessUnitName    string            `json:"businessUnitName"`
	BusinessProcessID   uuid.UUID         `json:"businessProcessId"`
	BusinessProcessName string            `json:"businessProcessName"`
	Projection          models.Projection `json:"projection"`
}

// Business returns one row per (business unit, business process).
func Business(records []models.DashboardRecord) []BusinessRow {
	seen := make(map[processKey]bool)
	var out []BusinessRow
	for i := range records {
		r := &records[i]
		k := processKey{r.BusinessUnitID, r.BusinessProcessID}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, BusinessRow{
			BusinessUnitID:      r.BusinessUnitID,
			BusinessUnitName:    r.BusinessUnitName,
			BusinessProcessID:   r.BusinessProcessID,
			BusinessProcessName: r.BusinessProcessName,
			Projection:          r.Business,
		})
	}
	return out
}

// CIORow is the CIO projection of one asset.
type CIORow struct {
	AssetID    uuid.UUID         `json:"assetId"`
	AssetName  string            `json:"assetName"`
	Projection models.Projection `json:"projection"`
}

// CIO returns one row per asset. Placeholder rows without an asset are skipped.
func CIO(records []models.DashboardRecord) []CIORow {
	seen := make(map[uuid.UUID]bool)
	var out []CIORow
	for i := range records {
		r := &records[i]
		if r.Asset == nil || seen[r.Asset.ID] {
			continue
		}
		seen[r.Asset.ID] = true
		out = append(out, CIORow{
			AssetID:    r.Asset.ID,
			AssetName:  r.Asset.Name,
			Projection: r.CIO,
		})
	}
	return out
}
