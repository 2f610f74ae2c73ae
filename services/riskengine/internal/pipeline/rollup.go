package pipeline

import (
	"github.com/google/uuid"

	"github.com/riskfabric/cyberrisk/pkg/models"
)

const (
	residualCeiling = 5.25
	residualDivisor = 5.0
	strengthScale   = 5.0
)

func residualFactor(strength float64) float64 {
	return (residualCeiling - strength) / residualDivisor
}

// Project derives residual and target figures from an inherent score and
// impact under the given control strength. With no control strength only
// the inherent fields are set. The target impact is the residual impact
// capped by the risk appetite; the target control strength is the strength
// that would bring the inherent impact down to it.
func Project(score, impact, strength, appetite *float64) models.Projection {
	p := models.Projection{
		InherentRiskScore: score,
		InherentRiskLevel: models.RiskLevelOf(score),
		InherentImpact:    impact,
		ControlStrength:   strength,
	}
	if strength == nil {
		return p
	}

	factor := residualFactor(*strength)
	if score != nil {
		p.ResidualRiskScore = models.Float(models.Round(*score*factor, 2))
		p.ResidualRiskLevel = models.RiskLevelOf(p.ResidualRiskScore)
	}
	if impact == nil {
		return p
	}
	p.ResidualImpact = models.Float(models.Round(*impact*factor, 1))
	p.TargetImpact = models.MinOf(p.ResidualImpact, appetite)

	ratio := models.Div(*p.TargetImpact*strengthScale, *impact)
	if ratio == nil {
		return p
	}
	target := strengthScale - *ratio
	p.TargetControlStrength = models.Float(models.Round(target, 2))
	if score != nil {
		p.TargetRiskScore = models.Float(models.Round(*score*residualFactor(target), 2))
		p.TargetRiskLevel = models.RiskLevelOf(p.TargetRiskScore)
	}
	return p
}

// ApplyControlStrength attaches the asset's control scores to a record.
func ApplyControlStrength(rec *models.DashboardRecord, scores map[string]models.AssetControlScore) {
	if rec.Asset == nil {
		return
	}
	s, ok := scores[rec.Asset.Name]
	if !ok {
		return
	}
	rec.ControlStrengthProcessToAsset = models.Float(s.Overall)
	rec.ControlStrengthC = models.Float(s.C)
	rec.ControlStrengthI = models.Float(s.I)
	rec.ControlStrengthA = models.Float(s.A)
}

// RollupERM projects every record on its own. Control strength is the
// asset's score for the first CIA letter of the scenario's mapping.
func RollupERM(records []models.DashboardRecord, scores map[string]models.AssetControlScore, appetite *float64) {
	for i := range records {
		rec := &records[i]
		var strength *float64
		if rec.Asset != nil && rec.Scenario != nil && len(rec.Scenario.CIAMapping) > 0 {
			if s, ok := scores[rec.Asset.Name]; ok {
				strength = models.Float(s.For(rec.Scenario.CIAMapping[0]))
			}
		}
		rec.ERM = Project(rec.OverallImpactScore, rec.InherentFinancialExposure, strength, appetite)
	}
}

type processKey struct {
	businessUnit uuid.UUID
	process      uuid.UUID
}

func processKeyOf(rec *models.DashboardRecord) processKey {
	return processKey{businessUnit: rec.BusinessUnitID, process: rec.BusinessProcessID}
}

// RollupBusiness projects each business unit and process group: the worst
// scenario's score and exposure against the mean control strength of the
// group's records.
func RollupBusiness(records []models.DashboardRecord, appetite *float64) {
	groups := make(map[processKey][]int)
	var order []processKey
	for i := range records {
		k := processKeyOf(&records[i])
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	for _, k := range order {
		idx := groups[k]
		scores := make([]*float64, 0, len(idx))
		impacts := make([]*float64, 0, len(idx))
		strengths := make([]*float64, 0, len(idx))
		for _, i := range idx {
			scores = append(scores, records[i].OverallImpactScore)
			impacts = append(impacts, records[i].InherentFinancialExposure)
			strengths = append(strengths, records[i].ControlStrengthProcessToAsset)
		}

		proj := Project(
			models.MaxOf(scores...),
			models.MaxOf(impacts...),
			models.RoundPtr(models.MeanOf(strengths...), 2),
			appetite,
		)
		for _, i := range idx {
			records[i].Business = proj
		}
	}
}

// RollupCIO projects each asset across the business processes it supports:
// the mean of the processes' business scores and the largest business
// impact, against the asset's overall control strength. Must run after
// RollupBusiness.
func RollupCIO(records []models.DashboardRecord, scores map[string]models.AssetControlScore, appetite *float64) {
	type agg struct {
		idx       []int
		processes map[processKey]struct{}
		scores    []*float64
		impacts   []*float64
	}
	groups := make(map[uuid.UUID]*agg)
	var order []uuid.UUID

	for i := range records {
		rec := &records[i]
		if rec.Asset == nil {
			continue
		}
		g, ok := groups[rec.Asset.ID]
		if !ok {
			g = &agg{processes: make(map[processKey]struct{})}
			groups[rec.Asset.ID] = g
			order = append(order, rec.Asset.ID)
		}
		g.idx = append(g.idx, i)

		k := processKeyOf(rec)
		if _, seen := g.processes[k]; seen {
			continue
		}
		g.processes[k] = struct{}{}
		g.scores = append(g.scores, rec.Business.InherentRiskScore)
		g.impacts = append(g.impacts, rec.Business.InherentImpact)
	}

	for _, id := range order {
		g := groups[id]
		var strength *float64
		if s, ok := scores[records[g.idx[0]].Asset.Name]; ok {
			strength = models.Float(s.Overall)
		}
		proj := Project(
			models.RoundPtr(models.MeanOf(g.scores...), 2),
			models.MaxOf(g.impacts...),
			strength,
			appetite,
		)
		for _, i := range g.idx {
			records[i].CIO = proj
		}
	}
}
