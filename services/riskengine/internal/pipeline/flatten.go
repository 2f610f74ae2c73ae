package pipeline

import (
	"github.com/riskfabric/cyberrisk/pkg/models"
)

// Flatten cross-joins every process's assets with its risk scenarios. A
// process with no assets or no scenarios still yields rows: the empty side
// is replaced by a single nil placeholder. Output order follows the tree.
func Flatten(tree *models.AssessmentTree) []models.FlatAssessmentRecord {
	var out []models.FlatAssessmentRecord

	for _, a := range tree.Assessments {
		for _, p := range a.Processes {
			assets := assetRefs(p.Assets)
			scenarios := scenarioRefs(p.RiskScenarios)

			for _, asset := range assets {
				for _, scenario := range scenarios {
					out = append(out, models.FlatAssessmentRecord{
						OrganizationID:      tree.Organization.ID,
						OrganizationName:    tree.Organization.Name,
						AssessmentID:        a.ID,
						BusinessUnitID:      a.BusinessUnitID,
						BusinessUnitName:    a.BusinessUnitName,
						BusinessProcessID:   p.ID,
						BusinessProcessName: p.Name,
						Asset:               asset,
						Scenario:            scenario,
					})
				}
			}
		}
	}
	return out
}

func assetRefs(assets []models.Asset) []*models.AssetRef {
	if len(assets) == 0 {
		return []*models.AssetRef{nil}
	}
	out := make([]*models.AssetRef, 0, len(assets))
	for _, a := range assets {
		out = append(out, &models.AssetRef{
			ID:         a.ID,
			Name:       a.Name,
			ModifiedAt: a.ModifiedAt,
			Controls:   controlResponses(a.Answers),
		})
	}
	return out
}

// controlResponses expands answers into one entry per referenced control id.
func controlResponses(answers []models.QuestionnaireAnswer) []models.ControlResponse {
	var out []models.ControlResponse
	for _, ans := range answers {
		for _, id := range ans.ControlIDs {
			if id == "" {
				continue
			}
			out = append(out, models.ControlResponse{ControlID: id, Score: ans.Response})
		}
	}
	return out
}

func scenarioRefs(scenarios []models.RiskScenario) []*models.ScenarioRef {
	if len(scenarios) == 0 {
		return []*models.ScenarioRef{nil}
	}
	out := make([]*models.ScenarioRef, 0, len(scenarios))
	for _, s := range scenarios {
		ref := &models.ScenarioRef{
			ID:         s.ID,
			Name:       s.Name,
			CIAMapping: s.CIAMapping,
		}
		for i := range s.Taxonomy {
			band := s.Taxonomy[i]
			switch band.Category {
			case models.SeverityFinancial:
				ref.Financial = firstBand(ref.Financial, band)
			case models.SeverityRegulatory:
				ref.Regulatory = firstBand(ref.Regulatory, band)
			case models.SeverityReputational:
				ref.Reputational = firstBand(ref.Reputational, band)
			case models.SeverityOperational:
				ref.Operational = firstBand(ref.Operational, band)
			}
		}
		out = append(out, ref)
	}
	return out
}

// firstBand keeps the first taxonomy row seen for a category.
func firstBand(cur *models.SeverityBand, band models.SeverityBand) *models.SeverityBand {
	if cur != nil {
		return cur
	}
	return &band
}
