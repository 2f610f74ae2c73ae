package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/riskfabric/cyberrisk/pkg/models"
)

var (
	orgID      = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	buID       = uuid.MustParse("00000000-0000-0000-0000-0000000000b1")
	processID  = uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
	assetID    = uuid.MustParse("00000000-0000-0000-0000-0000000000d1")
	scenarioID = uuid.MustParse("00000000-0000-0000-0000-0000000000e1")
	baseTime   = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
)

func mitigation(id string, priority int, cia ...models.CIA) models.MitreControl {
	return models.MitreControl{ControlID: id, Priority: priority, Type: models.ControlTypeMitigation, CIAMapping: cia}
}

func answer(score *float64, controls ...string) models.QuestionnaireAnswer {
	return models.QuestionnaireAnswer{QuestionID: uuid.New(), ControlIDs: controls, Response: score}
}

func band(cat models.SeverityCategory, level, min, max string, weight float64) models.SeverityBand {
	return models.SeverityBand{Category: cat, Level: level, MinRange: min, MaxRange: max, Weight: models.Float(weight)}
}

// sampleTree is one business unit with one process, one asset and one
// scenario whose figures are easy to verify by hand:
//
//	asset C = OVERALL = 3.75
//	financial 2.0, regulatory 2.0, exposure 4.0, overall impact 3.5
func sampleTree() *models.AssessmentTree {
	return &models.AssessmentTree{
		Organization: models.Organization{ID: orgID, Name: "Acme", RiskAppetite: models.Float(1.0)},
		Assessments: []models.Assessment{{
			ID:               uuid.MustParse("00000000-0000-0000-0000-0000000000f1"),
			BusinessUnitID:   buID,
			BusinessUnitName: "Payments",
			ModifiedAt:       baseTime,
			Processes: []models.Process{{
				ID:   processID,
				Name: "Card settlement",
				Assets: []models.Asset{{
					ID:         assetID,
					Name:       "ledger-db",
					ModifiedAt: baseTime,
					Answers: []models.QuestionnaireAnswer{
						answer(models.Float(2), "M1"),
						answer(models.Float(1), "M2"),
					},
				}},
				RiskScenarios: []models.RiskScenario{{
					ID:         scenarioID,
					Name:       "Ledger exfiltration",
					CIAMapping: []models.CIA{models.CIAConfidentiality},
					Taxonomy: []models.SeverityBand{
						band(models.SeverityFinancial, "High", "1,000,000", "3,000,000", 1),
						band(models.SeverityRegulatory, "Moderate", "2000000", "2000000", 1),
					},
				}},
			}},
		}},
	}
}

func sampleMetadata() models.ControlMetadata {
	return models.ControlMetadata{
		"M1": {mitigation("M1", 2, models.CIAConfidentiality)},
		"M2": {mitigation("M2", 2, models.CIAConfidentiality)},
	}
}
