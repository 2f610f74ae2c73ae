package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/riskfabric/cyberrisk/pkg/models"
	"github.com/riskfabric/cyberrisk/pkg/telemetry"
)

// Row shapes of the bulk read. Fields are scanned by position.

type assessmentRow struct {
	ID               uuid.UUID
	BusinessUnitID   uuid.UUID
	BusinessUnitName string
	ModifiedAt       time.Time
}

type processRow struct {
	ID           uuid.UUID // assessment_processes.id
	AssessmentID uuid.UUID
	ProcessID    uuid.UUID // business_processes.id
	Name         string
}

type assetRow struct {
	ID         uuid.UUID
	ProcessRow uuid.UUID
	Name       string
	ModifiedAt time.Time
}

type answerRow struct {
	AssetID    uuid.UUID
	QuestionID uuid.UUID
	ControlIDs []string
	Response   *float64
}

type scenarioRow struct {
	ID         uuid.UUID
	ProcessRow uuid.UUID
	Name       string
	CIAMapping []string
}

type taxonomyRow struct {
	ScenarioID uuid.UUID
	Category   string
	Level      *string
	MinRange   *string
	MaxRange   *string
	Weight     *float64
}

// assessmentQuery builds the selection query. Active mode keeps the most
// recently modified assessment of each business unit, ties broken by the
// larger id.
func assessmentQuery(orgID uuid.UUID, sel models.Selection) (string, []any) {
	base := `
		SELECT a.id, a.business_unit_id, bu.name, a.modified_date
		FROM assessments a
		JOIN business_units bu ON bu.id = a.business_unit_id
		WHERE a.organization_id = $1 AND NOT a.is_deleted`

	switch sel.Mode {
	case models.SelectIDs:
		return base + ` AND a.id = ANY($2)
		ORDER BY bu.name, a.id`, []any{orgID, sel.AssessmentIDs}
	case models.SelectAll:
		return base + `
		ORDER BY bu.name, a.id`, []any{orgID}
	default:
		return latestPerBusinessUnitSQL, []any{orgID}
	}
}

const latestPerBusinessUnitSQL = `
		SELECT id, business_unit_id, business_unit_name, modified_date
		FROM (
			SELECT a.id, a.business_unit_id, bu.name AS business_unit_name, a.modified_date,
			       ROW_NUMBER() OVER (
			           PARTITION BY a.business_unit_id
			           ORDER BY a.modified_date DESC, a.id DESC
			       ) AS rn
			FROM assessments a
			JOIN business_units bu ON bu.id = a.business_unit_id
			WHERE a.organization_id = $1 AND NOT a.is_deleted
		) ranked
		WHERE rn = 1
		ORDER BY business_unit_name, id`

const (
	processesSQL = `
		SELECT ap.id, ap.assessment_id, bp.id, bp.name
		FROM assessment_processes ap
		JOIN business_processes bp ON bp.id = ap.business_process_id
		WHERE ap.assessment_id = ANY($1) AND NOT ap.is_deleted
		ORDER BY ap.assessment_id, bp.name, bp.id`

	assetsSQL = `
		SELECT id, assessment_process_id, name, modified_date
		FROM assets
		WHERE assessment_process_id = ANY($1) AND NOT is_deleted
		ORDER BY assessment_process_id, name, id`

	answersSQL = `
		SELECT asset_id, question_id, mitre_control_ids, response
		FROM questionnaire_answers
		WHERE asset_id = ANY($1) AND NOT is_deleted
		ORDER BY asset_id, question_id`

	scenariosSQL = `
		SELECT id, assessment_process_id, name, cia_mapping
		FROM risk_scenarios
		WHERE assessment_process_id = ANY($1) AND NOT is_deleted
		ORDER BY assessment_process_id, name, id`

	taxonomiesSQL = `
		SELECT risk_scenario_id, category, level, min_range, max_range, weight
		FROM risk_taxonomies
		WHERE risk_scenario_id = ANY($1) AND NOT is_deleted
		ORDER BY risk_scenario_id, category, id`
)

func collect[T any](ctx context.Context, q querier, sql string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[T])
}

// LoadTree reads an organization's non-deleted assessment tree in a single
// read-only snapshot.
func (r *Repository) LoadTree(ctx context.Context, orgID uuid.UUID, sel models.Selection) (*models.AssessmentTree, error) {
	ctx, span := telemetry.DatabaseSpan(ctx, "select", "assessments")
	defer span.End()

	var tree *models.AssessmentTree
	err := r.db.WithSnapshot(ctx, func(tx pgx.Tx) error {
		var err error
		tree, err = loadTree(ctx, tx, orgID, sel)
		return err
	})
	if err != nil {
		span.SetError(err)
		return nil, classify(err)
	}
	span.SetAttribute("assessments", len(tree.Assessments))
	return tree, nil
}

func loadTree(ctx context.Context, q querier, orgID uuid.UUID, sel models.Selection) (*models.AssessmentTree, error) {
	org, err := getOrganization(ctx, q, orgID)
	if err != nil {
		return nil, err
	}

	sql, args := assessmentQuery(orgID, sel)
	assessments, err := collect[assessmentRow](ctx, q, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessments: %w", err)
	}
	if len(assessments) == 0 {
		return &models.AssessmentTree{Organization: *org}, nil
	}

	processes, err := collect[processRow](ctx, q, processesSQL, idsOf(assessments, func(a assessmentRow) uuid.UUID { return a.ID }))
	if err != nil {
		return nil, fmt.Errorf("failed to query processes: %w", err)
	}
	processIDs := idsOf(processes, func(p processRow) uuid.UUID { return p.ID })

	assets, err := collect[assetRow](ctx, q, assetsSQL, processIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}

	answers, err := collect[answerRow](ctx, q, answersSQL, idsOf(assets, func(a assetRow) uuid.UUID { return a.ID }))
	if err != nil {
		return nil, fmt.Errorf("failed to query questionnaire answers: %w", err)
	}

	scenarios, err := collect[scenarioRow](ctx, q, scenariosSQL, processIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk scenarios: %w", err)
	}

	taxonomies, err := collect[taxonomyRow](ctx, q, taxonomiesSQL, idsOf(scenarios, func(s scenarioRow) uuid.UUID { return s.ID }))
	if err != nil {
		return nil, fmt.Errorf("failed to query risk taxonomies: %w", err)
	}

	return assembleTree(*org, assessments, processes, assets, answers, scenarios, taxonomies), nil
}

func idsOf[T any](rows []T, id func(T) uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		out[i] = id(r)
	}
	return out
}

// assembleTree nests the flat row sets. Children keep their row order;
// rows whose parent is missing are dropped.
func assembleTree(
	org models.Organization,
	assessments []assessmentRow,
	processes []processRow,
	assets []assetRow,
	answers []answerRow,
	scenarios []scenarioRow,
	taxonomies []taxonomyRow,
) *models.AssessmentTree {
	answersByAsset := make(map[uuid.UUID][]models.QuestionnaireAnswer)
	for _, a := range answers {
		answersByAsset[a.AssetID] = append(answersByAsset[a.AssetID], models.QuestionnaireAnswer{
			QuestionID: a.QuestionID,
			ControlIDs: a.ControlIDs,
			Response:   a.Response,
		})
	}

	bandsByScenario := make(map[uuid.UUID][]models.SeverityBand)
	for _, t := range taxonomies {
		bandsByScenario[t.ScenarioID] = append(bandsByScenario[t.ScenarioID], models.SeverityBand{
			Category: models.SeverityCategory(strings.ToLower(strings.TrimSpace(t.Category))),
			Level:    deref(t.Level),
			MinRange: deref(t.MinRange),
			MaxRange: deref(t.MaxRange),
			Weight:   t.Weight,
		})
	}

	assetsByProcess := make(map[uuid.UUID][]models.Asset)
	for _, a := range assets {
		assetsByProcess[a.ProcessRow] = append(assetsByProcess[a.ProcessRow], models.Asset{
			ID:         a.ID,
			Name:       a.Name,
			ModifiedAt: a.ModifiedAt,
			Answers:    answersByAsset[a.ID],
		})
	}

	scenariosByProcess := make(map[uuid.UUID][]models.RiskScenario)
	for _, s := range scenarios {
		scenariosByProcess[s.ProcessRow] = append(scenariosByProcess[s.ProcessRow], models.RiskScenario{
			ID:         s.ID,
			Name:       s.Name,
			CIAMapping: models.ParseCIAList(s.CIAMapping),
			Taxonomy:   bandsByScenario[s.ID],
		})
	}

	processesByAssessment := make(map[uuid.UUID][]models.Process)
	for _, p := range processes {
		processesByAssessment[p.AssessmentID] = append(processesByAssessment[p.AssessmentID], models.Process{
			ID:            p.ProcessID,
			Name:          p.Name,
			Assets:        assetsByProcess[p.ID],
			RiskScenarios: scenariosByProcess[p.ID],
		})
	}

	tree := &models.AssessmentTree{
		Organization: org,
		Assessments:  make([]models.Assessment, 0, len(assessments)),
	}
	for _, a := range assessments {
		tree.Assessments = append(tree.Assessments, models.Assessment{
			ID:               a.ID,
			BusinessUnitID:   a.BusinessUnitID,
			BusinessUnitName: a.BusinessUnitName,
			ModifiedAt:       a.ModifiedAt,
			Processes:        processesByAssessment[a.ID],
		})
	}
	return tree
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
