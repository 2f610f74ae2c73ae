package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskfabric/cyberrisk/pkg/logger"
	"github.com/riskfabric/cyberrisk/pkg/models"
	"github.com/riskfabric/cyberrisk/pkg/resilience"
)

type fakeStore struct {
	tree     *models.AssessmentTree
	loadErr  error
	writeErr error

	loads   int
	written map[uuid.UUID][]models.DashboardRecord
}

func (s *fakeStore) LoadTree(ctx context.Context, orgID uuid.UUID, sel models.Selection) (*models.AssessmentTree, error) {
	s.loads++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= 0 {
		return nil, ctx.Err()
	}
	return s.tree, nil
}

func (s *fakeStore) ReplaceDashboard(ctx context.Context, orgID uuid.UUID, records []models.DashboardRecord) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	if s.written == nil {
		s.written = make(map[uuid.UUID][]models.DashboardRecord)
	}
	s.written[orgID] = records
	return nil
}

type fakeMeta struct {
	meta  models.ControlMetadata
	err   error
	calls [][]string
}

func (m *fakeMeta) ControlMetadata(ctx context.Context, ids []string) (models.ControlMetadata, error) {
	m.calls = append(m.calls, ids)
	return m.meta, m.err
}

func newEngine(store Store, meta MetadataSource, b *resilience.Breaker) *Engine {
	return New(store, meta, b, logger.Nop(), Config{ReadTimeout: time.Second})
}

func TestCompute_SampleTree(t *testing.T) {
	batch := Batch{ID: uuid.New(), Time: baseTime}
	records, stats := Compute(sampleTree(), sampleMetadata(), batch)

	require.Len(t, records, 1)
	rec := records[0]

	assert.Equal(t, batch.ID, rec.BatchID)
	assert.Equal(t, 3.75, *rec.ControlStrengthProcessToAsset)
	assert.Equal(t, 3.75, *rec.ControlStrengthC)
	assert.Equal(t, 4.0, *rec.InherentFinancialExposure)
	assert.Equal(t, 3.5, *rec.OverallImpactScore)

	for name, p := range map[string]models.Projection{"erm": rec.ERM, "business": rec.Business, "cio": rec.CIO} {
		assert.InDelta(t, 1.05, *p.ResidualRiskScore, 1e-9, name)
		assert.InDelta(t, 1.2, *p.ResidualImpact, 1e-9, name)
		assert.Equal(t, 1.0, *p.TargetImpact, name)
		assert.InDelta(t, 3.75, *p.TargetControlStrength, 1e-9, name)
	}

	assert.Equal(t, Stats{Assessments: 1, Processes: 1, Records: 1, Assets: 1}, stats)
}

func TestCompute_Idempotent(t *testing.T) {
	batch := Batch{ID: uuid.New(), Time: baseTime}
	tree := richTree()

	first, _ := Compute(tree, sampleMetadata(), batch)
	second, _ := Compute(tree, sampleMetadata(), batch)
	assert.Equal(t, first, second)
}

func TestCompute_TargetNeverExceedsResidualOrAppetite(t *testing.T) {
	tree := richTree()
	appetite := *tree.Organization.RiskAppetite
	records, _ := Compute(tree, sampleMetadata(), Batch{})

	for _, rec := range records {
		for _, p := range []models.Projection{rec.ERM, rec.Business, rec.CIO} {
			if p.TargetImpact == nil {
				continue
			}
			require.NotNil(t, p.ResidualImpact)
			assert.Equal(t, *models.MinOf(p.ResidualImpact, &appetite), *p.TargetImpact)
		}
	}
}

func TestCompute_DuplicateAssetUsesLatestVersion(t *testing.T) {
	tree := sampleTree()
	stale := models.Asset{
		ID:         uuid.New(),
		Name:       "ledger-db",
		ModifiedAt: baseTime.Add(-24 * time.Hour),
		Answers:    []models.QuestionnaireAnswer{answer(models.Float(4), "M1")},
	}
	tree.Assessments = append(tree.Assessments, models.Assessment{
		ID:             uuid.New(),
		BusinessUnitID: uuid.New(),
		Processes: []models.Process{{
			ID:     uuid.New(),
			Assets: []models.Asset{stale},
		}},
	})

	records, stats := Compute(tree, sampleMetadata(), Batch{})
	require.Len(t, records, 2)
	assert.Equal(t, 1, stats.Assets)
	for _, rec := range records {
		assert.Equal(t, 3.75, *rec.ControlStrengthProcessToAsset)
	}
	assert.Equal(t, 1, stats.Placeholders)
}

// richTree has two business units, shared assets and placeholder rows.
func richTree() *models.AssessmentTree {
	tree := sampleTree()
	tree.Organization.RiskAppetite = models.Float(0.4)

	shared := tree.Assessments[0].Processes[0].Assets[0]
	scenario := tree.Assessments[0].Processes[0].RiskScenarios[0]
	scenario2 := models.RiskScenario{
		ID:         uuid.MustParse("00000000-0000-0000-0000-0000000000e2"),
		Name:       "Ransomware",
		CIAMapping: []models.CIA{models.CIAAvailability, models.CIAIntegrity},
		Taxonomy: []models.SeverityBand{
			band(models.SeverityFinancial, "Critical", "5,000,000", "7,000,000", 2),
			band(models.SeverityOperational, "High", "1000000", "3000000", 1),
			band(models.SeverityReputational, "Low", "500k", "", 1),
		},
	}

	tree.Assessments = append(tree.Assessments, models.Assessment{
		ID:               uuid.MustParse("00000000-0000-0000-0000-0000000000f2"),
		BusinessUnitID:   uuid.MustParse("00000000-0000-0000-0000-0000000000b2"),
		BusinessUnitName: "Retail",
		Processes: []models.Process{
			{
				ID:            uuid.MustParse("00000000-0000-0000-0000-0000000000c2"),
				Name:          "Checkout",
				Assets:        []models.Asset{shared},
				RiskScenarios: []models.RiskScenario{scenario, scenario2},
			},
			{
				ID:            uuid.MustParse("00000000-0000-0000-0000-0000000000c3"),
				Name:          "Returns",
				RiskScenarios: []models.RiskScenario{scenario2},
			},
		},
	})
	return tree
}

func TestEngine_Run(t *testing.T) {
	store := &fakeStore{tree: sampleTree()}
	meta := &fakeMeta{meta: sampleMetadata()}
	e := newEngine(store, meta, resilience.NewBreaker(nil))

	res, err := e.Run(context.Background(), orgID, models.Selection{Mode: models.SelectActive})
	require.NoError(t, err)

	assert.Equal(t, orgID, res.OrgID)
	assert.Equal(t, 1, res.Records)
	assert.Equal(t, models.SelectActive, res.Mode)
	assert.NotEqual(t, uuid.Nil, res.RunID)

	require.Len(t, store.written[orgID], 1)
	assert.Equal(t, res.RunID, store.written[orgID][0].BatchID)
	assert.Equal(t, [][]string{{"M1", "M2"}}, meta.calls)
}

func TestEngine_Run_InvalidSelection(t *testing.T) {
	store := &fakeStore{tree: sampleTree()}
	e := newEngine(store, &fakeMeta{}, nil)

	_, err := e.Run(context.Background(), orgID, models.Selection{Mode: models.SelectIDs})
	assert.ErrorIs(t, err, models.ErrInvalidSelection)
	assert.Equal(t, 0, store.loads)
}

func TestEngine_Run_InvalidOrganization(t *testing.T) {
	store := &fakeStore{loadErr: models.ErrInvalidOrganization}
	b := resilience.NewBreaker(&resilience.BreakerConfig{Name: "store", MaxFailures: 1})
	e := newEngine(store, &fakeMeta{}, b)

	_, err := e.Run(context.Background(), orgID, models.Selection{Mode: models.SelectAll})
	assert.ErrorIs(t, err, models.ErrInvalidOrganization)
	assert.Equal(t, resilience.StateClosed, b.State())
	assert.Nil(t, store.written)
}

func TestEngine_Run_ReadFailureWritesNothing(t *testing.T) {
	store := &fakeStore{tree: sampleTree()}
	meta := &fakeMeta{err: errors.New("connection refused")}
	e := newEngine(store, meta, nil)

	_, err := e.Run(context.Background(), orgID, models.Selection{Mode: models.SelectActive})
	require.Error(t, err)
	assert.Nil(t, store.written)
}

func TestEngine_Run_WriteFailure(t *testing.T) {
	store := &fakeStore{tree: sampleTree(), writeErr: errors.New("tx aborted")}
	e := newEngine(store, &fakeMeta{meta: sampleMetadata()}, nil)

	_, err := e.Run(context.Background(), orgID, models.Selection{Mode: models.SelectActive})
	assert.ErrorContains(t, err, "tx aborted")
}

func TestEngine_Run_OpenBreaker(t *testing.T) {
	store := &fakeStore{loadErr: errors.New("connection refused")}
	b := resilience.NewBreaker(&resilience.BreakerConfig{Name: "store", MaxFailures: 1, Timeout: time.Hour})
	e := newEngine(store, &fakeMeta{}, b)

	_, err := e.Run(context.Background(), orgID, models.Selection{Mode: models.SelectActive})
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrStoreUnavailable)

	_, err = e.Run(context.Background(), orgID, models.Selection{Mode: models.SelectActive})
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	assert.Equal(t, 1, store.loads)
}

func TestEngine_Run_NoControlsSkipsMetadata(t *testing.T) {
	tree := sampleTree()
	tree.Assessments[0].Processes[0].Assets[0].Answers = nil
	meta := &fakeMeta{}
	e := newEngine(&fakeStore{tree: tree}, meta, nil)

	res, err := e.Run(context.Background(), orgID, models.Selection{Mode: models.SelectActive})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Records)
	assert.Empty(t, meta.calls)
}
