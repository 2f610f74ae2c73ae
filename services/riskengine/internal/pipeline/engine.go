// Package pipeline turns an organization's assessment tree into dashboard
// records: flatten, score controls, translate impacts, then project at the
// ERM, Business and CIO granularities.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/riskfabric/cyberrisk/pkg/logger"
	"github.com/riskfabric/cyberrisk/pkg/models"
	"github.com/riskfabric/cyberrisk/pkg/resilience"
	"github.com/riskfabric/cyberrisk/pkg/telemetry"
)

// Store is the data store the engine reads from and writes to.
type Store interface {
	// LoadTree returns the non-deleted assessment tree of an organization.
	// It fails with models.ErrInvalidOrganization when the organization does not exist.
	LoadTree(ctx context.Context, orgID uuid.UUID, sel models.Selection) (*models.AssessmentTree, error)

	// ReplaceDashboard atomically replaces the organization's dashboard rows.
	ReplaceDashboard(ctx context.Context, orgID uuid.UUID, records []models.DashboardRecord) error
}

// MetadataSource returns MITRE control metadata for a set of control ids.
type MetadataSource interface {
	ControlMetadata(ctx context.Context, controlIDs []string) (models.ControlMetadata, error)
}

// Stats counts what a run processed and skipped.
type Stats struct {
	Assessments      int
	Processes        int
	Records          int
	Placeholders     int
	Assets           int
	UnknownControls  int
	NotApplicable    int
	UnparsableRanges int
}

// Batch identifies the rows written by one run.
type Batch struct {
	ID   uuid.UUID
	Time time.Time
}

// Compute runs every in-memory stage over a loaded tree. It is deterministic:
// the same tree, metadata and batch produce the same records.
func Compute(tree *models.AssessmentTree, meta models.ControlMetadata, batch Batch) ([]models.DashboardRecord, Stats) {
	var stats Stats
	stats.Assessments = len(tree.Assessments)
	for _, a := range tree.Assessments {
		stats.Processes += len(a.Processes)
	}

	flat := Flatten(tree)
	assets := LatestAssets(tree)
	scores := ScoreAssets(assets, meta, &stats)
	stats.Assets = len(assets)

	records := make([]models.DashboardRecord, len(flat))
	for i := range flat {
		rec := &records[i]
		rec.FlatAssessmentRecord = flat[i]
		rec.BatchID = batch.ID
		rec.BatchTime = batch.Time
		if rec.Asset == nil || rec.Scenario == nil {
			stats.Placeholders++
		}
		ApplyImpact(rec, &stats)
		ApplyControlStrength(rec, scores)
	}

	appetite := tree.Organization.RiskAppetite
	RollupERM(records, scores, appetite)
	RollupBusiness(records, appetite)
	RollupCIO(records, scores, appetite)

	stats.Records = len(records)
	return records, stats
}

// Config tunes an Engine.
type Config struct {
	// ReadTimeout bounds the bulk read. Zero means no bound beyond the caller's context.
	ReadTimeout time.Duration
}

// Engine runs the pipeline for one organization at a time. It holds no
// per-run state and may be shared across goroutines.
type Engine struct {
	store   Store
	meta    MetadataSource
	breaker *resilience.Breaker
	log     *logger.Logger
	config  Config
	now     func() time.Time
}

// New creates a pipeline engine. Store reads go through breaker when it is non-nil.
func New(store Store, meta MetadataSource, breaker *resilience.Breaker, log *logger.Logger, config Config) *Engine {
	return &Engine{
		store:   store,
		meta:    meta,
		breaker: breaker,
		log:     log.WithComponent("pipeline"),
		config:  config,
		now:     time.Now,
	}
}

// Result is the outcome of Engine.Run.
type Result struct {
	models.RunResult
	Stats Stats
}

// Run loads, computes and persists the dashboard of one organization. Read
// failures abort the run before anything is written; a failed write leaves
// the previous dashboard in place.
func (e *Engine) Run(ctx context.Context, orgID uuid.UUID, sel models.Selection) (*Result, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	start := e.now()
	batch := Batch{ID: uuid.New(), Time: start.UTC().Truncate(time.Microsecond)}

	ctx = logger.SetContextValue(ctx, logger.OrgIDKey, orgID.String())
	ctx = logger.SetContextValue(ctx, logger.RunIDKey, batch.ID.String())
	log := e.log.WithContext(ctx)

	ctx, span := telemetry.RunSpan(ctx, orgID.String(), batch.ID.String(), string(sel.Mode))
	var runErr error
	defer func() { span.Finish(runErr) }()

	tree, meta, err := e.load(ctx, orgID, sel)
	if err != nil {
		runErr = err
		return nil, err
	}

	_, cspan := telemetry.StageSpan(ctx, "compute")
	records, stats := Compute(tree, meta, batch)
	cspan.SetAttribute("records", len(records))
	cspan.Finish(nil)

	log.Debug("dashboard computed",
		"assessments", stats.Assessments,
		"processes", stats.Processes,
		"assets", stats.Assets,
		"records", stats.Records,
		"placeholders", stats.Placeholders,
		"unknown_controls", stats.UnknownControls,
		"not_applicable", stats.NotApplicable,
		"unparsable_ranges", stats.UnparsableRanges,
	)

	sctx, sspan := telemetry.StageSpan(ctx, "sink")
	err = e.store.ReplaceDashboard(sctx, orgID, records)
	sspan.Finish(err)
	if err != nil {
		runErr = fmt.Errorf("failed to write dashboard: %w", err)
		return nil, runErr
	}

	res := &Result{
		RunResult: models.RunResult{
			RunID:     batch.ID,
			OrgID:     orgID,
			Mode:      sel.Mode,
			Records:   len(records),
			BatchTime: batch.Time,
			Duration:  e.now().Sub(start),
		},
		Stats: stats,
	}
	log.Info("dashboard refreshed",
		"mode", sel.Mode,
		"records", res.Records,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Engine) load(ctx context.Context, orgID uuid.UUID, sel models.Selection) (*models.AssessmentTree, models.ControlMetadata, error) {
	ctx, span := telemetry.StageSpan(ctx, "load")
	var err error
	defer func() { span.Finish(err) }()

	if e.config.ReadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.ReadTimeout)
		defer cancel()
	}

	var tree *models.AssessmentTree
	tree, err = guardValue(ctx, e.breaker, func(ctx context.Context) (*models.AssessmentTree, error) {
		return e.store.LoadTree(ctx, orgID, sel)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load assessments: %w", err)
	}

	ids := ControlIDs(LatestAssets(tree))
	var meta models.ControlMetadata
	if len(ids) > 0 {
		meta, err = guardValue(ctx, e.breaker, func(ctx context.Context) (models.ControlMetadata, error) {
			return e.meta.ControlMetadata(ctx, ids)
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load control metadata: %w", err)
		}
	}
	span.SetAttribute("assessments", len(tree.Assessments))
	span.SetAttribute("control_ids", len(ids))
	return tree, meta, nil
}

// guardValue runs fn through the breaker. An open circuit surfaces as
// models.ErrStoreUnavailable. An invalid organization is a caller error and
// does not count against the store.
func guardValue[T any](ctx context.Context, b *resilience.Breaker, fn func(context.Context) (T, error)) (T, error) {
	if b == nil {
		return fn(ctx)
	}

	var invalid error
	out, err := resilience.Do(ctx, b, func(ctx context.Context) (T, error) {
		v, err := fn(ctx)
		if errors.Is(err, models.ErrInvalidOrganization) {
			invalid = err
			return v, nil
		}
		return v, err
	})
	if invalid != nil {
		var zero T
		return zero, invalid
	}
	if resilience.IsOpen(err) {
		return out, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}
	return out, err
}
