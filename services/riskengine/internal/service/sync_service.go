package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/riskfabric/cyberrisk/pkg/kafka"
	"github.com/riskfabric/cyberrisk/pkg/logger"
	"github.com/riskfabric/cyberrisk/pkg/models"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/metrics"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/pipeline"
)

// SyncConfig tunes a SyncService.
type SyncConfig struct {
	// RunTimeout bounds one organization's run. Zero means no bound.
	RunTimeout time.Duration

	// Concurrency caps parallel organizations in SyncAll.
	Concurrency int

	// DefaultMode is used when a trigger names no selection.
	DefaultMode models.SelectionMode

	// Topic receives risk.dashboard.refreshed events. Empty disables publishing.
	Topic string

	// Source is the event source name.
	Source string
}

// SyncService runs dashboard refreshes.
type SyncService struct {
	runner    Runner
	orgs      OrganizationRepository
	publisher EventPublisher
	metrics   *metrics.Metrics
	log       *logger.Logger
	config    SyncConfig
}

// NewSyncService creates a SyncService. publisher and m may be nil.
func NewSyncService(runner Runner, orgs OrganizationRepository, publisher EventPublisher, m *metrics.Metrics, log *logger.Logger, config SyncConfig) *SyncService {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.DefaultMode == "" {
		config.DefaultMode = models.SelectActive
	}
	if config.Source == "" {
		config.Source = "riskengine"
	}
	return &SyncService{
		runner:    runner,
		orgs:      orgs,
		publisher: publisher,
		metrics:   m,
		log:       log.WithComponent("sync"),
		config:    config,
	}
}

// DefaultSelection returns the configured selection for triggers that do not name one.
func (s *SyncService) DefaultSelection() models.Selection {
	return models.Selection{Mode: s.config.DefaultMode}
}

// SyncOrg refreshes the dashboard of one organization.
func (s *SyncService) SyncOrg(ctx context.Context, orgID uuid.UUID, sel models.Selection, trigger Trigger) (*models.RunResult, error) {
	if sel.Mode == "" {
		sel.Mode = s.config.DefaultMode
	}

	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := s.runner.Run(ctx, orgID, sel)
	if s.metrics != nil {
		s.metrics.ObserveRun(string(trigger), outcome(err), time.Since(start))
	}
	if err != nil {
		s.log.Warn("dashboard run failed",
			"org_id", orgID,
			"trigger", trigger,
			"error", err,
		)
		return nil, fmt.Errorf("sync organization %s: %w", orgID, err)
	}

	if s.metrics != nil {
		s.metrics.ObserveRecords(orgID.String(), res.Records, metrics.Skips{
			UnknownControls:  res.Stats.UnknownControls,
			NotApplicable:    res.Stats.NotApplicable,
			UnparsableRanges: res.Stats.UnparsableRanges,
			Placeholders:     res.Stats.Placeholders,
		})
	}

	s.publishRefreshed(ctx, res)

	out := res.RunResult
	return &out, nil
}

// publishRefreshed announces a completed run. The dashboard is already
// committed, so a failed publish is logged and not returned.
func (s *SyncService) publishRefreshed(ctx context.Context, res *pipeline.Result) {
	if s.publisher == nil || s.config.Topic == "" {
		return
	}

	event, err := kafka.NewEvent(EventDashboardRefreshed, s.config.Source, DashboardRefreshed{
		OrgID:     res.OrgID,
		RunID:     res.RunID,
		Mode:      res.Mode,
		Records:   res.Records,
		BatchTime: res.BatchTime.Format(time.RFC3339Nano),
	})
	if err == nil {
		err = s.publisher.PublishEvent(ctx, s.config.Topic, res.OrgID.String(), event)
	}
	if s.metrics != nil {
		s.metrics.ObserveEvent(err)
	}
	if err != nil {
		s.log.Error("failed to publish dashboard refreshed event",
			"org_id", res.OrgID,
			"run_id", res.RunID,
			"error", err,
		)
	}
}

// OrgFailure is one organization that failed in SyncAll.
type OrgFailure struct {
	OrgID   uuid.UUID `json:"orgId"`
	OrgName string    `json:"orgName"`
	Error   string    `json:"error"`

	Err error `json:"-"`
}

// SyncAllResult is the outcome of SyncAll.
type SyncAllResult struct {
	Runs     []models.RunResult `json:"runs"`
	Failures []OrgFailure       `json:"failures"`
	Duration time.Duration      `json:"duration"`
}

// SyncAll refreshes every organization with the default selection, at most
// Concurrency at a time. A failing organization does not stop the others;
// only failing to list organizations is returned as an error.
func (s *SyncService) SyncAll(ctx context.Context, trigger Trigger) (*SyncAllResult, error) {
	start := time.Now()

	orgs, err := s.orgs.ListOrganizations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}

	// Each goroutine writes only its own index.
	runs := make([]*models.RunResult, len(orgs))
	failed := make([]*OrgFailure, len(orgs))

	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)
	for i, org := range orgs {
		g.Go(func() error {
			res, err := s.SyncOrg(ctx, org.ID, s.DefaultSelection(), trigger)
			if err != nil {
				failed[i] = &OrgFailure{OrgID: org.ID, OrgName: org.Name, Error: err.Error(), Err: err}
				return nil
			}
			runs[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := &SyncAllResult{Duration: time.Since(start)}
	for i := range orgs {
		if runs[i] != nil {
			out.Runs = append(out.Runs, *runs[i])
		}
		if failed[i] != nil {
			out.Failures = append(out.Failures, *failed[i])
		}
	}

	s.log.Info("sync-all completed",
		"trigger", trigger,
		"organizations", len(orgs),
		"succeeded", len(out.Runs),
		"failed", len(out.Failures),
		"duration_ms", out.Duration.Milliseconds(),
	)
	return out, nil
}

// HandleAssessmentSubmitted is the Kafka handler for assessment.submitted.
// Events of other types are ignored. An unknown organization is logged and
// acknowledged since retrying cannot succeed.
func (s *SyncService) HandleAssessmentSubmitted(ctx context.Context, msg kafka.Message) error {
	var payload AssessmentSubmitted
	ev, err := kafka.DecodeEvent(msg.Value, &payload)
	if err != nil {
		s.log.Warn("dropping undecodable event", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}
	if ev.Type != EventAssessmentSubmitted {
		return nil
	}
	if payload.OrgID == uuid.Nil {
		s.log.Warn("dropping event without organization", "event_id", ev.ID)
		return nil
	}

	_, err = s.SyncOrg(ctx, payload.OrgID, s.DefaultSelection(), TriggerEvent)
	if errors.Is(err, models.ErrInvalidOrganization) {
		return nil
	}
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, models.ErrInvalidOrganization):
		return metrics.OutcomeInvalidOrganization
	case errors.Is(err, models.ErrInvalidSelection):
		return metrics.OutcomeInvalidSelection
	case errors.Is(err, models.ErrStoreUnavailable):
		return metrics.OutcomeStoreUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeError
	}
}
