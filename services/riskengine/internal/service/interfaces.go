// Package service contains the risk engine use cases: running the pipeline
// for one or every organization and reading the latest dashboard.
package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/riskfabric/cyberrisk/pkg/kafka"
	"github.com/riskfabric/cyberrisk/pkg/models"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/pipeline"
)

// Runner runs the pipeline for one organization.
type Runner interface {
	Run(ctx context.Context, orgID uuid.UUID, sel models.Selection) (*pipeline.Result, error)
}

// OrganizationRepository lists organizations.
type OrganizationRepository interface {
	ListOrganizations(ctx context.Context) ([]models.Organization, error)
}

// DashboardRepository reads persisted dashboard rows.
type DashboardRepository interface {
	LatestDashboard(ctx context.Context, orgID uuid.UUID) ([]models.DashboardRecord, error)
}

// EventPublisher publishes domain events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event kafka.Event) error
}

// Trigger names what started a run.
type Trigger string

const (
	TriggerHTTP     Trigger = "http"
	TriggerSchedule Trigger = "schedule"
	TriggerEvent    Trigger = "event"
	TriggerCLI      Trigger = "cli"
)

// Event types.
const (
	EventDashboardRefreshed  = "risk.dashboard.refreshed"
	EventAssessmentSubmitted = "assessment.submitted"
)

// DashboardRefreshed is the payload of a risk.dashboard.refreshed event.
type DashboardRefreshed struct {
	OrgID     uuid.UUID            `json:"orgId"`
	RunID     uuid.UUID            `json:"runId"`
	Mode      models.SelectionMode `json:"mode"`
	Records   int                  `json:"records"`
	BatchTime string               `json:"batchTime"`
}

// AssessmentSubmitted is the payload of an assessment.submitted event.
type AssessmentSubmitted struct {
	OrgID        uuid.UUID  `json:"orgId"`
	AssessmentID *uuid.UUID `json:"assessmentId,omitempty"`
}
