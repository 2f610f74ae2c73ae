// Package mocks provides hand-written test doubles for the service interfaces.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/riskfabric/cyberrisk/pkg/kafka"
	"github.com/riskfabric/cyberrisk/pkg/models"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/pipeline"
)

// MockRunner is a mock implementation of service.Runner.
type MockRunner struct {
	mu    sync.Mutex
	calls []RunCall

	// Control behavior for testing
	RunFunc func(ctx context.Context, orgID uuid.UUID, sel models.Selection) (*pipeline.Result, error)
}

// RunCall records one Run invocation.
type RunCall struct {
	OrgID     uuid.UUID
	Selection models.Selection
}

// NewMockRunner creates a new MockRunner.
func NewMockRunner() *MockRunner {
	return &MockRunner{}
}

// Run records the call and returns a one-record result unless RunFunc is set.
func (m *MockRunner) Run(ctx context.Context, orgID uuid.UUID, sel models.Selection) (*pipeline.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, RunCall{OrgID: orgID, Selection: sel})
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, orgID, sel)
	}
	return &pipeline.Result{
		RunResult: models.RunResult{
			RunID:     uuid.New(),
			OrgID:     orgID,
			Mode:      sel.Mode,
			Records:   1,
			BatchTime: time.Now().UTC(),
		},
		Stats: pipeline.Stats{Records: 1},
	}, nil
}

// Calls returns the recorded calls.
func (m *MockRunner) Calls() []RunCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RunCall(nil), m.calls...)
}

// MockOrganizationRepository is a mock implementation of service.OrganizationRepository.
type MockOrganizationRepository struct {
	mu   sync.RWMutex
	orgs []models.Organization

	ListOrganizationsFunc func(ctx context.Context) ([]models.Organization, error)
}

// NewMockOrganizationRepository creates a new MockOrganizationRepository.
func NewMockOrganizationRepository() *MockOrganizationRepository {
	return &MockOrganizationRepository{}
}

// AddOrganization adds an organization to the mock.
func (m *MockOrganizationRepository) AddOrganization(org models.Organization) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgs = append(m.orgs, org)
}

// ListOrganizations returns the added organizations.
func (m *MockOrganizationRepository) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	if m.ListOrganizationsFunc != nil {
		return m.ListOrganizationsFunc(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Organization(nil), m.orgs...), nil
}

// MockDashboardRepository is a mock implementation of service.DashboardRepository.
type MockDashboardRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID][]models.DashboardRecord

	LatestDashboardFunc func(ctx context.Context, orgID uuid.UUID) ([]models.DashboardRecord, error)
}

// NewMockDashboardRepository creates a new MockDashboardRepository.
func NewMockDashboardRepository() *MockDashboardRepository {
	return &MockDashboardRepository{records: make(map[uuid.UUID][]models.DashboardRecord)}
}

// SetDashboard stores the rows returned for an organization.
func (m *MockDashboardRepository) SetDashboard(orgID uuid.UUID, records []models.DashboardRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[orgID] = records
}

// LatestDashboard returns the stored rows, or ErrInvalidOrganization for an unknown org.
func (m *MockDashboardRepository) LatestDashboard(ctx context.Context, orgID uuid.UUID) ([]models.DashboardRecord, error) {
	if m.LatestDashboardFunc != nil {
		return m.LatestDashboardFunc(ctx, orgID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	records, ok := m.records[orgID]
	if !ok {
		return nil, models.ErrInvalidOrganization
	}
	return records, nil
}

// PublishedEvent is one event captured by MockPublisher.
type PublishedEvent struct {
	Topic string
	Key   string
	Event kafka.Event
}

// MockPublisher is a mock implementation of service.EventPublisher.
type MockPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent

	PublishEventFunc func(ctx context.Context, topic, key string, event kafka.Event) error
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishEvent captures the event.
func (m *MockPublisher) PublishEvent(ctx context.Context, topic, key string, event kafka.Event) error {
	if m.PublishEventFunc != nil {
		return m.PublishEventFunc(ctx, topic, key, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, PublishedEvent{Topic: topic, Key: key, Event: event})
	return nil
}

// Events returns the captured events.
func (m *MockPublisher) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedEvent(nil), m.events...)
}
