package service

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/riskfabric/cyberrisk/pkg/models"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/export"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/report"
)

// DashboardService serves the latest dashboard batch of an organization.
type DashboardService struct {
	repo DashboardRepository
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(repo DashboardRepository) *DashboardService {
	return &DashboardService{repo: repo}
}

// Report returns the named view over the latest batch. Unknown views fail
// with models.ErrNotFound.
func (s *DashboardService) Report(ctx context.Context, orgID uuid.UUID, view string) (any, error) {
	if !isView(view) {
		return nil, fmt.Errorf("%w: report view %q", models.ErrNotFound, view)
	}

	records, err := s.repo.LatestDashboard(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("get dashboard: %w", err)
	}

	out, _ := report.Build(view, records)
	return out, nil
}

// ExportCSV writes the latest batch as CSV.
func (s *DashboardService) ExportCSV(ctx context.Context, orgID uuid.UUID, w io.Writer) (int, error) {
	records, err := s.repo.LatestDashboard(ctx, orgID)
	if err != nil {
		return 0, fmt.Errorf("get dashboard: %w", err)
	}
	if err := export.WriteCSV(w, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func isView(view string) bool {
	for _, v := range report.Views {
		if v == view {
			return true
		}
	}
	return false
}
