// Package repository provides PostgreSQL access for the risk engine: the
// assessment tree loader, MITRE control metadata, organizations and the
// risk_dashboard_records reporting table.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/riskfabric/cyberrisk/pkg/database"
	"github.com/riskfabric/cyberrisk/pkg/models"
	"github.com/riskfabric/cyberrisk/pkg/telemetry"
)

// Repository provides database operations.
type Repository struct {
	db *database.DB
}

// New creates a new repository.
func New(db *database.DB) *Repository {
	return &Repository{db: db}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// classify maps driver errors onto the domain sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}
	return err
}

// =============================================================================
// Organizations
// =============================================================================

func getOrganization(ctx context.Context, q querier, id uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	err := q.QueryRow(ctx, `
		SELECT id, name, risk_appetite
		FROM organizations
		WHERE id = $1 AND NOT is_deleted
	`, id).Scan(&org.ID, &org.Name, &org.RiskAppetite)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidOrganization, id)
	}
	if err != nil {
		return nil, classify(err)
	}
	return &org, nil
}

// GetOrganization retrieves a non-deleted organization by ID.
func (r *Repository) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return getOrganization(ctx, r.db.Pool, id)
}

// ListOrganizations returns every non-deleted organization ordered by name.
func (r *Repository) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	ctx, span := telemetry.DatabaseSpan(ctx, "select", "organizations")
	defer span.End()

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, risk_appetite
		FROM organizations
		WHERE NOT is_deleted
		ORDER BY name, id
	`)
	if err != nil {
		span.SetError(err)
		return nil, classify(err)
	}

	orgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Organization, error) {
		var o models.Organization
		err := row.Scan(&o.ID, &o.Name, &o.RiskAppetite)
		return o, err
	})
	if err != nil {
		span.SetError(err)
		return nil, classify(err)
	}
	return orgs, nil
}

// =============================================================================
// MITRE control metadata
// =============================================================================

// ControlMetadata returns every metadata row for the given control ids.
func (r *Repository) ControlMetadata(ctx context.Context, controlIDs []string) (models.ControlMetadata, error) {
	ctx, span := telemetry.DatabaseSpan(ctx, "select", "mitre_controls")
	defer span.End()

	rows, err := r.db.Pool.Query(ctx, `
		SELECT control_id, technique_id, cia_mapping, control_priority, control_type
		FROM mitre_controls
		WHERE control_id = ANY($1)
		ORDER BY control_id, technique_id
	`, controlIDs)
	if err != nil {
		span.SetError(err)
		return nil, classify(err)
	}

	list, err := pgx.CollectRows(rows, pgx.RowToStructByPos[controlRow])
	if err != nil {
		span.SetError(err)
		return nil, classify(err)
	}
	span.SetAttribute("rows", len(list))
	return groupControls(list), nil
}

type controlRow struct {
	ControlID   string
	TechniqueID *string
	CIAMapping  []string
	Priority    *int32
	Type        *string
}

func groupControls(rows []controlRow) models.ControlMetadata {
	out := make(models.ControlMetadata)
	for _, r := range rows {
		mc := models.MitreControl{
			ControlID:  r.ControlID,
			CIAMapping: models.ParseCIAList(r.CIAMapping),
		}
		if r.TechniqueID != nil {
			mc.TechniqueID = *r.TechniqueID
		}
		if r.Priority != nil {
			mc.Priority = int(*r.Priority)
		}
		if r.Type != nil {
			mc.Type = *r.Type
		}
		out[r.ControlID] = append(out[r.ControlID], mc)
	}
	return out
}
