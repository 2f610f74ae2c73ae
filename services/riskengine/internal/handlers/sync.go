package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/riskfabric/cyberrisk/pkg/logger"
	"github.com/riskfabric/cyberrisk/pkg/models"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/service"
)

// SyncHandler triggers dashboard runs.
type SyncHandler struct {
	svc *service.SyncService
	log *logger.Logger
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(svc *service.SyncService, log *logger.Logger) *SyncHandler {
	return &SyncHandler{
		svc: svc,
		log: log.WithComponent("sync-handler"),
	}
}

// SyncOrganization runs the pipeline for one organization and returns the
// run summary. Query parameters: mode (active, all, ids) and, for ids,
// assessmentIds as a comma-separated list.
func (h *SyncHandler) SyncOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDParam(w, r)
	if !ok {
		return
	}

	sel, err := parseSelection(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_selection", err.Error())
		return
	}

	res, err := h.svc.SyncOrg(r.Context(), orgID, sel, service.TriggerHTTP)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SyncAll runs the pipeline for every organization.
func (h *SyncHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.SyncAll(r.Context(), service.TriggerHTTP)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func orgIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "orgID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_organization_id", "organization id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseSelection(r *http.Request) (models.Selection, error) {
	q := r.URL.Query()
	sel := models.Selection{Mode: models.SelectionMode(strings.ToLower(q.Get("mode")))}

	if raw := q.Get("assessmentIds"); raw != "" {
		if sel.Mode == "" {
			sel.Mode = models.SelectIDs
		}
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return sel, fmt.Errorf("invalid assessment id %q", part)
			}
			sel.AssessmentIDs = append(sel.AssessmentIDs, id)
		}
	}

	if sel.Mode == "" {
		return sel, nil
	}
	return sel, sel.Validate()
}
