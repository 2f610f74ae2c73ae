package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/riskfabric/cyberrisk/pkg/logger"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/service"
)

// DashboardHandler serves report views over the latest dashboard batch.
type DashboardHandler struct {
	svc *service.DashboardService
	log *logger.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(svc *service.DashboardService, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		svc: svc,
		log: log.WithComponent("dashboard-handler"),
	}
}

// View returns one report view, named by the {view} path parameter.
func (h *DashboardHandler) View(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDParam(w, r)
	if !ok {
		return
	}

	out, err := h.svc.Report(r.Context(), orgID, chi.URLParam(r, "view"))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ExportCSV downloads the latest batch as CSV.
func (h *DashboardHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgIDParam(w, r)
	if !ok {
		return
	}

	// Buffered so a failure can still produce a JSON error.
	var buf bytes.Buffer
	n, err := h.svc.ExportCSV(r.Context(), orgID, &buf)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	filename := fmt.Sprintf("risk-dashboard-%s-%s.csv", orgID, time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("X-Record-Count", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
