package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/stockwarden/internal/service"
)

// ReportHandler serves catalog summaries and report delivery.
type ReportHandler struct {
	inventory *service.InventoryService
	reports   *service.ReportService
	logger    zerolog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(inventory *service.InventoryService, reports *service.ReportService, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		inventory: inventory,
		reports:   reports,
		logger:    logger.With().Str("handler", "report").Logger(),
	}
}

// RegisterRoutes registers report routes.
func (h *ReportHandler) RegisterRoutes(r chi.Router, viewer, manager func(http.Handler) http.Handler) {
	r.With(viewer).Get("/summary", h.handleSummary)
	r.With(manager).Post("/send", h.handleSend)
}

type sendReportRequest struct {
	Recipient string `json:"recipient"`
}

func (h *ReportHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.inventory.Summary(r.Context()))
}

// handleSend accepts an empty body, which sends to the default recipient.
func (h *ReportHandler) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendReportRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
	}

	out, err := h.reports.Send(r.Context(), service.SendReportInput{Recipient: req.Recipient})
	if err != nil {
		writeError(w, err)
		return
	}
	if out.DeliveryErr != nil {
		h.logger.Warn().Err(out.DeliveryErr).Str("location", out.Location).Msg("report archived but not delivered")
		writeError(w, out.DeliveryErr)
		return
	}

	writeJSON(w, http.StatusOK, out)
}
