package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/stockwarden/internal/domain"
	"github.com/prn-tf/stockwarden/internal/service"
)

// ProductHandler serves the catalog.
type ProductHandler struct {
	inventory *service.InventoryService
	logger    zerolog.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(inventory *service.InventoryService, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		inventory: inventory,
		logger:    logger.With().Str("handler", "product").Logger(),
	}
}

// RegisterRoutes registers product routes. viewer guards reads and manager guards writes.
func (h *ProductHandler) RegisterRoutes(r chi.Router, viewer, manager func(http.Handler) http.Handler) {
	r.With(viewer).Get("/", h.handleList)
	r.With(viewer).Get("/search", h.handleSearch)
	r.With(viewer).Get("/low-stock", h.handleLowStock)
	r.With(viewer).Get("/{id}", h.handleGet)

	r.With(manager).Post("/", h.handleCreate)
	r.With(manager).Put("/{id}", h.handleUpdate)
	r.With(manager).Delete("/{id}", h.handleDelete)
}

type createProductRequest struct {
	ID       string  `json:"id" validate:"required"`
	Name     string  `json:"name" validate:"required"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Supplier string  `json:"supplier"`

	// Date is YYYY-MM-DD. Empty means today.
	Date string `json:"date"`
}

type updateProductRequest struct {
	Price    *float64 `json:"price"`
	Quantity *int     `json:"quantity"`
}

type stockResponse struct {
	Product domain.Product `json:"product"`
	Alert   string         `json:"alert"`

	// AlertError reports a failed low-stock notification; the change stands.
	AlertError string `json:"alert_error,omitempty"`
}

type productListResponse struct {
	Products []domain.Product `json:"products"`
	Count    int              `json:"count"`
}

func (h *ProductHandler) handleList(w http.ResponseWriter, r *http.Request) {
	products, err := h.inventory.List(r.Context(), r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(products))
}

func (h *ProductHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	products := h.inventory.SearchByKeyword(r.Context(), r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, listResponse(products))
}

func (h *ProductHandler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listResponse(h.inventory.LowStock(r.Context())))
}

func (h *ProductHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.inventory.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	input := service.AddProductInput{
		ID:       req.ID,
		Name:     req.Name,
		Category: req.Category,
		Price:    req.Price,
		Quantity: req.Quantity,
		Supplier: req.Supplier,
	}
	if req.Date != "" {
		date, err := time.Parse(domain.DateLayout, req.Date)
		if err != nil {
			writeError(w, domain.NewDomainError(domain.ErrInvalidArgument, "date must be YYYY-MM-DD", req.Date))
			return
		}
		input.UpdatedAt = date
	}

	out, err := h.inventory.Add(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stockResponseFrom(out))
}

func (h *ProductHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	out, err := h.inventory.Update(r.Context(), service.UpdateProductInput{
		ID:       chi.URLParam(r, "id"),
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockResponseFrom(out))
}

func (h *ProductHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.inventory.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func listResponse(products []domain.Product) productListResponse {
	if products == nil {
		products = []domain.Product{}
	}
	return productListResponse{Products: products, Count: len(products)}
}

func stockResponseFrom(out *service.StockOutput) stockResponse {
	resp := stockResponse{Product: out.Product, Alert: out.Decision.String()}
	if out.AlertErr != nil {
		resp.AlertError = out.AlertErr.Error()
	}
	return resp
}
