package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/fieldstock/internal/model"
	"github.com/erazemk/fieldstock/internal/report"
	"github.com/erazemk/fieldstock/internal/store"
)

// StockHandler handles the central stock endpoints.
type StockHandler struct {
	DB *sql.DB
}

type createItemRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Quantity int    `json:"quantity" validate:"min=0"`
}

type updateItemRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=200"`
	Quantity *int    `json:"quantity" validate:"omitempty,min=0"`
}

type adjustItemRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// List handles GET /api/stock?q=&sort=.
func (h *StockHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	sortKey := query.Get("sort")
	if !store.ValidItemSort(sortKey) {
		validationError(w, "invalid sort key")
		return
	}

	items, err := store.SearchItems(r.Context(), h.DB, query.Get("q"), sortKey)
	if err != nil {
		storeError(w, err, "list stock")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/stock.
func (h *StockHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if !decodeValid(w, r, &req) {
		return
	}

	claims := GetClaims(r.Context())
	item, err := store.CreateItem(r.Context(), h.DB, req.Name, req.Quantity, &claims.UserID)
	if err != nil {
		storeError(w, err, "create item")
		return
	}

	slog.Info("item created", "user", claims.Username, "item", item.Name, "quantity", item.TotalQuantity)
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/stock/{id}.
func (h *StockHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "item")
	if !ok {
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get item")
		return
	}
	if item == nil || item.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/stock/{id}.
func (h *StockHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "item")
	if !ok {
		return
	}

	var req updateItemRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if req.Name == nil && req.Quantity == nil {
		validationError(w, "nothing to update")
		return
	}

	claims := GetClaims(r.Context())
	item, err := store.UpdateItem(r.Context(), h.DB, id, req.Name, req.Quantity, &claims.UserID)
	if err != nil {
		storeError(w, err, "update item")
		return
	}

	slog.Info("item updated", "user", claims.Username, "item", item.Name, "quantity", item.TotalQuantity)
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/stock/{id}.
func (h *StockHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "item")
	if !ok {
		return
	}

	if err := store.DeleteItem(r.Context(), h.DB, id); err != nil {
		storeError(w, err, "delete item")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("item deleted", "user", claims.Username, "item_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// Adjust handles POST /api/stock/{id}/adjust.
func (h *StockHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "item")
	if !ok {
		return
	}

	var req adjustItemRequest
	if !decodeValid(w, r, &req) {
		return
	}

	claims := GetClaims(r.Context())
	item, err := store.AdjustItemTotal(r.Context(), h.DB, id, req.Delta, &claims.UserID)
	if err != nil {
		storeError(w, err, "adjust stock")
		return
	}

	slog.Info("stock adjusted", "user", claims.Username, "item", item.Name, "delta", req.Delta, "total", item.TotalQuantity)
	jsonResponse(w, http.StatusOK, item)
}

// History handles GET /api/stock/{id}/history.
func (h *StockHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "item")
	if !ok {
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get item history")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	history, err := store.GetItemHistory(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get item history")
		return
	}
	if history == nil {
		history = []model.Movement{}
	}
	jsonResponse(w, http.StatusOK, history)
}

// Export handles GET /api/stock/export and streams an XLSX snapshot of stock
// and assignments.
func (h *StockHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, err := store.ListItems(ctx, h.DB)
	if err != nil {
		storeError(w, err, "export stock")
		return
	}
	totals, err := store.AssignedTotals(ctx, h.DB)
	if err != nil {
		storeError(w, err, "export stock")
		return
	}
	assignments, err := store.ListAllAssignments(ctx, h.DB)
	if err != nil {
		storeError(w, err, "export stock")
		return
	}

	now := time.Now().UTC()
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="stock-%s.xlsx"`, now.Format("20060102-150405")))

	snap := report.StockSnapshot{
		Items:       items,
		Assigned:    totals,
		Assignments: assignments,
		GeneratedAt: now,
	}
	if err := report.WriteStock(w, snap); err != nil {
		slog.Error("failed to write stock export", "error", err)
		return
	}

	claims := GetClaims(ctx)
	slog.Info("stock exported", "user", claims.Username, "items", len(items))
}
