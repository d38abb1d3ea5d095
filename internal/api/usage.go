package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/fieldstock/internal/media"
	"github.com/erazemk/fieldstock/internal/model"
	"github.com/erazemk/fieldstock/internal/store"
)

// UsageHandler handles usage claims and their approval.
type UsageHandler struct {
	DB     *sql.DB
	Media  media.Store
	Policy store.UsagePolicy
}

type submitUsageRequest struct {
	ItemID   int64  `json:"item_id" validate:"required,gt=0"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
	PhotoRef string `json:"photo_ref"`
}

// readUsageRequest fills req from a multipart form (with an optional photo
// file) or a JSON body.
func readUsageRequest(w http.ResponseWriter, r *http.Request, req *submitUsageRequest) bool {
	if !isMultipart(r) {
		return decodeValid(w, r, req)
	}
	if !parseMultipart(w, r) {
		return false
	}

	var err error
	if req.ItemID, err = strconv.ParseInt(r.FormValue("item_id"), 10, 64); err != nil {
		validationError(w, "invalid item_id")
		return false
	}
	if req.Quantity, err = strconv.Atoi(r.FormValue("quantity")); err != nil {
		validationError(w, "invalid quantity")
		return false
	}
	req.PhotoRef = r.FormValue("photo_ref")
	return checkValid(w, req)
}

// Submit handles POST /api/usage. Only workers submit usage, for themselves.
func (h *UsageHandler) Submit(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims.Role != model.RoleWorker {
		jsonError(w, http.StatusForbidden, "only workers can submit usage")
		return
	}

	var req submitUsageRequest
	if !readUsageRequest(w, r, &req) {
		return
	}

	ref, ok := photoRef(w, r, h.Media, req.PhotoRef)
	if !ok {
		return
	}

	entry, err := store.SubmitUsage(r.Context(), h.DB, claims.UserID, req.ItemID, req.Quantity, ref)
	if err != nil {
		storeError(w, err, "submit usage")
		return
	}

	slog.Info("usage submitted", "user", claims.Username, "usage_id", entry.ID,
		"item", entry.ItemName, "quantity", entry.QuantityUsed)
	jsonResponse(w, http.StatusCreated, entry)
}

// History handles GET /api/usage/history. Admins may pass ?worker_id= to see
// another worker's history.
func (h *UsageHandler) History(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	workerID := claims.UserID

	if v := r.URL.Query().Get("worker_id"); v != "" {
		if !claims.IsAdmin() {
			jsonError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			validationError(w, "invalid worker_id")
			return
		}
		workerID = id
	}

	logs, err := store.ListUsageForWorker(r.Context(), h.DB, workerID)
	if err != nil {
		storeError(w, err, "list usage")
		return
	}
	if logs == nil {
		logs = []model.UsageLog{}
	}
	jsonResponse(w, http.StatusOK, logs)
}

// Pending handles GET /api/usage/pending.
func (h *UsageHandler) Pending(w http.ResponseWriter, r *http.Request) {
	logs, err := store.ListPendingUsage(r.Context(), h.DB)
	if err != nil {
		storeError(w, err, "list pending usage")
		return
	}
	if logs == nil {
		logs = []model.UsageLog{}
	}
	jsonResponse(w, http.StatusOK, logs)
}

// Approve handles POST /api/usage/{id}/approve.
func (h *UsageHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "usage")
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	entry, err := store.ApproveUsage(r.Context(), h.DB, id, &claims.UserID, h.Policy)
	if err != nil {
		storeError(w, err, "approve usage")
		return
	}

	slog.Info("usage approved", "user", claims.Username, "usage_id", entry.ID,
		"worker", entry.WorkerName, "item", entry.ItemName, "quantity", entry.QuantityUsed,
		"deduct_stock", h.Policy.DeductStock)
	jsonResponse(w, http.StatusOK, entry)
}
