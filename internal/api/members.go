package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/fieldstock/internal/model"
	"github.com/erazemk/fieldstock/internal/store"
)

// MembersHandler serves the admin view of workers and what they hold, plus
// the self-service profile endpoints.
type MembersHandler struct {
	DB *sql.DB
}

type setAssignmentRequest struct {
	ItemID   int64 `json:"item_id" validate:"required,gt=0"`
	Quantity int   `json:"quantity" validate:"min=0"`
}

type adjustAssignmentRequest struct {
	ItemID int64 `json:"item_id" validate:"required,gt=0"`
	Delta  int   `json:"delta" validate:"required"`
}

// List handles GET /api/members.
func (h *MembersHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := store.ListMembers(r.Context(), h.DB)
	if err != nil {
		storeError(w, err, "list members")
		return
	}
	jsonResponse(w, http.StatusOK, members)
}

// Get handles GET /api/members/{id}.
func (h *MembersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "member")
	if !ok {
		return
	}

	member, err := store.GetMember(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get member")
		return
	}
	if member == nil {
		jsonError(w, http.StatusNotFound, "member not found")
		return
	}
	jsonResponse(w, http.StatusOK, member)
}

// SetAssignment handles PUT /api/members/{id}/assignments. The difference to
// the current holding is taken from or returned to central stock.
func (h *MembersHandler) SetAssignment(w http.ResponseWriter, r *http.Request) {
	h.writeAssignment(w, r, false)
}

// OverrideAssignment handles PUT /api/members/{id}/assignments/override.
// Central stock is left untouched.
func (h *MembersHandler) OverrideAssignment(w http.ResponseWriter, r *http.Request) {
	h.writeAssignment(w, r, true)
}

func (h *MembersHandler) writeAssignment(w http.ResponseWriter, r *http.Request, override bool) {
	workerID, ok := pathID(w, r, "id", "member")
	if !ok {
		return
	}

	var req setAssignmentRequest
	if !decodeValid(w, r, &req) {
		return
	}

	claims := GetClaims(r.Context())
	set := store.SetAssignment
	if override {
		set = store.OverrideAssignment
	}
	a, err := set(r.Context(), h.DB, workerID, req.ItemID, req.Quantity, &claims.UserID)
	if err != nil {
		storeError(w, err, "set assignment")
		return
	}

	slog.Info("assignment set", "user", claims.Username, "worker_id", workerID,
		"item_id", req.ItemID, "quantity", req.Quantity, "override", override)
	jsonResponse(w, http.StatusOK, a)
}

// AdjustAssignment handles POST /api/members/{id}/assignments/adjust.
func (h *MembersHandler) AdjustAssignment(w http.ResponseWriter, r *http.Request) {
	workerID, ok := pathID(w, r, "id", "member")
	if !ok {
		return
	}

	var req adjustAssignmentRequest
	if !decodeValid(w, r, &req) {
		return
	}

	claims := GetClaims(r.Context())
	a, err := store.AdjustAssignment(r.Context(), h.DB, workerID, req.ItemID, req.Delta, &claims.UserID)
	if err != nil {
		storeError(w, err, "adjust assignment")
		return
	}

	slog.Info("assignment adjusted", "user", claims.Username, "worker_id", workerID,
		"item_id", req.ItemID, "delta", req.Delta, "assigned", a.AssignedQuantity)
	jsonResponse(w, http.StatusOK, a)
}

// Locations handles GET /api/members/{id}/locations?limit=.
func (h *MembersHandler) Locations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "member")
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			validationError(w, "invalid limit")
			return
		}
		limit = n
	}

	locations, err := store.ListLocationsForWorker(r.Context(), h.DB, id, limit)
	if err != nil {
		storeError(w, err, "list locations")
		return
	}
	if locations == nil {
		locations = []model.Location{}
	}
	jsonResponse(w, http.StatusOK, locations)
}

// Movements handles GET /api/members/{id}/movements.
func (h *MembersHandler) Movements(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "member")
	if !ok {
		return
	}

	movements, err := store.ListMovements(r.Context(), h.DB, 0, id)
	if err != nil {
		storeError(w, err, "list movements")
		return
	}
	if movements == nil {
		movements = []model.Movement{}
	}
	jsonResponse(w, http.StatusOK, movements)
}

// Profile handles GET /api/profile. Workers get their member view, admins
// their plain user record.
func (h *MembersHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	if claims.IsAdmin() {
		user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
		if err != nil {
			storeError(w, err, "get profile")
			return
		}
		if user == nil {
			jsonError(w, http.StatusNotFound, "user not found")
			return
		}
		jsonResponse(w, http.StatusOK, user)
		return
	}

	member, err := store.GetMember(r.Context(), h.DB, claims.UserID)
	if err != nil {
		storeError(w, err, "get profile")
		return
	}
	if member == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}
	jsonResponse(w, http.StatusOK, member)
}

// MyAssignments handles GET /api/assignments.
func (h *MembersHandler) MyAssignments(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	assignments, err := store.ListAssignmentsForWorker(r.Context(), h.DB, claims.UserID)
	if err != nil {
		storeError(w, err, "list assignments")
		return
	}
	if assignments == nil {
		assignments = []model.Assignment{}
	}
	jsonResponse(w, http.StatusOK, assignments)
}
