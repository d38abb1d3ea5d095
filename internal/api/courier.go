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

// CourierHandler handles courier shipments from creation to approval.
type CourierHandler struct {
	DB    *sql.DB
	Media media.Store
}

type manifestLineRequest struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

type createShipmentRequest struct {
	WorkerIDs []int64               `json:"worker_ids" validate:"required,min=1,max=500"`
	Items     []manifestLineRequest `json:"items" validate:"required,min=1,max=500,dive"`
}

type receiveShipmentRequest struct {
	Quantity int    `json:"received_quantity" validate:"required,gt=0"`
	PhotoRef string `json:"photo_ref"`
}

// Create handles POST /api/courier. One shipment is created per worker;
// the response reports what was applied or skipped for every entry.
func (h *CourierHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createShipmentRequest
	if !decodeValid(w, r, &req) {
		return
	}

	manifest := make([]model.ManifestLine, len(req.Items))
	for i, line := range req.Items {
		manifest[i] = model.ManifestLine{ItemID: line.ItemID, Quantity: line.Quantity}
	}

	claims := GetClaims(r.Context())
	results, err := store.CreateShipments(r.Context(), h.DB, req.WorkerIDs, manifest, &claims.UserID)
	if err != nil {
		storeError(w, err, "create shipments")
		return
	}

	created := 0
	for _, res := range results {
		if res.Applied {
			created++
		}
	}
	slog.Info("shipments created", "user", claims.Username, "requested", len(req.WorkerIDs), "created", created)

	status := http.StatusCreated
	if created == 0 {
		status = http.StatusOK
	}
	jsonResponse(w, status, map[string]any{"results": results})
}

// List handles GET /api/courier?status=.
func (h *CourierHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, model.ShipmentStatus(r.URL.Query().Get("status")))
}

// Approvals handles GET /api/courier/approvals: received shipments waiting
// for an admin decision.
func (h *CourierHandler) Approvals(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, model.ShipmentReceived)
}

func (h *CourierHandler) list(w http.ResponseWriter, r *http.Request, status model.ShipmentStatus) {
	shipments, err := store.ListShipments(r.Context(), h.DB, status)
	if err != nil {
		storeError(w, err, "list shipments")
		return
	}
	if shipments == nil {
		shipments = []model.Shipment{}
	}
	jsonResponse(w, http.StatusOK, shipments)
}

// Mine handles GET /api/courier/mine: the caller's shipments that have left
// the warehouse.
func (h *CourierHandler) Mine(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	shipments, err := store.ListShipmentsForWorker(r.Context(), h.DB, claims.UserID, false)
	if err != nil {
		storeError(w, err, "list shipments")
		return
	}
	if shipments == nil {
		shipments = []model.Shipment{}
	}
	jsonResponse(w, http.StatusOK, shipments)
}

// Get handles GET /api/courier/{id}. Workers only see their own shipments.
func (h *CourierHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "shipment")
	if !ok {
		return
	}

	s, err := store.GetShipment(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get shipment")
		return
	}

	claims := GetClaims(r.Context())
	if s == nil || (!claims.IsAdmin() && s.WorkerID != claims.UserID) {
		jsonError(w, http.StatusNotFound, "shipment not found")
		return
	}
	jsonResponse(w, http.StatusOK, s)
}

// Send handles POST /api/courier/{id}/send.
func (h *CourierHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "shipment")
	if !ok {
		return
	}

	s, err := store.SendShipment(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "send shipment")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("shipment sent", "user", claims.Username, "shipment_id", s.ID, "worker", s.WorkerName)
	jsonResponse(w, http.StatusOK, s)
}

// Receive handles POST /api/courier/{id}/receive. Only the worker the
// shipment is addressed to can confirm it, with a photo of the delivery.
func (h *CourierHandler) Receive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "shipment")
	if !ok {
		return
	}

	var req receiveShipmentRequest
	if isMultipart(r) {
		if !parseMultipart(w, r) {
			return
		}
		n, err := strconv.Atoi(r.FormValue("received_quantity"))
		if err != nil {
			validationError(w, "invalid received_quantity")
			return
		}
		req.Quantity = n
		req.PhotoRef = r.FormValue("photo_ref")
		if !checkValid(w, &req) {
			return
		}
	} else if !decodeValid(w, r, &req) {
		return
	}

	ref, ok := photoRef(w, r, h.Media, req.PhotoRef)
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	s, err := store.ReceiveShipment(r.Context(), h.DB, id, claims.UserID, req.Quantity, ref)
	if err != nil {
		storeError(w, err, "receive shipment")
		return
	}

	slog.Info("shipment received", "user", claims.Username, "shipment_id", s.ID, "quantity", req.Quantity)
	jsonResponse(w, http.StatusOK, s)
}

// Approve handles POST /api/courier/{id}/approve.
func (h *CourierHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "shipment")
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	s, err := store.ApproveShipment(r.Context(), h.DB, id, &claims.UserID)
	if err != nil {
		storeError(w, err, "approve shipment")
		return
	}

	slog.Info("shipment approved", "user", claims.Username, "shipment_id", s.ID,
		"worker", s.WorkerName, "lines", len(s.Lines))
	jsonResponse(w, http.StatusOK, s)
}

// Reject handles POST /api/courier/{id}/reject. The reserved stock is
// released back to central stock.
func (h *CourierHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "shipment")
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	s, err := store.RejectShipment(r.Context(), h.DB, id, &claims.UserID)
	if err != nil {
		storeError(w, err, "reject shipment")
		return
	}

	slog.Info("shipment rejected", "user", claims.Username, "shipment_id", s.ID, "worker", s.WorkerName)
	jsonResponse(w, http.StatusOK, s)
}
