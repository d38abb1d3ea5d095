package api

import (
	"cmp"
	"database/sql"
	"log/slog"
	"net/http"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/erazemk/fieldstock/internal/cache"
	"github.com/erazemk/fieldstock/internal/model"
	"github.com/erazemk/fieldstock/internal/store"
)

// LocationsHandler records worker positions and serves the latest ones.
type LocationsHandler struct {
	DB    *sql.DB
	Cache *cache.Locations
}

type saveLocationRequest struct {
	Latitude  *decimal.Decimal `json:"latitude" validate:"required"`
	Longitude *decimal.Decimal `json:"longitude" validate:"required"`
}

// Save handles POST /api/locations. Workers report their own position.
func (h *LocationsHandler) Save(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims.Role != model.RoleWorker {
		jsonError(w, http.StatusForbidden, "only workers report locations")
		return
	}

	var req saveLocationRequest
	if !decodeValid(w, r, &req) {
		return
	}

	loc, err := store.SaveLocation(r.Context(), h.DB, claims.UserID, *req.Latitude, *req.Longitude)
	if err != nil {
		storeError(w, err, "save location")
		return
	}

	if err := h.Cache.Put(r.Context(), loc); err != nil {
		slog.Warn("failed to cache location", "user", claims.Username, "error", err)
	}

	jsonResponse(w, http.StatusCreated, loc)
}

// Latest handles GET /api/locations/latest: the newest position of every
// worker, served from the cache when it is complete.
func (h *LocationsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	locs, ok, err := h.Cache.All(ctx)
	if err != nil {
		slog.Warn("failed to read location cache", "error", err)
		ok = false
	}

	if !ok {
		locs, err = store.LatestLocations(ctx, h.DB)
		if err != nil {
			storeError(w, err, "list locations")
			return
		}
		if err := h.Cache.Fill(ctx, locs); err != nil {
			slog.Warn("failed to fill location cache", "error", err)
		}
	}

	if locs == nil {
		locs = []model.Location{}
	}
	slices.SortFunc(locs, func(a, b model.Location) int {
		return cmp.Or(cmp.Compare(a.WorkerName, b.WorkerName), cmp.Compare(a.WorkerID, b.WorkerID))
	})
	jsonResponse(w, http.StatusOK, locs)
}
