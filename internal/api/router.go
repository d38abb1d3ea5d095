package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/fieldstock/internal/auth"
	"github.com/erazemk/fieldstock/internal/cache"
	"github.com/erazemk/fieldstock/internal/media"
	"github.com/erazemk/fieldstock/internal/model"
	"github.com/erazemk/fieldstock/internal/store"
)

// Options are the collaborators the API is built from. Media defaults to
// blobs in DB and Locations to a disabled cache.
type Options struct {
	DB          *sql.DB
	Tokens      *auth.Tokens
	Media       media.Store
	Locations   *cache.Locations
	UsagePolicy store.UsagePolicy
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(opts Options) http.Handler {
	db := opts.DB
	photos := opts.Media
	if photos == nil {
		photos = &media.SQLiteStore{DB: db}
	}
	locations := opts.Locations
	if locations == nil {
		locations = cache.NewLocations(nil, "")
	}

	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, Tokens: opts.Tokens}
	usersHandler := &UsersHandler{DB: db, Locations: locations}
	stockHandler := &StockHandler{DB: db}
	membersHandler := &MembersHandler{DB: db}
	usageHandler := &UsageHandler{DB: db, Media: photos, Policy: opts.UsagePolicy}
	courierHandler := &CourierHandler{DB: db, Media: photos}
	locationsHandler := &LocationsHandler{DB: db, Cache: locations}
	photosHandler := &PhotosHandler{Media: photos}

	authMW := AuthMiddleware(opts.Tokens, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireWorker := RequireRole(model.RoleWorker)

	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }
	anyone := func(h http.HandlerFunc) http.Handler { return authMW(requireWorker(h)) }

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", anyone(authHandler.ChangePassword))
	mux.Handle("POST /api/auth/logout", anyone(authHandler.Logout))

	// Users (admin only).
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.Handle("POST /api/users", admin(usersHandler.Create))
	mux.Handle("GET /api/users/{id}", admin(usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", admin(usersHandler.Update))
	mux.Handle("PUT /api/users/{id}/password", admin(usersHandler.ResetPassword))
	mux.Handle("DELETE /api/users/{id}", admin(usersHandler.Delete))

	// Stock: read (all roles), write (admin).
	mux.Handle("GET /api/stock", anyone(stockHandler.List))
	mux.Handle("GET /api/stock/export", admin(stockHandler.Export))
	mux.Handle("POST /api/stock", admin(stockHandler.Create))
	mux.Handle("GET /api/stock/{id}", anyone(stockHandler.Get))
	mux.Handle("PUT /api/stock/{id}", admin(stockHandler.Update))
	mux.Handle("DELETE /api/stock/{id}", admin(stockHandler.Delete))
	mux.Handle("POST /api/stock/{id}/adjust", admin(stockHandler.Adjust))
	mux.Handle("GET /api/stock/{id}/history", admin(stockHandler.History))

	// Members (admin).
	mux.Handle("GET /api/members", admin(membersHandler.List))
	mux.Handle("GET /api/members/{id}", admin(membersHandler.Get))
	mux.Handle("PUT /api/members/{id}/assignments", admin(membersHandler.SetAssignment))
	mux.Handle("PUT /api/members/{id}/assignments/override", admin(membersHandler.OverrideAssignment))
	mux.Handle("POST /api/members/{id}/assignments/adjust", admin(membersHandler.AdjustAssignment))
	mux.Handle("GET /api/members/{id}/locations", admin(membersHandler.Locations))
	mux.Handle("GET /api/members/{id}/movements", admin(membersHandler.Movements))

	// Self.
	mux.Handle("GET /api/profile", anyone(membersHandler.Profile))
	mux.Handle("GET /api/assignments", anyone(membersHandler.MyAssignments))

	// Usage.
	mux.Handle("POST /api/usage", anyone(usageHandler.Submit))
	mux.Handle("GET /api/usage/history", anyone(usageHandler.History))
	mux.Handle("GET /api/usage/pending", admin(usageHandler.Pending))
	mux.Handle("POST /api/usage/{id}/approve", admin(usageHandler.Approve))

	// Courier.
	mux.Handle("POST /api/courier", admin(courierHandler.Create))
	mux.Handle("GET /api/courier", admin(courierHandler.List))
	mux.Handle("GET /api/courier/approvals", admin(courierHandler.Approvals))
	mux.Handle("GET /api/courier/mine", anyone(courierHandler.Mine))
	mux.Handle("GET /api/courier/{id}", anyone(courierHandler.Get))
	mux.Handle("POST /api/courier/{id}/send", admin(courierHandler.Send))
	mux.Handle("POST /api/courier/{id}/receive", anyone(courierHandler.Receive))
	mux.Handle("POST /api/courier/{id}/approve", admin(courierHandler.Approve))
	mux.Handle("POST /api/courier/{id}/reject", admin(courierHandler.Reject))

	// Locations.
	mux.Handle("POST /api/locations", anyone(locationsHandler.Save))
	mux.Handle("GET /api/locations/latest", admin(locationsHandler.Latest))

	// Photos.
	mux.Handle("POST /api/photos", anyone(photosHandler.Upload))
	mux.Handle("GET /api/photos/{ref}", anyone(photosHandler.Get))

	return mux
}
