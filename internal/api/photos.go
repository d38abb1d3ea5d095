package api

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/fieldstock/internal/imaging"
	"github.com/erazemk/fieldstock/internal/media"
)

// multipartOverhead leaves room for form fields next to the photo itself.
const multipartOverhead = 1 << 20

// PhotosHandler uploads and serves evidence photos.
type PhotosHandler struct {
	Media media.Store
}

// Upload handles POST /api/photos (multipart field "photo") and returns the
// reference to attach to a usage claim or courier receipt.
func (h *PhotosHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}

	ref, ok := uploadPhoto(w, r, h.Media)
	if !ok {
		return
	}
	if ref == "" {
		validationError(w, "photo required")
		return
	}

	jsonResponse(w, http.StatusCreated, map[string]string{"ref": ref})
}

// Get handles GET /api/photos/{ref}.
func (h *PhotosHandler) Get(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := h.Media.Get(r.Context(), r.PathValue("ref"))
	if errors.Is(err, media.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "photo not found")
		return
	}
	if err != nil {
		slog.Error("failed to get photo", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get photo")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// parseMultipart parses a multipart body capped at the photo upload limit,
// writing a 400 on failure.
func parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	if !isMultipart(r) {
		jsonError(w, http.StatusBadRequest, "expected multipart/form-data")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return false
		}
		jsonError(w, http.StatusBadRequest, "invalid multipart form")
		return false
	}
	return true
}

// uploadPhoto stores the "photo" file of a parsed multipart form and returns
// its reference, or "" if the form has no photo.
func uploadPhoto(w http.ResponseWriter, r *http.Request, store media.Store) (string, bool) {
	file, _, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return "", true
	}
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid photo upload")
		return "", false
	}
	defer file.Close()

	photo, err := imaging.Process(file)
	if err != nil {
		switch {
		case errors.Is(err, imaging.ErrUnsupported):
			validationError(w, err.Error())
		case errors.Is(err, imaging.ErrTooLarge):
			jsonError(w, http.StatusRequestEntityTooLarge, err.Error())
		default:
			validationError(w, "invalid image")
		}
		return "", false
	}

	ref, err := store.Put(r.Context(), photo.Data, photo.MIME)
	if err != nil {
		slog.Error("failed to store photo", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to store photo")
		return "", false
	}
	return ref, true
}

// photoRef resolves the evidence for a request: an uploaded "photo" file
// takes precedence over a previously uploaded "photo_ref".
func photoRef(w http.ResponseWriter, r *http.Request, store media.Store, given string) (string, bool) {
	if r.MultipartForm != nil {
		ref, ok := uploadPhoto(w, r, store)
		if !ok {
			return "", false
		}
		if ref != "" {
			return ref, true
		}
	}

	given = strings.TrimSpace(given)
	if given == "" {
		validationError(w, "photo required")
		return "", false
	}
	if !media.ValidRef(given) {
		validationError(w, "invalid photo reference")
		return "", false
	}
	return given, true
}
