package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/fieldstock/internal/store"
)

// Error codes for failures that are not ledger errors.
const (
	codeBadRequest   = "bad_request"
	codeUnauthorized = "unauthorized"
	codeForbidden    = "forbidden"
	codeNotFound     = "not_found"
	codeConflict     = "conflict"
	codeInternal     = "internal"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response with a code derived from status.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, errorBody{Error: message, Code: statusCode(status)})
}

// validationError writes a 400 with the same code the ledger uses for
// validation failures, so clients see one code whichever layer rejected the
// input. Undecodable bodies keep codeBadRequest.
func validationError(w http.ResponseWriter, message string) {
	jsonResponse(w, http.StatusBadRequest, errorBody{Error: message, Code: string(store.KindValidation)})
}

func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return codeBadRequest
	case http.StatusUnauthorized:
		return codeUnauthorized
	case http.StatusForbidden:
		return codeForbidden
	case http.StatusNotFound:
		return codeNotFound
	case http.StatusConflict:
		return codeConflict
	default:
		return codeInternal
	}
}

// kindStatus maps ledger error kinds to HTTP statuses.
var kindStatus = map[store.ErrorKind]int{
	store.KindNotFound:               http.StatusNotFound,
	store.KindValidation:             http.StatusBadRequest,
	store.KindInsufficientStock:      http.StatusConflict,
	store.KindExceedsAssigned:        http.StatusConflict,
	store.KindAlreadyApproved:        http.StatusConflict,
	store.KindInvalidStateTransition: http.StatusConflict,
}

// storeError writes err as a response. Ledger errors keep their kind as the
// code; anything else is logged and reported as an internal error.
func storeError(w http.ResponseWriter, err error, action string) {
	var ledgerErr *store.Error
	if errors.As(err, &ledgerErr) {
		status, ok := kindStatus[ledgerErr.Kind]
		if !ok {
			status = http.StatusBadRequest
		}
		jsonResponse(w, status, errorBody{Error: ledgerErr.Error(), Code: string(ledgerErr.Kind)})
		return
	}

	slog.Error("failed to "+action, "error", err)
	jsonError(w, http.StatusInternalServerError, "failed to "+action)
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// pathID parses the {name} path segment as a positive ID, writing a 400 if
// it is not one.
func pathID(w http.ResponseWriter, r *http.Request, name, what string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		validationError(w, "invalid "+what+" id")
		return 0, false
	}
	return id, true
}
