package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/pinledger/internal/adapter/http/dto"
	"github.com/iho/pinledger/internal/domain"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// writeDomainError writes err with the status and kind its kind maps to.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	kind := domain.KindOf(err)
	writeJSON(w, mapDomainError(err), dto.ErrorResponse{
		Error:   message,
		Kind:    kind.String(),
		Message: err.Error(),
	})
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch domain.KindOf(err) {
	case domain.KindInvalidAmount, domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindAccountNotFound:
		return http.StatusNotFound
	case domain.KindFrozen, domain.KindInsufficientFunds:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// accountIDParam parses the {id} URL parameter.
func accountIDParam(r *http.Request) (int64, error) {
	return domain.ParseAccountID(chi.URLParam(r, "id"))
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
