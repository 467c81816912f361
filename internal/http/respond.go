package httpapp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cesargomez89/streampay/internal/app"
	"github.com/cesargomez89/streampay/internal/constants"
	"github.com/cesargomez89/streampay/internal/http/dto"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(msg, kind string, details map[string]string) dto.ErrorResponse {
	return dto.ErrorResponse{Error: msg, Kind: kind, Details: details}
}

// writeError reports err with the given status. Validation failures carry
// their field in details.
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	kind := app.ErrorKind(err)
	var details map[string]string
	var verr *app.ValidationError
	if errors.As(err, &verr) {
		details = map[string]string{verr.Field: verr.Message}
	}
	if kind == app.KindInternal {
		h.Logger.Error("Request failed", "error", err)
	}
	writeJSON(w, status, errorBody(err.Error(), kind, details))
}

// statusFor maps error kinds for the read and registration endpoints. The
// settlement operations always answer 500 on failure.
func statusFor(err error) int {
	switch app.ErrorKind(err) {
	case app.KindValidation:
		return constants.StatusBadRequest
	case app.KindNotFound:
		return constants.StatusNotFound
	case app.KindConflict:
		return constants.StatusConflict
	default:
		return constants.StatusInternalError
	}
}

func (h *Handler) writeValidation(w http.ResponseWriter, status int, errs []dto.ValidationError) {
	writeJSON(w, status, errorBody(dto.ToResponse(errs), app.KindValidation, dto.ToMap(errs)))
}

// decode reads a JSON body. An empty or malformed body is a validation error.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return &app.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}
