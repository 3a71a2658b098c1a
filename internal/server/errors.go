package server

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/matzehuels/stackrank/pkg/errors"
)

type errorBody struct {
	Code    apperrors.Code `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// statusFor maps an error code to an HTTP status.
func statusFor(code apperrors.Code) int {
	switch code {
	case apperrors.ErrCodeInvalidInput, apperrors.ErrCodeInvalidEcosystem,
		apperrors.ErrCodeInvalidPackage, apperrors.ErrCodeInvalidQuery:
		return http.StatusBadRequest
	case apperrors.ErrCodeNotFound, apperrors.ErrCodePackageNotFound, apperrors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeNetwork:
		return http.StatusBadGateway
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var coded *apperrors.Error
	if !errors.As(err, &coded) {
		coded = apperrors.Wrap(apperrors.ErrCodeInternal, err, "internal error")
	}
	status := statusFor(coded.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: errorBody{
		Code:    coded.Code,
		Message: apperrors.UserMessage(coded),
		Hint:    apperrors.Hint(coded),
	}})
}

func badRequest(format string, args ...any) error {
	return apperrors.New(apperrors.ErrCodeInvalidInput, format, args...)
}
