package server

import (
	"context"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	gerrors "github.com/matzehuels/gadgethost/pkg/errors"
)

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	switch gerrors.GetCode(err) {
	case gerrors.ErrCodeInvalidInput, gerrors.ErrCodeInvalidURL, gerrors.ErrCodeUnsupportedFeature:
		return http.StatusBadRequest
	case gerrors.ErrCodeBlacklisted:
		return http.StatusForbidden
	case gerrors.ErrCodeNotFound:
		return http.StatusNotFound
	case gerrors.ErrCodeInvalidSpec:
		return http.StatusUnprocessableEntity
	case gerrors.ErrCodeSpecFetch:
		return http.StatusBadGateway
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := gerrors.UserMessage(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", chimw.GetReqID(r.Context()), "error", err)
		msg = "internal error"
		if code := gerrors.GetCode(err); code != "" {
			msg = gerrors.UserMessage(err)
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg + "\n"))
}
