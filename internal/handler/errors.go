package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"drivechat/internal/domain"
	"drivechat/internal/httputil"
)

// writeError maps an error to an RFC 7807 response. Typed domain errors
// carry their own status; stream failures map onto the gateway range;
// anything else is a 500 with the detail kept out of the response.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var httpErr domain.HTTPError
	if errors.As(err, &httpErr) {
		httputil.RespondError(w, httpErr.StatusCode(), httpErr.Error())
		return
	}

	var transport *domain.StreamTransportError
	var content *domain.StreamContentError
	var remote *domain.StreamRemoteError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrConflict):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, "forbidden")
	case errors.As(err, &transport), errors.As(err, &remote), errors.As(err, &content):
		httputil.RespondError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, domain.ErrStreamCancelled):
		// The client went away; there is nobody left to answer.
	default:
		logger.Error("unhandled error", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
