package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Lllllllleong/rfqcompliance/internal/api/middleware"
	"github.com/Lllllllleong/rfqcompliance/internal/extract"
	"github.com/Lllllllleong/rfqcompliance/internal/invoker"
	"github.com/Lllllllleong/rfqcompliance/internal/logging"
	"github.com/Lllllllleong/rfqcompliance/internal/services"
	"github.com/Lllllllleong/rfqcompliance/internal/store"
)

// StatusFor maps a service error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, extract.ErrUnsupportedFormat), errors.Is(err, extract.ErrExtraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, invoker.ErrUpstreamUnavailable), errors.Is(err, invoker.ErrMalformedResponse):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError writes the error body. Server-side failures hide the cause
// from the caller and log it instead.
func respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		logging.WithContext(c.Request.Context()).Error("Request failed", "status", status, "error", err)
		message = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":      message,
		"request_id": middleware.GetRequestID(c),
	})
}
