package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Skotchmaster/storefront/services/checkout/internal/service"
	"github.com/Skotchmaster/storefront/services/checkout/internal/transport"
	"github.com/labstack/echo/v4"
)

// writeError maps service errors onto status codes. Payment failures never
// echo gateway details back to the client.
func writeError(c echo.Context, l *slog.Logger, event string, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		l.Warn(event, "status", http.StatusUnprocessableEntity, "error", err)
		return c.JSON(http.StatusUnprocessableEntity, transport.ErrorResponse{Error: "validation failed", Violations: verr.Violations})
	case errors.Is(err, service.ErrNotFound):
		l.Warn(event, "status", http.StatusNotFound, "error", err)
		return c.JSON(http.StatusNotFound, transport.ErrorResponse{Error: "not found"})
	case errors.Is(err, service.ErrPaymentFailed):
		l.Warn(event, "status", http.StatusPaymentRequired, "error", err)
		return c.JSON(http.StatusPaymentRequired, transport.ErrorResponse{Error: "payment could not be processed"})
	case errors.Is(err, service.ErrConflict):
		l.Warn(event, "status", http.StatusConflict, "error", err)
		return c.JSON(http.StatusConflict, transport.ErrorResponse{Error: "cart was modified concurrently, retry"})
	default:
		l.Error(event, "status", http.StatusInternalServerError, "error", err)
		return c.JSON(http.StatusInternalServerError, transport.ErrorResponse{Error: "internal error"})
	}
}

func badRequest(c echo.Context, l *slog.Logger, event string, err error, msg string) error {
	l.Warn(event, "status", http.StatusBadRequest, "error", err)
	return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Error: msg})
}
