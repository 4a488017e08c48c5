package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/services/checkout/internal/service"
	"github.com/Skotchmaster/storefront/services/checkout/internal/transport"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type CheckoutHTTP struct {
	Svc *service.CheckoutService
}

func (h *CheckoutHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.place_order")

	var req transport.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "checkout_error", err, "invalid body")
	}

	order, err := h.Svc.Checkout(ctx, identityOf(c), service.PaymentNonce{
		Value:      req.PaymentMethodNonce,
		Descriptor: req.PaymentDescriptor,
	})
	if err != nil {
		return writeError(c, l, "checkout_error", err)
	}
	return c.JSON(http.StatusCreated, order)
}

func (h *CheckoutHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "orders.get")

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, l, "get_order_error", err, "invalid order id")
	}

	order, err := h.Svc.GetOrder(ctx, identityOf(c), orderID)
	if err != nil {
		return writeError(c, l, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, order)
}
