package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/middleware/identity"
	"github.com/Skotchmaster/storefront/services/checkout/internal/service"
	"github.com/Skotchmaster/storefront/services/checkout/internal/transport"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type CartHTTP struct {
	Svc      *service.CartService
	Merge    *service.MergeService
	Identity *identity.Middleware
}

// identityOf turns what the identity middleware resolved into a service
// identity. A logged-in customer always shops on the customer cart.
func identityOf(c echo.Context) service.Identity {
	if id, ok := identity.CustomerID(c); ok {
		return service.Customer(id)
	}
	return service.Guest(identity.GuestToken(c))
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get")

	q, err := h.Svc.GetCart(ctx, identityOf(c))
	if err != nil {
		return writeError(c, l, "get_cart_error", err)
	}
	return c.JSON(http.StatusOK, transport.NewCartResponse(q))
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	var req transport.AddItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "add_item_error", err, "invalid body")
	}
	if req.ProductID == uuid.Nil {
		return badRequest(c, l, "add_item_error", nil, "product_id required")
	}

	q, err := h.Svc.AddItem(ctx, identityOf(c), req.ProductID, req.Quantity)
	if err != nil {
		return writeError(c, l, "add_item_error", err)
	}

	l.Info("item_added", "quote_id", q.ID, "product_id", req.ProductID, "quantity", req.Quantity)
	return c.JSON(http.StatusOK, transport.NewCartResponse(q))
}

func (h *CartHTTP) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.update_item")

	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, l, "update_item_error", err, "invalid item id")
	}
	var req transport.UpdateItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "update_item_error", err, "invalid body")
	}

	q, err := h.Svc.UpdateItem(ctx, identityOf(c), itemID, req.Quantity)
	if err != nil {
		return writeError(c, l, "update_item_error", err)
	}
	return c.JSON(http.StatusOK, transport.NewCartResponse(q))
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, l, "remove_item_error", err, "invalid item id")
	}

	q, err := h.Svc.RemoveItem(ctx, identityOf(c), itemID)
	if err != nil {
		return writeError(c, l, "remove_item_error", err)
	}
	return c.JSON(http.StatusOK, transport.NewCartResponse(q))
}

func (h *CartHTTP) SetAddresses(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.set_addresses")

	var req transport.SetAddressesRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "set_addresses_error", err, "invalid body")
	}

	q, err := h.Svc.SetAddresses(ctx, identityOf(c), service.AddressInput{
		Shipping: addressChoice(req.Shipping),
		Billing:  addressChoice(req.Billing),
	})
	if err != nil {
		return writeError(c, l, "set_addresses_error", err)
	}
	return c.JSON(http.StatusOK, transport.NewCartResponse(q))
}

func (h *CartHTTP) SetEmail(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.set_email")

	var req transport.SetEmailRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "set_email_error", err, "invalid body")
	}

	q, err := h.Svc.SetEmail(ctx, identityOf(c), req.Email)
	if err != nil {
		return writeError(c, l, "set_email_error", err)
	}
	return c.JSON(http.StatusOK, transport.NewCartResponse(q))
}

func (h *CartHTTP) SetCoupon(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.set_coupon")

	var req transport.SetCouponRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "set_coupon_error", err, "invalid body")
	}

	q, err := h.Svc.SetCoupon(ctx, identityOf(c), req.Code)
	if err != nil {
		return writeError(c, l, "set_coupon_error", err)
	}
	return c.JSON(http.StatusOK, transport.NewCartResponse(q))
}

// MergeCart is called right after login: the guest cart named by the cart cookie
// is folded into the customer's cart and the cookie is dropped.
func (h *CartHTTP) MergeCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.merge")

	customerID, _ := identity.CustomerID(c)
	q, err := h.Merge.ResolveIdentity(ctx, identity.GuestToken(c), customerID)
	if err != nil {
		return writeError(c, l, "merge_cart_error", err)
	}
	h.Identity.ClearGuest(c)

	if q == nil {
		return c.NoContent(http.StatusNoContent)
	}
	l.Info("cart_resolved", "quote_id", q.ID)
	return c.JSON(http.StatusOK, transport.NewCartResponse(q))
}

func addressChoice(r *transport.AddressRequest) *service.AddressChoice {
	if r == nil {
		return nil
	}
	return &service.AddressChoice{ID: r.ID, Address: r.Address}
}
