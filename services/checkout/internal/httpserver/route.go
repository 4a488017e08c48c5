package httpserver

import (
	"context"
	"net/http"

	"github.com/Skotchmaster/storefront/pkg/middleware/identity"
	"github.com/labstack/echo/v4"
)

type Deps struct {
	CartHandler     *CartHTTP
	CheckoutHandler *CheckoutHTTP
	Identity        *identity.Middleware
	Metrics         http.Handler
	Ready           func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.NoContent(http.StatusServiceUnavailable)
			}
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	cart := e.Group("/cart", d.Identity.Identify)
	cart.GET("", d.CartHandler.GetCart)
	cart.POST("/items", d.CartHandler.AddItem)
	cart.PATCH("/items/:id", d.CartHandler.UpdateItem)
	cart.DELETE("/items/:id", d.CartHandler.RemoveItem)
	cart.PUT("/addresses", d.CartHandler.SetAddresses)
	cart.PUT("/email", d.CartHandler.SetEmail)
	cart.PUT("/coupon", d.CartHandler.SetCoupon)
	cart.POST("/merge", d.CartHandler.MergeCart, d.Identity.RequireCustomer)

	e.POST("/checkout", d.CheckoutHandler.Checkout, d.Identity.Identify)
	e.GET("/orders/:id", d.CheckoutHandler.GetOrder, d.Identity.Identify, d.Identity.RequireCustomer)
}
