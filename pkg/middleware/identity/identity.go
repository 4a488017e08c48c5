package identity

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/pkg/tokens"
)

const (
	CtxCustomerID = "customer_id"
	CtxGuestToken = "guest_token"

	AccessCookie = "accessToken"
	CartCookie   = "cartToken"

	cartCookieTTL = 30 * 24 * time.Hour
)

// Middleware resolves who is shopping. Tokens are issued by the auth
// service; this side only verifies them.
type Middleware struct {
	JWTSecret []byte
	Now       func() time.Time
}

func New(secret []byte) *Middleware {
	return &Middleware{JWTSecret: secret, Now: time.Now}
}

// Identify sets the authenticated customer id when a valid access token is
// present and always makes sure the client carries a guest cart token.
func (m *Middleware) Identify(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if ck, err := c.Cookie(AccessCookie); err == nil && ck.Value != "" {
			claims, err := tokens.AccessClaimsFromToken(ck.Value, m.JWTSecret)
			if err != nil || claims == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}
			id, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has no valid subject")
			}
			c.Set(CtxCustomerID, id)
		}

		guest := ""
		if ck, err := c.Cookie(CartCookie); err == nil && ck.Value != "" {
			guest = ck.Value
		} else if c.Get(CtxCustomerID) == nil {
			guest = uuid.NewString()
			c.SetCookie(m.cartCookie(guest, m.Now().Add(cartCookieTTL)))
		}
		if guest != "" {
			c.Set(CtxGuestToken, guest)
		}

		return next(c)
	}
}

func (m *Middleware) RequireCustomer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := c.Get(CtxCustomerID).(uuid.UUID); !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "login required")
		}
		return next(c)
	}
}

// ClearGuest drops the guest cart cookie once its cart has been handed over
// to a customer.
func (m *Middleware) ClearGuest(c echo.Context) {
	c.SetCookie(m.cartCookie("", time.Unix(0, 0)))
}

func CustomerID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(CtxCustomerID).(uuid.UUID)
	return id, ok
}

func GuestToken(c echo.Context) string {
	s, _ := c.Get(CtxGuestToken).(string)
	return s
}

func (m *Middleware) cartCookie(value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     CartCookie,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
