package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/pkg/tokens"
)

var secret = []byte("test-secret")

func accessToken(t *testing.T, sub string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokens.AccessClaims{
		Role: "user",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(secret)
	require.NoError(t, err)
	return s
}

func run(t *testing.T, cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := New(secret).Identify(func(echo.Context) error { return nil })(c)
	return rec, c, err
}

func TestIdentify_GuestGetsCartToken(t *testing.T) {
	rec, c, err := run(t)
	require.NoError(t, err)

	_, ok := CustomerID(c)
	assert.False(t, ok)
	token := GuestToken(c)
	require.NotEmpty(t, token)

	res := rec.Result()
	defer res.Body.Close()
	require.Len(t, res.Cookies(), 1)
	assert.Equal(t, CartCookie, res.Cookies()[0].Name)
	assert.Equal(t, token, res.Cookies()[0].Value)
}

func TestIdentify_ExistingCartTokenKept(t *testing.T) {
	rec, c, err := run(t, &http.Cookie{Name: CartCookie, Value: "guest-1"})
	require.NoError(t, err)
	assert.Equal(t, "guest-1", GuestToken(c))
	assert.Empty(t, rec.Header().Values("Set-Cookie"))
}

func TestIdentify_Customer(t *testing.T) {
	id := uuid.New()
	_, c, err := run(t,
		&http.Cookie{Name: AccessCookie, Value: accessToken(t, id.String())},
		&http.Cookie{Name: CartCookie, Value: "guest-1"},
	)
	require.NoError(t, err)

	got, ok := CustomerID(c)
	require.True(t, ok)
	assert.Equal(t, id, got)
	assert.Equal(t, "guest-1", GuestToken(c))
}

func TestIdentify_InvalidToken(t *testing.T) {
	_, _, err := run(t, &http.Cookie{Name: AccessCookie, Value: "garbage"})
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestRequireCustomer(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/orders/1", nil), httptest.NewRecorder())
	err := New(secret).RequireCustomer(func(echo.Context) error { return nil })(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, he.Code)

	c.Set(CtxCustomerID, uuid.New())
	assert.NoError(t, New(secret).RequireCustomer(func(echo.Context) error { return nil })(c))
}
