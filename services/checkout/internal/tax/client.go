package tax

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Skotchmaster/storefront/pkg/breaker"
	"github.com/Skotchmaster/storefront/services/checkout/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

var ErrNoShippingAddress = errors.New("tax: quote has no shipping address loaded")

// Client talks to a TaxJar style /v2/taxes endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[*Result]
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cb: breaker.New[*Result](breaker.DefaultSettings("tax"), logger),
	}
}

type lineItem struct {
	ID        string          `json:"id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type taxRequest struct {
	ToCountry string          `json:"to_country"`
	ToZip     string          `json:"to_zip"`
	ToState   string          `json:"to_state"`
	ToCity    string          `json:"to_city"`
	ToStreet  string          `json:"to_street"`
	Amount    decimal.Decimal `json:"amount"`
	Shipping  decimal.Decimal `json:"shipping"`
	Discount  decimal.Decimal `json:"discount"`
	LineItems []lineItem      `json:"line_items"`
}

type taxResponse struct {
	Tax *Result `json:"tax"`
}

func (c *Client) Calculate(ctx context.Context, q *models.Quote) (*Result, error) {
	if q.ShippingAddress == nil {
		return nil, ErrNoShippingAddress
	}
	return c.cb.Execute(func() (*Result, error) {
		return c.calculate(ctx, q)
	})
}

func (c *Client) calculate(ctx context.Context, q *models.Quote) (*Result, error) {
	to := q.ShippingAddress.AddressFields
	body := taxRequest{
		ToCountry: to.Country,
		ToZip:     to.Zip,
		ToState:   to.State,
		ToCity:    to.City,
		ToStreet:  to.Street,
		Amount:    q.Subtotal(),
		Shipping:  decimal.Zero,
		Discount:  q.Discount,
	}
	for _, it := range q.Items {
		body.LineItems = append(body.LineItems, lineItem{
			ID:        it.ID.String(),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode tax request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/taxes", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tax service responded with status: %d", resp.StatusCode)
	}

	var out taxResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Tax, nil
}
