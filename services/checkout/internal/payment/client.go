package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Skotchmaster/storefront/pkg/breaker"
	"github.com/Skotchmaster/storefront/services/checkout/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

// Result is the gateway outcome. A decline is a Result with IsSuccess false,
// not an error.
type Result struct {
	IsSuccess     bool   `json:"is_success"`
	TransactionID string `json:"transaction_id"`
	Message       string `json:"message"`
}

type Gateway interface {
	CreatePaymentTransaction(ctx context.Context, order *models.Order, nonce string) (*Result, error)
	VoidTransaction(ctx context.Context, transactionID string) error
}

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
		cb: breaker.New[*Result](breaker.DefaultSettings("payment"), logger),
	}
}

type transactionRequest struct {
	OrderID             string          `json:"order_id"`
	Amount              decimal.Decimal `json:"amount"`
	PaymentMethodNonce  string          `json:"payment_method_nonce"`
	Email               string          `json:"email,omitempty"`
	BillingZip          string          `json:"billing_zip,omitempty"`
	SubmitForSettlement bool            `json:"submit_for_settlement"`
}

func (c *Client) CreatePaymentTransaction(ctx context.Context, order *models.Order, nonce string) (*Result, error) {
	body := transactionRequest{
		OrderID:             order.ID.String(),
		Amount:              order.Total,
		PaymentMethodNonce:  nonce,
		Email:               order.Email,
		BillingZip:          order.BillingAddress.Zip,
		SubmitForSettlement: true,
	}
	return c.cb.Execute(func() (*Result, error) {
		return c.post(ctx, "/transactions", body)
	})
}

// VoidTransaction cancels an authorized charge. It bypasses the breaker so a
// compensating call is still attempted while charges are failing.
func (c *Client) VoidTransaction(ctx context.Context, transactionID string) error {
	res, err := c.post(ctx, "/transactions/"+url.PathEscape(transactionID)+"/void", nil)
	if err != nil {
		return err
	}
	if !res.IsSuccess {
		return fmt.Errorf("void rejected: %s", res.Message)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*Result, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
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

	// 402 carries a decline body; anything else outside 2xx is a gateway fault.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusPaymentRequired {
		return nil, fmt.Errorf("payment gateway responded with status: %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
