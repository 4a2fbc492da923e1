package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"

	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.PaymentProvider against the Paystack API.
// The injected HTTP client must carry a bounded timeout; request contexts
// propagate caller deadlines and aborts.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewClient creates a new Paystack API client.
func NewClient(baseURL, secretKey string, httpClient HTTPClient, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		secretKey:  secretKey,
		httpClient: httpClient,
		log:        log,
	}
}

type initializeRequest struct {
	Email     string `json:"email"`
	Amount    int64  `json:"amount"` // minor units
	Reference string `json:"reference"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// InitializeTransaction registers a pending charge with the processor and
// returns the redirectable checkout verbatim.
func (c *Client) InitializeTransaction(ctx context.Context, email string, amount int64, reference string) (*ports.ProviderCheckout, error) {
	body, err := json.Marshal(initializeRequest{
		Email:     email,
		Amount:    amount,
		Reference: reference,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal initialize request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("build initialize request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.ErrUpstreamFailure("", fmt.Errorf("paystack initialize: %w", err))
	}
	defer resp.Body.Close()

	var parsed initializeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperror.ErrUpstreamFailure("", fmt.Errorf("decode paystack response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !parsed.Status {
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("message", parsed.Message).
			Str("reference", reference).
			Msg("paystack rejected transaction initialization")
		return nil, apperror.ErrUpstreamFailure(parsed.Message, fmt.Errorf("paystack status %d", resp.StatusCode))
	}

	return &ports.ProviderCheckout{
		AuthorizationURL: parsed.Data.AuthorizationURL,
		AccessCode:       parsed.Data.AccessCode,
	}, nil
}
