// internal/gateway/wallet.go
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"finflow-commitments/internal/domain"
	"finflow-commitments/internal/util"
)

// WalletGateway is the external custodial wallet. It owns balances and security codes;
// this module only reads balances and requests debits.
type WalletGateway interface {
	// GetBalance returns the current balance of the user's wallet.
	GetBalance(ctx context.Context, userID string) (*domain.Balance, error)
	// Debit moves amount out of the user's wallet if walletCode matches.
	// It returns the gateway's transaction id.
	Debit(ctx context.Context, userID, walletCode string, amount decimal.Decimal) (string, error)
}

// HTTPWalletGateway talks to the wallet service over its JSON API.
type HTTPWalletGateway struct {
	baseURL *url.URL
	client  *http.Client
}

// NewHTTPWalletGateway creates a gateway client for baseURL.
func NewHTTPWalletGateway(baseURL string, timeout time.Duration) (*HTTPWalletGateway, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid wallet gateway URL %q", baseURL)
	}
	return &HTTPWalletGateway{
		baseURL: u,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type balanceResponse struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

type debitRequest struct {
	WalletCode string          `json:"wallet_code"`
	Amount     decimal.Decimal `json:"amount"`
}

type debitResponse struct {
	TransactionID string `json:"transaction_id"`
}

// GetBalance handles GET /wallets/{userID}/balance on the gateway.
func (g *HTTPWalletGateway) GetBalance(ctx context.Context, userID string) (*domain.Balance, error) {
	var resp balanceResponse
	if err := g.do(ctx, http.MethodGet, g.walletPath(userID, "balance"), nil, &resp); err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &domain.Balance{Balance: resp.Balance, Currency: resp.Currency}, nil
}

// Debit handles POST /wallets/{userID}/debit on the gateway.
func (g *HTTPWalletGateway) Debit(ctx context.Context, userID, walletCode string, amount decimal.Decimal) (string, error) {
	var resp debitResponse
	req := debitRequest{WalletCode: walletCode, Amount: amount}
	if err := g.do(ctx, http.MethodPost, g.walletPath(userID, "debit"), req, &resp); err != nil {
		return "", fmt.Errorf("debit: %w", err)
	}
	if resp.TransactionID == "" {
		// Money may have moved; the outcome is unknown without a transaction id.
		return "", fmt.Errorf("debit: empty transaction id: %w", util.ErrUnavailable)
	}
	return resp.TransactionID, nil
}

func (g *HTTPWalletGateway) walletPath(userID, action string) string {
	return g.baseURL.JoinPath("wallets", userID, action).String()
}

func (g *HTTPWalletGateway) do(ctx context.Context, method, target string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("wallet gateway unreachable: %v: %w", err, util.ErrUnavailable)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty gateway response: %w", util.ErrUnavailable)
		}
		return fmt.Errorf("failed to decode gateway response: %v: %w", err, util.ErrUnavailable)
	}
	return nil
}

// statusError maps gateway status codes onto the error taxonomy.
func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return util.ErrInvalidWalletCode
	case code == http.StatusPaymentRequired:
		return util.ErrInsufficientFunds
	case code == http.StatusNotFound:
		// A missing wallet says nothing about the commitment being settled.
		return util.ErrWalletNotFound
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return util.ErrInvalidInput
	default:
		return fmt.Errorf("wallet gateway returned %d: %w", code, util.ErrUnavailable)
	}
}
