// internal/client/client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finflow-commitments/internal/api/types"
	"finflow-commitments/internal/domain"
	"finflow-commitments/internal/util"
)

// Client is the HTTP SDK for the commitment service. Errors returned by its methods carry
// a util.Kind, rebuilt from the wire code of the response body.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
}

// New creates a client for baseURL. An empty token leaves the client signed out: every
// call that needs a session fails locally with util.ErrUnauthenticated.
func New(baseURL, token string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q", baseURL)
	}
	return &Client{
		baseURL: u,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Authenticated reports whether the client carries a session token.
func (c *Client) Authenticated() bool {
	return c.token != ""
}

// GetProduct fetches a catalog entry. It does not need a session.
func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	if err := c.do(ctx, http.MethodGet, false, nil, &p, "products", id); err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// GetBalance reads the caller's wallet balance.
func (c *Client) GetBalance(ctx context.Context) (*domain.Balance, error) {
	var b domain.Balance
	if err := c.do(ctx, http.MethodGet, true, nil, &b, "wallet", "balance"); err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &b, nil
}

// CreateInvestment subscribes the caller to an investment product.
func (c *Client) CreateInvestment(ctx context.Context, productID string) (*domain.Commitment, error) {
	return c.create(ctx, "investment", types.CreateInvestmentRequest{ProductID: productID})
}

// CreateTakaful subscribes the caller to a takaful plan for a coverage period.
func (c *Client) CreateTakaful(ctx context.Context, planID string, start, end time.Time) (*domain.Commitment, error) {
	return c.create(ctx, "takaful", types.CreateTakafulRequest{PlanID: planID, PeriodStart: start, PeriodEnd: end})
}

// CreateZakat records a zakat obligation. Not idempotent.
func (c *Client) CreateZakat(ctx context.Context, terms domain.ZakatTerms) (*domain.Commitment, error) {
	return c.create(ctx, "zakat", types.CreateZakatRequest{
		Year:                terms.Year,
		TotalAssessedAmount: terms.TotalAssessedAmount,
		AmountDue:           terms.AmountDue,
		RemainingAmount:     terms.RemainingAmount,
	})
}

func (c *Client) create(ctx context.Context, kind string, body any) (*domain.Commitment, error) {
	var out domain.Commitment
	if err := c.do(ctx, http.MethodPost, true, body, &out, "commitments", kind); err != nil {
		return nil, fmt.Errorf("create %s commitment: %w", kind, err)
	}
	return &out, nil
}

// ListCommitments lists the caller's commitments, optionally only those with status.
func (c *Client) ListCommitments(ctx context.Context, status domain.CommitmentStatus) ([]domain.Commitment, error) {
	var out types.ListResponse[domain.Commitment]
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	if err := c.doQuery(ctx, http.MethodGet, true, q, nil, &out, "commitments"); err != nil {
		return nil, fmt.Errorf("list commitments: %w", err)
	}
	return out.Data, nil
}

// GetCommitment fetches one of the caller's commitments.
func (c *Client) GetCommitment(ctx context.Context, id string) (*domain.Commitment, error) {
	var out domain.Commitment
	if err := c.do(ctx, http.MethodGet, true, nil, &out, "commitments", id); err != nil {
		return nil, fmt.Errorf("get commitment: %w", err)
	}
	return &out, nil
}

// DeleteCommitment soft-deletes a zakat obligation.
func (c *Client) DeleteCommitment(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, true, nil, nil, "commitments", id); err != nil {
		return fmt.Errorf("delete commitment: %w", err)
	}
	return nil
}

// ListSettlements returns the settlement history of a commitment.
func (c *Client) ListSettlements(ctx context.Context, commitmentID string) ([]domain.Settlement, error) {
	var out types.ListResponse[domain.Settlement]
	if err := c.do(ctx, http.MethodGet, true, nil, &out, "commitments", commitmentID, "settlements"); err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	return out.Data, nil
}

// Settle submits one settlement. It is never retried here: a lost response surfaces as
// util.ErrUnavailable and the debit may or may not have happened.
func (c *Client) Settle(ctx context.Context, commitmentID string, amount decimal.Decimal, walletCode string) (*types.SettleResponse, error) {
	var out types.SettleResponse
	req := types.SettleRequest{CommitmentID: commitmentID, Amount: amount, WalletCode: walletCode}
	if err := c.do(ctx, http.MethodPost, true, req, &out, "settlements"); err != nil {
		return nil, fmt.Errorf("settle: %w", err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method string, auth bool, body, out any, path ...string) error {
	return c.doQuery(ctx, method, auth, nil, body, out, path...)
}

func (c *Client) doQuery(ctx context.Context, method string, auth bool, query url.Values, body, out any, path ...string) error {
	if auth && c.token == "" {
		return util.ErrUnauthenticated
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	target := c.baseURL.JoinPath(append([]string{"api", "v1"}, path...)...)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("service unreachable: %v: %w", err, util.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %v: %w", err, util.ErrUnavailable)
	}
	return nil
}

// decodeError rebuilds a kinded error from an error body. Bodies without a known code,
// and every 5xx without one, are treated as an unknown outcome.
func decodeError(resp *http.Response) error {
	var body types.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("status %d: %w", resp.StatusCode, util.ErrUnavailable)
	}

	kind := util.ParseKind(body.Code)
	if kind == util.KindConflict && body.ExistingID != "" {
		return &util.ConflictError{ExistingID: body.ExistingID}
	}
	if kind == util.KindUnknown {
		if resp.StatusCode == http.StatusUnauthorized {
			return util.ErrUnauthenticated
		}
		return fmt.Errorf("status %d: %w", resp.StatusCode, util.ErrUnavailable)
	}
	if body.Error == "" {
		return util.KindSentinel(kind)
	}
	sentinel := util.KindSentinel(kind)
	if kind == util.KindTransient && strings.Contains(body.Error, util.ErrWalletNotFound.Error()) {
		// Known not to have debited, unlike other transient failures.
		sentinel = util.ErrWalletNotFound
	}
	return fmt.Errorf("%s: %w", body.Error, sentinel)
}
