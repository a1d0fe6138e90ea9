// internal/api/router_test.go
package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"finflow-commitments/internal/api"
	"finflow-commitments/internal/api/handler"
	"finflow-commitments/internal/api/types"
	"finflow-commitments/internal/domain"
	"finflow-commitments/internal/service"
	"finflow-commitments/internal/util"
)

var testSecret = []byte("router-test-secret")

// MockCommitmentService is a mock implementation of service.CommitmentService.
type MockCommitmentService struct {
	mock.Mock
}

func (m *MockCommitmentService) CreateInvestmentCommitment(ctx context.Context, ownerID, productID string) (*domain.Commitment, error) {
	args := m.Called(ctx, ownerID, productID)
	c, _ := args.Get(0).(*domain.Commitment)
	return c, args.Error(1)
}

func (m *MockCommitmentService) CreateTakafulCommitment(ctx context.Context, ownerID, planID string, start, end time.Time) (*domain.Commitment, error) {
	args := m.Called(ctx, ownerID, planID, start, end)
	c, _ := args.Get(0).(*domain.Commitment)
	return c, args.Error(1)
}

func (m *MockCommitmentService) CreateZakatObligation(ctx context.Context, ownerID string, terms domain.ZakatTerms) (*domain.Commitment, error) {
	args := m.Called(ctx, ownerID, terms)
	c, _ := args.Get(0).(*domain.Commitment)
	return c, args.Error(1)
}

func (m *MockCommitmentService) ListMine(ctx context.Context, ownerID string) ([]domain.Commitment, error) {
	args := m.Called(ctx, ownerID)
	cs, _ := args.Get(0).([]domain.Commitment)
	return cs, args.Error(1)
}

func (m *MockCommitmentService) GetCommitment(ctx context.Context, ownerID, id string) (*domain.Commitment, error) {
	args := m.Called(ctx, ownerID, id)
	c, _ := args.Get(0).(*domain.Commitment)
	return c, args.Error(1)
}

func (m *MockCommitmentService) DeleteZakatObligation(ctx context.Context, ownerID, id string) error {
	return m.Called(ctx, ownerID, id).Error(0)
}

func (m *MockCommitmentService) ListSettlements(ctx context.Context, ownerID, commitmentID string) ([]domain.Settlement, error) {
	args := m.Called(ctx, ownerID, commitmentID)
	ss, _ := args.Get(0).([]domain.Settlement)
	return ss, args.Error(1)
}

func (m *MockCommitmentService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*domain.Product)
	return p, args.Error(1)
}

// MockSettlementService is a mock implementation of service.SettlementService.
type MockSettlementService struct {
	mock.Mock
}

func (m *MockSettlementService) Settle(ctx context.Context, ownerID string, req service.SettleRequest) (*domain.Settlement, *domain.Commitment, error) {
	args := m.Called(ctx, ownerID, req)
	s, _ := args.Get(0).(*domain.Settlement)
	c, _ := args.Get(1).(*domain.Commitment)
	return s, c, args.Error(2)
}

func (m *MockSettlementService) GetBalance(ctx context.Context, ownerID string) (*domain.Balance, error) {
	args := m.Called(ctx, ownerID)
	b, _ := args.Get(0).(*domain.Balance)
	return b, args.Error(1)
}

type routerFixture struct {
	server      *httptest.Server
	commitments *MockCommitmentService
	settlements *MockSettlementService
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &routerFixture{
		commitments: new(MockCommitmentService),
		settlements: new(MockSettlementService),
	}
	router := api.NewRouter(
		handler.NewCommitmentHandler(f.commitments, logger),
		handler.NewSettlementHandler(f.settlements, logger),
		api.RouterOptions{JWTSecret: testSecret, MetricsEnabled: true},
		logger,
	)
	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)
	return f
}

func signToken(t *testing.T, subject string, secret []byte, ttl time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func (f *routerFixture) do(t *testing.T, method, path, token, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeError(t *testing.T, body []byte) types.ErrorResponse {
	t.Helper()
	var e types.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}

func TestAuthentication(t *testing.T) {
	f := newRouterFixture(t)

	t.Run("MissingToken", func(t *testing.T) {
		resp, body := f.do(t, http.MethodGet, "/api/v1/commitments", "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "UNAUTHENTICATED", decodeError(t, body).Code)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/api/v1/commitments", signToken(t, "user-1", []byte("other"), time.Hour), "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Expired", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/api/v1/commitments", signToken(t, "user-1", testSecret, -time.Minute), "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("CatalogIsPublic", func(t *testing.T) {
		f.commitments.On("GetProduct", mock.Anything, "prod-1").
			Return(&domain.Product{ID: "prod-1", Kind: domain.CommitmentKindInvestment, Name: "Sukuk"}, nil).Once()
		resp, _ := f.do(t, http.MethodGet, "/api/v1/products/prod-1", "", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("HealthAndMetrics", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp, _ = f.do(t, http.MethodGet, "/metrics", "", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestCommitmentRoutes(t *testing.T) {
	f := newRouterFixture(t)
	token := signToken(t, "user-1", testSecret, time.Hour)

	t.Run("CreateInvestment", func(t *testing.T) {
		created := domain.NewInvestmentCommitment("user-1", "prod-1")
		f.commitments.On("CreateInvestmentCommitment", mock.Anything, "user-1", "prod-1").Return(created, nil).Once()

		resp, body := f.do(t, http.MethodPost, "/api/v1/commitments/investment", token, `{"product_id":"prod-1"}`)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var got domain.Commitment
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, domain.CommitmentStatusPending, got.Status)
	})

	t.Run("ActiveSubscriptionConflictCarriesExistingID", func(t *testing.T) {
		f.commitments.On("CreateInvestmentCommitment", mock.Anything, "user-1", "prod-2").
			Return(nil, &util.ConflictError{ExistingID: "c-42"}).Once()

		resp, body := f.do(t, http.MethodPost, "/api/v1/commitments/investment", token, `{"product_id":"prod-2"}`)

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		e := decodeError(t, body)
		assert.Equal(t, "CONFLICT", e.Code)
		assert.Equal(t, "c-42", e.ExistingID)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPost, "/api/v1/commitments/investment", token, `{"product":`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "VALIDATION", decodeError(t, body).Code)
	})

	t.Run("CreateTakafulInvalidPeriod", func(t *testing.T) {
		start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		f.commitments.On("CreateTakafulCommitment", mock.Anything, "user-1", "plan-1", start, end).
			Return(nil, util.ErrInvalidPeriod).Once()

		resp, body := f.do(t, http.MethodPost, "/api/v1/commitments/takaful", token,
			`{"plan_id":"plan-1","period_start":"2025-06-01T00:00:00Z","period_end":"2025-01-01T00:00:00Z"}`)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "VALIDATION", decodeError(t, body).Code)
	})

	t.Run("CreateZakat", func(t *testing.T) {
		terms, err := domain.AssessZakat(2025, decimal.RequireFromString("2000000"))
		require.NoError(t, err)
		obligation, err := domain.NewZakatObligation("user-1", terms)
		require.NoError(t, err)
		f.commitments.On("CreateZakatObligation", mock.Anything, "user-1", mock.MatchedBy(func(got domain.ZakatTerms) bool {
			return got.Year == 2025 && got.AmountDue.Equal(decimal.RequireFromString("50000"))
		})).Return(obligation, nil).Once()

		resp, _ := f.do(t, http.MethodPost, "/api/v1/commitments/zakat", token,
			`{"year":2025,"total_assessed_amount":"2000000","amount_due":"50000","remaining_amount":"50000"}`)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("ListPendingOnly", func(t *testing.T) {
		pending := domain.NewInvestmentCommitment("user-1", "prod-1")
		active := domain.NewInvestmentCommitment("user-1", "prod-3")
		active.Status = domain.CommitmentStatusActive
		f.commitments.On("ListMine", mock.Anything, "user-1").Return([]domain.Commitment{*pending, *active}, nil).Once()

		resp, body := f.do(t, http.MethodGet, "/api/v1/commitments?status=PENDING", token, "")

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var list types.ListResponse[domain.Commitment]
		require.NoError(t, json.Unmarshal(body, &list))
		require.Len(t, list.Data, 1)
		assert.Equal(t, pending.ID, list.Data[0].ID)
	})

	t.Run("DeleteFullySettledIsConflict", func(t *testing.T) {
		f.commitments.On("DeleteZakatObligation", mock.Anything, "user-1", "z1").Return(util.ErrFullySettled).Once()

		resp, body := f.do(t, http.MethodDelete, "/api/v1/commitments/z1", token, "")

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Empty(t, decodeError(t, body).ExistingID)
	})

	t.Run("DeleteSucceeds", func(t *testing.T) {
		f.commitments.On("DeleteZakatObligation", mock.Anything, "user-1", "z2").Return(nil).Once()
		resp, _ := f.do(t, http.MethodDelete, "/api/v1/commitments/z2", token, "")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("GetMissing", func(t *testing.T) {
		f.commitments.On("GetCommitment", mock.Anything, "user-1", "nope").Return(nil, util.ErrCommitmentNotFound).Once()
		resp, body := f.do(t, http.MethodGet, "/api/v1/commitments/nope", token, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, body).Code)
	})

	t.Run("EmptySettlementHistory", func(t *testing.T) {
		f.commitments.On("ListSettlements", mock.Anything, "user-1", "z3").Return(nil, nil).Once()
		resp, body := f.do(t, http.MethodGet, "/api/v1/commitments/z3/settlements", token, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"data":[],"total_count":0}`, string(body))
	})

	t.Run("InternalErrorsAreHidden", func(t *testing.T) {
		f.commitments.On("GetCommitment", mock.Anything, "user-1", "boom").Return(nil, assert.AnError).Once()
		resp, body := f.do(t, http.MethodGet, "/api/v1/commitments/boom", token, "")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		e := decodeError(t, body)
		assert.Equal(t, "UNKNOWN", e.Code)
		assert.NotContains(t, e.Error, assert.AnError.Error())
	})

	f.commitments.AssertExpectations(t)
}

func TestSettlementRoutes(t *testing.T) {
	f := newRouterFixture(t)
	token := signToken(t, "user-1", testSecret, time.Hour)

	t.Run("Settle", func(t *testing.T) {
		obligation := &domain.Commitment{ID: "z1", Kind: domain.CommitmentKindZakat, Status: domain.CommitmentStatusPartiallySettled}
		settlement := &domain.Settlement{ID: "s1", CommitmentID: "z1", Amount: decimal.RequireFromString("20000"), WalletTransactionID: "wtx-1"}
		f.settlements.On("Settle", mock.Anything, "user-1", mock.MatchedBy(func(req service.SettleRequest) bool {
			return req.CommitmentID == "z1" && req.WalletCode == "1234" && req.Amount.Equal(decimal.RequireFromString("20000"))
		})).Return(settlement, obligation, nil).Once()

		resp, body := f.do(t, http.MethodPost, "/api/v1/settlements", token,
			`{"commitment_id":"z1","amount":"20000","wallet_code":"1234"}`)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var got types.SettleResponse
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "wtx-1", got.Settlement.WalletTransactionID)
		assert.Equal(t, domain.CommitmentStatusPartiallySettled, got.Commitment.Status)
	})

	t.Run("MalformedCodeNeverReachesService", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPost, "/api/v1/settlements", token,
			`{"commitment_id":"z1","amount":"10","wallet_code":"12"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "VALIDATION", decodeError(t, body).Code)
	})

	statusCases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"WrongWalletCode", util.ErrInvalidWalletCode, http.StatusForbidden, "INVALID_WALLET_CODE"},
		{"InsufficientBalance", util.ErrInsufficientFunds, http.StatusPaymentRequired, "INSUFFICIENT_BALANCE"},
		{"Overpayment", util.ErrOverpayment, http.StatusBadRequest, "VALIDATION"},
		{"GatewayDown", util.ErrUnavailable, http.StatusServiceUnavailable, "UNAVAILABLE"},
	}
	for _, tc := range statusCases {
		t.Run(tc.name, func(t *testing.T) {
			f.settlements.On("Settle", mock.Anything, "user-1", mock.MatchedBy(func(req service.SettleRequest) bool {
				return req.CommitmentID == tc.name
			})).Return(nil, nil, tc.err).Once()

			resp, body := f.do(t, http.MethodPost, "/api/v1/settlements", token,
				`{"commitment_id":"`+tc.name+`","amount":"10","wallet_code":"1234"}`)

			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, decodeError(t, body).Code)
		})
	}

	t.Run("Balance", func(t *testing.T) {
		f.settlements.On("GetBalance", mock.Anything, "user-1").
			Return(&domain.Balance{Balance: decimal.RequireFromString("100000"), Currency: "IDR"}, nil).Once()

		resp, body := f.do(t, http.MethodGet, "/api/v1/wallet/balance", token, "")

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var b domain.Balance
		require.NoError(t, json.Unmarshal(body, &b))
		assert.True(t, decimal.RequireFromString("100000").Equal(b.Balance))
	})

	f.settlements.AssertExpectations(t)
}
