// internal/api/api_integration_test.go
package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "finflow-commitments/internal"
	"finflow-commitments/internal/api/types"
	"finflow-commitments/internal/domain"
)

// The integration suite needs a PostgreSQL database and runs only with FINFLOW_INTEGRATION=1.
const integrationSecret = "integration-secret"

// testApp is the global application instance for integration tests.
var testApp *app.Application

// testServer is the httptest server wrapping testApp.
var testServer *httptest.Server

// testWallet stands in for the custodial wallet.
var testWallet *fakeWallet

// TestMain is the special entry point for Go tests, executed once before all tests.
func TestMain(m *testing.M) {
	if os.Getenv("FINFLOW_INTEGRATION") != "1" {
		os.Exit(m.Run())
	}

	testWallet = newFakeWallet("1234")
	walletServer := httptest.NewServer(testWallet.router())

	// 1. Set up environment variables (ensure DB_NAME points to the test database).
	setupEnvVars(walletServer.URL)

	// 2. Initialize the application.
	testApp = app.NewApplication()
	if err := testApp.Initialize(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize test application: %v\n", err)
		os.Exit(1)
	}

	// 3. Start an httptest server to test the HTTP handling layer.
	testServer = httptest.NewServer(testApp.HTTPHandler)

	// 4. Run all tests.
	code := m.Run()

	testServer.Close()
	walletServer.Close()

	// 5. Shut down application resources after tests.
	if err := testApp.Shutdown(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to shutdown test application: %v\n", err)
		os.Exit(1)
	}

	os.Exit(code)
}

func requireIntegration(t *testing.T) {
	t.Helper()
	if testApp == nil {
		t.Skip("set FINFLOW_INTEGRATION=1 and point DB_* at a test database to run")
	}
}

// setupEnvVars sets defaults for the variables the application reads.
func setupEnvVars(walletURL string) {
	defaults := map[string]string{
		"DB_HOST":         "localhost",
		"DB_PORT":         "5432",
		"DB_USER":         "user",
		"DB_PASSWORD":     "password",
		"DB_NAME":         "commitmentsdb_test",
		"DB_SSLMODE":      "disable",
		"JWT_SECRET":      integrationSecret,
		"LOG_LEVEL":       "warn",
		"METRICS_ENABLED": "false",
	}
	for k, v := range defaults {
		if os.Getenv(k) == "" {
			os.Setenv(k, v)
		}
	}
	os.Setenv("WALLET_GATEWAY_URL", walletURL)
}

// clearDatabase truncates all tables so each test starts from a clean state.
func clearDatabase(t *testing.T) {
	for _, table := range []string{"settlements", "commitments", "products"} {
		_, err := testApp.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s;", table))
		require.NoError(t, err, "Failed to truncate table %s", table)
	}
}

func seedProduct(t *testing.T, kind domain.CommitmentKind, minimum string) string {
	id := uuid.NewString()
	minAmount := decimal.NullDecimal{}
	if minimum != "" {
		minAmount = decimal.NewNullDecimal(decimal.RequireFromString(minimum))
	}
	_, err := testApp.DB.Exec(
		`INSERT INTO products (id, kind, name, minimum_amount) VALUES ($1, $2, $3, $4)`,
		id, kind, "product "+id[:8], minAmount,
	)
	require.NoError(t, err)
	return id
}

// fakeWallet is an in-memory custodial wallet speaking the gateway protocol.
type fakeWallet struct {
	mu       sync.Mutex
	code     string
	balances map[string]decimal.Decimal
}

func newFakeWallet(code string) *fakeWallet {
	return &fakeWallet{code: code, balances: map[string]decimal.Decimal{}}
}

func (fw *fakeWallet) fund(user string, amount string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.balances[user] = decimal.RequireFromString(amount)
}

func (fw *fakeWallet) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/wallets/{userID}/balance", func(w http.ResponseWriter, r *http.Request) {
		fw.mu.Lock()
		defer fw.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"balance":  fw.balances[chi.URLParam(r, "userID")],
			"currency": "IDR",
		})
	})
	r.Post("/wallets/{userID}/debit", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			WalletCode string          `json:"wallet_code"`
			Amount     decimal.Decimal `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fw.mu.Lock()
		defer fw.mu.Unlock()
		user := chi.URLParam(r, "userID")
		switch {
		case req.WalletCode != fw.code:
			w.WriteHeader(http.StatusForbidden)
		case fw.balances[user].LessThan(req.Amount):
			w.WriteHeader(http.StatusPaymentRequired)
		default:
			fw.balances[user] = fw.balances[user].Sub(req.Amount)
			_ = json.NewEncoder(w).Encode(map[string]string{"transaction_id": uuid.NewString()})
		}
	})
	return r
}

func (fw *fakeWallet) balance(user string) decimal.Decimal {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.balances[user]
}

// call sends an authenticated request and decodes a JSON response into out when non-nil.
func call(t *testing.T, user, method, path string, body any, out any) *http.Response {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	server := &routerFixture{server: testServer}
	token := signToken(t, user, []byte(integrationSecret), time.Hour)
	resp, data := server.do(t, method, path, token, string(payload))
	if out != nil && len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, out), "body: %s", data)
	}
	return resp
}

// TestZakatPartialSettlementIntegration walks an obligation from assessment to SETTLED.
func TestZakatPartialSettlementIntegration(t *testing.T) {
	requireIntegration(t)
	clearDatabase(t)
	user := "zakat-" + uuid.NewString()
	testWallet.fund(user, "100000")

	terms, err := domain.AssessZakat(2025, decimal.RequireFromString("2000000"))
	require.NoError(t, err)

	var obligation domain.Commitment
	resp := call(t, user, http.MethodPost, "/api/v1/commitments/zakat", types.CreateZakatRequest{
		Year: terms.Year, TotalAssessedAmount: terms.TotalAssessedAmount,
		AmountDue: terms.AmountDue, RemainingAmount: terms.RemainingAmount,
	}, &obligation)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, domain.CommitmentStatusPending, obligation.Status)

	settle := func(t *testing.T, amount string) (*http.Response, types.SettleResponse, types.ErrorResponse) {
		var ok types.SettleResponse
		var raw json.RawMessage
		r := call(t, user, http.MethodPost, "/api/v1/settlements", types.SettleRequest{
			CommitmentID: obligation.ID, Amount: decimal.RequireFromString(amount), WalletCode: "1234",
		}, &raw)
		var e types.ErrorResponse
		if r.StatusCode == http.StatusCreated {
			require.NoError(t, json.Unmarshal(raw, &ok))
		} else {
			require.NoError(t, json.Unmarshal(raw, &e))
		}
		return r, ok, e
	}

	t.Run("PartialSettlement", func(t *testing.T) {
		r, got, _ := settle(t, "20000")
		require.Equal(t, http.StatusCreated, r.StatusCode)
		assert.Equal(t, domain.CommitmentStatusPartiallySettled, got.Commitment.Status)
		assert.True(t, decimal.RequireFromString("30000").Equal(got.Commitment.Zakat.RemainingAmount))
		assert.True(t, decimal.RequireFromString("80000").Equal(testWallet.balance(user)))
	})

	t.Run("OverpaymentRejected", func(t *testing.T) {
		r, _, e := settle(t, "30000.01")
		assert.Equal(t, http.StatusBadRequest, r.StatusCode)
		assert.Equal(t, "VALIDATION", e.Code)
		assert.True(t, decimal.RequireFromString("80000").Equal(testWallet.balance(user)))
	})

	t.Run("FinalSettlement", func(t *testing.T) {
		r, got, _ := settle(t, "30000")
		require.Equal(t, http.StatusCreated, r.StatusCode)
		assert.Equal(t, domain.CommitmentStatusSettled, got.Commitment.Status)
		assert.True(t, got.Commitment.Zakat.RemainingAmount.IsZero())
	})

	t.Run("SettledObligationIsImmutable", func(t *testing.T) {
		r, _, e := settle(t, "1")
		assert.Equal(t, http.StatusConflict, r.StatusCode)
		assert.Equal(t, "CONFLICT", e.Code)

		var del types.ErrorResponse
		r = call(t, user, http.MethodDelete, "/api/v1/commitments/"+obligation.ID, nil, &del)
		assert.Equal(t, http.StatusConflict, r.StatusCode)
	})

	t.Run("HistorySumsToAmountDue", func(t *testing.T) {
		var list types.ListResponse[domain.Settlement]
		r := call(t, user, http.MethodGet, "/api/v1/commitments/"+obligation.ID+"/settlements", nil, &list)
		require.Equal(t, http.StatusOK, r.StatusCode)
		require.Len(t, list.Data, 2)
		sum := decimal.Zero
		for _, s := range list.Data {
			sum = sum.Add(s.Amount)
		}
		assert.True(t, terms.AmountDue.Equal(sum))
	})
}

// TestInvestmentSubscriptionIntegration covers the single active subscription rule.
func TestInvestmentSubscriptionIntegration(t *testing.T) {
	requireIntegration(t)
	clearDatabase(t)
	user := "investor-" + uuid.NewString()
	testWallet.fund(user, "500")
	productID := seedProduct(t, domain.CommitmentKindInvestment, "100")

	var first domain.Commitment
	resp := call(t, user, http.MethodPost, "/api/v1/commitments/investment", types.CreateInvestmentRequest{ProductID: productID}, &first)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	t.Run("SecondSubscriptionConflicts", func(t *testing.T) {
		var e types.ErrorResponse
		r := call(t, user, http.MethodPost, "/api/v1/commitments/investment", types.CreateInvestmentRequest{ProductID: productID}, &e)
		assert.Equal(t, http.StatusConflict, r.StatusCode)
		assert.Equal(t, first.ID, e.ExistingID)
	})

	t.Run("WrongWalletCode", func(t *testing.T) {
		var e types.ErrorResponse
		r := call(t, user, http.MethodPost, "/api/v1/settlements", types.SettleRequest{
			CommitmentID: first.ID, Amount: decimal.RequireFromString("150"), WalletCode: "9999",
		}, &e)
		assert.Equal(t, http.StatusForbidden, r.StatusCode)
		assert.Equal(t, "INVALID_WALLET_CODE", e.Code)
	})

	t.Run("InsufficientBalance", func(t *testing.T) {
		var e types.ErrorResponse
		r := call(t, user, http.MethodPost, "/api/v1/settlements", types.SettleRequest{
			CommitmentID: first.ID, Amount: decimal.RequireFromString("800"), WalletCode: "1234",
		}, &e)
		assert.Equal(t, http.StatusPaymentRequired, r.StatusCode)
	})

	t.Run("FundingActivates", func(t *testing.T) {
		var got types.SettleResponse
		r := call(t, user, http.MethodPost, "/api/v1/settlements", types.SettleRequest{
			CommitmentID: first.ID, Amount: decimal.RequireFromString("150"), WalletCode: "1234",
		}, &got)
		require.Equal(t, http.StatusCreated, r.StatusCode)
		assert.Equal(t, domain.CommitmentStatusActive, got.Commitment.Status)
		require.NotNil(t, got.Settlement.NextDueAt)
		assert.True(t, decimal.RequireFromString("350").Equal(testWallet.balance(user)))
	})

	t.Run("OtherOwnerSeesNothing", func(t *testing.T) {
		var e types.ErrorResponse
		r := call(t, "someone-else", http.MethodGet, "/api/v1/commitments/"+first.ID, nil, &e)
		assert.Equal(t, http.StatusNotFound, r.StatusCode)
	})
}
