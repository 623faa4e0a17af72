package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "payledger/internal/errors"
	"payledger/internal/handlers"
	"payledger/internal/metrics"
	"payledger/internal/models"
	"payledger/internal/services/payment"
	"payledger/internal/services/provider"
	"payledger/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const secret = "test-webhook-secret"

type MockPayments struct {
	mock.Mock
}

func (m *MockPayments) HandleProviderOutcome(ctx context.Context, n payment.Notification) (*models.Transaction, error) {
	args := m.Called(ctx, n)
	if tx := args.Get(0); tx != nil {
		return tx.(*models.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func newApp(t *testing.T, payments *MockPayments, checks map[string]handlers.Pinger) *fiber.App {
	t.Helper()
	app := fiber.New()
	SetupRoutes(app, Dependencies{
		Payments:      payments,
		HealthChecks:  checks,
		Metrics:       metrics.NewCollector().Handler(),
		WebhookSecret: secret,
	})
	return app
}

func token(t *testing.T, p models.Provider) string {
	t.Helper()
	tok, err := utils.GenerateWebhookToken(secret, p, time.Hour, time.Now())
	require.NoError(t, err)
	return tok
}

func webhookRequest(path, tok, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if tok != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tok)
	}
	return req
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func TestHealth(t *testing.T) {
	app := newApp(t, &MockPayments{}, map[string]handlers.Pinger{
		"database": func(context.Context) error { return nil },
	})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "ok", body["status"])

	app = newApp(t, &MockPayments{}, map[string]handlers.Pinger{
		"redis": func(context.Context) error { return errors.New("dial tcp: connection refused") },
	})
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", decode(t, resp)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	app := newApp(t, &MockPayments{}, nil)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "go_goroutines")
}

func TestWebhook_AppliesOutcome(t *testing.T) {
	payments := &MockPayments{}
	payments.On("HandleProviderOutcome", mock.Anything, payment.Notification{
		Provider:    models.ProviderSandbox,
		ProviderRef: "sbx_000001",
		Outcome: provider.Outcome{
			Status:      provider.OutcomeSucceeded,
			ProviderRef: "sbx_000001",
		},
	}).Return(&models.Transaction{ID: "tx-1", Status: models.StatusSucceeded}, nil).Once()

	app := newApp(t, payments, nil)
	resp, err := app.Test(webhookRequest("/webhooks/sandbox", token(t, models.ProviderSandbox),
		`{"provider_ref":"sbx_000001","status":"SUCCEEDED"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, "tx-1", data["transaction_id"])
	assert.Equal(t, "SUCCEEDED", data["status"])
	payments.AssertExpectations(t)
}

func TestWebhook_PassesAttempt(t *testing.T) {
	payments := &MockPayments{}
	payments.On("HandleProviderOutcome", mock.Anything, payment.Notification{
		Provider:      models.ProviderSandbox,
		TransactionID: "tx-1",
		Attempt:       2,
		Outcome: provider.Outcome{
			Status: provider.OutcomeFailed,
			Code:   "card_declined",
		},
	}).Return(&models.Transaction{ID: "tx-1", Status: models.StatusFailed, AttemptCount: 2}, nil).Once()

	app := newApp(t, payments, nil)
	resp, err := app.Test(webhookRequest("/webhooks/sandbox", token(t, models.ProviderSandbox),
		`{"transaction_id":"tx-1","attempt":2,"status":"FAILED","code":"card_declined"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	payments.AssertExpectations(t)
}

func TestWebhook_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		token  func(t *testing.T) string
		body   string
		status int
	}{
		{
			name:   "missing token",
			path:   "/webhooks/sandbox",
			token:  func(*testing.T) string { return "" },
			body:   `{"transaction_id":"tx-1","status":"SUCCEEDED"}`,
			status: http.StatusUnauthorized,
		},
		{
			name:   "garbage token",
			path:   "/webhooks/sandbox",
			token:  func(*testing.T) string { return "not-a-jwt" },
			body:   `{"transaction_id":"tx-1","status":"SUCCEEDED"}`,
			status: http.StatusUnauthorized,
		},
		{
			name: "token signed with another secret",
			path: "/webhooks/sandbox",
			token: func(t *testing.T) string {
				tok, err := utils.GenerateWebhookToken("other", models.ProviderSandbox, time.Hour, time.Now())
				require.NoError(t, err)
				return tok
			},
			body:   `{"transaction_id":"tx-1","status":"SUCCEEDED"}`,
			status: http.StatusUnauthorized,
		},
		{
			name: "expired token",
			path: "/webhooks/sandbox",
			token: func(t *testing.T) string {
				tok, err := utils.GenerateWebhookToken(secret, models.ProviderSandbox, time.Minute, time.Now().Add(-time.Hour))
				require.NoError(t, err)
				return tok
			},
			body:   `{"transaction_id":"tx-1","status":"SUCCEEDED"}`,
			status: http.StatusUnauthorized,
		},
		{
			name:   "token for another provider",
			path:   "/webhooks/sandbox",
			token:  func(t *testing.T) string { return token(t, models.ProviderStripe) },
			body:   `{"transaction_id":"tx-1","status":"SUCCEEDED"}`,
			status: http.StatusForbidden,
		},
		{
			name:   "unknown provider",
			path:   "/webhooks/paypal",
			token:  func(t *testing.T) string { return token(t, models.ProviderSandbox) },
			body:   `{"transaction_id":"tx-1","status":"SUCCEEDED"}`,
			status: http.StatusNotFound,
		},
		{
			name:   "negative attempt",
			path:   "/webhooks/sandbox",
			token:  func(t *testing.T) string { return token(t, models.ProviderSandbox) },
			body:   `{"transaction_id":"tx-1","attempt":-1,"status":"SUCCEEDED"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "no transaction reference",
			path:   "/webhooks/sandbox",
			token:  func(t *testing.T) string { return token(t, models.ProviderSandbox) },
			body:   `{"status":"SUCCEEDED"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "malformed body",
			path:   "/webhooks/sandbox",
			token:  func(t *testing.T) string { return token(t, models.ProviderSandbox) },
			body:   `{"status":`,
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payments := &MockPayments{}
			app := newApp(t, payments, nil)

			resp, err := app.Test(webhookRequest(tt.path, tt.token(t), tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			payments.AssertNotCalled(t, "HandleProviderOutcome", mock.Anything, mock.Anything)
		})
	}
}

func TestWebhook_MapsDomainErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{apperrors.Wrap(apperrors.ErrTransactionNotFound, "tx-9"), http.StatusNotFound},
		{apperrors.Wrap(apperrors.ErrValidation, "unknown outcome status"), http.StatusBadRequest},
		{apperrors.WithCause(apperrors.ErrLedgerInconsistency, errors.New("db down")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			payments := &MockPayments{}
			payments.On("HandleProviderOutcome", mock.Anything, mock.Anything).Return(nil, tt.err)
			app := newApp(t, payments, nil)

			resp, err := app.Test(webhookRequest("/webhooks/SANDBOX", token(t, models.ProviderSandbox),
				`{"transaction_id":"tx-9","status":"FAILED","code":"card_declined"}`))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
