package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"travesia_payments/internal/handlers"
	"travesia_payments/internal/models"
	"travesia_payments/internal/services/payments"
	"travesia_payments/internal/services/sessions"
	"travesia_payments/internal/transport/auth"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	submitted []models.Submission
	err       error
}

func (b *stubBackend) ListDebtors(ctx context.Context) ([]models.Debtor, error) {
	return []models.Debtor{
		{ID: "A", FullName: "Ana Rojas", IdentityCard: "7788", Debts: []models.Debt{
			{ID: "A1", PackageName: "Cusco 2026", Balance: decimal.NewFromInt(500)},
			{ID: "A2", PackageName: "Uyuni", Balance: decimal.NewFromInt(300)},
		}},
		{ID: "B", FullName: "Bruno Paz", IdentityCard: "9911", Debts: []models.Debt{
			{ID: "B1", PackageName: "Salar", Balance: decimal.NewFromInt(1000)},
		}},
	}, nil
}

func (b *stubBackend) ListPaymentMethods(ctx context.Context) (models.PaymentMethods, error) {
	return models.PaymentMethods{
		{Code: "CASH", Label: "Cash", Icon: models.IconCash},
		{Code: "TRF", Label: "Transfer", Icon: models.IconTransfer, RequiresReference: true},
	}, nil
}

func (b *stubBackend) SubmitPayment(ctx context.Context, sub models.Submission) error {
	b.submitted = append(b.submitted, sub)
	return b.err
}

type stubVerifier struct{}

func (stubVerifier) Verify(ctx context.Context, token string) (*auth.Identity, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &auth.Identity{UserID: "7"}, nil
}

type stubHealth struct{ err error }

func (s stubHealth) CheckConnections(ctx context.Context) error { return s.err }

type apiClient struct {
	t      *testing.T
	router http.Handler
}

func (c apiClient) do(method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer good")
	rr := httptest.NewRecorder()
	c.router.ServeHTTP(rr, req)

	var out map[string]any
	if rr.Body.Len() > 0 {
		_ = json.Unmarshal(rr.Body.Bytes(), &out)
	}
	return rr, out
}

func newAPI(t *testing.T, backend *stubBackend, health error) apiClient {
	svc := payments.NewService(payments.Deps{
		Store:     sessions.NewMemoryStore(time.Hour, nil),
		Debtors:   backend,
		Methods:   backend,
		Submitter: backend,
	})
	h := handlers.New(svc, nil, stubHealth{err: health}, nil, nil, nil)
	return apiClient{t: t, router: NewRouter(h, auth.Middleware(stubVerifier{}))}
}

func TestAPI_PaymentFlow(t *testing.T) {
	backend := &stubBackend{}
	api := newAPI(t, backend, nil)

	rr, body := api.do(http.MethodGet, "/api/v1/payment-methods", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	methods := body["data"].([]any)
	assert.Equal(t, "icons/bank-transfer.svg", methods[1].(map[string]any)["icon_asset"])

	rr, body = api.do(http.MethodPost, "/api/v1/payment-sessions", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := body["id"].(string)
	base := "/api/v1/payment-sessions/" + id

	rr, body = api.do(http.MethodPut, base+"/header", map[string]any{"total_amount": "0", "payment_method_code": "TRF"})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	fields := body["fields"].(map[string]any)
	assert.Contains(t, fields, "total_amount")
	assert.Contains(t, fields, "bank_reference")

	rr, _ = api.do(http.MethodPut, base+"/header", map[string]any{"total_amount": 1000, "payment_method_code": "CASH"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr, _ = api.do(http.MethodPost, base+"/rows", map[string]any{"debtor_id": "A"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr, body = api.do(http.MethodGet, base+"/validation", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "500.00", body["remaining"])
	assert.Equal(t, "Remaining to distribute: 500.00", body["error"])

	rr, body = api.do(http.MethodPatch, base+"/rows/0", map[string]any{"debt_id": "A2", "amount_to_apply": "999"})
	require.Equal(t, http.StatusOK, rr.Code)
	row := body["rows"].([]any)[0].(map[string]any)
	assert.Equal(t, "300", row["amount_to_apply"])

	rr, _ = api.do(http.MethodPost, base+"/rows", map[string]any{"debtor_id": "B"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr, _ = api.do(http.MethodPost, base+"/rows", map[string]any{"debtor_id": "B"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr, body = api.do(http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	summary := body["summary"].(map[string]any)
	assert.Equal(t, true, summary["balanced"])

	rr, body = api.do(http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, id, body["payment_id"])
	require.Len(t, backend.submitted, 1)
	assert.Equal(t, "7", backend.submitted[0].SubmittedBy)

	rr, _ = api.do(http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPI_BackendFailureIs502(t *testing.T) {
	backend := &stubBackend{err: errors.New("backend down")}
	api := newAPI(t, backend, nil)

	_, body := api.do(http.MethodPost, "/api/v1/payment-sessions", nil)
	base := "/api/v1/payment-sessions/" + body["id"].(string)
	api.do(http.MethodPut, base+"/header", map[string]any{"total_amount": "500", "payment_method_code": "CASH"})
	api.do(http.MethodPost, base+"/rows", map[string]any{"debtor_id": "A"})

	rr, _ := api.do(http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	rr, body = api.do(http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "distributing_allocations", body["state"])
	assert.Len(t, body["rows"], 1)
}

func TestAPI_CancelAndRowErrors(t *testing.T) {
	api := newAPI(t, &stubBackend{}, nil)

	_, body := api.do(http.MethodPost, "/api/v1/payment-sessions", nil)
	base := "/api/v1/payment-sessions/" + body["id"].(string)

	rr, _ := api.do(http.MethodPost, base+"/rows", map[string]any{"debtor_id": "A"})
	assert.Equal(t, http.StatusConflict, rr.Code, "rows need a header first")

	api.do(http.MethodPut, base+"/header", map[string]any{"total_amount": "100", "payment_method_code": "CASH"})
	rr, _ = api.do(http.MethodDelete, base+"/rows/3", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = api.do(http.MethodPatch, base+"/rows/0", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = api.do(http.MethodPut, base+"/header", map[string]any{"total": "1"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = api.do(http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr, _ = api.do(http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPI_AuthAndHealth(t *testing.T) {
	api := newAPI(t, &stubBackend{}, errors.New("postgres ping failed\nredis ping failed"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payment-methods", nil)
	rr := httptest.NewRecorder()
	api.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rr = httptest.NewRecorder()
	api.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "redis ping failed"))
}

func TestAPI_ImportsWithoutJournal(t *testing.T) {
	api := newAPI(t, &stubBackend{}, nil)

	rr, body := api.do(http.MethodGet, "/api/v1/imports?type=import_debts", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "journal unavailable", body["error"])

	rr, _ = api.do(http.MethodGet, "/api/v1/imports/65a1f0c2e4b0a1b2c3d4e5f6", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr, body = api.do(http.MethodPost, "/api/v1/imports", map[string]any{"file_path": "s3://b/k.csv"})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "importer not configured", body["error"])
}

func TestAPI_PatchRowIsAllOrNothing(t *testing.T) {
	api := newAPI(t, &stubBackend{}, nil)

	_, body := api.do(http.MethodPost, "/api/v1/payment-sessions", nil)
	base := "/api/v1/payment-sessions/" + body["id"].(string)
	api.do(http.MethodPut, base+"/header", map[string]any{"total_amount": "100", "payment_method_code": "CASH"})
	rr, _ := api.do(http.MethodPost, base+"/rows", map[string]any{"debtor_id": "A"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr, _ = api.do(http.MethodPatch, base+"/rows/0", map[string]any{"debt_id": "B1", "amount_to_apply": "5"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr, body = api.do(http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	row := body["rows"].([]any)[0].(map[string]any)
	assert.Equal(t, "A1", row["debt"].(map[string]any)["id"])
	assert.Equal(t, "100", row["amount_to_apply"])
}
