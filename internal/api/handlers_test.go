// mpesa-gateway/internal/api/handlers_test.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/mpesa-gateway/internal/audit"
	"github.com/example/mpesa-gateway/internal/idempotency"
	"github.com/example/mpesa-gateway/internal/mpesa"
	"github.com/example/mpesa-gateway/internal/orchestrator"
	m "github.com/example/mpesa-gateway/pkg/metrics"
)

const testAPIKey = "test_api_key"

type senderFunc func(ctx context.Context, endpoint string, params map[string]string, op mpesa.OperationType) mpesa.GatewayResult

func (f senderFunc) Send(ctx context.Context, endpoint string, params map[string]string, op mpesa.OperationType) mpesa.GatewayResult {
	return f(ctx, endpoint, params, op)
}

type captureStore struct {
	mu      sync.Mutex
	records []audit.Record
}

func (s *captureStore) Insert(_ context.Context, rec audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *captureStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func newTestRouter(t *testing.T, sender mpesa.Sender) (*mux.Router, *captureStore) {
	t.Helper()
	store := &captureStore{}
	dispatcher := audit.NewDispatcher(store, filepath.Join(t.TempDir(), "fallback.jsonl"),
		audit.Options{IdleTimeout: 50 * time.Millisecond, Backoff: 10 * time.Millisecond})
	resolver := idempotency.NewResolver(0)
	provider := orchestrator.Provider{ServiceProviderCode: "171717"}
	build := func(f orchestrator.Family) *orchestrator.Orchestrator {
		return orchestrator.New(f, resolver, sender, dispatcher, provider)
	}
	deps := Deps{
		CreditIn:            build(orchestrator.CreditInFamily()),
		CreditOut:           build(orchestrator.CreditOutFamily()),
		BusinessTransfer:    build(orchestrator.BusinessTransferFamily()),
		NameQuery:           build(orchestrator.NameQueryFamily()),
		StatusQuery:         build(orchestrator.StatusQueryFamily()),
		Reversal:            build(orchestrator.ReversalFamily()),
		Audit:               dispatcher,
		SecurityCredential:  "cred",
		InitiatorIdentifier: "init",
	}

	// mirrors the cmd/api wiring: metrics middleware on the root router,
	// named routes feeding the operation label
	r := mux.NewRouter()
	r.Use(MetricsMiddleware)
	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(APIKeyAuth(testAPIKey))
	v1.HandleFunc("/c2b/payments", CustomerPaymentHandler(deps.CreditIn)).Methods(http.MethodPost).Name("c2b")
	v1.HandleFunc("/b2c/payments", CustomerPaymentHandler(deps.CreditOut)).Methods(http.MethodPost).Name("b2c")
	v1.HandleFunc("/b2b/payments", BusinessTransferHandler(deps.BusinessTransfer)).Methods(http.MethodPost).Name("b2b")
	v1.HandleFunc("/query-customer", NameQueryHandler(deps.NameQuery)).Methods(http.MethodGet).Name("query_customer")
	v1.HandleFunc("/query-transaction", StatusQueryHandler(deps.StatusQuery)).Methods(http.MethodGet).Name("query_transaction")
	v1.HandleFunc("/reversal", ReversalHandler(deps)).Methods(http.MethodPut).Name("reversal")
	v1.HandleFunc("/monitoring/logs", MonitoringHandler(dispatcher)).Methods(http.MethodGet).Name("monitoring")
	return r, store
}

func successSender(body map[string]any) senderFunc {
	return func(_ context.Context, _ string, _ map[string]string, _ mpesa.OperationType) mpesa.GatewayResult {
		return mpesa.GatewayResult{Success: true, StatusCode: http.StatusOK, Body: body}
	}
}

func doJSON(t *testing.T, r *mux.Router, method, path, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if auth {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestC2BPaymentHappyPath(t *testing.T) {
	r, _ := newTestRouter(t, successSender(map[string]any{
		"output_ResponseCode":  "INS-0",
		"output_TransactionID": "T1",
	}))

	w := doJSON(t, r, http.MethodPost, "/api/v1/c2b/payments",
		`{"transaction_reference":"ORDER_1","customer_msisdn":"258843330333","amount":100.0}`, true)

	assert.Equal(t, http.StatusCreated, w.Code)
	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)

	data := env.Data.(map[string]any)
	assert.Equal(t, "INS-0", data["response_code"])
	assert.Equal(t, "T1", data["transaction_id"])
	assert.Regexp(t, `^mpesa_\d{14}_[0-9a-f]{8}$`, data["third_party_reference"])
}

func TestC2BPaymentClientTokenIsEchoed(t *testing.T) {
	r, _ := newTestRouter(t, successSender(map[string]any{"output_ResponseCode": "INS-0"}))

	w := doJSON(t, r, http.MethodPost, "/api/v1/c2b/payments",
		`{"transaction_reference":"ORDER_1","customer_msisdn":"258843330333","amount":100.0,"third_party_reference":"INVOICE_2024_8596"}`, true)

	env := decodeEnvelope(t, w)
	data := env.Data.(map[string]any)
	assert.Equal(t, "INVOICE_2024_8596", data["third_party_reference"])
}

func TestC2BPaymentValidation(t *testing.T) {
	r, store := newTestRouter(t, successSender(nil))

	cases := []string{
		`{"transaction_reference":"","customer_msisdn":"258843330333","amount":100}`,
		`{"transaction_reference":"ORDER_1","customer_msisdn":"843330333","amount":100}`,
		`{"transaction_reference":"ORDER_1","customer_msisdn":"258843330333","amount":0}`,
		// rounds to 0.00, must not reach the gateway as a zero payment
		`{"transaction_reference":"ORDER_1","customer_msisdn":"258843330333","amount":0.004}`,
		`{"transaction_reference":"ORDER_1","customer_msisdn":"258843330333","amount":2000000}`,
		`not json`,
	}
	for _, body := range cases {
		w := doJSON(t, r, http.MethodPost, "/api/v1/c2b/payments", body, true)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		env := decodeEnvelope(t, w)
		assert.False(t, env.Success)
		require.NotNil(t, env.Error, body)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	}

	// validation failures short-circuit before any audit record exists
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, store.count())
}

func TestReversalInvalidAmountRejectedBeforeOrchestration(t *testing.T) {
	called := false
	sender := senderFunc(func(_ context.Context, _ string, _ map[string]string, _ mpesa.OperationType) mpesa.GatewayResult {
		called = true
		return mpesa.GatewayResult{Success: true, StatusCode: http.StatusOK}
	})
	r, store := newTestRouter(t, sender)

	for _, body := range []string{
		`{"transaction_id":"49XCDF6","third_party_reference":"REVERSAL_001","reversal_amount":-5}`,
		`{"transaction_id":"49XCDF6","third_party_reference":"REVERSAL_001","reversal_amount":0.004}`,
	} {
		w := doJSON(t, r, http.MethodPut, "/api/v1/reversal", body, true)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		env := decodeEnvelope(t, w)
		assert.False(t, env.Success, body)
	}
	assert.False(t, called)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, store.count())
}

func TestReversalFallsBackToConfiguredCredentials(t *testing.T) {
	var sentParams map[string]string
	sender := senderFunc(func(_ context.Context, _ string, params map[string]string, _ mpesa.OperationType) mpesa.GatewayResult {
		sentParams = params
		return mpesa.GatewayResult{Success: true, StatusCode: http.StatusOK, Body: map[string]any{"output_ResponseCode": "INS-0"}}
	})
	r, _ := newTestRouter(t, sender)

	w := doJSON(t, r, http.MethodPut, "/api/v1/reversal",
		`{"transaction_id":"49XCDF6","third_party_reference":"REVERSAL_001"}`, true)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "cred", sentParams["input_SecurityCredential"])
	assert.Equal(t, "init", sentParams["input_InitiatorIdentifier"])
}

func TestAuthRequired(t *testing.T) {
	r, _ := newTestRouter(t, successSender(nil))

	w := doJSON(t, r, http.MethodPost, "/api/v1/c2b/payments",
		`{"transaction_reference":"ORDER_1","customer_msisdn":"258843330333","amount":100}`, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "AUTHENTICATION_ERROR", env.Error.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/c2b/payments",
		strings.NewReader(`{"transaction_reference":"ORDER_1","customer_msisdn":"258843330333","amount":100}`))
	req.Header.Set("X-API-Key", "wrong")
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
}

func TestNameQueryReadsQueryString(t *testing.T) {
	r, _ := newTestRouter(t, successSender(map[string]any{
		"output_ResultCode":   "0",
		"output_CustomerName": "Jo*n Sm**h",
	}))

	w := doJSON(t, r, http.MethodGet,
		"/api/v1/query-customer?customer_msisdn=258843330333&third_party_reference=QUERY_REF_001", "", true)

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)
	data := env.Data.(map[string]any)
	assert.Equal(t, "Jo*n Sm**h", data["customer_name"])

	// token is mandatory on queries
	w = doJSON(t, r, http.MethodGet, "/api/v1/query-customer?customer_msisdn=258843330333", "", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusQuery(t *testing.T) {
	r, _ := newTestRouter(t, successSender(map[string]any{
		"output_ResponseCode":              "INS-0",
		"output_ResponseTransactionStatus": "Completed",
	}))

	w := doJSON(t, r, http.MethodGet,
		"/api/v1/query-transaction?third_party_reference=QUERY_TXN_001&query_reference=5C1400CVRO", "", true)

	assert.Equal(t, http.StatusCreated, w.Code)
	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)
	data := env.Data.(map[string]any)
	assert.Equal(t, "Completed", data["transaction_status"])
}

func TestFailureEnvelopeCarriesErrorAndReference(t *testing.T) {
	r, _ := newTestRouter(t, senderFunc(func(_ context.Context, _ string, _ map[string]string, _ mpesa.OperationType) mpesa.GatewayResult {
		return mpesa.GatewayResult{
			Success:    false,
			StatusCode: http.StatusUnprocessableEntity,
			Body:       map[string]any{"output_ResponseCode": "INS-2006"},
		}
	}))

	w := doJSON(t, r, http.MethodPost, "/api/v1/c2b/payments",
		`{"transaction_reference":"ORDER_1","customer_msisdn":"258843330333","amount":100}`, true)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INS-2006", env.Error.Code)
	assert.Equal(t, "Insufficient balance", env.Error.Message)

	// failure responses still carry the reference for later status queries
	data := env.Data.(map[string]any)
	assert.NotEmpty(t, data["third_party_reference"])
}

// One request bumps requests_total exactly once; the orchestration cycle is
// counted on its own series, so the two concerns never share an increment.
func TestRequestCountedOncePerSeries(t *testing.T) {
	r, _ := newTestRouter(t, successSender(map[string]any{"output_ResponseCode": "INS-0"}))

	reqBefore := testutil.ToFloat64(m.OperationRequestsTotal.WithLabelValues("c2b", "SUCCESS"))
	opBefore := testutil.ToFloat64(m.OperationOutcomesTotal.WithLabelValues("c2b", "SUCCESS"))

	w := doJSON(t, r, http.MethodPost, "/api/v1/c2b/payments",
		`{"transaction_reference":"ORDER_1","customer_msisdn":"258843330333","amount":100}`, true)
	require.Equal(t, http.StatusCreated, w.Code)

	reqAfter := testutil.ToFloat64(m.OperationRequestsTotal.WithLabelValues("c2b", "SUCCESS"))
	opAfter := testutil.ToFloat64(m.OperationOutcomesTotal.WithLabelValues("c2b", "SUCCESS"))
	assert.Equal(t, 1.0, reqAfter-reqBefore)
	assert.Equal(t, 1.0, opAfter-opBefore)
}

func TestMonitoringEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, successSender(map[string]any{"output_ResponseCode": "INS-0"}))

	doJSON(t, r, http.MethodPost, "/api/v1/c2b/payments",
		`{"transaction_reference":"ORDER_1","customer_msisdn":"258843330333","amount":100}`, true)

	w := doJSON(t, r, http.MethodGet, "/api/v1/monitoring/logs", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)
	data := env.Data.(map[string]any)
	assert.Contains(t, data, "queued_count")
	assert.Contains(t, data, "is_draining")
	assert.Contains(t, data, "total_persisted")
	assert.Contains(t, data, "total_failed")
}
