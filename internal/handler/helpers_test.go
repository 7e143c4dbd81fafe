package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/segyhp/loan-ledger/internal/metrics"
	"github.com/segyhp/loan-ledger/pkg/auth"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestJWT(t *testing.T) *auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(auth.JWTConfig{
		Secret:     "handler-test-secret",
		Issuer:     "loan-ledger-test",
		Expiration: time.Hour,
	})
	require.NoError(t, err)
	return svc
}

func newTestRouter(t *testing.T, service LoanService, health *HealthHandler, jwt *auth.JWTService) *mux.Router {
	t.Helper()
	if health == nil {
		health = NewHealthHandler(nil, nil, time.Second)
	}
	return NewRouter(NewLoanHandler(service), health, jwt, metrics.New(prometheus.NewRegistry()), zap.NewNop())
}

func tokenFor(t *testing.T, jwt *auth.JWTService, subject string, roles ...string) string {
	t.Helper()
	token, err := jwt.GenerateToken(subject, roles)
	require.NoError(t, err)
	return token
}

func doRequest(t *testing.T, router http.Handler, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}
