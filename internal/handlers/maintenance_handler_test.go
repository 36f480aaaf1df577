package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/auth/middleware"
	"github.com/onlinecourse/backend/internal/middlewares"
	"github.com/onlinecourse/backend/internal/services"
)

const testAPIKey = "maintenance-key"

type mockMaintenanceService struct {
	err   error
	calls int
}

func (m *mockMaintenanceService) ExpirePayments(ctx context.Context) (int64, error) {
	m.calls++
	return 3, m.err
}

func (m *mockMaintenanceService) CleanTokens(ctx context.Context) (int64, error) {
	m.calls++
	return 12, m.err
}

func (m *mockMaintenanceService) Sweep(ctx context.Context) (*services.SweepResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &services.SweepResult{ExpiredPayments: 3, DeletedTokens: 12}, nil
}

func setupMaintenanceRouter(svc *mockMaintenanceService) chi.Router {
	handler := NewMaintenanceHandler(svc, zap.NewNop())

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKeyMiddleware(testAPIKey))
			handler.RegisterRoutes(r)
		})
	})
	return r
}

func TestMaintenanceHandler(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		apiKey     string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "sweep", target: "/api/v1/maintenance/sweep", apiKey: testAPIKey, wantStatus: http.StatusOK, wantBody: `{"expiredPayments":3,"deletedTokens":12}`},
		{name: "expire payments", target: "/api/v1/maintenance/payments/expire", apiKey: testAPIKey, wantStatus: http.StatusOK, wantBody: `{"expired":3}`},
		{name: "clean tokens", target: "/api/v1/maintenance/tokens/clean", apiKey: testAPIKey, wantStatus: http.StatusOK, wantBody: `{"deleted":12}`},
		{name: "missing api key", target: "/api/v1/maintenance/sweep", wantStatus: http.StatusUnauthorized},
		{name: "wrong api key", target: "/api/v1/maintenance/sweep", apiKey: "guess", wantStatus: http.StatusUnauthorized},
		{name: "sweep failure", target: "/api/v1/maintenance/sweep", apiKey: testAPIKey, err: errors.New("db down"), wantStatus: http.StatusInternalServerError, wantBody: `{"error":"internal server error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockMaintenanceService{err: tt.err}
			router := setupMaintenanceRouter(svc)
			req := newRequest(t, http.MethodPost, tt.target, nil, "")
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}

			w := serve(router, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, w.Body.String())
			}
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Zero(t, svc.calls)
			}
		})
	}
}

func TestMaintenanceHandler_InternalErrorCarriesRequestID(t *testing.T) {
	router := middlewares.RequestIDMiddleware(setupMaintenanceRouter(&mockMaintenanceService{err: errors.New("db down")}))
	req := newRequest(t, http.MethodPost, "/api/v1/maintenance/sweep", nil, "")
	req.Header.Set("X-API-Key", testAPIKey)
	req.Header.Set("X-Request-ID", "req-7")

	w := serve(router, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error","requestId":"req-7"}`, w.Body.String())
	assert.Equal(t, "req-7", w.Header().Get("X-Request-ID"))
}

type mockPinger struct {
	err error
}

func (m mockPinger) PingContext(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("ping without deadline")
	}
	return m.err
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "healthy", wantStatus: http.StatusOK, wantBody: `{"status":"ok","database":"up"}`},
		{name: "database down", err: errors.New("connection refused"), wantStatus: http.StatusServiceUnavailable, wantBody: `{"status":"unavailable","database":"down"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHealthHandler(mockPinger{err: tt.err}, zap.NewNop()).RegisterRoutes(r)

			w := serve(r, newRequest(t, http.MethodGet, "/health", nil, ""))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}
