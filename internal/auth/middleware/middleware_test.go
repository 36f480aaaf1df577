package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

// mockValidator is a mock implementation of TokenValidator
type mockValidator struct {
	userID int
	role   int
	err    error
}

func (m *mockValidator) ValidateAccessToken(token string) (int, int, error) {
	if m.err != nil {
		return 0, 0, m.err
	}
	return m.userID, m.role, nil
}

func identityHandler(t *testing.T, expectedUserID int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r.Context())
		assert.True(t, ok)
		assert.Equal(t, expectedUserID, userID)
		w.WriteHeader(http.StatusOK)
	})
}

func TestRoleMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		validator      *mockValidator
		requiredRole   int
		header         string
		cookie         string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "no token",
			validator:      &mockValidator{},
			requiredRole:   2,
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"authentication required"}`,
		},
		{
			name:           "malformed header",
			validator:      &mockValidator{},
			requiredRole:   2,
			header:         "Token abc",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"authentication required"}`,
		},
		{
			name:           "invalid token",
			validator:      &mockValidator{err: errors.New("expired")},
			requiredRole:   2,
			header:         "Bearer abc",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"invalid or expired token"}`,
		},
		{
			name:           "student on admin route",
			validator:      &mockValidator{userID: 7, role: 1},
			requiredRole:   2,
			header:         "Bearer abc",
			expectedStatus: http.StatusForbidden,
			expectedBody:   `{"error":"insufficient permissions"}`,
		},
		{
			name:           "admin via cookie",
			validator:      &mockValidator{userID: 7, role: 2},
			requiredRole:   2,
			cookie:         "abc",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "any authenticated user",
			validator:      &mockValidator{userID: 7, role: 1},
			requiredRole:   0,
			header:         "bearer abc",
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: tt.cookie})
			}
			w := httptest.NewRecorder()

			RoleMiddleware(tt.validator, tt.requiredRole)(identityHandler(t, 7)).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, w.Body.String())
			}
		})
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	t.Run("anonymous passes through", func(t *testing.T) {
		handler := OptionalAuthMiddleware(&mockValidator{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := GetUserID(r.Context())
			assert.False(t, ok)
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invalid token is ignored", func(t *testing.T) {
		handler := OptionalAuthMiddleware(&mockValidator{err: errors.New("bad")})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := GetUserID(r.Context())
			assert.False(t, ok)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer x")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("valid token sets identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer x")
		w := httptest.NewRecorder()

		OptionalAuthMiddleware(&mockValidator{userID: 7, role: 1})(identityHandler(t, 7)).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		configured     string
		provided       string
		expectedStatus int
	}{
		{name: "valid", configured: "k1", provided: "k1", expectedStatus: http.StatusOK},
		{name: "wrong", configured: "k1", provided: "k2", expectedStatus: http.StatusUnauthorized},
		{name: "missing", configured: "k1", provided: "", expectedStatus: http.StatusUnauthorized},
		{name: "not configured", configured: "", provided: "", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := APIKeyMiddleware(tt.configured)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.provided != "" {
				req.Header.Set("X-API-Key", tt.provided)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}
