package byl

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Config{
		BaseURL:    server.URL,
		ProjectID:  "42",
		Token:      "byl-token",
		HookSecret: "hook-secret",
	}, server.Client(), zap.NewNop())
}

func TestClient_CreateCheckout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/projects/42/checkouts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer byl-token", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "15", body["client_reference_id"])
		items := body["items"].([]any)
		require.Len(t, items, 1)
		price := items[0].(map[string]any)["price_data"].(map[string]any)
		assert.EqualValues(t, 79000, price["unit_amount"])

		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"id": 901, "url": "https://byl.mn/checkout/901", "status": "open"},
		})
	})

	client := newTestClient(t, mux)
	require.True(t, client.Enabled())

	checkout, err := client.CreateCheckout(context.Background(), CheckoutRequest{
		ClientReferenceID: "15",
		CustomerEmail:     "student@example.mn",
		ItemName:          "Go course",
		Amount:            79000,
		SuccessURL:        "https://lms.mn/ok",
		CancelURL:         "https://lms.mn/cancel",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(901), checkout.ID)
	assert.Equal(t, "https://byl.mn/checkout/901", checkout.URL)
	assert.False(t, checkout.Completed())
}

func TestClient_CreateCheckout_Error(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	checkout, err := client.CreateCheckout(context.Background(), CheckoutRequest{Amount: 1})

	assert.Error(t, err)
	assert.Nil(t, checkout)
	assert.Contains(t, err.Error(), "status 422")
}

func TestClient_GetCheckout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/projects/42/checkouts/901", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"id": 901, "status": "complete", "client_reference_id": "15"},
		})
	})

	client := newTestClient(t, mux)
	checkout, err := client.GetCheckout(context.Background(), "901")

	require.NoError(t, err)
	assert.True(t, checkout.Completed())
	assert.Equal(t, "15", checkout.ClientReferenceID)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"type":"checkout.completed"}`)
	valid := hex.EncodeToString(Sign(body, "hook-secret"))

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    string
		expected  bool
	}{
		{name: "valid", body: body, signature: valid, secret: "hook-secret", expected: true},
		{name: "tampered body", body: []byte(`{"type":"x"}`), signature: valid, secret: "hook-secret"},
		{name: "wrong secret", body: body, signature: valid, secret: "other"},
		{name: "not hex", body: body, signature: "zz", secret: "hook-secret"},
		{name: "missing signature", body: body, secret: "hook-secret"},
		{name: "missing secret", body: body, signature: valid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, VerifySignature(tt.body, tt.signature, tt.secret))
		})
	}
}

func TestParseEvent(t *testing.T) {
	event, err := ParseEvent([]byte(`{"id":1,"type":"checkout.completed","data":{"object":{"id":901,"status":"complete","client_reference_id":"15"}}}`))

	require.NoError(t, err)
	assert.Equal(t, EventCheckoutCompleted, event.Type)
	assert.Equal(t, int64(901), event.Data.Object.ID)
	assert.Equal(t, "15", event.Data.Object.ClientReferenceID)

	_, err = ParseEvent([]byte("{"))
	assert.Error(t, err)
}
