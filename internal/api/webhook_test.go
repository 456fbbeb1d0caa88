package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/ec-storefront/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *testServer) webhook(body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewBufferString(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestPaymentWebhook(t *testing.T) {
	s := newTestServer(t)
	admin := s.token("admin-1", auth.RoleAdmin)
	customer := s.token("user-1", auth.RoleCustomer)
	s.seedCart(admin, customer)
	rec := s.do(http.MethodPost, "/api/orders", customer, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	orderID := decodeBody[map[string]any](t, rec)["id"].(string)

	body := `{"orderId":"` + orderID + `","status":"payment confirmed - processing"}`

	t.Run("missing signature", func(t *testing.T) {
		rec := s.webhook(body, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong signature", func(t *testing.T) {
		rec := s.webhook(body, Sign([]byte("not-the-secret"), []byte(body)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-hex signature", func(t *testing.T) {
		rec := s.webhook(body, "zz")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("signed", func(t *testing.T) {
		rec := s.webhook(body, Sign([]byte(webhookSecret), []byte(body)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"orderId":"`+orderID+`","status":"PROCESSING"}`, rec.Body.String())
	})

	t.Run("redelivery is a no-op", func(t *testing.T) {
		rec := s.webhook(body, Sign([]byte(webhookSecret), []byte(body)))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown gateway status", func(t *testing.T) {
		unknown := `{"orderId":"` + orderID + `","status":"???"}`
		rec := s.webhook(unknown, Sign([]byte(webhookSecret), []byte(unknown)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing order id", func(t *testing.T) {
		empty := `{"status":"shipped"}`
		rec := s.webhook(empty, Sign([]byte(webhookSecret), []byte(empty)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandlers_VerifyWithoutSecretRejects(t *testing.T) {
	h := &Handlers{}
	assert.False(t, h.verify([]byte("{}"), Sign(nil, []byte("{}"))))
}
