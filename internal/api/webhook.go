package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/example/ec-storefront/internal/command"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Signature"

var errBadSignature = errors.New("invalid signature")

type paymentWebhook struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Reason  string `json:"reason"`
}

// Sign returns the signature a gateway sends for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *Handlers) verify(body []byte, signature string) bool {
	if len(h.webhookSecret) == 0 || signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.webhookSecret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// PaymentWebhook applies a gateway status update. The raw gateway status goes
// through the normalizer like any other write.
func (h *Handlers) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.verify(body, r.Header.Get(SignatureHeader)) {
		h.logger.WarnContext(r.Context(), "webhook signature rejected", "remote", r.RemoteAddr)
		respondError(w, http.StatusUnauthorized, errBadSignature.Error())
		return
	}

	var payload paymentWebhook
	if err := json.Unmarshal(body, &payload); err != nil || payload.OrderID == "" {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.cmdHandler.UpdateOrderStatus(r.Context(), command.UpdateOrderStatus{
		OrderID: payload.OrderID,
		Status:  payload.Status,
		Reason:  payload.Reason,
		Source:  command.SourceWebhook,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"orderId": o.ID, "status": string(o.Status)})
}
