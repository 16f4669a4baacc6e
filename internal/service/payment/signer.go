package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer подписывает и проверяет callbacks платёжного шлюза.
// Подпись — HMAC-SHA256 от "<gateway_order_id>|<gateway_payment_id>"
// в hex; сравнение выполняется за константное время.
type Signer struct {
	secret []byte
}

// NewSigner создаёт подписанта с общим секретом шлюза.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign возвращает hex-подпись пары идентификаторов шлюза.
func (s *Signer) Sign(gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify проверяет подпись callback'а.
func (s *Signer) Verify(gatewayOrderID, gatewayPaymentID, signature string) bool {
	expected := s.Sign(gatewayOrderID, gatewayPaymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
