package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureVerifier authenticates gateway payment callbacks. The gateway
// signs "{orderID}|{paymentID}" with HMAC-SHA256 under the shared key secret
// and sends the hex digest alongside the payment confirmation.
type SignatureVerifier struct {
	secret []byte
}

// NewSignatureVerifier constructs a verifier from the gateway key secret.
func NewSignatureVerifier(secret string) (*SignatureVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("payments: signature secret is required")
	}
	return &SignatureVerifier{secret: []byte(secret)}, nil
}

// Verify reports whether signature is the hex HMAC-SHA256 of
// "{orderID}|{paymentID}" under the configured secret. Comparison is
// constant time; a malformed signature never verifies.
func (v *SignatureVerifier) Verify(orderID, paymentID, signature string) bool {
	if v == nil || len(v.secret) == 0 {
		return false
	}

	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(provided) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	_, _ = mac.Write([]byte(orderID + "|" + paymentID))
	expected := mac.Sum(nil)

	return hmac.Equal(provided, expected)
}
