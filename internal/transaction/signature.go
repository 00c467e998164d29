package transaction

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureVerifier checks the keyed hash the gateway attaches to webhook
// deliveries: hex(HMAC-SHA256(secret, raw body)).
type SignatureVerifier struct {
	secret []byte
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

func (v *SignatureVerifier) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify accepts the payload when any of the supplied header values matches.
// Empty values are ignored, so an unsigned delivery is always rejected.
func (v *SignatureVerifier) Verify(payload []byte, signatures ...string) error {
	if len(v.secret) == 0 {
		return ErrSignatureMismatch
	}
	expected := []byte(v.Sign(payload))
	for _, sig := range signatures {
		sig = strings.ToLower(strings.TrimSpace(sig))
		if sig == "" {
			continue
		}
		if hmac.Equal(expected, []byte(sig)) {
			return nil
		}
	}
	return ErrSignatureMismatch
}
