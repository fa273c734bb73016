// Package signature implements the webhook signing scheme: a hex-encoded
// HMAC-SHA256 of the exact raw request body under a shared secret.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/easebot/rankledger/internal/apperrors"
)

// Sign computes the hex HMAC-SHA256 digest of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verifier validates inbound webhook signatures against a shared secret.
type Verifier struct {
	secret string
}

// NewVerifier creates a Verifier. An empty secret is permitted at construction
// so the service can start without webhook support; Verify then fails closed.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Configured reports whether a shared secret is present.
func (v *Verifier) Configured() bool {
	return v.secret != ""
}

// Verify checks the supplied hex signature against the digest of body.
// It returns apperrors.ErrConfiguration when no secret is configured,
// apperrors.ErrAuthentication on any mismatch, and nil only on an exact match.
// The comparison is constant time; a signature that fails hex decoding or has
// the wrong length is treated as a guaranteed mismatch before comparing.
// The expected digest is never returned to the caller.
func (v *Verifier) Verify(body []byte, supplied string) error {
	if v.secret == "" {
		return fmt.Errorf("%w: webhook secret not configured", apperrors.ErrConfiguration)
	}

	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(supplied)
	if err != nil || len(got) != len(expected) {
		return fmt.Errorf("%w: invalid signature", apperrors.ErrAuthentication)
	}
	if !hmac.Equal(expected, got) {
		return fmt.Errorf("%w: invalid signature", apperrors.ErrAuthentication)
	}
	return nil
}
