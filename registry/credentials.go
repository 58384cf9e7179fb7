package registry

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"

	"github.com/google/uuid"
)

// credentials mints ids and tokens and verifies them. Grounded on the
// teacher's use of github.com/google/uuid for service ids (core/discovery.go,
// core/component.go) for mintID, and crypto/rand directly for mintToken —
// a credential isn't an identifier, it needs raw high-entropy bytes, not a
// UUID's structured layout, so the standard library is the right tool here.
type credentials struct {
	registrationKey string
}

func newCredentials(registrationKey string) *credentials {
	return &credentials{registrationKey: registrationKey}
}

// mintID returns a new globally-unique instance id in canonical textual
// form. uuid.NewString uses crypto/rand under the hood (UUID v4), giving
// 122 bits of randomness — comfortably unique across the process lifetime,
// independent of the entropy requirements that apply to tokens.
func mintID() string {
	return uuid.NewString()
}

// tokenEntropyBytes is 16 bytes = 128 bits of token entropy.
const tokenEntropyBytes = 16

// mintToken returns a new cryptographically random token, hex-encoded.
func mintToken() (string, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// verifyRegistrationKey reports whether presented matches the process-wide
// shared secret. Equal-length inputs are compared in constant time; a
// length mismatch is rejected immediately (see constantTimeEqual).
func (c *credentials) verifyRegistrationKey(presented string) bool {
	return constantTimeEqual(c.registrationKey, presented)
}

// constantTimeEqual compares two strings in constant time relative to
// their length, the same approach crypto/hmac.Equal takes: a length
// mismatch is rejected up front (length isn't the secret), and an
// equal-length comparison never short-circuits on the first differing
// byte.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
