// Package verify talks to the VerifyMyAge batch estimation API and
// watches the local callback receiver for results.
package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Signer produces the HMAC-SHA256 request signatures the API expects.
// The digest must cover the exact bytes sent on the wire.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the lowercase hex digest of payload.
func (s *Signer) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Authorization builds the full header value: "hmac <key>:<digest>".
func (s *Signer) Authorization(apiKey string, payload []byte) string {
	return fmt.Sprintf("hmac %s:%s", apiKey, s.Sign(payload))
}
