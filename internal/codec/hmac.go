package codec

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Authenticator wraps the external HMAC-SHA256 primitive (init/update/finish
// producing 32 bytes). crypto/hmac and crypto/sha256 are the idiomatic stdlib
// choice for the primitive itself; no third-party library does HMAC-SHA256
// any differently.
type Authenticator struct {
	key []byte
}

func NewAuthenticator(key []byte) *Authenticator {
	return &Authenticator{key: key}
}

// TruncatedHex returns the lowercase hex of the first 8 bytes of
// HMAC-SHA256(key, data).
func (a *Authenticator) TruncatedHex(data []byte) string {
	mac := hmac.New(sha256.New, a.key)
	mac.Write(data)
	sum := mac.Sum(nil)
	return hex.EncodeToString(sum[:8])
}
