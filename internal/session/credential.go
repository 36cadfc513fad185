package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// credentialBytes sizes the raw credential. 32 bytes (256 bits) keeps
// guessing infeasible while the encoded form stays header-sized.
const credentialBytes = 32

// GenerateCredential mints a fresh viewer credential. Credentials are
// never reused: rotation on takeover always produces a new one.
func GenerateCredential() (string, error) {
	buf := make([]byte, credentialBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: generate credential: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
