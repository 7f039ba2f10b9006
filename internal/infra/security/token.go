package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// defaultTokenBytes gives 256 bits of entropy, 43 characters once encoded.
const defaultTokenBytes = 32

// RandomTokenGenerator issues opaque bearer tokens. Tokens carry no claims;
// what a token grants lives in the session store, so deleting the session
// revokes the token.
type RandomTokenGenerator struct {
	Size int
}

func (g RandomTokenGenerator) NewToken() (string, error) {
	size := g.Size
	if size <= 0 {
		size = defaultTokenBytes
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token: entropy read failed: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
