// Package token generates opaque invitation tokens.
//
// Tokens are 32 random bytes encoded as lowercase base32 (RFC 4648) without
// padding, which keeps them URL-safe and 52 characters long.
package token

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
)

const byteLen = 32

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

func New() (string, error) {
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token.New: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(buf)), nil
}
