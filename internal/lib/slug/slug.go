package slug

import (
	"crypto/rand"
	"math/big"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	fallback     = "team"
	suffixLen    = 6
	suffixAlphab = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// Make turns a team name into a URL-safe slug: "Café Crew!" becomes "cafe-crew".
func Make(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, name)
	if err != nil {
		plain = name
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(plain) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return fallback
	}
	return s
}

// WithSuffix appends a random disambiguating suffix to base.
func WithSuffix(base string) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteByte('-')
	max := big.NewInt(int64(len(suffixAlphab)))
	for i := 0; i < suffixLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("slug: crypto/rand unavailable: " + err.Error())
		}
		b.WriteByte(suffixAlphab[n.Int64()])
	}
	return b.String()
}
