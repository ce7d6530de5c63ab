package room

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Join codes skip 0/O and 1/I so they survive being read aloud.
const (
	shortIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	shortIDLength   = 6
)

func newShortID() (string, error) {
	var sb strings.Builder
	sb.Grow(shortIDLength)
	limit := big.NewInt(int64(len(shortIDAlphabet)))
	for range shortIDLength {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		sb.WriteByte(shortIDAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// normalizeShortID accepts codes typed in lower case or with spaces.
func normalizeShortID(ref string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(ref), " ", ""))
}
