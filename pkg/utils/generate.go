package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ==================== TRACKING TOKEN ====================

// TokenAlphabet leaves out 0/O and 1/I/L so tokens survive being read aloud.
const TokenAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const TrackingTokenLength = 12

// GenerateToken returns a random string of length n drawn from TokenAlphabet.
func GenerateToken(n int) (string, error) {
	var sb strings.Builder
	sb.Grow(n)

	max := big.NewInt(int64(len(TokenAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(TokenAlphabet[idx.Int64()])
	}

	return sb.String(), nil
}

// GenerateTrackingToken returns a 12-character tracking token.
func GenerateTrackingToken() (string, error) {
	return GenerateToken(TrackingTokenLength)
}

// GenerateCompositeToken combines a base36 timestamp with a random suffix.
// Used when random tokens keep colliding.
func GenerateCompositeToken(now time.Time) string {
	suffix, err := GenerateToken(6)
	if err != nil {
		suffix = strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	}
	return strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)) + suffix
}
