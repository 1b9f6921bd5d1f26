package checkout

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

// Crockford-style alphabet without I, L, O and U.
const orderNumberAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const orderNumberSuffixLen = 6

// NewOrderNumber builds a human readable order number such as
// SO-20260315-7K3QZP.
func NewOrderNumber(prefix string, now time.Time) (string, error) {
	buf := make([]byte, orderNumberSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("order number entropy: %w", err)
	}
	suffix := make([]byte, orderNumberSuffixLen)
	for i, b := range buf {
		suffix[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "SO"
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("20060102"), suffix), nil
}
