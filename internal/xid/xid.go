package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

var canonical = regexp.MustCompile(`^[a-z]+-[0-9]+-[0-9a-f]{16}$`)

func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}

// Valid reports whether id conforms to the canonical identifier format
// produced by New. Identifiers that do not match (hand-edited exports,
// ids minted by older installations) carry no strong identity.
func Valid(id string) bool {
	return canonical.MatchString(id)
}
