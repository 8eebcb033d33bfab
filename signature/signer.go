package signature

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Signer produces Signature headers for outgoing requests and test
// fixtures, mirroring what Verifier expects.
type Signer struct {
	Secret string
	Clock  func() time.Time
}

func (s Signer) Sign(body []byte) string {
	now := time.Now().UTC()
	if s.Clock != nil {
		now = s.Clock()
	}
	return s.SignAt(body, now)
}

func (s Signer) SignAt(body []byte, signedAt time.Time) string {
	timestamp := signedAt.Unix()
	digest := computeDigest(strings.TrimSpace(s.Secret), timestamp, body)
	return fmt.Sprintf("%s=%d,%s=%s", timestampKey, timestamp, schemeV1Key, hex.EncodeToString(digest))
}
