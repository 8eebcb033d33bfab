package signature

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-webhooks/core"
)

const (
	// HeaderName carries the signature on inbound requests.
	HeaderName = "Signature"

	timestampKey = "t"
	schemeV1Key  = "v1"
)

// Verifier checks the Signature header of inbound deliveries.
// A zero SkewTolerance falls back to the package default of five
// minutes. Clock is injectable for tests.
type Verifier struct {
	Secret        string
	SkewTolerance time.Duration
	Clock         func() time.Time
}

func NewVerifier(cfg core.SigningConfig) *Verifier {
	return &Verifier{
		Secret:        strings.TrimSpace(cfg.Secret),
		SkewTolerance: cfg.SkewTolerance(),
	}
}

func (v *Verifier) Verify(_ context.Context, delivery core.InboundDelivery) error {
	if v == nil {
		return authError("signature: verifier is not configured")
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return authError("signature: signing secret is required")
	}

	header := strings.TrimSpace(delivery.SignatureHeader)
	if header == "" {
		return authError("signature: Signature header is required")
	}

	timestamp, provided, err := parseHeader(header)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if v.Clock != nil {
		now = v.Clock()
	}
	skew := v.SkewTolerance
	if skew <= 0 {
		skew = time.Duration(core.DefaultSkewSeconds) * time.Second
	}
	signedAt := time.Unix(timestamp, 0).UTC()
	if signedAt.Before(now.Add(-skew)) || signedAt.After(now.Add(skew)) {
		return authError("signature: timestamp is outside the allowed window")
	}

	expected := computeDigest(secret, timestamp, delivery.Body)
	decoded, err := hex.DecodeString(provided)
	if err != nil {
		return authError("signature: decode hex signature: " + err.Error())
	}
	if subtle.ConstantTimeCompare(decoded, expected) != 1 {
		return authError("signature: verification failed")
	}
	return nil
}

// parseHeader splits "t=<unix>,v1=<hex>" into its parts. Unknown keys
// are ignored so the scheme can grow a v2 without breaking verifiers.
func parseHeader(header string) (int64, string, error) {
	var (
		rawTimestamp string
		rawSignature string
	)
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case timestampKey:
			rawTimestamp = strings.TrimSpace(value)
		case schemeV1Key:
			rawSignature = strings.TrimSpace(value)
		}
	}
	if rawTimestamp == "" || rawSignature == "" {
		return 0, "", authError("signature: header is malformed, expected t=<unix>,v1=<hex>")
	}
	timestamp, err := strconv.ParseInt(rawTimestamp, 10, 64)
	if err != nil {
		return 0, "", authError("signature: timestamp is not a unix epoch: " + err.Error())
	}
	return timestamp, rawSignature, nil
}

func computeDigest(secret string, timestamp int64, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = fmt.Fprintf(mac, "%d.", timestamp)
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

func authError(message string) error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithTextCode(core.WebhookErrorSignatureInvalid)
}

var _ core.Verifier = (*Verifier)(nil)
