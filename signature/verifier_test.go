package signature

import (
	"context"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-webhooks/core"
)

func TestVerifier_AcceptsValidSignature(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	body := []byte(`{"event":"invoice.paid"}`)

	signer := Signer{Secret: "whsec_test", Clock: func() time.Time { return now }}
	verifier := &Verifier{
		Secret:        "whsec_test",
		SkewTolerance: 5 * time.Minute,
		Clock:         func() time.Time { return now },
	}

	err := verifier.Verify(context.Background(), core.InboundDelivery{
		SignatureHeader: signer.Sign(body),
		Body:            body,
	})
	if err != nil {
		t.Fatalf("expected valid signature to verify, got %v", err)
	}
}

func TestVerifier_RejectsTamperedBody(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	signer := Signer{Secret: "whsec_test", Clock: func() time.Time { return now }}
	verifier := &Verifier{
		Secret: "whsec_test",
		Clock:  func() time.Time { return now },
	}

	err := verifier.Verify(context.Background(), core.InboundDelivery{
		SignatureHeader: signer.Sign([]byte(`{"amount":100}`)),
		Body:            []byte(`{"amount":999}`),
	})
	if err == nil {
		t.Fatal("expected tampered body to be rejected")
	}
	assertAuthCategory(t, err)
}

func TestVerifier_RejectsWrongSecret(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	body := []byte(`{}`)
	signer := Signer{Secret: "whsec_other", Clock: func() time.Time { return now }}
	verifier := &Verifier{
		Secret: "whsec_test",
		Clock:  func() time.Time { return now },
	}

	err := verifier.Verify(context.Background(), core.InboundDelivery{
		SignatureHeader: signer.Sign(body),
		Body:            body,
	})
	if err == nil {
		t.Fatal("expected signature from wrong secret to be rejected")
	}
	assertAuthCategory(t, err)
}

func TestVerifier_RejectsStaleTimestamp(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	body := []byte(`{}`)
	signer := Signer{Secret: "whsec_test"}
	verifier := &Verifier{
		Secret:        "whsec_test",
		SkewTolerance: 5 * time.Minute,
		Clock:         func() time.Time { return now },
	}

	for name, signedAt := range map[string]time.Time{
		"too_old":    now.Add(-6 * time.Minute),
		"too_future": now.Add(6 * time.Minute),
	} {
		err := verifier.Verify(context.Background(), core.InboundDelivery{
			SignatureHeader: signer.SignAt(body, signedAt),
			Body:            body,
		})
		if err == nil {
			t.Fatalf("%s: expected timestamp outside skew window to be rejected", name)
		}
		if !strings.Contains(err.Error(), "window") {
			t.Fatalf("%s: expected skew error, got %v", name, err)
		}
		assertAuthCategory(t, err)
	}
}

func TestVerifier_AcceptsTimestampAtWindowEdge(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	body := []byte(`{}`)
	signer := Signer{Secret: "whsec_test"}
	verifier := &Verifier{
		Secret:        "whsec_test",
		SkewTolerance: 5 * time.Minute,
		Clock:         func() time.Time { return now },
	}

	err := verifier.Verify(context.Background(), core.InboundDelivery{
		SignatureHeader: signer.SignAt(body, now.Add(-5*time.Minute)),
		Body:            body,
	})
	if err != nil {
		t.Fatalf("expected timestamp on the window edge to verify, got %v", err)
	}
}

func TestVerifier_RejectsMalformedHeader(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	verifier := &Verifier{
		Secret: "whsec_test",
		Clock:  func() time.Time { return now },
	}

	for name, header := range map[string]string{
		"empty":             "",
		"missing_signature": "t=1700000000",
		"missing_timestamp": "v1=deadbeef",
		"bad_timestamp":     "t=not_a_number,v1=deadbeef",
		"bad_hex":           "t=1700000000,v1=zzzz",
		"no_pairs":          "gibberish",
	} {
		err := verifier.Verify(context.Background(), core.InboundDelivery{
			SignatureHeader: header,
			Body:            []byte(`{}`),
		})
		if err == nil {
			t.Fatalf("%s: expected malformed header to be rejected", name)
		}
		assertAuthCategory(t, err)
	}
}

func TestVerifier_IgnoresUnknownSchemeKeys(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	body := []byte(`{"ok":true}`)
	signer := Signer{Secret: "whsec_test", Clock: func() time.Time { return now }}
	verifier := &Verifier{
		Secret: "whsec_test",
		Clock:  func() time.Time { return now },
	}

	header := signer.Sign(body) + ",v2=futurescheme"
	err := verifier.Verify(context.Background(), core.InboundDelivery{
		SignatureHeader: header,
		Body:            body,
	})
	if err != nil {
		t.Fatalf("expected unknown scheme keys to be ignored, got %v", err)
	}
}

func assertAuthCategory(t *testing.T, err error) {
	t.Helper()
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected rich error, got %T: %v", err, err)
	}
	if richErr.Category != goerrors.CategoryAuth {
		t.Fatalf("expected auth category, got %v", richErr.Category)
	}
}
