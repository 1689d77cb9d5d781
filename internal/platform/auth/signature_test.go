package auth

import (
	"testing"
	"time"
)

func TestSignWebhookRoundTrip(t *testing.T) {
	secret := []byte("shh")
	ts := time.Unix(1_700_000_000, 0)
	body := []byte(`{"data":"2025-01-02 10:00:00"}`)

	sig := SignWebhook(secret, "/hooks/status", ts, body)
	if len(sig) != 64 {
		t.Fatalf("expected hex sha256 signature, got %q", sig)
	}
	if !VerifyWebhookSignature(secret, "/hooks/status", ts, body, sig) {
		t.Fatalf("expected signature to verify")
	}
	if VerifyWebhookSignature(secret, "/hooks/status", ts, []byte(`{}`), sig) {
		t.Fatalf("tampered body must not verify")
	}
	if VerifyWebhookSignature(secret, "/hooks/status", ts.Add(time.Second), body, sig) {
		t.Fatalf("different timestamp must not verify")
	}
	if VerifyWebhookSignature(secret, "/hooks/status", ts, body, "zz") {
		t.Fatalf("malformed signature must not verify")
	}
}

func TestSignWebhookEmptyPathDefaultsToRoot(t *testing.T) {
	ts := time.Unix(10, 0)
	if SignWebhook([]byte("k"), "", ts, nil) != SignWebhook([]byte("k"), "/", ts, nil) {
		t.Fatalf("expected empty path to sign as /")
	}
}
