package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// SignWebhook computes the hex HMAC-SHA256 signature sent with outbound status
// notifications. The signed message is "POST\n<path>\n<unix ts>\n<sha256(body)>".
func SignWebhook(secret []byte, path string, timestamp time.Time, body []byte) string {
	return hex.EncodeToString(computeHMAC(secret, canonicalWebhookMessage(path, timestamp, body)))
}

// VerifyWebhookSignature checks a signature produced by SignWebhook.
func VerifyWebhookSignature(secret []byte, path string, timestamp time.Time, body []byte, signature string) bool {
	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	expected := computeHMAC(secret, canonicalWebhookMessage(path, timestamp, body))
	return hmac.Equal(provided, expected)
}

func canonicalWebhookMessage(path string, timestamp time.Time, body []byte) []byte {
	if path == "" {
		path = "/"
	}
	sum := sha256.Sum256(body)
	return []byte(strings.Join([]string{
		"POST",
		path,
		strconv.FormatInt(timestamp.Unix(), 10),
		hex.EncodeToString(sum[:]),
	}, "\n"))
}

func computeHMAC(secret, message []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(message)
	return mac.Sum(nil)
}
