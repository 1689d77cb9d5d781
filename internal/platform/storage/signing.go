package storage

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
)

const (
	defaultLinkExpiry = 5 * time.Minute
	maxLinkExpiry     = 7 * 24 * time.Hour
)

var (
	errNoSigner       = errors.New("storage: signer is required")
	errInvalidBucket  = errors.New("storage: bucket name is required")
	errInvalidObject  = errors.New("storage: object name is required")
	errExpiryTooLong  = errors.New("storage: expiry exceeds permitted maximum")
	errSignerNotReady = errors.New("storage: signer not initialised")
)

// Signer signs V4 URL payloads on behalf of a service account.
type Signer interface {
	// Email is used as the GoogleAccessID of the signed URL.
	Email() string
	SignBytes(ctx context.Context, payload []byte) ([]byte, error)
}

// KeySigner signs with a service account private key held in memory.
type KeySigner struct {
	email string
	key   *rsa.PrivateKey
}

// LoadKeySigner reads a service account JSON key from disk.
func LoadKeySigner(path string) (*KeySigner, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read service account file: %w", err)
	}
	return ParseKeySigner(contents)
}

// ParseKeySigner builds a signer from the client_email and private_key of a
// service account JSON key.
func ParseKeySigner(data []byte) (*KeySigner, error) {
	var key struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("storage: decode service account json: %w", err)
	}
	email := strings.TrimSpace(key.ClientEmail)
	if email == "" {
		return nil, errors.New("storage: client_email missing in service account JSON")
	}
	block, _ := pem.Decode([]byte(strings.TrimSpace(key.PrivateKey)))
	if block == nil {
		return nil, errors.New("storage: private_key missing or not PEM encoded")
	}
	rsaKey, err := parseRSAKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	return &KeySigner{email: email, key: rsaKey}, nil
}

func parseRSAKey(der []byte) (*rsa.PrivateKey, error) {
	if parsed, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("storage: private key is not RSA")
		}
		return rsaKey, nil
	}
	rsaKey, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("storage: parse RSA private key: %w", err)
	}
	return rsaKey, nil
}

func (s *KeySigner) Email() string {
	if s == nil {
		return ""
	}
	return s.email
}

// SignBytes applies RSA PKCS#1 v1.5 over the SHA-256 digest of payload.
func (s *KeySigner) SignBytes(ctx context.Context, payload []byte) ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, errSignerNotReady
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest := sha256.Sum256(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("storage: sign payload: %w", err)
	}
	return sig, nil
}

// LinkSigner issues time-limited download links for private objects.
type LinkSigner struct {
	signer Signer
	now    func() time.Time
}

// LinkOption customises a LinkSigner.
type LinkOption func(*LinkSigner)

// WithClock injects the clock used for link expiry.
func WithClock(clock func() time.Time) LinkOption {
	return func(l *LinkSigner) {
		if clock != nil {
			l.now = clock
		}
	}
}

// NewLinkSigner wraps signer into a download link issuer.
func NewLinkSigner(signer Signer, opts ...LinkOption) (*LinkSigner, error) {
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errNoSigner
	}
	l := &LinkSigner{signer: signer, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// Link describes a signed download URL.
type Link struct {
	URL       string
	ExpiresAt time.Time
}

// DownloadLink signs a GET URL for bucket/object. The object is served as an
// attachment named fileName when one is given.
func (l *LinkSigner) DownloadLink(ctx context.Context, bucket, object, fileName string, expiresIn time.Duration) (Link, error) {
	if l == nil {
		return Link{}, errNoSigner
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return Link{}, errInvalidBucket
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return Link{}, errInvalidObject
	}
	if expiresIn <= 0 {
		expiresIn = defaultLinkExpiry
	}
	if expiresIn > maxLinkExpiry {
		return Link{}, errExpiryTooLong
	}

	expiresAt := l.now().Add(expiresIn)
	opts := &gcs.SignedURLOptions{
		GoogleAccessID: l.signer.Email(),
		Scheme:         gcs.SigningSchemeV4,
		Method:         "GET",
		Expires:        expiresAt,
		SignBytes: func(payload []byte) ([]byte, error) {
			return l.signer.SignBytes(ctx, payload)
		},
	}
	if name := strings.TrimSpace(fileName); name != "" {
		opts.QueryParameters = url.Values{
			"response-content-disposition": {fmt.Sprintf("attachment; filename=%q", name)},
		}
	}
	signed, err := gcs.SignedURL(bucket, object, opts)
	if err != nil {
		return Link{}, fmt.Errorf("storage: sign download url: %w", err)
	}
	return Link{URL: signed, ExpiresAt: expiresAt}, nil
}
