package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// URLSigner creates and validates signed upload tokens.
// A token is <mediaID>.<expiry>.<base64 key>.<hex hmac>.
type URLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewURLSigner constructs a signer with the provided secret and TTL
func NewURLSigner(secret string, ttl time.Duration) *URLSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &URLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a signed token referencing the media id and its storage key
func (s *URLSigner) Generate(mediaID, key string) (string, time.Time, error) {
	if mediaID == "" || key == "" {
		return "", time.Time{}, fmt.Errorf("media id and key required")
	}
	if strings.Contains(mediaID, ".") {
		return "", time.Time{}, fmt.Errorf("media id must not contain dots")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}

	expiresAt := s.now().Add(s.ttl)
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedKey := base64.RawURLEncoding.EncodeToString([]byte(key))
	signature := s.sign(mediaID, exp, encodedKey)
	return strings.Join([]string{mediaID, exp, encodedKey, signature}, "."), expiresAt, nil
}

// Parse validates a token and returns the embedded media id and key.
// When allowExpired is true, the expiry check is skipped.
func (s *URLSigner) Parse(token string, allowExpired bool) (mediaID, key string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, fmt.Errorf("invalid token format")
	}
	mediaID, exp, encodedKey, signature := parts[0], parts[1], parts[2], parts[3]

	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("invalid token expiry")
	}

	expected := s.sign(mediaID, exp, encodedKey)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return "", "", time.Time{}, fmt.Errorf("invalid token signature")
	}

	rawKey, err := base64.RawURLEncoding.DecodeString(encodedKey)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("decode key: %w", err)
	}

	expiresAt = time.Unix(expUnix, 0)
	if !allowExpired && s.now().After(expiresAt) {
		return "", "", time.Time{}, fmt.Errorf("token expired")
	}
	return mediaID, string(rawKey), expiresAt, nil
}

func (s *URLSigner) sign(mediaID, exp, encodedKey string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(mediaID + "|" + exp + "|" + encodedKey))
	return hex.EncodeToString(mac.Sum(nil))
}
