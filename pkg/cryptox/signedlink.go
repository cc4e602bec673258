package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignLink produces an HMAC-SHA256 signed token binding a subject to an
// expiry instant. The token has the form
// "<subject>:<unix expiry>:<base64url signature>" and is embedded in
// verification and password-reset links sent by mail.
func SignLink(key []byte, subject string, expiresAt time.Time) string {
	payload := subject + ":" + strconv.FormatInt(expiresAt.Unix(), 10)

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	return payload + ":" + sig
}

// VerifyLink checks a signed link token and returns the embedded subject.
// Expired or tampered tokens fail with an error; signature comparison is
// constant time.
func VerifyLink(key []byte, token string, now time.Time) (string, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed link token")
	}
	subject, rawExpiry, sig := parts[0], parts[1], parts[2]

	expiry, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil {
		return "", fmt.Errorf("malformed link expiry")
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(subject + ":" + rawExpiry))
	expected := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return "", fmt.Errorf("link signature mismatch")
	}
	if now.After(time.Unix(expiry, 0)) {
		return "", fmt.Errorf("link expired")
	}

	return subject, nil
}
