package delta

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Credentials identify one exchange account. The secret is only ever fed to
// the HMAC; it must never appear in logs or error messages.
type Credentials struct {
	APIKey    string
	APISecret string
}

func (c Credentials) validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return &SignatureError{Reason: "api key is empty"}
	}
	if strings.TrimSpace(c.APISecret) == "" {
		return &SignatureError{Reason: "api secret is empty"}
	}
	return nil
}

// signRequest computes the hex HMAC-SHA256 signature over the canonical
// message method + timestamp + path + queryString + payload.
//
// queryString carries its leading "?" when non-empty and must be
// byte-identical to the string appended to the request URL; the server
// verifies against the query exactly as received, so signing and sending
// share one encoded form.
func signRequest(secret, method, timestamp, path, queryString string, payload []byte) string {
	var sb strings.Builder
	sb.Grow(len(method) + len(timestamp) + len(path) + len(queryString) + len(payload))
	sb.WriteString(method)
	sb.WriteString(timestamp)
	sb.WriteString(path)
	sb.WriteString(queryString)
	sb.Write(payload)

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(sb.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// maskKey renders an api key safe for logs: at most the first 8 characters.
func maskKey(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8] + "..."
}
