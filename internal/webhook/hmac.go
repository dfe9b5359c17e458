package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
)

var (
	// ErrMissingSignature means the request carried no signature header.
	ErrMissingSignature = errors.New("missing signature header")
	// ErrInvalidSecret means the shared secret cannot key an HMAC.
	ErrInvalidSecret = errors.New("webhook secret is not valid")
)

// VerifySignature checks the hex HMAC-SHA256 digest in header name against the body.
//
// The header value must equal the lowercase hex digest exactly; comparison is
// constant-time. An absent or empty header is ErrMissingSignature rather than
// a false verdict, so callers can tell "unsigned" from "wrongly signed".
func VerifySignature(header http.Header, name string, body []byte, secret string) (bool, error) {
	signature := header.Get(name)
	if signature == "" {
		return false, ErrMissingSignature
	}
	if secret == "" {
		return false, ErrInvalidSecret
	}

	expected := ComputeSignature(body, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1, nil
}

// ComputeSignature returns the lowercase hex HMAC-SHA256 of body.
func ComputeSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
