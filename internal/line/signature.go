package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// SignatureHeader is the request header LINE signs deliveries with.
const SignatureHeader = "X-Line-Signature"

// VerifySignature reports whether header matches the base64-encoded
// HMAC-SHA256 of the raw request body under secret.
//
// The body must be the exact bytes as received; parsing or re-serializing
// before verification would let formatting changes slip past the check.
// A missing header, a length mismatch, or any byte difference all return
// false. Comparison is constant time.
func VerifySignature(body []byte, header, secret string) bool {
	if header == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(header))
}

// Sign computes the signature LINE would send for body. Test helper.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
