package services

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// SignFields computes the WayForPay HMAC-MD5 signature over the given
// fields joined with ";". Field order is protocol-defined and significant.
func SignFields(fields []string, secret string) string {
	mac := hmac.New(md5.New, []byte(secret))
	mac.Write([]byte(strings.Join(fields, ";")))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyFields recomputes the signature and compares it against the
// candidate in constant time.
func VerifyFields(fields []string, secret, candidate string) bool {
	expected := SignFields(fields, secret)
	return hmac.Equal([]byte(expected), []byte(candidate))
}
