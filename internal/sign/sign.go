// Package sign holds the per-venue request signing strategies.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"time"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/rest"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/schema"
)

// ErrMissingKey is returned when a request needing a signature carries no key material.
var ErrMissingKey = errors.New("sign: missing api key or secret")

// ExtraCredentials is the Request.Extra key holding a schema.Credentials.
const ExtraCredentials = "credentials"

// Clock returns the current time; tests replace it.
type Clock func() time.Time

// Credentials reads key material from req.Extra. Both a schema.Credentials
// under ExtraCredentials and plain "key"/"secret" strings are accepted.
func Credentials(req *rest.Request) (schema.Credentials, error) {
	if req == nil || req.Extra == nil {
		return schema.Credentials{}, ErrMissingKey
	}
	var c schema.Credentials
	switch v := req.Extra[ExtraCredentials].(type) {
	case schema.Credentials:
		c = v
	case *schema.Credentials:
		if v != nil {
			c = *v
		}
	}
	if c.Key == "" {
		c.Key, _ = req.Extra["key"].(string)
	}
	if c.Secret == "" {
		c.Secret, _ = req.Extra["secret"].(string)
	}
	if c.Key == "" || c.Secret == "" {
		return schema.Credentials{}, ErrMissingKey
	}
	return c, nil
}

// HMACSHA256Hex returns hex(HMAC-SHA256(secret, msg)).
func HMACSHA256Hex(secret, msg string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(msg))
	return hex.EncodeToString(h.Sum(nil))
}

// HMACSHA512Hex returns hex(HMAC-SHA512(secret, msg)).
func HMACSHA512Hex(secret, msg string) string {
	h := hmac.New(sha512.New, []byte(secret))
	h.Write([]byte(msg))
	return hex.EncodeToString(h.Sum(nil))
}

// SHA512Hex returns hex(SHA512(msg)).
func SHA512Hex(msg string) string {
	sum := sha512.Sum512([]byte(msg))
	return hex.EncodeToString(sum[:])
}

func orNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}
