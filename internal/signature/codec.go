// Package signature implements the keyed-digest ("CheckMacValue") protocol the
// payment gateway uses on every request and webhook. The canonicalization
// order is gateway-specific and load-bearing: keys sorted case-insensitively,
// the HashKey/HashIV wrapper, a query-style percent encoding where space
// becomes '+' and '!', ''', '(', ')', '*' are written as uppercase hex
// escapes, the whole encoded string lower-cased, then SHA-256 and upper-case
// hex. Any deviation breaks interoperability with the gateway.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
)

// MacField is the parameter name carrying the digest on the wire.
const MacField = "CheckMacValue"

var (
	ErrMissingCredentials = errors.New("signature: hash key and hash iv are required")
	ErrMacMismatch        = errors.New("signature: check mac value mismatch")
	ErrMacMissing         = errors.New("signature: check mac value missing")
)

type Codec struct {
	hashKey string
	hashIV  string
}

// NewCodec fails on empty credentials; a missing key or IV is a deployment
// mistake and must be caught at startup, not on the first request.
func NewCodec(hashKey, hashIV string) (*Codec, error) {
	if hashKey == "" || hashIV == "" {
		return nil, ErrMissingCredentials
	}
	return &Codec{hashKey: hashKey, hashIV: hashIV}, nil
}

// Sign computes the digest over params. A pre-existing CheckMacValue entry is
// ignored so callers can re-sign a parameter set without stripping it first.
func (c *Codec) Sign(params map[string]string) string {
	sum := sha256.Sum256([]byte(c.canonical(params)))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Verify recomputes the digest over every parameter except CheckMacValue and
// compares it against the received one in constant time.
func (c *Codec) Verify(params map[string]string) error {
	received, ok := params[MacField]
	if !ok || received == "" {
		return ErrMacMissing
	}
	expected := c.Sign(params)
	if !hmac.Equal([]byte(expected), []byte(strings.ToUpper(received))) {
		return ErrMacMismatch
	}
	return nil
}

// canonical builds the exact byte string the gateway hashes.
func (c *Codec) canonical(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == MacField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := strings.ToLower(keys[i]), strings.ToLower(keys[j])
		if li == lj {
			return keys[i] < keys[j]
		}
		return li < lj
	})

	var b strings.Builder
	b.WriteString("HashKey=")
	b.WriteString(c.hashKey)
	for _, k := range keys {
		b.WriteByte('&')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	b.WriteString("&HashIV=")
	b.WriteString(c.hashIV)

	// url.QueryEscape yields exactly the variant the gateway expects: space
	// as '+', reserved characters (including ! ' ( ) *) as uppercase hex
	// escapes. The lower-casing afterwards covers the full encoded string.
	return strings.ToLower(url.QueryEscape(b.String()))
}
