// Package oauthstate encodes the initiating email into the OAuth state
// parameter for the authorization-code round trip. The payload is
// HMAC-SHA256 signed so a tampered or forged state is rejected at the
// callback, and carries an issue timestamp so stale states expire.
package oauthstate

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// MaxAge bounds how long a state stays acceptable between the redirect and
// the callback.
const MaxAge = 30 * time.Minute

var (
	ErrInvalidState = errors.New("invalid oauth state")
	ErrStateExpired = errors.New("oauth state expired")
)

type payload struct {
	Email    string `json:"email"`
	IssuedAt int64  `json:"iat"`
}

// Codec signs and verifies state values with a process-wide secret.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec builds a codec from the configured secret. With an empty secret
// (development without OAUTH_STATE_SECRET) a random process-scoped secret is
// generated; states then survive only as long as the process, which covers
// the popup round trip.
func NewCodec(secret string) *Codec {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic("failed to generate state secret: " + err.Error())
		}
	}
	return &Codec{secret: key, now: time.Now}
}

// Encode produces "payload.signature", both segments base64url.
func (c *Codec) Encode(email string) (string, error) {
	raw, err := json.Marshal(payload{
		Email:    email,
		IssuedAt: c.now().Unix(),
	})
	if err != nil {
		return "", err
	}

	body := base64.RawURLEncoding.EncodeToString(raw)
	return body + "." + c.sign(body), nil
}

// Decode verifies the signature and freshness and returns the email.
func (c *Codec) Decode(state string) (string, error) {
	body, sig, ok := strings.Cut(state, ".")
	if !ok {
		return "", ErrInvalidState
	}

	if subtle.ConstantTimeCompare([]byte(sig), []byte(c.sign(body))) != 1 {
		return "", ErrInvalidState
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return "", ErrInvalidState
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", ErrInvalidState
	}
	if p.Email == "" {
		return "", ErrInvalidState
	}
	if c.now().Sub(time.Unix(p.IssuedAt, 0)) > MaxAge {
		return "", ErrStateExpired
	}

	return p.Email, nil
}

func (c *Codec) sign(body string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
