package oauthstate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := NewCodec("test-secret")

	state, err := codec.Encode("user@example.com")
	require.NoError(t, err)

	email, err := codec.Decode(state)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", email)
}

func TestDecodeRejectsTamperedPayload(t *testing.T) {
	codec := NewCodec("test-secret")

	state, err := codec.Encode("user@example.com")
	require.NoError(t, err)

	// Flip a character in the payload segment, keeping the signature.
	body, sig, _ := strings.Cut(state, ".")
	tampered := body[:len(body)-1] + "A" + "." + sig
	if tampered == state {
		tampered = body[:len(body)-1] + "B" + "." + sig
	}

	_, err = codec.Decode(tampered)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestDecodeRejectsForeignSignature(t *testing.T) {
	state, err := NewCodec("secret-one").Encode("user@example.com")
	require.NoError(t, err)

	_, err = NewCodec("secret-two").Decode(state)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestDecodeRejectsStaleState(t *testing.T) {
	codec := NewCodec("test-secret")
	codec.now = func() time.Time { return time.Now().Add(-MaxAge - time.Minute) }

	state, err := codec.Encode("user@example.com")
	require.NoError(t, err)

	codec.now = time.Now
	_, err = codec.Decode(state)
	assert.ErrorIs(t, err, ErrStateExpired)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	codec := NewCodec("test-secret")

	for _, state := range []string{"", "no-dot", "a.b", "!!!.###"} {
		_, err := codec.Decode(state)
		assert.ErrorIs(t, err, ErrInvalidState, "state %q", state)
	}
}
