package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveDeterministic(t *testing.T) {
	at := time.UnixMilli(1735689600000)

	a := Derive("203.0.113.7", "WhisperApp/3.1 (iOS)", at)
	b := Derive("203.0.113.7", "WhisperApp/3.1 (iOS)", at)
	assert.Equal(t, a, b)
	assert.Len(t, string(a), 64) // hex SHA-256
}

func TestDeriveDistinguishesInputs(t *testing.T) {
	at := time.UnixMilli(1735689600000)
	base := Derive("203.0.113.7", "WhisperApp/3.1 (iOS)", at)

	assert.NotEqual(t, base, Derive("203.0.113.8", "WhisperApp/3.1 (iOS)", at))
	assert.NotEqual(t, base, Derive("203.0.113.7", "WhisperApp/3.2 (iOS)", at))
	assert.NotEqual(t, base, Derive("203.0.113.7", "WhisperApp/3.1 (iOS)", at.Add(time.Millisecond)))
}

func TestDeriveNoFieldBleed(t *testing.T) {
	// Length prefixing: shifting a byte across the field boundary must not
	// collide.
	at := time.UnixMilli(0)
	assert.NotEqual(t, Derive("ab", "c", at), Derive("a", "bc", at))
}
