// Package credential encodes and verifies the two wire credential formats:
// the reversible elevated-access triple carried by the admin console, and the
// signed bearer identity token carried by ordinary clients.
package credential

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformed indicates input that does not parse as the credential's
	// wire format (bad alphabet, wrong field count, non-numeric timestamp).
	ErrMalformed = errors.New("malformed credential")
	// ErrSignatureInvalid indicates a bearer token whose signature does not
	// verify under the configured secret.
	ErrSignatureInvalid = errors.New("credential signature invalid")
	// ErrExpired indicates a bearer token past its expiry claim.
	ErrExpired = errors.New("credential expired")
)

// ElevatedToken is the decoded elevated-access credential: the admin-console
// login triple. The wire form is base64 over "username:secret:epochMillis" —
// a reversible encoding, not a signature; the server proves nothing from the
// token itself and must match it against the provisioned credential.
type ElevatedToken struct {
	Username string
	Secret   string
	IssuedAt int64 // epoch milliseconds, minted client-side at login
}

// EncodeElevated produces the wire form of the elevated triple.
func EncodeElevated(username, secret string, issuedAt int64) string {
	raw := username + ":" + secret + ":" + strconv.FormatInt(issuedAt, 10)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// DecodeElevated reverses EncodeElevated. It never panics on
// attacker-controlled input; every failure is ErrMalformed.
func DecodeElevated(token string) (*ElevatedToken, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrMalformed, err)
	}

	parts := strings.Split(string(raw), ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: want 3 fields, got %d", ErrMalformed, len(parts))
	}

	ts, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrMalformed, err)
	}

	return &ElevatedToken{Username: parts[0], Secret: parts[1], IssuedAt: ts}, nil
}
