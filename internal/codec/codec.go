// Package codec implements C4: parsing, validating and authenticating
// inbound command frames, and formatting the two reject responses the
// codec itself is responsible for emitting. It walks the checks in a fixed
// order and bails on the first failure, the same shape a fixed-layout wire
// frame parser uses for its length/field/CRC checks, substituted here for
// delimiter and HMAC checks.
package codec

import (
	"strings"

	"github.com/edsonpavoni/orbitalTemple/internal/errs"
)

// RejectKind distinguishes the two reject categories that produce a
// downlink response from the rest, which are silently dropped.
type RejectKind int

const (
	RejectSilent RejectKind = iota
	RejectPathTraversal
	RejectAuthFailed
)

// Reject carries the outcome of a failed parse, including the response
// line to emit (empty for RejectSilent).
type Reject struct {
	Kind     RejectKind
	Response string
}

// Frame is the parsed, authenticated command.
type Frame struct {
	SatID   string
	Command string
	Path    string
	Data    string
	HMACHex string
}

const (
	minLen = 7
	maxLen = 500
)

// Codec is C4.
type Codec struct {
	satID string
	auth  *Authenticator
}

func NewCodec(satID string, auth *Authenticator) *Codec {
	return &Codec{satID: satID, auth: auth}
}

// ParseAndVerify walks the frame-validation checks in order: length, then
// delimiters, then satellite id, then HMAC.
func (c *Codec) ParseAndVerify(raw string) (Frame, *Reject) {
	if len(raw) < minLen || len(raw) > maxLen {
		return Frame{}, &Reject{Kind: RejectSilent}
	}

	posDash := strings.IndexByte(raw, '-')
	posAmp := strings.IndexByte(raw, '&')
	posAt := strings.IndexByte(raw, '@')
	posHash := strings.IndexByte(raw, '#')

	if posDash < 0 || posAmp < 0 || posAt < 0 || posHash < 0 {
		return Frame{}, &Reject{Kind: RejectSilent}
	}
	if !(posDash < posAmp && posAmp < posAt && posAt < posHash) {
		return Frame{}, &Reject{Kind: RejectSilent}
	}

	satID := raw[:posDash]
	command := raw[posDash+1 : posAmp]
	path := raw[posAmp+1 : posAt]
	data := raw[posAt+1 : posHash]
	hmacHex := raw[posHash+1:]

	if satID != c.satID {
		return Frame{}, &Reject{Kind: RejectSilent}
	}

	if command == "" || !isAlphanumeric(command) {
		return Frame{}, &Reject{Kind: RejectSilent}
	}

	if strings.Contains(path, "..") {
		return Frame{}, &Reject{Kind: RejectPathTraversal, Response: errs.PathTraversalBlocked}
	}

	prefix := raw[:posHash]
	expected := c.auth.TruncatedHex([]byte(prefix))
	if !strings.EqualFold(expected, hmacHex) {
		return Frame{}, &Reject{Kind: RejectAuthFailed, Response: errs.AuthFailed}
	}

	return Frame{
		SatID:   satID,
		Command: command,
		Path:    path,
		Data:    data,
		HMACHex: hmacHex,
	}, nil
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}
