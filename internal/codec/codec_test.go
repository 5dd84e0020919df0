package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPingHappyPath(t *testing.T) {
	auth := NewAuthenticator([]byte("shared-key"))
	c := NewCodec("SAT001", auth)
	hex := auth.TruncatedHex([]byte("SAT001-Ping&@"))
	raw := "SAT001-Ping&@#" + hex

	frame, reject := c.ParseAndVerify(raw)
	require.Nil(t, reject)
	assert.Equal(t, "SAT001", frame.SatID)
	assert.Equal(t, "Ping", frame.Command)
	assert.Equal(t, "", frame.Path)
	assert.Equal(t, "", frame.Data)
}

func TestPathTraversal(t *testing.T) {
	auth := NewAuthenticator([]byte("shared-key"))
	c := NewCodec("SAT001", auth)
	raw := "SAT001-ReadFile&../etc/passwd@#1234567890abcdef"

	_, reject := c.ParseAndVerify(raw)
	require.NotNil(t, reject)
	assert.Equal(t, RejectPathTraversal, reject.Kind)
	assert.Equal(t, "ERR:PATH_TRAVERSAL_BLOCKED", reject.Response)
}

func TestMissingDelimiter(t *testing.T) {
	auth := NewAuthenticator([]byte("shared-key"))
	c := NewCodec("SAT001", auth)
	raw := "SAT001Ping&@#1234567890abcdef"

	_, reject := c.ParseAndVerify(raw)
	require.NotNil(t, reject)
	assert.Equal(t, RejectSilent, reject.Kind)
	assert.Equal(t, "", reject.Response)
}

func TestAuthFailure(t *testing.T) {
	auth := NewAuthenticator([]byte("shared-key"))
	c := NewCodec("SAT001", auth)
	raw := "SAT001-Ping&@#short"

	_, reject := c.ParseAndVerify(raw)
	require.NotNil(t, reject)
	assert.Equal(t, RejectAuthFailed, reject.Kind)
	assert.Equal(t, "ERR:AUTH_FAILED", reject.Response)
}

func TestRejectsWrongSatID(t *testing.T) {
	auth := NewAuthenticator([]byte("shared-key"))
	c := NewCodec("SAT001", auth)
	hex := auth.TruncatedHex([]byte("SAT002-Ping&@"))
	raw := "SAT002-Ping&@#" + hex

	_, reject := c.ParseAndVerify(raw)
	require.NotNil(t, reject)
	assert.Equal(t, RejectSilent, reject.Kind)
}

func TestRejectsNonAlphanumericCommand(t *testing.T) {
	auth := NewAuthenticator([]byte("shared-key"))
	c := NewCodec("SAT001", auth)
	hex := auth.TruncatedHex([]byte("SAT001-Pi!ng&@"))
	raw := "SAT001-Pi!ng&@#" + hex

	_, reject := c.ParseAndVerify(raw)
	require.NotNil(t, reject)
	assert.Equal(t, RejectSilent, reject.Kind)
}

func TestRejectsOutOfOrderDelimiters(t *testing.T) {
	auth := NewAuthenticator([]byte("shared-key"))
	c := NewCodec("SAT001", auth)
	// '@' appears before '&', violating the strictly increasing order.
	raw := "SAT001-Cmd@&data#1234567890abcdef"

	_, reject := c.ParseAndVerify(raw)
	require.NotNil(t, reject)
	assert.Equal(t, RejectSilent, reject.Kind)
}

func TestRejectsLengthOutOfRange(t *testing.T) {
	auth := NewAuthenticator([]byte("shared-key"))
	c := NewCodec("SAT001", auth)

	_, reject := c.ParseAndVerify("a-b&@#")
	require.NotNil(t, reject)
	assert.Equal(t, RejectSilent, reject.Kind)
}

func TestAcceptsValidFrameWithPathAndData(t *testing.T) {
	auth := NewAuthenticator([]byte("shared-key"))
	c := NewCodec("SAT001", auth)
	prefix := "SAT001-WriteFile&/log.txt@hello"
	hex := auth.TruncatedHex([]byte(prefix))
	raw := prefix + "#" + hex

	frame, reject := c.ParseAndVerify(raw)
	require.Nil(t, reject)
	assert.Equal(t, "WriteFile", frame.Command)
	assert.Equal(t, "/log.txt", frame.Path)
	assert.Equal(t, "hello", frame.Data)
}
