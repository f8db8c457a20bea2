package cryptoutil

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestAESGCMSealer_RoundTrip(t *testing.T) {
	s, err := NewAESGCMSealer(testKey())
	require.NoError(t, err)

	sealed, err := s.Seal("accessToken", []byte("eyJhbGciOi"))
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "eyJhbGciOi")

	pt, err := s.Open("accessToken", sealed)
	require.NoError(t, err)
	assert.Equal(t, "eyJhbGciOi", string(pt))
}

func TestAESGCMSealer_NoncesDiffer(t *testing.T) {
	s, err := NewAESGCMSealer(testKey())
	require.NoError(t, err)
	a, err := s.Seal("k", []byte("same"))
	require.NoError(t, err)
	b, err := s.Seal("k", []byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestAESGCMSealer_OpenFailures(t *testing.T) {
	s, err := NewAESGCMSealer(testKey())
	require.NoError(t, err)
	sealed, err := s.Seal("refreshToken", []byte("r-1"))
	require.NoError(t, err)

	_, err = s.Open("accessToken", sealed)
	require.ErrorIs(t, err, ErrTampered, "label is authenticated")

	_, err = s.Open("refreshToken", "plain-token")
	require.ErrorIs(t, err, ErrNotSealed)

	_, err = s.Open("refreshToken", sealedPrefix+base64.StdEncoding.EncodeToString([]byte("short")))
	require.ErrorIs(t, err, ErrTampered)

	other := testKey()
	other[0] = 0xff
	s2, err := NewAESGCMSealer(other)
	require.NoError(t, err)
	_, err = s2.Open("refreshToken", sealed)
	require.ErrorIs(t, err, ErrTampered)
}

func TestNewAESGCMSealer_KeyLength(t *testing.T) {
	_, err := NewAESGCMSealer([]byte("short"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 bytes")
}

func TestParseKey(t *testing.T) {
	key := testKey()
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding} {
		got, err := ParseKey("  " + enc.EncodeToString(key) + "\n")
		require.NoError(t, err)
		assert.Equal(t, key, got)
	}

	_, err := ParseKey(base64.StdEncoding.EncodeToString([]byte("sixteen-byte-key")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 bytes")

	_, err = ParseKey(strings.Repeat("!", 44))
	require.Error(t, err)
}
