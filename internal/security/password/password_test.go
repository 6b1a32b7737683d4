package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsScheme(t *testing.T) {
	h, err := New("sha256", "pepper")
	require.NoError(t, err)
	assert.IsType(t, &LegacySHA256{}, h)

	h, err = New("argon2id", "")
	require.NoError(t, err)
	assert.IsType(t, &Argon2ID{}, h)

	_, err = New("bcrypt", "")
	require.Error(t, err)
}

func TestLegacySHA256RoundTrip(t *testing.T) {
	h := &LegacySHA256{Salt: "pepper"}

	digest, err := h.Hash("hunter2")
	require.NoError(t, err)
	assert.Len(t, digest, 64) // hex(sha256)

	assert.True(t, h.Verify("hunter2", digest))
	assert.False(t, h.Verify("hunter3", digest))

	// Mismo password con otro salt produce otro digest.
	other := &LegacySHA256{Salt: "salt2"}
	d2, err := other.Hash("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, digest, d2)
	assert.False(t, h.Verify("hunter2", d2))
}

func TestArgon2IDRoundTrip(t *testing.T) {
	// Parámetros bajos para que el test no tarde.
	h := &Argon2ID{Params: Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}}

	phc, err := h.Hash("hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(phc, "$argon2id$v=19$m=8192,t=1,p=1$"))

	assert.True(t, h.Verify("hunter2", phc))
	assert.False(t, h.Verify("hunter3", phc))
}

func TestArgon2IDVerifyReadsParamsFromDigest(t *testing.T) {
	// Los parámetros salen del PHC string, no del hasher: un hash emitido con
	// otra configuración sigue verificando.
	old := &Argon2ID{Params: Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}}
	phc, err := old.Hash("hunter2")
	require.NoError(t, err)

	current := &Argon2ID{Params: Default}
	assert.True(t, current.Verify("hunter2", phc))
}

func TestArgon2IDRejectsMalformed(t *testing.T) {
	h := &Argon2ID{Params: Default}

	for _, phc := range []string{
		"",
		"hunter2",
		"$argon2i$v=19$m=8192,t=1,p=1$AAAA$BBBB",  // variante equivocada
		"$argon2id$v=18$m=8192,t=1,p=1$AAAA$BBBB", // versión equivocada
		"$argon2id$v=19$m=8192,t=1,p=1$????$BBBB", // salt no-base64
		"$argon2id$v=19$m=8192,t=1,p=1$AAAA",      // campos de menos
	} {
		assert.False(t, h.Verify("hunter2", phc), "digest %q", phc)
	}
}

func TestArgon2IDRejectsEmptyPassword(t *testing.T) {
	h := &Argon2ID{Params: Default}
	_, err := h.Hash("")
	require.Error(t, err)
}
