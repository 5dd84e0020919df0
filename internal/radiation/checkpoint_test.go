package radiation

import (
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edsonpavoni/orbitalTemple/internal/nvstore"
)

func TestCRC32ReferenceVectors(t *testing.T) {
	assert.Equal(t, uint32(0xCBF43926), crc32.ChecksumIEEE([]byte("123456789")))
	assert.Equal(t, uint32(0x00000000), crc32.ChecksumIEEE([]byte("")))
	assert.Equal(t, uint32(0xD202EF8D), crc32.ChecksumIEEE([]byte{0x00}))
	assert.Equal(t, uint32(0x3610A686), crc32.ChecksumIEEE([]byte("hello")))
}

func TestCheckpointRoundTrip(t *testing.T) {
	store := nvstore.NewMemory(MinSize)
	cp := Checkpoint{
		MissionState:    2,
		BootCount:       7,
		AntennaDeployed: true,
		MissionStartMS:  123456,
		FirstAccelDone:  true,
	}
	require.NoError(t, Save(store, cp))

	got, ok, err := Load(store)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cp, got)
}

func TestCheckpointInvalidOnCorruption(t *testing.T) {
	store := nvstore.NewMemory(MinSize)
	require.NoError(t, Save(store, Checkpoint{MissionState: 1, BootCount: 1}))

	// Flip a bit within the CRC window; load must report ok=false.
	b, _ := store.Read(10)
	require.NoError(t, store.Write(10, b^0x01))

	_, ok, err := Load(store)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckpointInvalidOnBadMagic(t *testing.T) {
	store := nvstore.NewMemory(MinSize)
	require.NoError(t, Save(store, Checkpoint{MissionState: 1}))
	require.NoError(t, store.Write(offMagic, 0x00))

	_, ok, err := Load(store)
	require.NoError(t, err)
	assert.False(t, ok)
}
