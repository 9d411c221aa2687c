package vesting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const genesisJSON = `[
  {"address": "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7", "value": 1000, "vesting": {"538161": 100, "538261": 200}, "vesting_total": 300, "lock_send": 538200},
  {"address": "SP000000000000000000002Q6VF78", "value": 5000, "vesting": {}, "vesting_total": 0, "lock_send": 0}
]`

func TestReadGenesis(t *testing.T) {
	g, err := ReadGenesis(strings.NewReader(genesisJSON))
	require.NoError(t, err)

	require.Len(t, g.Accounts(), 2)

	s, ok := g.Account("SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7")
	require.True(t, ok)
	assert.Equal(t, int64(100), s.Vesting[538161])
	assert.Equal(t, BlockToTime(538200), s.TransferUnlockDate)
	assert.Equal(t, int64(300), s.CumulativeVestedByDate[BlockToTime(538261)])

	_, ok = g.Account("SP000000000000000000002Q6VF78")
	assert.False(t, ok)

	totals := ComputeTotals(g.Accounts())
	assert.Equal(t, 2, totals.AddressCount)
	assert.Equal(t, int64(6000), totals.InitialValue)
}

func TestReadGenesis_Malformed(t *testing.T) {
	_, err := ReadGenesis(strings.NewReader(`{"not": "an array"}`))
	assert.Error(t, err)
}

func TestLoadGenesis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, os.WriteFile(path, []byte(genesisJSON), 0o600))

	g, err := LoadGenesis(path)
	require.NoError(t, err)
	assert.Len(t, g.Accounts(), 2)

	_, err = LoadGenesis(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
