package statestore

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"rubyscore/internal/access"
	"rubyscore/internal/claimsig"
	"rubyscore/internal/ledger"
)

func newLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.New(common.HexToAddress("0x0a"), common.HexToAddress("0x0b"),
		claimsig.NewVerifier(claimsig.NewDomain(big.NewInt(31337), common.HexToAddress("0x0c"))))
	require.NoError(t, err)
	return l
}

func TestSaveLoad(t *testing.T) {
	store, err := OpenBolt(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	l := newLedger(t)
	user := common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
	_, err = l.Deposit(user, uint256.MustFromDecimal("1000000000000000000"))
	require.NoError(t, err)
	require.NoError(t, l.GrantRole(common.HexToAddress("0x0a"), access.OperatorRole, user))

	require.NoError(t, store.Save(l.Snapshot()))

	st, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)

	restored := newLedger(t)
	restored.Restore(st)
	assert.Equal(t, l.UserDeposit(user), restored.UserDeposit(user))
	assert.Equal(t, l.Reserve(), restored.Reserve())
	assert.True(t, restored.HasRole(access.OperatorRole, user))

	at, err := store.SavedAt()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), at, time.Minute)
}

func TestLoadDetectsCorruption(t *testing.T) {
	store, err := OpenBolt(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(newLedger(t).Snapshot()))
	require.NoError(t, store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketState).Put(keyLedger, []byte(`{"reserve":"1"}`))
	}))

	_, _, err = store.Load()
	assert.ErrorContains(t, err, "checksum")
}

func TestKeepSavesOnShutdown(t *testing.T) {
	store, err := OpenBolt(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer store.Close()

	l := newLedger(t)
	_, err = l.Deposit(common.HexToAddress("0x0d"), uint256.NewInt(5))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, store.Keep(ctx, l, time.Hour, nil))

	st, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(5), st.Reserve.Uint64())
}

func TestKeepWithoutInterval(t *testing.T) {
	store, err := OpenBolt(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, interval := range []time.Duration{0, -time.Second} {
		assert.NotPanics(t, func() {
			assert.NoError(t, store.Keep(ctx, newLedger(t), interval, nil))
		})
	}
	_, ok, err := store.Load()
	require.NoError(t, err)
	assert.True(t, ok)
}
