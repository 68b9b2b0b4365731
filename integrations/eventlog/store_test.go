package eventlog

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"farmchain/core/events"
)

func TestAppendAndQuery(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	alice := [20]byte{0xa1}
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, 101, []events.Event{
		events.FarmPoolDeposited{PoolID: 0, Account: alice, Amount: big.NewInt(100)},
		events.FarmPoolDeposited{PoolID: 1, Account: alice, Amount: big.NewInt(5)},
	}))
	require.NoError(t, store.Append(ctx, 107, []events.Event{
		events.FarmPoolHarvested{PoolID: 0, Account: alice, Amount: big.NewInt(42), Recipient: alice},
	}))
	require.NoError(t, store.Append(ctx, 108, nil))

	all, err := store.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, events.TypeFarmPoolDeposited, all[0].Type)
	require.Equal(t, uint64(107), all[2].Height)

	pool0, err := store.Query(ctx, Filter{PoolID: "0"})
	require.NoError(t, err)
	require.Len(t, pool0, 2)

	harvests, err := store.Query(ctx, Filter{Type: events.TypeFarmPoolHarvested})
	require.NoError(t, err)
	require.Len(t, harvests, 1)
	require.Equal(t, "42", harvests[0].Attributes["amount"])

	later, err := store.Query(ctx, Filter{FromHeight: 102, Limit: 10})
	require.NoError(t, err)
	require.Len(t, later, 1)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.ErrorIs(t, err, ErrPathRequired)
}
