package core

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"farmchain/core/events"
	"farmchain/native/bank"
	nativecommon "farmchain/native/common"
	"farmchain/native/farm"
	"farmchain/storage"
)

const testBaseTime = 1_700_000_000

var (
	testOwner   = [20]byte{0x01}
	testAlice   = [20]byte{0xA1}
	testPenalty = [20]byte{0xEE}
)

func tenPow(exp int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(exp), nil)
}

func units(mantissa, exp int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(mantissa), tenPow(exp))
}

func testGenesis(rewardCap *big.Int) *Genesis {
	params := farm.DefaultParams()
	params.StartBlock = 100
	params.BonusEndBlock = 1000
	params.RewardPerBlock = units(10, 18)
	params.PenaltyReceiver = testPenalty
	return &Genesis{
		Time:        testBaseTime,
		Owner:       testOwner,
		Params:      params,
		RewardToken: "RWD",
		BonusToken:  "BONUS",
		Tokens: []GenesisToken{
			{Symbol: "LP", Name: "Liquidity", Decimals: 6, MaxSupply: big.NewInt(0), Admin: testOwner},
			{Symbol: "LP2", Name: "Liquidity 2", Decimals: 6, MaxSupply: big.NewInt(0), Admin: testOwner},
			{Symbol: "RWD", Name: "Reward", Decimals: 18, MaxSupply: rewardCap, Admin: testOwner},
			{Symbol: "BONUS", Name: "Bonus", MaxSupply: big.NewInt(0), Admin: testOwner},
		},
		Balances: []GenesisBalance{
			{Address: testAlice, Token: "LP", Amount: units(1000, 6)},
		},
		Pools: []GenesisPool{
			{StakeToken: "LP", AllocationWeight: 200},
			{StakeToken: "LP2", AllocationWeight: 100},
		},
	}
}

type captureSink struct {
	mu      sync.Mutex
	heights []uint64
	types   []string
}

func (s *captureSink) Append(_ context.Context, height uint64, evts []events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range evts {
		s.heights = append(s.heights, height)
		s.types = append(s.types, evt.EventType())
	}
	return nil
}

func (s *captureSink) reset() {
	s.mu.Lock()
	s.heights = nil
	s.types = nil
	s.mu.Unlock()
}

func fixedClock() time.Time { return time.Unix(testBaseTime, 0) }

func newTestNode(t *testing.T, rewardCap *big.Int) (*Node, *captureSink) {
	t.Helper()
	node, err := NewNode(storage.NewMemDB(), testGenesis(rewardCap), fixedClock)
	require.NoError(t, err)
	sink := &captureSink{}
	node.SetEventSink(sink)
	return node, sink
}

func TestNodeGenesis(t *testing.T) {
	node, _ := newTestNode(t, big.NewInt(0))

	global, err := node.Global()
	require.NoError(t, err)
	require.Equal(t, testOwner, global.Owner)
	require.Equal(t, uint64(2), global.PoolCount)
	require.Equal(t, uint64(300), global.TotalAllocationWeight)

	pool, err := node.Pool(0)
	require.NoError(t, err)
	require.Equal(t, "LP", pool.StakeAsset)
	require.Equal(t, uint64(100), pool.LastRewardBlock)

	balance, err := node.Balance(testAlice, "LP")
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(units(1000, 6)))

	head := node.Head()
	require.Equal(t, uint64(0), head.Height)
	require.Equal(t, uint64(testBaseTime), head.Time)
	require.Equal(t, farm.Env{Height: 1, Time: testBaseTime + 1}, node.Pending())
}

func TestNodeReopenKeepsStateAndMinter(t *testing.T) {
	db := storage.NewMemDB()
	node, err := NewNode(db, testGenesis(big.NewInt(0)), fixedClock)
	require.NoError(t, err)
	ctx := context.Background()
	_, err = node.Mine(100)
	require.NoError(t, err)
	_, err = node.Deposit(ctx, testAlice, 0, units(100, 6))
	require.NoError(t, err)
	_, err = node.Mine(6)
	require.NoError(t, err)

	reopened, err := NewNode(db, testGenesis(big.NewInt(0)), fixedClock)
	require.NoError(t, err)
	require.Equal(t, uint64(106), reopened.Head().Height)

	balance, err := reopened.Balance(testAlice, "LP")
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(units(900, 6)), "genesis must not be applied twice")

	result, err := reopened.Harvest(ctx, testAlice, 0, testAlice)
	require.NoError(t, err)
	require.Zero(t, result.Amount.Cmp(units(4, 20)))
}

func TestNodeScenarioThroughPendingBlocks(t *testing.T) {
	node, sink := newTestNode(t, big.NewInt(0))
	ctx := context.Background()

	_, err := node.Mine(100)
	require.NoError(t, err)
	position, err := node.Deposit(ctx, testAlice, 0, units(100, 6))
	require.NoError(t, err)
	require.Zero(t, position.Amount.Cmp(units(100, 6)))
	require.Equal(t, uint64(100), node.Head().Height, "calls do not seal blocks")

	_, err = node.Mine(6)
	require.NoError(t, err)
	pending, err := node.PendingReward(0, testAlice)
	require.NoError(t, err)
	require.Zero(t, pending.Cmp(units(4, 20)))

	pool, err := node.UpdatePool(ctx, 0)
	require.NoError(t, err)
	require.Zero(t, pool.AccRewardPerShare.Cmp(units(4, 24)))
	require.Equal(t, uint64(107), pool.LastRewardBlock)

	result, err := node.Harvest(ctx, testAlice, 0, testAlice)
	require.NoError(t, err)
	require.Zero(t, result.Amount.Cmp(units(4, 20)))
	require.False(t, result.BonusGranted)

	reward, err := node.Balance(testAlice, "RWD")
	require.NoError(t, err)
	require.Zero(t, reward.Cmp(units(4, 20)))

	require.Contains(t, sink.types, events.TypeFarmPoolDeposited)
	require.Contains(t, sink.types, events.TypeFarmPoolHarvested)
	for i, typ := range sink.types {
		if typ == events.TypeFarmPoolHarvested {
			require.Equal(t, uint64(107), sink.heights[i])
		}
	}
}

func TestNodeRollsBackWhenMintFails(t *testing.T) {
	node, sink := newTestNode(t, units(1, 20))
	ctx := context.Background()

	_, err := node.Mine(100)
	require.NoError(t, err)
	_, err = node.Deposit(ctx, testAlice, 0, units(100, 6))
	require.NoError(t, err)
	_, err = node.Mine(6)
	require.NoError(t, err)
	sink.reset()

	beforePool, err := node.Pool(0)
	require.NoError(t, err)
	beforePosition, err := node.Position(0, testAlice)
	require.NoError(t, err)

	_, err = node.Harvest(ctx, testAlice, 0, testAlice)
	require.ErrorIs(t, err, bank.ErrSupplyCapExceeded)

	afterPool, err := node.Pool(0)
	require.NoError(t, err)
	require.Equal(t, beforePool, afterPool)
	afterPosition, err := node.Position(0, testAlice)
	require.NoError(t, err)
	require.Equal(t, beforePosition, afterPosition)

	reward, err := node.Balance(testAlice, "RWD")
	require.NoError(t, err)
	require.Zero(t, reward.Sign())
	require.Empty(t, sink.types, "rolled back calls publish nothing")

	// The ledger keeps working after the rollback.
	_, err = node.UpdatePool(ctx, 0)
	require.NoError(t, err)
}

func TestNodeAutoMineSealsEachCall(t *testing.T) {
	node, _ := newTestNode(t, big.NewInt(0))
	node.SetAutoMine(true)
	ctx := context.Background()

	_, err := node.Deposit(ctx, testAlice, 0, units(1, 6))
	require.NoError(t, err)
	require.Equal(t, uint64(1), node.Head().Height)

	_, err = node.Withdraw(ctx, testAlice, 0, units(2, 6))
	require.ErrorIs(t, err, farm.ErrInsufficientStake)
	require.Equal(t, uint64(1), node.Head().Height, "failed calls do not seal blocks")

	_, err = node.UpdatePool(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(2), node.Head().Height)
}

func TestNodePenaltyWindowFollowsIncreaseTime(t *testing.T) {
	node, _ := newTestNode(t, big.NewInt(0))
	ctx := context.Background()

	_, err := node.Deposit(ctx, testAlice, 0, units(100, 6))
	require.NoError(t, err)

	penalty, err := node.PenaltyFor(0, testAlice, units(100, 6))
	require.NoError(t, err)
	require.Zero(t, penalty.Cmp(units(3, 6)))

	net, penalty, err := node.WithdrawQuote(0, testAlice, big.NewInt(33))
	require.NoError(t, err)
	require.Equal(t, "32", net.String())
	require.Zero(t, penalty.Sign())

	env := node.IncreaseTime(3*24*60*60 + 1)
	require.Greater(t, env.Time, uint64(testBaseTime+3*24*60*60))

	penalty, err = node.PenaltyFor(0, testAlice, units(100, 6))
	require.NoError(t, err)
	require.Zero(t, penalty.Sign())

	net, err = node.Withdraw(ctx, testAlice, 0, units(100, 6))
	require.NoError(t, err)
	require.Zero(t, net.Cmp(units(100, 6)))
	received, err := node.Balance(testPenalty, "LP")
	require.NoError(t, err)
	require.Zero(t, received.Sign())
}

func TestNodePausedModuleRejectsCalls(t *testing.T) {
	node, _ := newTestNode(t, big.NewInt(0))
	node.SetPaused("farm", true)
	require.Equal(t, []string{"farm"}, node.Paused())

	_, err := node.Deposit(context.Background(), testAlice, 0, units(1, 6))
	require.True(t, errors.Is(err, nativecommon.ErrModulePaused))

	node.SetPaused("farm", false)
	_, err = node.Deposit(context.Background(), testAlice, 0, units(1, 6))
	require.NoError(t, err)
}

func TestNodeMineRejectsZero(t *testing.T) {
	node, _ := newTestNode(t, big.NewInt(0))
	_, err := node.Mine(0)
	require.ErrorIs(t, err, ErrInvalidBlockCount)
}

type brokenPutDB struct {
	storage.Database
	broken bool
}

func (db *brokenPutDB) Put(key, value []byte) error {
	if db.broken {
		return errors.New("disk full")
	}
	return db.Database.Put(key, value)
}

func TestNodeMineKeepsHeadWhenPersistFails(t *testing.T) {
	db := &brokenPutDB{Database: storage.NewMemDB()}
	node, err := NewNode(db, testGenesis(big.NewInt(0)), fixedClock)
	require.NoError(t, err)
	before := node.Head()

	db.broken = true
	head, err := node.Mine(5)
	require.Error(t, err)
	require.Equal(t, before, head)
	require.Equal(t, before, node.Head())

	db.broken = false
	head, err = node.Mine(1)
	require.NoError(t, err)
	require.Equal(t, before.Height+1, head.Height)
	require.Equal(t, head, node.Head())
}

func TestClockStopsOnCancel(t *testing.T) {
	node, _ := newTestNode(t, big.NewInt(0))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewClock(node, time.Millisecond, nil).Run(ctx) }()

	require.Eventually(t, func() bool { return node.Head().Height >= 2 }, time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

type failingSink struct{ err error }

func (s failingSink) Append(context.Context, uint64, []events.Event) error { return s.err }

func TestSinksJoinErrors(t *testing.T) {
	capture := &captureSink{}
	boom := errors.New("boom")
	sinks := Sinks{failingSink{err: boom}, nil, capture}
	err := sinks.Append(context.Background(), 3, []events.Event{events.FarmEmergencyStatusChanged{Enabled: true}})
	require.ErrorIs(t, err, boom)
	require.Equal(t, []uint64{3}, capture.heights)
}

func TestNodeSubscribeEventsAndPositions(t *testing.T) {
	node, _ := newTestNode(t, big.NewInt(0))
	ch, cancel := node.SubscribeEvents(8)
	defer cancel()

	_, err := node.Deposit(context.Background(), testAlice, 0, units(5, 6))
	require.NoError(t, err)

	select {
	case evt := <-ch:
		require.Equal(t, events.TypeFarmPoolDeposited, evt.Type)
		require.Equal(t, uint64(1), evt.Height)
	case <-time.After(time.Second):
		t.Fatal("expected deposit event")
	}

	positions, err := node.Positions(0)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, testAlice, positions[0].Owner)

	_, err = node.Positions(7)
	require.ErrorIs(t, err, farm.ErrInvalidPoolID)

	cancel()
	_, open := <-ch
	require.False(t, open)
}
