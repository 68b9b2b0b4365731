package farm

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"farmchain/core/events"
)

type mockEngineState struct {
	global    *Global
	pools     map[uint64]*Pool
	positions map[string]*Position
	writes    int
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		pools:     make(map[uint64]*Pool),
		positions: make(map[string]*Position),
	}
}

func positionKey(poolID uint64, owner [20]byte) string {
	return fmt.Sprintf("%d/%x", poolID, owner)
}

func (m *mockEngineState) FarmGlobalGet() (*Global, bool, error) {
	if m.global == nil {
		return nil, false, nil
	}
	return m.global.Clone(), true, nil
}

func (m *mockEngineState) FarmGlobalPut(global *Global) error {
	m.writes++
	m.global = global.Clone()
	return nil
}

func (m *mockEngineState) FarmPoolGet(id uint64) (*Pool, bool, error) {
	pool, ok := m.pools[id]
	if !ok {
		return nil, false, nil
	}
	return pool.Clone(), true, nil
}

func (m *mockEngineState) FarmPoolPut(pool *Pool) error {
	m.writes++
	m.pools[pool.ID] = pool.Clone()
	return nil
}

func (m *mockEngineState) FarmPositionGet(poolID uint64, owner [20]byte) (*Position, bool, error) {
	position, ok := m.positions[positionKey(poolID, owner)]
	if !ok {
		return nil, false, nil
	}
	return position.Clone(), true, nil
}

func (m *mockEngineState) FarmPositionPut(position *Position) error {
	m.writes++
	m.positions[positionKey(position.PoolID, position.Owner)] = position.Clone()
	return nil
}

// mockLedger is a tiny multi-token balance book standing in for the bank.
type mockLedger struct {
	balances map[string]map[[20]byte]*big.Int
	failMint error
}

func newMockLedger(symbols ...string) *mockLedger {
	l := &mockLedger{balances: make(map[string]map[[20]byte]*big.Int)}
	for _, symbol := range symbols {
		l.balances[symbol] = make(map[[20]byte]*big.Int)
	}
	return l
}

func (l *mockLedger) balance(symbol string, addr [20]byte) *big.Int {
	if v, ok := l.balances[symbol][addr]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

func (l *mockLedger) credit(symbol string, addr [20]byte, amount *big.Int) {
	l.balances[symbol][addr] = new(big.Int).Add(l.balance(symbol, addr), amount)
}

func (l *mockLedger) move(symbol string, from, to [20]byte, amount *big.Int) error {
	if l.balance(symbol, from).Cmp(amount) < 0 {
		return errors.New("mock: insufficient balance")
	}
	l.balances[symbol][from] = new(big.Int).Sub(l.balance(symbol, from), amount)
	l.credit(symbol, to, amount)
	return nil
}

func (l *mockLedger) StakeAsset(ref string) (StakeAsset, error) {
	if _, ok := l.balances[ref]; !ok {
		return nil, fmt.Errorf("mock: unknown token %s", ref)
	}
	return mockStake{ledger: l, symbol: ref}, nil
}

type mockStake struct {
	ledger *mockLedger
	symbol string
}

func (s mockStake) TransferIn(from [20]byte, amount *big.Int) error {
	return s.ledger.move(s.symbol, from, custodyAddr, amount)
}

func (s mockStake) TransferOut(to [20]byte, amount *big.Int) error {
	return s.ledger.move(s.symbol, custodyAddr, to, amount)
}

func (s mockStake) BalanceOf(addr [20]byte) (*big.Int, error) {
	return s.ledger.balance(s.symbol, addr), nil
}

type mockReward struct{ ledger *mockLedger }

func (r mockReward) Mint(to [20]byte, amount *big.Int) error {
	if r.ledger.failMint != nil {
		return r.ledger.failMint
	}
	r.ledger.credit(rewardSymbol, to, amount)
	return nil
}

type mockBonus struct{ ledger *mockLedger }

func (b mockBonus) Mint(to [20]byte) error {
	b.ledger.credit(bonusSymbol, to, big.NewInt(1))
	return nil
}

type mockPauses map[string]bool

func (p mockPauses) IsPaused(module string) bool { return p[module] }

const (
	stakeSymbol  = "LP"
	otherSymbol  = "LP2"
	rewardSymbol = "RWD"
	bonusSymbol  = "BONUS"

	baseTime = uint64(1_700_000_000)
)

var (
	ownerAddr    = makeAddress(0x01)
	aliceAddr    = makeAddress(0xa1)
	bobAddr      = makeAddress(0xb0)
	penaltyAddr  = makeAddress(0xee)
	devAddr      = makeAddress(0xde)
	custodyAddr  = makeAddress(0xcc)
	hundredUnits = big.NewInt(100_000_000)
)

func makeAddress(b byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = b
	}
	return addr
}

func tenPow(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("invalid big int %q", s)
	}
	return v
}

type harness struct {
	t        *testing.T
	engine   *Engine
	state    *mockEngineState
	ledger   *mockLedger
	recorder *events.Recorder
}

func testParams() Params {
	params := DefaultParams()
	params.StartBlock = 100
	params.BonusEndBlock = 1000
	params.RewardPerBlock = new(big.Int).Mul(big.NewInt(10), tenPow(18))
	params.PenaltyReceiver = penaltyAddr
	return params
}

// newHarness builds an initialised engine with two pools weighted 200 and
// 100 and alice funded with 100e6 stake units.
func newHarness(t *testing.T, params Params) *harness {
	t.Helper()
	engine, err := NewEngine(params)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	h := &harness{
		t:        t,
		engine:   engine,
		state:    newMockEngineState(),
		ledger:   newMockLedger(stakeSymbol, otherSymbol, rewardSymbol, bonusSymbol),
		recorder: &events.Recorder{},
	}
	engine.SetState(h.state)
	engine.SetEmitter(h.recorder)
	engine.SetAssets(h.ledger, mockReward{ledger: h.ledger}, mockBonus{ledger: h.ledger})
	if err := engine.Initialize(ownerAddr); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	h.addPool(stakeSymbol, 200)
	h.addPool(otherSymbol, 100)
	h.ledger.credit(stakeSymbol, aliceAddr, hundredUnits)
	h.recorder.Drain()
	return h
}

func env(height, time uint64) Env {
	return Env{Height: height, Time: time}
}

func (h *harness) addPool(asset string, weight uint64) uint64 {
	h.t.Helper()
	id, err := h.engine.AddPool(env(1, baseTime), ownerAddr, asset, weight)
	if err != nil {
		h.t.Fatalf("add pool %s: %v", asset, err)
	}
	return id
}

func (h *harness) deposit(at Env, who [20]byte, poolID uint64, amount *big.Int) {
	h.t.Helper()
	if _, err := h.engine.Deposit(at, who, poolID, amount); err != nil {
		h.t.Fatalf("deposit: %v", err)
	}
}

func (h *harness) pool(id uint64) *Pool {
	h.t.Helper()
	pool, err := h.engine.QueryPool(id)
	if err != nil {
		h.t.Fatalf("query pool: %v", err)
	}
	return pool
}

func (h *harness) eventTypes() []string {
	drained := h.recorder.Drain()
	out := make([]string, 0, len(drained))
	for _, evt := range drained {
		out = append(out, evt.EventType())
	}
	return out
}
