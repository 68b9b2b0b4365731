package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"farmchain/core"
	"farmchain/integrations/eventlog"
	"farmchain/native/farm"
	"farmchain/storage"
)

const (
	ownerHex = "0x0100000000000000000000000000000000000000"
	aliceHex = "0xa100000000000000000000000000000000000000"
	testTime = 1_700_000_000
)

var (
	ownerAddr = [20]byte{0x01}
	aliceAddr = [20]byte{0xA1}
)

func tokens(mantissa, exp int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(mantissa), new(big.Int).Exp(big.NewInt(10), big.NewInt(exp), nil))
}

func newTestNode(t *testing.T) *core.Node {
	t.Helper()
	params := farm.DefaultParams()
	params.StartBlock = 100
	params.BonusEndBlock = 1000
	params.RewardPerBlock = tokens(10, 18)
	params.PenaltyReceiver = [20]byte{0xEE}
	genesis := &core.Genesis{
		Time:        testTime,
		Owner:       ownerAddr,
		Params:      params,
		RewardToken: "RWD",
		BonusToken:  "BONUS",
		Tokens: []core.GenesisToken{
			{Symbol: "LP", Name: "Liquidity", Decimals: 6, MaxSupply: big.NewInt(0), Admin: ownerAddr},
			{Symbol: "LP2", Name: "Liquidity 2", Decimals: 6, MaxSupply: big.NewInt(0), Admin: ownerAddr},
			{Symbol: "RWD", Name: "Reward", Decimals: 18, MaxSupply: big.NewInt(0), Admin: ownerAddr},
			{Symbol: "BONUS", Name: "Bonus", MaxSupply: big.NewInt(0), Admin: ownerAddr},
		},
		Balances: []core.GenesisBalance{{Address: aliceAddr, Token: "LP", Amount: tokens(1000, 6)}},
		Pools: []core.GenesisPool{
			{StakeToken: "LP", AllocationWeight: 200},
			{StakeToken: "LP2", AllocationWeight: 100},
		},
	}
	node, err := core.NewNode(storage.NewMemDB(), genesis, func() time.Time { return time.Unix(testTime, 0) })
	require.NoError(t, err)
	return node
}

type harness struct {
	t       *testing.T
	node    *core.Node
	handler http.Handler
	token   string
}

func newHarness(t *testing.T, cfg ServerConfig, events *eventlog.Store) *harness {
	t.Helper()
	node := newTestNode(t)
	if events != nil {
		node.SetEventSink(events)
	}
	srv, err := NewServer(node, events, cfg, nil)
	require.NoError(t, err)
	return &harness{t: t, node: node, handler: srv.Handler(), token: cfg.AuthToken}
}

func (h *harness) call(method string, params interface{}) (*httptest.ResponseRecorder, RPCResponse) {
	h.t.Helper()
	req := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		req["params"] = []interface{}{params}
	}
	body, err := json.Marshal(req)
	require.NoError(h.t, err)
	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if h.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httpReq)
	var resp RPCResponse
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func (h *harness) result(method string, params interface{}, out interface{}) {
	h.t.Helper()
	rec, resp := h.call(method, params)
	require.Equal(h.t, http.StatusOK, rec.Code, "method %s: %+v", method, resp.Error)
	require.Nil(h.t, resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(h.t, err)
	require.NoError(h.t, json.Unmarshal(raw, out))
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, ServerConfig{}, nil)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newHarness(t, ServerConfig{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	require.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestUnknownMethod(t *testing.T) {
	h := newHarness(t, ServerConfig{}, nil)
	rec, resp := h.call("farm_nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestDevMethodsHiddenByDefault(t *testing.T) {
	h := newHarness(t, ServerConfig{}, nil)
	_, resp := h.call("dev_mine", mineParams{Blocks: 1})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestMalformedPayload(t *testing.T) {
	h := newHarness(t, ServerConfig{}, nil)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{"))))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp RPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, codeParseError, resp.Error.Code)
}

func TestMutatingMethodsRequireToken(t *testing.T) {
	h := newHarness(t, ServerConfig{AuthToken: "secret", DevMethods: true}, nil)
	h.token = ""

	rec, resp := h.call("farm_deposit", stakeParams{Caller: aliceHex, PoolID: 0, Amount: "1"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	rec, resp = h.call("dev_mine", mineParams{Blocks: 1})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	var pool PoolResult
	h.result("farm_getPool", poolParams{PoolID: 0}, &pool)
	require.Equal(t, "LP", pool.StakeToken)

	h.token = "wrong"
	_, resp = h.call("farm_deposit", stakeParams{Caller: aliceHex, PoolID: 0, Amount: "1"})
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	h.token = "secret"
	var position PositionResult
	h.result("farm_deposit", stakeParams{Caller: aliceHex, PoolID: 0, Amount: "1"}, &position)
	require.Equal(t, "1", position.Amount)
}

func TestFarmFlowOverRPC(t *testing.T) {
	store, err := eventlog.Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	h := newHarness(t, ServerConfig{DevMethods: true}, store)

	var head HeadResult
	h.result("dev_mine", mineParams{Blocks: 100}, &head)
	require.Equal(t, uint64(100), head.Height)
	require.Equal(t, uint64(101), head.PendingHeight)

	var position PositionResult
	h.result("farm_deposit", stakeParams{Caller: aliceHex, PoolID: 0, Amount: "100000000"}, &position)
	require.Equal(t, "100000000", position.Amount)
	require.Equal(t, uint64(testTime+101), position.DepositTime)

	h.result("dev_mine", mineParams{Blocks: 6}, &head)

	var pending map[string]string
	h.result("farm_pendingReward", accountPoolParams{PoolID: 0, Address: aliceHex}, &pending)
	require.Equal(t, "400000000000000000000", pending["pending"])

	var pool PoolResult
	h.result("farm_updatePool", poolParams{PoolID: 0}, &pool)
	require.Equal(t, "4000000000000000000000000", pool.AccRewardPerShare)

	var harvested HarvestResult
	h.result("farm_harvest", harvestParams{Caller: aliceHex, PoolID: 0}, &harvested)
	require.Equal(t, "400000000000000000000", harvested.Amount)
	require.False(t, harvested.BonusGranted)

	var balance map[string]string
	h.result("farm_balance", balanceParams{Address: aliceHex, Token: "rwd"}, &balance)
	require.Equal(t, "400000000000000000000", balance["balance"])
	require.Equal(t, "RWD", balance["token"])

	var quote WithdrawResult
	h.result("farm_penalty", accountPoolParams{PoolID: 0, Address: aliceHex, Amount: "100000000"}, &quote)
	require.Equal(t, "3000000", quote.Penalty)
	require.Equal(t, "97000000", quote.Amount)

	var withdrawn WithdrawResult
	h.result("farm_withdraw", stakeParams{Caller: aliceHex, PoolID: 0, Amount: "100000000"}, &withdrawn)
	require.Equal(t, "97000000", withdrawn.Amount)
	require.Equal(t, "3000000", withdrawn.Penalty)

	var evts []map[string]interface{}
	h.result("farm_events", eventsParams{Type: "farm.pool.harvested"}, &evts)
	require.Len(t, evts, 1)
	require.Equal(t, float64(107), evts[0]["height"])
}

func TestLedgerErrorsMapToCodes(t *testing.T) {
	h := newHarness(t, ServerConfig{DevMethods: true}, nil)

	_, resp := h.call("farm_withdraw", stakeParams{Caller: aliceHex, PoolID: 0, Amount: "5"})
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	_, resp = h.call("farm_getPool", poolParams{PoolID: 9})
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	_, resp = h.call("farm_addPool", addPoolParams{Caller: aliceHex, StakeToken: "LP", AllocationWeight: 1})
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	_, resp = h.call("farm_deposit", stakeParams{Caller: "not-an-address", PoolID: 0, Amount: "5"})
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	_, resp = h.call("farm_deposit", map[string]interface{}{"caller": aliceHex, "poolId": 0, "amount": "5", "extra": true})
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	_, resp = h.call("farm_events", nil)
	require.Equal(t, codeServerError, resp.Error.Code)
}

func TestOwnerAdministration(t *testing.T) {
	h := newHarness(t, ServerConfig{DevMethods: true}, nil)

	var created map[string]uint64
	h.result("farm_addPool", addPoolParams{Caller: ownerHex, StakeToken: "LP2", AllocationWeight: 50}, &created)
	require.Equal(t, uint64(2), created["poolId"])

	var global GlobalResult
	h.result("farm_getGlobal", nil, &global)
	require.Equal(t, uint64(3), global.PoolCount)
	require.Equal(t, uint64(350), global.TotalAllocationWeight)
	require.Equal(t, "reset", global.DepositClock)

	var pool PoolResult
	h.result("farm_setAllocationWeight", setAllocationWeightParams{Caller: ownerHex, PoolID: 2, AllocationWeight: 0, WithUpdate: true}, &pool)
	require.Equal(t, uint64(0), pool.AllocationWeight)

	var status map[string]bool
	h.result("farm_setEmergencyWithdraw", emergencyStatusParams{Caller: ownerHex, Enabled: true}, &status)
	require.True(t, status["enabled"])

	var withdrawn WithdrawResult
	h.result("farm_deposit", stakeParams{Caller: aliceHex, PoolID: 0, Amount: "10"}, &PositionResult{})
	h.result("farm_emergencyWithdraw", callerPoolParams{Caller: aliceHex, PoolID: 0}, &withdrawn)
	require.Equal(t, "10", withdrawn.Amount)
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, ServerConfig{RateLimitPerSec: 0.001, RateLimitBurst: 1}, nil)
	rec, _ := h.call("farm_head", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, resp := h.call("farm_head", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, codeRateLimited, resp.Error.Code)
}
