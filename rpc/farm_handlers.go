package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"farmchain/core/types"
	"farmchain/crypto"
	"farmchain/integrations/eventlog"
	"farmchain/native/bank"
	nativecommon "farmchain/native/common"
	"farmchain/native/farm"
)

func (s *Server) farmMethods() map[string]method {
	return map[string]method{
		"farm_addPool":              {handler: s.handleAddPool, mutating: true},
		"farm_setAllocationWeight":  {handler: s.handleSetAllocationWeight, mutating: true},
		"farm_deposit":              {handler: s.handleDeposit, mutating: true},
		"farm_withdraw":             {handler: s.handleWithdraw, mutating: true},
		"farm_harvest":              {handler: s.handleHarvest, mutating: true},
		"farm_emergencyWithdraw":    {handler: s.handleEmergencyWithdraw, mutating: true},
		"farm_setEmergencyWithdraw": {handler: s.handleSetEmergencyWithdraw, mutating: true},
		"farm_transferOwnership":    {handler: s.handleTransferOwnership, mutating: true},
		"farm_updatePool":           {handler: s.handleUpdatePool, mutating: true},
		"farm_massUpdatePools":      {handler: s.handleMassUpdatePools, mutating: true},
		"farm_getPool":              {handler: s.handleGetPool},
		"farm_getPosition":          {handler: s.handleGetPosition},
		"farm_pendingReward":        {handler: s.handlePendingReward},
		"farm_penalty":              {handler: s.handlePenalty},
		"farm_getGlobal":            {handler: s.handleGetGlobal},
		"farm_head":                 {handler: s.handleHead},
		"farm_balance":              {handler: s.handleBalance},
		"farm_events":               {handler: s.handleEvents},
		"farm_exportPositions":      {handler: s.handleExportPositions},
		"farm_exportEvents":         {handler: s.handleExportEvents},
		"dev_mine":                  {handler: s.handleMine, dev: true},
		"dev_increaseTime":          {handler: s.handleIncreaseTime, dev: true},
	}
}

type addPoolParams struct {
	Caller           string `json:"caller"`
	StakeToken       string `json:"stakeToken"`
	AllocationWeight uint64 `json:"allocationWeight"`
}

type setAllocationWeightParams struct {
	Caller           string `json:"caller"`
	PoolID           uint64 `json:"poolId"`
	AllocationWeight uint64 `json:"allocationWeight"`
	WithUpdate       bool   `json:"withUpdate"`
}

type stakeParams struct {
	Caller string `json:"caller"`
	PoolID uint64 `json:"poolId"`
	Amount string `json:"amount"`
}

type harvestParams struct {
	Caller    string `json:"caller"`
	PoolID    uint64 `json:"poolId"`
	Recipient string `json:"recipient,omitempty"`
}

type callerPoolParams struct {
	Caller string `json:"caller"`
	PoolID uint64 `json:"poolId"`
}

type emergencyStatusParams struct {
	Caller  string `json:"caller"`
	Enabled bool   `json:"enabled"`
}

type transferOwnershipParams struct {
	Caller   string `json:"caller"`
	NewOwner string `json:"newOwner"`
}

type poolParams struct {
	PoolID uint64 `json:"poolId"`
}

type accountPoolParams struct {
	PoolID  uint64 `json:"poolId"`
	Address string `json:"address"`
	Amount  string `json:"amount,omitempty"`
}

type balanceParams struct {
	Address string `json:"address"`
	Token   string `json:"token"`
}

type eventsParams struct {
	Type       string  `json:"type,omitempty"`
	PoolID     *uint64 `json:"poolId,omitempty"`
	Address    string  `json:"address,omitempty"`
	FromHeight uint64  `json:"fromHeight,omitempty"`
	Limit      int     `json:"limit,omitempty"`
}

func (p eventsParams) filter() (eventlog.Filter, *RPCError) {
	filter := eventlog.Filter{
		Type:       strings.TrimSpace(p.Type),
		FromHeight: p.FromHeight,
		Limit:      p.Limit,
	}
	if p.PoolID != nil {
		filter.PoolID = strconv.FormatUint(*p.PoolID, 10)
	}
	if strings.TrimSpace(p.Address) != "" {
		addr, rpcErr := parseAddressParam("address", p.Address)
		if rpcErr != nil {
			return filter, rpcErr
		}
		filter.Account = formatAddress(addr)
	}
	return filter, nil
}

type mineParams struct {
	Blocks uint64 `json:"blocks"`
}

type increaseTimeParams struct {
	Seconds uint64 `json:"seconds"`
}

// PoolResult is the JSON form of a pool.
type PoolResult struct {
	ID                uint64 `json:"id"`
	StakeToken        string `json:"stakeToken"`
	AllocationWeight  uint64 `json:"allocationWeight"`
	LastRewardBlock   uint64 `json:"lastRewardBlock"`
	AccRewardPerShare string `json:"accRewardPerShare"`
	TotalStaked       string `json:"totalStaked"`
}

// PositionResult is the JSON form of a position.
type PositionResult struct {
	PoolID       uint64 `json:"poolId"`
	Owner        string `json:"owner"`
	Amount       string `json:"amount"`
	RewardDebt   string `json:"rewardDebt"`
	DepositTime  uint64 `json:"depositTime"`
	BonusClaimed bool   `json:"bonusClaimed"`
}

// GlobalResult is the JSON form of the module-wide record.
type GlobalResult struct {
	Owner                    string `json:"owner"`
	PoolCount                uint64 `json:"poolCount"`
	TotalAllocationWeight    uint64 `json:"totalAllocationWeight"`
	EmergencyWithdrawEnabled bool   `json:"emergencyWithdrawEnabled"`
	RewardPerBlock           string `json:"rewardPerBlock"`
	StartBlock               uint64 `json:"startBlock"`
	EndBlock                 uint64 `json:"endBlock,omitempty"`
	BonusEndBlock            uint64 `json:"bonusEndBlock"`
	BonusMultiplier          uint64 `json:"bonusMultiplier"`
	PenaltyBps               uint64 `json:"penaltyBps"`
	PenaltyWindowSeconds     uint64 `json:"penaltyWindowSeconds"`
	BonusWindowSeconds       uint64 `json:"bonusWindowSeconds"`
	DepositClock             string `json:"depositClock"`
	Paused                   bool   `json:"paused"`
}

// HeadResult reports the sealed head and the pending block.
type HeadResult struct {
	Height        uint64 `json:"height"`
	Time          uint64 `json:"time"`
	PendingHeight uint64 `json:"pendingHeight"`
	PendingTime   uint64 `json:"pendingTime"`
}

// WithdrawResult reports how a withdrawal was split.
type WithdrawResult struct {
	Amount  string `json:"amount"`
	Penalty string `json:"penalty"`
}

// HarvestResult reports a harvest payout.
type HarvestResult struct {
	Amount       string `json:"amount"`
	BonusGranted bool   `json:"bonusGranted"`
}

func formatAddress(addr [20]byte) string {
	return crypto.FromRaw(crypto.FarmPrefix, addr).String()
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func poolResult(p *farm.Pool) PoolResult {
	return PoolResult{
		ID:                p.ID,
		StakeToken:        p.StakeAsset,
		AllocationWeight:  p.AllocationWeight,
		LastRewardBlock:   p.LastRewardBlock,
		AccRewardPerShare: formatAmount(p.AccRewardPerShare),
		TotalStaked:       formatAmount(p.TotalStaked),
	}
}

func positionResult(p *farm.Position) PositionResult {
	return PositionResult{
		PoolID:       p.PoolID,
		Owner:        formatAddress(p.Owner),
		Amount:       formatAmount(p.Amount),
		RewardDebt:   formatAmount(p.RewardDebt),
		DepositTime:  p.DepositTime,
		BonusClaimed: p.BonusClaimed,
	}
}

func decodeParams(raw json.RawMessage, out interface{}) *RPCError {
	if len(raw) == 0 {
		return &RPCError{Code: codeInvalidParams, Message: "parameter object required"}
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid parameter object", Data: err.Error()}
	}
	return nil
}

func parseAddressParam(field, value string) ([20]byte, *RPCError) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return [20]byte{}, &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("%s is required", field)}
	}
	addr, err := crypto.ParseAddress(trimmed)
	if err != nil {
		return [20]byte{}, &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("invalid %s", field), Data: err.Error()}
	}
	return addr.Raw(), nil
}

func parseAmountParam(amount string) (*big.Int, *RPCError) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return nil, &RPCError{Code: codeInvalidParams, Message: "amount is required"}
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, &RPCError{Code: codeInvalidParams, Message: "invalid amount"}
	}
	if value.Sign() <= 0 {
		return nil, &RPCError{Code: codeInvalidParams, Message: "amount must be positive"}
	}
	return value, nil
}

// ledgerError maps a ledger failure onto a JSON-RPC error.
func ledgerError(err error) *RPCError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, farm.ErrUnauthorized), errors.Is(err, bank.ErrNotAdmin):
		return &RPCError{Code: codeUnauthorized, Message: err.Error()}
	case errors.Is(err, nativecommon.ErrModulePaused):
		return &RPCError{Code: codeModulePaused, Message: err.Error()}
	case errors.Is(err, farm.ErrInvalidPoolID),
		errors.Is(err, farm.ErrInvalidAmount),
		errors.Is(err, farm.ErrInvalidAddress),
		errors.Is(err, farm.ErrUnknownAsset),
		errors.Is(err, farm.ErrInsufficientStake),
		errors.Is(err, farm.ErrInsufficientBalance),
		errors.Is(err, farm.ErrNothingToHarvest),
		errors.Is(err, farm.ErrEmergencyWithdrawDisabled),
		errors.Is(err, farm.ErrOverflow),
		errors.Is(err, bank.ErrUnknownToken),
		errors.Is(err, bank.ErrInsufficientFunds),
		errors.Is(err, bank.ErrSupplyCapExceeded),
		errors.Is(err, bank.ErrMintPaused),
		errors.Is(err, bank.ErrAmountOutOfBounds):
		return &RPCError{Code: codeInvalidParams, Message: err.Error()}
	default:
		return &RPCError{Code: codeServerError, Message: "internal error", Data: err.Error()}
	}
}

func (s *Server) handleAddPool(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var params addPoolParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	id, err := s.node.AddPool(ctx, caller, params.StakeToken, params.AllocationWeight)
	if err != nil {
		return nil, ledgerError(err)
	}
	return map[string]uint64{"poolId": id}, nil
}

func (s *Server) handleSetAllocationWeight(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var params setAllocationWeightParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.SetAllocationWeight(ctx, caller, params.PoolID, params.AllocationWeight, params.WithUpdate); err != nil {
		return nil, ledgerError(err)
	}
	pool, err := s.node.Pool(params.PoolID)
	if err != nil {
		return nil, ledgerError(err)
	}
	return poolResult(pool), nil
}

func (s *Server) handleDeposit(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var params stakeParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmountParam(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	position, err := s.node.Deposit(ctx, caller, params.PoolID, amount)
	if err != nil {
		return nil, ledgerError(err)
	}
	return positionResult(position), nil
}

func (s *Server) handleWithdraw(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var params stakeParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmountParam(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	net, err := s.node.Withdraw(ctx, caller, params.PoolID, amount)
	if err != nil {
		return nil, ledgerError(err)
	}
	return WithdrawResult{Amount: formatAmount(net), Penalty: formatAmount(new(big.Int).Sub(amount, net))}, nil
}

func (s *Server) handleHarvest(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var params harvestParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	recipient := caller
	if strings.TrimSpace(params.Recipient) != "" {
		if recipient, rpcErr = parseAddressParam("recipient", params.Recipient); rpcErr != nil {
			return nil, rpcErr
		}
	}
	result, err := s.node.Harvest(ctx, caller, params.PoolID, recipient)
	if err != nil {
		return nil, ledgerError(err)
	}
	return HarvestResult{Amount: formatAmount(result.Amount), BonusGranted: result.BonusGranted}, nil
}

func (s *Server) handleEmergencyWithdraw(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var params callerPoolParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, err := s.node.EmergencyWithdraw(ctx, caller, params.PoolID)
	if err != nil {
		return nil, ledgerError(err)
	}
	return WithdrawResult{Amount: formatAmount(amount), Penalty: "0"}, nil
}

func (s *Server) handleSetEmergencyWithdraw(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var params emergencyStatusParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.SetEmergencyWithdraw(ctx, caller, params.Enabled); err != nil {
		return nil, ledgerError(err)
	}
	return map[string]bool{"enabled": params.Enabled}, nil
}

func (s *Server) handleTransferOwnership(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var params transferOwnershipParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	next, rpcErr := parseAddressParam("newOwner", params.NewOwner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.TransferOwnership(ctx, caller, next); err != nil {
		return nil, ledgerError(err)
	}
	return map[string]string{"owner": formatAddress(next)}, nil
}

func (s *Server) handleUpdatePool(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var params poolParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	pool, err := s.node.UpdatePool(ctx, params.PoolID)
	if err != nil {
		return nil, ledgerError(err)
	}
	return poolResult(pool), nil
}

func (s *Server) handleMassUpdatePools(ctx context.Context, _ json.RawMessage) (interface{}, *RPCError) {
	if err := s.node.MassUpdatePools(ctx); err != nil {
		return nil, ledgerError(err)
	}
	return s.handleHead(ctx, nil)
}

func (s *Server) handleGetPool(_ context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var params poolParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	pool, err := s.node.Pool(params.PoolID)
	if err != nil {
		return nil, ledgerError(err)
	}
	return poolResult(pool), nil
}

func (s *Server) handleGetPosition(_ context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var params accountPoolParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := parseAddressParam("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	position, err := s.node.Position(params.PoolID, owner)
	if err != nil {
		return nil, ledgerError(err)
	}
	return positionResult(position), nil
}

func (s *Server) handlePendingReward(_ context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var params accountPoolParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := parseAddressParam("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	pending, err := s.node.PendingReward(params.PoolID, owner)
	if err != nil {
		return nil, ledgerError(err)
	}
	return map[string]string{"pending": formatAmount(pending)}, nil
}

func (s *Server) handlePenalty(_ context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var params accountPoolParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := parseAddressParam("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmountParam(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	net, penalty, err := s.node.WithdrawQuote(params.PoolID, owner, amount)
	if err != nil {
		return nil, ledgerError(err)
	}
	return WithdrawResult{Amount: formatAmount(net), Penalty: formatAmount(penalty)}, nil
}

func (s *Server) handleGetGlobal(_ context.Context, _ json.RawMessage) (interface{}, *RPCError) {
	global, err := s.node.Global()
	if err != nil {
		return nil, ledgerError(err)
	}
	params := s.node.Params()
	paused := false
	for _, module := range s.node.Paused() {
		if module == moduleName {
			paused = true
		}
	}
	return GlobalResult{
		Owner:                    formatAddress(global.Owner),
		PoolCount:                global.PoolCount,
		TotalAllocationWeight:    global.TotalAllocationWeight,
		EmergencyWithdrawEnabled: global.EmergencyWithdrawEnabled,
		RewardPerBlock:           formatAmount(params.RewardPerBlock),
		StartBlock:               params.StartBlock,
		EndBlock:                 params.EndBlock,
		BonusEndBlock:            params.BonusEndBlock,
		BonusMultiplier:          params.BonusMultiplier,
		PenaltyBps:               params.PenaltyBps,
		PenaltyWindowSeconds:     params.PenaltyWindowSeconds,
		BonusWindowSeconds:       params.BonusWindowSeconds,
		DepositClock:             params.DepositClock.String(),
		Paused:                   paused,
	}, nil
}

func (s *Server) handleHead(_ context.Context, _ json.RawMessage) (interface{}, *RPCError) {
	head := s.node.Head()
	pending := s.node.Pending()
	return HeadResult{Height: head.Height, Time: head.Time, PendingHeight: pending.Height, PendingTime: pending.Time}, nil
}

func (s *Server) handleBalance(_ context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var params balanceParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddressParam("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if strings.TrimSpace(params.Token) == "" {
		return nil, &RPCError{Code: codeInvalidParams, Message: "token is required"}
	}
	balance, err := s.node.Balance(addr, params.Token)
	if err != nil {
		return nil, ledgerError(err)
	}
	return map[string]string{"address": formatAddress(addr), "token": strings.ToUpper(strings.TrimSpace(params.Token)), "balance": formatAmount(balance)}, nil
}

func (s *Server) handleEvents(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	if s.events == nil {
		return nil, &RPCError{Code: codeServerError, Message: "event index disabled"}
	}
	var params eventsParams
	if len(raw) > 0 {
		if rpcErr := decodeParams(raw, &params); rpcErr != nil {
			return nil, rpcErr
		}
	}
	filter, rpcErr := params.filter()
	if rpcErr != nil {
		return nil, rpcErr
	}
	evts, err := s.events.Query(ctx, filter)
	if err != nil {
		return nil, &RPCError{Code: codeServerError, Message: "event query failed", Data: err.Error()}
	}
	if evts == nil {
		evts = []types.Event{}
	}
	return evts, nil
}

func (s *Server) handleMine(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	params := mineParams{Blocks: 1}
	if len(raw) > 0 {
		if rpcErr := decodeParams(raw, &params); rpcErr != nil {
			return nil, rpcErr
		}
	}
	if params.Blocks == 0 || params.Blocks > 1_000_000 {
		return nil, &RPCError{Code: codeInvalidParams, Message: "blocks must be within [1, 1000000]"}
	}
	if _, err := s.node.Mine(params.Blocks); err != nil {
		return nil, ledgerError(err)
	}
	return s.handleHead(ctx, nil)
}

func (s *Server) handleIncreaseTime(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var params increaseTimeParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.Seconds == 0 {
		return nil, &RPCError{Code: codeInvalidParams, Message: "seconds must be positive"}
	}
	s.node.IncreaseTime(params.Seconds)
	return s.handleHead(ctx, nil)
}
