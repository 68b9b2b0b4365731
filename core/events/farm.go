package events

import (
	"math/big"
	"strconv"

	"farmchain/core/types"
)

const (
	// TypeFarmPoolCreated is emitted when the owner registers a new pool.
	TypeFarmPoolCreated = "farm.pool.created"
	// TypeFarmPoolAllocationChanged is emitted when a pool's allocation weight changes.
	TypeFarmPoolAllocationChanged = "farm.pool.allocationChanged"
	// TypeFarmPoolUpdated captures an accumulator advance.
	TypeFarmPoolUpdated = "farm.pool.updated"
	// TypeFarmPoolDeposited is emitted when stake enters a pool.
	TypeFarmPoolDeposited = "farm.pool.deposited"
	// TypeFarmPoolWithdrawn is emitted when stake leaves a pool through the regular path.
	TypeFarmPoolWithdrawn = "farm.pool.withdrawn"
	// TypeFarmPoolHarvested is emitted when pending rewards are minted to a recipient.
	TypeFarmPoolHarvested = "farm.pool.harvested"
	// TypeFarmBonusGranted is emitted when a position receives its one-time bonus.
	TypeFarmBonusGranted = "farm.bonus.granted"
	// TypeFarmPoolEmergencyWithdrawn is emitted when stake leaves through the emergency path.
	TypeFarmPoolEmergencyWithdrawn = "farm.pool.emergencyWithdrawn"
	// TypeFarmEmergencyStatusChanged is emitted when the owner toggles emergency withdrawals.
	TypeFarmEmergencyStatusChanged = "farm.emergency.statusChanged"
	// TypeFarmOwnershipTransferred is emitted when the administrative owner changes.
	TypeFarmOwnershipTransferred = "farm.owner.transferred"
)

// FarmPoolCreated announces a newly registered pool.
type FarmPoolCreated struct {
	PoolID           uint64
	StakeAsset       string
	AllocationWeight uint64
}

// EventType satisfies the Event interface.
func (FarmPoolCreated) EventType() string { return TypeFarmPoolCreated }

// Event converts the structured payload into a broadcastable event.
func (e FarmPoolCreated) Event() *types.Event {
	return &types.Event{Type: TypeFarmPoolCreated, Attributes: map[string]string{
		"poolId":           formatPoolID(e.PoolID),
		"stakeAsset":       normalizeAsset(e.StakeAsset),
		"allocationWeight": strconv.FormatUint(e.AllocationWeight, 10),
	}}
}

// FarmPoolAllocationChanged captures the new weight of a pool.
type FarmPoolAllocationChanged struct {
	PoolID                uint64
	AllocationWeight      uint64
	TotalAllocationWeight uint64
}

// EventType satisfies the Event interface.
func (FarmPoolAllocationChanged) EventType() string { return TypeFarmPoolAllocationChanged }

// Event converts the structured payload into a broadcastable event.
func (e FarmPoolAllocationChanged) Event() *types.Event {
	return &types.Event{Type: TypeFarmPoolAllocationChanged, Attributes: map[string]string{
		"poolId":                formatPoolID(e.PoolID),
		"allocationWeight":      strconv.FormatUint(e.AllocationWeight, 10),
		"totalAllocationWeight": strconv.FormatUint(e.TotalAllocationWeight, 10),
	}}
}

// FarmPoolUpdated records the accumulator after an accrual step.
type FarmPoolUpdated struct {
	PoolID            uint64
	AccRewardPerShare *big.Int
	LastRewardBlock   uint64
	Reward            *big.Int
	DevReward         *big.Int
}

// EventType satisfies the Event interface.
func (FarmPoolUpdated) EventType() string { return TypeFarmPoolUpdated }

// Event converts the structured payload into a broadcastable event.
func (e FarmPoolUpdated) Event() *types.Event {
	attrs := map[string]string{
		"poolId":            formatPoolID(e.PoolID),
		"accRewardPerShare": formatAmount(e.AccRewardPerShare),
		"lastRewardBlock":   strconv.FormatUint(e.LastRewardBlock, 10),
		"reward":            formatAmount(e.Reward),
	}
	if e.DevReward != nil && e.DevReward.Sign() > 0 {
		attrs["devReward"] = e.DevReward.String()
	}
	return &types.Event{Type: TypeFarmPoolUpdated, Attributes: attrs}
}

// FarmPoolDeposited captures stake entering a pool.
type FarmPoolDeposited struct {
	PoolID  uint64
	Account [20]byte
	Amount  *big.Int
}

// EventType satisfies the Event interface.
func (FarmPoolDeposited) EventType() string { return TypeFarmPoolDeposited }

// Event converts the structured payload into a broadcastable event.
func (e FarmPoolDeposited) Event() *types.Event {
	return &types.Event{Type: TypeFarmPoolDeposited, Attributes: map[string]string{
		"poolId": formatPoolID(e.PoolID),
		"addr":   formatAddress(e.Account),
		"amount": formatAmount(e.Amount),
	}}
}

// FarmPoolWithdrawn captures stake leaving a pool. Amount is the quantity
// returned to the account after the early-withdrawal penalty.
type FarmPoolWithdrawn struct {
	PoolID  uint64
	Account [20]byte
	Amount  *big.Int
	Penalty *big.Int
}

// EventType satisfies the Event interface.
func (FarmPoolWithdrawn) EventType() string { return TypeFarmPoolWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e FarmPoolWithdrawn) Event() *types.Event {
	attrs := map[string]string{
		"poolId": formatPoolID(e.PoolID),
		"addr":   formatAddress(e.Account),
		"amount": formatAmount(e.Amount),
	}
	if e.Penalty != nil && e.Penalty.Sign() > 0 {
		attrs["penalty"] = e.Penalty.String()
	}
	return &types.Event{Type: TypeFarmPoolWithdrawn, Attributes: attrs}
}

// FarmPoolHarvested captures a reward payout.
type FarmPoolHarvested struct {
	PoolID    uint64
	Account   [20]byte
	Amount    *big.Int
	Recipient [20]byte
}

// EventType satisfies the Event interface.
func (FarmPoolHarvested) EventType() string { return TypeFarmPoolHarvested }

// Event converts the structured payload into a broadcastable event.
func (e FarmPoolHarvested) Event() *types.Event {
	return &types.Event{Type: TypeFarmPoolHarvested, Attributes: map[string]string{
		"poolId":    formatPoolID(e.PoolID),
		"addr":      formatAddress(e.Account),
		"amount":    formatAmount(e.Amount),
		"recipient": formatAddress(e.Recipient),
	}}
}

// FarmBonusGranted captures the one-time bonus issued to a position.
type FarmBonusGranted struct {
	PoolID    uint64
	Account   [20]byte
	Recipient [20]byte
}

// EventType satisfies the Event interface.
func (FarmBonusGranted) EventType() string { return TypeFarmBonusGranted }

// Event converts the structured payload into a broadcastable event.
func (e FarmBonusGranted) Event() *types.Event {
	return &types.Event{Type: TypeFarmBonusGranted, Attributes: map[string]string{
		"poolId":    formatPoolID(e.PoolID),
		"addr":      formatAddress(e.Account),
		"recipient": formatAddress(e.Recipient),
	}}
}

// FarmPoolEmergencyWithdrawn captures stake returned without reward settlement.
type FarmPoolEmergencyWithdrawn struct {
	PoolID  uint64
	Account [20]byte
	Amount  *big.Int
}

// EventType satisfies the Event interface.
func (FarmPoolEmergencyWithdrawn) EventType() string { return TypeFarmPoolEmergencyWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e FarmPoolEmergencyWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeFarmPoolEmergencyWithdrawn, Attributes: map[string]string{
		"poolId": formatPoolID(e.PoolID),
		"addr":   formatAddress(e.Account),
		"amount": formatAmount(e.Amount),
	}}
}

// FarmEmergencyStatusChanged captures the emergency switch position.
type FarmEmergencyStatusChanged struct {
	Enabled bool
}

// EventType satisfies the Event interface.
func (FarmEmergencyStatusChanged) EventType() string { return TypeFarmEmergencyStatusChanged }

// Event converts the structured payload into a broadcastable event.
func (e FarmEmergencyStatusChanged) Event() *types.Event {
	return &types.Event{Type: TypeFarmEmergencyStatusChanged, Attributes: map[string]string{
		"enabled": strconv.FormatBool(e.Enabled),
	}}
}

// FarmOwnershipTransferred captures a change of administrative owner.
type FarmOwnershipTransferred struct {
	Previous [20]byte
	Owner    [20]byte
}

// EventType satisfies the Event interface.
func (FarmOwnershipTransferred) EventType() string { return TypeFarmOwnershipTransferred }

// Event converts the structured payload into a broadcastable event.
func (e FarmOwnershipTransferred) Event() *types.Event {
	attrs := map[string]string{"owner": formatAddress(e.Owner)}
	if !zeroAddress(e.Previous) {
		attrs["previous"] = formatAddress(e.Previous)
	}
	return &types.Event{Type: TypeFarmOwnershipTransferred, Attributes: attrs}
}
