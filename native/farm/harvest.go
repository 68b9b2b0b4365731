package farm

import (
	"math/big"

	"farmchain/core/events"
	nativecommon "farmchain/native/common"
)

// HarvestResult reports what a harvest paid out.
type HarvestResult struct {
	Amount       *big.Int `json:"amount"`
	BonusGranted bool     `json:"bonusGranted"`
}

// Harvest mints the caller's pending reward in poolID to recipient. The first
// harvest after the bonus window also issues one bonus unit; a position never
// receives more than one.
func (e *Engine) Harvest(env Env, caller [20]byte, poolID uint64, recipient [20]byte) (*HarvestResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	global, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	pool, err := e.loadPool(global, poolID)
	if err != nil {
		return nil, err
	}
	if isZeroAddress(recipient) {
		return nil, ErrInvalidAddress
	}
	step, err := e.accrue(global, pool, env.Height)
	if err != nil {
		return nil, err
	}
	pool = step.pool
	position, err := e.loadPosition(poolID, caller)
	if err != nil {
		return nil, err
	}
	pending := pendingReward(position, pool.AccRewardPerShare)
	if pending.Sign() == 0 {
		return nil, ErrNothingToHarvest
	}
	if e.rewardAsset == nil {
		return nil, ErrCollaboratorMissing
	}
	grantBonus := !position.BonusClaimed && !inWindow(position, env.Time, e.params.BonusWindowSeconds)
	if grantBonus && e.bonusAsset == nil {
		return nil, ErrCollaboratorMissing
	}

	if grantBonus {
		position.BonusClaimed = true
	}
	position.RewardDebt = accruedFor(position.Amount, pool.AccRewardPerShare)

	if err := e.persist(pool, position); err != nil {
		return nil, err
	}
	if err := e.payDevReward(step); err != nil {
		return nil, err
	}
	if err := e.rewardAsset.Mint(recipient, pending); err != nil {
		return nil, err
	}
	if grantBonus {
		if err := e.bonusAsset.Mint(recipient); err != nil {
			return nil, err
		}
	}

	e.emitAccrual(step)
	e.emit(events.FarmPoolHarvested{PoolID: poolID, Account: caller, Amount: new(big.Int).Set(pending), Recipient: recipient})
	e.telemetry.ObserveHarvest(poolID, pending)
	if grantBonus {
		e.emit(events.FarmBonusGranted{PoolID: poolID, Account: caller, Recipient: recipient})
		e.telemetry.ObserveBonus(poolID)
	}
	return &HarvestResult{Amount: pending, BonusGranted: grantBonus}, nil
}
