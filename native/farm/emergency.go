package farm

import (
	"math/big"

	"farmchain/core/events"
)

// ChangeEmergencyWithdrawStatus toggles the emergency exit.
func (e *Engine) ChangeEmergencyWithdrawStatus(caller [20]byte, enabled bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	global, err := e.loadGlobal()
	if err != nil {
		return err
	}
	if err := e.requireOwner(global, caller); err != nil {
		return err
	}
	global.EmergencyWithdrawEnabled = enabled
	if err := e.state.FarmGlobalPut(global); err != nil {
		return err
	}
	e.emit(events.FarmEmergencyStatusChanged{Enabled: enabled})
	return nil
}

// EmergencyWithdraw returns the caller's whole stake in poolID without
// settling rewards or charging a penalty. Pending reward is forfeited. The
// module pause switch does not apply.
func (e *Engine) EmergencyWithdraw(env Env, caller [20]byte, poolID uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
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
	if !global.EmergencyWithdrawEnabled {
		return nil, ErrEmergencyWithdrawDisabled
	}
	position, err := e.loadPosition(poolID, caller)
	if err != nil {
		return nil, err
	}
	if position.Amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	amount := new(big.Int).Set(position.Amount)
	asset, err := e.stakeAsset(pool.StakeAsset)
	if err != nil {
		return nil, err
	}

	pool.TotalStaked = new(big.Int).Sub(pool.TotalStaked, amount)
	if pool.TotalStaked.Sign() < 0 {
		pool.TotalStaked = big.NewInt(0)
	}
	position.Amount = big.NewInt(0)
	position.RewardDebt = big.NewInt(0)

	if err := e.persist(pool, position); err != nil {
		return nil, err
	}
	if err := asset.TransferOut(caller, amount); err != nil {
		return nil, err
	}
	e.emit(events.FarmPoolEmergencyWithdrawn{PoolID: poolID, Account: caller, Amount: new(big.Int).Set(amount)})
	e.telemetry.ObserveEmergencyWithdraw(poolID, amount)
	return amount, nil
}
