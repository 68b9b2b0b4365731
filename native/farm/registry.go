package farm

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"farmchain/core/events"
)

// AddPool registers a new pool for stakeAsset and returns its id. Pool ids
// are assigned sequentially from zero.
func (e *Engine) AddPool(env Env, caller [20]byte, stakeAsset string, weight uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	global, err := e.loadGlobal()
	if err != nil {
		return 0, err
	}
	if err := e.requireOwner(global, caller); err != nil {
		return 0, err
	}
	ref := strings.TrimSpace(stakeAsset)
	if ref == "" {
		return 0, fmt.Errorf("%w: empty asset reference", ErrUnknownAsset)
	}
	if _, err := e.stakeAsset(ref); err != nil {
		return 0, err
	}
	if global.TotalAllocationWeight > math.MaxUint64-weight {
		return 0, ErrOverflow
	}

	lastReward := env.Height
	if lastReward < e.params.StartBlock {
		lastReward = e.params.StartBlock
	}
	pool := &Pool{
		ID:                global.PoolCount,
		StakeAsset:        ref,
		AllocationWeight:  weight,
		LastRewardBlock:   lastReward,
		AccRewardPerShare: big.NewInt(0),
		TotalStaked:       big.NewInt(0),
	}
	global.PoolCount++
	global.TotalAllocationWeight += weight

	if err := e.state.FarmPoolPut(pool); err != nil {
		return 0, err
	}
	if err := e.state.FarmGlobalPut(global); err != nil {
		return 0, err
	}
	e.emit(events.FarmPoolCreated{PoolID: pool.ID, StakeAsset: ref, AllocationWeight: weight})
	return pool.ID, nil
}

// SetAllocationWeight changes the weight of poolID. When withUpdate is set
// every pool is brought current first so past blocks are paid at the old
// weights.
func (e *Engine) SetAllocationWeight(env Env, caller [20]byte, poolID, weight uint64, withUpdate bool) error {
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
	pool, err := e.loadPool(global, poolID)
	if err != nil {
		return err
	}
	total := global.TotalAllocationWeight - pool.AllocationWeight
	if total > math.MaxUint64-weight {
		return ErrOverflow
	}
	if withUpdate {
		if err := e.massUpdate(global, env.Height); err != nil {
			return err
		}
		// mass update may have moved LastRewardBlock and the accumulator
		if pool, err = e.loadPool(global, poolID); err != nil {
			return err
		}
	}
	pool.AllocationWeight = weight
	global.TotalAllocationWeight = total + weight

	if err := e.state.FarmPoolPut(pool); err != nil {
		return err
	}
	if err := e.state.FarmGlobalPut(global); err != nil {
		return err
	}
	e.emit(events.FarmPoolAllocationChanged{PoolID: poolID, AllocationWeight: weight, TotalAllocationWeight: global.TotalAllocationWeight})
	return nil
}
