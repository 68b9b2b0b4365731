package farm

import (
	"math/big"

	"farmchain/core/events"
)

// accrualStep is the in-memory result of bringing a pool current. Nothing is
// persisted until the caller writes step.pool.
type accrualStep struct {
	pool      *Pool
	reward    *big.Int
	devReward *big.Int
	advanced  bool
}

// accrue advances a copy of pool to height. The input is not modified.
func (e *Engine) accrue(global *Global, pool *Pool, height uint64) (*accrualStep, error) {
	next := pool.Clone()
	step := &accrualStep{pool: next, reward: big.NewInt(0), devReward: big.NewInt(0)}
	if height <= next.LastRewardBlock {
		return step, nil
	}
	multiplier := rewardMultiplier(e.params, next.LastRewardBlock, height)
	step.advanced = true
	if next.TotalStaked.Sign() == 0 {
		next.LastRewardBlock = height
		return step, nil
	}
	reward := poolReward(multiplier, e.params.RewardPerBlock, next.AllocationWeight, global.TotalAllocationWeight)
	acc := new(big.Int).Add(next.AccRewardPerShare, accumulatorDelta(reward, next.TotalStaked))
	if err := checkUint256(reward, acc); err != nil {
		return nil, err
	}
	next.AccRewardPerShare = acc
	next.LastRewardBlock = height
	step.reward = reward

	if !isZeroAddress(e.params.DevAddress) && e.params.DevRewardBps > 0 {
		step.devReward = applyBps(reward, e.params.DevRewardBps)
		if step.devReward.Sign() > 0 && e.rewardAsset == nil {
			return nil, ErrCollaboratorMissing
		}
	}
	return step, nil
}

func (e *Engine) payDevReward(step *accrualStep) error {
	if step == nil || step.devReward.Sign() == 0 {
		return nil
	}
	return e.rewardAsset.Mint(e.params.DevAddress, step.devReward)
}

func (e *Engine) emitAccrual(step *accrualStep) {
	if step == nil || !step.advanced {
		return
	}
	pool := step.pool
	e.emit(events.FarmPoolUpdated{
		PoolID:            pool.ID,
		AccRewardPerShare: new(big.Int).Set(pool.AccRewardPerShare),
		LastRewardBlock:   pool.LastRewardBlock,
		Reward:            new(big.Int).Set(step.reward),
		DevReward:         new(big.Int).Set(step.devReward),
	})
	e.telemetry.SetAccumulator(pool.ID, pool.AccRewardPerShare)
}

// UpdatePool brings the accumulator of poolID current at env.Height. Calls at
// or below the pool's last reward block are no-ops.
func (e *Engine) UpdatePool(env Env, poolID uint64) (*Pool, error) {
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
	step, err := e.accrue(global, pool, env.Height)
	if err != nil {
		return nil, err
	}
	if !step.advanced {
		return step.pool.Clone(), nil
	}
	if err := e.persist(step.pool, nil); err != nil {
		return nil, err
	}
	if err := e.payDevReward(step); err != nil {
		return nil, err
	}
	e.emitAccrual(step)
	return step.pool.Clone(), nil
}

// MassUpdatePools brings every pool current at env.Height.
func (e *Engine) MassUpdatePools(env Env) error {
	if err := e.ready(); err != nil {
		return err
	}
	global, err := e.loadGlobal()
	if err != nil {
		return err
	}
	return e.massUpdate(global, env.Height)
}

func (e *Engine) massUpdate(global *Global, height uint64) error {
	steps := make([]*accrualStep, 0, global.PoolCount)
	for id := uint64(0); id < global.PoolCount; id++ {
		pool, err := e.loadPool(global, id)
		if err != nil {
			return err
		}
		step, err := e.accrue(global, pool, height)
		if err != nil {
			return err
		}
		if step.advanced {
			steps = append(steps, step)
		}
	}
	for _, step := range steps {
		if err := e.persist(step.pool, nil); err != nil {
			return err
		}
	}
	for _, step := range steps {
		if err := e.payDevReward(step); err != nil {
			return err
		}
	}
	for _, step := range steps {
		e.emitAccrual(step)
	}
	return nil
}
