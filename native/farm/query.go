package farm

import "math/big"

// QueryPool returns a snapshot of poolID as stored.
func (e *Engine) QueryPool(poolID uint64) (*Pool, error) {
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
	return pool.Clone(), nil
}

// QueryPosition returns owner's position in poolID. Accounts that never
// deposited get an empty position.
func (e *Engine) QueryPosition(poolID uint64, owner [20]byte) (*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	global, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	if _, err := e.loadPool(global, poolID); err != nil {
		return nil, err
	}
	return e.loadPosition(poolID, owner)
}

// QueryPendingReward projects owner's unclaimed reward in poolID to
// env.Height without writing anything.
func (e *Engine) QueryPendingReward(env Env, poolID uint64, owner [20]byte) (*big.Int, error) {
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
	position, err := e.loadPosition(poolID, owner)
	if err != nil {
		return nil, err
	}
	return pendingReward(position, step.pool.AccRewardPerShare), nil
}

// PoolCount returns the number of registered pools.
func (e *Engine) PoolCount() (uint64, error) {
	global, err := e.Global()
	if err != nil {
		return 0, err
	}
	return global.PoolCount, nil
}

// Global returns a copy of the module-wide record.
func (e *Engine) Global() (*Global, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	global, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	return global.Clone(), nil
}
