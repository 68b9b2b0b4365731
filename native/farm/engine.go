package farm

import (
	"fmt"
	"math/big"

	"farmchain/core/events"
	nativecommon "farmchain/native/common"
	"farmchain/observability/metrics"
)

const moduleName = "farm"

type engineState interface {
	FarmGlobalGet() (*Global, bool, error)
	FarmGlobalPut(global *Global) error
	FarmPoolGet(id uint64) (*Pool, bool, error)
	FarmPoolPut(pool *Pool) error
	FarmPositionGet(poolID uint64, owner [20]byte) (*Position, bool, error)
	FarmPositionPut(position *Position) error
}

// Engine implements the staking ledger: pool registry, reward accrual, user
// positions, withdrawal penalties, bonus issuance and the emergency exit.
//
// Every operation is a single sequential step. All preconditions are checked
// before the first write, state is written before any asset collaborator is
// invoked and events are emitted last. Hosts that need all-or-nothing
// semantics across collaborator failures run each call inside a state
// transaction.
type Engine struct {
	state       engineState
	emitter     events.Emitter
	params      Params
	stakeAssets StakeAssets
	rewardAsset RewardAsset
	bonusAsset  BonusAsset
	pauses      nativecommon.PauseView
	telemetry   *metrics.FarmMetrics
}

// NewEngine constructs a farm engine with the supplied params.
func NewEngine(params Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		emitter:   events.NoopEmitter{},
		params:    params.Clone(),
		telemetry: metrics.Farm(),
	}, nil
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetAssets wires the stake, reward and bonus collaborators.
func (e *Engine) SetAssets(stake StakeAssets, reward RewardAsset, bonus BonusAsset) {
	if e == nil {
		return
	}
	e.stakeAssets = stake
	e.rewardAsset = reward
	e.bonusAsset = bonus
}

// Params returns a copy of the construction-time params.
func (e *Engine) Params() Params {
	return e.params.Clone()
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return nil
}

func (e *Engine) loadGlobal() (*Global, error) {
	global, ok, err := e.state.FarmGlobalGet()
	if err != nil {
		return nil, err
	}
	if !ok || global == nil {
		return nil, ErrNotInitialized
	}
	return global, nil
}

func (e *Engine) loadPool(global *Global, id uint64) (*Pool, error) {
	if id >= global.PoolCount {
		return nil, ErrInvalidPoolID
	}
	pool, ok, err := e.state.FarmPoolGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || pool == nil {
		return nil, fmt.Errorf("%w: pool %d missing from state", ErrInvalidPoolID, id)
	}
	pool.AccRewardPerShare = newBigInt(pool.AccRewardPerShare)
	pool.TotalStaked = newBigInt(pool.TotalStaked)
	return pool, nil
}

func (e *Engine) loadPosition(poolID uint64, owner [20]byte) (*Position, error) {
	position, ok, err := e.state.FarmPositionGet(poolID, owner)
	if err != nil {
		return nil, err
	}
	if !ok || position == nil {
		return newPosition(poolID, owner), nil
	}
	position.Amount = newBigInt(position.Amount)
	position.RewardDebt = newBigInt(position.RewardDebt)
	return position, nil
}

func (e *Engine) stakeAsset(ref string) (StakeAsset, error) {
	if e.stakeAssets == nil {
		return nil, ErrCollaboratorMissing
	}
	asset, err := e.stakeAssets.StakeAsset(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnknownAsset, ref, err)
	}
	if asset == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, ref)
	}
	return asset, nil
}

func (e *Engine) persist(pool *Pool, position *Position) error {
	if pool != nil {
		if err := e.state.FarmPoolPut(pool); err != nil {
			return err
		}
	}
	if position != nil {
		if err := e.state.FarmPositionPut(position); err != nil {
			return err
		}
	}
	return nil
}

// Deposit moves amount of the pool's stake asset from caller into custody and
// credits the caller's position. Any reward pending on an open position is
// not paid out; harvesting is a separate call.
func (e *Engine) Deposit(env Env, caller [20]byte, poolID uint64, amount *big.Int) (*Position, error) {
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
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	asset, err := e.stakeAsset(pool.StakeAsset)
	if err != nil {
		return nil, err
	}
	balance, err := asset.BalanceOf(caller)
	if err != nil {
		return nil, err
	}
	if balance == nil || balance.Cmp(amount) < 0 {
		return nil, ErrInsufficientBalance
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

	wasEmpty := position.Amount.Sign() == 0
	position.Amount = new(big.Int).Add(position.Amount, amount)
	pool.TotalStaked = new(big.Int).Add(pool.TotalStaked, amount)
	if err := checkUint256(position.Amount, pool.TotalStaked); err != nil {
		return nil, err
	}
	position.RewardDebt = accruedFor(position.Amount, pool.AccRewardPerShare)
	if e.params.DepositClock == DepositClockReset || wasEmpty || position.DepositTime == 0 {
		position.DepositTime = env.Time
	}

	if err := e.persist(pool, position); err != nil {
		return nil, err
	}
	if err := e.payDevReward(step); err != nil {
		return nil, err
	}
	if err := asset.TransferIn(caller, amount); err != nil {
		return nil, err
	}

	e.emitAccrual(step)
	e.emit(events.FarmPoolDeposited{PoolID: poolID, Account: caller, Amount: new(big.Int).Set(amount)})
	e.telemetry.ObserveDeposit(poolID, amount)
	return position.Clone(), nil
}

// Withdraw returns amount of stake to the caller. Inside the penalty window a
// share of the proceeds is routed to the penalty receiver; the recorded stake
// always decreases by the full amount. The returned value is the quantity
// paid to the caller.
func (e *Engine) Withdraw(env Env, caller [20]byte, poolID uint64, amount *big.Int) (*big.Int, error) {
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
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	position, err := e.loadPosition(poolID, caller)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(position.Amount) > 0 {
		return nil, ErrInsufficientStake
	}
	asset, err := e.stakeAsset(pool.StakeAsset)
	if err != nil {
		return nil, err
	}

	step, err := e.accrue(global, pool, env.Height)
	if err != nil {
		return nil, err
	}
	pool = step.pool
	net, penalty := e.penaltySplit(position, env.Time, amount)

	position.Amount = new(big.Int).Sub(position.Amount, amount)
	pool.TotalStaked = new(big.Int).Sub(pool.TotalStaked, amount)
	if pool.TotalStaked.Sign() < 0 {
		return nil, fmt.Errorf("farm: pool %d total staked underflow", poolID)
	}
	position.RewardDebt = accruedFor(position.Amount, pool.AccRewardPerShare)

	if err := e.persist(pool, position); err != nil {
		return nil, err
	}
	if err := e.payDevReward(step); err != nil {
		return nil, err
	}
	if penalty.Sign() > 0 {
		if err := asset.TransferOut(e.params.PenaltyReceiver, penalty); err != nil {
			return nil, err
		}
	}
	if net.Sign() > 0 {
		if err := asset.TransferOut(caller, net); err != nil {
			return nil, err
		}
	}

	e.emitAccrual(step)
	e.emit(events.FarmPoolWithdrawn{PoolID: poolID, Account: caller, Amount: new(big.Int).Set(net), Penalty: new(big.Int).Set(penalty)})
	e.telemetry.ObserveWithdraw(poolID, net, penalty)
	return net, nil
}
