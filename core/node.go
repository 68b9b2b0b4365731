package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"farmchain/core/events"
	farmstate "farmchain/core/state"
	"farmchain/core/types"
	"farmchain/native/bank"
	nativecommon "farmchain/native/common"
	"farmchain/native/farm"
	"farmchain/observability"
	"farmchain/observability/otel"
	"farmchain/storage"
)

// ErrInvalidBlockCount is returned by Mine for a zero count.
var ErrInvalidBlockCount = errors.New("core: block count must be positive")

// EventSink receives the events of every committed call.
type EventSink interface {
	Append(ctx context.Context, height uint64, evts []events.Event) error
}

// Sinks fans committed events out to several sinks. Every sink is tried;
// their errors are joined.
type Sinks []EventSink

// Append implements EventSink.
func (s Sinks) Append(ctx context.Context, height uint64, evts []events.Event) error {
	var errs []error
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.Append(ctx, height, evts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Node hosts the staking ledger. Calls are serialised and each one executes
// against the pending block inside a single state transaction: a failure at
// any step, including a collaborator such as the reward token refusing to
// mint, leaves state and balances untouched and publishes no events.
type Node struct {
	mu       sync.Mutex
	db       storage.Database
	state    *farmstate.Manager
	ledger   *bank.Ledger
	engine   *farm.Engine
	recorder *events.Recorder
	pauses   *nativecommon.Pauses
	sink     EventSink
	logger   *slog.Logger
	tracer   trace.Tracer

	now        func() time.Time
	head       farmstate.ChainHead
	timeOffset uint64
	autoMine   bool

	subMu       sync.Mutex
	subscribers map[uint64]chan types.Event
	nextSubID   uint64
}

// NewNode opens the ledger stored in db, writing genesis first when the
// database is empty. now supplies wall-clock time for pending blocks and
// defaults to time.Now.
func NewNode(db storage.Database, genesis *Genesis, now func() time.Time) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	if genesis == nil {
		return nil, fmt.Errorf("core: genesis required")
	}
	if now == nil {
		now = time.Now
	}
	engine, err := farm.NewEngine(genesis.Params)
	if err != nil {
		return nil, err
	}
	manager := farmstate.NewManager(db)
	n := &Node{
		db:       db,
		state:    manager,
		ledger:   bank.NewLedger(manager),
		engine:   engine,
		recorder: &events.Recorder{},
		pauses:   nativecommon.NewPauses(),
		logger:   slog.Default(),
		tracer:   otel.Tracer("farmchain/core"),
		now:      now,
	}
	engine.SetState(manager)
	engine.SetEmitter(n.recorder)
	engine.SetPauses(n.pauses)
	engine.SetAssets(n.ledger.StakeAssets(FarmModuleAddress), nil, nil)

	head, ok, err := manager.ChainHeadGet()
	if err != nil {
		return nil, fmt.Errorf("core: load chain head: %w", err)
	}
	if !ok {
		head, err = n.writeGenesis(genesis)
		if err != nil {
			return nil, err
		}
	}
	n.head = head

	rewardCap, err := n.ledger.MinterCapability(genesis.RewardToken, FarmModuleAddress)
	if err != nil {
		return nil, fmt.Errorf("core: reward minter: %w", err)
	}
	bonusCap, err := n.ledger.MinterCapability(genesis.BonusToken, FarmModuleAddress)
	if err != nil {
		return nil, fmt.Errorf("core: bonus minter: %w", err)
	}
	engine.SetAssets(n.ledger.StakeAssets(FarmModuleAddress), n.ledger.RewardMinter(rewardCap), n.ledger.BonusMinter(bonusCap))
	observability.Chain().SetHeight(head.Height)
	return n, nil
}

func (n *Node) writeGenesis(genesis *Genesis) (farmstate.ChainHead, error) {
	head := farmstate.ChainHead{Height: 0, Time: genesis.Time}
	if head.Time == 0 {
		head.Time = uint64(n.now().Unix())
	}
	g := *genesis
	g.Time = head.Time
	if err := n.state.Begin(); err != nil {
		return head, err
	}
	if err := g.apply(n.ledger, n.engine); err != nil {
		n.state.Rollback()
		n.recorder.Drain()
		return head, err
	}
	if err := n.state.ChainHeadPut(head); err != nil {
		n.state.Rollback()
		n.recorder.Drain()
		return head, err
	}
	if err := n.state.Commit(); err != nil {
		n.state.Rollback()
		n.recorder.Drain()
		return head, err
	}
	n.publish(context.Background(), 0, n.recorder.Drain())
	return head, nil
}

// SetLogger replaces the node logger.
func (n *Node) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	n.mu.Lock()
	n.logger = logger
	n.mu.Unlock()
}

// SetEventSink forwards committed events to sink.
func (n *Node) SetEventSink(sink EventSink) {
	n.mu.Lock()
	n.sink = sink
	n.mu.Unlock()
}

// SetAutoMine makes every successful call seal its own block.
func (n *Node) SetAutoMine(enabled bool) {
	n.mu.Lock()
	n.autoMine = enabled
	n.mu.Unlock()
}

// SetPaused switches a module on or off.
func (n *Node) SetPaused(module string, paused bool) {
	n.pauses.Set(module, paused)
	n.logger.Info("module pause changed", slog.String("module", module), slog.Bool("paused", paused))
}

// Paused lists the paused modules.
func (n *Node) Paused() []string { return n.pauses.Paused() }

// pendingEnv is the block the next call executes in. The caller holds mu.
func (n *Node) pendingEnv() farm.Env {
	return n.envAfter(n.head)
}

func (n *Node) envAfter(head farmstate.ChainHead) farm.Env {
	ts := head.Time + 1
	if wall := uint64(n.now().Unix()) + n.timeOffset; wall > ts {
		ts = wall
	}
	return farm.Env{Height: head.Height + 1, Time: ts}
}

func (n *Node) execute(ctx context.Context, op string, fn func(env farm.Env) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := n.tracer.Start(ctx, "farm."+op)
	defer span.End()

	n.mu.Lock()
	defer n.mu.Unlock()

	env := n.pendingEnv()
	span.SetAttributes(attribute.Int64("block.height", int64(env.Height)))
	if err := n.state.Begin(); err != nil {
		span.RecordError(err)
		return err
	}
	n.recorder.Drain()

	err := fn(env)
	if err == nil && n.autoMine {
		err = n.state.ChainHeadPut(farmstate.ChainHead{Height: env.Height, Time: env.Time})
	}
	if err == nil {
		err = n.state.Commit()
	}
	if err != nil {
		n.state.Rollback()
		n.recorder.Drain()
		observability.Chain().RecordRollback(op)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		n.logger.Debug("farm call rolled back", slog.String("op", op), slog.Uint64("height", env.Height), slog.Any("error", err))
		return err
	}
	if n.autoMine {
		n.head = farmstate.ChainHead{Height: env.Height, Time: env.Time}
		observability.Chain().SetHeight(env.Height)
	}
	n.publish(ctx, env.Height, n.recorder.Drain())
	return nil
}

func (n *Node) publish(ctx context.Context, height uint64, evts []events.Event) {
	if len(evts) == 0 {
		return
	}
	for _, evt := range evts {
		observability.Events().RecordEvent(evt.EventType())
	}
	n.broadcast(height, evts)
	if n.sink == nil {
		return
	}
	if err := n.sink.Append(ctx, height, evts); err != nil {
		n.logger.Warn("event sink append failed", slog.Uint64("height", height), slog.Int("events", len(evts)), slog.Any("error", err))
	}
}

// SubscribeEvents streams committed events to the returned channel until
// cancel is called. Events are dropped for subscribers whose buffer is full.
func (n *Node) SubscribeEvents(buffer int) (<-chan types.Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan types.Event, buffer)
	n.subMu.Lock()
	if n.subscribers == nil {
		n.subscribers = make(map[uint64]chan types.Event)
	}
	id := n.nextSubID
	n.nextSubID++
	n.subscribers[id] = ch
	n.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.subMu.Lock()
			delete(n.subscribers, id)
			n.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (n *Node) broadcast(height uint64, evts []events.Event) {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	if len(n.subscribers) == 0 {
		return
	}
	for _, evt := range evts {
		rendered := events.Render(evt)
		if rendered == nil {
			continue
		}
		rendered.Height = height
		for id, ch := range n.subscribers {
			select {
			case ch <- *rendered:
			default:
				n.logger.Warn("event subscriber lagging, dropping event", slog.Uint64("subscriber", id), slog.String("type", rendered.Type))
			}
		}
	}
}

// AddPool registers a pool for stakeToken.
func (n *Node) AddPool(ctx context.Context, caller [20]byte, stakeToken string, weight uint64) (uint64, error) {
	var id uint64
	err := n.execute(ctx, "addPool", func(env farm.Env) error {
		var err error
		id, err = n.engine.AddPool(env, caller, stakeToken, weight)
		return err
	})
	return id, err
}

// SetAllocationWeight reweights poolID.
func (n *Node) SetAllocationWeight(ctx context.Context, caller [20]byte, poolID, weight uint64, withUpdate bool) error {
	return n.execute(ctx, "setAllocationWeight", func(env farm.Env) error {
		return n.engine.SetAllocationWeight(env, caller, poolID, weight, withUpdate)
	})
}

// Deposit stakes amount into poolID.
func (n *Node) Deposit(ctx context.Context, caller [20]byte, poolID uint64, amount *big.Int) (*farm.Position, error) {
	var position *farm.Position
	err := n.execute(ctx, "deposit", func(env farm.Env) error {
		var err error
		position, err = n.engine.Deposit(env, caller, poolID, amount)
		return err
	})
	return position, err
}

// Withdraw unstakes amount from poolID and returns the amount paid out after
// any early withdrawal penalty.
func (n *Node) Withdraw(ctx context.Context, caller [20]byte, poolID uint64, amount *big.Int) (*big.Int, error) {
	var net *big.Int
	err := n.execute(ctx, "withdraw", func(env farm.Env) error {
		var err error
		net, err = n.engine.Withdraw(env, caller, poolID, amount)
		return err
	})
	return net, err
}

// Harvest pays the caller's pending reward in poolID to recipient.
func (n *Node) Harvest(ctx context.Context, caller [20]byte, poolID uint64, recipient [20]byte) (*farm.HarvestResult, error) {
	var result *farm.HarvestResult
	err := n.execute(ctx, "harvest", func(env farm.Env) error {
		var err error
		result, err = n.engine.Harvest(env, caller, poolID, recipient)
		return err
	})
	return result, err
}

// EmergencyWithdraw returns the caller's whole stake without rewards.
func (n *Node) EmergencyWithdraw(ctx context.Context, caller [20]byte, poolID uint64) (*big.Int, error) {
	var amount *big.Int
	err := n.execute(ctx, "emergencyWithdraw", func(env farm.Env) error {
		var err error
		amount, err = n.engine.EmergencyWithdraw(env, caller, poolID)
		return err
	})
	return amount, err
}

// SetEmergencyWithdraw toggles the emergency exit.
func (n *Node) SetEmergencyWithdraw(ctx context.Context, caller [20]byte, enabled bool) error {
	return n.execute(ctx, "setEmergencyWithdraw", func(farm.Env) error {
		return n.engine.ChangeEmergencyWithdrawStatus(caller, enabled)
	})
}

// TransferOwnership hands the owner role to next.
func (n *Node) TransferOwnership(ctx context.Context, caller, next [20]byte) error {
	return n.execute(ctx, "transferOwnership", func(farm.Env) error {
		return n.engine.TransferOwnership(caller, next)
	})
}

// UpdatePool brings poolID's accumulator up to the pending block.
func (n *Node) UpdatePool(ctx context.Context, poolID uint64) (*farm.Pool, error) {
	var pool *farm.Pool
	err := n.execute(ctx, "updatePool", func(env farm.Env) error {
		var err error
		pool, err = n.engine.UpdatePool(env, poolID)
		return err
	})
	return pool, err
}

// MassUpdatePools updates every pool.
func (n *Node) MassUpdatePools(ctx context.Context) error {
	return n.execute(ctx, "massUpdatePools", func(env farm.Env) error {
		return n.engine.MassUpdatePools(env)
	})
}

// Pool returns poolID as stored.
func (n *Node) Pool(poolID uint64) (*farm.Pool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.QueryPool(poolID)
}

// Position returns owner's position in poolID.
func (n *Node) Position(poolID uint64, owner [20]byte) (*farm.Position, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.QueryPosition(poolID, owner)
}

// Positions lists every position ever opened in poolID, including emptied
// ones, in first-deposit order.
func (n *Node) Positions(poolID uint64) ([]*farm.Position, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := n.engine.QueryPool(poolID); err != nil {
		return nil, err
	}
	stakers, err := n.state.FarmPoolStakers(poolID)
	if err != nil {
		return nil, err
	}
	out := make([]*farm.Position, 0, len(stakers))
	for _, owner := range stakers {
		position, err := n.engine.QueryPosition(poolID, owner)
		if err != nil {
			return nil, err
		}
		out = append(out, position)
	}
	return out, nil
}

// PendingReward projects owner's reward in poolID to the pending block.
func (n *Node) PendingReward(poolID uint64, owner [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.QueryPendingReward(n.pendingEnv(), poolID, owner)
}

// PenaltyFor quotes the penalty a withdrawal of amount would pay in the
// pending block.
func (n *Node) PenaltyFor(poolID uint64, owner [20]byte, amount *big.Int) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.PenaltyFor(poolID, owner, n.pendingEnv().Time, amount)
}

// WithdrawQuote splits a withdrawal of amount by owner at the pending block.
func (n *Node) WithdrawQuote(poolID uint64, owner [20]byte, amount *big.Int) (net, penalty *big.Int, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.WithdrawQuote(poolID, owner, n.pendingEnv().Time, amount)
}

// Global returns the module-wide record.
func (n *Node) Global() (*farm.Global, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Global()
}

// Params returns the farm params.
func (n *Node) Params() farm.Params { return n.engine.Params() }

// Balance returns addr's balance of symbol.
func (n *Node) Balance(addr [20]byte, symbol string) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.BalanceOf(addr, symbol)
}

// Token returns the metadata of symbol.
func (n *Node) Token(symbol string) (*farmstate.TokenMetadata, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.Token(symbol)
}

// Head returns the last sealed block.
func (n *Node) Head() farmstate.ChainHead {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.head
}

// Pending returns the block the next call executes in.
func (n *Node) Pending() farm.Env {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pendingEnv()
}

// Mine seals count blocks and returns the new head.
func (n *Node) Mine(count uint64) (farmstate.ChainHead, error) {
	if count == 0 {
		return farmstate.ChainHead{}, ErrInvalidBlockCount
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	head := n.head
	for i := uint64(0); i < count; i++ {
		env := n.envAfter(head)
		head = farmstate.ChainHead{Height: env.Height, Time: env.Time}
	}
	if err := n.state.ChainHeadPut(head); err != nil {
		return n.head, fmt.Errorf("core: persist chain head: %w", err)
	}
	n.head = head
	observability.Chain().SetHeight(head.Height)
	return head, nil
}

// IncreaseTime moves the pending block's timestamp forward by seconds.
func (n *Node) IncreaseTime(seconds uint64) farm.Env {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.timeOffset += seconds
	return n.pendingEnv()
}

// Close releases the database.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.db.Close()
}
