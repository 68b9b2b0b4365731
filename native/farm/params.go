package farm

import (
	"fmt"
	"math/big"
)

// DepositClockPolicy decides how a deposit into an open position moves the
// clock used by the penalty and bonus windows.
type DepositClockPolicy uint8

const (
	// DepositClockReset restarts the clock on every deposit.
	DepositClockReset DepositClockPolicy = iota
	// DepositClockPreserve keeps the time of the first deposit into an empty
	// position.
	DepositClockPreserve
)

func (p DepositClockPolicy) String() string {
	switch p {
	case DepositClockReset:
		return "reset"
	case DepositClockPreserve:
		return "preserve"
	default:
		return fmt.Sprintf("DepositClockPolicy(%d)", uint8(p))
	}
}

// ParseDepositClockPolicy maps the configuration spelling onto a policy.
func ParseDepositClockPolicy(value string) (DepositClockPolicy, error) {
	switch value {
	case "", "reset":
		return DepositClockReset, nil
	case "preserve":
		return DepositClockPreserve, nil
	default:
		return 0, fmt.Errorf("farm: unknown deposit clock policy %q", value)
	}
}

const (
	defaultBonusMultiplier = 10
	defaultPenaltyBps      = 300
	threeDaysSeconds       = 3 * 24 * 60 * 60
	maxBps                 = 10_000
)

// Params are the construction-time settings of the module.
type Params struct {
	StartBlock uint64
	// EndBlock closes the reward window. Zero leaves it open.
	EndBlock        uint64
	BonusEndBlock   uint64
	BonusMultiplier uint64
	RewardPerBlock  *big.Int

	PenaltyReceiver      [20]byte
	PenaltyBps           uint64
	PenaltyWindowSeconds uint64
	BonusWindowSeconds   uint64

	DevAddress   [20]byte
	DevRewardBps uint64

	DepositClock DepositClockPolicy
}

// DefaultParams returns the module defaults: 3% penalty inside a three day
// window, one bonus unit after three days, a x10 multiplier during the bonus
// period and no dev fund.
func DefaultParams() Params {
	return Params{
		BonusMultiplier:      defaultBonusMultiplier,
		RewardPerBlock:       big.NewInt(0),
		PenaltyBps:           defaultPenaltyBps,
		PenaltyWindowSeconds: threeDaysSeconds,
		BonusWindowSeconds:   threeDaysSeconds,
		DepositClock:         DepositClockReset,
	}
}

// Clone returns a deep copy of the params.
func (p Params) Clone() Params {
	clone := p
	clone.RewardPerBlock = newBigInt(p.RewardPerBlock)
	return clone
}

// Validate checks the params for internal consistency.
func (p Params) Validate() error {
	if p.RewardPerBlock == nil || p.RewardPerBlock.Sign() < 0 {
		return fmt.Errorf("farm: reward per block must be non-negative")
	}
	if err := checkUint256(p.RewardPerBlock); err != nil {
		return err
	}
	if p.EndBlock != 0 && p.EndBlock < p.StartBlock {
		return fmt.Errorf("farm: end block %d before start block %d", p.EndBlock, p.StartBlock)
	}
	if p.BonusMultiplier == 0 {
		return fmt.Errorf("farm: bonus multiplier must be at least 1")
	}
	if p.PenaltyBps > maxBps {
		return fmt.Errorf("farm: penalty bps %d exceeds %d", p.PenaltyBps, maxBps)
	}
	if p.DevRewardBps > maxBps {
		return fmt.Errorf("farm: dev reward bps %d exceeds %d", p.DevRewardBps, maxBps)
	}
	if p.PenaltyBps > 0 && isZeroAddress(p.PenaltyReceiver) {
		return fmt.Errorf("farm: penalty receiver not configured")
	}
	if p.DepositClock > DepositClockPreserve {
		return fmt.Errorf("farm: unknown deposit clock policy %d", p.DepositClock)
	}
	return nil
}
