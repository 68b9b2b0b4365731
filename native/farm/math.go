package farm

import (
	"math/big"

	"github.com/holiman/uint256"
)

// accPrecision is the fixed-point scale of AccRewardPerShare.
var accPrecision = big.NewInt(1_000_000_000_000)

var basisPoints = big.NewInt(maxBps)

// rewardMultiplier returns the number of reward-bearing blocks between from
// and to. The span is clamped to [StartBlock, EndBlock] and blocks before
// BonusEndBlock count BonusMultiplier times.
func rewardMultiplier(p Params, from, to uint64) *big.Int {
	if from < p.StartBlock {
		from = p.StartBlock
	}
	if p.EndBlock != 0 && to > p.EndBlock {
		to = p.EndBlock
	}
	if to <= from {
		return big.NewInt(0)
	}
	bonus := p.BonusMultiplier
	if bonus == 0 {
		bonus = 1
	}
	span := func(a, b uint64) *big.Int { return new(big.Int).SetUint64(b - a) }
	switch {
	case to <= p.BonusEndBlock:
		return span(from, to).Mul(span(from, to), new(big.Int).SetUint64(bonus))
	case from >= p.BonusEndBlock:
		return span(from, to)
	default:
		boosted := span(from, p.BonusEndBlock)
		boosted.Mul(boosted, new(big.Int).SetUint64(bonus))
		return boosted.Add(boosted, span(p.BonusEndBlock, to))
	}
}

// poolReward is multiplier * rewardPerBlock * weight / totalWeight.
func poolReward(multiplier, rewardPerBlock *big.Int, weight, totalWeight uint64) *big.Int {
	if totalWeight == 0 || weight == 0 || multiplier.Sign() == 0 || rewardPerBlock == nil {
		return big.NewInt(0)
	}
	reward := new(big.Int).Mul(multiplier, rewardPerBlock)
	reward.Mul(reward, new(big.Int).SetUint64(weight))
	return reward.Quo(reward, new(big.Int).SetUint64(totalWeight))
}

// accumulatorDelta is reward * S / totalStaked.
func accumulatorDelta(reward, totalStaked *big.Int) *big.Int {
	if reward.Sign() == 0 || totalStaked == nil || totalStaked.Sign() == 0 {
		return big.NewInt(0)
	}
	delta := new(big.Int).Mul(reward, accPrecision)
	return delta.Quo(delta, totalStaked)
}

// accruedFor is amount * acc / S, the reward a stake has earned since the
// pool's inception.
func accruedFor(amount, acc *big.Int) *big.Int {
	if amount == nil || acc == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, acc)
	return out.Quo(out, accPrecision)
}

func pendingReward(position *Position, acc *big.Int) *big.Int {
	pending := accruedFor(position.Amount, acc)
	pending.Sub(pending, newBigInt(position.RewardDebt))
	if pending.Sign() < 0 {
		return big.NewInt(0)
	}
	return pending
}

func applyBps(amount *big.Int, bps uint64) *big.Int {
	if amount == nil || bps == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return out.Quo(out, basisPoints)
}

// checkUint256 rejects negative values and values that do not fit in 256 bits.
func checkUint256(values ...*big.Int) error {
	for _, v := range values {
		if v == nil {
			continue
		}
		if v.Sign() < 0 {
			return ErrOverflow
		}
		if _, overflow := uint256.FromBig(v); overflow {
			return ErrOverflow
		}
	}
	return nil
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}
