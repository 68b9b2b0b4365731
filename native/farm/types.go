package farm

import "math/big"

// Env carries the host-supplied chain head for a single call. The engine never
// samples a clock of its own.
type Env struct {
	Height uint64 `json:"height"`
	Time   uint64 `json:"time"`
}

// Pool tracks one stake asset and its reward accumulator.
type Pool struct {
	ID                uint64   `json:"id"`
	StakeAsset        string   `json:"stakeAsset"`
	AllocationWeight  uint64   `json:"allocationWeight"`
	LastRewardBlock   uint64   `json:"lastRewardBlock"`
	AccRewardPerShare *big.Int `json:"accRewardPerShare"`
	TotalStaked       *big.Int `json:"totalStaked"`
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.AccRewardPerShare = newBigInt(p.AccRewardPerShare)
	clone.TotalStaked = newBigInt(p.TotalStaked)
	return &clone
}

// Position is a single account's stake in a pool.
type Position struct {
	PoolID       uint64   `json:"poolId"`
	Owner        [20]byte `json:"owner"`
	Amount       *big.Int `json:"amount"`
	RewardDebt   *big.Int `json:"rewardDebt"`
	DepositTime  uint64   `json:"depositTime"`
	BonusClaimed bool     `json:"bonusClaimed"`
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Amount = newBigInt(p.Amount)
	clone.RewardDebt = newBigInt(p.RewardDebt)
	return &clone
}

// Global is the mutable module-wide record.
type Global struct {
	Owner                    [20]byte `json:"owner"`
	PoolCount                uint64   `json:"poolCount"`
	TotalAllocationWeight    uint64   `json:"totalAllocationWeight"`
	EmergencyWithdrawEnabled bool     `json:"emergencyWithdrawEnabled"`
}

// Clone returns a copy of the global record.
func (g *Global) Clone() *Global {
	if g == nil {
		return nil
	}
	clone := *g
	return &clone
}

func newBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func newPosition(poolID uint64, owner [20]byte) *Position {
	return &Position{
		PoolID:     poolID,
		Owner:      owner,
		Amount:     big.NewInt(0),
		RewardDebt: big.NewInt(0),
	}
}
