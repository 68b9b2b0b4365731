package state

import (
	"fmt"
	"math/big"
	"strconv"

	"farmchain/native/farm"
)

var (
	farmGlobalKeyBytes   = []byte("farm/global")
	farmPoolPrefix       = "farm/pool/"
	farmPositionPrefix   = "farm/position/"
	farmPoolStakersInfix = "/stakers"
	farmPoolStakerInfix  = "/staker/"
)

func farmPoolKey(id uint64) []byte {
	return []byte(farmPoolPrefix + strconv.FormatUint(id, 10))
}

func farmPoolStakersKey(id uint64) []byte {
	return []byte(farmPoolPrefix + strconv.FormatUint(id, 10) + farmPoolStakersInfix)
}

func farmPoolStakerEntryKey(id, index uint64) []byte {
	return []byte(farmPoolPrefix + strconv.FormatUint(id, 10) + farmPoolStakersInfix + "/" + strconv.FormatUint(index, 10))
}

func farmPoolStakerMarkerKey(id uint64, owner [20]byte) []byte {
	buf := []byte(farmPoolPrefix + strconv.FormatUint(id, 10) + farmPoolStakerInfix)
	return append(buf, owner[:]...)
}

func farmPositionKey(poolID uint64, owner [20]byte) []byte {
	buf := []byte(farmPositionPrefix + strconv.FormatUint(poolID, 10) + "/")
	return append(buf, owner[:]...)
}

type storedFarmPool struct {
	ID                uint64
	StakeAsset        string
	AllocationWeight  uint64
	LastRewardBlock   uint64
	AccRewardPerShare *big.Int
	TotalStaked       *big.Int
}

func newStoredFarmPool(p *farm.Pool) *storedFarmPool {
	return &storedFarmPool{
		ID:                p.ID,
		StakeAsset:        p.StakeAsset,
		AllocationWeight:  p.AllocationWeight,
		LastRewardBlock:   p.LastRewardBlock,
		AccRewardPerShare: nonNil(p.AccRewardPerShare),
		TotalStaked:       nonNil(p.TotalStaked),
	}
}

func (s *storedFarmPool) toPool() *farm.Pool {
	return &farm.Pool{
		ID:                s.ID,
		StakeAsset:        s.StakeAsset,
		AllocationWeight:  s.AllocationWeight,
		LastRewardBlock:   s.LastRewardBlock,
		AccRewardPerShare: nonNil(s.AccRewardPerShare),
		TotalStaked:       nonNil(s.TotalStaked),
	}
}

type storedFarmPosition struct {
	PoolID       uint64
	Owner        [20]byte
	Amount       *big.Int
	RewardDebt   *big.Int
	DepositTime  uint64
	BonusClaimed bool
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// FarmGlobalGet loads the farm module record.
func (m *Manager) FarmGlobalGet() (*farm.Global, bool, error) {
	var global farm.Global
	ok, err := m.KVGet(farmGlobalKeyBytes, &global)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &global, true, nil
}

// FarmGlobalPut stores the farm module record.
func (m *Manager) FarmGlobalPut(global *farm.Global) error {
	if global == nil {
		return fmt.Errorf("farm: nil global record")
	}
	return m.KVPut(farmGlobalKeyBytes, global)
}

// FarmPoolGet loads pool id.
func (m *Manager) FarmPoolGet(id uint64) (*farm.Pool, bool, error) {
	var stored storedFarmPool
	ok, err := m.KVGet(farmPoolKey(id), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return stored.toPool(), true, nil
}

// FarmPoolPut stores pool.
func (m *Manager) FarmPoolPut(pool *farm.Pool) error {
	if pool == nil {
		return fmt.Errorf("farm: nil pool")
	}
	return m.KVPut(farmPoolKey(pool.ID), newStoredFarmPool(pool))
}

// FarmPositionGet loads the position of owner in poolID.
func (m *Manager) FarmPositionGet(poolID uint64, owner [20]byte) (*farm.Position, bool, error) {
	var stored storedFarmPosition
	ok, err := m.KVGet(farmPositionKey(poolID, owner), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &farm.Position{
		PoolID:       stored.PoolID,
		Owner:        stored.Owner,
		Amount:       nonNil(stored.Amount),
		RewardDebt:   nonNil(stored.RewardDebt),
		DepositTime:  stored.DepositTime,
		BonusClaimed: stored.BonusClaimed,
	}, true, nil
}

// FarmPositionPut stores position and indexes its owner under the pool.
func (m *Manager) FarmPositionPut(position *farm.Position) error {
	if position == nil {
		return fmt.Errorf("farm: nil position")
	}
	stored := &storedFarmPosition{
		PoolID:       position.PoolID,
		Owner:        position.Owner,
		Amount:       nonNil(position.Amount),
		RewardDebt:   nonNil(position.RewardDebt),
		DepositTime:  position.DepositTime,
		BonusClaimed: position.BonusClaimed,
	}
	if err := m.KVPut(farmPositionKey(position.PoolID, position.Owner), stored); err != nil {
		return err
	}
	return m.indexFarmStaker(position.PoolID, position.Owner)
}

// indexFarmStaker records owner under poolID the first time it is seen. The
// cost does not depend on how many stakers the pool already holds.
func (m *Manager) indexFarmStaker(poolID uint64, owner [20]byte) error {
	marker := farmPoolStakerMarkerKey(poolID, owner)
	seen, err := m.KVGet(marker, nil)
	if err != nil || seen {
		return err
	}
	var count uint64
	if _, err := m.KVGet(farmPoolStakersKey(poolID), &count); err != nil {
		return err
	}
	if err := m.KVPut(farmPoolStakerEntryKey(poolID, count), owner[:]); err != nil {
		return err
	}
	if err := m.KVPut(marker, count); err != nil {
		return err
	}
	return m.KVPut(farmPoolStakersKey(poolID), count+1)
}

// FarmPoolStakerCount reports how many distinct accounts were ever indexed
// under poolID.
func (m *Manager) FarmPoolStakerCount(poolID uint64) (uint64, error) {
	var count uint64
	if _, err := m.KVGet(farmPoolStakersKey(poolID), &count); err != nil {
		return 0, err
	}
	return count, nil
}

// FarmPoolStakers lists every account that ever held a position in poolID, in
// first-deposit order.
func (m *Manager) FarmPoolStakers(poolID uint64) ([][20]byte, error) {
	count, err := m.FarmPoolStakerCount(poolID)
	if err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		var entry []byte
		ok, err := m.KVGet(farmPoolStakerEntryKey(poolID, i), &entry)
		if err != nil {
			return nil, err
		}
		if !ok || len(entry) != 20 {
			return nil, fmt.Errorf("farm: malformed staker index entry %d in pool %d", i, poolID)
		}
		var owner [20]byte
		copy(owner[:], entry)
		out = append(out, owner)
	}
	return out, nil
}
