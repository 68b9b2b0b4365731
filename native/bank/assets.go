package bank

import (
	"math/big"

	"farmchain/native/farm"
)

// StakeAssets exposes ledger tokens as farm stake assets held in custody.
func (l *Ledger) StakeAssets(custody [20]byte) farm.StakeAssets {
	return stakeAssets{ledger: l, custody: custody}
}

type stakeAssets struct {
	ledger  *Ledger
	custody [20]byte
}

func (s stakeAssets) StakeAsset(ref string) (farm.StakeAsset, error) {
	meta, err := s.ledger.token(ref)
	if err != nil {
		return nil, err
	}
	return stakeAsset{ledger: s.ledger, symbol: meta.Symbol, custody: s.custody}, nil
}

type stakeAsset struct {
	ledger  *Ledger
	symbol  string
	custody [20]byte
}

func (a stakeAsset) TransferIn(from [20]byte, amount *big.Int) error {
	return a.ledger.Transfer(a.symbol, from, a.custody, amount)
}

func (a stakeAsset) TransferOut(to [20]byte, amount *big.Int) error {
	return a.ledger.Transfer(a.symbol, a.custody, to, amount)
}

func (a stakeAsset) BalanceOf(addr [20]byte) (*big.Int, error) {
	return a.ledger.BalanceOf(addr, a.symbol)
}

// RewardMinter returns a farm reward asset that mints through capability.
func (l *Ledger) RewardMinter(capability Capability) farm.RewardAsset {
	return rewardMinter{ledger: l, capability: capability}
}

type rewardMinter struct {
	ledger     *Ledger
	capability Capability
}

func (m rewardMinter) Mint(to [20]byte, amount *big.Int) error {
	return m.ledger.Mint(m.capability, to, amount)
}

// BonusMinter returns a farm bonus asset that mints one unit per call.
func (l *Ledger) BonusMinter(capability Capability) farm.BonusAsset {
	return bonusMinter{ledger: l, capability: capability}
}

type bonusMinter struct {
	ledger     *Ledger
	capability Capability
}

func (m bonusMinter) Mint(to [20]byte) error {
	return m.ledger.Mint(m.capability, to, big.NewInt(1))
}
