package farm

import "math/big"

// StakeAsset moves a pool's stake token between accounts and the module
// custody account.
type StakeAsset interface {
	TransferIn(from [20]byte, amount *big.Int) error
	TransferOut(to [20]byte, amount *big.Int) error
	BalanceOf(addr [20]byte) (*big.Int, error)
}

// StakeAssets resolves the stake asset referenced by a pool.
type StakeAssets interface {
	StakeAsset(ref string) (StakeAsset, error)
}

// RewardAsset mints the reward token. Implementations are expected to hold a
// minter capability granted by the token administrator.
type RewardAsset interface {
	Mint(to [20]byte, amount *big.Int) error
}

// BonusAsset issues one unit of the bonus token per call.
type BonusAsset interface {
	Mint(to [20]byte) error
}
