package core

import (
	"fmt"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"farmchain/config"
	"farmchain/native/bank"
	"farmchain/native/farm"
)

// FarmModuleAddress holds pooled stake and the farm's minter grants.
var FarmModuleAddress = moduleAddress("farm")

func moduleAddress(name string) [20]byte {
	var addr [20]byte
	copy(addr[:], ethcrypto.Keccak256([]byte("farmchain/module/"+name))[12:])
	return addr
}

// GenesisToken is a token registered in the bank ledger at genesis.
type GenesisToken struct {
	Symbol    string
	Name      string
	Decimals  uint8
	MaxSupply *big.Int
	Admin     [20]byte
}

// GenesisBalance funds an account at genesis. The token admin issues it.
type GenesisBalance struct {
	Address [20]byte
	Token   string
	Amount  *big.Int
}

// GenesisPool is a pool registered by the owner at genesis.
type GenesisPool struct {
	StakeToken       string
	AllocationWeight uint64
}

// Genesis describes the initial ledger.
type Genesis struct {
	Time                     uint64
	Owner                    [20]byte
	Params                   farm.Params
	RewardToken              string
	BonusToken               string
	Tokens                   []GenesisToken
	Balances                 []GenesisBalance
	Pools                    []GenesisPool
	EmergencyWithdrawEnabled bool
}

// GenesisFromConfig converts validated configuration into a genesis.
func GenesisFromConfig(cfg *config.Config) (*Genesis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("genesis: nil config")
	}
	f := cfg.Farm
	params := farm.DefaultParams()
	var err error
	params.StartBlock = f.StartBlock
	params.EndBlock = f.EndBlock
	params.BonusEndBlock = f.BonusEndBlock
	if f.BonusMultiplier > 0 {
		params.BonusMultiplier = f.BonusMultiplier
	}
	if params.RewardPerBlock, err = config.ParseAmount(f.RewardPerBlock); err != nil {
		return nil, fmt.Errorf("genesis: reward per block: %w", err)
	}
	if params.PenaltyReceiver, err = config.ParseOptionalAddress(f.PenaltyReceiver); err != nil {
		return nil, fmt.Errorf("genesis: penalty receiver: %w", err)
	}
	if f.PenaltyBps != nil {
		params.PenaltyBps = *f.PenaltyBps
	}
	if f.PenaltyWindowSeconds > 0 {
		params.PenaltyWindowSeconds = f.PenaltyWindowSeconds
	}
	if f.BonusWindowSeconds > 0 {
		params.BonusWindowSeconds = f.BonusWindowSeconds
	}
	if params.DevAddress, err = config.ParseOptionalAddress(f.DevAddress); err != nil {
		return nil, fmt.Errorf("genesis: dev address: %w", err)
	}
	params.DevRewardBps = f.DevRewardBps
	if params.DepositClock, err = farm.ParseDepositClockPolicy(f.DepositClock); err != nil {
		return nil, err
	}

	owner, err := config.ParseOptionalAddress(f.Owner)
	if err != nil {
		return nil, fmt.Errorf("genesis: owner: %w", err)
	}
	g := &Genesis{
		Owner:                    owner,
		Params:                   params,
		RewardToken:              strings.ToUpper(strings.TrimSpace(f.RewardToken)),
		BonusToken:               strings.ToUpper(strings.TrimSpace(f.BonusToken)),
		EmergencyWithdrawEnabled: f.EmergencyWithdrawEnabled,
	}
	for _, token := range cfg.Tokens {
		maxSupply, err := config.ParseAmount(token.MaxSupply)
		if err != nil {
			return nil, fmt.Errorf("genesis: token %s: %w", token.Symbol, err)
		}
		admin, err := config.ParseOptionalAddress(token.Admin)
		if err != nil {
			return nil, fmt.Errorf("genesis: token %s admin: %w", token.Symbol, err)
		}
		if admin == ([20]byte{}) {
			admin = owner
		}
		name := strings.TrimSpace(token.Name)
		if name == "" {
			name = token.Symbol
		}
		g.Tokens = append(g.Tokens, GenesisToken{Symbol: token.Symbol, Name: name, Decimals: token.Decimals, MaxSupply: maxSupply, Admin: admin})
	}
	for _, balance := range cfg.Balances {
		addr, err := config.ParseOptionalAddress(balance.Address)
		if err != nil {
			return nil, fmt.Errorf("genesis: balance address: %w", err)
		}
		amount, err := config.ParseAmount(balance.Amount)
		if err != nil {
			return nil, fmt.Errorf("genesis: balance amount: %w", err)
		}
		g.Balances = append(g.Balances, GenesisBalance{Address: addr, Token: balance.Token, Amount: amount})
	}
	for _, pool := range f.Pools {
		g.Pools = append(g.Pools, GenesisPool{StakeToken: pool.StakeToken, AllocationWeight: pool.AllocationWeight})
	}
	return g, nil
}

func (g *Genesis) tokenAdmin(symbol string) ([20]byte, error) {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	for _, token := range g.Tokens {
		if strings.ToUpper(strings.TrimSpace(token.Symbol)) == normalized {
			return token.Admin, nil
		}
	}
	return [20]byte{}, fmt.Errorf("genesis: token %s not declared", normalized)
}

// apply writes the genesis ledger through ledger and engine. The caller runs
// it inside a state transaction.
func (g *Genesis) apply(ledger *bank.Ledger, engine *farm.Engine) error {
	for _, token := range g.Tokens {
		if err := ledger.Register(token.Symbol, token.Name, token.Decimals, token.MaxSupply, token.Admin); err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
	}
	for _, balance := range g.Balances {
		if balance.Amount == nil || balance.Amount.Sign() == 0 {
			continue
		}
		admin, err := g.tokenAdmin(balance.Token)
		if err != nil {
			return err
		}
		if err := ledger.Credit(admin, balance.Address, balance.Token, balance.Amount); err != nil {
			return fmt.Errorf("genesis: credit %s: %w", balance.Token, err)
		}
	}
	for _, symbol := range []string{g.RewardToken, g.BonusToken} {
		admin, err := g.tokenAdmin(symbol)
		if err != nil {
			return err
		}
		if _, err := ledger.GrantMinter(admin, symbol, FarmModuleAddress); err != nil {
			return fmt.Errorf("genesis: grant %s minter: %w", symbol, err)
		}
	}
	if err := engine.Initialize(g.Owner); err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	env := farm.Env{Height: 0, Time: g.Time}
	for _, pool := range g.Pools {
		if _, err := engine.AddPool(env, g.Owner, pool.StakeToken, pool.AllocationWeight); err != nil {
			return fmt.Errorf("genesis: add pool %s: %w", pool.StakeToken, err)
		}
	}
	if g.EmergencyWithdrawEnabled {
		if err := engine.ChangeEmergencyWithdrawStatus(g.Owner, true); err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
	}
	return nil
}
