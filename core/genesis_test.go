package core

import (
	"math/big"
	"testing"

	"farmchain/config"
	"farmchain/native/farm"
)

func TestGenesisFromConfig(t *testing.T) {
	bps := uint64(150)
	cfg := &config.Config{
		Farm: config.Farm{
			Owner:           "0x1111111111111111111111111111111111111111",
			StartBlock:      5,
			BonusEndBlock:   50,
			RewardPerBlock:  "1000",
			RewardToken:     "rwd",
			BonusToken:      "BONUS",
			PenaltyReceiver: "0x2222222222222222222222222222222222222222",
			PenaltyBps:      &bps,
			DepositClock:    "preserve",
			Pools:           []config.FarmPool{{StakeToken: "LP", AllocationWeight: 10}},
		},
		Tokens: []config.Token{
			{Symbol: "LP", Decimals: 6},
			{Symbol: "RWD", Name: "Reward", MaxSupply: "5000", Admin: "0x3333333333333333333333333333333333333333"},
			{Symbol: "BONUS"},
		},
		Balances: []config.Balance{{Address: "0x4444444444444444444444444444444444444444", Token: "LP", Amount: "77"}},
	}

	g, err := GenesisFromConfig(cfg)
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if g.Params.StartBlock != 5 || g.Params.BonusEndBlock != 50 {
		t.Fatalf("unexpected blocks: %+v", g.Params)
	}
	if g.Params.BonusMultiplier != 10 {
		t.Fatalf("expected default multiplier, got %d", g.Params.BonusMultiplier)
	}
	if g.Params.RewardPerBlock.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("unexpected reward per block %s", g.Params.RewardPerBlock)
	}
	if g.Params.PenaltyBps != 150 {
		t.Fatalf("unexpected penalty bps %d", g.Params.PenaltyBps)
	}
	if g.Params.DepositClock != farm.DepositClockPreserve {
		t.Fatalf("unexpected clock policy %s", g.Params.DepositClock)
	}
	if g.RewardToken != "RWD" {
		t.Fatalf("reward token not normalised: %q", g.RewardToken)
	}
	if g.Tokens[0].Name != "LP" {
		t.Fatalf("expected symbol as default name, got %q", g.Tokens[0].Name)
	}
	if g.Tokens[0].Admin != g.Owner {
		t.Fatalf("expected owner as default admin")
	}
	if g.Tokens[1].Admin == g.Owner {
		t.Fatalf("explicit admin overwritten")
	}
	if len(g.Balances) != 1 || g.Balances[0].Amount.Int64() != 77 {
		t.Fatalf("unexpected balances: %+v", g.Balances)
	}
	if len(g.Pools) != 1 || g.Pools[0].AllocationWeight != 10 {
		t.Fatalf("unexpected pools: %+v", g.Pools)
	}
}

func TestGenesisFromConfigRejectsBadPolicy(t *testing.T) {
	cfg := &config.Config{Farm: config.Farm{RewardPerBlock: "1", DepositClock: "sometimes"}}
	if _, err := GenesisFromConfig(cfg); err == nil {
		t.Fatalf("expected policy error")
	}
}

func TestModuleAddressIsStable(t *testing.T) {
	if FarmModuleAddress == ([20]byte{}) {
		t.Fatalf("module address must not be zero")
	}
	if moduleAddress("farm") != FarmModuleAddress {
		t.Fatalf("module address must be deterministic")
	}
	if moduleAddress("other") == FarmModuleAddress {
		t.Fatalf("module addresses must differ per module")
	}
}
