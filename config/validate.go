package config

import (
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"farmchain/crypto"
)

const maxBps = 10_000

// ParseAmount parses a non-negative decimal amount. Empty means zero.
func ParseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", value)
	}
	return amount, nil
}

// ParseOptionalAddress parses a bech32 or 0x address. Empty yields the zero
// address.
func ParseOptionalAddress(value string) ([20]byte, error) {
	if strings.TrimSpace(value) == "" {
		return [20]byte{}, nil
	}
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Raw(), nil
}

func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	switch cfg.Database {
	case DatabaseLevelDB, DatabaseBolt, DatabaseMemory:
	default:
		return fmt.Errorf("database: unknown backend %q", cfg.Database)
	}

	f := cfg.Farm
	owner, err := ParseOptionalAddress(f.Owner)
	if err != nil {
		return fmt.Errorf("farm: owner: %w", err)
	}
	if owner == ([20]byte{}) {
		return fmt.Errorf("farm: owner required")
	}
	if f.EndBlock != 0 && f.EndBlock < f.StartBlock {
		return fmt.Errorf("farm: end_block < start_block")
	}
	if _, err := ParseAmount(f.RewardPerBlock); err != nil {
		return fmt.Errorf("farm: reward_per_block: %w", err)
	}
	receiver, err := ParseOptionalAddress(f.PenaltyReceiver)
	if err != nil {
		return fmt.Errorf("farm: penalty_receiver: %w", err)
	}
	if f.PenaltyBps != nil && *f.PenaltyBps > maxBps {
		return fmt.Errorf("farm: penalty_bps > %d", maxBps)
	}
	if f.PenaltyBps != nil && *f.PenaltyBps > 0 && receiver == ([20]byte{}) {
		return fmt.Errorf("farm: penalty_receiver required when penalty_bps > 0")
	}
	if _, err := ParseOptionalAddress(f.DevAddress); err != nil {
		return fmt.Errorf("farm: dev_address: %w", err)
	}
	if f.DevRewardBps > maxBps {
		return fmt.Errorf("farm: dev_reward_bps > %d", maxBps)
	}
	switch f.DepositClock {
	case "", "reset", "preserve":
	default:
		return fmt.Errorf("farm: unknown deposit_clock %q", f.DepositClock)
	}

	tokens := make(map[string]struct{}, len(cfg.Tokens))
	for i, token := range cfg.Tokens {
		symbol := strings.ToUpper(strings.TrimSpace(token.Symbol))
		if symbol == "" {
			return fmt.Errorf("tokens[%d]: symbol required", i)
		}
		if _, dup := tokens[symbol]; dup {
			return fmt.Errorf("tokens[%d]: duplicate symbol %s", i, symbol)
		}
		tokens[symbol] = struct{}{}
		if _, err := ParseAmount(token.MaxSupply); err != nil {
			return fmt.Errorf("tokens[%d]: max_supply: %w", i, err)
		}
		if _, err := ParseOptionalAddress(token.Admin); err != nil {
			return fmt.Errorf("tokens[%d]: admin: %w", i, err)
		}
	}
	requireToken := func(field, symbol string) error {
		if _, ok := tokens[strings.ToUpper(strings.TrimSpace(symbol))]; !ok {
			return fmt.Errorf("farm: %s %q is not a configured token", field, symbol)
		}
		return nil
	}
	if err := requireToken("reward_token", f.RewardToken); err != nil {
		return err
	}
	if err := requireToken("bonus_token", f.BonusToken); err != nil {
		return err
	}
	for i, pool := range f.Pools {
		if err := requireToken(fmt.Sprintf("pools[%d].stake_token", i), pool.StakeToken); err != nil {
			return err
		}
	}
	for i, balance := range cfg.Balances {
		if _, err := ParseOptionalAddress(balance.Address); err != nil {
			return fmt.Errorf("balances[%d]: address: %w", i, err)
		}
		if err := requireToken(fmt.Sprintf("balances[%d].token", i), balance.Token); err != nil {
			return err
		}
		if _, err := ParseAmount(balance.Amount); err != nil {
			return fmt.Errorf("balances[%d]: amount: %w", i, err)
		}
	}
	if cfg.RPC.RateLimitPerSec < 0 || cfg.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("rpc: rate limits must be non-negative")
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: sample_ratio must be within [0,1]")
	}
	if secret := strings.TrimSpace(cfg.RPC.JWTSecret); secret != "" && len(secret) < 32 {
		return fmt.Errorf("rpc: jwt_secret must be at least 32 bytes")
	}
	if endpoint := strings.TrimSpace(cfg.Webhook.Endpoint); endpoint != "" {
		parsed, err := url.Parse(endpoint)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("webhook: endpoint must be an http(s) URL")
		}
		if strings.TrimSpace(cfg.Webhook.Secret) == "" {
			return fmt.Errorf("webhook: secret required")
		}
		if cfg.Webhook.MaxRetries < 0 {
			return fmt.Errorf("webhook: max_retries must be non-negative")
		}
		if cfg.Webhook.DrainTimeoutSeconds < 0 {
			return fmt.Errorf("webhook: drain_timeout_seconds must be non-negative")
		}
	}
	return nil
}
