package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	DatabaseLevelDB = "leveldb"
	DatabaseBolt    = "bolt"
	DatabaseMemory  = "memory"
)

type Config struct {
	RPCAddress  string `toml:"RPCAddress" yaml:"RPCAddress"`
	DataDir     string `toml:"DataDir" yaml:"DataDir"`
	Database    string `toml:"Database" yaml:"Database"`
	Environment string `toml:"Environment" yaml:"Environment"`
	// BlockIntervalSeconds drives automatic block production. Zero leaves
	// block production to the dev_mine method.
	BlockIntervalSeconds uint64 `toml:"BlockIntervalSeconds" yaml:"BlockIntervalSeconds"`

	Farm      Farm      `toml:"Farm" yaml:"Farm"`
	Tokens    []Token   `toml:"Tokens" yaml:"Tokens"`
	Balances  []Balance `toml:"Balances" yaml:"Balances"`
	Pauses    Pauses    `toml:"Pauses" yaml:"Pauses"`
	Logging   Logging   `toml:"Logging" yaml:"Logging"`
	RPC       RPC       `toml:"RPC" yaml:"RPC"`
	Telemetry Telemetry `toml:"Telemetry" yaml:"Telemetry"`
	EventLog  EventLog  `toml:"EventLog" yaml:"EventLog"`
	Webhook   Webhook   `toml:"Webhook" yaml:"Webhook"`
}

// Load loads the configuration from the given path, writing a default file
// first when none exists. Files ending in .yaml or .yml are decoded as YAML,
// everything else as TOML. Unknown keys are rejected in both formats.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	var err error
	if isYAML(path) {
		err = decodeYAML(path, cfg)
	} else {
		err = decodeTOML(path, cfg)
	}
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func decodeTOML(path string, cfg *Config) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func decodeYAML(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file %s: decode: %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8545"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./farm-data"
	}
	cfg.Database = strings.ToLower(strings.TrimSpace(cfg.Database))
	if cfg.Database == "" {
		cfg.Database = DatabaseLevelDB
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if cfg.Farm.BonusMultiplier == 0 {
		cfg.Farm.BonusMultiplier = 10
	}
	if strings.TrimSpace(cfg.Farm.RewardPerBlock) == "" {
		cfg.Farm.RewardPerBlock = "0"
	}
	if cfg.Farm.PenaltyBps == nil {
		bps := uint64(300)
		cfg.Farm.PenaltyBps = &bps
	}
	if cfg.Farm.PenaltyWindowSeconds == 0 {
		cfg.Farm.PenaltyWindowSeconds = 3 * 24 * 60 * 60
	}
	if cfg.Farm.BonusWindowSeconds == 0 {
		cfg.Farm.BonusWindowSeconds = 3 * 24 * 60 * 60
	}
	if cfg.Farm.DepositClock == "" {
		cfg.Farm.DepositClock = "reset"
	}
	if cfg.Farm.Pools == nil {
		cfg.Farm.Pools = []FarmPool{}
	}
	if cfg.RPC.RateLimitPerSec == 0 {
		cfg.RPC.RateLimitPerSec = 20
	}
	if cfg.RPC.RateLimitBurst == 0 {
		cfg.RPC.RateLimitBurst = 40
	}
	if cfg.RPC.ReadHeaderTimeout == 0 {
		cfg.RPC.ReadHeaderTimeout = 5
	}
	if cfg.Webhook.MaxRetries == 0 {
		cfg.Webhook.MaxRetries = 5
	}
	if cfg.Webhook.DrainTimeoutSeconds == 0 {
		cfg.Webhook.DrainTimeoutSeconds = 10
	}
}

const (
	defaultOwner           = "0x1111111111111111111111111111111111111111"
	defaultPenaltyReceiver = "0x2222222222222222222222222222222222222222"
)

// createDefault creates and saves a default configuration file describing a
// local development ledger: one LP pool paying RWD, with dev methods enabled.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:           ":8545",
		DataDir:              "./farm-data",
		Database:             DatabaseLevelDB,
		Environment:          "local",
		BlockIntervalSeconds: 5,
		Farm: Farm{
			Owner:           defaultOwner,
			StartBlock:      1,
			BonusEndBlock:   1000,
			BonusMultiplier: 10,
			RewardPerBlock:  "10000000000000000000",
			RewardToken:     "RWD",
			BonusToken:      "BONUS",
			PenaltyReceiver: defaultPenaltyReceiver,
			DepositClock:    "reset",
			Pools:           []FarmPool{{StakeToken: "LP", AllocationWeight: 100}},
		},
		Tokens: []Token{
			{Symbol: "LP", Name: "Liquidity", Decimals: 6, Admin: defaultOwner},
			{Symbol: "RWD", Name: "Reward", Decimals: 18, MaxSupply: "1000000000000000000000000000", Admin: defaultOwner},
			{Symbol: "BONUS", Name: "Bonus", Decimals: 0, Admin: defaultOwner},
		},
		Balances: []Balance{
			{Address: defaultOwner, Token: "LP", Amount: "1000000000000"},
		},
		Logging: Logging{Level: "info"},
		RPC:     RPC{DevMethods: true},
	}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		encoder := yaml.NewEncoder(f)
		if err := encoder.Encode(cfg); err != nil {
			return err
		}
		return encoder.Close()
	}
	return toml.NewEncoder(f).Encode(cfg)
}
