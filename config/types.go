package config

// Farm configures the staking ledger module.
type Farm struct {
	// Owner administers pools and the emergency switch. Bech32 or 0x hex.
	Owner string `toml:"Owner" yaml:"Owner"`

	StartBlock      uint64 `toml:"StartBlock" yaml:"StartBlock"`
	EndBlock        uint64 `toml:"EndBlock" yaml:"EndBlock"`
	BonusEndBlock   uint64 `toml:"BonusEndBlock" yaml:"BonusEndBlock"`
	BonusMultiplier uint64 `toml:"BonusMultiplier" yaml:"BonusMultiplier"`
	RewardPerBlock  string `toml:"RewardPerBlock" yaml:"RewardPerBlock"`

	RewardToken string `toml:"RewardToken" yaml:"RewardToken"`
	BonusToken  string `toml:"BonusToken" yaml:"BonusToken"`

	PenaltyReceiver      string `toml:"PenaltyReceiver" yaml:"PenaltyReceiver"`
	// PenaltyBps defaults to 300 when omitted.
	PenaltyBps           *uint64 `toml:"PenaltyBps" yaml:"PenaltyBps"`
	PenaltyWindowSeconds uint64 `toml:"PenaltyWindowSeconds" yaml:"PenaltyWindowSeconds"`
	BonusWindowSeconds   uint64 `toml:"BonusWindowSeconds" yaml:"BonusWindowSeconds"`

	DevAddress   string `toml:"DevAddress" yaml:"DevAddress"`
	DevRewardBps uint64 `toml:"DevRewardBps" yaml:"DevRewardBps"`

	// DepositClock is "reset" or "preserve".
	DepositClock string `toml:"DepositClock" yaml:"DepositClock"`

	EmergencyWithdrawEnabled bool       `toml:"EmergencyWithdrawEnabled" yaml:"EmergencyWithdrawEnabled"`
	Pools                    []FarmPool `toml:"Pools" yaml:"Pools"`
}

// FarmPool is a pool registered at genesis.
type FarmPool struct {
	StakeToken       string `toml:"StakeToken" yaml:"StakeToken"`
	AllocationWeight uint64 `toml:"AllocationWeight" yaml:"AllocationWeight"`
}

// Token is a bank ledger token registered at genesis. MaxSupply is a decimal
// string; empty or zero leaves it uncapped.
type Token struct {
	Symbol    string `toml:"Symbol" yaml:"Symbol"`
	Name      string `toml:"Name" yaml:"Name"`
	Decimals  uint8  `toml:"Decimals" yaml:"Decimals"`
	MaxSupply string `toml:"MaxSupply" yaml:"MaxSupply"`
	Admin     string `toml:"Admin" yaml:"Admin"`
}

// Balance funds an account at genesis.
type Balance struct {
	Address string `toml:"Address" yaml:"Address"`
	Token   string `toml:"Token" yaml:"Token"`
	Amount  string `toml:"Amount" yaml:"Amount"`
}

type Pauses struct {
	Farm bool `toml:"Farm" yaml:"Farm"`
}

// Modules lists the paused module names.
func (p Pauses) Modules() []string {
	var out []string
	if p.Farm {
		out = append(out, "farm")
	}
	return out
}

// Logging controls the structured logger.
type Logging struct {
	Level      string `toml:"Level" yaml:"Level"`
	File       string `toml:"File" yaml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups" yaml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"MaxAgeDays"`
}

// RPC configures the JSON-RPC listener.
type RPC struct {
	// AuthToken guards mutating methods when set.
	AuthToken         string  `toml:"AuthToken" yaml:"AuthToken"`
	RateLimitPerSec   float64 `toml:"RateLimitPerSec" yaml:"RateLimitPerSec"`
	RateLimitBurst    int     `toml:"RateLimitBurst" yaml:"RateLimitBurst"`
	ReadHeaderTimeout uint64  `toml:"ReadHeaderTimeout" yaml:"ReadHeaderTimeout"`
	DevMethods        bool    `toml:"DevMethods" yaml:"DevMethods"`
	// JWTSecret enables HS256 bearer tokens alongside AuthToken.
	JWTSecret   string `toml:"JWTSecret" yaml:"JWTSecret"`
	JWTIssuer   string `toml:"JWTIssuer" yaml:"JWTIssuer"`
	JWTAudience string `toml:"JWTAudience" yaml:"JWTAudience"`
}

// Telemetry configures OpenTelemetry export.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint" yaml:"Endpoint"`
	Insecure    bool    `toml:"Insecure" yaml:"Insecure"`
	Headers     string  `toml:"Headers" yaml:"Headers"`
	Traces      bool    `toml:"Traces" yaml:"Traces"`
	Metrics     bool    `toml:"Metrics" yaml:"Metrics"`
	SampleRatio float64 `toml:"SampleRatio" yaml:"SampleRatio"`
}

// EventLog configures the SQLite event index. An empty Path disables it.
type EventLog struct {
	Path string `toml:"Path" yaml:"Path"`
}

// Webhook forwards committed events to an HTTP endpoint. An empty Endpoint
// disables delivery.
type Webhook struct {
	Endpoint   string   `toml:"Endpoint" yaml:"Endpoint"`
	Secret     string   `toml:"Secret" yaml:"Secret"`
	EventTypes []string `toml:"EventTypes" yaml:"EventTypes"`
	MaxRetries int      `toml:"MaxRetries" yaml:"MaxRetries"`

	// DrainTimeoutSeconds bounds how long shutdown waits on queued deliveries.
	DrainTimeoutSeconds int `toml:"DrainTimeoutSeconds" yaml:"DrainTimeoutSeconds"`
}
