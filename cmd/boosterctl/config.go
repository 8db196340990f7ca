package main

import (
	"time"

	"github.com/spf13/viper"

	"github.com/code-payments/code-boost/pkg/boost"
)

type config struct {
	LogLevel string `mapstructure:"log_level"`

	AppName            string `mapstructure:"app_name"`
	NewRelicLicenseKey string `mapstructure:"new_relic_license_key"`

	RPCEndpoint  string  `mapstructure:"rpc_endpoint"`
	RPCRateLimit float64 `mapstructure:"rpc_rate_limit"`

	ProgramID        string        `mapstructure:"program_id"`
	Commitment       string        `mapstructure:"commitment"`
	ConfirmTimeout   time.Duration `mapstructure:"confirm_timeout"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	ComputeUnitLimit uint64        `mapstructure:"compute_unit_limit"`
	ComputeUnitPrice uint64        `mapstructure:"compute_unit_price"`
	EnableMemo       bool          `mapstructure:"enable_memo"`

	MaxPurchaseAttempts  uint64 `mapstructure:"max_purchase_attempts"`
	MaxTransportAttempts uint64 `mapstructure:"max_transport_attempts"`
}

var defaultConfig = config{
	LogLevel: "warn",
	AppName:  "boosterctl",

	RPCEndpoint:  "https://api.mainnet-beta.solana.com",
	RPCRateLimit: 10,

	EnableMemo: true,
}

func init() {
	_ = viper.BindEnv("log_level", "LOG_LEVEL")

	_ = viper.BindEnv("app_name", "APP_NAME")
	_ = viper.BindEnv("new_relic_license_key", "NEW_RELIC_LICENSE_KEY")

	_ = viper.BindEnv("rpc_endpoint", "SOLANA_RPC_ENDPOINT")
	_ = viper.BindEnv("rpc_rate_limit", "SOLANA_RPC_RATE_LIMIT")

	_ = viper.BindEnv("program_id", boost.ProgramIDConfigEnvName)
	_ = viper.BindEnv("commitment", boost.CommitmentConfigEnvName)
	_ = viper.BindEnv("confirm_timeout", boost.ConfirmTimeoutConfigEnvName)
	_ = viper.BindEnv("poll_interval", boost.PollIntervalConfigEnvName)
	_ = viper.BindEnv("compute_unit_limit", boost.ComputeUnitLimitConfigEnvName)
	_ = viper.BindEnv("compute_unit_price", boost.ComputeUnitPriceConfigEnvName)
	_ = viper.BindEnv("enable_memo", boost.EnableMemoConfigEnvName)
	_ = viper.BindEnv("max_purchase_attempts", boost.MaxPurchaseAttemptsConfigEnvName)
	_ = viper.BindEnv("max_transport_attempts", boost.MaxTransportAttemptsConfigEnvName)
}

func (c config) overrides() *boost.Overrides {
	return &boost.Overrides{
		ProgramID:        c.ProgramID,
		Commitment:       c.Commitment,
		ConfirmTimeout:   c.ConfirmTimeout,
		PollInterval:     c.PollInterval,
		ComputeUnitLimit: c.ComputeUnitLimit,
		ComputeUnitPrice: c.ComputeUnitPrice,
		DisableMemo:      !c.EnableMemo,

		MaxPurchaseAttempts:  c.MaxPurchaseAttempts,
		MaxTransportAttempts: c.MaxTransportAttempts,
	}
}
