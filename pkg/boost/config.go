package boost

import (
	"time"

	"github.com/mr-tron/base58"

	"github.com/code-payments/code-boost/pkg/config"
	"github.com/code-payments/code-boost/pkg/config/env"
	"github.com/code-payments/code-boost/pkg/config/memory"
	"github.com/code-payments/code-boost/pkg/config/wrapper"
	"github.com/code-payments/code-boost/pkg/solana/booster"
	"github.com/code-payments/code-boost/pkg/solana/confirmation"
)

const (
	envConfigPrefix = "BOOST_"

	ProgramIDConfigEnvName = envConfigPrefix + "PROGRAM_ID"

	CommitmentConfigEnvName = envConfigPrefix + "COMMITMENT"
	defaultCommitment       = "confirmed"

	ConfirmTimeoutConfigEnvName = envConfigPrefix + "CONFIRM_TIMEOUT"
	defaultConfirmTimeout       = time.Minute

	PollIntervalConfigEnvName = envConfigPrefix + "POLL_INTERVAL"
	defaultPollInterval       = confirmation.DefaultPollInterval

	ComputeUnitLimitConfigEnvName = envConfigPrefix + "COMPUTE_UNIT_LIMIT"
	defaultComputeUnitLimit       = 0

	ComputeUnitPriceConfigEnvName = envConfigPrefix + "COMPUTE_UNIT_PRICE"
	defaultComputeUnitPrice       = 0

	EnableMemoConfigEnvName = envConfigPrefix + "ENABLE_MEMO"
	defaultEnableMemo       = true

	// Purchases re-derived after losing a race on the store counter.
	MaxPurchaseAttemptsConfigEnvName = envConfigPrefix + "MAX_PURCHASE_ATTEMPTS"
	defaultMaxPurchaseAttempts       = 3

	// RPC calls repeated after transport failures.
	MaxTransportAttemptsConfigEnvName = envConfigPrefix + "MAX_TRANSPORT_ATTEMPTS"
	defaultMaxTransportAttempts       = 3
)

var defaultProgramID = base58.Encode(booster.PROGRAM_ID)

type conf struct {
	programID        config.String
	commitment       config.String
	confirmTimeout   config.Duration
	pollInterval     config.Duration
	computeUnitLimit config.Uint64
	computeUnitPrice config.Uint64
	enableMemo       config.Bool

	maxPurchaseAttempts  config.Uint64
	maxTransportAttempts config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			programID:        env.NewStringConfig(ProgramIDConfigEnvName, defaultProgramID),
			commitment:       env.NewStringConfig(CommitmentConfigEnvName, defaultCommitment),
			confirmTimeout:   env.NewDurationConfig(ConfirmTimeoutConfigEnvName, defaultConfirmTimeout),
			pollInterval:     env.NewDurationConfig(PollIntervalConfigEnvName, defaultPollInterval),
			computeUnitLimit: env.NewUint64Config(ComputeUnitLimitConfigEnvName, defaultComputeUnitLimit),
			computeUnitPrice: env.NewUint64Config(ComputeUnitPriceConfigEnvName, defaultComputeUnitPrice),
			enableMemo:       env.NewBoolConfig(EnableMemoConfigEnvName, defaultEnableMemo),

			maxPurchaseAttempts:  env.NewUint64Config(MaxPurchaseAttemptsConfigEnvName, defaultMaxPurchaseAttempts),
			maxTransportAttempts: env.NewUint64Config(MaxTransportAttemptsConfigEnvName, defaultMaxTransportAttempts),
		}
	}
}

// Overrides are explicit config values. Zero values fall back to defaults.
type Overrides struct {
	ProgramID        string
	Commitment       string
	ConfirmTimeout   time.Duration
	PollInterval     time.Duration
	ComputeUnitLimit uint64
	ComputeUnitPrice uint64
	DisableMemo      bool

	MaxPurchaseAttempts  uint64
	MaxTransportAttempts uint64
}

// WithOverrides returns configuration with the provided values
func WithOverrides(overrides *Overrides) ConfigProvider {
	return func() *conf {
		return &conf{
			programID:        wrapper.NewStringConfig(memory.NewConfig(nonZero(overrides.ProgramID)), defaultProgramID),
			commitment:       wrapper.NewStringConfig(memory.NewConfig(nonZero(overrides.Commitment)), defaultCommitment),
			confirmTimeout:   wrapper.NewDurationConfig(memory.NewConfig(nonZero(overrides.ConfirmTimeout)), defaultConfirmTimeout),
			pollInterval:     wrapper.NewDurationConfig(memory.NewConfig(nonZero(overrides.PollInterval)), defaultPollInterval),
			computeUnitLimit: wrapper.NewUint64Config(memory.NewConfig(overrides.ComputeUnitLimit), defaultComputeUnitLimit),
			computeUnitPrice: wrapper.NewUint64Config(memory.NewConfig(overrides.ComputeUnitPrice), defaultComputeUnitPrice),
			enableMemo:       wrapper.NewBoolConfig(memory.NewConfig(!overrides.DisableMemo), defaultEnableMemo),

			maxPurchaseAttempts:  wrapper.NewUint64Config(memory.NewConfig(nonZero(overrides.MaxPurchaseAttempts)), defaultMaxPurchaseAttempts),
			maxTransportAttempts: wrapper.NewUint64Config(memory.NewConfig(nonZero(overrides.MaxTransportAttempts)), defaultMaxTransportAttempts),
		}
	}
}

// nonZero maps zero values to nil so the wrapper falls back to its default.
func nonZero[T comparable](v T) interface{} {
	var zero T
	if v == zero {
		return nil
	}
	return v
}
