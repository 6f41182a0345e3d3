package ledger

import (
	"time"

	"github.com/code-payments/code-escrow/pkg/config"
	"github.com/code-payments/code-escrow/pkg/config/env"
	"github.com/code-payments/code-escrow/pkg/config/memory"
	"github.com/code-payments/code-escrow/pkg/config/wrapper"
)

const (
	envConfigPrefix = "LEDGER_"

	LockStripesConfigEnvName = envConfigPrefix + "LOCK_STRIPES"
	defaultLockStripes       = 1024

	CommitMaxAttemptsConfigEnvName = envConfigPrefix + "COMMIT_MAX_ATTEMPTS"
	defaultCommitMaxAttempts       = 5

	CommitBackoffConfigEnvName = envConfigPrefix + "COMMIT_BACKOFF"
	defaultCommitBackoff       = 25 * time.Millisecond

	CommitMaxBackoffConfigEnvName = envConfigPrefix + "COMMIT_MAX_BACKOFF"
	defaultCommitMaxBackoff       = time.Second

	RentLamportsPerByteYearConfigEnvName = envConfigPrefix + "RENT_LAMPORTS_PER_BYTE_YEAR"
	defaultRentLamportsPerByteYear       = DefaultLamportsPerByteYear

	RentExemptionThresholdConfigEnvName = envConfigPrefix + "RENT_EXEMPTION_THRESHOLD"
	defaultRentExemptionThreshold       = DefaultExemptionThreshold

	SignatureCacheSizeConfigEnvName = envConfigPrefix + "SIGNATURE_CACHE_SIZE"
	defaultSignatureCacheSize       = 100_000
)

type conf struct {
	lockStripes             config.Uint64
	commitMaxAttempts       config.Uint64
	commitBackoff           config.Duration
	commitMaxBackoff        config.Duration
	rentLamportsPerByteYear config.Uint64
	rentExemptionThreshold  config.Float64
	signatureCacheSize      config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			lockStripes:             env.NewUint64Config(LockStripesConfigEnvName, defaultLockStripes),
			commitMaxAttempts:       env.NewUint64Config(CommitMaxAttemptsConfigEnvName, defaultCommitMaxAttempts),
			commitBackoff:           env.NewDurationConfig(CommitBackoffConfigEnvName, defaultCommitBackoff),
			commitMaxBackoff:        env.NewDurationConfig(CommitMaxBackoffConfigEnvName, defaultCommitMaxBackoff),
			rentLamportsPerByteYear: env.NewUint64Config(RentLamportsPerByteYearConfigEnvName, defaultRentLamportsPerByteYear),
			rentExemptionThreshold:  env.NewFloat64Config(RentExemptionThresholdConfigEnvName, defaultRentExemptionThreshold),
			signatureCacheSize:      env.NewUint64Config(SignatureCacheSizeConfigEnvName, defaultSignatureCacheSize),
		}
	}
}

// TestOverrides replaces the defaults for tests that need to tune the ledger
// without touching the environment.
type TestOverrides struct {
	CommitMaxAttempts uint64
	CommitBackoff     time.Duration
}

// WithManualTestOverrides returns the default configuration with overrides
// applied.
func WithManualTestOverrides(overrides *TestOverrides) ConfigProvider {
	return func() *conf {
		commitMaxAttempts := uint64(defaultCommitMaxAttempts)
		if overrides.CommitMaxAttempts > 0 {
			commitMaxAttempts = overrides.CommitMaxAttempts
		}

		commitBackoff := defaultCommitBackoff
		if overrides.CommitBackoff > 0 {
			commitBackoff = overrides.CommitBackoff
		}

		return &conf{
			lockStripes:             wrapper.NewUint64Config(memory.NewConfig(uint64(defaultLockStripes)), defaultLockStripes),
			commitMaxAttempts:       wrapper.NewUint64Config(memory.NewConfig(commitMaxAttempts), defaultCommitMaxAttempts),
			commitBackoff:           wrapper.NewDurationConfig(memory.NewConfig(commitBackoff), defaultCommitBackoff),
			commitMaxBackoff:        wrapper.NewDurationConfig(memory.NewConfig(defaultCommitMaxBackoff), defaultCommitMaxBackoff),
			rentLamportsPerByteYear: wrapper.NewUint64Config(memory.NewConfig(uint64(defaultRentLamportsPerByteYear)), defaultRentLamportsPerByteYear),
			rentExemptionThreshold:  wrapper.NewFloat64Config(memory.NewConfig(defaultRentExemptionThreshold), defaultRentExemptionThreshold),
			signatureCacheSize:      wrapper.NewUint64Config(memory.NewConfig(uint64(defaultSignatureCacheSize)), defaultSignatureCacheSize),
		}
	}
}
