package escrow

import (
	"github.com/mr-tron/base58"

	"github.com/code-payments/code-escrow/pkg/config"
	"github.com/code-payments/code-escrow/pkg/config/env"
	"github.com/code-payments/code-escrow/pkg/config/memory"
	"github.com/code-payments/code-escrow/pkg/config/wrapper"
	escrow_program "github.com/code-payments/code-escrow/pkg/solana/escrow"
)

const (
	envConfigPrefix = "ESCROW_"

	ProgramIdConfigEnvName = envConfigPrefix + "PROGRAM_ID"
)

var defaultProgramId = base58.Encode(escrow_program.PROGRAM_ID)

type conf struct {
	programId config.String
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			programId: env.NewStringConfig(ProgramIdConfigEnvName, defaultProgramId),
		}
	}
}

type testOverrides struct {
	programId string
}

// WithManualTestOverrides deploys the program under programId, or the default
// identity when it's empty.
func WithManualTestOverrides(programId string) ConfigProvider {
	overrides := &testOverrides{programId: programId}
	if len(overrides.programId) == 0 {
		overrides.programId = defaultProgramId
	}

	return func() *conf {
		return &conf{
			programId: wrapper.NewStringConfig(memory.NewConfig(overrides.programId), defaultProgramId),
		}
	}
}
