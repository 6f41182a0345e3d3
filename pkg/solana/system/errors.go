package system

import "github.com/code-payments/code-escrow/pkg/solana"

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/system_instruction.rs#L12
const (
	ErrAccountAlreadyInUse solana.CustomError = iota
	ErrResultWithNegativeLamports
	ErrInvalidProgramId
	ErrInvalidAccountDataLength
	ErrMaxSeedLengthExceeded
	ErrAddressWithSeedMismatch
)
