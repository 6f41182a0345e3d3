package escrow

import (
	"crypto/ed25519"

	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/system"
	"github.com/code-payments/code-escrow/pkg/solana/token"
)

var (
	ErrInvalidProgram         = solana.InstructionErrorIncorrectProgramID
	ErrInvalidAccountData     = solana.InstructionErrorInvalidAccountData
	ErrInvalidInstructionData = solana.InstructionErrorInvalidInstructionData
)

var (
	PROGRAM_ADDRESS = mustBase58Decode("22222222222222222222222222222222222222222222")
	PROGRAM_ID      = ed25519.PublicKey(PROGRAM_ADDRESS)
)

var (
	SYSTEM_PROGRAM_ID    = ed25519.PublicKey(system.ProgramKey[:])
	SPL_TOKEN_PROGRAM_ID = token.ProgramKey
)

func programOrDefault(program ed25519.PublicKey) ed25519.PublicKey {
	if len(program) == 0 {
		return PROGRAM_ID
	}
	return program
}
