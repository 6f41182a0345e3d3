package escrow

import (
	"github.com/pkg/errors"

	"github.com/code-payments/code-escrow/pkg/solana"
)

// Custom error codes start where program defined errors conventionally do, so
// they never collide with those of the system or token programs.
const (
	ErrEscrowMismatch solana.CustomError = iota + 6000
	ErrVaultAuthorityMismatch
	ErrVaultMintMismatch
	ErrMakerAccountMismatch
	ErrInvalidAmount
)

// Rejection is the kind of failure a rejected escrow instruction reports.
type Rejection uint8

const (
	RejectionNone Rejection = iota

	// RejectionMalformed is input that can never succeed: missing accounts, an
	// unknown opcode or a truncated payload.
	RejectionMalformed

	// RejectionUnauthorized is a missing signature, or an account that isn't
	// the one the escrow is bound to.
	RejectionUnauthorized

	// RejectionStateConflict is an operation on an escrow in the wrong state,
	// like opening one twice or settling one that's already closed.
	RejectionStateConflict

	// RejectionCollaborator is a failure reported by the ledger or the token
	// program, like an insufficient balance.
	RejectionCollaborator
)

func (r Rejection) String() string {
	switch r {
	case RejectionNone:
		return "none"
	case RejectionMalformed:
		return "malformed"
	case RejectionUnauthorized:
		return "unauthorized"
	case RejectionStateConflict:
		return "state_conflict"
	case RejectionCollaborator:
		return "collaborator"
	}
	return "unknown"
}

// Classify returns the kind of rejection err represents. It accepts errors
// returned by the program as well as the *solana.TransactionError the ledger
// wraps them in. Errors it doesn't recognize are attributed to a collaborator.
func Classify(err error) Rejection {
	if err == nil {
		return RejectionNone
	}

	var custom solana.CustomError
	if errors.As(err, &custom) {
		switch custom {
		case ErrInvalidAmount:
			return RejectionMalformed
		case ErrEscrowMismatch, ErrVaultAuthorityMismatch, ErrVaultMintMismatch, ErrMakerAccountMismatch:
			return RejectionUnauthorized
		}
		return RejectionCollaborator
	}

	var ixKey solana.InstructionErrorKey
	if errors.As(err, &ixKey) {
		switch ixKey {
		case solana.InstructionErrorInvalidInstructionData,
			solana.InstructionErrorNotEnoughAccountKeys,
			solana.InstructionErrorInvalidAccountData,
			solana.InstructionErrorAccountDataTooSmall,
			solana.InstructionErrorInvalidArgument:
			return RejectionMalformed
		case solana.InstructionErrorInvalidSeeds,
			solana.InstructionErrorMissingRequiredSignature,
			solana.InstructionErrorIncorrectProgramID,
			solana.InstructionErrorPrivilegeEscalation,
			solana.InstructionErrorModifiedProgramID,
			solana.InstructionErrorExternalAccountLamportSpend,
			solana.InstructionErrorExternalAccountDataModified,
			solana.InstructionErrorReadonlyLamportChange,
			solana.InstructionErrorReadonlyDataModified:
			return RejectionUnauthorized
		case solana.InstructionErrorAccountAlreadyInitialized,
			solana.InstructionErrorUninitializedAccount:
			return RejectionStateConflict
		}
		return RejectionCollaborator
	}

	var txKey solana.TransactionErrorKey
	if errors.As(err, &txKey) {
		switch txKey {
		case solana.TransactionErrorSanitizeFailure,
			solana.TransactionErrorInvalidAccountIndex,
			solana.TransactionErrorAccountLoadedTwice,
			solana.TransactionErrorInvalidProgramForExecute:
			return RejectionMalformed
		case solana.TransactionErrorSignatureFailure:
			return RejectionUnauthorized
		case solana.TransactionErrorDuplicateSignature,
			solana.TransactionErrorAccountInUse:
			return RejectionStateConflict
		}
	}

	return RejectionCollaborator
}
