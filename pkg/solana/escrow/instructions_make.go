package escrow

import (
	"crypto/ed25519"

	"github.com/code-payments/code-escrow/pkg/solana"
)

const (
	MakeInstructionArgsSize = (1 + // bump
		8 + // amount_wanted
		8) // amount_offered

	// LegacyMakeInstructionArgsSize is the single amount form, where the
	// amount is both wanted and offered.
	LegacyMakeInstructionArgsSize = (1 + // bump
		8) // amount
)

type MakeInstructionArgs struct {
	Bump          uint8
	AmountWanted  uint64
	AmountOffered uint64
}

type MakeInstructionAccounts struct {
	// Program defaults to PROGRAM_ID when unset.
	Program ed25519.PublicKey

	Maker     ed25519.PublicKey
	MintX     ed25519.PublicKey
	MintY     ed25519.PublicKey
	MakerAtaX ed25519.PublicKey
	Vault     ed25519.PublicKey
	Escrow    ed25519.PublicKey
}

func NewMakeInstruction(
	accounts *MakeInstructionAccounts,
	args *MakeInstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte, 1+MakeInstructionArgsSize)

	putInstructionType(data, InstructionTypeMake, &offset)
	putUint8(data, args.Bump, &offset)
	putUint64(data, args.AmountWanted, &offset)
	putUint64(data, args.AmountOffered, &offset)

	return solana.Instruction{
		Program: programOrDefault(accounts.Program),

		// Instruction args
		Data: data,

		// Instruction accounts
		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.Maker,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.MintX,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.MintY,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.MakerAtaX,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Vault,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Escrow,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  SYSTEM_PROGRAM_ID,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  SPL_TOKEN_PROGRAM_ID,
				IsWritable: false,
				IsSigner:   false,
			},
		},
	}
}

// ParseMakeInstructionArgs decodes the Make payload that follows the opcode.
// Only two lengths decode: the full form of MakeInstructionArgsSize bytes (18
// with the opcode) and the legacy single amount form of
// LegacyMakeInstructionArgsSize bytes (10 with the opcode), which fills both
// amounts. Anything in between, 11 to 17 bytes with the opcode, is rejected
// with ErrInvalidInstructionData rather than read as a partial second amount.
// Trailing bytes past the full form are ignored.
func ParseMakeInstructionArgs(payload []byte) (*MakeInstructionArgs, error) {
	var args MakeInstructionArgs
	var offset int

	switch {
	case len(payload) >= MakeInstructionArgsSize:
		getUint8(payload, &args.Bump, &offset)
		getUint64(payload, &args.AmountWanted, &offset)
		getUint64(payload, &args.AmountOffered, &offset)
	case len(payload) == LegacyMakeInstructionArgsSize:
		getUint8(payload, &args.Bump, &offset)
		getUint64(payload, &args.AmountWanted, &offset)
		args.AmountOffered = args.AmountWanted
	default:
		return nil, ErrInvalidInstructionData
	}

	return &args, nil
}

type DecompiledMake struct {
	Program ed25519.PublicKey
	Args    MakeInstructionArgs

	Maker     ed25519.PublicKey
	MintX     ed25519.PublicKey
	MintY     ed25519.PublicKey
	MakerAtaX ed25519.PublicKey
	Vault     ed25519.PublicKey
	Escrow    ed25519.PublicKey
}

func DecompileMake(m solana.Message, index int) (*DecompiledMake, error) {
	i, payload, err := getInstruction(m, index, InstructionTypeMake, 8)
	if err != nil {
		return nil, err
	}

	args, err := ParseMakeInstructionArgs(payload)
	if err != nil {
		return nil, err
	}

	return &DecompiledMake{
		Program:   m.Accounts[i.ProgramIndex],
		Args:      *args,
		Maker:     m.Accounts[i.Accounts[0]],
		MintX:     m.Accounts[i.Accounts[1]],
		MintY:     m.Accounts[i.Accounts[2]],
		MakerAtaX: m.Accounts[i.Accounts[3]],
		Vault:     m.Accounts[i.Accounts[4]],
		Escrow:    m.Accounts[i.Accounts[5]],
	}, nil
}
