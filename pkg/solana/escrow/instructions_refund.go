package escrow

import (
	"crypto/ed25519"

	"github.com/code-payments/code-escrow/pkg/solana"
)

type RefundInstructionAccounts struct {
	// Program defaults to PROGRAM_ID when unset.
	Program ed25519.PublicKey

	Maker     ed25519.PublicKey
	MintX     ed25519.PublicKey
	MakerAtaX ed25519.PublicKey
	Vault     ed25519.PublicKey
	Escrow    ed25519.PublicKey
}

func NewRefundInstruction(accounts *RefundInstructionAccounts) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte, 1)

	putInstructionType(data, InstructionTypeRefund, &offset)

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
				PublicKey:  SPL_TOKEN_PROGRAM_ID,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  SYSTEM_PROGRAM_ID,
				IsWritable: false,
				IsSigner:   false,
			},
		},
	}
}

type DecompiledRefund struct {
	Program ed25519.PublicKey

	Maker     ed25519.PublicKey
	MintX     ed25519.PublicKey
	MakerAtaX ed25519.PublicKey
	Vault     ed25519.PublicKey
	Escrow    ed25519.PublicKey
}

func DecompileRefund(m solana.Message, index int) (*DecompiledRefund, error) {
	i, _, err := getInstruction(m, index, InstructionTypeRefund, 7)
	if err != nil {
		return nil, err
	}

	return &DecompiledRefund{
		Program:   m.Accounts[i.ProgramIndex],
		Maker:     m.Accounts[i.Accounts[0]],
		MintX:     m.Accounts[i.Accounts[1]],
		MakerAtaX: m.Accounts[i.Accounts[2]],
		Vault:     m.Accounts[i.Accounts[3]],
		Escrow:    m.Accounts[i.Accounts[4]],
	}, nil
}
