package escrow

import (
	"crypto/ed25519"

	"github.com/code-payments/code-escrow/pkg/solana"
)

type TakeInstructionAccounts struct {
	// Program defaults to PROGRAM_ID when unset.
	Program ed25519.PublicKey

	Taker     ed25519.PublicKey
	Maker     ed25519.PublicKey
	MintX     ed25519.PublicKey
	MintY     ed25519.PublicKey
	TakerAtaX ed25519.PublicKey
	TakerAtaY ed25519.PublicKey
	MakerAtaY ed25519.PublicKey
	Vault     ed25519.PublicKey
	Escrow    ed25519.PublicKey
}

func NewTakeInstruction(accounts *TakeInstructionAccounts) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte, 1)

	putInstructionType(data, InstructionTypeTake, &offset)

	return solana.Instruction{
		Program: programOrDefault(accounts.Program),

		// Instruction args
		Data: data,

		// Instruction accounts
		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.Taker,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.Maker,
				IsWritable: true,
				IsSigner:   false,
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
				PublicKey:  accounts.TakerAtaX,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.TakerAtaY,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.MakerAtaY,
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

type DecompiledTake struct {
	Program ed25519.PublicKey

	Taker     ed25519.PublicKey
	Maker     ed25519.PublicKey
	MintX     ed25519.PublicKey
	MintY     ed25519.PublicKey
	TakerAtaX ed25519.PublicKey
	TakerAtaY ed25519.PublicKey
	MakerAtaY ed25519.PublicKey
	Vault     ed25519.PublicKey
	Escrow    ed25519.PublicKey
}

func DecompileTake(m solana.Message, index int) (*DecompiledTake, error) {
	i, _, err := getInstruction(m, index, InstructionTypeTake, 11)
	if err != nil {
		return nil, err
	}

	return &DecompiledTake{
		Program:   m.Accounts[i.ProgramIndex],
		Taker:     m.Accounts[i.Accounts[0]],
		Maker:     m.Accounts[i.Accounts[1]],
		MintX:     m.Accounts[i.Accounts[2]],
		MintY:     m.Accounts[i.Accounts[3]],
		TakerAtaX: m.Accounts[i.Accounts[4]],
		TakerAtaY: m.Accounts[i.Accounts[5]],
		MakerAtaY: m.Accounts[i.Accounts[6]],
		Vault:     m.Accounts[i.Accounts[7]],
		Escrow:    m.Accounts[i.Accounts[8]],
	}, nil
}
