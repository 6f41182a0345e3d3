package system

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/code-payments/code-escrow/pkg/solana"
)

// ProgramKey is the all zero key owning every wallet account.
//
// https://explorer.solana.com/address/11111111111111111111111111111111
var ProgramKey [32]byte

// MaxPermittedDataLength is the largest account the system program will allocate.
const MaxPermittedDataLength = 10 * 1024 * 1024

type Command uint32

const (
	CommandCreateAccount Command = iota
	CommandAssign
	CommandTransfer
)

const commandSize = 4

// ParseCommand extracts the command prefix from system instruction data.
func ParseCommand(data []byte) (Command, error) {
	if len(data) < commandSize {
		return 0, solana.InstructionErrorInvalidInstructionData
	}

	cmd := Command(binary.LittleEndian.Uint32(data))
	switch cmd {
	case CommandCreateAccount, CommandAssign, CommandTransfer:
		return cmd, nil
	default:
		return 0, solana.InstructionErrorInvalidInstructionData
	}
}

type CreateAccountArgs struct {
	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L58-L72
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE, SIGNER] New account
	//
	// CreateAccount {
	//   lamports: u64,
	//   space: u64,
	//   owner: Pubkey,
	// }
	data := make([]byte, commandSize+2*8+32)
	binary.LittleEndian.PutUint32(data, uint32(CommandCreateAccount))
	binary.LittleEndian.PutUint64(data[commandSize:], lamports)
	binary.LittleEndian.PutUint64(data[commandSize+8:], size)
	copy(data[commandSize+2*8:], owner)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}

func ParseCreateAccountArgs(data []byte) (*CreateAccountArgs, error) {
	if len(data) != commandSize+2*8+32 {
		return nil, solana.InstructionErrorInvalidInstructionData
	}

	args := &CreateAccountArgs{
		Lamports: binary.LittleEndian.Uint64(data[commandSize:]),
		Size:     binary.LittleEndian.Uint64(data[commandSize+8:]),
		Owner:    make(ed25519.PublicKey, ed25519.PublicKeySize),
	}
	copy(args.Owner, data[commandSize+2*8:])
	return args, nil
}

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L74-L78
func Assign(account, owner ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Assigned account public key
	data := make([]byte, commandSize+32)
	binary.LittleEndian.PutUint32(data, uint32(CommandAssign))
	copy(data[commandSize:], owner)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(account, true),
	)
}

func ParseAssignArgs(data []byte) (ed25519.PublicKey, error) {
	if len(data) != commandSize+32 {
		return nil, solana.InstructionErrorInvalidInstructionData
	}

	owner := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(owner, data[commandSize:])
	return owner, nil
}

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L80-L85
func Transfer(from, to ed25519.PublicKey, lamports uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE] Recipient account
	data := make([]byte, commandSize+8)
	binary.LittleEndian.PutUint32(data, uint32(CommandTransfer))
	binary.LittleEndian.PutUint64(data[commandSize:], lamports)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(from, true),
		solana.NewAccountMeta(to, false),
	)
}

func ParseTransferArgs(data []byte) (uint64, error) {
	if len(data) != commandSize+8 {
		return 0, solana.InstructionErrorInvalidInstructionData
	}
	return binary.LittleEndian.Uint64(data[commandSize:]), nil
}

type DecompiledCreateAccount struct {
	Funder  ed25519.PublicKey
	Address ed25519.PublicKey

	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

func DecompileCreateAccount(m solana.Message, index int) (*DecompiledCreateAccount, error) {
	i, err := getInstruction(m, index, CommandCreateAccount, 2)
	if err != nil {
		return nil, err
	}

	args, err := ParseCreateAccountArgs(i.Data)
	if err != nil {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	return &DecompiledCreateAccount{
		Funder:   m.Accounts[i.Accounts[0]],
		Address:  m.Accounts[i.Accounts[1]],
		Lamports: args.Lamports,
		Size:     args.Size,
		Owner:    args.Owner,
	}, nil
}

type DecompiledAssign struct {
	Account ed25519.PublicKey
	Owner   ed25519.PublicKey
}

func DecompileAssign(m solana.Message, index int) (*DecompiledAssign, error) {
	i, err := getInstruction(m, index, CommandAssign, 1)
	if err != nil {
		return nil, err
	}

	owner, err := ParseAssignArgs(i.Data)
	if err != nil {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	return &DecompiledAssign{
		Account: m.Accounts[i.Accounts[0]],
		Owner:   owner,
	}, nil
}

type DecompiledTransfer struct {
	From     ed25519.PublicKey
	To       ed25519.PublicKey
	Lamports uint64
}

func DecompileTransfer(m solana.Message, index int) (*DecompiledTransfer, error) {
	i, err := getInstruction(m, index, CommandTransfer, 2)
	if err != nil {
		return nil, err
	}

	lamports, err := ParseTransferArgs(i.Data)
	if err != nil {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	return &DecompiledTransfer{
		From:     m.Accounts[i.Accounts[0]],
		To:       m.Accounts[i.Accounts[1]],
		Lamports: lamports,
	}, nil
}

func getInstruction(m solana.Message, index int, cmd Command, numAccounts int) (*solana.CompiledInstruction, error) {
	if index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	var prefix [commandSize]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(cmd))
	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey[:]) {
		return nil, solana.ErrIncorrectProgram
	}
	if !bytes.HasPrefix(i.Data, prefix[:]) {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(i.Accounts) != numAccounts {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}

	return &i, nil
}
