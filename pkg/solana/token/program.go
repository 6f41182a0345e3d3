package token

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/system"
)

// ProgramKey is the address of the token program.
//
// Current key: TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA
var ProgramKey = ed25519.PublicKey{6, 221, 246, 225, 215, 101, 161, 147, 217, 203, 225, 70, 206, 235, 121, 172, 28, 180, 133, 237, 95, 91, 55, 145, 58, 140, 245, 133, 126, 255, 0, 169}

type Command byte

const (
	CommandInitializeMint Command = iota
	CommandInitializeAccount
	CommandInitializeMultisig
	CommandTransfer
	CommandApprove
	CommandRevoke
	CommandSetAuthority
	CommandMintTo
	CommandBurn
	CommandCloseAccount
	CommandFreezeAccount
	CommandThawAccount
	CommandTransfer2
	CommandApprove2
	CommandMintTo2
	CommandBurn2

	CommandUnknown = Command(math.MaxUint8)
)

func GetCommand(m solana.Message, index int) (Command, error) {
	if index >= len(m.Instructions) {
		return CommandUnknown, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return CommandUnknown, solana.ErrIncorrectProgram
	}
	if len(i.Data) == 0 {
		return CommandUnknown, errors.New("token instruction missing data")
	}

	return Command(i.Data[0]), nil
}

// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L24-L40
func InitializeMint(mint, mintAuthority, freezeAuthority ed25519.PublicKey, decimals byte) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The mint to initialize.
	//   1. `[]` Rent sysvar
	//
	// Data: decimals, mint authority, COption<freeze authority> (1 byte tag)
	data := make([]byte, 1+1+32+1+32)
	data[0] = byte(CommandInitializeMint)
	data[1] = decimals
	copy(data[2:], mintAuthority)
	if len(freezeAuthority) > 0 {
		data[34] = 1
		copy(data[35:], freezeAuthority)
	}

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
	)
}

type InitializeMintArgs struct {
	Decimals        byte
	MintAuthority   ed25519.PublicKey
	FreezeAuthority ed25519.PublicKey
}

func ParseInitializeMintArgs(data []byte) (*InitializeMintArgs, error) {
	if len(data) < 35 || data[0] != byte(CommandInitializeMint) {
		return nil, solana.InstructionErrorInvalidInstructionData
	}

	args := &InitializeMintArgs{
		Decimals:      data[1],
		MintAuthority: make(ed25519.PublicKey, ed25519.PublicKeySize),
	}
	copy(args.MintAuthority, data[2:34])

	switch data[34] {
	case 0:
	case 1:
		if len(data) < 67 {
			return nil, solana.InstructionErrorInvalidInstructionData
		}
		args.FreezeAuthority = make(ed25519.PublicKey, ed25519.PublicKeySize)
		copy(args.FreezeAuthority, data[35:67])
	default:
		return nil, solana.InstructionErrorInvalidInstructionData
	}

	return args, nil
}

type DecompiledInitializeMint struct {
	Mint ed25519.PublicKey
	InitializeMintArgs
}

func DecompileInitializeMint(m solana.Message, index int) (*DecompiledInitializeMint, error) {
	i, err := getInstruction(m, index, CommandInitializeMint)
	if err != nil {
		return nil, err
	}
	if len(i.Accounts) != 2 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}

	args, err := ParseInitializeMintArgs(i.Data)
	if err != nil {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	return &DecompiledInitializeMint{
		Mint:               m.Accounts[i.Accounts[0]],
		InitializeMintArgs: *args,
	}, nil
}

// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L41-L55
func InitializeAccount(account, mint, owner ed25519.PublicKey) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]`  The account to initialize.
	//   1. `[]` The mint this account will be associated with.
	//   2. `[]` The new account's owner/multisignature.
	//   3. `[]` Rent sysvar
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandInitializeAccount)},
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(owner, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
	)
}

type DecompiledInitializeAccount struct {
	Account ed25519.PublicKey
	Mint    ed25519.PublicKey
	Owner   ed25519.PublicKey
}

func DecompileInitializeAccount(m solana.Message, index int) (*DecompiledInitializeAccount, error) {
	i, err := getInstruction(m, index, CommandInitializeAccount)
	if err != nil {
		return nil, err
	}
	if len(i.Data) != 1 {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(i.Accounts) != 4 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if !bytes.Equal(system.RentSysVar, m.Accounts[i.Accounts[3]]) {
		return nil, errors.Errorf("invalid rent program")
	}

	return &DecompiledInitializeAccount{
		Account: m.Accounts[i.Accounts[0]],
		Mint:    m.Accounts[i.Accounts[1]],
		Owner:   m.Accounts[i.Accounts[2]],
	}, nil
}

type AuthorityType byte

const (
	AuthorityTypeMintTokens AuthorityType = iota
	AuthorityTypeFreezeAccount
	AuthorityTypeAccountHolder
	AuthorityTypeCloseAccount
)

// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L128-L139
func SetAuthority(account, currentAuthority, newAuthority ed25519.PublicKey, authorityType AuthorityType) solana.Instruction {
	// Sets a new authority of a mint or account.
	//
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The mint or account to change the authority of.
	//   1. `[signer]` The current authority of the mint or account.
	data := []byte{byte(CommandSetAuthority), byte(authorityType), 0}
	if len(newAuthority) > 0 {
		data[2] = 1
		data = append(data, newAuthority...)
	}

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(currentAuthority, true),
	)
}

type SetAuthorityArgs struct {
	Type         AuthorityType
	NewAuthority ed25519.PublicKey
}

func ParseSetAuthorityArgs(data []byte) (*SetAuthorityArgs, error) {
	if len(data) < 3 || data[0] != byte(CommandSetAuthority) {
		return nil, solana.InstructionErrorInvalidInstructionData
	}

	args := &SetAuthorityArgs{Type: AuthorityType(data[1])}
	switch {
	case data[2] == 0 && len(data) == 3:
	case data[2] == 1 && len(data) == 3+ed25519.PublicKeySize:
		args.NewAuthority = make(ed25519.PublicKey, ed25519.PublicKeySize)
		copy(args.NewAuthority, data[3:])
	default:
		return nil, solana.InstructionErrorInvalidInstructionData
	}

	return args, nil
}

type DecompiledSetAuthority struct {
	Account          ed25519.PublicKey
	CurrentAuthority ed25519.PublicKey
	NewAuthority     ed25519.PublicKey
	Type             AuthorityType
}

func DecompileSetAuthority(m solana.Message, index int) (*DecompiledSetAuthority, error) {
	i, err := getInstruction(m, index, CommandSetAuthority)
	if err != nil {
		return nil, err
	}
	if len(i.Accounts) < 2 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}

	args, err := ParseSetAuthorityArgs(i.Data)
	if err != nil {
		return nil, errors.Errorf("invalid data size: %d", len(i.Data))
	}

	return &DecompiledSetAuthority{
		Account:          m.Accounts[i.Accounts[0]],
		CurrentAuthority: m.Accounts[i.Accounts[1]],
		NewAuthority:     args.NewAuthority,
		Type:             args.Type,
	}, nil
}

// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L140-L152
func MintTo(mint, dest, authority ed25519.PublicKey, amount uint64) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The mint.
	//   1. `[writable]` The account to mint tokens to.
	//   2. `[signer]` The mint's minting authority.
	return solana.NewInstruction(
		ProgramKey,
		amountData(CommandMintTo, amount),
		solana.NewAccountMeta(mint, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

type DecompiledMintTo struct {
	Mint        ed25519.PublicKey
	Destination ed25519.PublicKey
	Authority   ed25519.PublicKey
	Amount      uint64
}

func DecompileMintTo(m solana.Message, index int) (*DecompiledMintTo, error) {
	i, err := getInstruction(m, index, CommandMintTo)
	if err != nil {
		return nil, err
	}
	if len(i.Accounts) < 3 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}

	amount, err := ParseAmount(i.Data)
	if err != nil {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	return &DecompiledMintTo{
		Mint:        m.Accounts[i.Accounts[0]],
		Destination: m.Accounts[i.Accounts[1]],
		Authority:   m.Accounts[i.Accounts[2]],
		Amount:      amount,
	}, nil
}

// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L76-L91
func Transfer(source, dest, owner ed25519.PublicKey, amount uint64) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The source account.
	//   1. `[writable]` The destination account.
	//   2. `[signer]` The source account's owner/delegate.
	return solana.NewInstruction(
		ProgramKey,
		amountData(CommandTransfer, amount),
		solana.NewAccountMeta(source, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

type DecompiledTransfer struct {
	Source      ed25519.PublicKey
	Destination ed25519.PublicKey
	Owner       ed25519.PublicKey
	Amount      uint64
}

func DecompileTransfer(m solana.Message, index int) (*DecompiledTransfer, error) {
	i, err := getInstruction(m, index, CommandTransfer)
	if err != nil {
		return nil, err
	}
	if len(i.Accounts) < 3 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}

	amount, err := ParseAmount(i.Data)
	if err != nil {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	return &DecompiledTransfer{
		Source:      m.Accounts[i.Accounts[0]],
		Destination: m.Accounts[i.Accounts[1]],
		Owner:       m.Accounts[i.Accounts[2]],
		Amount:      amount,
	}, nil
}

// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L183-L197
func CloseAccount(account, dest, owner ed25519.PublicKey) solana.Instruction {
	// Close an account by transferring all its SOL to the destination account.
	// Non-native accounts may only be closed if its token amount is zero.
	//
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The account to close.
	//   1. `[writable]` The destination account.
	//   2. `[signer]` The account's owner.
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandCloseAccount)},
		solana.NewAccountMeta(account, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

type DecompiledCloseAccount struct {
	Account     ed25519.PublicKey
	Destination ed25519.PublicKey
	Owner       ed25519.PublicKey
}

func DecompileCloseAccount(m solana.Message, index int) (*DecompiledCloseAccount, error) {
	i, err := getInstruction(m, index, CommandCloseAccount)
	if err != nil {
		return nil, err
	}
	if len(i.Data) != 1 {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(i.Accounts) < 3 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}

	return &DecompiledCloseAccount{
		Account:     m.Accounts[i.Accounts[0]],
		Destination: m.Accounts[i.Accounts[1]],
		Owner:       m.Accounts[i.Accounts[2]],
	}, nil
}

// ParseAmount reads the u64 amount of a Transfer, MintTo or Burn instruction.
func ParseAmount(data []byte) (uint64, error) {
	if len(data) != 1+8 {
		return 0, solana.InstructionErrorInvalidInstructionData
	}
	return binary.LittleEndian.Uint64(data[1:]), nil
}

func amountData(cmd Command, amount uint64) []byte {
	data := make([]byte, 1+8)
	data[0] = byte(cmd)
	binary.LittleEndian.PutUint64(data[1:], amount)
	return data
}

func getInstruction(m solana.Message, index int, cmd Command) (*solana.CompiledInstruction, error) {
	if index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}
	if len(i.Data) == 0 || i.Data[0] != byte(cmd) {
		return nil, solana.ErrIncorrectInstruction
	}

	return &i, nil
}
