package ledger

import (
	"bytes"
	"crypto/ed25519"
	"math"

	"github.com/mr-tron/base58"

	"github.com/code-payments/code-escrow/pkg/ledger/account"
	"github.com/code-payments/code-escrow/pkg/solana"
)

// MaxPermittedDataLength is the largest size an account can be resized to.
const MaxPermittedDataLength = 10 * 1024 * 1024

// Account is the working state of an account while a transaction executes.
type Account struct {
	Address    ed25519.PublicKey
	Owner      ed25519.PublicKey
	Lamports   uint64
	Data       []byte
	Executable bool
}

// loadedAccount is an account referenced by the transaction being executed,
// along with the committed record it was loaded from, if any.
type loadedAccount struct {
	Account

	record   *account.Record
	writable bool
	program  bool
}

func newLoadedAccount(address ed25519.PublicKey, record *account.Record) (*loadedAccount, error) {
	loaded := &loadedAccount{
		Account: Account{
			Address: address,
			Owner:   systemProgramKey,
		},
		record: record,
	}

	if record == nil {
		return loaded, nil
	}

	owner, err := base58.Decode(record.Owner)
	if err != nil {
		return nil, err
	}

	loaded.Owner = owner
	loaded.Lamports = record.Lamports
	loaded.Data = bytes.Clone(record.Data)
	loaded.Executable = record.Executable
	return loaded, nil
}

// changed reports whether execution modified the account relative to what is
// committed.
func (a *loadedAccount) changed() bool {
	if a.record == nil {
		return a.Lamports > 0 || len(a.Data) > 0 || !bytes.Equal(a.Owner, systemProgramKey)
	}

	return a.Lamports != a.record.Lamports ||
		!bytes.Equal(a.Data, a.record.Data) ||
		base58.Encode(a.Owner) != a.record.Owner ||
		a.Executable != a.record.Executable
}

func (a *loadedAccount) toRecord() *account.Record {
	record := &account.Record{
		Address:    base58.Encode(a.Address),
		Owner:      base58.Encode(a.Owner),
		Lamports:   a.Lamports,
		Data:       bytes.Clone(a.Data),
		Executable: a.Executable,
	}

	if a.record != nil {
		record.Id = a.record.Id
		record.Version = a.record.Version
		record.CreatedAt = a.record.CreatedAt
	}

	return record
}

// AccountInfo is a program's view of one account passed to an instruction.
// Several infos can share the same underlying account when an instruction
// references it more than once.
//
// Programs mutate accounts directly. The runtime verifies the changes once
// the program returns, and rejects the instruction when a change was not
// permitted for that program.
type AccountInfo struct {
	account    *loadedAccount
	isSigner   bool
	isWritable bool
}

func (a *AccountInfo) Key() ed25519.PublicKey {
	return a.account.Address
}

func (a *AccountInfo) Owner() ed25519.PublicKey {
	return a.account.Owner
}

// IsOwnedBy reports whether program currently owns the account.
func (a *AccountInfo) IsOwnedBy(program ed25519.PublicKey) bool {
	return bytes.Equal(a.account.Owner, program)
}

func (a *AccountInfo) IsSigner() bool {
	return a.isSigner
}

func (a *AccountInfo) IsWritable() bool {
	return a.isWritable
}

func (a *AccountInfo) Executable() bool {
	return a.account.Executable
}

func (a *AccountInfo) Lamports() uint64 {
	return a.account.Lamports
}

func (a *AccountInfo) SetLamports(lamports uint64) {
	a.account.Lamports = lamports
}

// AddLamports credits the account.
func (a *AccountInfo) AddLamports(lamports uint64) error {
	if a.account.Lamports > math.MaxUint64-lamports {
		return solana.InstructionErrorArithmeticOverflow
	}

	a.account.Lamports += lamports
	return nil
}

// SubLamports debits the account.
func (a *AccountInfo) SubLamports(lamports uint64) error {
	if a.account.Lamports < lamports {
		return solana.InstructionErrorInsufficientFunds
	}

	a.account.Lamports -= lamports
	return nil
}

// Data returns the account data, which the owning program may modify in place.
func (a *AccountInfo) Data() []byte {
	return a.account.Data
}

func (a *AccountInfo) DataLen() int {
	return len(a.account.Data)
}

// IsEmpty reports whether the account holds no lamports and no data.
func (a *AccountInfo) IsEmpty() bool {
	return a.account.Lamports == 0 && len(a.account.Data) == 0
}

// Resize changes the data length, zero filling any growth.
func (a *AccountInfo) Resize(size int) error {
	if size < 0 || size > MaxPermittedDataLength {
		return solana.InstructionErrorInvalidRealloc
	}

	if size <= len(a.account.Data) {
		a.account.Data = a.account.Data[:size]
		return nil
	}

	a.account.Data = append(a.account.Data, make([]byte, size-len(a.account.Data))...)
	return nil
}

// Assign transfers ownership of the account to another program.
func (a *AccountInfo) Assign(owner ed25519.PublicKey) {
	a.account.Owner = append(ed25519.PublicKey(nil), owner...)
}

// Snapshot returns a copy of the account's current state.
func (a *AccountInfo) Snapshot() Account {
	return Account{
		Address:    a.account.Address,
		Owner:      append(ed25519.PublicKey(nil), a.account.Owner...),
		Lamports:   a.account.Lamports,
		Data:       bytes.Clone(a.account.Data),
		Executable: a.account.Executable,
	}
}
