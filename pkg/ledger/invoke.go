package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"math/bits"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-escrow/pkg/solana"
)

// MaxInvokeStackHeight bounds the program call stack: a top level instruction
// plus four nested invocations.
const MaxInvokeStackHeight = 5

// InvokeContext is the environment a program executes an instruction in.
type InvokeContext struct {
	ctx      context.Context
	log      *logrus.Entry
	rent     Rent
	programs map[string]Program

	programID ed25519.PublicKey
	accounts  []*AccountInfo
	pre       preAccounts

	parent *InvokeContext
	height int
}

func (c *InvokeContext) Context() context.Context {
	return c.ctx
}

// ProgramID is the id of the program currently executing.
func (c *InvokeContext) ProgramID() ed25519.PublicKey {
	return c.programID
}

func (c *InvokeContext) Rent() Rent {
	return c.rent
}

// Logger returns the entry programs should log through.
func (c *InvokeContext) Logger() *logrus.Entry {
	return c.log
}

// StackHeight is one for a top level instruction, and grows by one with each
// nested invocation.
func (c *InvokeContext) StackHeight() int {
	return c.height
}

// Invoke executes ix in the program it addresses, using the accounts passed to
// the current instruction.
//
// Every account ix references must be available to the current instruction,
// and can't gain privileges: a writable account must be writable here, and a
// signer must either have signed here or be the address one of signers
// derives under the current program id.
func (c *InvokeContext) Invoke(ix solana.Instruction, signers ...Signer) error {
	if c.height >= MaxInvokeStackHeight {
		return solana.InstructionErrorCallDepth
	}

	programInfo := c.find(ix.Program)
	if programInfo == nil {
		return solana.InstructionErrorMissingAccount
	}
	if !programInfo.Executable() {
		return solana.InstructionErrorAccountNotExecutable
	}

	program, ok := c.programs[string(ix.Program)]
	if !ok {
		return solana.InstructionErrorUnsupportedProgramID
	}

	if !bytes.Equal(ix.Program, c.programID) {
		for frame := c.parent; frame != nil; frame = frame.parent {
			if bytes.Equal(frame.programID, ix.Program) {
				return solana.InstructionErrorReentrancyNotAllowed
			}
		}
	}

	derived := make([]ed25519.PublicKey, 0, len(signers))
	for _, signer := range signers {
		address, err := solana.CreateProgramAddress(c.programID, signer.seeds...)
		if err != nil {
			if err == solana.ErrMaxSeedLengthExceeded {
				return solana.InstructionErrorMaxSeedLengthExceeded
			}
			return solana.InstructionErrorInvalidSeeds
		}
		derived = append(derived, address)
	}

	accounts := make([]*AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		info := c.find(meta.PublicKey)
		if info == nil {
			c.log.WithField("account", base58.Encode(meta.PublicKey)).Debug("instruction references an unavailable account")
			return solana.InstructionErrorMissingAccount
		}

		if meta.IsWritable && !info.isWritable {
			return solana.InstructionErrorPrivilegeEscalation
		}
		if meta.IsSigner && !info.isSigner && !containsKey(derived, meta.PublicKey) {
			return solana.InstructionErrorPrivilegeEscalation
		}

		accounts[i] = &AccountInfo{
			account:    info.account,
			isSigner:   meta.IsSigner,
			isWritable: meta.IsWritable,
		}
	}

	// Changes made so far belong to the current program, and are verified
	// before the callee can build on them.
	if err := c.pre.verify(c.programID); err != nil {
		return err
	}

	callee := &InvokeContext{
		ctx:       c.ctx,
		log:       c.log,
		rent:      c.rent,
		programs:  c.programs,
		programID: ix.Program,
		accounts:  accounts,
		pre:       takePreAccounts(accounts),
		parent:    c,
		height:    c.height + 1,
	}

	if err := program.Process(callee, accounts, ix.Data); err != nil {
		return err
	}
	if err := callee.pre.verify(callee.programID); err != nil {
		return err
	}

	c.pre = takePreAccounts(c.accounts)
	return nil
}

// find returns the first of the current instruction's accounts at key.
func (c *InvokeContext) find(key ed25519.PublicKey) *AccountInfo {
	for _, info := range c.accounts {
		if bytes.Equal(info.Key(), key) {
			return info
		}
	}
	return nil
}

// preAccount is the state of an account when a program started (or resumed)
// executing, which the program's changes are verified against.
type preAccount struct {
	owner      ed25519.PublicKey
	lamports   uint64
	data       []byte
	executable bool
	writable   bool
}

type preAccounts map[*loadedAccount]*preAccount

func takePreAccounts(infos []*AccountInfo) preAccounts {
	pre := make(preAccounts, len(infos))
	for _, info := range infos {
		existing, ok := pre[info.account]
		if !ok {
			existing = &preAccount{
				owner:      append(ed25519.PublicKey(nil), info.account.Owner...),
				lamports:   info.account.Lamports,
				data:       bytes.Clone(info.account.Data),
				executable: info.account.Executable,
			}
			pre[info.account] = existing
		}
		existing.writable = existing.writable || info.isWritable
	}
	return pre
}

// verify checks the changes program made to the accounts.
//
// Reference: https://github.com/solana-labs/solana/blob/v1.10.0/program-runtime/src/pre_account.rs
func (p preAccounts) verify(program ed25519.PublicKey) error {
	var preHi, preLo, postHi, postLo uint64
	for account, pre := range p {
		if err := pre.verify(program, &account.Account); err != nil {
			return err
		}

		var carry uint64
		preLo, carry = bits.Add64(preLo, pre.lamports, 0)
		preHi += carry
		postLo, carry = bits.Add64(postLo, account.Lamports, 0)
		postHi += carry
	}

	if preHi != postHi || preLo != postLo {
		return solana.InstructionErrorUnbalancedInstruction
	}
	return nil
}

func (p *preAccount) verify(program ed25519.PublicKey, post *Account) error {
	isOwner := bytes.Equal(p.owner, program)

	// Only the owner may reassign an account, and only once its data is
	// cleared.
	if !bytes.Equal(p.owner, post.Owner) {
		if !p.writable || !isOwner || !isZeroed(post.Data) {
			return solana.InstructionErrorModifiedProgramID
		}
	}

	if post.Lamports < p.lamports && !isOwner {
		return solana.InstructionErrorExternalAccountLamportSpend
	}
	if post.Lamports != p.lamports && !p.writable {
		return solana.InstructionErrorReadonlyLamportChange
	}

	if len(post.Data) != len(p.data) && (!p.writable || !isOwner) {
		return solana.InstructionErrorAccountDataSizeChanged
	}
	if !bytes.Equal(post.Data, p.data) {
		if !p.writable {
			return solana.InstructionErrorReadonlyDataModified
		}
		if !isOwner {
			return solana.InstructionErrorExternalAccountDataModified
		}
	}

	if post.Executable != p.executable {
		return solana.InstructionErrorExecutableModified
	}

	return nil
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

func containsKey(keys []ed25519.PublicKey, key ed25519.PublicKey) bool {
	for _, k := range keys {
		if bytes.Equal(k, key) {
			return true
		}
	}
	return false
}
