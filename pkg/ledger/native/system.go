package native

import (
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-escrow/pkg/ledger"
	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/system"
)

type systemProgram struct{}

// NewSystemProgram returns the program that creates accounts, assigns them to
// programs, and moves lamports between wallets.
//
// Reference: https://github.com/solana-labs/solana/blob/v1.10.0/runtime/src/system_instruction_processor.rs
func NewSystemProgram() ledger.Program {
	return &systemProgram{}
}

func (p *systemProgram) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	cmd, err := system.ParseCommand(data)
	if err != nil {
		return err
	}

	switch cmd {
	case system.CommandCreateAccount:
		args, err := system.ParseCreateAccountArgs(data)
		if err != nil {
			return err
		}
		if len(accounts) < 2 {
			return solana.InstructionErrorNotEnoughAccountKeys
		}
		return p.createAccount(ctx, accounts[0], accounts[1], args)

	case system.CommandAssign:
		owner, err := system.ParseAssignArgs(data)
		if err != nil {
			return err
		}
		if len(accounts) < 1 {
			return solana.InstructionErrorNotEnoughAccountKeys
		}
		return p.assign(accounts[0], owner)

	case system.CommandTransfer:
		lamports, err := system.ParseTransferArgs(data)
		if err != nil {
			return err
		}
		if len(accounts) < 2 {
			return solana.InstructionErrorNotEnoughAccountKeys
		}
		return p.transfer(accounts[0], accounts[1], lamports)
	}

	return solana.InstructionErrorInvalidInstructionData
}

func (p *systemProgram) createAccount(ctx *ledger.InvokeContext, funder, to *ledger.AccountInfo, args *system.CreateAccountArgs) error {
	log := ctx.Logger().WithFields(logrus.Fields{
		"program": "system",
		"method":  "createAccount",
		"address": base58.Encode(to.Key()),
		"owner":   base58.Encode(args.Owner),
	})

	if !to.IsSigner() {
		log.Debug("new account did not sign")
		return solana.InstructionErrorMissingRequiredSignature
	}

	if !to.IsEmpty() || !to.IsOwnedBy(system.ProgramKey[:]) {
		log.Debug("account already in use")
		return system.ErrAccountAlreadyInUse
	}

	if args.Size > system.MaxPermittedDataLength {
		return system.ErrInvalidAccountDataLength
	}

	if err := p.transfer(funder, to, args.Lamports); err != nil {
		return err
	}

	if err := to.Resize(int(args.Size)); err != nil {
		return err
	}
	to.Assign(args.Owner)

	log.WithField("size", args.Size).Trace("account created")
	return nil
}

func (p *systemProgram) assign(account *ledger.AccountInfo, owner []byte) error {
	if account.IsOwnedBy(owner) {
		return nil
	}

	if !account.IsSigner() {
		return solana.InstructionErrorMissingRequiredSignature
	}

	account.Assign(owner)
	return nil
}

func (p *systemProgram) transfer(from, to *ledger.AccountInfo, lamports uint64) error {
	if !from.IsSigner() {
		return solana.InstructionErrorMissingRequiredSignature
	}

	if from.DataLen() > 0 {
		return solana.InstructionErrorInvalidArgument
	}

	if err := from.SubLamports(lamports); err != nil {
		return system.ErrResultWithNegativeLamports
	}
	return to.AddLamports(lamports)
}
