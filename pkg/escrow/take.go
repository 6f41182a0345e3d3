package escrow

import (
	"bytes"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-escrow/pkg/ledger"
	"github.com/code-payments/code-escrow/pkg/solana"
	escrow_program "github.com/code-payments/code-escrow/pkg/solana/escrow"
	"github.com/code-payments/code-escrow/pkg/solana/token"
)

// processTake settles an open escrow: the taker pays the maker the wanted
// amount, receives the vault's balance, and the escrow is closed.
//
// Accounts:
//
//  0. `[signer, writable]` The taker.
//  1. `[writable]` The maker, who receives the escrow's reserves.
//  2. `[]` The offered mint.
//  3. `[]` The wanted mint.
//  4. `[writable]` The taker's token account for the offered mint.
//  5. `[writable]` The taker's token account for the wanted mint.
//  6. `[writable]` The maker's token account for the wanted mint.
//  7. `[writable]` The vault.
//  8. `[writable]` The escrow record.
//  9. `[]` The token program.
//  10. `[]` The system program.
func (p *Program) processTake(ctx *ledger.InvokeContext, log *logrus.Entry, accounts []*ledger.AccountInfo) error {
	if len(accounts) != 11 {
		return solana.InstructionErrorNotEnoughAccountKeys
	}
	taker, maker, mintX, mintY := accounts[0], accounts[1], accounts[2], accounts[3]
	takerAtaX, takerAtaY, makerAtaY, vault, escrow := accounts[4], accounts[5], accounts[6], accounts[7], accounts[8]

	log = log.WithFields(logrus.Fields{
		"taker":  base58.Encode(taker.Key()),
		"escrow": base58.Encode(escrow.Key()),
	})

	if !taker.IsSigner() {
		return solana.InstructionErrorMissingRequiredSignature
	}

	record, err := p.loadEscrow(escrow)
	if err != nil {
		log.WithError(err).Debug("escrow isn't open")
		return err
	}

	if !bytes.Equal(record.MintX, mintX.Key()) || !bytes.Equal(record.MintY, mintY.Key()) {
		log.Debug("mints don't match the escrow")
		return ErrEscrowMismatch
	}

	// The record is only trusted once its own address proves it was created
	// for this maker.
	if !bytes.Equal(record.Maker, maker.Key()) {
		return solana.InstructionErrorInvalidSeeds
	}
	if err := p.verifyEscrowAddress(escrow.Key(), record.Maker, record.Bump); err != nil {
		log.Debug("escrow record isn't at its derived address")
		return err
	}

	deposit, err := loadVault(vault, escrow.Key(), record.MintX)
	if err != nil {
		return err
	}
	if err := verifyHolding(makerAtaY, record.Maker, record.MintY); err != nil {
		return err
	}

	log.WithField("amount", record.Amount).Debug("paying maker")

	err = ctx.Invoke(token.Transfer(takerAtaY.Key(), makerAtaY.Key(), taker.Key(), record.Amount))
	if err != nil {
		return err
	}

	signer := Signer(record.Maker, record.Bump)

	log.WithField("amount", deposit.Amount).Debug("releasing deposit to taker")

	err = ctx.Invoke(token.Transfer(vault.Key(), takerAtaX.Key(), escrow.Key(), deposit.Amount), signer)
	if err != nil {
		return err
	}

	err = ctx.Invoke(token.CloseAccount(vault.Key(), maker.Key(), escrow.Key()), signer)
	if err != nil {
		return err
	}

	if err := closeEscrow(escrow, maker); err != nil {
		return err
	}

	recordInstructionEvent(ctx.Context(), escrow_program.InstructionTypeTake, escrow.Key(), record.Maker, record.Amount)
	return nil
}
