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

// processRefund returns the vault's balance to the maker and closes the
// escrow. Anyone may submit it: the deposit and reclaimed rent can only land
// in accounts the recorded maker holds.
//
// Accounts:
//
//  0. `[writable]` The maker.
//  1. `[]` The offered mint.
//  2. `[writable]` The maker's token account for the offered mint.
//  3. `[writable]` The vault.
//  4. `[writable]` The escrow record.
//  5. `[]` The token program.
//  6. `[]` The system program.
func (p *Program) processRefund(ctx *ledger.InvokeContext, log *logrus.Entry, accounts []*ledger.AccountInfo) error {
	if len(accounts) != 7 {
		return solana.InstructionErrorNotEnoughAccountKeys
	}
	maker, mintX, makerAtaX, vault, escrow := accounts[0], accounts[1], accounts[2], accounts[3], accounts[4]

	log = log.WithFields(logrus.Fields{
		"maker":  base58.Encode(maker.Key()),
		"escrow": base58.Encode(escrow.Key()),
	})

	record, err := p.loadEscrow(escrow)
	if err != nil {
		log.WithError(err).Debug("escrow isn't open")
		return err
	}

	if !bytes.Equal(record.MintX, mintX.Key()) {
		return ErrEscrowMismatch
	}

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
	if err := verifyHolding(makerAtaX, record.Maker, record.MintX); err != nil {
		return err
	}

	signer := Signer(record.Maker, record.Bump)

	log.WithField("amount", deposit.Amount).Debug("returning deposit to maker")

	err = ctx.Invoke(token.Transfer(vault.Key(), makerAtaX.Key(), escrow.Key(), deposit.Amount), signer)
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

	recordInstructionEvent(ctx.Context(), escrow_program.InstructionTypeRefund, escrow.Key(), record.Maker, deposit.Amount)
	return nil
}
