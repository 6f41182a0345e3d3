package escrow

import (
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-escrow/pkg/ledger"
	"github.com/code-payments/code-escrow/pkg/solana"
	escrow_program "github.com/code-payments/code-escrow/pkg/solana/escrow"
	"github.com/code-payments/code-escrow/pkg/solana/system"
	"github.com/code-payments/code-escrow/pkg/solana/token"
)

// processMake opens the maker's escrow and deposits the offered tokens in its
// vault.
//
// Accounts:
//
//  0. `[signer, writable]` The maker, who funds the escrow record.
//  1. `[]` The offered mint.
//  2. `[]` The wanted mint.
//  3. `[writable]` The maker's token account for the offered mint.
//  4. `[writable]` The vault, a token account of the offered mint held by the escrow.
//  5. `[writable]` The escrow record.
//  6. `[]` The system program.
//  7. `[]` The token program.
func (p *Program) processMake(ctx *ledger.InvokeContext, log *logrus.Entry, accounts []*ledger.AccountInfo, payload []byte) error {
	if len(accounts) != 8 {
		return solana.InstructionErrorNotEnoughAccountKeys
	}
	maker, mintX, mintY, makerAtaX, vault, escrow := accounts[0], accounts[1], accounts[2], accounts[3], accounts[4], accounts[5]

	args, err := escrow_program.ParseMakeInstructionArgs(payload)
	if err != nil {
		return err
	}

	log = log.WithFields(logrus.Fields{
		"maker":  base58.Encode(maker.Key()),
		"escrow": base58.Encode(escrow.Key()),
	})

	if !maker.IsSigner() {
		return solana.InstructionErrorMissingRequiredSignature
	}
	if args.AmountWanted == 0 || args.AmountOffered == 0 {
		return ErrInvalidAmount
	}

	if err := p.verifyEscrowAddress(escrow.Key(), maker.Key(), args.Bump); err != nil {
		log.WithField("bump", args.Bump).Debug("escrow address doesn't match its seeds")
		return err
	}

	if _, err := loadMint(mintX); err != nil {
		return err
	}
	if _, err := loadMint(mintY); err != nil {
		return err
	}
	if _, err := loadVault(vault, escrow.Key(), mintX.Key()); err != nil {
		return err
	}

	if escrow.IsOwnedBy(p.id) {
		log.Debug("escrow is already open")
		return solana.InstructionErrorAccountAlreadyInitialized
	}

	log.Debug("creating escrow account")

	err = ctx.Invoke(
		system.CreateAccount(
			maker.Key(),
			escrow.Key(),
			p.id,
			ctx.Rent().MinimumBalance(escrow_program.EscrowAccountSize),
			escrow_program.EscrowAccountSize,
		),
		Signer(maker.Key(), args.Bump),
	)
	if err != nil {
		return err
	}

	record := &escrow_program.EscrowAccount{
		Maker:  maker.Key(),
		MintX:  mintX.Key(),
		MintY:  mintY.Key(),
		Amount: args.AmountWanted,
		Bump:   args.Bump,
	}
	copy(escrow.Data(), record.Marshal())

	log.WithFields(logrus.Fields{
		"amount_offered": args.AmountOffered,
		"amount_wanted":  args.AmountWanted,
	}).Debug("depositing offered tokens")

	err = ctx.Invoke(token.Transfer(makerAtaX.Key(), vault.Key(), maker.Key(), args.AmountOffered))
	if err != nil {
		return err
	}

	recordInstructionEvent(ctx.Context(), escrow_program.InstructionTypeMake, escrow.Key(), maker.Key(), args.AmountOffered)
	return nil
}
