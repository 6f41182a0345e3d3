package native

import (
	"bytes"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-escrow/pkg/ledger"
	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/system"
	"github.com/code-payments/code-escrow/pkg/solana/token"
)

type associatedTokenProgram struct{}

// NewAssociatedTokenProgram returns the program that creates the canonical
// token account of a wallet for a mint, at an address derived from both.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/0639953c7dd0f5228c3ceda3ba68fece3b46ff1d/associated-token-account/program/src/processor.rs
func NewAssociatedTokenProgram() ledger.Program {
	return &associatedTokenProgram{}
}

func (p *associatedTokenProgram) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	cmd, err := token.ParseAssociatedCommand(data)
	if err != nil {
		return err
	}

	if len(accounts) < 7 {
		return solana.InstructionErrorNotEnoughAccountKeys
	}

	funder := accounts[0]
	associated := accounts[1]
	wallet := accounts[2]
	mint := accounts[3]

	log := ctx.Logger().WithFields(logrus.Fields{
		"program": "associated_token",
		"wallet":  base58.Encode(wallet.Key()),
		"mint":    base58.Encode(mint.Key()),
	})

	address, bump, err := token.GetAssociatedAccountAndBump(wallet.Key(), mint.Key())
	if err != nil {
		return solana.InstructionErrorInvalidSeeds
	}
	if !bytes.Equal(address, associated.Key()) {
		log.Debug("associated account address mismatch")
		return solana.InstructionErrorInvalidSeeds
	}

	if cmd == token.AssociatedCommandCreateIdempotent && associated.IsOwnedBy(token.ProgramKey) {
		existing, err := unpackAccount(associated)
		if err != nil {
			return err
		}
		if !bytes.Equal(existing.Owner, wallet.Key()) {
			return token.ErrorOwnerMismatch
		}
		if !bytes.Equal(existing.Mint, mint.Key()) {
			return token.ErrorMintMismatch
		}
		return nil
	}

	if !mint.IsOwnedBy(token.ProgramKey) {
		return solana.InstructionErrorIncorrectProgramID
	}

	signer := ledger.NewSigner(wallet.Key(), token.ProgramKey, mint.Key(), []byte{bump})

	err = ctx.Invoke(
		system.CreateAccount(
			funder.Key(),
			associated.Key(),
			token.ProgramKey,
			ctx.Rent().MinimumBalance(token.AccountSize),
			token.AccountSize,
		),
		signer,
	)
	if err != nil {
		return err
	}

	err = ctx.Invoke(token.InitializeAccount(associated.Key(), mint.Key(), wallet.Key()))
	if err != nil {
		return err
	}

	log.Trace("associated token account created")
	return nil
}
