// Package escrow implements the escrow program: a maker deposits tokens of one
// mint into a vault the program controls, asking for an amount of a second
// mint in return. A taker settles the trade atomically, or the maker refunds
// the deposit. Either way the escrow is closed and its reserves returned to the
// maker, so every escrow settles at most once.
//
// Each maker has a single escrow, at the program derived address of
// ("escrow", maker, bump). The program signs for the vault as that address.
package escrow

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-escrow/pkg/ledger"
	"github.com/code-payments/code-escrow/pkg/solana"
	escrow_program "github.com/code-payments/code-escrow/pkg/solana/escrow"
)

type Program struct {
	log *logrus.Entry
	id  ed25519.PublicKey
}

// New returns the program deployed at programID, or escrow_program.PROGRAM_ID
// when it's empty.
func New(programID ed25519.PublicKey) *Program {
	if len(programID) == 0 {
		programID = escrow_program.PROGRAM_ID
	}

	return &Program{
		log: logrus.StandardLogger().WithFields(logrus.Fields{
			"type":    "escrow/program",
			"program": base58.Encode(programID),
		}),
		id: append(ed25519.PublicKey(nil), programID...),
	}
}

// NewFromConfig returns the program deployed at the configured identity.
func NewFromConfig(configProvider ConfigProvider) (*Program, error) {
	conf := configProvider()

	encoded, err := conf.programId.GetSafe(context.Background())
	if err != nil {
		return nil, errors.Wrap(err, "error getting program id")
	}

	programID, err := base58.Decode(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "invalid program id")
	}
	if len(programID) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid program id length: %d", len(programID))
	}

	return New(programID), nil
}

// ID is the identity the program is deployed at.
func (p *Program) ID() ed25519.PublicKey {
	return append(ed25519.PublicKey(nil), p.id...)
}

// Option registers the program with a ledger.
func (p *Program) Option() ledger.Option {
	return ledger.WithProgram(p.id, p)
}

// Signer is the capability the program uses to sign as a maker's escrow.
func Signer(maker ed25519.PublicKey, bump uint8) ledger.Signer {
	return ledger.NewSigner(escrow_program.EscrowSeeds(maker, bump)...)
}

func (p *Program) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	if !bytes.Equal(ctx.ProgramID(), p.id) {
		p.log.WithField("invoked_as", base58.Encode(ctx.ProgramID())).Warn("invoked under a foreign program id")
		return solana.InstructionErrorIncorrectProgramID
	}

	instruction, payload, err := escrow_program.ParseInstructionType(data)
	if err != nil {
		return err
	}

	log := ctx.Logger().WithFields(logrus.Fields{
		"program": "escrow",
		"method":  instruction.String(),
	})

	switch instruction {
	case escrow_program.InstructionTypeMake:
		return p.processMake(ctx, log, accounts, payload)
	case escrow_program.InstructionTypeTake:
		return p.processTake(ctx, log, accounts)
	case escrow_program.InstructionTypeRefund:
		return p.processRefund(ctx, log, accounts)
	}
	return solana.InstructionErrorInvalidInstructionData
}
