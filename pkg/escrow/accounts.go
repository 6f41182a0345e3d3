package escrow

import (
	"bytes"
	"crypto/ed25519"

	"github.com/code-payments/code-escrow/pkg/ledger"
	"github.com/code-payments/code-escrow/pkg/solana"
	escrow_program "github.com/code-payments/code-escrow/pkg/solana/escrow"
	"github.com/code-payments/code-escrow/pkg/solana/system"
	"github.com/code-payments/code-escrow/pkg/solana/token"
)

// verifyEscrowAddress requires address to be the escrow derived from maker and
// bump under this program.
func (p *Program) verifyEscrowAddress(address, maker ed25519.PublicKey, bump uint8) error {
	expected, err := escrow_program.CreateEscrowAddress(p.id, maker, bump)
	if err != nil {
		return solana.InstructionErrorInvalidSeeds
	}
	if !bytes.Equal(expected, address) {
		return solana.InstructionErrorInvalidSeeds
	}
	return nil
}

// loadEscrow decodes an open escrow record. Closed escrows revert to the
// system program, so anything not owned by this program is uninitialized.
func (p *Program) loadEscrow(info *ledger.AccountInfo) (*escrow_program.EscrowAccount, error) {
	if !info.IsOwnedBy(p.id) {
		return nil, solana.InstructionErrorUninitializedAccount
	}

	var record escrow_program.EscrowAccount
	if err := record.Unmarshal(info.Data()); err != nil {
		return nil, solana.InstructionErrorInvalidAccountData
	}
	return &record, nil
}

// closeEscrow clears an escrow record and returns its reserve to the maker.
func closeEscrow(info, maker *ledger.AccountInfo) error {
	data := info.Data()
	for i := range data {
		data[i] = 0
	}
	if err := info.Resize(0); err != nil {
		return err
	}
	info.Assign(system.ProgramKey[:])

	if err := maker.AddLamports(info.Lamports()); err != nil {
		return err
	}
	info.SetLamports(0)
	return nil
}

func loadMint(info *ledger.AccountInfo) (*token.Mint, error) {
	if !info.IsOwnedBy(token.ProgramKey) {
		return nil, solana.InstructionErrorIncorrectProgramID
	}

	var mint token.Mint
	if !mint.Unmarshal(info.Data()) {
		return nil, solana.InstructionErrorInvalidAccountData
	}
	if !mint.IsInitialized {
		return nil, solana.InstructionErrorUninitializedAccount
	}
	return &mint, nil
}

func loadTokenAccount(info *ledger.AccountInfo) (*token.Account, error) {
	if !info.IsOwnedBy(token.ProgramKey) {
		return nil, solana.InstructionErrorIncorrectProgramID
	}

	var account token.Account
	if !account.Unmarshal(info.Data()) {
		return nil, solana.InstructionErrorInvalidAccountData
	}
	if !account.IsInitialized() {
		return nil, solana.InstructionErrorUninitializedAccount
	}
	return &account, nil
}

// loadVault requires info to be a token account of mint held by the escrow.
func loadVault(info *ledger.AccountInfo, escrow, mint ed25519.PublicKey) (*token.Account, error) {
	vault, err := loadTokenAccount(info)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(vault.Owner, escrow) {
		return nil, ErrVaultAuthorityMismatch
	}
	if !bytes.Equal(vault.Mint, mint) {
		return nil, ErrVaultMintMismatch
	}
	return vault, nil
}

// verifyHolding requires info to be a token account of mint held by owner.
func verifyHolding(info *ledger.AccountInfo, owner, mint ed25519.PublicKey) error {
	holding, err := loadTokenAccount(info)
	if err != nil {
		return err
	}
	if !bytes.Equal(holding.Owner, owner) || !bytes.Equal(holding.Mint, mint) {
		return ErrMakerAccountMismatch
	}
	return nil
}
