package native

import (
	"bytes"
	"crypto/ed25519"
	"math"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-escrow/pkg/ledger"
	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/token"
)

type tokenProgram struct{}

// NewTokenProgram returns the fungible token program. Authorities may sign
// with their own key, or be a program derived address signed for by the
// invoking program.
//
// Delegation, multisig, freezing and native tokens are not supported.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/processor.rs
func NewTokenProgram() ledger.Program {
	return &tokenProgram{}
}

func (p *tokenProgram) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	if len(data) == 0 {
		return solana.InstructionErrorInvalidInstructionData
	}

	log := ctx.Logger().WithField("program", "token")

	switch cmd := token.Command(data[0]); cmd {
	case token.CommandInitializeMint:
		args, err := token.ParseInitializeMintArgs(data)
		if err != nil {
			return err
		}
		if len(accounts) < 1 {
			return solana.InstructionErrorNotEnoughAccountKeys
		}
		return p.initializeMint(ctx, accounts[0], args)

	case token.CommandInitializeAccount:
		if len(accounts) < 3 {
			return solana.InstructionErrorNotEnoughAccountKeys
		}
		return p.initializeAccount(ctx, accounts[0], accounts[1], accounts[2])

	case token.CommandTransfer:
		amount, err := token.ParseAmount(data)
		if err != nil {
			return err
		}
		if len(accounts) < 3 {
			return solana.InstructionErrorNotEnoughAccountKeys
		}
		return p.transfer(log, accounts[0], accounts[1], accounts[2], amount)

	case token.CommandMintTo:
		amount, err := token.ParseAmount(data)
		if err != nil {
			return err
		}
		if len(accounts) < 3 {
			return solana.InstructionErrorNotEnoughAccountKeys
		}
		return p.mintTo(accounts[0], accounts[1], accounts[2], amount)

	case token.CommandCloseAccount:
		if len(accounts) < 3 {
			return solana.InstructionErrorNotEnoughAccountKeys
		}
		return p.closeAccount(log, accounts[0], accounts[1], accounts[2])

	case token.CommandSetAuthority:
		args, err := token.ParseSetAuthorityArgs(data)
		if err != nil {
			return err
		}
		if len(accounts) < 2 {
			return solana.InstructionErrorNotEnoughAccountKeys
		}
		return p.setAuthority(accounts[0], accounts[1], args)

	default:
		log.WithField("command", cmd).Debug("unsupported token command")
		return token.ErrorInvalidInstruction
	}
}

func (p *tokenProgram) initializeMint(ctx *ledger.InvokeContext, info *ledger.AccountInfo, args *token.InitializeMintArgs) error {
	if !info.IsOwnedBy(token.ProgramKey) {
		return solana.InstructionErrorIncorrectProgramID
	}

	var mint token.Mint
	if !mint.Unmarshal(info.Data()) {
		return solana.InstructionErrorInvalidAccountData
	}
	if mint.IsInitialized {
		return token.ErrorAlreadyInUse
	}
	if !ctx.Rent().IsExempt(info.Lamports(), info.DataLen()) {
		return token.ErrorNotRentExempt
	}

	mint = token.Mint{
		MintAuthority:   args.MintAuthority,
		Decimals:        args.Decimals,
		IsInitialized:   true,
		FreezeAuthority: args.FreezeAuthority,
	}
	copy(info.Data(), mint.Marshal())
	return nil
}

func (p *tokenProgram) initializeAccount(ctx *ledger.InvokeContext, info, mintInfo, owner *ledger.AccountInfo) error {
	if !info.IsOwnedBy(token.ProgramKey) {
		return solana.InstructionErrorIncorrectProgramID
	}

	var account token.Account
	if !account.Unmarshal(info.Data()) {
		return solana.InstructionErrorInvalidAccountData
	}
	if account.IsInitialized() {
		return token.ErrorAlreadyInUse
	}
	if !ctx.Rent().IsExempt(info.Lamports(), info.DataLen()) {
		return token.ErrorNotRentExempt
	}

	if _, err := unpackMint(mintInfo); err != nil {
		return token.ErrorInvalidMint
	}

	account = token.Account{
		Mint:  mintInfo.Key(),
		Owner: owner.Key(),
		State: token.AccountStateInitialized,
	}
	copy(info.Data(), account.Marshal())
	return nil
}

func (p *tokenProgram) transfer(log *logrus.Entry, sourceInfo, destinationInfo, authority *ledger.AccountInfo, amount uint64) error {
	source, err := unpackAccount(sourceInfo)
	if err != nil {
		return err
	}
	destination, err := unpackAccount(destinationInfo)
	if err != nil {
		return err
	}

	if source.State == token.AccountStateFrozen || destination.State == token.AccountStateFrozen {
		return token.ErrorAccountFrozen
	}
	if source.Amount < amount {
		log.WithFields(logrus.Fields{
			"source":    base58.Encode(sourceInfo.Key()),
			"balance":   source.Amount,
			"requested": amount,
		}).Debug("insufficient token balance")
		return token.ErrorInsufficientFunds
	}
	if !bytes.Equal(source.Mint, destination.Mint) {
		return token.ErrorMintMismatch
	}

	if err := validateOwner(source.Owner, authority); err != nil {
		return err
	}

	if bytes.Equal(sourceInfo.Key(), destinationInfo.Key()) {
		return nil
	}

	if destination.Amount > math.MaxUint64-amount {
		return token.ErrorOverflow
	}

	source.Amount -= amount
	destination.Amount += amount

	copy(sourceInfo.Data(), source.Marshal())
	copy(destinationInfo.Data(), destination.Marshal())
	return nil
}

func (p *tokenProgram) mintTo(mintInfo, destinationInfo, authority *ledger.AccountInfo, amount uint64) error {
	destination, err := unpackAccount(destinationInfo)
	if err != nil {
		return err
	}
	if destination.State == token.AccountStateFrozen {
		return token.ErrorAccountFrozen
	}
	if !bytes.Equal(destination.Mint, mintInfo.Key()) {
		return token.ErrorMintMismatch
	}

	mint, err := unpackMint(mintInfo)
	if err != nil {
		return err
	}
	if len(mint.MintAuthority) == 0 {
		return token.ErrorFixedSupply
	}
	if err := validateOwner(mint.MintAuthority, authority); err != nil {
		return err
	}

	if mint.Supply > math.MaxUint64-amount || destination.Amount > math.MaxUint64-amount {
		return token.ErrorOverflow
	}

	mint.Supply += amount
	destination.Amount += amount

	copy(mintInfo.Data(), mint.Marshal())
	copy(destinationInfo.Data(), destination.Marshal())
	return nil
}

func (p *tokenProgram) closeAccount(log *logrus.Entry, info, destination, authority *ledger.AccountInfo) error {
	if bytes.Equal(info.Key(), destination.Key()) {
		return solana.InstructionErrorInvalidAccountData
	}

	account, err := unpackAccount(info)
	if err != nil {
		return err
	}
	if account.Amount != 0 {
		return token.ErrorNonNativeHasBalance
	}

	closeAuthority := account.CloseAuthority
	if len(closeAuthority) == 0 {
		closeAuthority = account.Owner
	}
	if err := validateOwner(closeAuthority, authority); err != nil {
		return err
	}

	if err := destination.AddLamports(info.Lamports()); err != nil {
		return token.ErrorOverflow
	}
	info.SetLamports(0)

	for i := range info.Data() {
		info.Data()[i] = 0
	}
	if err := info.Resize(0); err != nil {
		return err
	}

	log.WithField("account", base58.Encode(info.Key())).Trace("token account closed")
	return nil
}

func (p *tokenProgram) setAuthority(info, authority *ledger.AccountInfo, args *token.SetAuthorityArgs) error {
	if !info.IsOwnedBy(token.ProgramKey) {
		return solana.InstructionErrorIncorrectProgramID
	}

	switch info.DataLen() {
	case token.AccountSize:
		account, err := unpackAccount(info)
		if err != nil {
			return err
		}
		if account.State == token.AccountStateFrozen {
			return token.ErrorAccountFrozen
		}

		switch args.Type {
		case token.AuthorityTypeAccountHolder:
			if err := validateOwner(account.Owner, authority); err != nil {
				return err
			}
			if len(args.NewAuthority) == 0 {
				return token.ErrorInvalidInstruction
			}
			account.Owner = args.NewAuthority
			account.Delegate = nil
			account.DelegatedAmount = 0
		case token.AuthorityTypeCloseAccount:
			closeAuthority := account.CloseAuthority
			if len(closeAuthority) == 0 {
				closeAuthority = account.Owner
			}
			if err := validateOwner(closeAuthority, authority); err != nil {
				return err
			}
			account.CloseAuthority = args.NewAuthority
		default:
			return token.ErrorAuthorityTypeNotSupported
		}

		copy(info.Data(), account.Marshal())
		return nil

	case token.MintSize:
		mint, err := unpackMint(info)
		if err != nil {
			return err
		}

		switch args.Type {
		case token.AuthorityTypeMintTokens:
			if len(mint.MintAuthority) == 0 {
				return token.ErrorFixedSupply
			}
			if err := validateOwner(mint.MintAuthority, authority); err != nil {
				return err
			}
			mint.MintAuthority = args.NewAuthority
		case token.AuthorityTypeFreezeAccount:
			if len(mint.FreezeAuthority) == 0 {
				return token.ErrorMintCannotFreeze
			}
			if err := validateOwner(mint.FreezeAuthority, authority); err != nil {
				return err
			}
			mint.FreezeAuthority = args.NewAuthority
		default:
			return token.ErrorAuthorityTypeNotSupported
		}

		copy(info.Data(), mint.Marshal())
		return nil
	}

	return token.ErrorInvalidState
}

func unpackAccount(info *ledger.AccountInfo) (*token.Account, error) {
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

func unpackMint(info *ledger.AccountInfo) (*token.Mint, error) {
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

// validateOwner requires authority to be the expected owner and to have
// signed, either directly or through the invoking program.
func validateOwner(expected ed25519.PublicKey, authority *ledger.AccountInfo) error {
	if !bytes.Equal(expected, authority.Key()) {
		return token.ErrorOwnerMismatch
	}
	if !authority.IsSigner() {
		return solana.InstructionErrorMissingRequiredSignature
	}
	return nil
}
