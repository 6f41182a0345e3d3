// Package ledgertest provides a ledger running the builtin programs, along
// with fixtures for funding wallets and setting up tokens in tests.
package ledgertest

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-escrow/pkg/ledger"
	"github.com/code-payments/code-escrow/pkg/ledger/account"
	"github.com/code-payments/code-escrow/pkg/ledger/account/memory"
	"github.com/code-payments/code-escrow/pkg/ledger/native"
	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/system"
	"github.com/code-payments/code-escrow/pkg/solana/token"
	"github.com/code-payments/code-escrow/pkg/testutil"
)

// DefaultAirdrop is the number of lamports NewFundedWallet starts a wallet
// with.
const DefaultAirdrop = 100_000_000_000

type Env struct {
	t   *testing.T
	ctx context.Context

	Ledger *ledger.Ledger
	Store  account.Store
}

// NewEnv returns a ledger backed by an in memory store.
func NewEnv(t *testing.T, opts ...ledger.Option) *Env {
	return NewEnvWithStore(t, memory.New(), opts...)
}

func NewEnvWithStore(t *testing.T, store account.Store, opts ...ledger.Option) *Env {
	return &Env{
		t:      t,
		ctx:    context.Background(),
		Ledger: ledger.New(store, ledger.WithManualTestOverrides(&ledger.TestOverrides{}), append(native.Programs(), opts...)...),
		Store:  store,
	}
}

// Submit signs and processes a transaction paid for by payer. A random
// blockhash keeps otherwise identical transactions distinct.
func (e *Env) Submit(payer ed25519.PrivateKey, instructions []solana.Instruction, signers ...ed25519.PrivateKey) error {
	_, err := e.Ledger.ProcessTransaction(e.ctx, e.Sign(payer, instructions, signers...))
	return err
}

// Sign builds and signs a transaction without submitting it.
func (e *Env) Sign(payer ed25519.PrivateKey, instructions []solana.Instruction, signers ...ed25519.PrivateKey) solana.Transaction {
	var blockhash solana.Blockhash
	_, err := rand.Read(blockhash[:])
	require.NoError(e.t, err)

	tx := solana.NewTransaction(payer.Public().(ed25519.PublicKey), instructions...)
	tx.SetBlockhash(blockhash)
	require.NoError(e.t, tx.Sign(append([]ed25519.PrivateKey{payer}, signers...)...))
	return tx
}

// NewFundedWallet returns a new keypair whose system account holds
// DefaultAirdrop lamports.
func (e *Env) NewFundedWallet() ed25519.PrivateKey {
	wallet := testutil.GenerateSolanaKeypair(e.t)
	require.NoError(e.t, e.Ledger.Airdrop(e.ctx, wallet.Public().(ed25519.PublicKey), DefaultAirdrop))
	return wallet
}

// CreateMint creates and initializes a new mint whose tokens authority can
// mint.
func (e *Env) CreateMint(payer ed25519.PrivateKey, authority ed25519.PublicKey, decimals byte) ed25519.PublicKey {
	mint := testutil.GenerateSolanaKeypair(e.t)
	mintKey := mint.Public().(ed25519.PublicKey)

	err := e.Submit(
		payer,
		[]solana.Instruction{
			system.CreateAccount(
				payer.Public().(ed25519.PublicKey),
				mintKey,
				token.ProgramKey,
				e.Ledger.Rent(e.ctx).MinimumBalance(token.MintSize),
				token.MintSize,
			),
			token.InitializeMint(mintKey, authority, nil, decimals),
		},
		mint,
	)
	require.NoError(e.t, err)
	return mintKey
}

// CreateAssociatedAccount creates the associated token account of wallet for
// mint.
func (e *Env) CreateAssociatedAccount(payer ed25519.PrivateKey, wallet, mint ed25519.PublicKey) ed25519.PublicKey {
	ix, address, err := token.CreateAssociatedTokenAccount(payer.Public().(ed25519.PublicKey), wallet, mint)
	require.NoError(e.t, err)
	require.NoError(e.t, e.Submit(payer, []solana.Instruction{ix}))
	return address
}

// MintTo mints amount tokens into destination.
func (e *Env) MintTo(payer, authority ed25519.PrivateKey, mint, destination ed25519.PublicKey, amount uint64) {
	err := e.Submit(
		payer,
		[]solana.Instruction{
			token.MintTo(mint, destination, authority.Public().(ed25519.PublicKey), amount),
		},
		authority,
	)
	require.NoError(e.t, err)
}

// TokenBalance returns the balance of a token account, which must exist.
func (e *Env) TokenBalance(mint, address ed25519.PublicKey) uint64 {
	account, err := token.NewClient(e.Ledger, mint).GetAccount(e.ctx, address)
	require.NoError(e.t, err)
	return account.Amount
}

// Lamports returns the lamports held by address, or zero if it doesn't exist.
func (e *Env) Lamports(address ed25519.PublicKey) uint64 {
	info, err := e.Ledger.GetAccountInfo(e.ctx, address)
	if err == solana.ErrNoAccountInfo {
		return 0
	}
	require.NoError(e.t, err)
	return info.Lamports
}

// Exists reports whether an account is stored at address.
func (e *Env) Exists(address ed25519.PublicKey) bool {
	_, err := e.Ledger.GetAccountInfo(e.ctx, address)
	if err == solana.ErrNoAccountInfo {
		return false
	}
	require.NoError(e.t, err)
	return true
}

// AccountInfo returns the committed state of an account, which must exist.
func (e *Env) AccountInfo(address ed25519.PublicKey) *solana.AccountInfo {
	info, err := e.Ledger.GetAccountInfo(e.ctx, address)
	require.NoError(e.t, err)
	return info
}
