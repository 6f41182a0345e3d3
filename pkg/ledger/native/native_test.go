package native_test

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-escrow/pkg/ledger/ledgertest"
	"github.com/code-payments/code-escrow/pkg/solana"
	compute_budget "github.com/code-payments/code-escrow/pkg/solana/computebudget"
	"github.com/code-payments/code-escrow/pkg/solana/memo"
	"github.com/code-payments/code-escrow/pkg/solana/system"
	"github.com/code-payments/code-escrow/pkg/solana/token"
	"github.com/code-payments/code-escrow/pkg/testutil"
)

func TestSystem_CreateAccount(t *testing.T) {
	env := ledgertest.NewEnv(t)
	ctx := context.Background()

	payer := env.NewFundedWallet()
	payerKey := payer.Public().(ed25519.PublicKey)
	created := testutil.GenerateSolanaKeypair(t)
	createdKey := created.Public().(ed25519.PublicKey)
	owner := testutil.GenerateSolanaKeys(t, 1)[0]

	lamports := env.Ledger.Rent(ctx).MinimumBalance(10)
	ix := system.CreateAccount(payerKey, createdKey, owner, lamports, 10)

	// The new account has to sign
	unsigned := ix
	unsigned.Accounts = append([]solana.AccountMeta(nil), ix.Accounts...)
	unsigned.Accounts[1].IsSigner = false
	err := env.Submit(payer, []solana.Instruction{unsigned})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorMissingRequiredSignature)

	require.NoError(t, env.Submit(payer, []solana.Instruction{ix}, created))

	info := env.AccountInfo(createdKey)
	assert.Equal(t, owner, info.Owner)
	assert.Equal(t, make([]byte, 10), info.Data)
	assert.Equal(t, lamports, info.Lamports)
	assert.Equal(t, ledgertest.DefaultAirdrop-lamports, env.Lamports(payerKey))

	err = env.Submit(payer, []solana.Instruction{ix}, created)
	testutil.AssertInstructionError(t, err, 0, system.ErrAccountAlreadyInUse)

	// Only system owned, empty accounts can be created
	other := testutil.GenerateSolanaKeypair(t)
	otherKey := other.Public().(ed25519.PublicKey)
	err = env.Submit(payer, []solana.Instruction{
		system.CreateAccount(payerKey, otherKey, owner, ledgertest.DefaultAirdrop, 0),
	}, other)
	testutil.AssertInstructionError(t, err, 0, system.ErrResultWithNegativeLamports)

	err = env.Submit(payer, []solana.Instruction{
		system.CreateAccount(payerKey, otherKey, owner, lamports, system.MaxPermittedDataLength+1),
	}, other)
	testutil.AssertInstructionError(t, err, 0, system.ErrInvalidAccountDataLength)
}

func TestSystem_Assign(t *testing.T) {
	env := ledgertest.NewEnv(t)

	wallet := env.NewFundedWallet()
	walletKey := wallet.Public().(ed25519.PublicKey)
	payer := env.NewFundedWallet()
	owner := testutil.GenerateSolanaKeys(t, 1)[0]

	ix := system.Assign(walletKey, owner)
	ix.Accounts[0].IsSigner = false
	err := env.Submit(payer, []solana.Instruction{ix})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorMissingRequiredSignature)

	require.NoError(t, env.Submit(wallet, []solana.Instruction{system.Assign(walletKey, owner)}))
	assert.Equal(t, owner, env.AccountInfo(walletKey).Owner)

	// Once assigned, the system program can no longer move its lamports
	err = env.Submit(wallet, []solana.Instruction{
		system.Transfer(walletKey, testutil.GenerateSolanaKeys(t, 1)[0], 1),
	})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorExternalAccountLamportSpend)
}

func TestToken_Transfer(t *testing.T) {
	env := ledgertest.NewEnv(t)

	issuer := env.NewFundedWallet()
	issuerKey := issuer.Public().(ed25519.PublicKey)
	owner := env.NewFundedWallet()
	ownerKey := owner.Public().(ed25519.PublicKey)
	receiverKey := testutil.GenerateSolanaKeys(t, 1)[0]

	mint := env.CreateMint(issuer, issuerKey, 2)
	source := env.CreateAssociatedAccount(issuer, ownerKey, mint)
	dest := env.CreateAssociatedAccount(issuer, receiverKey, mint)
	env.MintTo(issuer, issuer, mint, source, 100)

	supply, err := token.NewClient(env.Ledger, mint).GetMint(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 100, supply.Supply)
	assert.EqualValues(t, 2, supply.Decimals)

	require.NoError(t, env.Submit(owner, []solana.Instruction{token.Transfer(source, dest, ownerKey, 40)}))
	assert.EqualValues(t, 60, env.TokenBalance(mint, source))
	assert.EqualValues(t, 40, env.TokenBalance(mint, dest))

	err = env.Submit(owner, []solana.Instruction{token.Transfer(source, dest, ownerKey, 61)})
	testutil.AssertInstructionError(t, err, 0, token.ErrorInsufficientFunds)

	// Only the owner may move tokens
	err = env.Submit(issuer, []solana.Instruction{token.Transfer(source, dest, issuerKey, 1)})
	testutil.AssertInstructionError(t, err, 0, token.ErrorOwnerMismatch)

	ix := token.Transfer(source, dest, ownerKey, 1)
	ix.Accounts[2].IsSigner = false
	err = env.Submit(issuer, []solana.Instruction{ix})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorMissingRequiredSignature)

	otherMint := env.CreateMint(issuer, issuerKey, 2)
	otherDest := env.CreateAssociatedAccount(issuer, receiverKey, otherMint)
	err = env.Submit(owner, []solana.Instruction{token.Transfer(source, otherDest, ownerKey, 1)})
	testutil.AssertInstructionError(t, err, 0, token.ErrorMintMismatch)

	assert.EqualValues(t, 60, env.TokenBalance(mint, source))
	assert.EqualValues(t, 40, env.TokenBalance(mint, dest))
}

func TestToken_MintTo(t *testing.T) {
	env := ledgertest.NewEnv(t)

	issuer := env.NewFundedWallet()
	issuerKey := issuer.Public().(ed25519.PublicKey)
	other := env.NewFundedWallet()
	otherKey := other.Public().(ed25519.PublicKey)

	mint := env.CreateMint(issuer, issuerKey, 0)
	dest := env.CreateAssociatedAccount(issuer, otherKey, mint)

	err := env.Submit(other, []solana.Instruction{token.MintTo(mint, dest, otherKey, 1)})
	testutil.AssertInstructionError(t, err, 0, token.ErrorOwnerMismatch)

	// Revoking the mint authority fixes the supply
	require.NoError(t, env.Submit(issuer, []solana.Instruction{
		token.SetAuthority(mint, issuerKey, nil, token.AuthorityTypeMintTokens),
	}))
	err = env.Submit(issuer, []solana.Instruction{token.MintTo(mint, dest, issuerKey, 1)})
	testutil.AssertInstructionError(t, err, 0, token.ErrorFixedSupply)
}

func TestToken_InitializeMint(t *testing.T) {
	env := ledgertest.NewEnv(t)
	ctx := context.Background()

	payer := env.NewFundedWallet()
	payerKey := payer.Public().(ed25519.PublicKey)
	mint := testutil.GenerateSolanaKeypair(t)
	mintKey := mint.Public().(ed25519.PublicKey)

	minimum := env.Ledger.Rent(ctx).MinimumBalance(token.MintSize)

	err := env.Submit(payer, []solana.Instruction{
		system.CreateAccount(payerKey, mintKey, token.ProgramKey, minimum-1, token.MintSize),
		token.InitializeMint(mintKey, payerKey, nil, 0),
	}, mint)
	testutil.AssertInstructionError(t, err, 1, token.ErrorNotRentExempt)

	require.NoError(t, env.Submit(payer, []solana.Instruction{
		system.CreateAccount(payerKey, mintKey, token.ProgramKey, minimum, token.MintSize),
		token.InitializeMint(mintKey, payerKey, nil, 0),
	}, mint))

	err = env.Submit(payer, []solana.Instruction{token.InitializeMint(mintKey, payerKey, nil, 0)})
	testutil.AssertInstructionError(t, err, 0, token.ErrorAlreadyInUse)
}

func TestToken_CloseAccount(t *testing.T) {
	env := ledgertest.NewEnv(t)
	ctx := context.Background()

	issuer := env.NewFundedWallet()
	issuerKey := issuer.Public().(ed25519.PublicKey)
	owner := env.NewFundedWallet()
	ownerKey := owner.Public().(ed25519.PublicKey)

	mint := env.CreateMint(issuer, issuerKey, 0)
	account := env.CreateAssociatedAccount(issuer, ownerKey, mint)
	drain := env.CreateAssociatedAccount(issuer, issuerKey, mint)
	env.MintTo(issuer, issuer, mint, account, 5)

	err := env.Submit(owner, []solana.Instruction{token.CloseAccount(account, ownerKey, ownerKey)})
	testutil.AssertInstructionError(t, err, 0, token.ErrorNonNativeHasBalance)

	require.NoError(t, env.Submit(owner, []solana.Instruction{token.Transfer(account, drain, ownerKey, 5)}))

	err = env.Submit(issuer, []solana.Instruction{token.CloseAccount(account, issuerKey, issuerKey)})
	testutil.AssertInstructionError(t, err, 0, token.ErrorOwnerMismatch)

	reserve := env.Ledger.Rent(ctx).MinimumBalance(token.AccountSize)

	require.NoError(t, env.Submit(owner, []solana.Instruction{token.CloseAccount(account, ownerKey, ownerKey)}))
	assert.False(t, env.Exists(account))
	assert.Equal(t, ledgertest.DefaultAirdrop+reserve, env.Lamports(ownerKey))
	assert.EqualValues(t, 5, env.TokenBalance(mint, drain))
}

func TestToken_SetAuthority(t *testing.T) {
	env := ledgertest.NewEnv(t)

	issuer := env.NewFundedWallet()
	issuerKey := issuer.Public().(ed25519.PublicKey)
	owner := env.NewFundedWallet()
	ownerKey := owner.Public().(ed25519.PublicKey)
	next := env.NewFundedWallet()
	nextKey := next.Public().(ed25519.PublicKey)

	mint := env.CreateMint(issuer, issuerKey, 0)
	account := env.CreateAssociatedAccount(issuer, ownerKey, mint)
	dest := env.CreateAssociatedAccount(issuer, issuerKey, mint)
	env.MintTo(issuer, issuer, mint, account, 5)

	require.NoError(t, env.Submit(owner, []solana.Instruction{
		token.SetAuthority(account, ownerKey, nextKey, token.AuthorityTypeAccountHolder),
	}))

	err := env.Submit(owner, []solana.Instruction{token.Transfer(account, dest, ownerKey, 1)})
	testutil.AssertInstructionError(t, err, 0, token.ErrorOwnerMismatch)

	require.NoError(t, env.Submit(next, []solana.Instruction{token.Transfer(account, dest, nextKey, 1)}))
	assert.EqualValues(t, 1, env.TokenBalance(mint, dest))

	// A close authority replaces the owner for closing only
	require.NoError(t, env.Submit(next, []solana.Instruction{
		token.SetAuthority(account, nextKey, issuerKey, token.AuthorityTypeCloseAccount),
		token.Transfer(account, dest, nextKey, 4),
	}))
	err = env.Submit(next, []solana.Instruction{token.CloseAccount(account, nextKey, nextKey)})
	testutil.AssertInstructionError(t, err, 0, token.ErrorOwnerMismatch)
	require.NoError(t, env.Submit(issuer, []solana.Instruction{token.CloseAccount(account, issuerKey, issuerKey)}))
	assert.False(t, env.Exists(account))
}

func TestAssociated_Create(t *testing.T) {
	env := ledgertest.NewEnv(t)

	payer := env.NewFundedWallet()
	payerKey := payer.Public().(ed25519.PublicKey)
	wallet := testutil.GenerateSolanaKeys(t, 1)[0]
	mint := env.CreateMint(payer, payerKey, 0)

	address := env.CreateAssociatedAccount(payer, wallet, mint)

	account, err := token.NewClient(env.Ledger, mint).GetAccount(context.Background(), address)
	require.NoError(t, err)
	assert.Equal(t, wallet, account.Owner)
	assert.Equal(t, mint, account.Mint)
	assert.Zero(t, account.Amount)

	ix, _, err := token.CreateAssociatedTokenAccount(payerKey, wallet, mint)
	require.NoError(t, err)
	err = env.Submit(payer, []solana.Instruction{ix})
	testutil.AssertInstructionError(t, err, 0, system.ErrAccountAlreadyInUse)

	ix, _, err = token.CreateAssociatedTokenAccountIdempotent(payerKey, wallet, mint)
	require.NoError(t, err)
	require.NoError(t, env.Submit(payer, []solana.Instruction{ix}))

	// Only the derived address can be created
	other := testutil.GenerateSolanaKeys(t, 1)[0]
	ix, _, err = token.CreateAssociatedTokenAccount(payerKey, other, mint)
	require.NoError(t, err)
	ix.Accounts[1].PublicKey = testutil.GenerateSolanaKeys(t, 1)[0]
	err = env.Submit(payer, []solana.Instruction{ix})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorInvalidSeeds)

	// The mint has to belong to the token program
	ix, _, err = token.CreateAssociatedTokenAccount(payerKey, other, wallet)
	require.NoError(t, err)
	err = env.Submit(payer, []solana.Instruction{ix})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorIncorrectProgramID)
}

func TestMemo(t *testing.T) {
	env := ledgertest.NewEnv(t)

	payer := env.NewFundedWallet()
	payerKey := payer.Public().(ed25519.PublicKey)
	to := testutil.GenerateSolanaKeys(t, 1)[0]

	require.NoError(t, env.Submit(payer, []solana.Instruction{
		memo.Instruction("escrow deposit", payerKey),
		system.Transfer(payerKey, to, 1_000_000),
	}))
	assert.EqualValues(t, 1_000_000, env.Lamports(to))

	invalid := memo.Instruction("")
	invalid.Data = []byte{0xff, 0xfe}
	err := env.Submit(payer, []solana.Instruction{invalid})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorInvalidInstructionData)

	// Listed accounts have to sign
	unsigned := memo.Instruction("unsigned", to)
	unsigned.Accounts[0].IsSigner = false
	err = env.Submit(payer, []solana.Instruction{
		system.Transfer(payerKey, to, 1_000_000),
		unsigned,
	})
	testutil.AssertInstructionError(t, err, 1, solana.InstructionErrorMissingRequiredSignature)
	assert.EqualValues(t, 1_000_000, env.Lamports(to))
}

func TestComputeBudget(t *testing.T) {
	env := ledgertest.NewEnv(t)

	payer := env.NewFundedWallet()
	payerKey := payer.Public().(ed25519.PublicKey)
	to := testutil.GenerateSolanaKeys(t, 1)[0]

	require.NoError(t, env.Submit(payer, []solana.Instruction{
		compute_budget.SetComputeUnitLimit(200_000),
		compute_budget.SetComputeUnitPrice(1_000),
		system.Transfer(payerKey, to, 1_000_000),
	}))
	assert.EqualValues(t, 1_000_000, env.Lamports(to))
	assert.EqualValues(t, ledgertest.DefaultAirdrop-1_000_000, env.Lamports(payerKey))

	err := env.Submit(payer, []solana.Instruction{
		compute_budget.SetComputeUnitLimit(compute_budget.MaxComputeUnitLimit + 1),
	})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorInvalidInstructionData)

	err = env.Submit(payer, []solana.Instruction{
		solana.NewInstruction(compute_budget.ProgramKey, []byte{byte(compute_budget.CommandRequestUnits)}),
	})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorInvalidInstructionData)
}
