package escrow_test

import (
	"context"
	"crypto/ed25519"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-escrow/pkg/escrow"
	"github.com/code-payments/code-escrow/pkg/ledger"
	"github.com/code-payments/code-escrow/pkg/ledger/ledgertest"
	"github.com/code-payments/code-escrow/pkg/solana"
	escrow_program "github.com/code-payments/code-escrow/pkg/solana/escrow"
	"github.com/code-payments/code-escrow/pkg/solana/system"
	"github.com/code-payments/code-escrow/pkg/solana/token"
	"github.com/code-payments/code-escrow/pkg/testutil"
)

const (
	initialX = 5_000_000
	initialY = 3_000_000
)

type testEnv struct {
	*ledgertest.Env

	program *escrow.Program
	issuer  ed25519.PrivateKey

	maker    ed25519.PrivateKey
	makerKey ed25519.PublicKey
	taker    ed25519.PrivateKey
	takerKey ed25519.PublicKey

	mintX ed25519.PublicKey
	mintY ed25519.PublicKey

	makerAtaX ed25519.PublicKey
	makerAtaY ed25519.PublicKey
	takerAtaX ed25519.PublicKey
	takerAtaY ed25519.PublicKey

	escrow ed25519.PublicKey
	bump   uint8
	vault  ed25519.PublicKey
}

// setup funds a maker holding mint X and a taker holding mint Y, and creates
// the vault the maker's escrow will use.
func setup(t *testing.T) *testEnv {
	program := escrow.New(nil)

	env := &testEnv{
		Env:     ledgertest.NewEnv(t, program.Option()),
		program: program,
	}

	env.issuer = env.NewFundedWallet()
	issuerKey := env.issuer.Public().(ed25519.PublicKey)

	env.maker = env.NewFundedWallet()
	env.makerKey = env.maker.Public().(ed25519.PublicKey)
	env.taker = env.NewFundedWallet()
	env.takerKey = env.taker.Public().(ed25519.PublicKey)

	env.mintX = env.CreateMint(env.issuer, issuerKey, 6)
	env.mintY = env.CreateMint(env.issuer, issuerKey, 6)

	env.makerAtaX = env.CreateAssociatedAccount(env.issuer, env.makerKey, env.mintX)
	env.makerAtaY = env.CreateAssociatedAccount(env.issuer, env.makerKey, env.mintY)
	env.takerAtaX = env.CreateAssociatedAccount(env.issuer, env.takerKey, env.mintX)
	env.takerAtaY = env.CreateAssociatedAccount(env.issuer, env.takerKey, env.mintY)

	env.MintTo(env.issuer, env.issuer, env.mintX, env.makerAtaX, initialX)
	env.MintTo(env.issuer, env.issuer, env.mintY, env.takerAtaY, initialY)

	var err error
	env.escrow, env.bump, err = escrow_program.GetEscrowAddress(&escrow_program.GetEscrowAddressArgs{
		Program: program.ID(),
		Maker:   env.makerKey,
	})
	require.NoError(t, err)

	env.vault = env.CreateAssociatedAccount(env.issuer, env.escrow, env.mintX)
	expectedVault, err := escrow_program.GetVaultAddress(&escrow_program.GetVaultAddressArgs{
		Escrow: env.escrow,
		MintX:  env.mintX,
	})
	require.NoError(t, err)
	require.Equal(t, expectedVault, env.vault)

	return env
}

func (e *testEnv) makeAccounts() *escrow_program.MakeInstructionAccounts {
	return &escrow_program.MakeInstructionAccounts{
		Program:   e.program.ID(),
		Maker:     e.makerKey,
		MintX:     e.mintX,
		MintY:     e.mintY,
		MakerAtaX: e.makerAtaX,
		Vault:     e.vault,
		Escrow:    e.escrow,
	}
}

func (e *testEnv) makeIx(amountWanted, amountOffered uint64) solana.Instruction {
	return escrow_program.NewMakeInstruction(e.makeAccounts(), &escrow_program.MakeInstructionArgs{
		Bump:          e.bump,
		AmountWanted:  amountWanted,
		AmountOffered: amountOffered,
	})
}

func (e *testEnv) takeAccounts() *escrow_program.TakeInstructionAccounts {
	return &escrow_program.TakeInstructionAccounts{
		Program:   e.program.ID(),
		Taker:     e.takerKey,
		Maker:     e.makerKey,
		MintX:     e.mintX,
		MintY:     e.mintY,
		TakerAtaX: e.takerAtaX,
		TakerAtaY: e.takerAtaY,
		MakerAtaY: e.makerAtaY,
		Vault:     e.vault,
		Escrow:    e.escrow,
	}
}

func (e *testEnv) takeIx() solana.Instruction {
	return escrow_program.NewTakeInstruction(e.takeAccounts())
}

func (e *testEnv) refundAccounts() *escrow_program.RefundInstructionAccounts {
	return &escrow_program.RefundInstructionAccounts{
		Program:   e.program.ID(),
		Maker:     e.makerKey,
		MintX:     e.mintX,
		MakerAtaX: e.makerAtaX,
		Vault:     e.vault,
		Escrow:    e.escrow,
	}
}

func (e *testEnv) refundIx() solana.Instruction {
	return escrow_program.NewRefundInstruction(e.refundAccounts())
}

func (e *testEnv) make(t *testing.T, amountWanted, amountOffered uint64) {
	require.NoError(t, e.Submit(e.maker, []solana.Instruction{e.makeIx(amountWanted, amountOffered)}))
}

type balances struct {
	makerX, makerY, takerX, takerY, vault uint64
	makerLamports                        uint64
}

func (e *testEnv) balances() balances {
	b := balances{
		makerX:        e.TokenBalance(e.mintX, e.makerAtaX),
		makerY:        e.TokenBalance(e.mintY, e.makerAtaY),
		takerX:        e.TokenBalance(e.mintX, e.takerAtaX),
		takerY:        e.TokenBalance(e.mintY, e.takerAtaY),
		makerLamports: e.Lamports(e.makerKey),
	}
	if e.Exists(e.vault) {
		b.vault = e.TokenBalance(e.mintX, e.vault)
	}
	return b
}

func (e *testEnv) record(t *testing.T) *escrow_program.EscrowAccount {
	info := e.AccountInfo(e.escrow)
	require.EqualValues(t, e.program.ID(), info.Owner)

	var record escrow_program.EscrowAccount
	require.NoError(t, record.Unmarshal(info.Data))
	return &record
}

func TestMake(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	before := env.balances()
	assert.Zero(t, before.vault)
	assert.False(t, env.Exists(env.escrow))

	env.make(t, 1_500_000, 1_000_000)

	after := env.balances()
	assert.EqualValues(t, 1_000_000, after.vault)
	assert.EqualValues(t, initialX-1_000_000, after.makerX)
	assert.Equal(t, before.takerY, after.takerY)

	record := env.record(t)
	assert.Equal(t, env.makerKey, record.Maker)
	assert.Equal(t, env.mintX, record.MintX)
	assert.Equal(t, env.mintY, record.MintY)
	assert.EqualValues(t, 1_500_000, record.Amount)
	assert.Equal(t, env.bump, record.Bump)

	reserve := env.Ledger.Rent(ctx).MinimumBalance(escrow_program.EscrowAccountSize)
	assert.Equal(t, reserve, env.Lamports(env.escrow))
	assert.Equal(t, before.makerLamports-reserve, after.makerLamports)

	info := env.AccountInfo(env.escrow)
	assert.Len(t, info.Data, escrow_program.EscrowAccountSize)
}

func TestMake_LegacyPayload(t *testing.T) {
	env := setup(t)

	ix := env.makeIx(0, 0)
	ix.Data = ix.Data[:1+escrow_program.LegacyMakeInstructionArgsSize]
	ix.Data[2] = 0x40 // amount of 0x0f4240 = 1,000,000
	ix.Data[3] = 0x42
	ix.Data[4] = 0x0f

	require.NoError(t, env.Submit(env.maker, []solana.Instruction{ix}))

	assert.EqualValues(t, 1_000_000, env.TokenBalance(env.mintX, env.vault))
	assert.EqualValues(t, 1_000_000, env.record(t).Amount)
}

func TestMake_AlreadyOpen(t *testing.T) {
	env := setup(t)

	env.make(t, 1_000_000, 1_000_000)
	before := env.balances()

	err := env.Submit(env.maker, []solana.Instruction{env.makeIx(1_000_000, 1_000_000)})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorAccountAlreadyInitialized)
	assert.Equal(t, escrow.RejectionStateConflict, escrow.Classify(err))

	assert.Equal(t, before, env.balances())
	assert.EqualValues(t, 1_000_000, env.record(t).Amount)
}

func TestMake_DerivedAddressMismatch(t *testing.T) {
	env := setup(t)

	// A bump that isn't the one the address was derived with
	ix := env.makeIx(1_000_000, 1_000_000)
	ix.Data[1] = env.bump - 1
	err := env.Submit(env.maker, []solana.Instruction{ix})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorInvalidSeeds)
	assert.Equal(t, escrow.RejectionUnauthorized, escrow.Classify(err))

	// Another maker's escrow
	otherEscrow, otherBump, err := escrow_program.GetEscrowAddress(&escrow_program.GetEscrowAddressArgs{
		Program: env.program.ID(),
		Maker:   env.takerKey,
	})
	require.NoError(t, err)

	accounts := env.makeAccounts()
	accounts.Escrow = otherEscrow
	ix = escrow_program.NewMakeInstruction(accounts, &escrow_program.MakeInstructionArgs{
		Bump:          otherBump,
		AmountWanted:  1_000_000,
		AmountOffered: 1_000_000,
	})
	err = env.Submit(env.maker, []solana.Instruction{ix})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorInvalidSeeds)

	assert.False(t, env.Exists(env.escrow))
	assert.False(t, env.Exists(otherEscrow))
	assert.EqualValues(t, initialX, env.TokenBalance(env.mintX, env.makerAtaX))
}

func TestMake_InvalidInstructionData(t *testing.T) {
	env := setup(t)

	for _, data := range [][]byte{
		{},
		{3},
		{0},
		{0, env.bump},
		{0, env.bump, 1, 0, 0, 0, 0, 0, 0},
		{0, env.bump, 1, 0, 0, 0, 0, 0, 0, 0, 1},
	} {
		ix := env.makeIx(1, 1)
		ix.Data = data

		err := env.Submit(env.maker, []solana.Instruction{ix})
		testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorInvalidInstructionData)
		assert.Equal(t, escrow.RejectionMalformed, escrow.Classify(err))
	}

	for _, amounts := range [][2]uint64{{0, 1}, {1, 0}} {
		err := env.Submit(env.maker, []solana.Instruction{env.makeIx(amounts[0], amounts[1])})
		testutil.AssertInstructionError(t, err, 0, escrow.ErrInvalidAmount)
		assert.Equal(t, escrow.RejectionMalformed, escrow.Classify(err))
	}

	ix := env.makeIx(1, 1)
	ix.Accounts = ix.Accounts[:5]
	err := env.Submit(env.maker, []solana.Instruction{ix})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorNotEnoughAccountKeys)

	assert.False(t, env.Exists(env.escrow))
}

func TestMake_MissingSignature(t *testing.T) {
	env := setup(t)

	ix := env.makeIx(1_000_000, 1_000_000)
	ix.Accounts[0].IsSigner = false

	err := env.Submit(env.taker, []solana.Instruction{ix})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorMissingRequiredSignature)
	assert.Equal(t, escrow.RejectionUnauthorized, escrow.Classify(err))
}

func TestMake_InvalidMint(t *testing.T) {
	env := setup(t)

	accounts := env.makeAccounts()
	accounts.MintY = env.takerKey
	ix := escrow_program.NewMakeInstruction(accounts, &escrow_program.MakeInstructionArgs{
		Bump:          env.bump,
		AmountWanted:  1,
		AmountOffered: 1,
	})

	err := env.Submit(env.maker, []solana.Instruction{ix})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorIncorrectProgramID)

	// A token account isn't a mint
	accounts.MintY = env.takerAtaY
	ix = escrow_program.NewMakeInstruction(accounts, &escrow_program.MakeInstructionArgs{
		Bump:          env.bump,
		AmountWanted:  1,
		AmountOffered: 1,
	})

	err = env.Submit(env.maker, []solana.Instruction{ix})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorInvalidAccountData)
}

func TestMake_InvalidVault(t *testing.T) {
	env := setup(t)

	// Held by the taker rather than the escrow
	accounts := env.makeAccounts()
	accounts.Vault = env.takerAtaX
	ix := escrow_program.NewMakeInstruction(accounts, &escrow_program.MakeInstructionArgs{
		Bump:          env.bump,
		AmountWanted:  1,
		AmountOffered: 1,
	})
	err := env.Submit(env.maker, []solana.Instruction{ix})
	testutil.AssertInstructionError(t, err, 0, escrow.ErrVaultAuthorityMismatch)
	assert.Equal(t, escrow.RejectionUnauthorized, escrow.Classify(err))

	// Held by the escrow, but for the wanted mint
	accounts.Vault = env.CreateAssociatedAccount(env.issuer, env.escrow, env.mintY)
	ix = escrow_program.NewMakeInstruction(accounts, &escrow_program.MakeInstructionArgs{
		Bump:          env.bump,
		AmountWanted:  1,
		AmountOffered: 1,
	})
	err = env.Submit(env.maker, []solana.Instruction{ix})
	testutil.AssertInstructionError(t, err, 0, escrow.ErrVaultMintMismatch)

	assert.False(t, env.Exists(env.escrow))
}

func TestMake_DepositFailureRollsBack(t *testing.T) {
	env := setup(t)

	before := env.balances()

	err := env.Submit(env.maker, []solana.Instruction{env.makeIx(1, initialX+1)})
	testutil.AssertInstructionError(t, err, 0, token.ErrorInsufficientFunds)
	assert.Equal(t, escrow.RejectionCollaborator, escrow.Classify(err))

	assert.False(t, env.Exists(env.escrow))
	assert.Equal(t, before, env.balances())
}

func TestTake(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	env.make(t, 1_000_000, 1_000_000)

	before := env.balances()
	assert.EqualValues(t, 1_000_000, before.vault)
	assert.Zero(t, before.takerX)

	require.NoError(t, env.Submit(env.taker, []solana.Instruction{env.takeIx()}))

	after := env.balances()
	assert.Equal(t, before.takerX+before.vault, after.takerX)
	assert.Equal(t, before.makerY+1_000_000, after.makerY)
	assert.Equal(t, before.takerY-1_000_000, after.takerY)
	assert.Equal(t, before.makerX, after.makerX)

	assert.False(t, env.Exists(env.vault))
	assert.False(t, env.Exists(env.escrow))

	rent := env.Ledger.Rent(ctx)
	released := rent.MinimumBalance(escrow_program.EscrowAccountSize) + rent.MinimumBalance(token.AccountSize)
	assert.Equal(t, before.makerLamports+released, after.makerLamports)
	assert.EqualValues(t, ledgertest.DefaultAirdrop, env.Lamports(env.takerKey))
}

func TestTake_SettlesVaultBalance(t *testing.T) {
	env := setup(t)

	env.make(t, 1_000_000, 1_000_000)

	// Tokens sent to the vault after the escrow opened go to the taker too
	env.MintTo(env.issuer, env.issuer, env.mintX, env.vault, 250)

	require.NoError(t, env.Submit(env.taker, []solana.Instruction{env.takeIx()}))
	assert.EqualValues(t, 1_000_250, env.TokenBalance(env.mintX, env.takerAtaX))
}

func TestTake_EscrowMismatch(t *testing.T) {
	env := setup(t)

	env.make(t, 1_000_000, 1_000_000)
	before := env.balances()

	accounts := env.takeAccounts()
	accounts.MintX, accounts.MintY = env.mintY, env.mintX
	err := env.Submit(env.taker, []solana.Instruction{escrow_program.NewTakeInstruction(accounts)})
	testutil.AssertInstructionError(t, err, 0, escrow.ErrEscrowMismatch)
	assert.Equal(t, escrow.RejectionUnauthorized, escrow.Classify(err))

	assert.Equal(t, before, env.balances())
	assert.True(t, env.Exists(env.escrow))
}

func TestTake_WrongMaker(t *testing.T) {
	env := setup(t)

	env.make(t, 1_000_000, 1_000_000)
	before := env.balances()

	// The taker tries to collect the escrow's reserves
	accounts := env.takeAccounts()
	accounts.Maker = env.takerKey
	err := env.Submit(env.taker, []solana.Instruction{escrow_program.NewTakeInstruction(accounts)})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorInvalidSeeds)

	// The taker pays themselves instead of the maker
	accounts = env.takeAccounts()
	accounts.MakerAtaY = env.takerAtaY
	err = env.Submit(env.taker, []solana.Instruction{escrow_program.NewTakeInstruction(accounts)})
	testutil.AssertInstructionError(t, err, 0, escrow.ErrMakerAccountMismatch)

	assert.Equal(t, before, env.balances())
}

func TestTake_ForgedRecord(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	env.make(t, 1_000_000, 1_000_000)

	// A well formed record, owned by the program, but not at the maker's
	// derived address
	forged := testutil.GenerateSolanaKeys(t, 1)[0]
	record := &escrow_program.EscrowAccount{
		Maker:  env.makerKey,
		MintX:  env.mintX,
		MintY:  env.mintY,
		Amount: 1,
		Bump:   env.bump,
	}
	require.NoError(t, env.Ledger.SetAccount(ctx, forged, &solana.AccountInfo{
		Owner:    env.program.ID(),
		Lamports: 10_000_000,
		Data:     record.Marshal(),
	}))

	accounts := env.takeAccounts()
	accounts.Escrow = forged
	err := env.Submit(env.taker, []solana.Instruction{escrow_program.NewTakeInstruction(accounts)})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorInvalidSeeds)
	assert.Equal(t, escrow.RejectionUnauthorized, escrow.Classify(err))

	assert.EqualValues(t, 1_000_000, env.TokenBalance(env.mintX, env.vault))
}

func TestTake_InvalidRecordSize(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	require.NoError(t, env.Ledger.SetAccount(ctx, env.escrow, &solana.AccountInfo{
		Owner:    env.program.ID(),
		Lamports: 10_000_000,
		Data:     make([]byte, escrow_program.EscrowAccountSize-1),
	}))

	err := env.Submit(env.taker, []solana.Instruction{env.takeIx()})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorInvalidAccountData)

	err = env.Submit(env.maker, []solana.Instruction{env.refundIx()})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorInvalidAccountData)
}

func TestTake_InsufficientFunds(t *testing.T) {
	env := setup(t)

	env.make(t, initialY+1, 1_000_000)
	before := env.balances()

	err := env.Submit(env.taker, []solana.Instruction{env.takeIx()})
	testutil.AssertInstructionError(t, err, 0, token.ErrorInsufficientFunds)
	assert.Equal(t, escrow.RejectionCollaborator, escrow.Classify(err))

	assert.Equal(t, before, env.balances())
	assert.True(t, env.Exists(env.escrow))
}

func TestTake_MissingSignature(t *testing.T) {
	env := setup(t)

	env.make(t, 1_000_000, 1_000_000)

	ix := env.takeIx()
	ix.Accounts[0].IsSigner = false
	err := env.Submit(env.maker, []solana.Instruction{ix})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorMissingRequiredSignature)
}

func TestTake_Once(t *testing.T) {
	env := setup(t)

	env.make(t, 1_000_000, 1_000_000)
	require.NoError(t, env.Submit(env.taker, []solana.Instruction{env.takeIx()}))

	before := env.balances()

	err := env.Submit(env.taker, []solana.Instruction{env.takeIx()})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorUninitializedAccount)
	assert.Equal(t, escrow.RejectionStateConflict, escrow.Classify(err))

	err = env.Submit(env.maker, []solana.Instruction{env.refundIx()})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorUninitializedAccount)

	assert.Equal(t, before, env.balances())
}

func TestRefund(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	start := env.balances()

	env.make(t, 1_000_000, 1_000_000)
	require.NoError(t, env.Submit(env.maker, []solana.Instruction{env.refundIx()}))

	after := env.balances()
	assert.Equal(t, start.makerX, after.makerX)
	assert.Equal(t, start.takerY, after.takerY)
	assert.Zero(t, after.vault)

	assert.False(t, env.Exists(env.vault))
	assert.False(t, env.Exists(env.escrow))

	vaultReserve := env.Ledger.Rent(ctx).MinimumBalance(token.AccountSize)
	assert.Equal(t, start.makerLamports+vaultReserve, after.makerLamports)

	err := env.Submit(env.taker, []solana.Instruction{env.takeIx()})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorUninitializedAccount)
	assert.Equal(t, after, env.balances())
}

func TestRefund_SubmittedByAnyone(t *testing.T) {
	env := setup(t)

	start := env.balances()
	env.make(t, 1_000_000, 1_000_000)
	made := env.balances()

	ix := env.refundIx()
	ix.Accounts[0].IsSigner = false
	require.NoError(t, env.Submit(env.taker, []solana.Instruction{ix}))

	after := env.balances()
	assert.Equal(t, start.makerX, after.makerX)
	assert.Equal(t, start.takerX, after.takerX)
	assert.Zero(t, after.vault)
	assert.Greater(t, after.makerLamports, made.makerLamports)
	assert.False(t, env.Exists(env.escrow))
}

func TestRefund_MakerAccounts(t *testing.T) {
	env := setup(t)

	env.make(t, 1_000_000, 1_000_000)
	before := env.balances()

	// The taker signs as the maker, refunding into their own account
	accounts := env.refundAccounts()
	accounts.Maker = env.takerKey
	accounts.MakerAtaX = env.takerAtaX
	err := env.Submit(env.taker, []solana.Instruction{escrow_program.NewRefundInstruction(accounts)})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorInvalidSeeds)

	// The maker refunds into an account they don't hold
	accounts = env.refundAccounts()
	accounts.MakerAtaX = env.takerAtaX
	err = env.Submit(env.maker, []solana.Instruction{escrow_program.NewRefundInstruction(accounts)})
	testutil.AssertInstructionError(t, err, 0, escrow.ErrMakerAccountMismatch)

	accounts = env.refundAccounts()
	accounts.MintX = env.mintY
	err = env.Submit(env.maker, []solana.Instruction{escrow_program.NewRefundInstruction(accounts)})
	testutil.AssertInstructionError(t, err, 0, escrow.ErrEscrowMismatch)

	assert.Equal(t, before, env.balances())
}

func TestMake_AfterSettlement(t *testing.T) {
	env := setup(t)

	env.make(t, 1_000_000, 1_000_000)
	require.NoError(t, env.Submit(env.maker, []solana.Instruction{env.refundIx()}))

	// The vault was closed with the escrow, so it's recreated first
	env.CreateAssociatedAccount(env.issuer, env.escrow, env.mintX)
	env.make(t, 2_000_000, 500_000)

	assert.EqualValues(t, 500_000, env.TokenBalance(env.mintX, env.vault))
	assert.EqualValues(t, 2_000_000, env.record(t).Amount)
}

func TestSettlement_AtMostOnce(t *testing.T) {
	for i := 0; i < 5; i++ {
		env := setup(t)
		env.make(t, 1_000_000, 1_000_000)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		start := make(chan struct{})

		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			errs[0] = env.Submit(env.taker, []solana.Instruction{env.takeIx()})
		}()
		go func() {
			defer wg.Done()
			<-start
			errs[1] = env.Submit(env.maker, []solana.Instruction{env.refundIx()})
		}()
		close(start)
		wg.Wait()

		var succeeded int
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorUninitializedAccount)
			assert.Equal(t, escrow.RejectionStateConflict, escrow.Classify(err))
		}
		require.Equal(t, 1, succeeded)

		after := env.balances()
		assert.EqualValues(t, initialX, after.makerX+after.takerX)
		assert.False(t, env.Exists(env.escrow))
		assert.False(t, env.Exists(env.vault))

		if errs[0] == nil {
			assert.EqualValues(t, 1_000_000, after.takerX)
			assert.EqualValues(t, 1_000_000, after.makerY)
		} else {
			assert.EqualValues(t, initialX, after.makerX)
			assert.Zero(t, after.makerY)
		}
	}
}

func TestProcess_ForeignProgramID(t *testing.T) {
	program := escrow.New(nil)
	foreign := testutil.GenerateSolanaKeys(t, 1)[0]

	env := ledgertest.NewEnv(t, ledger.WithProgram(foreign, program))
	payer := env.NewFundedWallet()

	ix := solana.NewInstruction(foreign, []byte{byte(escrow_program.InstructionTypeTake)})
	err := env.Submit(payer, []solana.Instruction{ix})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorIncorrectProgramID)
}

func TestProcess_CustomProgramID(t *testing.T) {
	id := testutil.GenerateSolanaKeys(t, 1)[0]
	program := escrow.New(id)
	assert.Equal(t, id, program.ID())

	env := ledgertest.NewEnv(t, program.Option())
	maker := env.NewFundedWallet()
	makerKey := maker.Public().(ed25519.PublicKey)

	address, bump, err := escrow_program.GetEscrowAddress(&escrow_program.GetEscrowAddressArgs{
		Program: id,
		Maker:   makerKey,
	})
	require.NoError(t, err)

	defaultAddress, _, err := escrow_program.GetEscrowAddress(&escrow_program.GetEscrowAddressArgs{
		Maker: makerKey,
	})
	require.NoError(t, err)
	assert.NotEqual(t, defaultAddress, address)

	// The derived signer is scoped to the deployed identity, so the program
	// can create its escrow account.
	mint := env.CreateMint(maker, makerKey, 0)
	holding := env.CreateAssociatedAccount(maker, makerKey, mint)
	env.MintTo(maker, maker, mint, holding, 10)
	vault := env.CreateAssociatedAccount(maker, address, mint)

	ix := escrow_program.NewMakeInstruction(
		&escrow_program.MakeInstructionAccounts{
			Program:   id,
			Maker:     makerKey,
			MintX:     mint,
			MintY:     mint,
			MakerAtaX: holding,
			Vault:     vault,
			Escrow:    address,
		},
		&escrow_program.MakeInstructionArgs{
			Bump:          bump,
			AmountWanted:  10,
			AmountOffered: 10,
		},
	)
	require.NoError(t, env.Submit(maker, []solana.Instruction{ix}))

	info := env.AccountInfo(address)
	assert.EqualValues(t, id, info.Owner)
	assert.EqualValues(t, 10, env.TokenBalance(mint, vault))

	assert.EqualValues(t, system.ProgramKey[:], env.AccountInfo(makerKey).Owner)
}

func TestInstructions_ExactAccountCount(t *testing.T) {
	env := setup(t)

	extra := solana.NewReadonlyAccountMeta(env.takerAtaY, false)

	ix := env.makeIx(1_000_000, 1_000_000)
	ix.Accounts = append(ix.Accounts, extra)
	err := env.Submit(env.maker, []solana.Instruction{ix})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorNotEnoughAccountKeys)
	assert.Equal(t, escrow.RejectionMalformed, escrow.Classify(err))
	assert.False(t, env.Exists(env.escrow))

	env.make(t, 1_000_000, 1_000_000)
	before := env.balances()

	ix = env.takeIx()
	ix.Accounts = append(ix.Accounts, extra)
	err = env.Submit(env.taker, []solana.Instruction{ix})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorNotEnoughAccountKeys)

	ix = env.takeIx()
	ix.Accounts = ix.Accounts[:10]
	err = env.Submit(env.taker, []solana.Instruction{ix})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorNotEnoughAccountKeys)

	ix = env.refundIx()
	ix.Accounts = append(ix.Accounts, extra)
	err = env.Submit(env.maker, []solana.Instruction{ix})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorNotEnoughAccountKeys)

	ix = env.refundIx()
	ix.Accounts = ix.Accounts[:6]
	err = env.Submit(env.maker, []solana.Instruction{ix})
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorNotEnoughAccountKeys)

	assert.Equal(t, before, env.balances())
	assert.True(t, env.Exists(env.escrow))
}
