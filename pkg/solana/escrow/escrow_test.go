package escrow

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/token"
)

func TestEscrowAddress(t *testing.T) {
	keys := generateKeys(t, 2)
	maker, other := keys[0], keys[1]

	address, bump, err := GetEscrowAddress(&GetEscrowAddressArgs{Maker: maker})
	require.NoError(t, err)

	again, againBump, err := GetEscrowAddress(&GetEscrowAddressArgs{Program: PROGRAM_ID, Maker: maker})
	require.NoError(t, err)
	assert.EqualValues(t, address, again)
	assert.Equal(t, bump, againBump)

	derived, err := CreateEscrowAddress(nil, maker, bump)
	require.NoError(t, err)
	assert.EqualValues(t, address, derived)
	assert.True(t, solana.VerifyProgramAddress(address, PROGRAM_ID, EscrowSeeds(maker, bump)...))

	forOther, _, err := GetEscrowAddress(&GetEscrowAddressArgs{Maker: other})
	require.NoError(t, err)
	assert.NotEqual(t, address, forOther)

	otherProgram, _, err := GetEscrowAddress(&GetEscrowAddressArgs{Program: other, Maker: maker})
	require.NoError(t, err)
	assert.NotEqual(t, address, otherProgram)

	vault, err := GetVaultAddress(&GetVaultAddressArgs{Escrow: address, MintX: other})
	require.NoError(t, err)
	expectedVault, err := token.GetAssociatedAccount(address, other)
	require.NoError(t, err)
	assert.EqualValues(t, expectedVault, vault)
}

func TestEscrowAccount_Layout(t *testing.T) {
	keys := generateKeys(t, 3)

	account := &EscrowAccount{
		Maker:  keys[0],
		MintX:  keys[1],
		MintY:  keys[2],
		Amount: 0x0102030405060708,
		Bump:   254,
	}

	data := account.Marshal()
	require.Len(t, data, EscrowAccountSize)
	assert.EqualValues(t, 105, EscrowAccountSize)
	assert.EqualValues(t, keys[0], data[0:32])
	assert.EqualValues(t, keys[1], data[32:64])
	assert.EqualValues(t, keys[2], data[64:96])
	assert.Equal(t, []byte{8, 7, 6, 5, 4, 3, 2, 1}, data[96:104])
	assert.EqualValues(t, 254, data[104])

	var decoded EscrowAccount
	require.NoError(t, decoded.Unmarshal(data))
	assert.Equal(t, account, &decoded)
	assert.Contains(t, decoded.String(), "amount=72623859790382856")

	for _, size := range []int{0, 1, EscrowAccountSize - 1, EscrowAccountSize + 1} {
		assert.Equal(t, ErrInvalidAccountData, decoded.Unmarshal(make([]byte, size)))
	}
}

func TestParseInstructionType(t *testing.T) {
	for _, tc := range []struct {
		data     []byte
		expected InstructionType
		payload  []byte
	}{
		{[]byte{0, 9}, InstructionTypeMake, []byte{9}},
		{[]byte{1}, InstructionTypeTake, []byte{}},
		{[]byte{2, 1, 2}, InstructionTypeRefund, []byte{1, 2}},
	} {
		actual, payload, err := ParseInstructionType(tc.data)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, actual)
		assert.Equal(t, tc.payload, payload)
	}

	for _, data := range [][]byte{nil, {}, {3}, {0xff, 0}} {
		_, _, err := ParseInstructionType(data)
		assert.Equal(t, ErrInvalidInstructionData, err)
	}

	assert.Equal(t, "take", InstructionTypeTake.String())
	assert.Equal(t, "unknown", InstructionType(9).String())
}

func TestParseMakeInstructionArgs(t *testing.T) {
	full := []byte{
		253,
		10, 0, 0, 0, 0, 0, 0, 0,
		20, 0, 0, 0, 0, 0, 0, 0,
	}
	args, err := ParseMakeInstructionArgs(full)
	require.NoError(t, err)
	assert.EqualValues(t, 253, args.Bump)
	assert.EqualValues(t, 10, args.AmountWanted)
	assert.EqualValues(t, 20, args.AmountOffered)

	args, err = ParseMakeInstructionArgs(append(full, 0xff))
	require.NoError(t, err)
	assert.EqualValues(t, 20, args.AmountOffered)

	args, err = ParseMakeInstructionArgs(full[:LegacyMakeInstructionArgsSize])
	require.NoError(t, err)
	assert.EqualValues(t, 253, args.Bump)
	assert.EqualValues(t, 10, args.AmountWanted)
	assert.EqualValues(t, 10, args.AmountOffered)

	for _, size := range []int{0, 1, 8} {
		_, err = ParseMakeInstructionArgs(full[:size])
		assert.Equal(t, ErrInvalidInstructionData, err, "size %d", size)
	}

	// Between the legacy and full forms nothing decodes
	for size := LegacyMakeInstructionArgsSize + 1; size < MakeInstructionArgsSize; size++ {
		_, err = ParseMakeInstructionArgs(full[:size])
		assert.Equal(t, ErrInvalidInstructionData, err, "size %d", size)
	}
}

func TestMakeInstruction(t *testing.T) {
	keys := generateKeys(t, 6)

	accounts := &MakeInstructionAccounts{
		Maker:     keys[0],
		MintX:     keys[1],
		MintY:     keys[2],
		MakerAtaX: keys[3],
		Vault:     keys[4],
		Escrow:    keys[5],
	}
	args := &MakeInstructionArgs{Bump: 250, AmountWanted: 7, AmountOffered: 9}

	ix := NewMakeInstruction(accounts, args)
	assert.EqualValues(t, PROGRAM_ID, ix.Program)
	require.Len(t, ix.Data, 1+MakeInstructionArgsSize)
	assert.EqualValues(t, InstructionTypeMake, ix.Data[0])

	require.Len(t, ix.Accounts, 8)
	assert.True(t, ix.Accounts[0].IsSigner)
	for i := 1; i < len(ix.Accounts); i++ {
		assert.False(t, ix.Accounts[i].IsSigner, "account %d", i)
	}
	for _, i := range []int{0, 3, 4, 5} {
		assert.True(t, ix.Accounts[i].IsWritable, "account %d", i)
	}
	for _, i := range []int{1, 2, 6, 7} {
		assert.False(t, ix.Accounts[i].IsWritable, "account %d", i)
	}
	assert.EqualValues(t, SYSTEM_PROGRAM_ID, ix.Accounts[6].PublicKey)
	assert.EqualValues(t, SPL_TOKEN_PROGRAM_ID, ix.Accounts[7].PublicKey)

	decompiled, err := DecompileMake(solana.NewTransaction(keys[0], ix).Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, PROGRAM_ID, decompiled.Program)
	assert.Equal(t, *args, decompiled.Args)
	assert.EqualValues(t, keys[0], decompiled.Maker)
	assert.EqualValues(t, keys[1], decompiled.MintX)
	assert.EqualValues(t, keys[2], decompiled.MintY)
	assert.EqualValues(t, keys[3], decompiled.MakerAtaX)
	assert.EqualValues(t, keys[4], decompiled.Vault)
	assert.EqualValues(t, keys[5], decompiled.Escrow)

	_, err = DecompileTake(solana.NewTransaction(keys[0], ix).Message, 0)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)
	_, err = DecompileMake(solana.NewTransaction(keys[0], ix).Message, 1)
	assert.Error(t, err)
}

func TestTakeInstruction(t *testing.T) {
	keys := generateKeys(t, 10)

	ix := NewTakeInstruction(&TakeInstructionAccounts{
		Program:   keys[9],
		Taker:     keys[0],
		Maker:     keys[1],
		MintX:     keys[2],
		MintY:     keys[3],
		TakerAtaX: keys[4],
		TakerAtaY: keys[5],
		MakerAtaY: keys[6],
		Vault:     keys[7],
		Escrow:    keys[8],
	})
	assert.EqualValues(t, keys[9], ix.Program)
	assert.Equal(t, []byte{byte(InstructionTypeTake)}, ix.Data)
	require.Len(t, ix.Accounts, 11)
	assert.True(t, ix.Accounts[0].IsSigner)
	assert.False(t, ix.Accounts[8].IsSigner)
	assert.True(t, ix.Accounts[8].IsWritable)

	decompiled, err := DecompileTake(solana.NewTransaction(keys[0], ix).Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, keys[9], decompiled.Program)
	assert.EqualValues(t, keys[0], decompiled.Taker)
	assert.EqualValues(t, keys[1], decompiled.Maker)
	assert.EqualValues(t, keys[6], decompiled.MakerAtaY)
	assert.EqualValues(t, keys[7], decompiled.Vault)
	assert.EqualValues(t, keys[8], decompiled.Escrow)
}

func TestRefundInstruction(t *testing.T) {
	keys := generateKeys(t, 5)

	ix := NewRefundInstruction(&RefundInstructionAccounts{
		Maker:     keys[0],
		MintX:     keys[1],
		MakerAtaX: keys[2],
		Vault:     keys[3],
		Escrow:    keys[4],
	})
	assert.Equal(t, []byte{byte(InstructionTypeRefund)}, ix.Data)
	require.Len(t, ix.Accounts, 7)
	assert.True(t, ix.Accounts[0].IsSigner)
	assert.True(t, ix.Accounts[0].IsWritable)

	decompiled, err := DecompileRefund(solana.NewTransaction(keys[0], ix).Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, keys[0], decompiled.Maker)
	assert.EqualValues(t, keys[1], decompiled.MintX)
	assert.EqualValues(t, keys[2], decompiled.MakerAtaX)
	assert.EqualValues(t, keys[3], decompiled.Vault)
	assert.EqualValues(t, keys[4], decompiled.Escrow)
}

func generateKeys(t *testing.T, amount int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, amount)
	for i := range keys {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = pub
	}
	return keys
}
