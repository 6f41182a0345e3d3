package testutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-escrow/pkg/solana"
)

// AssertInstructionError verifies that err is a transaction error raised by
// the instruction at index, and that the instruction failed with expected.
func AssertInstructionError(t *testing.T, err error, index int, expected error) {
	require.Error(t, err)

	var txErr *solana.TransactionError
	require.True(t, errors.As(err, &txErr), "not a transaction error: %v", err)
	assert.Equal(t, solana.TransactionErrorInstructionError, txErr.ErrorKey())

	instructionErr := txErr.InstructionError()
	require.NotNil(t, instructionErr)
	assert.Equal(t, index, instructionErr.Index)
	assert.True(t, errors.Is(err, expected), "expected %v, got %v", expected, instructionErr.Err)
}

// AssertTransactionError verifies that err is a transaction level error with
// the provided key.
func AssertTransactionError(t *testing.T, err error, key solana.TransactionErrorKey) {
	require.Error(t, err)

	var txErr *solana.TransactionError
	require.True(t, errors.As(err, &txErr), "not a transaction error: %v", err)
	assert.Equal(t, key, txErr.ErrorKey())
}
