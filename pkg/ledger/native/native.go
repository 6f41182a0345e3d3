// Package native implements the builtin programs every ledger runs: the
// system program, the token program, and the associated token account
// program, along with the memo and compute budget programs clients attach
// to their transactions.
package native

import (
	"github.com/code-payments/code-escrow/pkg/ledger"
	compute_budget "github.com/code-payments/code-escrow/pkg/solana/computebudget"
	"github.com/code-payments/code-escrow/pkg/solana/memo"
	"github.com/code-payments/code-escrow/pkg/solana/system"
	"github.com/code-payments/code-escrow/pkg/solana/token"
)

// Programs returns the options registering every builtin program.
func Programs() []ledger.Option {
	return []ledger.Option{
		ledger.WithProgram(system.ProgramKey[:], NewSystemProgram()),
		ledger.WithProgram(token.ProgramKey, NewTokenProgram()),
		ledger.WithProgram(token.AssociatedTokenAccountProgramKey, NewAssociatedTokenProgram()),
		ledger.WithProgram(memo.ProgramKey, NewMemoProgram()),
		ledger.WithProgram(compute_budget.ProgramKey, NewComputeBudgetProgram()),
	}
}
