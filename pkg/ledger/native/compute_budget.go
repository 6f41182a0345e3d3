package native

import (
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-escrow/pkg/ledger"
	"github.com/code-payments/code-escrow/pkg/solana"
	compute_budget "github.com/code-payments/code-escrow/pkg/solana/computebudget"
)

type computeBudgetProgram struct{}

// NewComputeBudgetProgram returns the program that accepts compute unit limit
// and price requests. Requests are validated but have no effect since the
// ledger charges no fees.
func NewComputeBudgetProgram() ledger.Program {
	return &computeBudgetProgram{}
}

func (p *computeBudgetProgram) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	cmd, err := compute_budget.ParseCommand(data)
	if err != nil {
		return err
	}

	log := ctx.Logger().WithField("program", "compute_budget")

	switch cmd {
	case compute_budget.CommandSetComputeUnitLimit:
		limit, err := compute_budget.ParseSetComputeUnitLimitIxnData(data)
		if err != nil {
			return err
		}
		if limit > compute_budget.MaxComputeUnitLimit {
			return solana.InstructionErrorInvalidInstructionData
		}
		log.WithField("limit", limit).Trace("compute unit limit requested")
		return nil

	case compute_budget.CommandSetComputeUnitPrice:
		price, err := compute_budget.ParseSetComputeUnitPriceIxnData(data)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"price": price}).Trace("compute unit price requested")
		return nil
	}

	return solana.InstructionErrorInvalidInstructionData
}
