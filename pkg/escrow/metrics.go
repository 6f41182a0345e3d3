package escrow

import (
	"context"

	"github.com/mr-tron/base58"

	"github.com/code-payments/code-escrow/pkg/metrics"
	escrow_program "github.com/code-payments/code-escrow/pkg/solana/escrow"
)

const (
	instructionEventName = "EscrowInstruction"
)

func recordInstructionEvent(ctx context.Context, instruction escrow_program.InstructionType, escrow, maker []byte, amount uint64) {
	metrics.RecordEvent(ctx, instructionEventName, map[string]interface{}{
		"instruction": instruction.String(),
		"escrow":      base58.Encode(escrow),
		"maker":       base58.Encode(maker),
		"amount":      amount,
	})
}
