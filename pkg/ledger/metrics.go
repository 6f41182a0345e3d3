package ledger

import (
	"context"
	"time"

	"github.com/code-payments/code-escrow/pkg/metrics"
)

const (
	metricsStructName = "ledger.ledger"

	transactionProcessedEventName = "TransactionProcessed"
	commitAttemptsMetricName      = "Ledger/commit_attempts"
	processLatencyMetricName      = "Ledger/process_latency"
)

func recordTransactionProcessedEvent(ctx context.Context, sig string, numInstructions int, latency time.Duration, err error) {
	kvPairs := map[string]interface{}{
		"signature":    sig,
		"instructions": numInstructions,
		"latency_ms":   int(latency / time.Millisecond),
		"success":      err == nil,
	}
	if err != nil {
		kvPairs["error"] = err.Error()
	}

	metrics.RecordEvent(ctx, transactionProcessedEventName, kvPairs)
	metrics.RecordDuration(ctx, processLatencyMetricName, latency)
}

func recordCommitAttempts(ctx context.Context, attempts uint) {
	metrics.RecordCount(ctx, commitAttemptsMetricName, uint64(attempts))
}
