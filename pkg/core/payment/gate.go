package payment

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Outcome status values.
const (
	StatusComplete = "complete"
	StatusFailed   = "failed"
	StatusBlocked  = "blocked"
)

// Outcome is the gate's verdict on one fire request.
type Outcome struct {
	Status  string
	Receipt Receipt
	Reason  string
}

// Request carries the authorized payment the gate should attempt.
type Request struct {
	RecipientName string
	WalletAddress string
	Amount        float64
	Memo          string
}

// Gate is the sole caller of an Executor. It re-checks the amount bounds
// independently of the state machine (defense in depth), fires at most
// once per session, and never retries: a failed transfer is reported and
// the session stays spent, so retrying requires a fresh session.
type Gate struct {
	executor  Executor
	minAmount float64
	maxAmount float64
	logger    *slog.Logger

	invoked atomic.Bool
}

func NewGate(executor Executor, minAmount, maxAmount float64, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		executor:  executor,
		minAmount: minAmount,
		maxAmount: maxAmount,
		logger:    logger,
	}
}

// Fire attempts the transfer. Bounds violations and repeat invocations
// are blocked before the executor is touched.
func (g *Gate) Fire(ctx context.Context, req Request) Outcome {
	if g == nil || g.executor == nil {
		return Outcome{Status: StatusFailed, Reason: "payment executor is not configured"}
	}
	if req.Amount < g.minAmount || req.Amount > g.maxAmount {
		return Outcome{
			Status: StatusBlocked,
			Reason: fmt.Sprintf("amount %.2f outside payment bounds [%.2f, %.2f]", req.Amount, g.minAmount, g.maxAmount),
		}
	}
	if !g.invoked.CompareAndSwap(false, true) {
		return Outcome{Status: StatusBlocked, Reason: "payment already attempted this session"}
	}

	receipt, err := g.executor.Send(ctx, req.WalletAddress, req.Amount, req.Memo)
	if err != nil {
		g.logger.Warn("payment failed",
			"recipient", req.RecipientName,
			"amount", req.Amount,
			"error", err,
		)
		return Outcome{Status: StatusFailed, Reason: err.Error()}
	}

	g.logger.Info("payment complete",
		"recipient", req.RecipientName,
		"amount", req.Amount,
		"tx_id", receipt.TxID,
	)
	return Outcome{Status: StatusComplete, Receipt: receipt}
}
