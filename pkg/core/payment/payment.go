// Package payment holds the funds-transfer boundary: the Executor
// abstraction over concrete payment rails and the Gate that is the only
// component allowed to invoke one.
package payment

import (
	"context"
)

// Receipt is the result of a completed transfer attempt.
type Receipt struct {
	TxID   string `json:"tx_id"`
	Status string `json:"status"`
}

// Executor attempts one transfer. Implementations are interchangeable
// backends behind the same policy: no automatic retry, atomicity of the
// transfer itself is the rail's responsibility.
type Executor interface {
	Send(ctx context.Context, toAddress string, amount float64, memo string) (Receipt, error)
}
