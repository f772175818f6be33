package payment

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/stripe/stripe-go/v84"
)

// StripeExecutor sends transfers to connected Stripe accounts. The
// destination "wallet address" for this backend is a Stripe account ID.
type StripeExecutor struct {
	client   *stripe.Client
	currency string
}

func NewStripeExecutor(apiKey, currency string) (*StripeExecutor, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("stripe api key is required")
	}
	if strings.TrimSpace(currency) == "" {
		currency = "usd"
	}
	return &StripeExecutor{
		client:   stripe.NewClient(apiKey),
		currency: strings.ToLower(strings.TrimSpace(currency)),
	}, nil
}

func (e *StripeExecutor) Send(ctx context.Context, toAddress string, amount float64, memo string) (Receipt, error) {
	if e == nil || e.client == nil {
		return Receipt{}, fmt.Errorf("stripe executor is not initialized")
	}
	if strings.TrimSpace(toAddress) == "" {
		return Receipt{}, fmt.Errorf("destination account is required")
	}

	cents := int64(math.Round(amount * 100))
	if cents <= 0 {
		return Receipt{}, fmt.Errorf("amount %.2f rounds to zero %s cents", amount, e.currency)
	}

	params := &stripe.TransferCreateParams{
		Amount:      stripe.Int64(cents),
		Currency:    stripe.String(e.currency),
		Destination: stripe.String(strings.TrimSpace(toAddress)),
	}
	if strings.TrimSpace(memo) != "" {
		params.Description = stripe.String(memo)
	}

	transfer, err := e.client.V1Transfers.Create(ctx, params)
	if err != nil {
		return Receipt{}, fmt.Errorf("stripe transfer: %w", err)
	}
	return Receipt{TxID: transfer.ID, Status: "sent"}, nil
}
