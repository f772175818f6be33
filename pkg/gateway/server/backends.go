package server

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/handpact/handpact/pkg/core/payment"
	"github.com/handpact/handpact/pkg/enroll"
	"github.com/handpact/handpact/pkg/gateway/config"
)

func newEnrollmentStore(cfg config.Config) (enroll.Store, error) {
	switch cfg.Enrollment {
	case config.EnrollmentFile:
		return enroll.NewFileStore(cfg.EnrollmentPath), nil
	case config.EnrollmentPostgres:
		if err := enroll.Migrate(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migrate enrollment schema: %w", err)
		}
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect enrollment database: %w", err)
		}
		return enroll.NewPostgresStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown enrollment backend %q", cfg.Enrollment)
	}
}

func newPaymentExecutor(cfg config.Config) (payment.Executor, error) {
	switch cfg.Payment {
	case config.PaymentStripe:
		return payment.NewStripeExecutor(cfg.StripeAPIKey, cfg.Currency)
	case config.PaymentRelay:
		return payment.NewRelayExecutor(cfg.RelayAPIKey, cfg.RelayBaseURL, nil), nil
	default:
		return nil, fmt.Errorf("unknown payment backend %q", cfg.Payment)
	}
}
