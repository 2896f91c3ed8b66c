package sandbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smalob/marketplace/internal/domain/payment"
	"github.com/smalob/marketplace/internal/observability"
)

const componentGateway = "payment_gateway"

// Tokens recognised by the sandbox processor. Any other non-empty token is
// captured successfully.
const (
	TokenDeclined    = "tok-declined"
	TokenUnavailable = "tok-unavailable"
)

// Gateway simulates the external payment processor. Terminal outcomes
// (capture, decline) are cached per idempotency key and replayed; transient
// unavailability is not cached, so a retry with the same key can still settle
// exactly once.
type Gateway struct {
	mu       sync.Mutex
	receipts map[string]*payment.Receipt
	declined map[string]struct{}
	refunded map[string]time.Time
	log      observability.Logger
	metrics  observability.Counter
	duration observability.Histogram
}

func New(logger observability.Logger, tel observability.Observability) *Gateway {
	if logger == nil {
		logger = observability.NopLogger()
	}
	metrics := observability.NopMetrics()
	if tel != nil {
		metrics = tel.Metrics()
	}
	return &Gateway{
		receipts: make(map[string]*payment.Receipt),
		declined: make(map[string]struct{}),
		refunded: make(map[string]time.Time),
		log:      logger.With(observability.F("component", componentGateway)),
		metrics:  metrics.Counter(observability.MPaymentRequests),
		duration: metrics.Histogram(observability.MPaymentRequestDuration),
	}
}

func (g *Gateway) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.Receipt, error) {
	start := time.Now()
	receipt, err := g.charge(ctx, req)
	outcome := "success"
	if err != nil {
		outcome = classify(err)
	}
	g.metrics.Add(1, observability.L("operation", "charge"), observability.L("outcome", outcome))
	g.duration.Observe(time.Since(start).Seconds(), observability.L("operation", "charge"))
	return receipt, err
}

func (g *Gateway) charge(ctx context.Context, req payment.ChargeRequest) (*payment.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.IdempotencyKey == "" || req.SourceToken == "" {
		return nil, payment.ErrInvalidRequest
	}
	if !req.Amount.IsPositive() {
		return nil, payment.ErrInvalidRequest
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Idempotent replay of a terminal outcome.
	if receipt, ok := g.receipts[req.IdempotencyKey]; ok {
		g.log.Info("charge_replayed",
			observability.F("transaction_id", receipt.TransactionID),
		)
		clone := *receipt
		return &clone, nil
	}
	if _, ok := g.declined[req.IdempotencyKey]; ok {
		return nil, payment.ErrCardDeclined
	}

	switch req.SourceToken {
	case TokenUnavailable:
		return nil, payment.ErrGatewayUnavailable
	case TokenDeclined:
		g.declined[req.IdempotencyKey] = struct{}{}
		return nil, payment.ErrCardDeclined
	}

	receipt := &payment.Receipt{
		TransactionID: uuid.NewString(),
		Amount:        req.Amount,
		CapturedAt:    time.Now().UTC(),
	}
	g.receipts[req.IdempotencyKey] = receipt

	g.log.Info("charge_captured",
		observability.F("transaction_id", receipt.TransactionID),
		observability.F("amount", req.Amount.String()),
	)

	clone := *receipt
	return &clone, nil
}

func (g *Gateway) Refund(ctx context.Context, transactionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if transactionID == "" {
		return payment.ErrInvalidRequest
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, receipt := range g.receipts {
		if receipt.TransactionID == transactionID {
			g.refunded[transactionID] = time.Now().UTC()
			g.log.Info("charge_refunded",
				observability.F("transaction_id", transactionID),
			)
			g.metrics.Add(1, observability.L("operation", "refund"), observability.L("outcome", "success"))
			return nil
		}
	}
	return payment.ErrInvalidRequest
}

// Captures reports how many distinct charges have been captured. Test hook.
func (g *Gateway) Captures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.receipts)
}

func classify(err error) string {
	switch {
	case errors.Is(err, payment.ErrCardDeclined):
		return "declined"
	case errors.Is(err, payment.ErrGatewayUnavailable):
		return "unavailable"
	case errors.Is(err, payment.ErrInvalidRequest):
		return "invalid"
	default:
		return "error"
	}
}
