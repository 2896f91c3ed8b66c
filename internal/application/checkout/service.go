package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	domcart "github.com/smalob/marketplace/internal/domain/cart"
	"github.com/smalob/marketplace/internal/domain/catalog"
	dominv "github.com/smalob/marketplace/internal/domain/inventory"
	"github.com/smalob/marketplace/internal/domain/money"
	"github.com/smalob/marketplace/internal/domain/notification"
	domorder "github.com/smalob/marketplace/internal/domain/order"
	dompay "github.com/smalob/marketplace/internal/domain/payment"
	"github.com/smalob/marketplace/internal/observability"
	"github.com/smalob/marketplace/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	useCaseCheckout = "checkout.settle"
	spanPrefix      = "UC."
)

var (
	ErrEmptyCart = errors.New("checkout: cart is empty")
	// ErrAmountMismatch means the client-stated amount disagrees with the
	// server-derived cart total; the charge is refused.
	ErrAmountMismatch = errors.New("checkout: amount does not match cart total")
	// ErrPersistence marks the reconciliation case: payment was captured but
	// the order could not be recorded.
	ErrPersistence = errors.New("checkout: order persistence failed after payment capture")
)

// Service is the settlement orchestrator: it drives cart to order conversion
// through stock reservation, payment capture, order persistence, and
// notification fan-out, compensating on failure so the checkout is atomic
// from the client's perspective.
type Service struct {
	carts     domcart.Repository
	orders    domorder.Repository
	catalog   catalog.Catalog
	ledger    dominv.Ledger
	gateway   dompay.Gateway
	notifier  notification.Publisher
	messenger Messenger
	ids       IDGenerator
	tel       observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	reservedFail observability.Counter
	reconCounter observability.Counter
}

func NewService(
	carts domcart.Repository,
	orders domorder.Repository,
	cat catalog.Catalog,
	ledger dominv.Ledger,
	gateway dompay.Gateway,
	notifier notification.Publisher,
	messenger Messenger,
	ids IDGenerator,
	tel observability.Observability,
) *Service {
	baseLog := observability.NopLogger()
	metrics := observability.NopMetrics()
	if tel == nil {
		tel = observability.Nop()
	} else {
		baseLog = tel.Logger()
		metrics = tel.Metrics()
	}
	baseLog = baseLog.With(observability.F("component", "checkout_service"))

	return &Service{
		carts:        carts,
		orders:       orders,
		catalog:      cat,
		ledger:       ledger,
		gateway:      gateway,
		notifier:     notifier,
		messenger:    messenger,
		ids:          ids,
		tel:          tel,
		log:          baseLog,
		reqCounter:   metrics.Counter(observability.MCheckoutRequests),
		durHistogram: metrics.Histogram(observability.MCheckoutDuration),
		reservedFail: metrics.Counter(observability.MReservationFailures),
		reconCounter: metrics.Counter(observability.MSettlementReconOrphans),
	}
}

type Input struct {
	CustomerID     string
	PaymentToken   string
	IdempotencyKey string
	// Amount is the client-stated total; when present it must equal the
	// server-derived cart total.
	Amount       *money.Money
	CustomerInfo domorder.CustomerInfo
}

type Result struct {
	OrderID       string
	Status        domorder.Status
	TransactionID string
	Total         money.Money
}

// Execute performs the settlement flow end to end.
func (s *Service) Execute(ctx context.Context, in Input) (_ *Result, err error) {
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCaseCheckout))

	ctx, span := s.tel.Tracer().Start(ctx, spanPrefix+"Checkout",
		attribute.String("use_case", useCaseCheckout),
		attribute.String("checkout.customer_id", in.CustomerID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()

		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		s.reqCounter.Add(1,
			observability.L("outcome", outcome),
		)
		s.durHistogram.Observe(lat)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("checkout_done", fields...)
	}()

	if in.CustomerID == "" {
		outcome, statusText = "error", "CUSTOMER_ID_REQUIRED"
		return nil, errors.New("checkout: customer id is required")
	}
	if in.PaymentToken == "" {
		outcome, statusText = "error", "PAYMENT_TOKEN_REQUIRED"
		return nil, fmt.Errorf("%w: payment token is required", dompay.ErrInvalidRequest)
	}

	// A replayed checkout attempt returns the already-created order instead
	// of settling twice.
	if in.IdempotencyKey != "" {
		existing, repoErr := s.orders.FindByIdempotency(ctx, in.CustomerID, in.IdempotencyKey)
		switch {
		case repoErr == nil:
			statusText = "IDEMPOTENT_REPLAY"
			span.AddEvent("checkout.idempotent_replay",
				trace.WithAttributes(attribute.String("order.id", existing.ID)),
			)
			return &Result{OrderID: existing.ID, Status: existing.Status, Total: existing.TotalPrice}, nil
		case errors.Is(repoErr, domorder.ErrNotFound):
			// continue
		default:
			outcome, statusText = "error", "IDEMPOTENCY_LOOKUP_FAILED"
			return nil, fmt.Errorf("checkout: idempotency lookup: %w", repoErr)
		}
	}

	c, err := s.carts.Get(ctx, in.CustomerID)
	if errors.Is(err, domcart.ErrNotFound) {
		outcome, statusText = "error", "CART_EMPTY"
		return nil, ErrEmptyCart
	}
	if err != nil {
		outcome, statusText = "error", "CART_LOOKUP_FAILED"
		return nil, fmt.Errorf("checkout: cart lookup: %w", err)
	}
	if c.IsEmpty() {
		outcome, statusText = "error", "CART_EMPTY"
		return nil, ErrEmptyCart
	}

	total := c.Total()
	if in.Amount != nil && !in.Amount.Equal(total) {
		outcome, statusText = "error", "AMOUNT_MISMATCH"
		return nil, fmt.Errorf("%w: stated %s, cart total %s", ErrAmountMismatch, in.Amount, total)
	}

	// Step 1: reserve stock for every line, all or nothing. On the first
	// failure, lines reserved earlier in the same attempt are released in
	// reverse order.
	items, reservations, err := s.reserveAll(ctx, c)
	if err != nil {
		outcome, statusText = "error", "RESERVATION_FAILED"
		return nil, err
	}
	span.AddEvent("checkout.stock_reserved",
		trace.WithAttributes(attribute.Int("checkout.lines", len(items))),
	)

	// Step 2: capture payment. The ledger lock is never held here; the
	// reservations keep the stock safe across the round trip. A fresh
	// idempotency key is minted per attempt so a failed attempt's retry is a
	// new charge while a replay of an ambiguous outcome reuses the key at
	// the gateway.
	receipt, err := s.gateway.Charge(ctx, dompay.ChargeRequest{
		Amount:         total,
		SourceToken:    in.PaymentToken,
		IdempotencyKey: s.ids.NewID(),
	})
	if err != nil {
		s.releaseAll(ctx, reservations)
		outcome, statusText = "error", paymentStatusText(err)
		logger.Warn("payment_capture_failed",
			observability.F("customer_id", in.CustomerID),
			observability.F("error", err.Error()),
		)
		return nil, err
	}
	span.AddEvent("checkout.payment_captured",
		trace.WithAttributes(attribute.String("payment.transaction_id", receipt.TransactionID)),
	)

	// Step 3: persist the order with the step-1 snapshot.
	ord, err := domorder.New(s.ids.NewID(), in.CustomerID, in.IdempotencyKey, items, in.CustomerInfo)
	if err != nil {
		// Construction cannot fail for a settled snapshot; treat any failure
		// like a persistence fault since the charge already happened.
		s.alertOrphanedPayment(logger, receipt, in.CustomerID, err)
		outcome, statusText = "error", "RECONCILIATION_REQUIRED"
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := s.orders.Insert(ctx, ord); err != nil {
		if errors.Is(err, domorder.ErrConflict) && in.IdempotencyKey != "" {
			// A concurrent duplicate attempt won the insert. This attempt's
			// charge must not stand alongside the winner's.
			if existing, lookupErr := s.orders.FindByIdempotency(ctx, in.CustomerID, in.IdempotencyKey); lookupErr == nil {
				s.releaseAll(ctx, reservations)
				if refundErr := s.gateway.Refund(ctx, receipt.TransactionID); refundErr != nil {
					s.alertOrphanedPayment(logger, receipt, in.CustomerID, refundErr)
				}
				statusText = "IDEMPOTENT_REPLAY"
				return &Result{OrderID: existing.ID, Status: existing.Status, Total: existing.TotalPrice}, nil
			}
		}
		// Payment is captured with no matching order: stock stays decremented
		// for the paid goods and a reconciliation alert is raised. Nothing is
		// silently swallowed here.
		s.confirmAll(ctx, reservations)
		s.alertOrphanedPayment(logger, receipt, in.CustomerID, err)
		outcome, statusText = "error", "RECONCILIATION_REQUIRED"
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	span.AddEvent("checkout.order_persisted",
		trace.WithAttributes(attribute.String("order.id", ord.ID)),
	)

	// The decrement is now backed by a recorded sale.
	s.confirmAll(ctx, reservations)

	// Step 4: clear the cart. The order is committed; a failure here only
	// leaves a stale cart behind.
	if err := s.carts.Clear(ctx, in.CustomerID); err != nil {
		logger.Warn("cart_clear_failed",
			observability.F("customer_id", in.CustomerID),
			observability.F("order_id", ord.ID),
			observability.F("error", err.Error()),
		)
	}

	// Step 5: advisory fan-out, after the transactional core. Publish
	// failures never roll back the order.
	s.fanOut(ctx, ord)

	if s.messenger != nil {
		if err := s.messenger.OrderConfirmation(ctx, ord); err != nil {
			logger.Warn("order_confirmation_failed",
				observability.F("order_id", ord.ID),
				observability.F("error", err.Error()),
			)
		}
	}

	return &Result{
		OrderID:       ord.ID,
		Status:        ord.Status,
		TransactionID: receipt.TransactionID,
		Total:         ord.TotalPrice,
	}, nil
}

// reserveAll reserves stock for every cart line and resolves each line's
// vendor. On failure it releases the lines already reserved, newest first.
func (s *Service) reserveAll(ctx context.Context, c *domcart.Cart) ([]domorder.Item, []*dominv.Reservation, error) {
	items := make([]domorder.Item, 0, len(c.Items))
	reservations := make([]*dominv.Reservation, 0, len(c.Items))

	for _, line := range c.Items {
		product, err := s.catalog.Product(ctx, line.ProductID)
		if err != nil {
			s.releaseAll(ctx, reservations)
			return nil, nil, fmt.Errorf("checkout: product %s: %w", line.ProductID, err)
		}

		res, err := s.ledger.TryReserve(ctx, line.ProductID, line.Quantity)
		if err != nil {
			s.releaseAll(ctx, reservations)
			var insufficient *dominv.InsufficientStockError
			if errors.As(err, &insufficient) {
				s.reservedFail.Add(1, observability.L("reason", "insufficient_stock"))
			} else {
				s.reservedFail.Add(1, observability.L("reason", "error"))
			}
			return nil, nil, err
		}
		reservations = append(reservations, res)

		items = append(items, domorder.Item{
			ProductID: line.ProductID,
			VendorID:  product.VendorID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	return items, reservations, nil
}

// releaseAll compensates reservations in reverse order of acquisition.
func (s *Service) releaseAll(ctx context.Context, reservations []*dominv.Reservation) {
	for i := len(reservations) - 1; i >= 0; i-- {
		res := reservations[i]
		if err := s.ledger.Release(ctx, res.ID); err != nil {
			s.log.Error("reservation_release_failed",
				observability.F("reservation_id", res.ID),
				observability.F("product_id", res.ProductID),
				observability.F("error", err.Error()),
			)
		}
	}
}

func (s *Service) confirmAll(ctx context.Context, reservations []*dominv.Reservation) {
	for _, res := range reservations {
		err := s.ledger.Confirm(ctx, res)
		switch {
		case err == nil:
		case errors.Is(err, dominv.ErrReservationExpired):
			// The hold lapsed while the settlement was in flight and the
			// janitor restored its stock; the ledger took the paid quantity
			// out again, but the count may have oversold in between.
			s.reconCounter.Add(1)
			s.log.Error("reservation_expired_during_settlement",
				observability.F("reservation_id", res.ID),
				observability.F("product_id", res.ProductID),
				observability.F("quantity", res.Quantity),
			)
		default:
			s.log.Warn("reservation_confirm_failed",
				observability.F("reservation_id", res.ID),
				observability.F("error", err.Error()),
			)
		}
	}
}

// fanOut publishes one NEW_ORDER event per distinct vendor in the order plus
// a visibility event for the customer.
func (s *Service) fanOut(ctx context.Context, ord *domorder.Order) {
	if s.notifier == nil {
		return
	}
	logger := logctx.FromOr(ctx, s.log)

	for _, vendorID := range ord.VendorIDs() {
		e := notification.New(
			notification.VendorChannel(vendorID),
			notification.TypeNewOrder,
			ord.ID,
			fmt.Sprintf("New order %s (%s)", ord.ID, ord.VendorSubtotal(vendorID)),
		)
		if err := s.notifier.Publish(ctx, e); err != nil {
			logger.Warn("notification_publish_failed",
				observability.F("channel", e.Channel),
				observability.F("error", err.Error()),
			)
		}
	}

	e := notification.New(
		notification.CustomerChannel(ord.CustomerID),
		notification.TypeOrderUpdate,
		ord.ID,
		fmt.Sprintf("Order %s placed, total %s", ord.ID, ord.TotalPrice),
	)
	if err := s.notifier.Publish(ctx, e); err != nil {
		logger.Warn("notification_publish_failed",
			observability.F("channel", e.Channel),
			observability.F("error", err.Error()),
		)
	}
}

// alertOrphanedPayment raises the alert-grade reconciliation log: a captured
// charge without a recorded order needs manual follow-up, since the processor
// integration offers no synchronous refund guarantee.
func (s *Service) alertOrphanedPayment(logger observability.Logger, receipt *dompay.Receipt, customerID string, cause error) {
	s.reconCounter.Add(1)
	logger.Error("payment_captured_without_order",
		observability.F("transaction_id", receipt.TransactionID),
		observability.F("customer_id", customerID),
		observability.F("amount", receipt.Amount.String()),
		observability.F("error", cause.Error()),
	)
}

func paymentStatusText(err error) string {
	switch {
	case errors.Is(err, dompay.ErrCardDeclined):
		return "CARD_DECLINED"
	case errors.Is(err, dompay.ErrGatewayUnavailable):
		return "GATEWAY_UNAVAILABLE"
	case errors.Is(err, dompay.ErrInvalidRequest):
		return "INVALID_REQUEST"
	default:
		return "PAYMENT_FAILED"
	}
}
