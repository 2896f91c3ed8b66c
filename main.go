package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	appcart "github.com/smalob/marketplace/internal/application/cart"
	appcheckout "github.com/smalob/marketplace/internal/application/checkout"
	apporder "github.com/smalob/marketplace/internal/application/order"
	"github.com/smalob/marketplace/internal/config"
	"github.com/smalob/marketplace/internal/domain/catalog"
	"github.com/smalob/marketplace/internal/domain/money"
	"github.com/smalob/marketplace/internal/infrastructure/id"
	"github.com/smalob/marketplace/internal/infrastructure/inventory/janitor"
	"github.com/smalob/marketplace/internal/infrastructure/memory"
	"github.com/smalob/marketplace/internal/infrastructure/messaging"
	"github.com/smalob/marketplace/internal/infrastructure/notify"
	obsprovider "github.com/smalob/marketplace/internal/infrastructure/observability"
	"github.com/smalob/marketplace/internal/infrastructure/observability/oteltrace"
	"github.com/smalob/marketplace/internal/infrastructure/observability/prometrics"
	"github.com/smalob/marketplace/internal/infrastructure/observability/zaplogger"
	"github.com/smalob/marketplace/internal/infrastructure/payment/sandbox"
	"github.com/smalob/marketplace/internal/observability"
	"github.com/smalob/marketplace/internal/pkg/logging"
	httptransport "github.com/smalob/marketplace/internal/presentation/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	baseLogger := logging.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	logger := zaplogger.Wrap(baseLogger)
	tracer := oteltrace.New(cfg.ServiceName)
	reg := prometrics.New("smalob", "marketplace")
	tel := obsprovider.New(tracer, logger, buildCounters(reg), buildHistograms(reg))

	ledger := memory.NewInventoryLedger(cfg.ReservationTTL)
	ledger.Seed(demoCatalog()...)

	cartRepo := memory.NewCartRepository()
	orderRepo := memory.NewOrderRepository()

	hub := notify.NewHub(cfg.NotifyBuffer, logger, tel)
	defer hub.Close()

	gateway := sandbox.New(logger, tel)
	messenger := messaging.NewLogSender(logger)
	ids := id.NewUUIDGenerator()

	cartSvc := appcart.NewService(cartRepo, ledger, logger)
	checkoutSvc := appcheckout.NewService(cartRepo, orderRepo, ledger, ledger, gateway, hub, messenger, ids, tel)
	orderSvc := apporder.NewService(orderRepo, hub, tel)

	sweeper := janitor.New(ledger, cfg.JanitorInterval, logger, tel)

	handler := httptransport.NewHandler(cartSvc, checkoutSvc, orderSvc, hub, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper.Start(ctx)
	defer sweeper.Stop()

	go func() {
		logger.Info("http_server_start",
			observability.F("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error",
				observability.F("error", err.Error()),
			)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error",
			observability.F("error", err.Error()),
		)
	} else {
		logger.Info("http_server_stopped")
	}
}

func buildCounters(reg prometrics.Registry) map[observability.MetricKey]observability.Counter {
	return map[observability.MetricKey]observability.Counter{
		observability.MCheckoutRequests: reg.Counter(
			string(observability.MCheckoutRequests),
			"Total checkout attempts by outcome.",
			"outcome"),
		observability.MHTTPRequests: reg.Counter(
			string(observability.MHTTPRequests),
			"Total HTTP requests served.",
			"method", "route", "status"),
		observability.MPaymentRequests: reg.Counter(
			string(observability.MPaymentRequests),
			"Total payment gateway calls by operation and outcome.",
			"operation", "outcome"),
		observability.MReservationFailures: reg.Counter(
			string(observability.MReservationFailures),
			"Stock reservations the ledger refused.",
			"reason"),
		observability.MReservationsExpired: reg.Counter(
			string(observability.MReservationsExpired),
			"Reservations restored to stock after their TTL lapsed."),
		observability.MSettlementReconOrphans: reg.Counter(
			string(observability.MSettlementReconOrphans),
			"Captured payments left without a persisted order; reconciled manually."),
		observability.MNotificationsPublished: reg.Counter(
			string(observability.MNotificationsPublished),
			"Events delivered to subscribers.",
			"event_type"),
		observability.MNotificationsDropped: reg.Counter(
			string(observability.MNotificationsDropped),
			"Events dropped because a subscriber buffer was full.",
			"event_type"),
		observability.MOrderStatusTransitions: reg.Counter(
			string(observability.MOrderStatusTransitions),
			"Applied order status transitions.",
			"from", "to"),
	}
}

func buildHistograms(reg prometrics.Registry) map[observability.MetricKey]observability.Histogram {
	return map[observability.MetricKey]observability.Histogram{
		observability.MCheckoutDuration: reg.Histogram(
			string(observability.MCheckoutDuration),
			"Settlement latency in seconds.",
			prometheus.DefBuckets),
		observability.MHTTPRequestDuration: reg.Histogram(
			string(observability.MHTTPRequestDuration),
			"HTTP request latency in seconds.",
			prometheus.DefBuckets,
			"method", "route"),
		observability.MPaymentRequestDuration: reg.Histogram(
			string(observability.MPaymentRequestDuration),
			"Payment gateway call latency in seconds.",
			prometheus.DefBuckets,
			"operation"),
	}
}

// demoCatalog seeds the in-memory ledger so the service is usable out of the
// box. A real deployment would hydrate from the catalog service instead.
func demoCatalog() []catalog.Product {
	now := time.Now()
	return []catalog.Product{
		{ID: "prod-espresso-beans", Name: "Espresso Beans 1kg", Price: money.FromFloat(18.50, money.CAD), Stock: 40, VendorID: "vendor-roastery", CreatedAt: now},
		{ID: "prod-maple-syrup", Name: "Dark Maple Syrup 500ml", Price: money.FromFloat(12.00, money.CAD), Stock: 25, VendorID: "vendor-sugar-shack", CreatedAt: now},
		{ID: "prod-sourdough", Name: "Sourdough Loaf", Price: money.FromFloat(8.25, money.CAD), Stock: 12, VendorID: "vendor-bakery", CreatedAt: now},
		{ID: "prod-honey-jar", Name: "Wildflower Honey 250g", Price: money.FromFloat(9.75, money.CAD), Stock: 30, VendorID: "vendor-sugar-shack", CreatedAt: now},
	}
}
