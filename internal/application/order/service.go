package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/smalob/marketplace/internal/domain/identity"
	"github.com/smalob/marketplace/internal/domain/money"
	"github.com/smalob/marketplace/internal/domain/notification"
	domain "github.com/smalob/marketplace/internal/domain/order"
	"github.com/smalob/marketplace/internal/observability"
	"github.com/smalob/marketplace/internal/observability/logctx"
)

const componentOrderService = "order_service"

// ErrForbidden is returned when the actor's role or ownership does not allow
// the operation. It is not retryable by that actor.
var ErrForbidden = errors.New("order: actor not permitted")

type Service struct {
	orders      domain.Repository
	notifier    notification.Publisher
	log         observability.Logger
	transitions observability.Counter
}

func NewService(orders domain.Repository, notifier notification.Publisher, tel observability.Observability) *Service {
	baseLog := observability.NopLogger()
	metrics := observability.NopMetrics()
	if tel != nil {
		baseLog = tel.Logger()
		metrics = tel.Metrics()
	}
	return &Service{
		orders:      orders,
		notifier:    notifier,
		log:         baseLog.With(observability.F("component", componentOrderService)),
		transitions: metrics.Counter(observability.MOrderStatusTransitions),
	}
}

// View is what a given actor is allowed to see of an order. For vendors the
// items are filtered to their own products and Subtotal covers only those
// lines; for customers and admins it mirrors the full order.
type View struct {
	Order    *domain.Order
	Items    []domain.Item
	Subtotal money.Money
}

func fullView(o *domain.Order) View {
	return View{Order: o, Items: o.Items, Subtotal: o.TotalPrice}
}

func vendorView(o *domain.Order, vendorID string) View {
	return View{
		Order:    o,
		Items:    o.VendorItems(vendorID),
		Subtotal: o.VendorSubtotal(vendorID),
	}
}

// UpdateStatus applies a role-gated status transition and fans the change out
// to the order's observers.
func (s *Service) UpdateStatus(ctx context.Context, actor identity.Identity, orderID string, next domain.Status) (*domain.Order, error) {
	logger := logctx.FromOr(ctx, s.log)

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := authorizeTransition(actor, o, next); err != nil {
		logger.Warn("status_transition_denied",
			observability.F("order_id", orderID),
			observability.F("actor", actor.UserID),
			observability.F("role", string(actor.Role)),
			observability.F("to", string(next)),
		)
		return nil, err
	}

	from := o.Status
	if err := o.Transition(next); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("order: update: %w", err)
	}

	s.transitions.Add(1,
		observability.L("from", string(from)),
		observability.L("to", string(next)),
	)
	logger.Info("order_status_changed",
		observability.F("order_id", o.ID),
		observability.F("from", string(from)),
		observability.F("to", string(next)),
	)

	s.broadcastUpdate(ctx, o)
	return o, nil
}

// authorizeTransition enforces the role gates on top of the state machine:
// an admin may drive any machine-legal transition; a vendor must own at
// least one line and may only move the order forward along fulfilment,
// never to Cancelled.
func authorizeTransition(actor identity.Identity, o *domain.Order, next domain.Status) error {
	switch actor.Role {
	case identity.RoleAdmin:
		return nil
	case identity.RoleVendor:
		if !o.ContainsVendor(actor.UserID) {
			return ErrForbidden
		}
		if next == domain.StatusCancelled {
			return ErrForbidden
		}
		return nil
	default:
		return ErrForbidden
	}
}

// Get returns the order as seen by the actor, enforcing ownership.
func (s *Service) Get(ctx context.Context, actor identity.Identity, orderID string) (View, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return View{}, err
	}

	switch actor.Role {
	case identity.RoleAdmin:
		return fullView(o), nil
	case identity.RoleCustomer:
		if o.CustomerID != actor.UserID {
			return View{}, ErrForbidden
		}
		return fullView(o), nil
	case identity.RoleVendor:
		if !o.ContainsVendor(actor.UserID) {
			return View{}, ErrForbidden
		}
		return vendorView(o, actor.UserID), nil
	default:
		return View{}, ErrForbidden
	}
}

// List returns the actor's role-scoped order views: customers see their own
// orders, vendors see projections of orders containing their products,
// admins see everything.
func (s *Service) List(ctx context.Context, actor identity.Identity) ([]View, error) {
	switch actor.Role {
	case identity.RoleCustomer:
		orders, err := s.orders.ListByCustomer(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		return lo.Map(orders, func(o *domain.Order, _ int) View { return fullView(o) }), nil
	case identity.RoleVendor:
		orders, err := s.orders.ListByVendor(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		return lo.Map(orders, func(o *domain.Order, _ int) View { return vendorView(o, actor.UserID) }), nil
	case identity.RoleAdmin:
		orders, err := s.orders.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		return lo.Map(orders, func(o *domain.Order, _ int) View { return fullView(o) }), nil
	default:
		return nil, ErrForbidden
	}
}

func (s *Service) broadcastUpdate(ctx context.Context, o *domain.Order) {
	if s.notifier == nil {
		return
	}
	logger := logctx.FromOr(ctx, s.log)
	message := fmt.Sprintf("Order %s is now %s", o.ID, o.Status)

	channels := append(
		lo.Map(o.VendorIDs(), func(v string, _ int) string { return notification.VendorChannel(v) }),
		notification.CustomerChannel(o.CustomerID),
	)
	for _, channel := range channels {
		e := notification.New(channel, notification.TypeOrderUpdate, o.ID, message)
		if err := s.notifier.Publish(ctx, e); err != nil {
			logger.Warn("notification_publish_failed",
				observability.F("channel", channel),
				observability.F("error", err.Error()),
			)
		}
	}
}
