package httppresentation

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	appcart "github.com/smalob/marketplace/internal/application/cart"
	appcheckout "github.com/smalob/marketplace/internal/application/checkout"
	apporder "github.com/smalob/marketplace/internal/application/order"
	domcart "github.com/smalob/marketplace/internal/domain/cart"
	"github.com/smalob/marketplace/internal/domain/identity"
	"github.com/smalob/marketplace/internal/domain/money"
	domorder "github.com/smalob/marketplace/internal/domain/order"
	"github.com/smalob/marketplace/internal/infrastructure/notify"
	"github.com/smalob/marketplace/internal/observability"
)

const componentHTTPHandler = "http_server"

type Handler struct {
	carts    *appcart.Service
	checkout *appcheckout.Service
	orders   *apporder.Service
	hub      *notify.Hub
	log      observability.Logger
	tel      observability.Observability
}

func NewHandler(
	carts *appcart.Service,
	checkout *appcheckout.Service,
	orders *apporder.Service,
	hub *notify.Hub,
	tel observability.Observability,
) *Handler {
	baseLogger := observability.NopLogger()
	if tel != nil {
		baseLogger = tel.Logger()
	}
	return &Handler{
		carts:    carts,
		checkout: checkout,
		orders:   orders,
		hub:      hub,
		log:      baseLogger.With(observability.F("component", componentHTTPHandler)),
		tel:      tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(withObservability(h.log, h.tel))

	r.Get("/health", h.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(withIdentity)

		r.Post("/checkout", h.handleCheckout)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.handleGetCart)
			r.Post("/items", h.handleAddCartItem)
			r.Put("/items/{productID}", h.handleUpdateCartItem)
			r.Delete("/items/{productID}", h.handleRemoveCartItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.handleListOrders)
			r.Get("/{orderID}", h.handleGetOrder)
			r.Put("/{orderID}/status", h.handleUpdateOrderStatus)
		})

		r.Get("/ws", h.handleNotificationSocket)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// --- checkout ---

type customerInfoPayload struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
}

type checkoutRequest struct {
	PaymentToken string              `json:"payment_token"`
	Amount       *string             `json:"amount,omitempty"`
	CustomerInfo customerInfoPayload `json:"customer_info"`
}

type checkoutResponse struct {
	Success       bool               `json:"success"`
	OrderID       string             `json:"order_id"`
	Status        domorder.Status    `json:"status"`
	Total         string             `json:"total"`
	TransactionID string             `json:"transaction_id,omitempty"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.From(r.Context())
	if !ok || actor.Role != identity.RoleCustomer {
		writeError(w, http.StatusForbidden, "checkout requires a customer identity")
		return
	}

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := appcheckout.Input{
		CustomerID:     actor.UserID,
		PaymentToken:   req.PaymentToken,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		CustomerInfo: domorder.CustomerInfo{
			FullName:   req.CustomerInfo.FullName,
			Email:      req.CustomerInfo.Email,
			Phone:      req.CustomerInfo.Phone,
			Address:    req.CustomerInfo.Address,
			PostalCode: req.CustomerInfo.PostalCode,
		},
	}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid amount")
			return
		}
		m := money.New(amount, money.CAD)
		in.Amount = &m
	}

	result, err := h.checkout.Execute(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		Success:       true,
		OrderID:       result.OrderID,
		Status:        result.Status,
		Total:         result.Total.Amount.StringFixed(2),
		TransactionID: result.TransactionID,
	})
}

// --- cart ---

type cartItemPayload struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type cartResponse struct {
	CustomerID string            `json:"customer_id"`
	Items      []cartItemPayload `json:"items"`
	Total      string            `json:"total"`
}

func toCartResponse(c *domcart.Cart) cartResponse {
	items := make([]cartItemPayload, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, cartItemPayload{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.Amount.StringFixed(2),
			LineTotal: item.LineTotal().Amount.StringFixed(2),
		})
	}
	return cartResponse{
		CustomerID: c.CustomerID,
		Items:      items,
		Total:      c.Total().Amount.StringFixed(2),
	}
}

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.From(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req addCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.carts.AddItem(r.Context(), actor.UserID, req.ProductID, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.From(r.Context())
	productID := chi.URLParam(r, "productID")

	var req updateCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.carts.UpdateQuantity(r.Context(), actor.UserID, productID, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.From(r.Context())
	productID := chi.URLParam(r, "productID")

	c, err := h.carts.RemoveItem(r.Context(), actor.UserID, productID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.From(r.Context())

	c, err := h.carts.Get(r.Context(), actor.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

// --- orders ---

type orderItemPayload struct {
	ProductID string `json:"product_id"`
	VendorID  string `json:"vendor_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type orderPayload struct {
	OrderID    string             `json:"order_id"`
	CustomerID string             `json:"customer_id"`
	Status     domorder.Status    `json:"status"`
	Items      []orderItemPayload `json:"items"`
	Subtotal   string             `json:"subtotal"`
	CreatedAt  string             `json:"created_at"`
}

func toOrderPayload(v apporder.View) orderPayload {
	items := make([]orderItemPayload, 0, len(v.Items))
	for _, item := range v.Items {
		items = append(items, orderItemPayload{
			ProductID: item.ProductID,
			VendorID:  item.VendorID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.Amount.StringFixed(2),
			LineTotal: item.LineTotal.Amount.StringFixed(2),
		})
	}
	return orderPayload{
		OrderID:    v.Order.ID,
		CustomerID: v.Order.CustomerID,
		Status:     v.Order.Status,
		Items:      items,
		Subtotal:   v.Subtotal.Amount.StringFixed(2),
		CreatedAt:  v.Order.CreatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.From(r.Context())

	views, err := h.orders.List(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	payloads := make([]orderPayload, 0, len(views))
	for _, v := range views {
		payloads = append(payloads, toOrderPayload(v))
	}
	writeJSON(w, http.StatusOK, payloads)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.From(r.Context())
	orderID := chi.URLParam(r, "orderID")

	view, err := h.orders.Get(r.Context(), actor, orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderPayload(view))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.From(r.Context())
	orderID := chi.URLParam(r, "orderID")

	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status, err := domorder.ToStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), actor, orderID, status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderPayload(apporder.View{Order: o, Items: o.Items, Subtotal: o.TotalPrice}))
}
