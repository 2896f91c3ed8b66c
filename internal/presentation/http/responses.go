package httppresentation

import (
	"encoding/json"
	"errors"
	"net/http"

	appcheckout "github.com/smalob/marketplace/internal/application/checkout"
	apporder "github.com/smalob/marketplace/internal/application/order"
	domcart "github.com/smalob/marketplace/internal/domain/cart"
	"github.com/smalob/marketplace/internal/domain/catalog"
	dominv "github.com/smalob/marketplace/internal/domain/inventory"
	domorder "github.com/smalob/marketplace/internal/domain/order"
	dompay "github.com/smalob/marketplace/internal/domain/payment"
)

type errorResponse struct {
	Success   bool   `json:"success"`
	Reason    string `json:"reason"`
	ProductID string `json:"product_id,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, errorResponse{Success: false, Reason: reason})
}

// writeDomainError maps the error taxonomy onto HTTP statuses with enough
// detail for the caller to act.
func writeDomainError(w http.ResponseWriter, err error) {
	var insufficient *dominv.InsufficientStockError
	var badTransition *domorder.InvalidTransitionError

	switch {
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, errorResponse{
			Success:   false,
			Reason:    insufficient.Error(),
			ProductID: insufficient.ProductID,
			Retryable: true,
		})
	case errors.Is(err, dompay.ErrCardDeclined):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{
			Success: false,
			Reason:  err.Error(),
		})
	case errors.Is(err, dompay.ErrGatewayUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Success:   false,
			Reason:    err.Error(),
			Retryable: true,
		})
	case errors.Is(err, dompay.ErrInvalidRequest),
		errors.Is(err, appcheckout.ErrEmptyCart),
		errors.Is(err, appcheckout.ErrAmountMismatch),
		errors.Is(err, domcart.ErrInvalidQuantity),
		errors.Is(err, domorder.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apporder.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, domcart.ErrNotFound),
		errors.Is(err, domcart.ErrItemNotFound),
		errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &badTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}
