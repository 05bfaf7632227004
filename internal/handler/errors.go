package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-promo/internal/domain/customer"
	"github.com/xenking/kart-promo/internal/domain/product"
	"github.com/xenking/kart-promo/internal/domain/promo"
	"github.com/xenking/kart-promo/internal/domain/quote"
)

// BadRequestError reports a body that could not be decoded.
type BadRequestError struct {
	Err error
}

func (e *BadRequestError) Error() string {
	return "malformed request body: " + e.Err.Error()
}

func (e *BadRequestError) Unwrap() error {
	return e.Err
}

// errorStatus maps domain errors to a status code. ok is false for errors
// that must be reported as internal.
func errorStatus(err error) (status int, ok bool) {
	var (
		brErr  *BadRequestError
		iqErr  *quote.InvalidQuantityError
		pnfErr *quote.ProductNotFoundError
		usErr  *promo.UnknownStrategyError
	)
	switch {
	case errors.As(err, &brErr), errors.Is(err, quote.ErrEmptyItems):
		return http.StatusBadRequest, true
	case errors.As(err, &iqErr), errors.As(err, &pnfErr), errors.As(err, &usErr):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, customer.ErrNotFound), errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, promo.ErrEmptyRegistry):
		return http.StatusServiceUnavailable, true
	default:
		return 0, false
	}
}

// writeDomainError answers with the mapped status, or 500 for unknown errors.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, ok := errorStatus(err)
	if !ok {
		writeInternal(r.Context(), w, err)
		return
	}
	writeError(w, status, err.Error())
}
