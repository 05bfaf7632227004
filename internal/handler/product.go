package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// ListProducts returns the catalog quotes are priced from.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeInternal(r.Context(), w, err)
		return
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, p := range products {
			encodeProduct(e, p)
		}
	})
	writeJSON(w, http.StatusOK, &e)
}

// GetProduct returns a single product by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("productId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeProduct(&e, *p)
	writeJSON(w, http.StatusOK, &e)
}
