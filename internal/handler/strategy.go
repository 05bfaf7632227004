package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// ListStrategies returns the registered strategy names in registration order.
func (h *Handler) ListStrategies(w http.ResponseWriter, _ *http.Request) {
	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, name := range h.strategies.Names() {
			e.Str(name)
		}
	})
	writeJSON(w, http.StatusOK, &e)
}

// EvaluateStrategies reports the discount each strategy grants a cart.
func (h *Handler) EvaluateStrategies(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := decodeQuoteBody(body)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	all, err := h.quotes.Evaluate(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeSelections(&e, all)
	writeJSON(w, http.StatusOK, &e)
}
