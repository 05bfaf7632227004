package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// CreateQuote prices a cart with the best, or the requested, strategy.
func (h *Handler) CreateQuote(w http.ResponseWriter, r *http.Request) {
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

	res, err := h.quotes.Quote(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeQuote(&e, res)
	writeJSON(w, http.StatusCreated, &e)
}

// CreateQuoteBatch prices several carts. Either every quote is issued or the
// request fails.
func (h *Handler) CreateQuoteBatch(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reqs, err := decodeQuoteBatchBody(body)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if len(reqs) == 0 {
		writeError(w, http.StatusBadRequest, "quotes required")
		return
	}

	results, err := h.quotes.QuoteBatch(r.Context(), reqs)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, res := range results {
			encodeQuote(e, res)
		}
	})
	writeJSON(w, http.StatusCreated, &e)
}
