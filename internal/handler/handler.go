// Package handler serves the promo HTTP API.
package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-promo/internal/domain/auth"
	"github.com/xenking/kart-promo/internal/domain/product"
	"github.com/xenking/kart-promo/internal/domain/promo"
	"github.com/xenking/kart-promo/internal/domain/quote"
)

// HeaderAPIKey carries the raw API key.
const HeaderAPIKey = "api_key"

const maxBodyBytes = 1 << 20

// QuoteService prices carts. *quote.Service implements it.
type QuoteService interface {
	Quote(ctx context.Context, req quote.Request) (*quote.Result, error)
	QuoteBatch(ctx context.Context, reqs []quote.Request) ([]*quote.Result, error)
	Evaluate(ctx context.Context, req quote.Request) ([]promo.Selection, error)
}

// Authenticator resolves API keys. *auth.Authenticator implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, key, scope string) (*auth.APIKeyInfo, error)
}

// StrategyLister lists registered strategies. *promo.Registry implements it.
type StrategyLister interface {
	Names() []string
}

// Handler serves the /api routes.
type Handler struct {
	products   product.Repository
	quotes     QuoteService
	strategies StrategyLister
	auth       Authenticator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	quotes QuoteService,
	strategies StrategyLister,
	authenticator Authenticator,
) *Handler {
	return &Handler{
		products:   products,
		quotes:     quotes,
		strategies: strategies,
		auth:       authenticator,
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{productId}", h.GetProduct)
	mux.HandleFunc("GET /api/strategies", h.ListStrategies)
	mux.Handle("POST /api/strategies/evaluate", h.requireScope(auth.ScopeEvaluate, h.EvaluateStrategies))
	mux.Handle("POST /api/quote", h.requireScope(auth.ScopeQuote, h.CreateQuote))
	mux.Handle("POST /api/quote/batch", h.requireScope(auth.ScopeQuote, h.CreateQuoteBatch))
}

// requireScope rejects requests whose api_key header does not resolve to a
// key granted scope.
func (h *Handler) requireScope(scope string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := h.auth.Authenticate(r.Context(), r.Header.Get(HeaderAPIKey), scope)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := zctx.With(r.Context(), zap.String("api_key_id", info.ID))
		next(w, r.WithContext(ctx))
	})
}

// readBody returns the request body, limited to maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeJSON(w, status, &e)
}

// writeInternal logs err and answers 500 without leaking details.
func writeInternal(ctx context.Context, w http.ResponseWriter, err error) {
	zctx.From(ctx).Error("Request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
