package handler

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-promo/internal/domain/product"
	"github.com/xenking/kart-promo/internal/domain/promo"
	"github.com/xenking/kart-promo/internal/domain/quote"
)

func TestDecodeQuoteBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want quote.Request
	}{
		{
			name: "full request",
			body: `{"customerId":"c1","items":[{"productId":"p1","quantity":2},{"productId":"p2","quantity":30}],"strategy":"bulk_item"}`,
			want: quote.Request{
				CustomerID: "c1",
				Items:      []quote.Item{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 30}},
				Strategy:   "bulk_item",
			},
		},
		{
			name: "anonymous customer",
			body: `{"items":[{"productId":"p1","quantity":1}]}`,
			want: quote.Request{Items: []quote.Item{{ProductID: "p1", Quantity: 1}}},
		},
		{
			name: "nulls and unknown fields",
			body: `{"customerId":null,"coupon":{"code":"X"},"items":[{"productId":"p1","quantity":1,"note":"gift"}],"strategy":null}`,
			want: quote.Request{Items: []quote.Item{{ProductID: "p1", Quantity: 1}}},
		},
		{
			name: "empty items",
			body: `{"items":[]}`,
			want: quote.Request{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeQuoteBody([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeQuoteBody_Malformed(t *testing.T) {
	for _, body := range []string{
		``,
		`[]`,
		`{"items":{}}`,
		`{"customerId":7}`,
		`{"items":[{"productId":"p1","quantity":"two"}]}`,
	} {
		t.Run(body, func(t *testing.T) {
			_, err := decodeQuoteBody([]byte(body))
			var brErr *BadRequestError
			require.ErrorAs(t, err, &brErr)
		})
	}
}

func TestDecodeQuoteBatchBody(t *testing.T) {
	got, err := decodeQuoteBatchBody([]byte(`[
		{"customerId":"ann","items":[{"productId":"p1","quantity":1}]},
		{"items":[{"productId":"p2","quantity":3}],"strategy":"fidelity"}
	]`))
	require.NoError(t, err)
	assert.Equal(t, []quote.Request{
		{CustomerID: "ann", Items: []quote.Item{{ProductID: "p1", Quantity: 1}}},
		{Items: []quote.Item{{ProductID: "p2", Quantity: 3}}, Strategy: "fidelity"},
	}, got)

	_, err = decodeQuoteBatchBody([]byte(`{"items":[]}`))
	var brErr *BadRequestError
	require.True(t, errors.As(err, &brErr))
}

func TestEncodeQuote(t *testing.T) {
	req, err := decodeQuoteBody([]byte(`{"customerId":"ann","items":[{"productId":"p1","quantity":4}]}`))
	require.NoError(t, err)

	res := &quote.Result{
		Quote: &quote.Quote{
			ID:         "q1",
			CustomerID: req.CustomerID,
			Items:      req.Items,
			Total:      decimal.RequireFromString("2"),
			Discount:   decimal.RequireFromString("0.1"),
			Due:        decimal.RequireFromString("1.9"),
			Strategy:   promo.NameFidelity,
		},
		Products: []product.Product{{ID: "p1", Name: "Banana", Price: decimal.RequireFromString("0.5"), Category: "fruit"}},
	}

	var e jx.Encoder
	encodeQuote(&e, res)
	assert.JSONEq(t, `{
		"id":"q1","customerId":"ann","total":2.00,"discount":0.10,"due":1.90,"strategy":"fidelity",
		"items":[{"productId":"p1","quantity":4}],
		"products":[{"id":"p1","name":"Banana","price":0.50,"category":"fruit"}]
	}`, e.String())
}

func TestEncodeSelections(t *testing.T) {
	var e jx.Encoder
	encodeSelections(&e, []promo.Selection{
		{Name: promo.NameFidelity, Amount: decimal.RequireFromString("1.5")},
		{Name: promo.NameLargeOrder, Amount: decimal.Zero},
	})
	assert.JSONEq(t, `[{"strategy":"fidelity","discount":1.50},{"strategy":"large_order","discount":0.00}]`, e.String())
}
