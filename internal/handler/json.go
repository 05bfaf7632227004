package handler

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-promo/internal/domain/product"
	"github.com/xenking/kart-promo/internal/domain/promo"
	"github.com/xenking/kart-promo/internal/domain/quote"
)

// decodeQuoteRequest reads
// {"customerId": "...", "items": [{"productId": "...", "quantity": n}], "strategy": "..."}.
// Unknown fields are skipped and null is treated as absent.
func decodeQuoteRequest(d *jx.Decoder) (quote.Request, error) {
	var req quote.Request
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if d.Next() == jx.Null {
			return d.Null()
		}
		var err error
		switch key {
		case "customerId":
			req.CustomerID, err = d.Str()
		case "strategy":
			req.Strategy, err = d.Str()
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				item, err := decodeItem(d)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, item)
				return nil
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	return req, err
}

func decodeItem(d *jx.Decoder) (quote.Item, error) {
	var item quote.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			item.ProductID, err = d.Str()
		case "quantity":
			item.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "item field %q", key)
		}
		return nil
	})
	return item, err
}

// decodeQuoteBody decodes a single request object.
func decodeQuoteBody(body []byte) (quote.Request, error) {
	req, err := decodeQuoteRequest(jx.DecodeBytes(body))
	if err != nil {
		return quote.Request{}, &BadRequestError{Err: err}
	}
	return req, nil
}

// decodeQuoteBatchBody decodes an array of request objects.
func decodeQuoteBatchBody(body []byte) ([]quote.Request, error) {
	var reqs []quote.Request
	err := jx.DecodeBytes(body).Arr(func(d *jx.Decoder) error {
		req, err := decodeQuoteRequest(d)
		if err != nil {
			return err
		}
		reqs = append(reqs, req)
		return nil
	})
	if err != nil {
		return nil, &BadRequestError{Err: err}
	}
	return reqs, nil
}

// money encodes an amount as a JSON number with two decimals.
func money(e *jx.Encoder, d decimal.Decimal) {
	e.Raw([]byte(d.StringFixed(2)))
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { money(e, p.Price) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
	})
}

func encodeQuote(e *jx.Encoder, res *quote.Result) {
	q := res.Quote
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(q.ID) })
		if q.CustomerID != "" {
			e.Field("customerId", func(e *jx.Encoder) { e.Str(q.CustomerID) })
		}
		e.Field("total", func(e *jx.Encoder) { money(e, q.Total) })
		e.Field("discount", func(e *jx.Encoder) { money(e, q.Discount) })
		e.Field("due", func(e *jx.Encoder) { money(e, q.Due) })
		e.Field("strategy", func(e *jx.Encoder) { e.Str(q.Strategy) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, item := range q.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(item.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
					})
				}
			})
		})
		e.Field("products", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range res.Products {
					encodeProduct(e, p)
				}
			})
		})
	})
}

func encodeSelections(e *jx.Encoder, all []promo.Selection) {
	e.Arr(func(e *jx.Encoder) {
		for _, s := range all {
			e.Obj(func(e *jx.Encoder) {
				e.Field("strategy", func(e *jx.Encoder) { e.Str(s.Name) })
				e.Field("discount", func(e *jx.Encoder) { money(e, s.Amount) })
			})
		}
	})
}
