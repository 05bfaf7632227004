package app

import (
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-promo/internal/domain/promo"
)

// LoadRules reads declarative promo rules from a JSON file of the form
// [{"name": "happy_hours", "kind": "percentage", "value": "18", "minItems": 0}].
// Value may be a JSON string or number.
func LoadRules(path string) ([]promo.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read rules file")
	}
	rules, err := DecodeRules(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return rules, nil
}

// DecodeRules parses a JSON array of rules.
func DecodeRules(data []byte) ([]promo.Rule, error) {
	var rules []promo.Rule
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var r promo.Rule
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "name":
				s, err := d.Str()
				r.Name = s
				return err
			case "kind":
				s, err := d.Str()
				r.Kind = promo.Kind(s)
				return err
			case "value":
				v, err := decodeDecimal(d)
				r.Value = v
				return err
			case "minItems":
				n, err := d.Int()
				r.MinItems = n
				return err
			default:
				return d.Skip()
			}
		}); err != nil {
			return errors.Wrapf(err, "rule %d", len(rules))
		}
		rules = append(rules, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Zero, errors.Errorf("unexpected %s for decimal", d.Next())
	}
}

// BuildRegistry registers the standard strategies followed by rules.
func BuildRegistry(cfg PromoConfig, rules []promo.Rule) (*promo.Registry, error) {
	std, err := cfg.Standard()
	if err != nil {
		return nil, errors.Wrap(err, "standard promos")
	}
	extra, err := promo.Entries(rules...)
	if err != nil {
		return nil, errors.Wrap(err, "rule promos")
	}

	r, err := promo.NewRegistryFrom(append(promo.Standard(std), extra...)...)
	if err != nil {
		return nil, errors.Wrap(err, "build registry")
	}
	return r, nil
}
