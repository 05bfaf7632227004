// Command api-server serves the promo quoting API.
package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	promoapp "github.com/xenking/kart-promo/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := promoapp.LoadConfig()
		if err != nil {
			return err
		}
		return promoapp.Run(ctx, lg, m, cfg)
	})
}
