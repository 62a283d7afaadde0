package log

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pixelrelay/pixelrelay-cloud/internal/config"
)

var Module = fx.Module("log",
	fx.Provide(New),
)

// New builds the application logger. Production gets JSON output,
// everything else gets the human-readable development encoder.
func New(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
