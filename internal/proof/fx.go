package proof

import (
	"context"
	"fmt"

	"github.com/smallbiznis/roomwatt/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("proof.store",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
}

// New selects the artifact store named by STORAGE_DRIVER.
func New(p Params) (Store, error) {
	cfg := p.Config.Storage
	switch cfg.Driver {
	case config.StorageDriverS3:
		store, err := NewS3Store(context.Background(), cfg, p.Log)
		if err != nil {
			return nil, err
		}
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return store.EnsureBucket(ctx)
			},
		})
		return store, nil
	case config.StorageDriverLocal, "":
		return NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL, p.Log)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
