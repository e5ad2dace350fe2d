package usage

import (
	usagedomain "github.com/smallbiznis/roomwatt/internal/usage/domain"
	"github.com/smallbiznis/roomwatt/internal/usage/liveevents"
	"github.com/smallbiznis/roomwatt/internal/usage/repository"
	"github.com/smallbiznis/roomwatt/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(repository.Provide),
	fx.Provide(liveevents.NewHub),
	fx.Provide(service.New),
	fx.Provide(func(svc usagedomain.Service) usagedomain.Aggregator { return svc }),
)
