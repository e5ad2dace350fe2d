package room

import (
	roomdomain "github.com/smallbiznis/roomwatt/internal/room/domain"
	"github.com/smallbiznis/roomwatt/internal/room/repository"
	"github.com/smallbiznis/roomwatt/internal/room/service"
	"go.uber.org/fx"
)

var Module = fx.Module("room.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(svc roomdomain.Service) roomdomain.Directory { return svc }),
)
