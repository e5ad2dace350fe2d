package invoice

import (
	"github.com/smallbiznis/roomwatt/internal/config"
	"github.com/smallbiznis/roomwatt/internal/invoice/repository"
	"github.com/smallbiznis/roomwatt/internal/invoice/service"
	"github.com/smallbiznis/roomwatt/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(cfg config.Config) pdf.Provider { return pdf.New(cfg.AppName) }),
	fx.Provide(service.New),
)
