package organization

import (
	"github.com/smallbiznis/orgstore/internal/organization/repository"
	"github.com/smallbiznis/orgstore/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
