package machine

import (
	"github.com/smallbiznis/vendora/internal/machine/repository"
	"github.com/smallbiznis/vendora/internal/machine/service"
	"go.uber.org/fx"
)

var Module = fx.Module("machine.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
