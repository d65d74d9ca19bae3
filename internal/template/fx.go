package template

import (
	"github.com/smallbiznis/vendora/internal/template/repository"
	"github.com/smallbiznis/vendora/internal/template/service"
	"go.uber.org/fx"
)

var Module = fx.Module("template.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
