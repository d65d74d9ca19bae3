package migration

import (
	catalogdomain "github.com/smallbiznis/vendora/internal/catalog/domain"
	changerequestdomain "github.com/smallbiznis/vendora/internal/changerequest/domain"
	"github.com/smallbiznis/vendora/internal/config"
	machinedomain "github.com/smallbiznis/vendora/internal/machine/domain"
	templatedomain "github.com/smallbiznis/vendora/internal/template/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// Non-postgres deployments (mostly local sqlite) fall back to
			// the gorm schema builder.
			return conn.AutoMigrate(
				&catalogdomain.Product{},
				&templatedomain.Template{},
				&machinedomain.Machine{},
				&machinedomain.PricingTable{},
				&changerequestdomain.ChangeRequest{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
