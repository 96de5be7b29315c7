package migration

import (
	authdomain "github.com/smallbiznis/orgstore/internal/auth/domain"
	"github.com/smallbiznis/orgstore/internal/config"
	orgdomain "github.com/smallbiznis/orgstore/internal/organization/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// sqlite/mysql development setups migrate from the models.
			return conn.AutoMigrate(&orgdomain.Organization{}, &authdomain.Admin{})
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
