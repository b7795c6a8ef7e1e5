package bootstrap

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"amulet-controlplane/services/activity"
	"amulet-controlplane/services/apikey"
	"amulet-controlplane/services/appconfig"
	"amulet-controlplane/services/license"
	"amulet-controlplane/services/voice"
)

// Module migrates the schema during app construction, before any service
// lifecycle hook runs.
var Module = fx.Module("bootstrap", fx.Invoke(migrate))

func migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&license.License{},
		&apikey.ApiKey{},
		&voice.Voice{},
		&appconfig.Config{},
		&activity.ActivityLog{},
	)
	if err != nil {
		zap.L().Error("schema migration failed", zap.Error(err))
		return err
	}

	zap.L().Info("schema migration complete")
	return nil
}
