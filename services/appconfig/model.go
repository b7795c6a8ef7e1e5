package appconfig

import (
	"time"

	"github.com/lib/pq"
)

// DefaultID keys the singleton row. There is exactly one Config record.
const DefaultID = "1"

// Config is the application-wide console configuration. It is stored as a
// single row and replaced wholesale on admin writes.
type Config struct {
	ID                 string         `gorm:"column:id;primaryKey" json:"id"`
	LatestVersion      string         `gorm:"column:latest_version;not null" json:"latest_version"`
	ForceUpdate        bool           `gorm:"column:force_update;not null;default:false" json:"force_update"`
	Maintenance        bool           `gorm:"column:maintenance;not null;default:false" json:"maintenance"`
	MaintenanceMessage string         `gorm:"column:maintenance_message" json:"maintenance_message"`
	UpdateDescription  string         `gorm:"column:update_description" json:"update_description"`
	UpdateLinks        pq.StringArray `gorm:"column:update_links;type:text[]" json:"update_links"`
	UpdatedAt          time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (Config) TableName() string { return "app_config" }

func defaultConfig() *Config {
	return &Config{
		ID:            DefaultID,
		LatestVersion: "1.0.0",
		UpdateLinks:   pq.StringArray{},
		UpdatedAt:     time.Now().UTC(),
	}
}
