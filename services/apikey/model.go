package apikey

import "time"

const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// ApiKey is an upstream provider credential handed out to consoles in
// rotation. Status is active or disabled; disabled keys are never handed out.
type ApiKey struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	APIKey    string    `gorm:"column:api_key;uniqueIndex;not null" json:"api_key"`
	Status    string    `gorm:"column:status;not null;default:active" json:"status"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (ApiKey) TableName() string { return "api_keys" }

func validStatus(s string) bool {
	return s == StatusActive || s == StatusDisabled
}
