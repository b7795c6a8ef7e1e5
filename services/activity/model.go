package activity

import (
	"time"

	"gorm.io/datatypes"
)

// Action kinds recorded against the activity log. The column is free-form
// text so new kinds can be added without a migration.
const (
	ActionCreate      = "create"
	ActionUpdate      = "update"
	ActionDelete      = "delete"
	ActionCreditDelta = "credit_delta"
	ActionToggle      = "toggle"
	ActionDebit       = "debit"
	ActionRefund      = "refund"
)

// ActivityLog is an immutable audit row. LicenseID is intentionally not a
// foreign key: the referenced license may be deleted later and the audit
// trail must survive it.
type ActivityLog struct {
	ID        string         `gorm:"column:id;primaryKey" json:"id"`
	LicenseID *string        `gorm:"column:license_id;index" json:"license_id"`
	Action    string         `gorm:"column:action;not null;index" json:"action"`
	CharCount *int64         `gorm:"column:char_count" json:"char_count"`
	Details   string         `gorm:"column:details" json:"details"`
	Metadata  datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at;index" json:"created_at"`
}

func (ActivityLog) TableName() string { return "activity_log" }
