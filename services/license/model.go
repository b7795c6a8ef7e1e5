package license

import "time"

// License is a credential carrying a spendable credit balance and an
// active flag. MacID is the optional device binding set on first check-in.
type License struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	Key       string    `gorm:"column:key;uniqueIndex;not null" json:"key"`
	MacID     *string   `gorm:"column:mac_id;index" json:"mac_id"`
	Credit    int64     `gorm:"column:credit;not null;default:0" json:"credit"`
	Active    bool      `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (License) TableName() string { return "licenses" }
