package voice

import "time"

// Voice is a synthesis voice offered to consoles. VoiceID is the upstream
// provider identifier and must be unique; Name is the display label.
type Voice struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	VoiceID   string    `gorm:"column:voice_id;uniqueIndex;not null" json:"voice_id"`
	Active    bool      `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Voice) TableName() string { return "voices" }
