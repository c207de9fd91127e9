package database

import "time"

// RadioUser is one radio identity record: the numeric over-the-air ID a
// trunked protocol transmits, and the callsign registered for it.
type RadioUser struct {
	RadioID   uint32    `gorm:"primarykey;not null" json:"radio_id"`
	Callsign  string    `gorm:"index;size:20" json:"callsign"`
	Name      string    `gorm:"size:100" json:"name"`
	City      string    `gorm:"size:50" json:"city"`
	Country   string    `gorm:"size:50" json:"country"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (RadioUser) TableName() string {
	return "radio_users"
}

// IsValid reports whether the record carries the minimum usable identity.
func (u RadioUser) IsValid() bool {
	return u.RadioID != 0 && u.Callsign != ""
}
