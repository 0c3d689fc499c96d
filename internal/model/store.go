package model

import "time"

// AuthToken persists the session triple between process runs.
// A single row (ID 1) is kept; Expiry is an absolute unix timestamp,
// 0 meaning the server never reported an expiry.
type AuthToken struct {
	ID        uint      `gorm:"column:id;primaryKey"`
	Token     string    `gorm:"column:token"`
	Secret    string    `gorm:"column:secret"`
	Expiry    int64     `gorm:"column:expiry"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (AuthToken) TableName() string { return "auth_tokens" }

// DeviceState stores the latest snapshot per device SN. Rows are replaced
// wholesale after each successful cycle; this is current state, not history.
type DeviceState struct {
	SN          string    `gorm:"column:sn;primaryKey"`
	CollectorPN string    `gorm:"column:collector_pn;index"`
	Devcode     int       `gorm:"column:devcode"`
	Alias       string    `gorm:"column:alias"`
	Payload     string    `gorm:"column:payload"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (DeviceState) TableName() string { return "device_states" }
